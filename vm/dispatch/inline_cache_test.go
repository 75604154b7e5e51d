package dispatch

import (
	"testing"

	"github.com/chazu/indy/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineCacheGrowsThenClears(t *testing.T) {
	tracker := NewSiteTracker("test", 0)
	ic := NewInlineCache[string, int](3, true, tracker)
	tok := vm.NewSwitch("test").Current()

	assert.Equal(t, CacheEmpty, ic.State())
	assert.Equal(t, CacheMonomorphic, ic.Install("a", tok, 1))
	assert.Equal(t, CachePolymorphic, ic.Install("b", tok, 2))
	assert.Equal(t, CachePolymorphic, ic.Install("c", tok, 3))
	assert.Equal(t, 3, ic.Len())
	assert.Equal(t, 3, tracker.MaxShapes())

	assert.Equal(t, CacheMegamorphic, ic.Install("d", tok, 4))
	assert.Equal(t, 1, ic.Len())
	assert.Equal(t, uint64(1), tracker.Clears())
	_, ok := ic.Lookup("a")
	assert.False(t, ok, "overflow drops every previous entry")

	assert.Equal(t, CachePolymorphic, ic.Install("a", tok, 1), "a cleared site relearns")
	assert.Equal(t, 2, ic.Len())
}

func TestInlineCacheIgnoresRetiredEntries(t *testing.T) {
	ic := NewInlineCache[string, int](2, true, nil)
	sw := vm.NewSwitch("test")
	ic.Install("a", sw.Current(), 1)
	ic.Install("b", sw.Current(), 2)

	sw.Mutate(nil)
	_, ok := ic.Lookup("a")
	assert.False(t, ok)

	assert.Equal(t, CacheMonomorphic, ic.Install("c", sw.Current(), 3),
		"retired entries do not count towards the cap")
	v, ok := ic.Lookup("c")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestInlineCacheReplacesSameKey(t *testing.T) {
	ic := NewInlineCache[string, int](4, true, nil)
	tok := vm.NewSwitch("test").Current()
	ic.Install("a", tok, 1)
	ic.Install("a", tok, 2)
	assert.Equal(t, 1, ic.Len())
	v, ok := ic.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestInlineCacheStats(t *testing.T) {
	ic := NewInlineCache[string, int](4, true, nil)
	tok := vm.NewSwitch("test").Current()
	ic.Lookup("a")
	ic.Install("a", tok, 1)
	ic.Lookup("a")
	ic.Lookup("a")
	ic.Lookup("a")

	assert.Equal(t, uint64(3), ic.Hits())
	assert.Equal(t, uint64(1), ic.Misses())
	assert.InDelta(t, 75.0, ic.HitRate(), 0.001)

	ic.Reset()
	assert.Equal(t, CacheEmpty, ic.State())
	assert.Zero(t, ic.Hits())
	assert.Zero(t, ic.HitRate())
}

func TestInlineCacheStatsDisabled(t *testing.T) {
	ic := NewInlineCache[string, int](4, false, nil)
	ic.Install("a", vm.NewSwitch("test").Current(), 1)
	ic.Lookup("a")
	ic.Lookup("b")
	assert.Zero(t, ic.Hits())
	assert.Zero(t, ic.Misses())
}

func TestCacheStateString(t *testing.T) {
	assert.Equal(t, "monomorphic", CacheMonomorphic.String())
	assert.Equal(t, "megamorphic", CacheMegamorphic.String())
	assert.Equal(t, "unknown", CacheState(99).String())
}

func TestSplatMap(t *testing.T) {
	m := ParseSplatMap("01")
	assert.Equal(t, SplatMap{false, true}, m)
	assert.Equal(t, "01", m.String())
	assert.True(t, m.Any())
	assert.Nil(t, ParseSplatMap(""))

	args := []vm.Value{int64(1), vm.NewArray(int64(2), int64(3))}
	assert.Equal(t, []vm.Value{int64(1), int64(2), int64(3)}, m.Expand(args))

	notArray := []vm.Value{int64(1), int64(2)}
	assert.Equal(t, notArray, m.Expand(notArray))

	nested := []vm.Value{vm.NewArray(int64(9)), int64(1)}
	assert.Equal(t, nested, m.Expand(nested), "unmarked slots are left alone")
}
