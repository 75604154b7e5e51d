package dispatch

import (
	"sync/atomic"

	"github.com/tliron/commonlog"
)

// SiteTracker keeps per-site bookkeeping for the grow/reset policy: how
// many distinct shapes the current chain has learned and how many times
// the chain overflowed and was cleared.
type SiteTracker struct {
	site    string
	maxFail uint64

	shapes   atomic.Int64
	maxSeen  atomic.Int64
	clears   atomic.Uint64
	reported atomic.Bool
}

// NewSiteTracker creates a tracker. When the clear count reaches maxFail a
// one-time notice is logged; zero disables the notice.
func NewSiteTracker(site string, maxFail uint64) *SiteTracker {
	return &SiteTracker{site: site, maxFail: maxFail}
}

// ShouldReset decides whether an install into a chain holding live
// entries must clear the chain instead of growing it.
func (t *SiteTracker) ShouldReset(live, maxPoly int) bool {
	return live >= maxPoly
}

// Observe records that the chain now holds n shapes.
func (t *SiteTracker) Observe(n int) {
	t.shapes.Store(int64(n))
	for {
		m := t.maxSeen.Load()
		if int64(n) <= m || t.maxSeen.CompareAndSwap(m, int64(n)) {
			return
		}
	}
}

// RecordClear counts a chain reset.
func (t *SiteTracker) RecordClear() {
	t.shapes.Store(1)
	n := t.clears.Add(1)
	if t.maxFail > 0 && n >= t.maxFail && t.reported.CompareAndSwap(false, true) {
		log.Infof("%s: inline cache cleared %d times; site is megamorphic", t.site, n)
	}
}

// Shapes returns the number of shapes in the current chain.
func (t *SiteTracker) Shapes() int { return int(t.shapes.Load()) }

// MaxShapes returns the largest chain the site has held.
func (t *SiteTracker) MaxShapes() int { return int(t.maxSeen.Load()) }

// Clears returns how many times the chain was cleared on overflow.
func (t *SiteTracker) Clears() uint64 { return t.clears.Load() }

func (t *SiteTracker) reset() {
	t.shapes.Store(0)
	t.maxSeen.Store(0)
	t.clears.Store(0)
	t.reported.Store(false)
}

var log = commonlog.GetLogger("indy.dispatch")
