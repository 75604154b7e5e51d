package dispatch

// ICStats holds aggregate inline cache statistics.
type ICStats struct {
	TotalCallSites  int     `cbor:"1,keyasint"` // Total number of sites
	Monomorphic     int     `cbor:"2,keyasint"` // Sites in monomorphic state
	Polymorphic     int     `cbor:"3,keyasint"` // Sites in polymorphic state
	Megamorphic     int     `cbor:"4,keyasint"` // Sites that overflowed and are relearning
	Empty           int     `cbor:"5,keyasint"` // Sites never used
	TotalHits       uint64  `cbor:"6,keyasint"` // Total cache hits
	TotalMisses     uint64  `cbor:"7,keyasint"` // Total cache misses
	TotalClears     uint64  `cbor:"8,keyasint"` // Total chain resets
	HitRate         float64 `cbor:"9,keyasint"` // Overall hit rate percentage
	MonomorphicRate float64 `cbor:"10,keyasint"` // Percentage of used sites that are monomorphic
}

// Stats gathers inline cache statistics over every site of the linker.
func (l *Linker) Stats() ICStats {
	return CollectICStats(l.Sites())
}

// CollectICStats aggregates statistics over sites.
func CollectICStats(sites []Site) ICStats {
	var stats ICStats
	for _, s := range sites {
		stats.TotalCallSites++
		switch s.State() {
		case CacheMonomorphic:
			stats.Monomorphic++
		case CachePolymorphic:
			stats.Polymorphic++
		case CacheMegamorphic:
			stats.Megamorphic++
		case CacheEmpty:
			stats.Empty++
		}
		stats.TotalHits += s.Hits()
		stats.TotalMisses += s.Misses()
		stats.TotalClears += s.Tracker().Clears()
	}

	// Calculate rates
	total := stats.TotalHits + stats.TotalMisses
	if total > 0 {
		stats.HitRate = float64(stats.TotalHits) * 100 / float64(total)
	}
	nonEmpty := stats.TotalCallSites - stats.Empty
	if nonEmpty > 0 {
		stats.MonomorphicRate = float64(stats.Monomorphic) * 100 / float64(nonEmpty)
	}
	return stats
}
