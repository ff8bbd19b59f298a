package cache

import "time"

type Stats struct {
	EntryCount  int           `json:"entry_count"`
	StaleCount  int           `json:"stale_count"`
	Hits        uint64        `json:"hits"`
	Misses      uint64        `json:"misses"`
	HitRatio    float64       `json:"hit_ratio"`
	CheckPeriod time.Duration `json:"check_period"`
	Disabled    bool          `json:"disabled"`
}

func (c *ResourceCache[T]) Stats() Stats {
	var entryCount, staleCount int
	now := c.clock.Now()

	c.entries.Range(func(_, value any) bool {
		entryCount++
		if value.(*item[T]).stale(now) {
			staleCount++
		}
		return true
	})

	hits := c.hits.Load()
	misses := c.misses.Load()
	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}

	return Stats{
		EntryCount:  entryCount,
		StaleCount:  staleCount,
		Hits:        hits,
		Misses:      misses,
		HitRatio:    ratio,
		CheckPeriod: c.checkPeriod,
		Disabled:    c.disabled,
	}
}
