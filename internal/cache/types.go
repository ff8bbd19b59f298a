package cache

import (
	"strings"
	"time"
)

// Entry is implemented by the descriptors stored in a ResourceCache.
type Entry interface {
	// CacheKey returns the name, library and locale prefix the entry was
	// resolved for.
	CacheKey() (name, library, localePrefix string)
	// Immutable reports whether the entry's origin cannot change while the
	// process runs. Immutable entries never go stale.
	Immutable() bool
}

// Check period semantics, in minutes.
const (
	// NeverExpire caches entries for the lifetime of the cache.
	NeverExpire = 0
	// Disabled turns the cache into a permanent miss. Any negative period
	// has the same effect.
	Disabled = -1
)

type key struct {
	name      string
	library   string
	locale    string
	contracts string
}

func newKey(name, library, locale string, contracts []string) key {
	return key{
		name:      name,
		library:   library,
		locale:    locale,
		contracts: strings.Join(contracts, "\x00"),
	}
}

type item[T Entry] struct {
	value T
	// expiresAt is zero for entries that never go stale.
	expiresAt time.Time
}

func (i *item[T]) stale(now time.Time) bool {
	return !i.expiresAt.IsZero() && i.expiresAt.Before(now)
}
