package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInfo struct {
	name, library, locale string
	immutable             bool
}

func (f *fakeInfo) CacheKey() (string, string, string) { return f.name, f.library, f.locale }
func (f *fakeInfo) Immutable() bool                    { return f.immutable }

func TestAddThenGetReturnsSameDescriptor(t *testing.T) {
	c := New[*fakeInfo](NeverExpire, testclock.NewClock(time.Now()))
	info := &fakeInfo{name: "style.css", library: "mylib", locale: "de"}

	got := c.Add(info, []string{"dark"})
	require.Same(t, info, got)

	first, ok := c.Get("style.css", "mylib", "de", []string{"dark"})
	require.True(t, ok)
	second, ok := c.Get("style.css", "mylib", "de", []string{"dark"})
	require.True(t, ok)
	assert.Same(t, info, first)
	assert.Same(t, first, second)
}

func TestKeyIncludesContracts(t *testing.T) {
	c := New[*fakeInfo](NeverExpire, nil)
	c.Add(&fakeInfo{name: "a.css"}, []string{"dark"})

	_, ok := c.Get("a.css", "", "", nil)
	assert.False(t, ok)
	_, ok = c.Get("a.css", "", "", []string{"dark", "light"})
	assert.False(t, ok)
	_, ok = c.Get("a.css", "", "", []string{"dark"})
	assert.True(t, ok)
}

func TestDisabledCacheAlwaysMisses(t *testing.T) {
	c := New[*fakeInfo](-5, nil)
	info := &fakeInfo{name: "a.js"}

	assert.Same(t, info, c.Add(info, nil))
	_, ok := c.Get("a.js", "", "", nil)
	assert.False(t, ok)

	stats := c.Stats()
	assert.True(t, stats.Disabled)
	assert.Zero(t, stats.EntryCount)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestStaleEntryIsEvictedOnRead(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	c := New[*fakeInfo](1, clk)
	c.Add(&fakeInfo{name: "a.js"}, nil)

	clk.Advance(30 * time.Second)
	_, ok := c.Get("a.js", "", "", nil)
	require.True(t, ok)

	clk.Advance(31 * time.Second)
	assert.Equal(t, 1, c.Stats().StaleCount)
	_, ok = c.Get("a.js", "", "", nil)
	assert.False(t, ok)
	assert.Zero(t, c.Stats().EntryCount)
}

func TestImmutableEntriesNeverGoStale(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	c := New[*fakeInfo](1, clk)
	info := &fakeInfo{name: "faces.js", library: "jakarta.faces", immutable: true}
	c.Add(info, nil)

	clk.Advance(24 * time.Hour)
	got, ok := c.Get("faces.js", "jakarta.faces", "", nil)
	require.True(t, ok)
	assert.Same(t, info, got)
}

func TestAddDoesNotOverwriteFreshEntry(t *testing.T) {
	c := New[*fakeInfo](NeverExpire, nil)
	first := &fakeInfo{name: "a.css"}
	second := &fakeInfo{name: "a.css"}

	c.Add(first, nil)
	assert.Same(t, first, c.Add(second, nil))

	got, ok := c.Get("a.css", "", "", nil)
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestAddReplacesStaleEntry(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	c := New[*fakeInfo](1, clk)
	first := &fakeInfo{name: "a.css"}
	second := &fakeInfo{name: "a.css"}

	c.Add(first, nil)
	clk.Advance(2 * time.Minute)
	assert.Same(t, second, c.Add(second, nil))

	got, ok := c.Get("a.css", "", "", nil)
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestConcurrentAddHasOneWinner(t *testing.T) {
	c := New[*fakeInfo](NeverExpire, nil)

	const workers = 32
	results := make([]*fakeInfo, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Add(&fakeInfo{name: "shared.js"}, nil)
		}(i)
	}
	wg.Wait()

	winner, ok := c.Get("shared.js", "", "", nil)
	require.True(t, ok)
	for _, r := range results {
		assert.Same(t, winner, r)
	}
}

func TestClear(t *testing.T) {
	c := New[*fakeInfo](NeverExpire, nil)
	c.Add(&fakeInfo{name: "a"}, nil)
	c.Add(&fakeInfo{name: "b"}, nil)
	require.Equal(t, 2, c.Stats().EntryCount)

	c.Clear()
	assert.Zero(t, c.Stats().EntryCount)
	_, ok := c.Get("a", "", "", nil)
	assert.False(t, ok)
}
