package artwork

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatedFetcher struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	fail  map[string]bool
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{gates: map[string]chan struct{}{}, fail: map[string]bool{}}
}

func (g *gatedFetcher) gate(ref string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[ref]
	if !ok {
		ch = make(chan struct{})
		g.gates[ref] = ch
	}
	return ch
}

func (g *gatedFetcher) FetchBinary(ctx context.Context, url string) ([]byte, string, error) {
	<-g.gate(url)
	if g.fail[url] {
		return nil, "", errors.New("boom")
	}
	return []byte(url), "", nil
}

func TestDataURI(t *testing.T) {
	assert.Equal(t, "data:image/jpeg;base64,aGk=", DataURI([]byte("hi"), ""))
	assert.Equal(t, "data:image/png;base64,aGk=", DataURI([]byte("hi"), "image/png; charset=binary"))
}

func TestTrackerDiscardsStaleResults(t *testing.T) {
	fetcher := newGatedFetcher()
	updates := make(chan Result, 4)
	tracker := NewTracker(fetcher, nil, func(r Result) { updates <- r }, nil)

	require.True(t, tracker.Update(context.Background(), "/a.jpg", true))
	require.True(t, tracker.Update(context.Background(), "/b.jpg", true))
	assert.False(t, tracker.Update(context.Background(), "/b.jpg", true))

	close(fetcher.gate("/b.jpg"))
	select {
	case r := <-updates:
		assert.Equal(t, "/b.jpg", r.Ref)
		assert.Equal(t, DataURI([]byte("/b.jpg"), ""), r.Image)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out")
	}

	close(fetcher.gate("/a.jpg"))
	select {
	case r := <-updates:
		t.Fatalf("stale result delivered: %+v", r)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, "/b.jpg", tracker.Current().Ref)
}

func TestTrackerFallsBackToURL(t *testing.T) {
	fetcher := newGatedFetcher()
	fetcher.fail["/c.jpg"] = true
	close(fetcher.gate("/c.jpg"))
	updates := make(chan Result, 1)
	resolve := func(ref string) string { return "http://ha" + ref }
	tracker := NewTracker(fetcher, resolve, func(r Result) { updates <- r }, nil)

	tracker.Update(context.Background(), "/c.jpg", true)
	select {
	case r := <-updates:
		assert.True(t, r.Fallback)
		assert.Equal(t, "http://ha/c.jpg", r.Image)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out")
	}
}

func TestTrackerClearsWhenHidden(t *testing.T) {
	fetcher := newGatedFetcher()
	close(fetcher.gate("/d.jpg"))
	updates := make(chan Result, 2)
	tracker := NewTracker(fetcher, nil, func(r Result) { updates <- r }, nil)

	tracker.Update(context.Background(), "/d.jpg", true)
	<-updates
	assert.False(t, tracker.Update(context.Background(), "/d.jpg", false))
	r := <-updates
	assert.Empty(t, r.Image)
	assert.Empty(t, tracker.Current().Image)
}
