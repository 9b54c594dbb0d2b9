package artwork

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mikey-austin/zonectl/internal/ports"
)

const defaultContentType = "image/jpeg"

// Result is the artwork to show for a picture reference. Image is a data
// URI on success and the picture URL when the fetch failed. Both are empty
// when artwork is hidden.
type Result struct {
	Ref      string
	Image    string
	Fallback bool
}

// Resolver makes a picture reference absolute.
type Resolver func(ref string) string

// Tracker fetches artwork for one player and keeps the result for the
// most recent picture reference only.
type Tracker struct {
	fetcher  ports.ArtworkFetcher
	resolve  Resolver
	onUpdate func(Result)
	log      *zap.Logger

	mu      sync.Mutex
	current string
	result  Result
}

// NewTracker builds a tracker. onUpdate, when set, is called with every
// accepted result.
func NewTracker(fetcher ports.ArtworkFetcher, resolve Resolver, onUpdate func(Result), log *zap.Logger) *Tracker {
	if resolve == nil {
		resolve = func(ref string) string { return ref }
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{fetcher: fetcher, resolve: resolve, onUpdate: onUpdate, log: log}
}

// Update records ref as the current picture and starts a fetch when it
// changed. With show false the artwork is cleared. It reports whether a
// fetch was started.
func (t *Tracker) Update(ctx context.Context, ref string, show bool) bool {
	if !show || ref == "" {
		t.mu.Lock()
		changed := t.current != "" || t.result.Image != ""
		t.current = ""
		t.result = Result{}
		t.mu.Unlock()
		if changed && t.onUpdate != nil {
			t.onUpdate(Result{})
		}
		return false
	}

	t.mu.Lock()
	if ref == t.current {
		t.mu.Unlock()
		return false
	}
	t.current = ref
	t.mu.Unlock()

	go t.fetch(ctx, ref)
	return true
}

// Current returns the last accepted result.
func (t *Tracker) Current() Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

func (t *Tracker) fetch(ctx context.Context, ref string) {
	res := Fetch(ctx, t.fetcher, t.resolve, ref)
	if res.Fallback {
		t.log.Debug("artwork fetch failed, using url", zap.String("ref", ref))
	}

	t.mu.Lock()
	if ref != t.current {
		t.mu.Unlock()
		t.log.Debug("discarding stale artwork", zap.String("ref", ref))
		return
	}
	t.result = res
	t.mu.Unlock()

	if t.onUpdate != nil {
		t.onUpdate(res)
	}
}

// Fetch retrieves ref once and encodes it as a data URI, falling back to
// the resolved URL on failure.
func Fetch(ctx context.Context, fetcher ports.ArtworkFetcher, resolve Resolver, ref string) Result {
	if resolve == nil {
		resolve = func(ref string) string { return ref }
	}
	url := resolve(ref)
	if fetcher == nil {
		return Result{Ref: ref, Image: url, Fallback: true}
	}
	data, contentType, err := fetcher.FetchBinary(ctx, ref)
	if err != nil || len(data) == 0 {
		return Result{Ref: ref, Image: url, Fallback: true}
	}
	return Result{Ref: ref, Image: DataURI(data, contentType)}
}

// DataURI encodes data as a base64 data URI.
func DataURI(data []byte, contentType string) string {
	contentType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	if contentType == "" {
		contentType = defaultContentType
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
