package ports

import (
	"context"
	"time"

	"github.com/mikey-austin/zonectl/pkg/hass"
)

// StateSource returns the current snapshot of every entity.
type StateSource interface {
	States(ctx context.Context) ([]hass.EntityState, error)
}

// Dispatcher issues one outbound service call.
type Dispatcher interface {
	CallService(ctx context.Context, call hass.ServiceCall) error
}

// ArtworkFetcher fetches binary resources. It returns the body and its
// content type.
type ArtworkFetcher interface {
	FetchBinary(ctx context.Context, url string) ([]byte, string, error)
}

// Clock returns the current wall-clock time.
type Clock interface {
	Now() time.Time
}

// IDGen returns unique correlation IDs.
type IDGen interface {
	NewID() string
}

// SelectionStore persists the last selected device between invocations.
type SelectionStore interface {
	Selected() (string, bool, error)
	Select(deviceID string) error
	Clear() error
}
