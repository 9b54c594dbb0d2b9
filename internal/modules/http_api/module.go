package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/zonectl/internal/adapters/artwork"
	"github.com/mikey-austin/zonectl/internal/core"
	"github.com/mikey-austin/zonectl/internal/ports"
)

// Config configures the HTTP API.
type Config struct {
	Listen          string
	ShutdownTimeout time.Duration
}

// Deps are the collaborators the API serves from.
type Deps struct {
	Service  core.Service
	IDs      ports.IDGen
	Fetcher  ports.ArtworkFetcher
	Resolver artwork.Resolver
	// AfterCommand is called after every successful command.
	AfterCommand func()
}

// Module serves the zone model over HTTP.
type Module struct {
	log    *zap.Logger
	config Config
	server *http.Server
}

// NewModule creates the HTTP API module.
func NewModule(log *zap.Logger, cfg Config, deps Deps) (*Module, error) {
	if deps.Service.States == nil {
		return nil, errors.New("state source is required")
	}
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = "127.0.0.1:8787"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Module{
		log:    log,
		config: cfg,
		server: &http.Server{
			Addr:              cfg.Listen,
			Handler:           NewRouter(log, deps),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Run serves until ctx is done.
func (m *Module) Run(ctx context.Context) error {
	m.log.Info("starting http api", zap.String("listen", m.config.Listen))

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), m.config.ShutdownTimeout)
	defer cancel()
	if err := m.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
