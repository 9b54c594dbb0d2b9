package embeddedmqtt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"go.uber.org/zap"

	"github.com/mikey-austin/zonectl/internal/adapters/mqttserver"
	"github.com/mikey-austin/zonectl/pkg/zones"
)

// DefaultListen is the broker address when none is configured.
const DefaultListen = "127.0.0.1:1883"

// Config configures the embedded MQTT broker.
type Config struct {
	Listen         string
	AllowAnonymous bool
	Username       string
	Password       string
	// Viewer credentials may only subscribe below TopicBase.
	ViewerUsername string
	ViewerPassword string
	TopicBase      string
	TLSCA          string
	TLSCert        string
	TLSKey         string
}

// TLSEnabled reports whether the listener serves TLS.
func (c Config) TLSEnabled() bool {
	return c.TLSCert != "" || c.TLSKey != "" || c.TLSCA != ""
}

// Module runs an embedded MQTT broker.
type Module struct {
	log    *zap.Logger
	server *mqtt.Server
	config Config
}

// NewModule creates a new embedded broker module.
func NewModule(log *zap.Logger, cfg Config) (*Module, error) {
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.TopicBase == "" {
		cfg.TopicBase = zones.BaseTopic
	}
	if log == nil {
		log = zap.NewNop()
	}

	server, err := newServer(log, cfg)
	if err != nil {
		return nil, err
	}
	return &Module{log: log, server: server, config: cfg}, nil
}

// Run starts the embedded broker and stops it when ctx is done.
func (m *Module) Run(ctx context.Context) error {
	listenerConfig := listeners.Config{ID: "tcp-embedded", Address: m.config.Listen}
	if m.config.TLSEnabled() {
		tlsConfig, err := mqttserver.TLSConfig(m.config.TLSCA, m.config.TLSCert, m.config.TLSKey)
		if err != nil {
			return err
		}
		listenerConfig.TLSConfig = tlsConfig
	}

	if err := m.server.AddListener(listeners.NewTCP(listenerConfig)); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.server.Serve()
	}()
	m.log.Info("embedded broker listening", zap.String("listen", m.config.Listen), zap.Bool("tls", m.config.TLSEnabled()))

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		<-ctx.Done()
	case <-ctx.Done():
	}
	return m.server.Close()
}

func newServer(log *zap.Logger, cfg Config) (*mqtt.Server, error) {
	server := mqtt.New(&mqtt.Options{InlineClient: true, Logger: newSlogLogger(log)})

	if cfg.AllowAnonymous {
		if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
			return nil, err
		}
		return server, nil
	}
	ledger, err := buildLedger(cfg)
	if err != nil {
		return nil, err
	}
	if err := server.AddHook(new(auth.Hook), &auth.Options{Ledger: ledger}); err != nil {
		return nil, err
	}
	return server, nil
}

func buildLedger(cfg Config) (*auth.Ledger, error) {
	if cfg.Username == "" {
		return nil, errors.New("embedded mqtt requires allow_anonymous or username")
	}
	ledger := &auth.Ledger{
		Auth: auth.AuthRules{{Username: auth.RString(cfg.Username), Password: auth.RString(cfg.Password), Allow: true}},
		ACL:  auth.ACLRules{{Username: auth.RString(cfg.Username), Filters: auth.Filters{auth.RString("#"): auth.ReadWrite}}},
	}
	if cfg.ViewerUsername != "" {
		ledger.Auth = append(ledger.Auth, auth.AuthRule{
			Username: auth.RString(cfg.ViewerUsername),
			Password: auth.RString(cfg.ViewerPassword),
			Allow:    true,
		})
		ledger.ACL = append(ledger.ACL, auth.ACLRule{
			Username: auth.RString(cfg.ViewerUsername),
			Filters: auth.Filters{
				auth.RString(cfg.TopicBase + "/#"):       auth.ReadOnly,
				auth.RString(cfg.TopicBase + "/reply/#"): auth.ReadWrite,
			},
		})
	}
	return ledger, nil
}

// BrokerURL returns the broker URL for a listen address.
func BrokerURL(listen string, tlsEnabled bool) string {
	if listen == "" {
		listen = DefaultListen
	}
	scheme := "mqtt"
	if tlsEnabled {
		scheme = "mqtts"
	}
	return fmt.Sprintf("%s://%s", scheme, listen)
}
