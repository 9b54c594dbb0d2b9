package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/zonectl/internal/adapters/clock"
	"github.com/mikey-austin/zonectl/internal/adapters/homeassistant"
	"github.com/mikey-austin/zonectl/internal/adapters/idgen"
	"github.com/mikey-austin/zonectl/internal/adapters/mqttserver"
	"github.com/mikey-austin/zonectl/internal/core"
	embeddedmqtt "github.com/mikey-austin/zonectl/internal/modules/embedded_mqtt"
	httpapi "github.com/mikey-austin/zonectl/internal/modules/http_api"
	zonebridge "github.com/mikey-austin/zonectl/internal/modules/zone_bridge"
	"github.com/mikey-austin/zonectl/internal/zoned"
	"github.com/mikey-austin/zonectl/pkg/zones"
)

type overrides struct {
	broker    string
	identity  string
	topicBase string
	hassURL   string
	logLevel  string
	logFormat string
	logOutput string
	logSource bool
	logUTC    bool
	logColor  bool
}

func main() {
	var (
		configPath  string
		over        overrides
		printConfig bool
		dryRun      bool
		moduleOnly  string
	)

	defaultConfig, err := zoned.DefaultConfigPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&configPath, "config", defaultConfig, "config file path")
	flag.StringVar(&over.broker, "broker", "", "MQTT broker URL override")
	flag.StringVar(&over.identity, "identity", "", "server identity override")
	flag.StringVar(&over.topicBase, "topic-base", "", "topic base override")
	flag.StringVar(&over.hassURL, "hass-url", "", "Home Assistant URL override")
	flag.StringVar(&over.logLevel, "log-level", "", "log level override")
	flag.StringVar(&over.logFormat, "log-format", "", "log format override (console|json)")
	flag.StringVar(&over.logOutput, "log-output", "", "log output override (stdout|stderr)")
	flag.BoolVar(&over.logSource, "log-source", false, "include caller in logs")
	flag.BoolVar(&over.logUTC, "log-utc", false, "use UTC timestamps in logs")
	flag.BoolVar(&over.logColor, "log-color", false, "enable colored log levels (console only)")
	flag.StringVar(&moduleOnly, "module", "", "limit to a single module")
	flag.BoolVar(&printConfig, "print-config", false, "print resolved config and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "validate config and exit")
	flag.Parse()

	cfg, err := zoned.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyOverrides(&cfg, over)

	if printConfig {
		printResolvedConfig(cfg)
		return
	}
	if dryRun {
		return
	}

	logger := zoned.NewLogger(zoned.LogConfig{
		Level:     cfg.Server.LogLevel,
		Format:    cfg.Server.LogFormat,
		Output:    cfg.Server.LogOutput,
		AddSource: cfg.Server.LogSource,
		UTC:       cfg.Server.LogUTC,
		Color:     cfg.Server.LogColor,
	})
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	skipEmbedded := false
	if moduleOnly != "embedded_mqtt" && cfg.Modules.EmbeddedMQTT.Enabled && cfg.Server.Broker == embeddedBrokerURL(cfg) {
		if err := startEmbeddedBroker(ctx, cfg, logger, cancel); err != nil {
			logger.Error("embedded mqtt failed", zap.Error(err))
			os.Exit(1)
		}
		skipEmbedded = true
	}

	logger.Info("zoned starting",
		zap.String("broker", cfg.Server.Broker),
		zap.String("identity", cfg.Server.Identity),
		zap.String("topic_base", cfg.Server.TopicBase),
		zap.String("hass_url", cfg.Hass.URL),
		zap.String("log_level", cfg.Server.LogLevel),
		zap.Strings("modules", enabledModules(cfg)),
	)

	var ha *homeassistant.Client
	if needsHass(cfg, moduleOnly) {
		ha, err = newHassClient(cfg)
		if err != nil {
			logger.Error("home assistant client", zap.Error(err))
			os.Exit(1)
		}
	}

	var client *mqttserver.Client
	if needsBroker(cfg, moduleOnly) {
		if cfg.Server.Broker == "" {
			logger.Error("broker is required")
			os.Exit(1)
		}
		client, err = mqttserver.NewClient(mqttserver.Options{
			BrokerURL: cfg.Server.Broker,
			ClientID:  fmt.Sprintf("zoned-%d", time.Now().UnixNano()),
			Username:  cfg.Server.Auth.User,
			Password:  cfg.Server.Auth.Pass,
			TLSCA:     cfg.Server.TLS.CA,
			TLSCert:   cfg.Server.TLS.Cert,
			TLSKey:    cfg.Server.TLS.Key,
			Timeout:   2 * time.Second,
			Will: &mqttserver.Will{
				Topic:    zones.TopicPresence(cfg.Server.TopicBase, bridgeNodeID(cfg)),
				Retained: true,
			},
			Logger: logger.With(zap.String("component", "mqtt")),
			Debug:  strings.EqualFold(cfg.Server.LogLevel, "debug"),
		})
		if err != nil {
			logger.Error("mqtt connection failed", zap.Error(err))
			os.Exit(1)
		}
		defer client.Close(250)
	}

	modules, err := buildModules(cfg, client, ha, logger, moduleOnly, skipEmbedded)
	if err != nil {
		logger.Error("failed to build modules", zap.Error(err))
		os.Exit(1)
	}

	supervisor := zoned.Supervisor{Logger: logger}
	if err := supervisor.Run(ctx, modules); err != nil {
		logger.Error("supervisor error", zap.Error(err))
		os.Exit(1)
	}
}

func applyOverrides(cfg *zoned.Config, over overrides) {
	if over.broker != "" {
		cfg.Server.Broker = over.broker
	}
	if over.identity != "" {
		cfg.Server.Identity = over.identity
	}
	if over.topicBase != "" {
		cfg.Server.TopicBase = over.topicBase
	}
	if cfg.Server.TopicBase == "" {
		cfg.Server.TopicBase = zones.BaseTopic
	}
	if over.hassURL != "" {
		cfg.Hass.URL = over.hassURL
	}
	if over.logLevel != "" {
		cfg.Server.LogLevel = over.logLevel
	}
	if over.logFormat != "" {
		cfg.Server.LogFormat = over.logFormat
	}
	if over.logOutput != "" {
		cfg.Server.LogOutput = over.logOutput
	}
	if over.logSource {
		cfg.Server.LogSource = true
	}
	if over.logUTC {
		cfg.Server.LogUTC = true
	}
	if over.logColor {
		cfg.Server.LogColor = true
	}
}

func needsHass(cfg zoned.Config, moduleOnly string) bool {
	return wants(moduleOnly, "zone_bridge", cfg.Modules.ZoneBridge.Enabled) ||
		wants(moduleOnly, "http_api", cfg.Modules.HTTPAPI.Enabled)
}

func needsBroker(cfg zoned.Config, moduleOnly string) bool {
	return wants(moduleOnly, "zone_bridge", cfg.Modules.ZoneBridge.Enabled)
}

func wants(moduleOnly, name string, enabled bool) bool {
	return enabled && (moduleOnly == "" || moduleOnly == name)
}

func newHassClient(cfg zoned.Config) (*homeassistant.Client, error) {
	timeout, err := cfg.Hass.TimeoutDuration()
	if err != nil {
		return nil, fmt.Errorf("hass timeout: %w", err)
	}
	ttl, err := cfg.Hass.CacheTTLDuration()
	if err != nil {
		return nil, fmt.Errorf("hass cache_ttl: %w", err)
	}
	return homeassistant.NewClient(homeassistant.Options{
		URL:      cfg.Hass.URL,
		Token:    cfg.Hass.Token,
		Timeout:  timeout,
		CacheTTL: ttl,
	})
}

func newService(cfg zoned.Config, ha *homeassistant.Client, logger *zap.Logger) core.Service {
	coreCfg := cfg.CoreConfig()
	return core.Service{
		States: ha,
		Commander: core.Commander{
			Dispatcher: ha,
			Async:      true,
			Timeout:    ha.Timeout(),
			Log:        logger.With(zap.String("component", "commander")),
		},
		Resolver: core.Resolver{Config: coreCfg},
		Clock:    clock.Clock{},
		Config:   coreCfg,
	}
}

func bridgeNodeID(cfg zoned.Config) string {
	if cfg.Modules.ZoneBridge.NodeID != "" {
		return cfg.Modules.ZoneBridge.NodeID
	}
	if cfg.Server.Identity != "" {
		return cfg.Server.Identity
	}
	return "zoned"
}

func buildModules(cfg zoned.Config, client *mqttserver.Client, ha *homeassistant.Client, logger *zap.Logger, moduleOnly string, skipEmbedded bool) ([]zoned.ModuleRunner, error) {
	var modules []zoned.ModuleRunner

	if wants(moduleOnly, "embedded_mqtt", cfg.Modules.EmbeddedMQTT.Enabled) && !skipEmbedded {
		mod, err := newEmbeddedModule(cfg, logger)
		if err != nil {
			return nil, err
		}
		modules = append(modules, zoned.ModuleRunner{Name: "embedded_mqtt", Run: mod.Run})
	}

	var bridge *zonebridge.Module
	if wants(moduleOnly, "zone_bridge", cfg.Modules.ZoneBridge.Enabled) {
		if client == nil {
			return nil, errors.New("zone_bridge requires an mqtt broker")
		}
		if ha == nil {
			return nil, homeassistant.ErrNotConfigured
		}
		poll, err := cfg.Modules.ZoneBridge.PollDuration()
		if err != nil {
			return nil, fmt.Errorf("zone_bridge poll_interval: %w", err)
		}
		idle, err := cfg.Modules.ZoneBridge.IdleCheckDuration()
		if err != nil {
			return nil, fmt.Errorf("zone_bridge idle_check: %w", err)
		}
		deps := zonebridge.Deps{
			Service:  newService(cfg, ha, logger),
			Fetcher:  ha,
			Resolver: ha.ResolveURL,
		}
		if cfg.Modules.ZoneBridge.EventsEnabled() {
			deps.Events = ha.Events()
		}
		bridge, err = zonebridge.NewModule(logger.With(zap.String("module", "zone_bridge")), client, zonebridge.Config{
			NodeID:       bridgeNodeID(cfg),
			TopicBase:    cfg.Server.TopicBase,
			Name:         cfg.Modules.ZoneBridge.Name,
			PollInterval: poll,
			IdleCheck:    idle,
			Artwork:      cfg.Modules.ZoneBridge.Artwork,
		}, deps)
		if err != nil {
			return nil, err
		}
		modules = append(modules, zoned.ModuleRunner{Name: "zone_bridge", Run: bridge.Run})
	}

	if wants(moduleOnly, "http_api", cfg.Modules.HTTPAPI.Enabled) {
		if ha == nil {
			return nil, homeassistant.ErrNotConfigured
		}
		deps := httpapi.Deps{
			Service:  newService(cfg, ha, logger),
			IDs:      idgen.Generator{},
			Fetcher:  ha,
			Resolver: ha.ResolveURL,
		}
		if bridge != nil {
			deps.AfterCommand = bridge.Trigger
		}
		mod, err := httpapi.NewModule(logger.With(zap.String("module", "http_api")), httpapi.Config{
			Listen: cfg.Modules.HTTPAPI.Listen,
		}, deps)
		if err != nil {
			return nil, err
		}
		modules = append(modules, zoned.ModuleRunner{Name: "http_api", Run: mod.Run})
	}

	if moduleOnly != "" && len(modules) == 0 {
		return nil, fmt.Errorf("module %q is not enabled", moduleOnly)
	}
	return modules, nil
}

func enabledModules(cfg zoned.Config) []string {
	out := []string{}
	if cfg.Modules.EmbeddedMQTT.Enabled {
		out = append(out, "embedded_mqtt")
	}
	if cfg.Modules.ZoneBridge.Enabled {
		out = append(out, "zone_bridge")
	}
	if cfg.Modules.HTTPAPI.Enabled {
		out = append(out, "http_api")
	}
	return out
}

func printResolvedConfig(cfg zoned.Config) {
	fmt.Fprintf(os.Stdout,
		"broker=%s identity=%s topic_base=%s hass_url=%s log_level=%s log_format=%s log_output=%s modules=%s\n",
		cfg.Server.Broker,
		cfg.Server.Identity,
		cfg.Server.TopicBase,
		cfg.Hass.URL,
		cfg.Server.LogLevel,
		cfg.Server.LogFormat,
		cfg.Server.LogOutput,
		strings.Join(enabledModules(cfg), ","),
	)
}

func newEmbeddedModule(cfg zoned.Config, logger *zap.Logger) (*embeddedmqtt.Module, error) {
	e := cfg.Modules.EmbeddedMQTT
	return embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedmqtt.Config{
		Listen:         e.Listen,
		AllowAnonymous: e.AllowAnonymous,
		Username:       e.Username,
		Password:       e.Password,
		ViewerUsername: e.ViewerUsername,
		ViewerPassword: e.ViewerPassword,
		TopicBase:      cfg.Server.TopicBase,
		TLSCA:          e.TLSCA,
		TLSCert:        e.TLSCert,
		TLSKey:         e.TLSKey,
	})
}

func embeddedBrokerURL(cfg zoned.Config) string {
	e := cfg.Modules.EmbeddedMQTT
	return embeddedmqtt.BrokerURL(e.Listen, e.TLSCert != "" || e.TLSKey != "" || e.TLSCA != "")
}

// startEmbeddedBroker runs the broker ahead of the supervisor so the MQTT
// client can connect to it.
func startEmbeddedBroker(ctx context.Context, cfg zoned.Config, logger *zap.Logger, cancel context.CancelFunc) error {
	mod, err := newEmbeddedModule(cfg, logger)
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- mod.Run(ctx)
	}()
	go func() {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("embedded mqtt exited", zap.Error(err))
			cancel()
		}
	}()

	listen := cfg.Modules.EmbeddedMQTT.Listen
	if listen == "" {
		listen = embeddedmqtt.DefaultListen
	}
	return waitForListen(listen, 3*time.Second)
}

func waitForListen(listen string, timeout time.Duration) error {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return err
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, port)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("embedded mqtt not ready at %s", addr)
}
