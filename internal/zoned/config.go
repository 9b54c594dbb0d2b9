package zoned

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/mikey-austin/zonectl/internal/core"
)

// Environment variables that override the file.
const (
	EnvHassURL   = "ZONECTL_HASS_URL"
	EnvHassToken = "ZONECTL_HASS_TOKEN"
	EnvMQTTPass  = "ZONED_MQTT_PASS"
)

// Config is the top-level configuration for zoned.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Hass    HassConfig    `toml:"hass"`
	Zones   ZonesConfig   `toml:"zones"`
	Modules ModulesConfig `toml:"modules"`
}

// ServerConfig defines shared server settings.
type ServerConfig struct {
	Broker    string     `toml:"broker"`
	Identity  string     `toml:"identity"`
	TopicBase string     `toml:"topic_base"`
	LogLevel  string     `toml:"log_level"`
	LogFormat string     `toml:"log_format"`
	LogOutput string     `toml:"log_output"`
	LogSource bool       `toml:"log_source"`
	LogUTC    bool       `toml:"log_utc"`
	LogColor  bool       `toml:"log_color"`
	TLS       TLSConfig  `toml:"tls"`
	Auth      AuthConfig `toml:"auth"`
}

// TLSConfig holds TLS paths for MQTT.
type TLSConfig struct {
	CA   string `toml:"ca"`
	Cert string `toml:"cert"`
	Key  string `toml:"key"`
}

// AuthConfig holds MQTT auth credentials.
type AuthConfig struct {
	User string `toml:"user"`
	Pass string `toml:"pass"`
}

// HassConfig locates the Home Assistant instance.
type HassConfig struct {
	URL      string `toml:"url"`
	Token    string `toml:"token"`
	Timeout  string `toml:"timeout"`
	CacheTTL string `toml:"cache_ttl"`
}

// ZonesConfig selects and presents the devices.
type ZonesConfig struct {
	Entities   []string          `toml:"entities"`
	Aliases    map[string]string `toml:"aliases"`
	Default    string            `toml:"default"`
	VolumeStep float64           `toml:"volume_step"`
	IdleAfter  float64           `toml:"idle_after"`
	JumpAmount float64           `toml:"jump_amount"`
	Artwork    string            `toml:"artwork"`
}

// ModulesConfig holds module configurations.
type ModulesConfig struct {
	ZoneBridge   ZoneBridgeConfig   `toml:"zone_bridge"`
	HTTPAPI      HTTPAPIConfig      `toml:"http_api"`
	EmbeddedMQTT EmbeddedMQTTConfig `toml:"embedded_mqtt"`
}

// ZoneBridgeConfig configures the MQTT zone bridge.
type ZoneBridgeConfig struct {
	Enabled      bool   `toml:"enabled"`
	NodeID       string `toml:"node_id"`
	Name         string `toml:"name"`
	PollInterval string `toml:"poll_interval"`
	IdleCheck    string `toml:"idle_check"`
	Events       *bool  `toml:"events"`
	Artwork      bool   `toml:"artwork"`
}

// HTTPAPIConfig configures the HTTP API.
type HTTPAPIConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// EmbeddedMQTTConfig configures the embedded MQTT broker.
type EmbeddedMQTTConfig struct {
	Enabled        bool   `toml:"enabled"`
	Listen         string `toml:"listen"`
	AllowAnonymous bool   `toml:"allow_anonymous"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	ViewerUsername string `toml:"viewer_username"`
	ViewerPassword string `toml:"viewer_password"`
	TLSCA          string `toml:"tls_ca"`
	TLSCert        string `toml:"tls_cert"`
	TLSKey         string `toml:"tls_key"`
}

// EventsEnabled reports whether the bridge follows the websocket stream.
// It defaults to on.
func (c ZoneBridgeConfig) EventsEnabled() bool {
	return c.Events == nil || *c.Events
}

// PollDuration parses the poll interval, defaulting to 30s.
func (c ZoneBridgeConfig) PollDuration() (time.Duration, error) {
	return parseDuration(c.PollInterval, 30*time.Second)
}

// IdleCheckDuration parses the idle check interval, defaulting to 1m.
func (c ZoneBridgeConfig) IdleCheckDuration() (time.Duration, error) {
	return parseDuration(c.IdleCheck, time.Minute)
}

// TimeoutDuration parses the Home Assistant timeout, defaulting to 5s.
func (c HassConfig) TimeoutDuration() (time.Duration, error) {
	return parseDuration(c.Timeout, 5*time.Second)
}

// CacheTTLDuration parses the state cache TTL, defaulting to 1s.
func (c HassConfig) CacheTTLDuration() (time.Duration, error) {
	return parseDuration(c.CacheTTL, time.Second)
}

func parseDuration(value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	return time.ParseDuration(value)
}

// CoreConfig maps the zones section onto the model configuration.
func (c Config) CoreConfig() core.Config {
	aliases := c.Zones.Aliases
	if aliases == nil {
		aliases = map[string]string{}
	}
	return core.Config{
		Entities: c.Zones.Entities,
		Identity: c.Server.Identity,
		Aliases:  aliases,
		Defaults: core.Defaults{Player: c.Zones.Default},
		Player: core.PlayerOptions{
			VolumeStep: c.Zones.VolumeStep,
			IdleAfter:  c.Zones.IdleAfter,
			JumpAmount: c.Zones.JumpAmount,
			Artwork:    c.Zones.Artwork,
		},
	}
}

// LoadConfig loads a config file from path and applies environment
// overrides, reading a .env file from the working directory when present.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, err
	}
	if info.IsDir() {
		return Config{}, errors.New("config path is a directory")
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if v := os.Getenv(EnvHassURL); v != "" {
		cfg.Hass.URL = v
	}
	if v := os.Getenv(EnvHassToken); v != "" {
		cfg.Hass.Token = v
	}
	if v := os.Getenv(EnvMQTTPass); v != "" {
		cfg.Server.Auth.Pass = v
	}
	return nil
}

// DefaultConfigPath returns the default config location.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "zonectl", "zoned.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "zonectl", "zoned.toml"), nil
}
