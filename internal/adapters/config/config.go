package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment variables that override the file.
const (
	EnvHassURL   = "ZONECTL_HASS_URL"
	EnvHassToken = "ZONECTL_HASS_TOKEN"
)

// Config holds CLI configuration from config.toml.
type Config struct {
	Identity string            `toml:"identity"`
	Hass     Hass              `toml:"hass"`
	Entities []string          `toml:"entities"`
	Aliases  map[string]string `toml:"aliases"`
	Defaults Defaults          `toml:"defaults"`
	Player   Player            `toml:"player"`
	Remote   Remote            `toml:"remote"`
}

// Hass locates the Home Assistant instance.
type Hass struct {
	URL      string `toml:"url"`
	Token    string `toml:"token"`
	Timeout  string `toml:"timeout"`
	CacheTTL string `toml:"cache_ttl"`
}

// Defaults defines default selector values.
type Defaults struct {
	Player string `toml:"player"`
}

// Player holds presentation options.
type Player struct {
	VolumeStep float64 `toml:"volume_step"`
	IdleAfter  float64 `toml:"idle_after"`
	JumpAmount float64 `toml:"jump_amount"`
	Artwork    string  `toml:"artwork"`
}

// Remote points the CLI at a running zoned over MQTT instead of talking
// to Home Assistant directly.
type Remote struct {
	Broker    string `toml:"broker"`
	Node      string `toml:"node"`
	TopicBase string `toml:"topic_base"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	TLSCA     string `toml:"tls_ca"`
	TLSCert   string `toml:"tls_cert"`
	TLSKey    string `toml:"tls_key"`
	Timeout   string `toml:"timeout"`
}

// Enabled reports whether a broker is configured.
func (r Remote) Enabled() bool {
	return r.Broker != ""
}

// TimeoutDuration parses the reply timeout, defaulting to 3s.
func (r Remote) TimeoutDuration() (time.Duration, error) {
	return parseDuration(r.Timeout, 3*time.Second)
}

// TimeoutDuration parses the HTTP timeout, defaulting to 5s.
func (h Hass) TimeoutDuration() (time.Duration, error) {
	return parseDuration(h.Timeout, 5*time.Second)
}

// CacheTTLDuration parses the state cache TTL, defaulting to 1s.
func (h Hass) CacheTTLDuration() (time.Duration, error) {
	return parseDuration(h.CacheTTL, time.Second)
}

func parseDuration(value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	return time.ParseDuration(value)
}

// Load loads config.toml if present, then applies .env and environment
// overrides. A missing file returns an empty config.
func Load() (Config, error) {
	path, err := configPath()
	if err != nil {
		return Config{}, err
	}
	return LoadFile(path)
}

// LoadFile loads path like Load.
func LoadFile(path string) (Config, error) {
	var cfg Config
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return Config{}, errors.New("config path is a directory")
	case err == nil:
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	case !errors.Is(err, os.ErrNotExist):
		return Config{}, err
	}
	if cfg.Aliases == nil {
		cfg.Aliases = map[string]string{}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv loads a .env file from the working directory when present and
// overrides the Home Assistant URL and token from the environment.
func ApplyEnv(cfg *Config) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if v, ok := os.LookupEnv(EnvHassURL); ok && v != "" {
		cfg.Hass.URL = v
	}
	if v, ok := os.LookupEnv(EnvHassToken); ok && v != "" {
		cfg.Hass.Token = v
	}
	return nil
}

func configPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "zonectl", "config.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "zonectl", "config.toml"), nil
}
