package config

import (
	"fmt"
	"net/url"
	"time"
)

type Config struct {
	Server  ServerConfig
	Web     WebConfig
	API     APIConfig
	UI      UIConfig
	Storage StorageConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type WebConfig struct {
	Port       int
	SessionTTL string
}

// APIConfig describes the profile API the client front ends talk to.
type APIConfig struct {
	BaseURL string
	Timeout string
}

type UIConfig struct {
	BannerDuration string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8000,
		},
		Web: WebConfig{
			Port:       8080,
			SessionTTL: "30m",
		},
		API: APIConfig{
			BaseURL: "http://127.0.0.1:8000",
			Timeout: "30s",
		},
		UI: UIConfig{
			BannerDuration: "3s",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend and environment
// variables.
//
// The backend is a JSON file at $XDG_CONFIG_HOME/meapi/config.json.
// Environment variables (MEAPI_*) override backend values.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid config: api.base_url %q must be an absolute URL", c.API.BaseURL)
	}
	for key, p := range map[string]int{"server.port": c.Server.Port, "web.port": c.Web.Port} {
		if p < 1 || p > 65535 {
			return fmt.Errorf("invalid config: %s %d is out of range", key, p)
		}
	}
	for key, v := range map[string]string{
		"api.timeout":        c.API.Timeout,
		"ui.banner_duration": c.UI.BannerDuration,
		"web.session_ttl":    c.Web.SessionTTL,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid config: %s: %w", key, err)
		}
	}
	return nil
}

// APITimeout returns api.timeout as a duration.
func (c Config) APITimeout() time.Duration {
	d, _ := time.ParseDuration(c.API.Timeout)
	return d
}

// BannerDuration returns ui.banner_duration as a duration.
func (c Config) BannerDuration() time.Duration {
	d, _ := time.ParseDuration(c.UI.BannerDuration)
	return d
}

// SessionTTL returns web.session_ttl as a duration.
func (c Config) SessionTTL() time.Duration {
	d, _ := time.ParseDuration(c.Web.SessionTTL)
	return d
}
