package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration. Values resolve in
// order: defaults -> optional TOML file -> environment overrides.
// The configuration is immutable after startup and freely shared.
type Config struct {
	ListenOn          string `toml:"listen_on" validate:"hostname_port"`
	AllowedOrigins    string `toml:"allowed_origins"`
	AllowEmptyOrigin  bool   `toml:"allow_empty_origin"`
	CheckCSRFPresence bool   `toml:"check_csrf_presence"`
	EnableGetRequest  bool   `toml:"enable_get_request"`

	ProxyURL string `toml:"proxy_url" validate:"omitempty,url"`

	CamoKey  string `toml:"camo_key" validate:"omitempty,hexadecimal"`
	CamoHost string `toml:"camo_host"`

	TumblrAPIKey string `toml:"tumblr_api_key"`

	TwitterUseV2        bool   `toml:"twitter_use_v2"`
	TwitterAPIKey       string `toml:"twitter_api_key"`
	TwitterAPIKeySecret string `toml:"twitter_api_key_secret"`
	TwitterAPIBearer    string `toml:"twitter_api_bearer"`

	PreferredNitterInstanceHost string `toml:"preferred_nitter_instance_host"`

	LogLevel  string `toml:"log_level" validate:"oneof=trace debug info warn error TRACE DEBUG INFO WARN ERROR"`
	SentryURL string `toml:"sentry_url" validate:"omitempty,url"`
}

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		ListenOn:         "127.0.0.1:8080",
		AllowedOrigins:   "localhost,localhost:8080",
		AllowEmptyOrigin: false,
		LogLevel:         "INFO",
	}
}

// LoadConfig resolves the configuration from defaults, an optional TOML
// file and the environment. A missing file is not an error; a malformed
// one is.
func LoadConfig(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Optional, like the original .env file. The caller logs it.
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(config)

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setBool := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			if parsed, err := strconv.ParseBool(v); err == nil {
				*dst = parsed
			}
		}
	}

	setString("LISTEN_ON", &config.ListenOn)
	setString("ALLOWED_ORIGINS", &config.AllowedOrigins)
	setBool("ALLOW_EMPTY_ORIGIN", &config.AllowEmptyOrigin)
	setBool("CHECK_CSRF_PRESENCE", &config.CheckCSRFPresence)
	setBool("ENABLE_GET_REQUEST", &config.EnableGetRequest)
	setString("HTTP_PROXY", &config.ProxyURL)
	setString("CAMO_KEY", &config.CamoKey)
	setString("CAMO_HOST", &config.CamoHost)
	setString("TUMBLR_API_KEY", &config.TumblrAPIKey)
	setBool("TWITTER_USE_V2", &config.TwitterUseV2)
	setString("TWITTER_API_KEY", &config.TwitterAPIKey)
	setString("TWITTER_API_KEY_SECRET", &config.TwitterAPIKeySecret)
	setString("TWITTER_API_BEARER", &config.TwitterAPIBearer)
	setString("PREFERRED_NITTER_INSTANCE_HOST", &config.PreferredNitterInstanceHost)
	setString("LOG_LEVEL", &config.LogLevel)
	setString("SENTRY_URL", &config.SentryURL)
}

// ParsedAllowedOrigins splits the allow-list, dropping empty entries.
func (c *Config) ParsedAllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// IsAllowedOrigin reports whether a request Origin header passes the
// allow-list. A nil origin means the header was absent. An empty
// allow-list admits everything.
func (c *Config) IsAllowedOrigin(origin *string) bool {
	if origin == nil {
		return c.AllowEmptyOrigin
	}
	allowed := c.ParsedAllowedOrigins()
	if len(allowed) == 0 {
		return true
	}
	for _, host := range allowed {
		if host == *origin {
			return true
		}
	}
	return false
}
