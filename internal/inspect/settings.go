package inspect

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kingrea/apptree/internal/config"
)

const (
	// DefaultHost keeps the server on loopback unless configured otherwise.
	DefaultHost = "127.0.0.1"
	// DefaultPort matches the inspect.port written by `apptree init`.
	DefaultPort = 8766
	// DefaultCacheSize bounds the number of rendered subtrees kept in memory.
	DefaultCacheSize = 256

	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 15 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

// Settings captures runtime configuration for the inspection server.
type Settings struct {
	Enabled      bool
	Host         string
	Port         int
	CacheSize    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultSettings returns an enabled loopback server with the default cache.
func DefaultSettings() Settings {
	return Settings{
		Enabled:      true,
		Host:         DefaultHost,
		Port:         DefaultPort,
		CacheSize:    DefaultCacheSize,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}
}

// SettingsFromConfig layers the project's inspect block and then the
// APPTREE_INSPECT_* variables over DefaultSettings. Values that are out of
// range in either layer are ignored.
func SettingsFromConfig(cfg *config.Config) Settings {
	settings := DefaultSettings()
	if cfg != nil {
		settings.merge(cfg.Project.Inspect)
	}
	settings.merge(inspectFromEnv(os.LookupEnv))
	return settings
}

// merge applies the fields of in that are set and valid.
func (s *Settings) merge(in config.InspectConfig) {
	if in.Enabled != nil {
		s.Enabled = *in.Enabled
	}
	if host := strings.TrimSpace(in.Host); host != "" {
		s.Host = host
	}
	if in.Port > 0 && in.Port <= 65535 {
		s.Port = in.Port
	}
	if in.CacheSize > 0 {
		s.CacheSize = in.CacheSize
	}
}

// inspectFromEnv reads the environment into the same shape as the config
// file so both layers share merge.
func inspectFromEnv(lookup func(string) (string, bool)) config.InspectConfig {
	var out config.InspectConfig
	get := func(key string) string {
		value, _ := lookup(key)
		return strings.TrimSpace(value)
	}
	if enabled, err := strconv.ParseBool(get("APPTREE_INSPECT_ENABLED")); err == nil {
		out.Enabled = &enabled
	}
	out.Host = get("APPTREE_INSPECT_HOST")
	if port, err := strconv.Atoi(get("APPTREE_INSPECT_PORT")); err == nil {
		out.Port = port
	}
	if size, err := strconv.Atoi(get("APPTREE_INSPECT_CACHE_SIZE")); err == nil {
		out.CacheSize = size
	}
	return out
}

// Address returns the TCP bind address in host:port form.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the HTTP base URL for the server.
func (s Settings) URL() string {
	return "http://" + s.Address()
}
