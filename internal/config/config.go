// Package config loads gateway configuration from the environment
// variables named in spec §6, generalizing langserver/config.go's
// Config/Apply(*InitializationOptions) shape into an env-first loader with
// an optional TOML overlay for settings that are awkward as env vars.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Config holds all environment-driven gateway settings (spec §6).
type Config struct {
	// UseAuth toggles the bearer-token check in the HTTP façade.
	UseAuth bool
	// AuthToken is the bearer token required of every request when
	// UseAuth is set.
	AuthToken string
	// LogLevel holds the RUST_LOG value (kept under the original's name for
	// operational familiarity with the system it replaces). It is loaded
	// only; no log output is filtered by it.
	LogLevel string
	// HostWorkspacePath is the true host-side path to bind into analyzer
	// containers (see DESIGN.md Open Question (b)).
	HostWorkspacePath string
	// ContainerHost is the bind host used for reserved container ports.
	ContainerHost string
	// ContainerMemoryMB is the per-container memory cap.
	ContainerMemoryMB int64
	// EnableHealthCheck toggles polling each container's /health endpoint
	// after start.
	EnableHealthCheck bool
	// EnabledLanguages restricts which languages the manager will detect
	// and spawn. Empty means "all languages in the registry".
	EnabledLanguages []string

	// PerLanguageArgs optionally overrides/extends analyzer command
	// arguments per language tag, loaded from the optional TOML file
	// below (not expressible cleanly as a single env var).
	PerLanguageArgs map[string][]string
}

const (
	defaultContainerHost      = "0.0.0.0"
	defaultContainerMemoryMB  = 2048
	envUseAuth                = "USE_AUTH"
	envAuthToken              = "LSPROXY_AUTH_TOKEN"
	envLogLevel               = "RUST_LOG"
	envHostWorkspacePath      = "HOST_WORKSPACE_PATH"
	envContainerHost          = "LSPROXY_CONTAINER_HOST"
	envContainerMemoryMB      = "LSPROXY_CONTAINER_MEMORY_MB"
	envEnableHealthCheck      = "LSPROXY_ENABLE_HEALTH_CHECK"
	envEnabledLanguages       = "ENABLED_LANGUAGES"
	envConfigFile             = "LSPROXY_CONFIG_FILE"
)

// FromEnv loads a Config from the process environment, applying the
// defaults spec §6 implies (auth off, 2GiB memory cap, health checks on).
func FromEnv() (Config, error) {
	cfg := Config{
		UseAuth:           boolEnv(envUseAuth, false),
		AuthToken:         os.Getenv(envAuthToken),
		LogLevel:          getenv(envLogLevel, "info"),
		HostWorkspacePath: os.Getenv(envHostWorkspacePath),
		ContainerHost:     getenv(envContainerHost, defaultContainerHost),
		ContainerMemoryMB: int64Env(envContainerMemoryMB, defaultContainerMemoryMB),
		EnableHealthCheck: boolEnv(envEnableHealthCheck, true),
		EnabledLanguages:  splitCSV(os.Getenv(envEnabledLanguages)),
	}

	if path := os.Getenv(envConfigFile); path != "" {
		if err := cfg.applyTOMLFile(path); err != nil {
			return cfg, errors.Wrapf(err, "loading config file %s", path)
		}
	}
	return cfg, nil
}

func (c *Config) applyTOMLFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var file struct {
		Languages map[string]struct {
			Args []string `toml:"args"`
		} `toml:"languages"`
	}
	if err := toml.Unmarshal(data, &file); err != nil {
		return err
	}
	if c.PerLanguageArgs == nil {
		c.PerLanguageArgs = make(map[string][]string)
	}
	for lang, section := range file.Languages {
		c.PerLanguageArgs[lang] = section.Args
	}
	return nil
}

// LanguageEnabled reports whether tag is permitted by EnabledLanguages (an
// empty list permits every language).
func (c Config) LanguageEnabled(tag string) bool {
	if len(c.EnabledLanguages) == 0 {
		return true
	}
	for _, t := range c.EnabledLanguages {
		if t == tag {
			return true
		}
	}
	return false
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func int64Env(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
