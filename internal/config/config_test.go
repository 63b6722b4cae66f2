package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{envUseAuth, envAuthToken, envLogLevel, envHostWorkspacePath,
		envContainerHost, envContainerMemoryMB, envEnableHealthCheck, envEnabledLanguages, envConfigFile} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.UseAuth {
		t.Error("UseAuth should default to false")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.ContainerHost != defaultContainerHost {
		t.Errorf("ContainerHost = %q, want %q", cfg.ContainerHost, defaultContainerHost)
	}
	if cfg.ContainerMemoryMB != defaultContainerMemoryMB {
		t.Errorf("ContainerMemoryMB = %d, want %d", cfg.ContainerMemoryMB, defaultContainerMemoryMB)
	}
	if !cfg.EnableHealthCheck {
		t.Error("EnableHealthCheck should default to true")
	}
	if len(cfg.EnabledLanguages) != 0 {
		t.Errorf("EnabledLanguages = %v, want empty", cfg.EnabledLanguages)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv(envUseAuth, "true")
	t.Setenv(envAuthToken, "s3cr3t")
	t.Setenv(envLogLevel, "debug")
	t.Setenv(envHostWorkspacePath, "/host/workspace")
	t.Setenv(envContainerHost, "127.0.0.1")
	t.Setenv(envContainerMemoryMB, "4096")
	t.Setenv(envEnableHealthCheck, "false")
	t.Setenv(envEnabledLanguages, "go, python ,rust")
	t.Setenv(envConfigFile, "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	want := Config{
		UseAuth:           true,
		AuthToken:         "s3cr3t",
		LogLevel:          "debug",
		HostWorkspacePath: "/host/workspace",
		ContainerHost:     "127.0.0.1",
		ContainerMemoryMB: 4096,
		EnableHealthCheck: false,
		EnabledLanguages:  []string{"go", "python", "rust"},
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("cfg = %+v, want %+v", cfg, want)
	}
}

func TestFromEnvInvalidNumbersFallBack(t *testing.T) {
	t.Setenv(envUseAuth, "not-a-bool")
	t.Setenv(envContainerMemoryMB, "not-a-number")
	t.Setenv(envAuthToken, "")
	t.Setenv(envLogLevel, "")
	t.Setenv(envHostWorkspacePath, "")
	t.Setenv(envContainerHost, "")
	t.Setenv(envEnableHealthCheck, "")
	t.Setenv(envEnabledLanguages, "")
	t.Setenv(envConfigFile, "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.UseAuth {
		t.Error("invalid USE_AUTH should fall back to false")
	}
	if cfg.ContainerMemoryMB != defaultContainerMemoryMB {
		t.Errorf("ContainerMemoryMB = %d, want fallback %d", cfg.ContainerMemoryMB, defaultContainerMemoryMB)
	}
}

func TestFromEnvConfigFileMergesPerLanguageArgs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lsproxy.toml")
	contents := `
[languages.go]
args = ["-rpc.trace"]

[languages.rust]
args = ["--log-file=/tmp/rust-analyzer.log"]
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{envUseAuth, envAuthToken, envLogLevel, envHostWorkspacePath,
		envContainerHost, envContainerMemoryMB, envEnableHealthCheck, envEnabledLanguages} {
		t.Setenv(key, "")
	}
	t.Setenv(envConfigFile, path)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.PerLanguageArgs["go"]; !reflect.DeepEqual(got, []string{"-rpc.trace"}) {
		t.Errorf("PerLanguageArgs[go] = %v", got)
	}
	if got := cfg.PerLanguageArgs["rust"]; !reflect.DeepEqual(got, []string{"--log-file=/tmp/rust-analyzer.log"}) {
		t.Errorf("PerLanguageArgs[rust] = %v", got)
	}
}

func TestFromEnvConfigFileMissingFails(t *testing.T) {
	for _, key := range []string{envUseAuth, envAuthToken, envLogLevel, envHostWorkspacePath,
		envContainerHost, envContainerMemoryMB, envEnableHealthCheck, envEnabledLanguages} {
		t.Setenv(key, "")
	}
	t.Setenv(envConfigFile, filepath.Join(t.TempDir(), "missing.toml"))

	if _, err := FromEnv(); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLanguageEnabled(t *testing.T) {
	tests := []struct {
		name     string
		enabled  []string
		tag      string
		expected bool
	}{
		{"empty list permits everything", nil, "go", true},
		{"listed tag permitted", []string{"go", "python"}, "python", true},
		{"unlisted tag rejected", []string{"go", "python"}, "rust", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{EnabledLanguages: tt.enabled}
			if got := cfg.LanguageEnabled(tt.tag); got != tt.expected {
				t.Errorf("LanguageEnabled(%q) = %v, want %v", tt.tag, got, tt.expected)
			}
		})
	}
}
