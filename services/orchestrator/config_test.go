// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func clearLegacyEnv(t *testing.T) {
	t.Helper()
	for _, env := range legacyEnv {
		t.Setenv(env, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearLegacyEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 12210, cfg.Port)
	assert.Equal(t, "dummy", cfg.DefaultProvider)
	assert.Equal(t, "es", cfg.ErrorLocale)
	assert.Equal(t, 90*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 720*time.Hour, cfg.Storage.Retention)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	clearLegacyEnv(t)
	path := filepath.Join(t.TempDir(), "debate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9000
default_provider: openai
error_locale: en
request_timeout: 30s
providers:
  openai:
    api_key: from-file
    rate_limit: 1.5
    burst: 3
storage:
  backend: sqlite
  path: /var/lib/debate/debate.db
  retention: 48h
auth:
  api_keys: [alpha, beta]
`), 0o600))

	t.Setenv("DEBATE_PORT", "9100")
	t.Setenv("DEBATE_STORAGE_BACKEND", "badger")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port, "env overrides file")
	assert.Equal(t, "openai", cfg.DefaultProvider)
	assert.Equal(t, "en", cfg.ErrorLocale)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "from-file", cfg.Providers.OpenAI.APIKey)
	assert.Equal(t, 1.5, cfg.Providers.OpenAI.RateLimit)
	assert.Equal(t, 3, cfg.Providers.OpenAI.Burst)
	assert.Equal(t, "badger", cfg.Storage.Backend)
	assert.Equal(t, "/var/lib/debate/debate.db", cfg.Storage.Path)
	assert.Equal(t, 48*time.Hour, cfg.Storage.Retention)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.Auth.APIKeys)
}

func TestLoadConfig_ZeroRetentionKept(t *testing.T) {
	clearLegacyEnv(t)
	path := filepath.Join(t.TempDir(), "debate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: sqlite\n  retention: 0s\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Zero(t, cfg.Storage.Retention)
	assert.Zero(t, applyConfigDefaults(cfg).Storage.Retention)
}

func TestLoadConfig_LegacyEnvNames(t *testing.T) {
	clearLegacyEnv(t)
	t.Setenv("OPENAI_API_KEY", "legacy-openai")
	t.Setenv("ANTHROPIC_API_KEY", "legacy-anthropic")
	t.Setenv("DEBATE_PROVIDERS_ANTHROPIC_API_KEY", "prefixed-anthropic")
	t.Setenv("ERROR_LOCALE", "en")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "legacy-openai", cfg.Providers.OpenAI.APIKey)
	assert.Equal(t, "prefixed-anthropic", cfg.Providers.Anthropic.APIKey, "prefixed name wins")
	assert.Equal(t, "en", cfg.ErrorLocale)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestConfig_Redacted(t *testing.T) {
	cfg := Config{
		Providers: ProvidersConfig{
			OpenAI: ProviderConfig{APIKey: "sk-live", Model: "gpt-4o-mini"},
		},
		Auth: AuthConfig{APIKeys: []string{"k1", "k2"}},
	}
	cfg.Storage.RedisPassword = "hunter2"

	red := cfg.Redacted()
	out, err := yaml.Marshal(red)
	require.NoError(t, err)

	assert.NotContains(t, string(out), "sk-live")
	assert.NotContains(t, string(out), "hunter2")
	assert.NotContains(t, string(out), "k1")
	assert.Contains(t, string(out), "gpt-4o-mini")
	assert.Empty(t, red.Providers.Gemini.APIKey, "unset secrets stay empty")
	assert.Equal(t, "sk-live", cfg.Providers.OpenAI.APIKey, "original is untouched")
}
