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
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. DEBATE_STORAGE_BACKEND
// sets storage.backend.
const EnvPrefix = "DEBATE"

// legacyEnv maps config keys to the unprefixed variable names deployments
// already export. A DEBATE_ variable wins when both are set.
var legacyEnv = map[string]string{
	"providers.openai.api_key":    "OPENAI_API_KEY",
	"providers.deepseek.api_key":  "DEEPSEEK_API_KEY",
	"providers.gemini.api_key":    "GEMINI_API_KEY",
	"providers.anthropic.api_key": "ANTHROPIC_API_KEY",
	"providers.ollama.base_url":   "OLLAMA_BASE_URL",
	"error_locale":                "ERROR_LOCALE",
}

// LoadConfig builds the configuration from defaults, an optional YAML file
// and the environment, in increasing precedence.
//
// # Inputs
//
//   - path: YAML file to read. Empty skips the file.
//
// # Outputs
//
//   - Config: The merged configuration, before applyConfigDefaults.
//   - error: Non-nil if the file cannot be read or a value cannot be decoded.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it during
// Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 12210)
	v.SetDefault("gin_mode", "release")
	v.SetDefault("default_provider", "dummy")
	v.SetDefault("error_locale", "es")
	v.SetDefault("request_timeout", 90*time.Second)
	v.SetDefault("purge_interval", time.Hour)

	for _, name := range []string{"openai", "deepseek", "gemini", "anthropic", "ollama"} {
		prefix := "providers." + name + "."
		v.SetDefault(prefix+"api_key", "")
		v.SetDefault(prefix+"model", "")
		v.SetDefault(prefix+"base_url", "")
		v.SetDefault(prefix+"timeout", time.Duration(0))
		v.SetDefault(prefix+"rate_limit", 0.0)
		v.SetDefault(prefix+"burst", 0)
	}

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.redis_addr", "")
	v.SetDefault("storage.redis_password", "")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("storage.retention", 720*time.Hour)

	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.stdout", false)
	v.SetDefault("otel.service_name", "debate-orchestrator")

	v.SetDefault("auth.api_keys", []string{})

	v.SetDefault("events.backend", "none")
	v.SetDefault("events.topic", "debate.turns")
	v.SetDefault("events.redis_addr", "")
	v.SetDefault("events.redis_password", "")
	v.SetDefault("events.redis_db", 0)
	v.SetDefault("events.consumer_group", "")

	v.SetDefault("log_level", "info")
}

// Redacted returns a copy with every secret replaced, safe to print or log.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	out := c
	out.Providers.OpenAI.APIKey = mask(c.Providers.OpenAI.APIKey)
	out.Providers.DeepSeek.APIKey = mask(c.Providers.DeepSeek.APIKey)
	out.Providers.Gemini.APIKey = mask(c.Providers.Gemini.APIKey)
	out.Providers.Anthropic.APIKey = mask(c.Providers.Anthropic.APIKey)
	out.Providers.Ollama.APIKey = mask(c.Providers.Ollama.APIKey)
	out.Storage.RedisPassword = mask(c.Storage.RedisPassword)
	out.Events.RedisPassword = mask(c.Events.RedisPassword)
	out.Auth.APIKeys = make([]string, len(c.Auth.APIKeys))
	for i, k := range c.Auth.APIKeys {
		out.Auth.APIKeys[i] = mask(k)
	}
	return out
}

// Effective returns the configuration New will run with.
func (c Config) Effective() Config {
	return applyConfigDefaults(c)
}
