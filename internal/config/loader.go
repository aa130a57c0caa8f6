package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// adapterNames lists the selectable transport variants; the last two are the
// user-client style needing api_id and api_hash.
var adapterNames = []string{"tgbot", "telebot", "gogram", "gotd"}

// userClientAdapters need the MTProto credential pair.
var userClientAdapters = []string{"gogram", "gotd"}

// validLogLevels for ServerConfig.LogLevel.
var validLogLevels = []string{"", "debug", "info", "warn", "error"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands environment
// references in secrets, applies defaults, and validates the result. Useful
// in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	cfg.Telegram.Token = os.ExpandEnv(cfg.Telegram.Token)
	cfg.Telegram.APIHash = os.ExpandEnv(cfg.Telegram.APIHash)
	if cfg.Engines.OpenAI != nil {
		cfg.Engines.OpenAI.APIKey = os.ExpandEnv(cfg.Engines.OpenAI.APIKey)
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero values with their documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.Telegram.Adapter == "" {
		cfg.Telegram.Adapter = "tgbot"
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = "cache"
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 100
	}
	if cfg.Cache.MaxAgeSecs == 0 {
		cfg.Cache.MaxAgeSecs = 86400
	}
	if cfg.RateLimit.PerMinute == 0 {
		cfg.RateLimit.PerMinute = 10
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 3
	}
	if cfg.Bot.DefaultLang == "" {
		cfg.Bot.DefaultLang = "en"
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every validation failure found.
func Validate(cfg *Config) error {
	var errs []error

	if !slices.Contains(validLogLevels, cfg.Server.LogLevel) {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if !slices.Contains(adapterNames, cfg.Telegram.Adapter) {
		errs = append(errs, fmt.Errorf("telegram.adapter %q is invalid; valid values: %v", cfg.Telegram.Adapter, adapterNames))
	}
	if cfg.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if slices.Contains(userClientAdapters, cfg.Telegram.Adapter) {
		if cfg.Telegram.APIID == 0 {
			errs = append(errs, fmt.Errorf("telegram.api_id is required for the %s adapter", cfg.Telegram.Adapter))
		}
		if cfg.Telegram.APIHash == "" {
			errs = append(errs, fmt.Errorf("telegram.api_hash is required for the %s adapter", cfg.Telegram.Adapter))
		}
	}

	if cfg.Engines.GTTS == nil && cfg.Engines.Edge == nil && cfg.Engines.Piper == nil && cfg.Engines.OpenAI == nil {
		errs = append(errs, errors.New("engines: at least one engine must be configured"))
	}
	if cfg.Engines.OpenAI != nil && cfg.Engines.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("engines.openai.api_key is required when the engine is enabled"))
	}

	if cfg.Cache.MaxEntries < 0 {
		errs = append(errs, errors.New("cache.max_entries must not be negative"))
	}
	if cfg.RateLimit.PerMinute < 0 || cfg.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit values must not be negative"))
	}

	return errors.Join(errs...)
}
