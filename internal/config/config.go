// Package config provides the configuration schema and loader for the
// voxtela bot service.
package config

// Config is the root configuration structure, typically loaded from a YAML
// file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig        `yaml:"server"`
	Telegram  TelegramConfig      `yaml:"telegram"`
	Engines   EnginesConfig       `yaml:"engines"`
	Policies  map[string][]string `yaml:"policies"`
	Cache     CacheConfig         `yaml:"cache"`
	RateLimit RateLimitConfig     `yaml:"rate_limit"`
	Bot       BotConfig           `yaml:"bot"`
}

// ServerConfig holds process-level settings.
type ServerConfig struct {
	// ListenAddr is the TCP address serving /healthz and /metrics
	// (e.g. ":8080"). Empty disables the HTTP surface.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Valid values: "debug", "info", "warn",
	// "error".
	LogLevel string `yaml:"log_level"`
}

// TelegramConfig selects and configures the transport adapter.
type TelegramConfig struct {
	// Adapter picks the variant: tgbot, telebot, gogram, or gotd.
	Adapter string `yaml:"adapter"`

	// Token is the bot token. ${VAR} references are expanded from the
	// environment.
	Token string `yaml:"token"`

	// APIID and APIHash are required by the gogram and gotd variants.
	APIID   int    `yaml:"api_id"`
	APIHash string `yaml:"api_hash"`

	// SessionDir is where the user-client variants keep session state.
	SessionDir string `yaml:"session_dir"`
}

// EnginesConfig enables and configures the TTS engines. A nil entry leaves
// that engine uninstalled.
type EnginesConfig struct {
	GTTS   *GTTSConfig   `yaml:"gtts"`
	Edge   *EdgeConfig   `yaml:"edge"`
	Piper  *PiperConfig  `yaml:"piper"`
	OpenAI *OpenAIConfig `yaml:"openai"`
}

// GTTSConfig configures the Google Translate engine.
type GTTSConfig struct {
	TimeoutSecs int `yaml:"timeout_secs"`
}

// EdgeConfig configures the Edge read-aloud engine.
type EdgeConfig struct {
	TimeoutSecs int `yaml:"timeout_secs"`
}

// PiperConfig configures the local Piper engine.
type PiperConfig struct {
	// BaseURL is the Piper HTTP server address.
	BaseURL string `yaml:"base_url"`

	// Languages lists the installed voice model languages.
	Languages []string `yaml:"languages"`

	// Voices lists the installed voice model names.
	Voices []string `yaml:"voices"`
}

// OpenAIConfig configures the OpenAI speech engine.
type OpenAIConfig struct {
	// APIKey authenticates against the API. ${VAR} references are expanded.
	APIKey string `yaml:"api_key"`

	// Model selects the speech model (default tts-1).
	Model string `yaml:"model"`
}

// CacheConfig bounds the audio cache.
type CacheConfig struct {
	// Dir is the cache directory. Default "cache".
	Dir string `yaml:"dir"`

	// MaxEntries bounds the number of cached blobs. Default 100.
	MaxEntries int `yaml:"max_entries"`

	// MaxAgeSecs bounds blob age. Default 86400 (one day).
	MaxAgeSecs int `yaml:"max_age_secs"`
}

// RateLimitConfig bounds per-user request rates.
type RateLimitConfig struct {
	// PerMinute is the sustained request rate per user. Default 10.
	PerMinute int `yaml:"per_minute"`

	// Burst is the short-term burst capacity. Default 3.
	Burst int `yaml:"burst"`
}

// BotConfig holds orchestrator behaviour.
type BotConfig struct {
	// DefaultLang is used when no prefix or script detection decides.
	// Default "en".
	DefaultLang string `yaml:"default_lang"`

	// SudoUsers are the privileged user ids.
	SudoUsers []int64 `yaml:"sudo_users"`

	// CacheEnabled starts the cache toggle on. Default true.
	CacheEnabled *bool `yaml:"cache_enabled"`

	// AudioProcessing starts the conversion toggle on. Default true.
	AudioProcessing *bool `yaml:"audio_processing"`
}
