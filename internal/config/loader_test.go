package config

import (
	"strings"
	"testing"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
telegram:
  adapter: tgbot
  token: "123456789:AAExampleExampleExampleExampleExample12"
engines:
  gtts: {}
  edge:
    timeout_secs: 20
policies:
  fa: [edge, gtts]
cache:
  dir: /tmp/voxtela-cache
  max_entries: 50
bot:
  default_lang: fa
  sudo_users: [111, 222]
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Telegram.Adapter != "tgbot" {
		t.Errorf("adapter = %q", cfg.Telegram.Adapter)
	}
	if cfg.Engines.Edge == nil || cfg.Engines.Edge.TimeoutSecs != 20 {
		t.Errorf("edge engine config = %+v", cfg.Engines.Edge)
	}
	if cfg.Engines.Piper != nil {
		t.Error("piper enabled without config")
	}
	if got := cfg.Policies["fa"]; len(got) != 2 || got[0] != "edge" {
		t.Errorf("fa policy = %v", got)
	}
	if cfg.Bot.DefaultLang != "fa" {
		t.Errorf("default lang = %q", cfg.Bot.DefaultLang)
	}
	// Defaults fill in.
	if cfg.Cache.MaxAgeSecs != 86400 {
		t.Errorf("max_age_secs default = %d", cfg.Cache.MaxAgeSecs)
	}
	if cfg.RateLimit.PerMinute != 10 || cfg.RateLimit.Burst != 3 {
		t.Errorf("rate limit defaults = %+v", cfg.RateLimit)
	}
}

func TestLoadFromReader_UnknownFieldsRejected(t *testing.T) {
	yaml := strings.Replace(validYAML, "log_level: info", "log_levell: info", 1)
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestValidate_MissingToken(t *testing.T) {
	yaml := strings.Replace(validYAML, `token: "123456789:AAExampleExampleExampleExampleExample12"`, `token: ""`, 1)
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("missing token accepted")
	}
}

func TestValidate_UserClientNeedsCredentials(t *testing.T) {
	yaml := strings.Replace(validYAML, "adapter: tgbot", "adapter: gogram", 1)
	_, err := LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("gogram without api_id/api_hash accepted")
	}
	if !strings.Contains(err.Error(), "api_id") || !strings.Contains(err.Error(), "api_hash") {
		t.Fatalf("error %q does not name both missing credentials", err)
	}
}

func TestValidate_UnknownAdapter(t *testing.T) {
	yaml := strings.Replace(validYAML, "adapter: tgbot", "adapter: carrierpigeon", 1)
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("unknown adapter accepted")
	}
}

func TestValidate_NoEngines(t *testing.T) {
	yaml := strings.Replace(validYAML, "engines:\n  gtts: {}\n  edge:\n    timeout_secs: 20\n", "", 1)
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("config without engines accepted")
	}
}

func TestLoadFromReader_ExpandsEnv(t *testing.T) {
	t.Setenv("VOXTELA_TEST_TOKEN", "987654321:BBExampleExampleExampleExampleExample34")
	yaml := strings.Replace(validYAML,
		`token: "123456789:AAExampleExampleExampleExampleExample12"`,
		`token: "${VOXTELA_TEST_TOKEN}"`, 1)
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if !strings.HasPrefix(cfg.Telegram.Token, "987654321:") {
		t.Fatalf("token not expanded: %q", cfg.Telegram.Token)
	}
}
