package bot

import (
	"context"
	"fmt"
	"strings"
)

// Callback payloads encode state changes as strings (engine_edge:fa,
// settings_cache_off, admin_clear_cache). Each payload is parsed once, here,
// into a small tagged value and applied through the same setters the admin
// commands use; the handlers never re-parse strings downstream.

// defaultPolicyLanguages are the languages an engine promotion applies to
// when the payload does not name one.
var defaultPolicyLanguages = []string{"en", "fa", "ar"}

// registerDefaultCallbacks fills the callback table with the stock families.
func registerDefaultCallbacks(r *CallbackRegistry) {
	r.RegisterPrefix("engine_", cbEngineSelect, false)
	r.RegisterPrefix("settings_", cbSettings, false)
	r.RegisterPrefix("admin_", cbAdmin, true)
}

// engineSelection is the parsed form of an engine_<name>[:lang] payload.
type engineSelection struct {
	engine string
	lang   string // empty means "the default language set"
}

func parseEngineSelection(payload string) (engineSelection, error) {
	rest := strings.TrimPrefix(payload, "engine_")
	if rest == "" || rest == payload {
		return engineSelection{}, fmt.Errorf("bot: malformed engine callback %q", payload)
	}
	name, lang, _ := strings.Cut(rest, ":")
	if name == "" {
		return engineSelection{}, fmt.Errorf("bot: malformed engine callback %q", payload)
	}
	return engineSelection{engine: name, lang: lang}, nil
}

// cbEngineSelect promotes an engine to the front of one language's policy, or
// of every default language when none is given.
func cbEngineSelect(ctx context.Context, b *Bot, msg *inbound, payload string) error {
	sel, err := parseEngineSelection(payload)
	if err != nil {
		return err
	}
	langs := defaultPolicyLanguages
	scope := "all languages"
	if sel.lang != "" {
		langs = []string{sel.lang}
		scope = sel.lang
	}
	for _, lang := range langs {
		b.registry.Promote(lang, sel.engine)
	}
	if msg.ChatID != 0 {
		b.reply(ctx, msg, textf("engine_selected", b.userLang(msg), sel.engine, scope))
	}
	return nil
}

// settingToggle is the parsed form of a settings_<key>_<on|off> payload.
type settingToggle struct {
	key string
	on  bool
}

func parseSettingToggle(payload string) (settingToggle, error) {
	rest := strings.TrimPrefix(payload, "settings_")
	key, state, found := strings.Cut(rest, "_")
	if !found || (state != "on" && state != "off") {
		return settingToggle{}, fmt.Errorf("bot: malformed settings callback %q", payload)
	}
	return settingToggle{key: key, on: state == "on"}, nil
}

// cbSettings flips the cache / audio-processing toggles.
func cbSettings(ctx context.Context, b *Bot, msg *inbound, payload string) error {
	toggle, err := parseSettingToggle(payload)
	if err != nil {
		return err
	}
	switch toggle.key {
	case "cache":
		b.cacheEnabled.Store(toggle.on)
	case "audio":
		b.audioProc.Store(toggle.on)
	default:
		return fmt.Errorf("bot: unknown setting %q", toggle.key)
	}
	state := "off"
	if toggle.on {
		state = "on"
	}
	if msg.ChatID != 0 {
		b.reply(ctx, msg, textf("setting_updated", b.userLang(msg), toggle.key, state))
	}
	return nil
}

// cbAdmin maps admin_<action> payloads onto the matching admin commands.
func cbAdmin(ctx context.Context, b *Bot, msg *inbound, payload string) error {
	action := strings.TrimPrefix(payload, "admin_")
	switch action {
	case "stats":
		return cmdStats(ctx, b, msg)
	case "reset_stats":
		return cmdResetStats(ctx, b, msg)
	case "clear_cache":
		return cmdClearCache(ctx, b, msg)
	case "restart":
		return cmdRestart(ctx, b, msg)
	case "shutdown":
		return cmdShutdown(ctx, b, msg)
	default:
		return fmt.Errorf("bot: unknown admin action %q", action)
	}
}
