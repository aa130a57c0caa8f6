package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// registerDefaultCommands fills the command table with the stock surface.
func registerDefaultCommands(r *CommandRegistry) {
	r.Register("start", cmdStart, false)
	r.Register("help", cmdHelp, false)
	r.Register("status", cmdStatus, false)
	r.Register("engines", cmdEngines, false)
	r.Register("voices", cmdVoices, false)
	r.Register("languages", cmdLanguages, false)

	r.Register("stats", cmdStats, true)
	r.Register("reset_stats", cmdResetStats, true)
	r.Register("clear_cache", cmdClearCache, true)
	r.Register("restart", cmdRestart, true)
	r.Register("shutdown", cmdShutdown, true)
}

func cmdStart(ctx context.Context, b *Bot, msg *inbound) error {
	b.reply(ctx, msg, "Send me text and I reply with a voice note.\n"+
		"Try a language prefix like [fa]: or /help for the full grammar.")
	return nil
}

func cmdHelp(ctx context.Context, b *Bot, msg *inbound) error {
	var sb strings.Builder
	sb.WriteString("Send plain text or /tts, /speak, /voice followed by text.\n\n")
	sb.WriteString("Prefixes (in any combination, before the text):\n")
	sb.WriteString("  [fa]:            target language\n")
	sb.WriteString("  {edge}           pin an engine\n")
	sb.WriteString("  (voice:NAME)     pin a voice\n")
	sb.WriteString("  +10% / +2st      speaking rate\n")
	sb.WriteString("  @+2st            pitch shift\n\n")
	sb.WriteString("Commands: /status /engines /voices /languages")
	b.reply(ctx, msg, sb.String())
	return nil
}

func cmdStatus(ctx context.Context, b *Bot, msg *inbound) error {
	snap := b.stats.Snapshot()
	cacheState := "off"
	if b.cacheEnabled.Load() {
		cacheState = "on"
	}
	audioState := "off"
	if b.audioProc.Load() {
		audioState = "on"
	}
	b.reply(ctx, msg, fmt.Sprintf(
		"Adapter: %s\nEngines: %s\nCache: %s\nAudio processing: %s\nMessages: %d\nSynthesis requests: %d",
		b.adapter.Name(),
		strings.Join(b.registry.Names(), ", "),
		cacheState,
		audioState,
		snap.Messages,
		snap.SynthRequests,
	))
	return nil
}

func cmdEngines(ctx context.Context, b *Bot, msg *inbound) error {
	var sb strings.Builder
	sb.WriteString("Installed engines:\n")
	for _, name := range b.registry.Names() {
		desc, _ := b.registry.Describe(name)
		traits := []string{fmt.Sprintf("%d languages", len(desc.Languages))}
		if desc.Offline {
			traits = append(traits, "offline")
		}
		if desc.SupportsSSML {
			traits = append(traits, "ssml")
		}
		if desc.SupportsRate {
			traits = append(traits, "rate")
		}
		if desc.SupportsPitch {
			traits = append(traits, "pitch")
		}
		fmt.Fprintf(&sb, "  %s (%s)\n", name, strings.Join(traits, ", "))
	}
	sb.WriteString("\nCurrent ranking by language:\n")
	for _, lang := range b.registry.PolicyLanguages() {
		ranked := b.router.Ranking(lang)
		parts := make([]string, len(ranked))
		for i, r := range ranked {
			parts[i] = fmt.Sprintf("%s (%.2f)", r.Name, r.Score)
		}
		fmt.Fprintf(&sb, "  %s: %s\n", lang, strings.Join(parts, " > "))
	}
	b.reply(ctx, msg, sb.String())
	return nil
}

func cmdVoices(ctx context.Context, b *Bot, msg *inbound) error {
	// An optional argument filters to one engine: /voices edge
	_, arg, _ := strings.Cut(strings.TrimSpace(msg.Text), " ")
	arg = strings.TrimSpace(arg)

	var sb strings.Builder
	for _, name := range b.registry.Names() {
		if arg != "" && name != arg {
			continue
		}
		desc, _ := b.registry.Describe(name)
		if len(desc.Voices) == 0 {
			fmt.Fprintf(&sb, "%s: any voice\n", name)
			continue
		}
		voices := make([]string, 0, len(desc.Voices))
		for v := range desc.Voices {
			voices = append(voices, v)
		}
		sort.Strings(voices)
		fmt.Fprintf(&sb, "%s: %s\n", name, strings.Join(voices, ", "))
	}
	if sb.Len() == 0 {
		sb.WriteString("No such engine.")
	}
	b.reply(ctx, msg, sb.String())
	return nil
}

func cmdLanguages(ctx context.Context, b *Bot, msg *inbound) error {
	b.reply(ctx, msg, "Supported languages: "+strings.Join(b.registry.Languages(), ", "))
	return nil
}

// ── admin commands ───────────────────────────────────────────────────────────

func cmdStats(ctx context.Context, b *Bot, msg *inbound) error {
	snap := b.stats.Snapshot()
	cacheStats := b.cache.Stats()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Messages: %d\nSynthesis requests: %d\nEngine failures: %d\n",
		snap.Messages, snap.SynthRequests, snap.EngineFailures)
	fmt.Fprintf(&sb, "Avg processing: %.2fs\n", snap.AvgProcessingSecs)
	fmt.Fprintf(&sb, "Cache: %d entries, %.1f MB, hit rate %.0f%%\n",
		cacheStats.Entries, cacheStats.TotalMB, cacheStats.HitRate*100)

	engines := b.router.AllStats()
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		es := engines[name]
		fmt.Fprintf(&sb, "%s: %d req, %.0f%% ok, %.2fs avg",
			name, es.Requests, es.SuccessRate*100, es.AvgLatencySecs)
		if es.LastError != "" {
			fmt.Fprintf(&sb, ", last error %s", es.LastError)
		}
		sb.WriteString("\n")
	}
	b.reply(ctx, msg, sb.String())
	return nil
}

func cmdResetStats(ctx context.Context, b *Bot, msg *inbound) error {
	b.stats.Reset()
	b.router.ResetStats()
	b.cache.ResetStats()
	b.reply(ctx, msg, text("stats_reset", b.userLang(msg)))
	return nil
}

func cmdClearCache(ctx context.Context, b *Bot, msg *inbound) error {
	b.cache.Clear()
	b.reply(ctx, msg, text("cache_cleared", b.userLang(msg)))
	return nil
}

func cmdRestart(ctx context.Context, b *Bot, msg *inbound) error {
	b.reply(ctx, msg, text("restarting", b.userLang(msg)))
	b.requestRestart()
	return nil
}

func cmdShutdown(ctx context.Context, b *Bot, msg *inbound) error {
	b.reply(ctx, msg, text("shutting_down", b.userLang(msg)))
	b.Shutdown()
	return nil
}
