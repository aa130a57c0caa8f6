// Package bot wires the transport adapter, engine registry, smart router,
// audio cache, and rate-limit gate into the running orchestrator. One Bot
// owns one of each; there are no package-level singletons.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxtela/voxtela/internal/cache"
	"github.com/voxtela/voxtela/internal/engine"
	"github.com/voxtela/voxtela/internal/observe"
	"github.com/voxtela/voxtela/internal/ratelimit"
	"github.com/voxtela/voxtela/internal/router"
	"github.com/voxtela/voxtela/internal/telegram"
)

// inbound is the normalized message type all handlers receive.
type inbound = telegram.InboundMessage

// captionLimit bounds the caption echoed back on voice replies.
const captionLimit = 100

// Options carries the orchestrator's tunables.
type Options struct {
	// DefaultLang is the language used when neither a prefix nor RTL
	// detection decides. Default "en".
	DefaultLang string

	// SudoUsers are the privileged user ids.
	SudoUsers []int64

	// CacheEnabled starts the cache toggle on. Default true.
	CacheEnabled bool

	// AudioProcessing starts the conversion toggle on. Default true.
	AudioProcessing bool

	// Requirements constrain engine choice for plain requests. When nil the
	// router excludes offline-only engines, matching interactive use.
	Requirements engine.Requirements

	// Metrics is optional; nil records nothing.
	Metrics *observe.Metrics
}

// Bot is the orchestrator.
type Bot struct {
	adapter  telegram.Adapter
	registry *engine.Registry
	router   *router.Router
	cache    *cache.Cache
	gate     *ratelimit.Gate
	metrics  *observe.Metrics

	commands  *CommandRegistry
	callbacks *CallbackRegistry
	stats     *Stats
	logger    *slog.Logger

	defaultLang  string
	requirements engine.Requirements
	sudo         map[int64]bool

	running      atomic.Bool
	cacheEnabled atomic.Bool
	audioProc    atomic.Bool
	restart      chan struct{}
	shutdown     context.CancelFunc
}

// New wires the orchestrator: handlers are bound to the adapter and the
// default command/callback tables are registered.
func New(adapter telegram.Adapter, registry *engine.Registry, rt *router.Router, ch *cache.Cache, gate *ratelimit.Gate, opts Options) *Bot {
	if opts.DefaultLang == "" {
		opts.DefaultLang = "en"
	}
	reqs := opts.Requirements
	if reqs == nil {
		reqs = engine.Requirements{engine.ReqOffline: false}
	}
	b := &Bot{
		adapter:      adapter,
		registry:     registry,
		router:       rt,
		cache:        ch,
		gate:         gate,
		metrics:      opts.Metrics,
		commands:     NewCommandRegistry(),
		callbacks:    NewCallbackRegistry(),
		stats:        &Stats{},
		logger:       slog.Default().With("component", "bot"),
		defaultLang:  opts.DefaultLang,
		requirements: reqs,
		sudo:         make(map[int64]bool, len(opts.SudoUsers)),
		restart:      make(chan struct{}, 1),
	}
	for _, id := range opts.SudoUsers {
		b.sudo[id] = true
		gate.Exempt(id)
	}
	b.cacheEnabled.Store(opts.CacheEnabled)
	b.audioProc.Store(opts.AudioProcessing)

	registerDefaultCommands(b.commands)
	registerDefaultCallbacks(b.callbacks)

	adapter.SetMessageHandler(b.handleMessage)
	adapter.SetCallbackHandler(b.handleCallback)
	adapter.SetErrorHandler(b.handleTransportError)
	b.running.Store(true)
	return b
}

// Commands exposes the command registry for extension.
func (b *Bot) Commands() *CommandRegistry { return b.commands }

// Callbacks exposes the callback registry for extension.
func (b *Bot) Callbacks() *CallbackRegistry { return b.callbacks }

// Stats exposes the bot counters.
func (b *Bot) Stats() *Stats { return b.stats }

// Router exposes the smart router (admin surfaces read its stats).
func (b *Bot) Router() *router.Router { return b.router }

// Registry exposes the engine registry.
func (b *Bot) Registry() *engine.Registry { return b.registry }

// Cache exposes the audio cache.
func (b *Bot) Cache() *cache.Cache { return b.cache }

// IsSudo reports whether userID is in the privileged set.
func (b *Bot) IsSudo(userID int64) bool { return b.sudo[userID] }

// Run starts the adapter and blocks until ctx is cancelled or Shutdown is
// requested. The adapter's own loop runs as a background task; a /restart
// admin command tears it down and starts it again.
func (b *Bot) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	b.shutdown = cancel
	b.running.Store(true)
	defer b.running.Store(false)

	for {
		g, runCtx := errgroup.WithContext(ctx)
		adapterCtx, stopAdapter := context.WithCancel(runCtx)
		g.Go(func() error {
			err := b.adapter.Start(adapterCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("bot: adapter: %w", err)
			}
			return nil
		})

		restart := false
		select {
		case <-ctx.Done():
		case <-b.restart:
			restart = true
			b.logger.Info("restarting adapter")
		}
		stopAdapter()

		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := b.adapter.Stop(stopCtx); err != nil {
			b.logger.Warn("adapter stop", "error", err)
		}
		stopCancel()

		if err := g.Wait(); err != nil {
			return err
		}
		if !restart {
			return ctx.Err()
		}
	}
}

// Shutdown stops the run loop. Safe to call from handlers.
func (b *Bot) Shutdown() {
	b.running.Store(false)
	if b.shutdown != nil {
		b.shutdown()
	}
}

// requestRestart asks the run loop to bounce the adapter.
func (b *Bot) requestRestart() {
	select {
	case b.restart <- struct{}{}:
	default:
	}
}

// ── inbound handling ─────────────────────────────────────────────────────────

// handleMessage is the adapter's message callback.
func (b *Bot) handleMessage(ctx context.Context, msg *inbound) {
	if msg == nil || !b.running.Load() {
		return
	}
	b.stats.messages.Add(1)
	b.metrics.RecordMessage(ctx, msg.Kind.String())

	if msg.Kind != telegram.KindText || strings.TrimSpace(msg.Text) == "" {
		return
	}
	if strings.HasPrefix(msg.Text, "/") && !telegram.IsTTSCommand(msg.Text) {
		if b.commands.Dispatch(ctx, b, msg) {
			return
		}
		// Unknown slash commands are ignored rather than spoken.
		return
	}

	userLang := b.userLang(msg)
	if msg.From != nil {
		if ok, wait := b.gate.Allow(msg.From.ID); !ok {
			b.reply(ctx, msg, textf("rate_limited", userLang, wait.Round(time.Second)))
			return
		}
	}

	cmd := telegram.ParseCommand(msg.Text)
	if !cmd.LangExplicit && cmd.Lang == "en" && b.defaultLang != "en" {
		// The parser defaults to English; honor the configured fallback when
		// neither a prefix nor RTL detection overrode it.
		cmd.Lang = telegram.DetectLanguage(cmd.Text, b.defaultLang)
	}
	if cmd.Text == "" {
		b.reply(ctx, msg, text("empty_text", userLang))
		return
	}
	b.processTTS(ctx, msg, cmd)
}

// processTTS runs one synthesis request end to end: status message, cache
// lookup, routed synthesis on miss, optional container conversion, voice
// reply, status cleanup, stats.
func (b *Bot) processTTS(ctx context.Context, msg *inbound, cmd telegram.Command) {
	started := time.Now()
	done := b.metrics.RequestStarted(ctx)
	defer done()
	b.stats.synthRequests.Add(1)

	userLang := b.userLang(msg)
	status, err := b.adapter.SendMessage(ctx, msg.ChatID, text("processing", userLang), &telegram.SendOptions{ReplyTo: msg.ID})
	if err != nil {
		b.reportError(fmt.Errorf("bot: send status: %w", err))
	}

	fp := cache.Fingerprint(cmd.Text, cmd.Lang, cmd.Engine)
	var (
		data   []byte
		format string
		hit    bool
	)
	if b.cacheEnabled.Load() {
		data, format, hit = b.cache.GetByKey(fp)
	}
	b.metrics.RecordCacheLookup(ctx, hit)
	if hit {
		b.stats.cacheHits.Add(1)
	} else {
		b.stats.cacheMisses.Add(1)

		audioOut, engineName, synthErr := b.router.Synthesize(ctx, router.Request{
			Text:         cmd.Text,
			Lang:         cmd.Lang,
			Voice:        cmd.Voice,
			Rate:         cmd.Rate,
			Pitch:        cmd.Pitch,
			Engine:       cmd.Engine,
			Requirements: b.requirements,
		})
		b.metrics.RecordSynthesis(ctx, engineName, time.Since(started), synthErr)
		if synthErr != nil {
			b.stats.engineFailures.Add(1)
			b.replySynthesisError(ctx, msg, status, cmd, synthErr)
			return
		}
		data, format = audioOut.Data, audioOut.Format
		if b.cacheEnabled.Load() {
			b.cache.Put(fp, data, format, map[string]string{
				"engine": engineName,
				"lang":   cmd.Lang,
			})
		}
	}

	b.sendVoice(ctx, msg, data, format)

	if status != nil {
		b.adapter.DeleteMessage(ctx, msg.ChatID, status.ID)
	}
	b.stats.addProcessing(time.Since(started))
}

// replySynthesisError translates router errors into user-facing replies,
// editing the status message in place when possible.
func (b *Bot) replySynthesisError(ctx context.Context, msg *inbound, status *inbound, cmd telegram.Command, err error) {
	userLang := b.userLang(msg)
	var reply string
	switch {
	case errors.Is(err, router.ErrEngineNotFound):
		reply = text("engine_not_found", userLang)
		if s := b.suggestEngine(cmd.Engine); s != "" {
			reply += " " + s
		}
	case errors.Is(err, router.ErrAllEnginesFailed):
		reply = text("tts_failed", userLang)
	case errors.Is(err, context.Canceled):
		return
	default:
		reply = text("tts_failed", userLang)
	}
	if status != nil {
		if _, editErr := b.adapter.EditMessageText(ctx, msg.ChatID, status.ID, reply); editErr == nil {
			return
		}
	}
	b.reply(ctx, msg, reply)
}

// sendVoice converts (when enabled and supported) and ships the audio as a
// voice note with a truncated caption and a probed duration.
func (b *Bot) sendVoice(ctx context.Context, msg *inbound, data []byte, format string) {
	sendData, duration := b.prepareVoice(data, format)
	_, err := b.adapter.SendVoice(ctx, msg.ChatID, sendData, &telegram.VoiceOptions{
		Caption:  truncate(msg.Text, captionLimit),
		ReplyTo:  msg.ID,
		Duration: duration,
	})
	if err != nil {
		b.reportError(fmt.Errorf("bot: send voice: %w", err))
		b.reply(ctx, msg, text("tts_failed", b.userLang(msg)))
	}
}

// reply sends a plain text reply, logging delivery failures.
func (b *Bot) reply(ctx context.Context, msg *inbound, replyText string) {
	if _, err := b.adapter.SendMessage(ctx, msg.ChatID, replyText, &telegram.SendOptions{ReplyTo: msg.ID}); err != nil {
		b.reportError(fmt.Errorf("bot: send reply: %w", err))
	}
}

// handleCallback is the adapter's callback-query callback.
func (b *Bot) handleCallback(ctx context.Context, msg *inbound) {
	if msg == nil || msg.Text == "" {
		return
	}
	if !b.callbacks.Dispatch(ctx, b, msg) {
		b.logger.Debug("unhandled callback", "payload", msg.Text)
	}
}

// handleTransportError is the adapter's error callback.
func (b *Bot) handleTransportError(err error) {
	b.logger.Error("transport error", "error", err)
}

// reportError logs handler-level errors. Nothing propagates back into the
// upstream client libraries.
func (b *Bot) reportError(err error) {
	b.logger.Error("handler error", "error", err)
}

// userLang picks the language for user-facing replies from the sender's
// client language, falling back to the configured default.
func (b *Bot) userLang(msg *inbound) string {
	if msg.From != nil && msg.From.Language != "" {
		return msg.From.Language
	}
	return b.defaultLang
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
