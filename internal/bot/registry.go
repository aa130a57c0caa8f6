package bot

import (
	"context"
	"strings"
	"sync"
)

// CommandFunc handles one slash command. A nil return means the command was
// handled; an error is forwarded to the bot's error handler and the command
// counts as not handled.
type CommandFunc func(ctx context.Context, b *Bot, msg *inbound) error

// CallbackFunc handles one callback payload.
type CallbackFunc func(ctx context.Context, b *Bot, msg *inbound, payload string) error

// CommandRegistry is the string→handler dispatch table for slash commands,
// with an admin-only subset.
type CommandRegistry struct {
	mu       sync.RWMutex
	handlers map[string]CommandFunc
	admin    map[string]bool
}

// NewCommandRegistry creates an empty command registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		handlers: make(map[string]CommandFunc),
		admin:    make(map[string]bool),
	}
}

// Register adds a command handler. adminOnly commands are ignored for
// non-privileged senders.
func (r *CommandRegistry) Register(name string, fn CommandFunc, adminOnly bool) {
	key := normalizeCommandKey(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[key] = fn
	r.admin[key] = adminOnly
}

// Names returns the registered command names; admin selects which subset.
func (r *CommandRegistry) Names(admin bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name := range r.handlers {
		if r.admin[name] == admin {
			names = append(names, name)
		}
	}
	return names
}

// Dispatch routes msg.Text to its handler. It reports whether the message
// was handled; handler errors go to the bot's error handler and count as not
// handled.
func (r *CommandRegistry) Dispatch(ctx context.Context, b *Bot, msg *inbound) bool {
	token, _, _ := strings.Cut(strings.TrimSpace(msg.Text), " ")
	key := normalizeCommandKey(token)
	if key == "" {
		return false
	}

	r.mu.RLock()
	fn, ok := r.handlers[key]
	adminOnly := r.admin[key]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if adminOnly && (msg.From == nil || !b.IsSudo(msg.From.ID)) {
		return false
	}
	if err := fn(ctx, b, msg); err != nil {
		b.reportError(err)
		return false
	}
	return true
}

// normalizeCommandKey lowercases a command token and strips the leading slash
// and any @botname suffix.
func normalizeCommandKey(token string) string {
	token = strings.TrimPrefix(token, "/")
	token, _, _ = strings.Cut(token, "@")
	return strings.ToLower(token)
}

// CallbackRegistry dispatches callback payloads to handlers, matching exact
// keys first and then registered prefixes.
type CallbackRegistry struct {
	mu       sync.RWMutex
	exact    map[string]CallbackFunc
	prefixes []prefixEntry
	admin    map[string]bool
}

type prefixEntry struct {
	prefix string
	fn     CallbackFunc
}

// NewCallbackRegistry creates an empty callback registry.
func NewCallbackRegistry() *CallbackRegistry {
	return &CallbackRegistry{
		exact: make(map[string]CallbackFunc),
		admin: make(map[string]bool),
	}
}

// Register adds an exact-match callback handler.
func (r *CallbackRegistry) Register(key string, fn CallbackFunc, adminOnly bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exact[key] = fn
	r.admin[key] = adminOnly
}

// RegisterPrefix adds a handler for every payload starting with prefix.
func (r *CallbackRegistry) RegisterPrefix(prefix string, fn CallbackFunc, adminOnly bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes = append(r.prefixes, prefixEntry{prefix: prefix, fn: fn})
	r.admin[prefix] = adminOnly
}

// Dispatch routes a callback payload. Semantics mirror
// [CommandRegistry.Dispatch].
func (r *CallbackRegistry) Dispatch(ctx context.Context, b *Bot, msg *inbound) bool {
	payload := msg.Text
	r.mu.RLock()
	fn, ok := r.exact[payload]
	adminKey := payload
	if !ok {
		for _, e := range r.prefixes {
			if strings.HasPrefix(payload, e.prefix) {
				fn, ok = e.fn, true
				adminKey = e.prefix
				break
			}
		}
	}
	adminOnly := r.admin[adminKey]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if adminOnly && (msg.From == nil || !b.IsSudo(msg.From.ID)) {
		return false
	}
	if err := fn(ctx, b, msg, payload); err != nil {
		b.reportError(err)
		return false
	}
	return true
}
