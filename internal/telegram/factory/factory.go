// Package factory constructs transport adapters by variant name. It lives
// outside the telegram package so the variant packages can depend on the
// shared types without a cycle.
//
// Credential validation happens here, at instantiation, not at call time:
// the two user-client variants refuse to build without an API id/hash pair.
package factory

import (
	"fmt"
	"sort"

	"github.com/voxtela/voxtela/internal/telegram"
	"github.com/voxtela/voxtela/internal/telegram/gogram"
	"github.com/voxtela/voxtela/internal/telegram/gotd"
	"github.com/voxtela/voxtela/internal/telegram/telebot"
	"github.com/voxtela/voxtela/internal/telegram/tgbot"
)

// constructors maps variant names to adapter builders.
var constructors = map[string]func(telegram.Config) (telegram.Adapter, error){
	"tgbot":   func(cfg telegram.Config) (telegram.Adapter, error) { return tgbot.New(cfg) },
	"telebot": func(cfg telegram.Config) (telegram.Adapter, error) { return telebot.New(cfg) },
	"gogram":  func(cfg telegram.Config) (telegram.Adapter, error) { return gogram.New(cfg) },
	"gotd":    func(cfg telegram.Config) (telegram.Adapter, error) { return gotd.New(cfg) },
}

// New builds the adapter variant selected by name.
func New(name string, cfg telegram.Config) (telegram.Adapter, error) {
	build, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("telegram: unknown adapter %q (have %v)", name, Variants())
	}
	return build(cfg)
}

// Variants returns the selectable adapter names, sorted.
func Variants() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
