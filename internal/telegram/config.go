package telegram

import (
	"errors"
	"fmt"
	"regexp"
)

// Config carries the credentials an adapter variant needs. Token is always
// required; the user-client variants additionally need APIID and APIHash.
type Config struct {
	// Token is the bot token from @BotFather.
	Token string

	// APIID and APIHash authenticate the MTProto user-client variants.
	APIID   int
	APIHash string

	// SessionDir is where user-client variants persist their session state.
	SessionDir string
}

// tokenShapeRe matches the documented bot-token shape:
// digits, a colon, then 35 or more base64ish characters.
var tokenShapeRe = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]{35,}$`)

// ValidTokenShape reports whether token looks like a Telegram bot token.
// Only the telebot variant enforces this; the others treat the token opaquely.
func ValidTokenShape(token string) bool {
	return tokenShapeRe.MatchString(token)
}

// Validate checks that the credentials required for the named variant are
// present. userClient marks variants that speak MTProto directly.
func (c Config) Validate(variant string, userClient bool) error {
	var errs []error
	if c.Token == "" {
		errs = append(errs, fmt.Errorf("telegram: %s: bot token is required", variant))
	}
	if userClient {
		if c.APIID == 0 {
			errs = append(errs, fmt.Errorf("telegram: %s: api_id is required", variant))
		}
		if c.APIHash == "" {
			errs = append(errs, fmt.Errorf("telegram: %s: api_hash is required", variant))
		}
	}
	return errors.Join(errs...)
}
