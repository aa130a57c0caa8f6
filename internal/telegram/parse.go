package telegram

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

// Command is the parsed form of a TTS message payload.
type Command struct {
	// Text is the remaining payload after recognized prefixes are stripped.
	Text string

	// Lang is the target language tag. Defaults to "en" unless a [xx]:
	// prefix or RTL detection set it.
	Lang string

	// LangExplicit reports whether a [xx]: prefix set Lang. When false the
	// caller may substitute its own fallback language.
	LangExplicit bool

	// Engine pins a specific engine when a {name} prefix was present.
	Engine string

	// Voice pins a provider voice when a (voice:NAME) prefix was present.
	Voice string

	// Rate is the speaking-rate multiplier in [0.5, 2.0]. Defaults to 1.0.
	Rate float64

	// Pitch is the pitch shift in semitones, in [-12, +12]. Defaults to 0.
	Pitch float64
}

// ttsCommands are the slash tokens that trigger synthesis. The Persian
// aliases match the bot's largest user base.
var ttsCommands = map[string]bool{
	"/tts":   true,
	"/speak": true,
	"/voice": true,
	"/صدا":   true,
	"/تکلم":  true,
}

// IsTTSCommand reports whether the first whitespace-delimited token of text
// is one of the TTS trigger commands (with or without a @botname suffix).
func IsTTSCommand(text string) bool {
	token, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	token, _, _ = strings.Cut(token, "@")
	return ttsCommands[token]
}

var (
	langPrefixRe   = regexp.MustCompile(`^\[([a-zA-Z]{2})\]:\s*`)
	enginePrefixRe = regexp.MustCompile(`^\{([a-z0-9_-]+)\}\s*`)
	voicePrefixRe  = regexp.MustCompile(`^\(voice:([A-Za-z0-9._-]+)\)\s*`)
	ratePrefixRe   = regexp.MustCompile(`^([+-]\d+(?:\.\d+)?)(%|st)\s+`)
	pitchPrefixRe  = regexp.MustCompile(`^@([+-]\d+(?:\.\d+)?)(st)?\s+`)
)

// ParseCommand parses a raw message into a [Command]. The leading TTS command
// token (if any) is stripped, then the recognized prefixes are consumed left
// to right. Prefixes that are malformed or out of bounds stay in the text
// untouched, so the returned text is always a suffix of the input.
func ParseCommand(raw string) Command {
	cmd := Command{Lang: "en", Rate: 1.0}

	payload := strings.TrimSpace(raw)
	if token, rest, found := strings.Cut(payload, " "); IsTTSCommand(token) {
		if found {
			payload = strings.TrimSpace(rest)
		} else {
			payload = ""
		}
	}

	langSet := false
	for payload != "" {
		if m := langPrefixRe.FindStringSubmatch(payload); m != nil && !langSet {
			tag := strings.ToLower(m[1])
			if !validLanguageTag(tag) {
				break
			}
			cmd.Lang = tag
			langSet = true
			payload = payload[len(m[0]):]
			continue
		}
		if m := enginePrefixRe.FindStringSubmatch(payload); m != nil && cmd.Engine == "" {
			cmd.Engine = m[1]
			payload = payload[len(m[0]):]
			continue
		}
		if m := voicePrefixRe.FindStringSubmatch(payload); m != nil && cmd.Voice == "" {
			cmd.Voice = m[1]
			payload = payload[len(m[0]):]
			continue
		}
		if m := ratePrefixRe.FindStringSubmatch(payload); m != nil && cmd.Rate == 1.0 {
			rate, ok := parseRate(m[1], m[2])
			if !ok {
				break
			}
			cmd.Rate = rate
			payload = payload[len(m[0]):]
			continue
		}
		if m := pitchPrefixRe.FindStringSubmatch(payload); m != nil && cmd.Pitch == 0 {
			pitch, err := strconv.ParseFloat(m[1], 64)
			if err != nil || !ValidPitch(pitch) {
				break
			}
			cmd.Pitch = pitch
			payload = payload[len(m[0]):]
			continue
		}
		break
	}

	cmd.Text = strings.TrimSpace(payload)
	cmd.LangExplicit = langSet
	if !langSet {
		cmd.Lang = DetectLanguage(cmd.Text, cmd.Lang)
	}
	return cmd
}

// parseRate converts a rate prefix into a multiplier: percent offsets 1.0,
// semitones map through 2^(st/12). Out-of-bounds values are rejected.
func parseRate(number, unit string) (float64, bool) {
	n, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, false
	}
	var rate float64
	if unit == "%" {
		rate = 1.0 + n/100
	} else {
		rate = math.Pow(2, n/12)
	}
	// Round away float fuzz so +12st lands exactly on the 2.0 bound.
	rate = math.Round(rate*1e6) / 1e6
	if !ValidRate(rate) {
		return 0, false
	}
	return rate, true
}

// ValidRate reports whether rate is inside the supported [0.5, 2.0] band.
func ValidRate(rate float64) bool {
	return rate >= 0.5 && rate <= 2.0
}

// ValidPitch reports whether pitch is inside the supported [-12, +12]
// semitone band.
func ValidPitch(pitch float64) bool {
	return pitch >= -12 && pitch <= 12
}

// validLanguageTag reports whether tag parses as a BCP-47 language.
func validLanguageTag(tag string) bool {
	_, err := language.Parse(tag)
	return err == nil
}

// rtlThreshold is the fraction of letters that must be right-to-left script
// before DetectLanguage switches away from the fallback.
const rtlThreshold = 0.3

// DetectLanguage applies RTL-script detection to text and returns an
// adjusted language tag: Arabic-script text maps to "fa" (the dominant RTL
// user base of this bot), Hebrew script to "he". Everything else keeps
// fallback.
func DetectLanguage(text, fallback string) string {
	var letters, arabic, hebrew int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		switch {
		case unicode.Is(unicode.Arabic, r):
			arabic++
		case unicode.Is(unicode.Hebrew, r):
			hebrew++
		}
	}
	if letters == 0 {
		return fallback
	}
	switch {
	case float64(arabic)/float64(letters) >= rtlThreshold:
		return "fa"
	case float64(hebrew)/float64(letters) >= rtlThreshold:
		return "he"
	default:
		return fallback
	}
}

// StripTTSCommand removes a leading TTS command token and returns the rest.
// Used by callers that only need the payload without full parsing.
func StripTTSCommand(text string) string {
	payload := strings.TrimSpace(text)
	if token, rest, found := strings.Cut(payload, " "); IsTTSCommand(token) {
		if !found {
			return ""
		}
		return strings.TrimSpace(rest)
	}
	return payload
}
