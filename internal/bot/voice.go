package bot

import (
	"math"
	"sort"

	"github.com/antzucaro/matchr"

	"github.com/voxtela/voxtela/pkg/audio"
)

// prepareVoice optionally converts engine output into the OGG container
// Telegram voice notes use and probes the duration. Conversion failures fall
// back to the native bytes; an unknown duration falls back to 5 s.
func (b *Bot) prepareVoice(data []byte, format string) (out []byte, durationSecs int) {
	out = data
	if b.audioProc.Load() && format != audio.FormatOGG {
		converted, err := audio.Convert(data, format, audio.FormatOGG)
		if err == nil {
			out = converted
		} else {
			b.logger.Debug("container conversion unavailable, sending native bytes",
				"from", format, "error", err)
		}
	}
	info := audio.Probe(out)
	if info.DurationSeconds > 0 {
		return out, int(math.Round(info.DurationSeconds))
	}
	return out, 5
}

// suggestEngine offers a "did you mean" hint when the pinned engine name is
// close to a registered one.
func (b *Bot) suggestEngine(requested string) string {
	if requested == "" {
		return ""
	}
	names := b.registry.Names()
	sort.Strings(names)
	bestScore := 0.0
	best := ""
	for _, name := range names {
		if score := matchr.JaroWinkler(requested, name, false); score > bestScore {
			bestScore = score
			best = name
		}
	}
	if bestScore >= 0.8 && best != requested {
		return "Did you mean {" + best + "}?"
	}
	return ""
}
