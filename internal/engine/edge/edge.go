// Package edge provides a TTS engine backed by the Microsoft Edge read-aloud
// service. Synthesis runs over a websocket: the client sends a speech.config
// frame followed by an SSML frame, then collects binary audio frames until the
// matching turn.end marker. The service is free, supports neural voices in
// many languages, and honours SSML prosody (rate and pitch).
package edge

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/voxtela/voxtela/internal/engine"
)

// Compile-time interface assertion.
var _ engine.Engine = (*Engine)(nil)

const (
	defaultBaseURL = "wss://speech.platform.bing.com/consumer/speech/synthesize/readaloud/edge/v1"
	trustedToken   = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"
	defaultTimeout = 30 * time.Second

	// outputFormat is requested in speech.config. MP3 keeps the payload small;
	// the audio pipeline handles the container from there.
	outputFormat = "audio-24khz-48kbitrate-mono-mp3"
)

// defaultVoices maps language tags to the neural voice used when the request
// does not pin one.
var defaultVoices = map[string]string{
	"ar": "ar-SA-HamedNeural",
	"de": "de-DE-KatjaNeural",
	"en": "en-US-AriaNeural",
	"es": "es-ES-ElviraNeural",
	"fa": "fa-IR-DilaraNeural",
	"fr": "fr-FR-DeniseNeural",
	"hi": "hi-IN-SwaraNeural",
	"it": "it-IT-ElsaNeural",
	"ja": "ja-JP-NanamiNeural",
	"ko": "ko-KR-SunHiNeural",
	"pt": "pt-BR-FranciscaNeural",
	"ru": "ru-RU-SvetlanaNeural",
	"tr": "tr-TR-EmelNeural",
	"zh": "zh-CN-XiaoxiaoNeural",
}

// knownVoices is the advertised voice catalogue (the service accepts more;
// these are the ones surfaced in /voices).
var knownVoices = func() map[string]bool {
	set := make(map[string]bool, 2*len(defaultVoices))
	for _, v := range defaultVoices {
		set[v] = true
	}
	for _, v := range []string{
		"en-US-GuyNeural", "en-GB-SoniaNeural", "en-AU-NatashaNeural",
		"fa-IR-FaridNeural", "de-DE-ConradNeural", "fr-FR-HenriNeural",
		"es-MX-DaliaNeural", "ru-RU-DmitryNeural",
	} {
		set[v] = true
	}
	return set
}()

// Option is a functional option for configuring the engine.
type Option func(*Engine)

// WithBaseURL overrides the websocket endpoint. Used in tests.
func WithBaseURL(u string) Option {
	return func(e *Engine) { e.baseURL = u }
}

// WithTimeout bounds a full synthesis turn. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// Engine synthesises speech through the Edge read-aloud websocket.
type Engine struct {
	baseURL string
	timeout time.Duration
}

// New creates an edge engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		baseURL: defaultBaseURL,
		timeout: defaultTimeout,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Name returns "edge".
func (e *Engine) Name() string { return "edge" }

// Describe returns the engine's capabilities.
func (e *Engine) Describe() engine.Descriptor {
	langs := make(map[string]bool, len(defaultVoices))
	for lang := range defaultVoices {
		langs[lang] = true
	}
	return engine.Descriptor{
		Name:          "edge",
		Offline:       false,
		Languages:     langs,
		Voices:        knownVoices,
		SupportsSSML:  true,
		SupportsRate:  true,
		SupportsPitch: true,
	}
}

// Synthesize runs one read-aloud turn and returns the concatenated MP3 audio.
func (e *Engine) Synthesize(ctx context.Context, req engine.Request) (engine.Audio, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	connID := randomHex(16)
	wsURL := fmt.Sprintf("%s?TrustedClientToken=%s&ConnectionId=%s", e.baseURL, trustedToken, connID)

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return engine.Audio{}, fmt.Errorf("edge: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")
	conn.SetReadLimit(1 << 22)

	if err := conn.Write(ctx, websocket.MessageText, speechConfigFrame()); err != nil {
		return engine.Audio{}, fmt.Errorf("edge: send speech.config: %w", err)
	}

	requestID := randomHex(16)
	ssml := buildSSML(req)
	if err := conn.Write(ctx, websocket.MessageText, ssmlFrame(requestID, ssml)); err != nil {
		return engine.Audio{}, fmt.Errorf("edge: send ssml: %w", err)
	}

	var out []byte
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return engine.Audio{}, fmt.Errorf("edge: read: %w", err)
		}
		switch typ {
		case websocket.MessageText:
			if strings.Contains(string(data), "Path:turn.end") {
				if len(out) == 0 {
					return engine.Audio{}, fmt.Errorf("edge: turn ended with no audio")
				}
				return engine.Audio{Data: out, Format: "mp3"}, nil
			}
		case websocket.MessageBinary:
			payload, ok := audioPayload(data)
			if ok {
				out = append(out, payload...)
			}
		}
	}
}

// audioPayload strips the length-prefixed header of a binary frame and
// returns the audio bytes, if the frame is a Path:audio frame.
func audioPayload(frame []byte) ([]byte, bool) {
	if len(frame) < 2 {
		return nil, false
	}
	headerLen := int(binary.BigEndian.Uint16(frame[:2]))
	if len(frame) < 2+headerLen {
		return nil, false
	}
	header := string(frame[2 : 2+headerLen])
	if !strings.Contains(header, "Path:audio") {
		return nil, false
	}
	return frame[2+headerLen:], true
}

func speechConfigFrame() []byte {
	const config = `{"context":{"synthesis":{"audio":{"metadataoptions":` +
		`{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},` +
		`"outputFormat":"` + outputFormat + `"}}}}`
	return []byte("X-Timestamp:" + timestamp() +
		"\r\nContent-Type:application/json; charset=utf-8\r\nPath:speech.config\r\n\r\n" + config)
}

func ssmlFrame(requestID, ssml string) []byte {
	return []byte("X-RequestId:" + requestID +
		"\r\nContent-Type:application/ssml+xml\r\nX-Timestamp:" + timestamp() +
		"\r\nPath:ssml\r\n\r\n" + ssml)
}

// buildSSML renders the request as an SSML document with prosody markup.
func buildSSML(req engine.Request) string {
	voice := req.Voice
	if voice == "" {
		voice = defaultVoices[req.Lang]
	}
	if voice == "" {
		voice = defaultVoices["en"]
	}
	ratePct := int((req.Rate - 1.0) * 100)
	var b strings.Builder
	fmt.Fprintf(&b, `<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='%s'>`, req.Lang)
	fmt.Fprintf(&b, `<voice name='%s'>`, voice)
	fmt.Fprintf(&b, `<prosody rate='%+d%%' pitch='%+.1fst'>`, ratePct, req.Pitch)
	b.WriteString(escapeText(req.Text))
	b.WriteString(`</prosody></voice></speak>`)
	return b.String()
}

func escapeText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func timestamp() string {
	return time.Now().UTC().Format("Mon Jan 02 2006 15:04:05 GMT+0000 (Coordinated Universal Time)")
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; a zero id is still
		// a valid connection id.
		return strings.Repeat("0", n*2)
	}
	return hex.EncodeToString(buf)
}
