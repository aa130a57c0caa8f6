package edge

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/voxtela/voxtela/internal/engine"
)

func TestAudioPayload(t *testing.T) {
	header := "X-RequestId:abc\r\nPath:audio\r\n"
	frame := make([]byte, 2+len(header)+3)
	binary.BigEndian.PutUint16(frame, uint16(len(header)))
	copy(frame[2:], header)
	copy(frame[2+len(header):], []byte{1, 2, 3})

	payload, ok := audioPayload(frame)
	if !ok {
		t.Fatal("audio frame not recognised")
	}
	if len(payload) != 3 || payload[0] != 1 {
		t.Fatalf("payload = %v", payload)
	}

	other := "Path:turn.start\r\n"
	frame = make([]byte, 2+len(other))
	binary.BigEndian.PutUint16(frame, uint16(len(other)))
	copy(frame[2:], other)
	if _, ok := audioPayload(frame); ok {
		t.Fatal("non-audio frame accepted")
	}

	if _, ok := audioPayload([]byte{0}); ok {
		t.Fatal("truncated frame accepted")
	}
}

func TestBuildSSML(t *testing.T) {
	ssml := buildSSML(engine.Request{
		Text:  "hi <there> & friends",
		Lang:  "en",
		Rate:  1.1,
		Pitch: 2,
	})
	if !strings.Contains(ssml, "en-US-AriaNeural") {
		t.Errorf("default voice missing: %s", ssml)
	}
	if !strings.Contains(ssml, "rate='+10%'") {
		t.Errorf("rate markup missing: %s", ssml)
	}
	if !strings.Contains(ssml, "pitch='+2.0st'") {
		t.Errorf("pitch markup missing: %s", ssml)
	}
	if strings.Contains(ssml, "<there>") || !strings.Contains(ssml, "&lt;there&gt;") {
		t.Errorf("text not escaped: %s", ssml)
	}
}

func TestBuildSSML_VoiceFallback(t *testing.T) {
	ssml := buildSSML(engine.Request{Text: "x", Lang: "xx", Rate: 1})
	if !strings.Contains(ssml, defaultVoices["en"]) {
		t.Fatalf("unknown language did not fall back to the English voice: %s", ssml)
	}
	ssml = buildSSML(engine.Request{Text: "x", Lang: "fa", Voice: "fa-IR-FaridNeural", Rate: 1})
	if !strings.Contains(ssml, "fa-IR-FaridNeural") {
		t.Fatalf("pinned voice ignored: %s", ssml)
	}
}

func TestDescribe(t *testing.T) {
	d := New().Describe()
	if d.Name != "edge" || d.Offline {
		t.Fatalf("descriptor = %+v", d)
	}
	if !d.SupportsSSML || !d.SupportsRate || !d.SupportsPitch {
		t.Fatal("edge must advertise prosody support")
	}
	if !d.SupportsVoice("en-US-AriaNeural") {
		t.Fatal("catalogue voice missing")
	}
	if d.SupportsVoice("not-a-voice") {
		t.Fatal("unknown voice accepted against a non-empty catalogue")
	}
}
