package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

// buildWav constructs a minimal 16-bit PCM RIFF/WAVE blob.
func buildWav(t *testing.T, rate, channels int, samples []int16) []byte {
	t.Helper()
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	byteRate := rate * channels * 2

	var out []byte
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(36+len(data)))
	out = append(out, "WAVE"...)
	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, 16)
	out = binary.LittleEndian.AppendUint16(out, 1) // PCM
	out = binary.LittleEndian.AppendUint16(out, uint16(channels))
	out = binary.LittleEndian.AppendUint32(out, uint32(rate))
	out = binary.LittleEndian.AppendUint32(out, uint32(byteRate))
	out = binary.LittleEndian.AppendUint16(out, uint16(channels*2))
	out = binary.LittleEndian.AppendUint16(out, 16)
	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(data)))
	out = append(out, data...)
	return out
}

// sine produces n samples of a test tone.
func sine(n int, rate int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	return out
}

func TestProbe_Wav(t *testing.T) {
	blob := buildWav(t, 16000, 1, sine(16000, 16000)) // exactly one second
	info := Probe(blob)
	if info.Format != FormatWAV {
		t.Fatalf("Format = %q, want wav", info.Format)
	}
	if info.SampleRate != 16000 || info.Channels != 1 {
		t.Fatalf("rate/channels = %d/%d, want 16000/1", info.SampleRate, info.Channels)
	}
	if math.Abs(info.DurationSeconds-1.0) > 0.01 {
		t.Fatalf("duration = %v, want about 1s", info.DurationSeconds)
	}
}

func TestProbe_UnknownBytesStayUnknown(t *testing.T) {
	info := Probe([]byte("definitely not audio"))
	if info.Format != "" {
		t.Fatalf("Format = %q, want empty", info.Format)
	}
	if info.DurationSeconds != 0 || info.SampleRate != 0 || info.Channels != 0 || info.BitrateKbps != 0 {
		t.Fatalf("unknown input fabricated values: %+v", info)
	}
	if info.SizeBytes != len("definitely not audio") {
		t.Fatalf("SizeBytes = %d", info.SizeBytes)
	}
}

func TestEncodeVoice_ProducesPlayableOgg(t *testing.T) {
	pcm := make([]byte, 48000*2) // one second of silence at 48 kHz mono
	out, err := EncodeVoice(pcm, 48000, 1)
	if err != nil {
		t.Fatalf("EncodeVoice: %v", err)
	}
	info := Probe(out)
	if info.Format != FormatOGG {
		t.Fatalf("Format = %q, want ogg", info.Format)
	}
	if info.Channels != 1 {
		t.Fatalf("Channels = %d, want 1", info.Channels)
	}
	if math.Abs(info.DurationSeconds-1.0) > 0.05 {
		t.Fatalf("duration = %v, want about 1s", info.DurationSeconds)
	}
}

func TestEncodeVoice_EmptyInput(t *testing.T) {
	if _, err := EncodeVoice(nil, 48000, 1); err == nil {
		t.Fatal("empty input accepted")
	}
}

func TestConvert_WavToOgg(t *testing.T) {
	blob := buildWav(t, 24000, 1, sine(24000, 24000))
	out, err := Convert(blob, FormatWAV, FormatOGG)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	info := Probe(out)
	if info.Format != FormatOGG {
		t.Fatalf("Format = %q, want ogg", info.Format)
	}
	if math.Abs(info.DurationSeconds-1.0) > 0.05 {
		t.Fatalf("duration = %v, want about 1s", info.DurationSeconds)
	}
}

func TestConvert_PassthroughAndUnsupported(t *testing.T) {
	data := []byte{1, 2, 3}
	out, err := Convert(data, FormatMP3, FormatMP3)
	if err != nil || string(out) != string(data) {
		t.Fatalf("identity conversion: %q, %v", out, err)
	}
	if _, err := Convert(data, FormatMP3, FormatOGG); err == nil {
		t.Fatal("mp3 to ogg reported as supported")
	}
}

func TestStereoToMono(t *testing.T) {
	// Two stereo frames: (100, 300) and (-100, -300).
	in := make([]byte, 8)
	binary.LittleEndian.PutUint16(in[0:], uint16(int16(100)))
	binary.LittleEndian.PutUint16(in[2:], uint16(int16(300)))
	binary.LittleEndian.PutUint16(in[4:], uint16(int16(-100)))
	binary.LittleEndian.PutUint16(in[6:], uint16(int16(-300)))

	out := StereoToMono(in)
	if len(out) != 4 {
		t.Fatalf("len = %d, want 4", len(out))
	}
	first := int16(binary.LittleEndian.Uint16(out[0:]))
	second := int16(binary.LittleEndian.Uint16(out[2:]))
	if first != 200 || second != -200 {
		t.Fatalf("averages = %d, %d, want 200, -200", first, second)
	}
}

func TestResampleMono16_Lengths(t *testing.T) {
	in := make([]byte, 1000*2)
	out := ResampleMono16(in, 24000, 48000)
	if len(out) != 2000*2 {
		t.Fatalf("upsample len = %d, want %d", len(out), 2000*2)
	}
	out = ResampleMono16(in, 48000, 48000)
	if len(out) != len(in) {
		t.Fatal("same-rate resample must be a no-op")
	}
}

func TestSniffFormat(t *testing.T) {
	tests := []struct {
		data []byte
		want string
	}{
		{[]byte("OggS....rest"), FormatOGG},
		{append([]byte("RIFF1234WAVE"), make([]byte, 8)...), FormatWAV},
		{[]byte{0xFF, 0xFB, 0x90, 0x00}, FormatMP3},
		{[]byte("ID3.....tag"), FormatMP3},
		{[]byte("plain text"), ""},
	}
	for _, tt := range tests {
		if got := sniffFormat(tt.data); got != tt.want {
			t.Errorf("sniffFormat(%q...) = %q, want %q", tt.data[:min(4, len(tt.data))], got, tt.want)
		}
	}
}
