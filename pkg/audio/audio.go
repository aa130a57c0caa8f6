// Package audio is the narrow audio pipeline behind voxtela's voice replies:
// probing container metadata from raw bytes and converting engine output into
// the OGG/Opus container Telegram expects for voice notes.
//
// Probe never fabricates values. Fields it cannot determine from the bytes are
// left at their zero value and callers are expected to tolerate that (the
// voice-send path falls back to a fixed duration when Probe reports none).
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Known container format names as used throughout the pipeline.
const (
	FormatOGG = "ogg"
	FormatMP3 = "mp3"
	FormatWAV = "wav"
	FormatPCM = "pcm"
)

// ErrUnsupportedConversion is returned by [Convert] when no conversion path
// exists between the two formats. Callers treat it as a fallback signal and
// send the native bytes instead.
var ErrUnsupportedConversion = errors.New("audio: unsupported conversion")

// Info describes what could be read from an audio blob. Zero-valued fields are
// unknown, not defaults.
type Info struct {
	// Format is the detected container ("ogg", "mp3", "wav"), or "" if the
	// bytes match no known magic.
	Format string

	// DurationSeconds is the playback length, or 0 if it cannot be derived.
	DurationSeconds float64

	// SampleRate in Hz, or 0.
	SampleRate int

	// Channels is the channel count, or 0.
	Channels int

	// BitrateKbps is the nominal bitrate in kbit/s, or 0.
	BitrateKbps int

	// SizeBytes is the blob length. Always set.
	SizeBytes int
}

// Probe inspects raw audio bytes and extracts container metadata.
// It supports OGG/Opus, WAV (PCM), and MP3 frame headers.
func Probe(data []byte) Info {
	info := Info{SizeBytes: len(data)}
	switch sniffFormat(data) {
	case FormatOGG:
		probeOgg(data, &info)
	case FormatWAV:
		probeWav(data, &info)
	case FormatMP3:
		probeMp3(data, &info)
	}
	return info
}

// sniffFormat detects the container from magic bytes. Returns "" when nothing
// matches.
func sniffFormat(data []byte) string {
	switch {
	case len(data) >= 4 && string(data[:4]) == "OggS":
		return FormatOGG
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV
	case len(data) >= 3 && string(data[:3]) == "ID3":
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	default:
		return ""
	}
}

// probeWav reads the fmt and data chunks of a RIFF/WAVE file.
func probeWav(data []byte, info *Info) {
	info.Format = FormatWAV
	pos := 12
	var byteRate uint32
	var dataLen uint32
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		body := pos + 8
		switch id {
		case "fmt ":
			if body+16 <= len(data) {
				info.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
				info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
				byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
			}
		case "data":
			dataLen = size
			if int(size) > len(data)-body {
				dataLen = uint32(len(data) - body)
			}
		}
		// Chunks are word-aligned.
		pos = body + int(size)
		if size%2 == 1 {
			pos++
		}
	}
	if byteRate > 0 && dataLen > 0 {
		info.DurationSeconds = float64(dataLen) / float64(byteRate)
		info.BitrateKbps = int(byteRate * 8 / 1000)
	}
}

// mp3Bitrates is the MPEG-1 Layer III bitrate table (kbit/s), indexed by the
// 4-bit bitrate field of a frame header.
var mp3Bitrates = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}

// mp3SampleRates is the MPEG-1 sample rate table (Hz).
var mp3SampleRates = [4]int{44100, 48000, 32000, 0}

// probeMp3 locates the first MPEG frame header and derives bitrate, sample
// rate, and an approximate duration assuming constant bitrate.
func probeMp3(data []byte, info *Info) {
	info.Format = FormatMP3
	pos := 0
	if len(data) >= 10 && string(data[:3]) == "ID3" {
		// Skip the ID3v2 tag: 4-byte syncsafe size after the 10-byte header.
		size := int(data[6])<<21 | int(data[7])<<14 | int(data[8])<<7 | int(data[9])
		pos = 10 + size
	}
	for ; pos+4 <= len(data); pos++ {
		if data[pos] != 0xFF || data[pos+1]&0xE0 != 0xE0 {
			continue
		}
		// MPEG-1 Layer III only; anything else keeps scanning.
		if data[pos+1]&0x1E != 0x1A {
			continue
		}
		bitrate := mp3Bitrates[data[pos+2]>>4]
		rate := mp3SampleRates[(data[pos+2]>>2)&0x03]
		if bitrate == 0 || rate == 0 {
			continue
		}
		info.BitrateKbps = bitrate
		info.SampleRate = rate
		if data[pos+3]>>6 == 3 {
			info.Channels = 1
		} else {
			info.Channels = 2
		}
		info.DurationSeconds = float64(len(data)-pos) * 8 / float64(bitrate*1000)
		return
	}
}

// probeOgg reads the OpusHead of the first page and the granule position of
// the last page. Opus granules always tick at 48 kHz regardless of the input
// sample rate.
func probeOgg(data []byte, info *Info) {
	info.Format = FormatOGG
	if head, ok := findOpusHead(data); ok {
		info.Channels = int(head.channels)
		info.SampleRate = int(head.inputSampleRate)
	}
	granule, preSkip, ok := lastGranule(data)
	if !ok {
		return
	}
	samples := granule - int64(preSkip)
	if samples > 0 {
		info.DurationSeconds = float64(samples) / 48000
	}
	if info.DurationSeconds > 0 {
		info.BitrateKbps = int(float64(len(data)) * 8 / info.DurationSeconds / 1000)
	}
}

// Convert transcodes between container formats. The supported paths are the
// ones the voice-send path needs: WAV or raw PCM into OGG/Opus. Identical
// formats pass through unchanged. Everything else returns
// [ErrUnsupportedConversion].
func Convert(data []byte, from, to string) ([]byte, error) {
	if from == to {
		return data, nil
	}
	switch {
	case from == FormatWAV && to == FormatOGG:
		pcm, rate, channels, err := decodeWav(data)
		if err != nil {
			return nil, err
		}
		return EncodeVoice(pcm, rate, channels)
	case from == FormatPCM && to == FormatOGG:
		// Raw PCM is assumed 16-bit little-endian mono at 48 kHz, the rate
		// engines that emit bare PCM are configured for.
		return EncodeVoice(data, 48000, 1)
	default:
		return nil, fmt.Errorf("%w: %s to %s", ErrUnsupportedConversion, from, to)
	}
}

// decodeWav extracts the raw PCM payload of a 16-bit RIFF/WAVE blob.
func decodeWav(data []byte) (pcm []byte, rate, channels int, err error) {
	if len(data) < 12 || string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, 0, errors.New("audio: not a RIFF/WAVE stream")
	}
	pos := 12
	bits := 0
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		switch id {
		case "fmt ":
			if body+16 > len(data) {
				return nil, 0, 0, errors.New("audio: truncated fmt chunk")
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			rate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			end := body + size
			if end > len(data) {
				end = len(data)
			}
			pcm = data[body:end]
		}
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}
	if pcm == nil || rate == 0 || channels == 0 {
		return nil, 0, 0, errors.New("audio: missing fmt or data chunk")
	}
	if bits != 16 {
		return nil, 0, 0, fmt.Errorf("audio: unsupported bit depth %d", bits)
	}
	return pcm, rate, channels, nil
}
