package audio

import (
	"fmt"

	"layeh.com/gopus"
)

const (
	// opusRate is the sample rate the encoder runs at. Opus granule positions
	// always tick at 48 kHz, so encoding at that rate keeps the math direct.
	opusRate = 48000

	// opusFrameSamples is 20 ms of audio at 48 kHz, the default Opus frame.
	opusFrameSamples = 960

	// opusMaxPacket bounds the encoded size of a single frame.
	opusMaxPacket = 4000

	// opusPreSkip is the standard encoder delay advertised in OpusHead.
	opusPreSkip = 312

	vendorString = "voxtela"
)

// EncodeVoice converts 16-bit little-endian PCM into an OGG/Opus voice note.
// Input at other sample rates or in stereo is resampled and folded to the
// 48 kHz mono stream Telegram voice notes use.
func EncodeVoice(pcm []byte, rate, channels int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, fmt.Errorf("audio: empty PCM input")
	}
	if channels == 2 {
		pcm = ResampleStereoToMono16(pcm, rate, opusRate)
	} else {
		pcm = ResampleMono16(pcm, rate, opusRate)
	}

	enc, err := gopus.NewEncoder(opusRate, 1, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus encoder: %w", err)
	}

	samples := bytesToInt16(pcm)

	w := &oggWriter{serial: streamSerial(pcm)}
	w.writePage(encodeOpusHead(1, opusPreSkip, uint32(rate)), 0, oggHeaderFirst)
	w.writePage(encodeOpusTags(vendorString), 0, 0)

	var granule int64 = opusPreSkip
	frame := make([]int16, opusFrameSamples)
	for off := 0; off < len(samples); off += opusFrameSamples {
		end := off + opusFrameSamples
		if end > len(samples) {
			end = len(samples)
		}
		n := copy(frame, samples[off:end])
		// Zero-pad the tail frame to a full 20 ms.
		for i := n; i < opusFrameSamples; i++ {
			frame[i] = 0
		}
		packet, err := enc.Encode(frame, opusFrameSamples, opusMaxPacket)
		if err != nil {
			return nil, fmt.Errorf("audio: opus encode: %w", err)
		}
		granule += opusFrameSamples
		header := byte(0)
		if end == len(samples) {
			header = oggHeaderLast
		}
		w.writePage(packet, granule, header)
	}
	return w.buf.Bytes(), nil
}

// ResampleStereoToMono16 resamples stereo PCM and folds it to mono in one
// pass: fold first so only a single channel is interpolated.
func ResampleStereoToMono16(pcm []byte, srcRate, dstRate int) []byte {
	return ResampleMono16(StereoToMono(pcm), srcRate, dstRate)
}

// streamSerial derives a stable page serial from the input so identical
// synthesis output produces byte-identical containers.
func streamSerial(pcm []byte) uint32 {
	var h uint32 = 2166136261
	step := len(pcm)/64 + 1
	for i := 0; i < len(pcm); i += step {
		h = (h ^ uint32(pcm[i])) * 16777619
	}
	return h
}
