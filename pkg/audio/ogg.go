package audio

import (
	"bytes"
	"encoding/binary"
)

// Minimal OGG framing: enough to mux Opus packets into a stream Telegram
// accepts as a voice note, and to read the granule position back out for
// duration probing. One packet per page keeps the lacing trivial; the overhead
// is irrelevant at voice-note sizes.

const (
	oggHeaderContinued = 0x01
	oggHeaderFirst     = 0x02
	oggHeaderLast      = 0x04
)

// oggCRCTable is the CRC-32 lookup table with the OGG polynomial (0x04c11db7,
// no bit reflection, zero initial value).
var oggCRCTable = func() [256]uint32 {
	var table [256]uint32
	for i := range table {
		crc := uint32(i) << 24
		for range 8 {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ 0x04c11db7
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}()

func oggCRC(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc = crc<<8 ^ oggCRCTable[byte(crc>>24)^b]
	}
	return crc
}

// oggWriter emits a single-stream OGG container page by page.
type oggWriter struct {
	buf    bytes.Buffer
	serial uint32
	seq    uint32
}

// writePage appends one page carrying a single packet. header is a combination
// of the oggHeader* flags.
func (w *oggWriter) writePage(packet []byte, granule int64, header byte) {
	// 255-byte lacing values plus the terminating short segment.
	nSegs := len(packet)/255 + 1
	page := make([]byte, 0, 27+nSegs+len(packet))
	page = append(page, 'O', 'g', 'g', 'S', 0, header)
	page = binary.LittleEndian.AppendUint64(page, uint64(granule))
	page = binary.LittleEndian.AppendUint32(page, w.serial)
	page = binary.LittleEndian.AppendUint32(page, w.seq)
	page = append(page, 0, 0, 0, 0) // checksum placeholder
	page = append(page, byte(nSegs))
	remaining := len(packet)
	for range nSegs - 1 {
		page = append(page, 255)
		remaining -= 255
	}
	page = append(page, byte(remaining))
	page = append(page, packet...)

	binary.LittleEndian.PutUint32(page[22:26], oggCRC(page))
	w.buf.Write(page)
	w.seq++
}

// opusHead is the parsed identification header of an Opus stream.
type opusHead struct {
	channels        byte
	preSkip         uint16
	inputSampleRate uint32
}

// encodeOpusHead builds the OpusHead identification packet.
func encodeOpusHead(channels byte, preSkip uint16, inputRate uint32) []byte {
	head := make([]byte, 0, 19)
	head = append(head, "OpusHead"...)
	head = append(head, 1, channels)
	head = binary.LittleEndian.AppendUint16(head, preSkip)
	head = binary.LittleEndian.AppendUint32(head, inputRate)
	head = binary.LittleEndian.AppendUint16(head, 0) // output gain
	head = append(head, 0)                           // channel mapping family
	return head
}

// encodeOpusTags builds a minimal OpusTags comment packet.
func encodeOpusTags(vendor string) []byte {
	tags := make([]byte, 0, 16+len(vendor))
	tags = append(tags, "OpusTags"...)
	tags = binary.LittleEndian.AppendUint32(tags, uint32(len(vendor)))
	tags = append(tags, vendor...)
	tags = binary.LittleEndian.AppendUint32(tags, 0) // no user comments
	return tags
}

// findOpusHead scans the first pages of an OGG stream for an OpusHead packet.
func findOpusHead(data []byte) (opusHead, bool) {
	idx := bytes.Index(data, []byte("OpusHead"))
	if idx < 0 || idx+19 > len(data) {
		return opusHead{}, false
	}
	return opusHead{
		channels:        data[idx+9],
		preSkip:         binary.LittleEndian.Uint16(data[idx+10 : idx+12]),
		inputSampleRate: binary.LittleEndian.Uint32(data[idx+12 : idx+16]),
	}, true
}

// lastGranule walks the page headers and returns the granule position of the
// final page, together with the stream's pre-skip.
func lastGranule(data []byte) (granule int64, preSkip uint16, ok bool) {
	if head, found := findOpusHead(data); found {
		preSkip = head.preSkip
	}
	pos := 0
	for pos+27 <= len(data) {
		if string(data[pos:pos+4]) != "OggS" {
			// Resynchronise on the next capture pattern.
			next := bytes.Index(data[pos+1:], []byte("OggS"))
			if next < 0 {
				break
			}
			pos += 1 + next
			continue
		}
		g := int64(binary.LittleEndian.Uint64(data[pos+6 : pos+14]))
		nSegs := int(data[pos+26])
		if pos+27+nSegs > len(data) {
			break
		}
		bodyLen := 0
		for _, l := range data[pos+27 : pos+27+nSegs] {
			bodyLen += int(l)
		}
		// A granule of -1 marks a page with no completed packet.
		if g >= 0 {
			granule = g
			ok = true
		}
		pos += 27 + nSegs + bodyLen
	}
	return granule, preSkip, ok
}
