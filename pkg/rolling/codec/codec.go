// Package codec implements the durable wire format for a rolling
// segment's header: a magic/version prefix, the rolling policy, and an
// append-only log of entries describing the segment's sub-segment
// table. The format is little-endian and self-delimiting, so a header
// blob can be extended in place (new entries appended) or spliced
// whole into another header's entry stream during concat.
package codec

import (
	"encoding/binary"
	"fmt"
)

// Magic identifies a rolling-storage header blob; Version guards the
// entry layout below it. A version mismatch is a fatal, non-recoverable
// read error: unknown trailing entries are never silently skipped.
var Magic = [4]byte{'R', 'S', 'L', '1'}

const Version byte = 1

const (
	tagNewSubSegment byte = 1
	tagConcatBegin   byte = 2
)

// headerPrefixLen is magic(4) + version(1) + policy(8).
const headerPrefixLen = len(Magic) + 1 + 8

// Entry describes one parsed sub-segment table row, as reconstructed
// from NewSubSegment entries (including ones rebased out of a
// concatenated source header). An Entry carries only a name and a
// start offset: the codec knows nothing else about a sub-segment, and
// RollingStore derives Length/Sealed/Exists from consecutive offsets and
// by statting the tail blob after parsing.
type Entry struct {
	StartOffset int64
	Name        string
}

// Decoded is the result of parsing a full header blob.
type Decoded struct {
	MaxSubSegmentLength int64
	Entries             []Entry
}

// EncodeHeader serializes a fresh, empty header for a segment created
// with the given policy max-length (use rolling.Unbounded for no
// rolling).
func EncodeHeader(maxSubSegmentLength int64) []byte {
	buf := make([]byte, headerPrefixLen)
	copy(buf[0:4], Magic[:])
	buf[4] = Version
	binary.LittleEndian.PutUint64(buf[5:13], uint64(maxSubSegmentLength))
	return buf
}

// EncodeNewSubSegment serializes a NewSubSegment entry: tag + 8-byte
// start offset + a length-prefixed name.
func EncodeNewSubSegment(startOffset int64, name string) []byte {
	nameBytes := []byte(name)
	buf := make([]byte, 1+8+4+len(nameBytes))
	buf[0] = tagNewSubSegment
	binary.LittleEndian.PutUint64(buf[1:9], uint64(startOffset))
	binary.LittleEndian.PutUint32(buf[9:13], uint32(len(nameBytes)))
	copy(buf[13:], nameBytes)
	return buf
}

// EncodeConcatBegin serializes a ConcatBegin entry: tag + 4-byte entry
// count + 8-byte base offset. The caller is responsible for appending
// the source's raw header bytes immediately after this entry.
func EncodeConcatBegin(entryCount int, baseOffset int64) []byte {
	buf := make([]byte, 1+4+8)
	buf[0] = tagConcatBegin
	binary.LittleEndian.PutUint32(buf[1:5], uint32(entryCount))
	binary.LittleEndian.PutUint64(buf[5:13], uint64(baseOffset))
	return buf
}

func readPrefix(buf []byte) (maxSubSegmentLength int64, err error) {
	if len(buf) < headerPrefixLen {
		return 0, fmt.Errorf("codec: header too short: %d bytes", len(buf))
	}
	if [4]byte(buf[0:4]) != Magic {
		return 0, fmt.Errorf("codec: bad magic %q", buf[0:4])
	}
	if buf[4] != Version {
		return 0, fmt.Errorf("codec: unsupported header version %d", buf[4])
	}
	return int64(binary.LittleEndian.Uint64(buf[5:13])), nil
}

// Decode parses a full header blob (magic+version+policy+entries) into
// its policy and ordered sub-segment entries.
//
// ConcatBegin entries are resolved recursively: the bytes immediately
// following a ConcatBegin(k, base) are the complete serialized header
// of the segment that was concatenated in (its own magic/version/policy
// prefix followed by its own entries, possibly itself containing nested
// ConcatBegin entries from an earlier concat). Decode consumes exactly
// that nested header, producing k sub-segment entries, and rebases each
// by base before splicing them into the result — composing rebases
// depth-first so multiply-concatenated segments still resolve to
// correct absolute offsets.
func Decode(buf []byte) (Decoded, error) {
	maxLen, err := readPrefix(buf)
	if err != nil {
		return Decoded{}, err
	}

	entries, pos, err := parseEntries(buf, headerPrefixLen, -1)
	if err != nil {
		return Decoded{}, err
	}
	if pos != len(buf) {
		return Decoded{}, fmt.Errorf("codec: %d trailing bytes after last entry", len(buf)-pos)
	}
	return Decoded{MaxSubSegmentLength: maxLen, Entries: entries}, nil
}

// parseEntries parses entries starting at pos. If want < 0, it parses
// until the buffer is exhausted (top-level use). If want >= 0, it
// parses until exactly want sub-segment entries have been produced,
// descending into nested headers as needed for ConcatBegin entries, and
// returns the position immediately past the last byte it consumed.
func parseEntries(buf []byte, pos int, want int) ([]Entry, int, error) {
	var out []Entry
	for (want < 0 && pos < len(buf)) || (want >= 0 && len(out) < want) {
		if pos >= len(buf) {
			return nil, 0, fmt.Errorf("codec: truncated entry stream")
		}
		tag := buf[pos]
		pos++
		switch tag {
		case tagNewSubSegment:
			if pos+8+4 > len(buf) {
				return nil, 0, fmt.Errorf("codec: truncated NewSubSegment entry")
			}
			startOffset := int64(binary.LittleEndian.Uint64(buf[pos : pos+8]))
			pos += 8
			nameLen := int(binary.LittleEndian.Uint32(buf[pos : pos+4]))
			pos += 4
			if pos+nameLen > len(buf) {
				return nil, 0, fmt.Errorf("codec: truncated NewSubSegment name")
			}
			name := string(buf[pos : pos+nameLen])
			pos += nameLen
			out = append(out, Entry{StartOffset: startOffset, Name: name})

		case tagConcatBegin:
			if pos+4+8 > len(buf) {
				return nil, 0, fmt.Errorf("codec: truncated ConcatBegin entry")
			}
			entryCount := int(binary.LittleEndian.Uint32(buf[pos : pos+4]))
			pos += 4
			base := int64(binary.LittleEndian.Uint64(buf[pos : pos+8]))
			pos += 8

			if pos+headerPrefixLen > len(buf) {
				return nil, 0, fmt.Errorf("codec: truncated nested header after ConcatBegin")
			}
			if _, err := readPrefix(buf[pos:]); err != nil {
				return nil, 0, fmt.Errorf("codec: nested header: %w", err)
			}
			pos += headerPrefixLen

			nested, newPos, err := parseEntries(buf, pos, entryCount)
			if err != nil {
				return nil, 0, err
			}
			pos = newPos
			for _, e := range nested {
				out = append(out, Entry{StartOffset: e.StartOffset + base, Name: e.Name})
			}

		default:
			return nil, 0, fmt.Errorf("codec: unknown entry tag %d", tag)
		}
	}
	return out, pos, nil
}
