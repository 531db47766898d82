// Package meta encodes and parses the tag-length-value metadata stream
// carried in block 0 (the header block) of an SBX container.
//
// Each record is tag(3 bytes) || len(1 byte) || value(len bytes); the
// stream ends at a payload-filling run of 0x1A bytes (spec.md's
// terminator) or at the end of the payload, whichever comes first.
package meta

import (
	"encoding/binary"

	"github.com/sbxfs/sbxfs/internal/errors"
)

// Tag identifies one TLV record kind.
type Tag string

const (
	TagFileName       Tag = "FNM"
	TagSidecarName    Tag = "SNM"
	TagFileSize       Tag = "FSZ"
	TagFileDateTime   Tag = "FDT"
	TagSidecarDate    Tag = "SDT"
	TagHash           Tag = "HSH"
	TagPad            Tag = "PAD"
	TagRedundancyLvl  Tag = "RSL"
)

// multihashPrefix marks the hash value as SHA-256 (multicodec 0x12,
// digest length 0x20), matching original_source's literal b'\x12\x20'
// prefix.
var multihashPrefix = [2]byte{0x12, 0x20}

// Metadata is the decoded content of block 0. Zero-value fields mean the
// corresponding tag was absent.
type Metadata struct {
	FileName        string
	SidecarName     string
	FileSize        uint64
	HasFileSize     bool
	FileDateTime    uint64 // unix seconds
	HasFileDateTime bool
	SidecarDateTime uint64
	HasSidecarDate  bool
	Sha256          []byte // 32 bytes, unprefixed
	HasHash         bool
	Pad             uint16 // trailing 0x1A count in the last data block
	HasPad          bool
	// RedundancyLevel is reserved and dead: spec.md §9 requires it never
	// affect decode. It is parsed only so a round-trip re-encode is
	// byte-faithful to a source that set it.
	RedundancyLevel uint8
	HasRedundancy   bool
}

func appendRecord(out []byte, tag Tag, value []byte) []byte {
	out = append(out, tag...)
	out = append(out, byte(len(value)))
	return append(out, value...)
}

// Encode serializes m into a TLV stream in the field order original_source
// writes them: FNM, SNM, FSZ, FDT, SDT, HSH, PAD, RSL.
func Encode(m Metadata) []byte {
	var out []byte
	if m.FileName != "" {
		out = appendRecord(out, TagFileName, []byte(m.FileName))
	}
	if m.SidecarName != "" {
		out = appendRecord(out, TagSidecarName, []byte(m.SidecarName))
	}
	if m.HasFileSize {
		var v [8]byte
		binary.BigEndian.PutUint64(v[:], m.FileSize)
		out = appendRecord(out, TagFileSize, v[:])
	}
	if m.HasFileDateTime {
		var v [8]byte
		binary.BigEndian.PutUint64(v[:], m.FileDateTime)
		out = appendRecord(out, TagFileDateTime, v[:])
	}
	if m.HasSidecarDate {
		var v [8]byte
		binary.BigEndian.PutUint64(v[:], m.SidecarDateTime)
		out = appendRecord(out, TagSidecarDate, v[:])
	}
	if m.HasHash {
		v := append(append([]byte{}, multihashPrefix[:]...), m.Sha256...)
		out = appendRecord(out, TagHash, v)
	}
	if m.HasPad {
		var v [2]byte
		binary.BigEndian.PutUint16(v[:], m.Pad)
		out = appendRecord(out, TagPad, v[:])
	}
	if m.HasRedundancy {
		out = appendRecord(out, TagRedundancyLvl, []byte{m.RedundancyLevel})
	}
	return out
}

// PadPayload right-pads raw with 0x1A up to size, the terminator/filler
// convention used for every block payload including block 0's TLV stream.
func PadPayload(raw []byte, size int) ([]byte, error) {
	if len(raw) > size {
		return nil, errors.ErrMalformedBlock
	}
	out := make([]byte, size)
	copy(out, raw)
	for i := len(raw); i < size; i++ {
		out[i] = 0x1A
	}
	return out, nil
}

// Parse reads TLV records out of a block-0 payload. Unknown tags are
// skipped via their length byte (spec.md §9); parsing stops at the first
// record whose tag is three 0x1A bytes (the padding run that follows the
// last real record) or at the end of data.
func Parse(data []byte) Metadata {
	var m Metadata
	p := 0
	for p+3 <= len(data) {
		tag := data[p : p+3]
		if tag[0] == 0x1A && tag[1] == 0x1A && tag[2] == 0x1A {
			break
		}
		p += 3
		if p >= len(data) {
			break
		}
		length := int(data[p])
		p++
		if p+length > len(data) {
			break
		}
		value := data[p : p+length]
		p += length

		switch Tag(tag) {
		case TagFileName:
			m.FileName = string(value)
		case TagSidecarName:
			m.SidecarName = string(value)
		case TagFileSize:
			m.FileSize = beUint(value)
			m.HasFileSize = true
		case TagFileDateTime:
			m.FileDateTime = beUint(value)
			m.HasFileDateTime = true
		case TagSidecarDate:
			m.SidecarDateTime = beUint(value)
			m.HasSidecarDate = true
		case TagHash:
			if len(value) >= 2 {
				m.Sha256 = append([]byte(nil), value[2:]...)
				m.HasHash = true
			}
		case TagPad:
			m.Pad = uint16(beUint(value))
			m.HasPad = true
		case TagRedundancyLvl:
			if len(value) >= 1 {
				m.RedundancyLevel = value[0]
				m.HasRedundancy = true
			}
		default:
			// unknown tag: already skipped via the length byte above
		}
	}
	return m
}

func beUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
