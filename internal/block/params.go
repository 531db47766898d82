// Package block implements the physical SBX block codec: the fixed-size,
// self-framing, CRC-and-Reed-Solomon-protected unit that both container
// data blocks and the header block (block 0) are built from.
package block

import (
	"github.com/sbxfs/sbxfs/internal/errors"
)

// Magic is the 3-byte signature every SBX block starts with.
var Magic = [3]byte{'S', 'B', 'x'}

// Version identifies a container format profile. Only 1 and 2 are defined.
type Version uint8

const (
	V1 Version = 1
	V2 Version = 2
)

// Params holds the fixed layout constants for one container version.
type Params struct {
	Version       Version
	BlockSize     int // total on-disk size of a physical block
	HeaderSize    int // magic+version+crc+uid+blocknum, always 16
	ChunkReadSize int // payload bytes read from the source file per data block
	Parity        int // Reed-Solomon parity symbols per RS codeword chunk
}

// v1 and v2 are the only profiles spec.md defines. Both were sized so the
// pre-RS message (HeaderSize+ChunkReadSize bytes) splits evenly into
// (255-Parity)-byte Reed-Solomon chunks; see SPEC_FULL.md §3.
var (
	paramsV1 = Params{Version: V1, BlockSize: 512, HeaderSize: 16, ChunkReadSize: 278, Parity: 108}
	paramsV2 = Params{Version: V2, BlockSize: 4096, HeaderSize: 16, ChunkReadSize: 2352, Parity: 107}
)

// ParamsFor returns the fixed layout constants for a version, or
// errors.ErrUnsupportedVersion if ver is not 1 or 2.
func ParamsFor(ver Version) (Params, error) {
	switch ver {
	case V1:
		return paramsV1, nil
	case V2:
		return paramsV2, nil
	default:
		return Params{}, errors.ErrUnsupportedVersion
	}
}

// PreRSLen is the number of bytes (header + payload) that get Reed-Solomon
// coded, before the trailing 0x1A pad.
func (p Params) PreRSLen() int {
	return p.HeaderSize + p.ChunkReadSize
}

// chunkMsgLen is the per-codeword message size: the largest chunk that
// still fits a GF(2^8) codeword of at most 255 symbols alongside Parity
// parity symbols.
func (p Params) chunkMsgLen() int {
	return 255 - p.Parity
}

// RSChunkCount is how many fixed-size Reed-Solomon codewords PreRSLen
// bytes split into. The final chunk may be shorter than chunkMsgLen.
func (p Params) RSChunkCount() int {
	msgLen, chunk := p.PreRSLen(), p.chunkMsgLen()
	return (msgLen + chunk - 1) / chunk
}

// RSCodedLen is the total length of the block once every chunk has had
// its parity symbols appended, before the trailing 0x1A pad.
func (p Params) RSCodedLen() int {
	full := p.RSChunkCount() - 1
	lastMsgLen := p.PreRSLen() - full*p.chunkMsgLen()
	return full*(p.chunkMsgLen()+p.Parity) + lastMsgLen + p.Parity
}

// TailPadLen is the literal trailing 0x1A padding every block carries to
// reach BlockSize. It is 2 for v1 and 16 for v2 (spec.md's table).
func (p Params) TailPadLen() int {
	return p.BlockSize - p.RSCodedLen()
}
