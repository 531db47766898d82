package block

import (
	"encoding/binary"

	"github.com/sbxfs/sbxfs/internal/errors"
	"github.com/sbxfs/sbxfs/internal/rs"
)

// UID is the 6-byte container identifier shared by every block of one
// sidecar.
type UID [6]byte

// EncodeBlock assembles one physical block: magic, version, CRC-16 (seeded
// with the version byte), uid, block number, the Reed-Solomon-coded form
// of the header+payload, and trailing 0x1A padding to BlockSize. payload
// must already be exactly p.ChunkReadSize bytes (callers pad with 0x1A
// themselves, since the amount of real data in the final block is
// recorded separately as container metadata).
func EncodeBlock(ver Version, uid UID, blocknum uint32, payload []byte) ([]byte, error) {
	p, err := ParamsFor(ver)
	if err != nil {
		return nil, err
	}
	if len(payload) != p.ChunkReadSize {
		return nil, errors.ErrMalformedBlock
	}

	body := make([]byte, 0, 6+4+len(payload))
	body = append(body, uid[:]...)
	body = binary.BigEndian.AppendUint32(body, blocknum)
	body = append(body, payload...)

	crc := CRC16(body, uint16(ver))

	frame := make([]byte, 0, p.PreRSLen())
	frame = append(frame, Magic[:]...)
	frame = append(frame, byte(ver))
	frame = binary.BigEndian.AppendUint16(frame, crc)
	frame = append(frame, body...)

	coded, err := rsEncodeChunks(frame, p)
	if err != nil {
		return nil, err
	}

	out := make([]byte, p.BlockSize)
	copy(out, coded)
	for i := len(coded); i < p.BlockSize; i++ {
		out[i] = 0x1A
	}
	return out, nil
}

// DecodeBlock reverses EncodeBlock. On a Reed-Solomon or CRC failure it
// still returns its best-effort uid/blocknum/payload alongside the error,
// mirroring the upstream Reed-Solomon library's "force decode but report
// the error" convention; on a wrong block length, magic or version it
// returns zero values. Callers that want RAID-twin fallback decide what
// to do with a non-nil error themselves.
func DecodeBlock(ver Version, raw []byte) (uid UID, blocknum uint32, payload []byte, err error) {
	p, perr := ParamsFor(ver)
	if perr != nil {
		return uid, 0, nil, perr
	}
	if len(raw) != p.BlockSize {
		return uid, 0, nil, errors.ErrMalformedBlock
	}

	frame, decErr := rsDecodeChunks(raw[:p.RSCodedLen()], p)
	if frame == nil {
		return uid, 0, nil, decErr
	}

	if frame[0] != Magic[0] || frame[1] != Magic[1] || frame[2] != Magic[2] {
		return uid, 0, nil, errors.ErrNotAnSbxBlock
	}
	if Version(frame[3]) != ver {
		return uid, 0, nil, errors.ErrUnsupportedVersion
	}

	gotCRC := binary.BigEndian.Uint16(frame[4:6])
	body := frame[6:]
	copy(uid[:], body[:6])
	blocknum = binary.BigEndian.Uint32(body[6:10])
	payload = append([]byte(nil), body[10:]...)

	wantCRC := CRC16(body, uint16(ver))
	if gotCRC != wantCRC {
		if decErr == nil {
			decErr = errors.ErrCrcMismatch
		}
	}

	return uid, blocknum, payload, decErr
}

// rsEncodeChunks Reed-Solomon encodes frame as the fixed-size codeword
// sequence described in SPEC_FULL.md §3.
func rsEncodeChunks(frame []byte, p Params) ([]byte, error) {
	chunkLen := p.chunkMsgLen()
	out := make([]byte, 0, p.RSCodedLen())
	for off := 0; off < len(frame); off += chunkLen {
		end := off + chunkLen
		if end > len(frame) {
			end = len(frame)
		}
		coded, err := rs.Encode(frame[off:end], p.Parity)
		if err != nil {
			return nil, err
		}
		out = append(out, coded...)
	}
	return out, nil
}

// rsDecodeChunks reverses rsEncodeChunks. It returns a non-nil frame (of
// length p.PreRSLen()) alongside a possibly non-nil error if one or more
// chunks exceeded RS correction capacity; the frame bytes for an
// uncorrectable chunk are the decoder's unreliable best guess.
func rsDecodeChunks(coded []byte, p Params) ([]byte, error) {
	chunkLen := p.chunkMsgLen()
	msgLen := p.PreRSLen()

	frame := make([]byte, 0, msgLen)
	var firstErr error
	off := 0
	for len(frame) < msgLen {
		thisMsgLen := chunkLen
		if remaining := msgLen - len(frame); remaining < chunkLen {
			thisMsgLen = remaining
		}
		end := off + thisMsgLen + p.Parity
		if end > len(coded) {
			end = len(coded)
		}
		msg, err := rs.Decode(coded[off:end], thisMsgLen)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		frame = append(frame, msg...)
		off = end
	}
	return frame, firstErr
}
