// Package rs provides a generic Reed-Solomon forward error correction codec
// over GF(2^8), backed by a systematic Cauchy Reed-Solomon implementation.
//
// Codewords are capped at 255 symbols, matching the field size. Encoding is
// systematic: the first len(msg) bytes of a codeword always equal msg, so a
// caller that trusts its data can skip decoding entirely and slice the
// message straight off the front of the codeword.
package rs

import (
	"sync"

	"github.com/Picocrypt/infectious"

	"github.com/sbxfs/sbxfs/internal/errors"
)

// codecKey identifies a cached FEC instance by its (required, total) pair.
type codecKey struct {
	required int
	total    int
}

var (
	codecMu sync.Mutex
	codecs  = map[codecKey]*infectious.FEC{}
)

func codecFor(required, total int) (*infectious.FEC, error) {
	key := codecKey{required, total}

	codecMu.Lock()
	defer codecMu.Unlock()

	if fec, ok := codecs[key]; ok {
		return fec, nil
	}

	fec, err := infectious.NewFEC(required, total)
	if err != nil {
		return nil, errors.Wrap(err, "reed-solomon codec init")
	}
	codecs[key] = fec
	return fec, nil
}

// Encode appends parity symbols to msg, returning a codeword of length
// len(msg)+parity. msg may be empty, in which case the result is parity
// zero bytes. len(msg)+parity must not exceed 255.
func Encode(msg []byte, parity int) ([]byte, error) {
	total := len(msg) + parity
	if parity < 0 || total > 255 {
		return nil, errors.ErrRSEncode
	}
	if len(msg) == 0 {
		return make([]byte, parity), nil
	}

	fec, err := codecFor(len(msg), total)
	if err != nil {
		return nil, err
	}

	codeword := make([]byte, total)
	if err := fec.Encode(msg, func(s infectious.Share) {
		codeword[s.Number] = s.Data[0]
	}); err != nil {
		return nil, errors.Wrap(err, errors.ErrRSEncode.Error())
	}
	return codeword, nil
}

// Decode recovers the original dataLen-byte message from a Reed-Solomon
// codeword, correcting up to (len(codeword)-dataLen)/2 byte errors. If the
// codeword carries more errors than the codec can correct, it returns
// errors.ErrRSUncorrectable along with its best-effort (unreliable) guess
// at the message, mirroring the caller convention of the upstream FEC
// library: a result is always returned, the error says whether to trust it.
func Decode(codeword []byte, dataLen int) ([]byte, error) {
	total := len(codeword)
	if dataLen < 0 || dataLen > total {
		return nil, errors.ErrRSDecode
	}
	if dataLen == 0 {
		return []byte{}, nil
	}

	fec, err := codecFor(dataLen, total)
	if err != nil {
		return nil, err
	}

	shares := make([]infectious.Share, total)
	for i := 0; i < total; i++ {
		shares[i].Number = i
		shares[i].Data = []byte{codeword[i]}
	}

	res, err := fec.Decode(nil, shares)
	if err != nil {
		return append([]byte(nil), codeword[:dataLen]...), errors.ErrRSUncorrectable
	}
	return res, nil
}

// MaxParity returns the largest parity width usable alongside a message of
// the given length without exceeding the 255-symbol codeword cap.
func MaxParity(msgLen int) int {
	if msgLen >= 255 {
		return 0
	}
	return 255 - msgLen
}
