package container

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/sbxfs/sbxfs/internal/block"
	derrors "github.com/sbxfs/sbxfs/internal/errors"
	"github.com/sbxfs/sbxfs/internal/meta"
	"github.com/sbxfs/sbxfs/internal/obfuscate"

	"github.com/minio/sha256-simd"
)

// DecodeResult reports what a Decode call found, beyond the decoded file
// it may have written.
type DecodeResult struct {
	Metadata       meta.Metadata
	HashMatched    bool
	RepairedBlocks []uint32 // block numbers recovered from the RAID twin
}

// Decode reverses Encode. It opens the sidecar (and, if req.RAID, its
// ".raid" twin), decodes block 0 for metadata, then streams data blocks,
// falling back to the RAID twin per-block on CRC/Reed-Solomon failure
// (spec.md §4.4). The data-block count is computed as
// ceil(FileSize/ChunkReadSize), fixing the integer-division-ceiling bug
// named in spec.md §9. A hash mismatch is reported in the result and as
// a non-nil error, but the output file is still fully written first.
// If the first block decodes as blocknum 1 rather than 0, the sidecar
// carries no metadata block at all: Decode rewinds and treats it as a
// plain data stream, with hash verification and pad trimming disabled.
func Decode(req *DecodeRequest) (*DecodeResult, error) {
	p, err := block.ParamsFor(req.Version)
	if err != nil {
		return nil, err
	}
	ctx := newOperationContext(p)

	sidecar, err := os.Open(req.SidecarPath)
	if err != nil {
		return nil, derrors.NewIoError(req.SidecarPath, err)
	}
	defer sidecar.Close()

	var raid *os.File
	if req.RAID {
		if f, rerr := os.Open(req.SidecarPath + ".raid"); rerr == nil {
			raid = f
			defer raid.Close()
		}
	}

	header := make([]byte, p.BlockSize)
	if _, err := io.ReadFull(sidecar, header); err != nil {
		return nil, derrors.ErrHeaderUnrecoverable
	}
	_, blocknum, payload, decErr := block.DecodeBlock(req.Version, header)
	if decErr != nil && raid != nil {
		if raidHeader, rerr := readBlockAt(raid, p, 0); rerr == nil {
			if _, bn2, payload2, derr2 := block.DecodeBlock(req.Version, raidHeader); derr2 == nil && bn2 == 0 {
				blocknum, payload, decErr = bn2, payload2, nil
			}
		}
	}
	if decErr != nil {
		return nil, derrors.ErrHeaderUnrecoverable
	}

	var md meta.Metadata
	var noMetadata bool
	switch blocknum {
	case 0:
		md = meta.Parse(payload)
	case 1:
		// No metadata block: the sidecar starts directly with data
		// block 1. Rewind so the loop below re-reads it as the first
		// data block, with no FSZ/HSH/PAD available.
		noMetadata = true
		if _, err := sidecar.Seek(0, io.SeekStart); err != nil {
			return nil, derrors.NewIoError(req.SidecarPath, err)
		}
		if raid != nil {
			if _, err := raid.Seek(0, io.SeekStart); err != nil {
				return nil, derrors.NewIoError(req.SidecarPath+".raid", err)
			}
		}
	default:
		return nil, derrors.ErrHeaderOutOfOrder
	}

	if req.InfoOnly {
		return &DecodeResult{Metadata: md}, nil
	}

	var blockCount uint64
	if noMetadata {
		info, statErr := sidecar.Stat()
		if statErr != nil {
			return nil, derrors.NewIoError(req.SidecarPath, statErr)
		}
		blockCount = uint64(info.Size()) / uint64(p.BlockSize)
	} else {
		blockCount = ceilDiv(md.FileSize, uint64(p.ChunkReadSize))
	}

	var out *os.File
	if !req.TestOnly {
		if !req.Overwrite {
			if _, statErr := os.Stat(req.OutputPath); statErr == nil {
				return nil, derrors.NewTargetExistsError(req.OutputPath)
			}
		}
		out, err = os.OpenFile(req.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, derrors.NewIoError(req.OutputPath, err)
		}
	}

	var ks *obfuscate.Keystream
	if req.Password != "" {
		ks = obfuscate.New(req.Password, p.ChunkReadSize)
		defer ks.Zero()
	}

	h := sha256.New()
	var repaired []uint32
	var done int64

	for n := uint64(1); n <= blockCount; n++ {
		if ctx.cancelled(req.Cancel) {
			closeOnErr(out, req.OutputPath)
			return nil, ErrCancelled
		}

		readN := n
		if noMetadata {
			// Block 1's data sits at offset 0: there is no header
			// block occupying the first slot.
			readN = n - 1
		}

		raw, rerr := readBlockAt(sidecar, p, readN)
		var payloadN []byte
		var derr error
		if rerr == nil {
			_, bn, pl, de := block.DecodeBlock(req.Version, raw)
			if de != nil || bn != uint32(n) {
				derr = derrors.NewBlockMissingError(uint32(n))
			} else {
				payloadN = pl
			}
		} else {
			derr = rerr
		}

		if derr != nil && raid != nil {
			if raidRaw, rerr2 := readBlockAt(raid, p, readN); rerr2 == nil {
				if _, bn2, pl2, de2 := block.DecodeBlock(req.Version, raidRaw); de2 == nil && bn2 == uint32(n) {
					payloadN = pl2
					derr = nil
					repaired = append(repaired, uint32(n))
				}
			}
		}

		if derr != nil {
			if !req.ContinueOnError {
				closeOnErr(out, req.OutputPath)
				return nil, derr
			}
			payloadN = make([]byte, p.ChunkReadSize)
		}

		if ks != nil && derr == nil {
			ks.Apply(payloadN)
		}

		data := payloadN
		if !noMetadata && n == blockCount && md.HasPad && int(md.Pad) <= len(data) {
			data = data[:len(data)-int(md.Pad)]
		}

		h.Write(data)
		if out != nil {
			if _, err := out.Write(data); err != nil {
				closeOnErr(out, req.OutputPath)
				return nil, derrors.NewIoError(req.OutputPath, err)
			}
		}

		done += int64(len(data))
		ctx.report(req.Progress, done, int64(md.FileSize))
	}

	var hashMatched bool
	if md.HasHash {
		hashMatched = bytes.Equal(h.Sum(nil), md.Sha256)
	}

	if out != nil {
		if err := out.Close(); err != nil {
			return nil, derrors.NewIoError(req.OutputPath, err)
		}
		if md.HasFileDateTime {
			mtime := time.Unix(int64(md.FileDateTime), 0)
			os.Chtimes(req.OutputPath, mtime, mtime)
		}
	}

	result := &DecodeResult{Metadata: md, HashMatched: hashMatched, RepairedBlocks: repaired}
	if md.HasHash && !hashMatched {
		return result, derrors.ErrHashMismatch
	}
	return result, nil
}

func readBlockAt(f *os.File, p block.Params, n uint64) ([]byte, error) {
	buf := make([]byte, p.BlockSize)
	if _, err := f.ReadAt(buf, int64(n)*int64(p.BlockSize)); err != nil {
		return nil, derrors.NewIoError(f.Name(), err)
	}
	return buf, nil
}

func closeOnErr(f *os.File, path string) {
	if f != nil {
		f.Close()
	}
	if path != "" {
		os.Remove(path)
	}
}

// ceilDiv computes ceil(a/b) for unsigned integers without the precision
// loss of the original implementation's subtract-remainder formula
// (spec.md §9's "Integer-division ceiling bug").
func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
