package container

import (
	stderrors "errors"
	"io"
	"os"
	"time"

	"github.com/minio/sha256-simd"

	"github.com/sbxfs/sbxfs/internal/block"
	derrors "github.com/sbxfs/sbxfs/internal/errors"
	"github.com/sbxfs/sbxfs/internal/log"
	"github.com/sbxfs/sbxfs/internal/meta"
	"github.com/sbxfs/sbxfs/internal/obfuscate"
	"github.com/sbxfs/sbxfs/internal/util"
)

// ErrCancelled is returned when req.Cancel reports true mid-operation.
var ErrCancelled = stderrors.New("sbx: operation cancelled")

// Encode builds a sidecar container from req.SourcePath, following
// SPEC_FULL.md §4.5's phase sequence: prepare the source (hash it once,
// up front), write a provisional header block, stream data blocks, then
// rewrite the header once the real padding and final block count are
// known, and finally mirror the finished sidecar to a RAID twin if
// requested. Any I/O error rolls back by removing the partially written
// sidecar.
func Encode(req *EncodeRequest) error {
	p, err := block.ParamsFor(req.Version)
	if err != nil {
		return err
	}
	ctx := newOperationContext(p)

	if !req.Overwrite {
		if _, statErr := os.Stat(req.SidecarPath); statErr == nil {
			return derrors.NewTargetExistsError(req.SidecarPath)
		}
	}

	srcInfo, err := os.Stat(req.SourcePath)
	if err != nil {
		return derrors.NewIoError(req.SourcePath, err)
	}
	fileSize := srcInfo.Size()

	sum, err := hashFile(req.SourcePath)
	if err != nil {
		return err
	}

	sidecar, err := os.OpenFile(req.SidecarPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return derrors.NewIoError(req.SidecarPath, err)
	}

	md := meta.Metadata{
		FileName:        baseName(req.SourcePath),
		SidecarName:     baseName(req.SidecarPath),
		FileSize:        uint64(fileSize),
		HasFileSize:     true,
		FileDateTime:    uint64(srcInfo.ModTime().Unix()),
		HasFileDateTime: true,
		SidecarDateTime: uint64(time.Now().Unix()),
		HasSidecarDate:  true,
		Sha256:          sum,
		HasHash:         true,
	}

	if err := writeHeaderBlock(sidecar, ctx.params, req.Version, req.UID, md); err != nil {
		sidecar.Close()
		os.Remove(req.SidecarPath)
		return err
	}

	blockCount, streamErr := streamDataBlocks(sidecar, ctx, req, &md)
	if streamErr != nil {
		sidecar.Close()
		os.Remove(req.SidecarPath)
		return streamErr
	}

	if err := rewriteHeaderBlock(sidecar, ctx.params, req.Version, req.UID, md); err != nil {
		sidecar.Close()
		os.Remove(req.SidecarPath)
		return err
	}

	if err := sidecar.Close(); err != nil {
		os.Remove(req.SidecarPath)
		return derrors.NewIoError(req.SidecarPath, err)
	}

	ctx.log.Info("encoded sidecar", log.Int("blocks", int(blockCount)))

	if req.RAID {
		if err := copyFile(req.SidecarPath, req.SidecarPath+".raid"); err != nil {
			return err
		}
	}

	return nil
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, derrors.NewIoError(path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := util.GetMiBBuffer()
	defer util.PutMiBBuffer(buf)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return nil, derrors.NewIoError(path, err)
	}
	return h.Sum(nil), nil
}

func writeHeaderBlock(w io.Writer, p block.Params, ver block.Version, uid block.UID, md meta.Metadata) error {
	raw := meta.Encode(md)
	payload, err := meta.PadPayload(raw, p.ChunkReadSize)
	if err != nil {
		return err
	}
	blk, err := block.EncodeBlock(ver, uid, 0, payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(blk); err != nil {
		return derrors.NewIoError("header block", err)
	}
	return nil
}

func rewriteHeaderBlock(f *os.File, p block.Params, ver block.Version, uid block.UID, md meta.Metadata) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return derrors.NewIoError("header block", err)
	}
	return writeHeaderBlock(f, p, ver, uid, md)
}

// streamDataBlocks reads the source file chunk_read_size bytes at a time,
// 0x1A-pads and records PAD metadata on the final short read, optionally
// XORs the password keystream, and writes each resulting physical block.
func streamDataBlocks(sidecar *os.File, ctx *operationContext, req *EncodeRequest, md *meta.Metadata) (uint32, error) {
	src, err := os.Open(req.SourcePath)
	if err != nil {
		return 0, derrors.NewIoError(req.SourcePath, err)
	}
	defer src.Close()

	var ks *obfuscate.Keystream
	if req.Password != "" {
		ks = obfuscate.New(req.Password, ctx.params.ChunkReadSize)
		defer ks.Zero()
	}

	var blocknum uint32
	var done int64
	total := md.FileSize

	buf := make([]byte, ctx.params.ChunkReadSize)
	for {
		if ctx.cancelled(req.Cancel) {
			return 0, ErrCancelled
		}

		n, rerr := io.ReadFull(src, buf)
		if rerr != nil && rerr != io.ErrUnexpectedEOF && rerr != io.EOF {
			return 0, derrors.NewIoError(req.SourcePath, rerr)
		}
		if n == 0 {
			break
		}
		if n < len(buf) {
			pad := len(buf) - n
			for i := n; i < len(buf); i++ {
				buf[i] = 0x1A
			}
			md.Pad = uint16(pad)
			md.HasPad = true
		}

		payload := buf
		if ks != nil {
			payload = append([]byte(nil), buf...)
			ks.Apply(payload)
		}

		blocknum++
		blk, err := block.EncodeBlock(req.Version, req.UID, blocknum, payload)
		if err != nil {
			return 0, err
		}
		if _, err := sidecar.Write(blk); err != nil {
			return 0, derrors.NewIoError(req.SidecarPath, err)
		}

		done += int64(n)
		ctx.report(req.Progress, done, int64(total))

		if n < len(buf) {
			break
		}
	}
	return blocknum, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return derrors.NewIoError(src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return derrors.NewIoError(dst, err)
	}

	buf := util.GetMiBBuffer()
	defer util.PutMiBBuffer(buf)
	if _, err := io.CopyBuffer(out, in, buf); err != nil {
		out.Close()
		return derrors.NewIoError(dst, err)
	}
	return out.Close()
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
