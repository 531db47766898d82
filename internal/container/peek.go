package container

import (
	"io"
	"os"

	"github.com/sbxfs/sbxfs/internal/block"
	derrors "github.com/sbxfs/sbxfs/internal/errors"
	"github.com/sbxfs/sbxfs/internal/meta"
)

// PeekMetadata decodes just block 0 of a sidecar, without touching any
// data blocks, and without RAID fallback. The mount bridge uses this to
// compare a live file's hash against what the sidecar expects without
// paying for a full decode.
func PeekMetadata(ver block.Version, sidecarPath string) (meta.Metadata, error) {
	return PeekMetadataRAID(ver, sidecarPath, false)
}

// PeekMetadataRAID is PeekMetadata with RAID fallback: if block 0 of
// sidecarPath fails CRC/RS decode and raid is set, it retries against
// the "<sidecar>.raid" twin's block 0 before giving up, mirroring the
// header-fallback logic in Decode.
func PeekMetadataRAID(ver block.Version, sidecarPath string, raid bool) (meta.Metadata, error) {
	p, err := block.ParamsFor(ver)
	if err != nil {
		return meta.Metadata{}, err
	}

	f, err := os.Open(sidecarPath)
	if err != nil {
		return meta.Metadata{}, derrors.NewIoError(sidecarPath, err)
	}
	defer f.Close()

	raw := make([]byte, p.BlockSize)
	_, readErr := io.ReadFull(f, raw)

	var blocknum uint32
	var payload []byte
	var decErr error
	if readErr == nil {
		_, blocknum, payload, decErr = block.DecodeBlock(ver, raw)
	} else {
		decErr = readErr
	}

	if decErr != nil && raid {
		if rf, rerr := os.Open(sidecarPath + ".raid"); rerr == nil {
			defer rf.Close()
			rraw := make([]byte, p.BlockSize)
			if _, rerr := io.ReadFull(rf, rraw); rerr == nil {
				if _, bn2, payload2, derr2 := block.DecodeBlock(ver, rraw); derr2 == nil && bn2 == 0 {
					blocknum, payload, decErr = bn2, payload2, nil
				}
			}
		}
	}

	if decErr != nil {
		return meta.Metadata{}, derrors.ErrHeaderUnrecoverable
	}
	if blocknum != 0 {
		return meta.Metadata{}, derrors.ErrHeaderOutOfOrder
	}
	return meta.Parse(payload), nil
}

// HashFile computes the SHA-256 digest of a plain file the same way
// Encode does: a single streaming pass over pooled 1 MiB reads.
func HashFile(path string) ([]byte, error) {
	return hashFile(path)
}
