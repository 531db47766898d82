// Package checker implements the folder-walking integrity check: pairing
// plain files with their SBX sidecars, comparing live-file hashes against
// the hash embedded in the sidecar, and repairing drift by re-decoding the
// sidecar over the original (spec.md §4.6).
package checker

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sbxfs/sbxfs/internal/block"
	"github.com/sbxfs/sbxfs/internal/container"
	derrors "github.com/sbxfs/sbxfs/internal/errors"
)

const sidecarSuffix = ".sbx"

// Options configures a Scan/Repair pass.
type Options struct {
	Recursive bool
	Version   block.Version
	RAID      bool
	Password  string
}

// Mismatch describes one plain file whose live content no longer matches
// the hash recorded in its sidecar, or whose sidecar could not be read.
type Mismatch struct {
	FilePath    string
	SidecarPath string
	Err         error
}

// Scan walks root (recursively if opts.Recursive), isolating failures per
// file so one unreadable sidecar never aborts the rest of the walk, and
// returns every file whose sidecar disagrees with it.
func Scan(root string, opts Options) ([]Mismatch, error) {
	var mismatches []Mismatch

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, sidecarSuffix) || strings.HasSuffix(path, sidecarSuffix+".raid") {
			return nil
		}

		sidecar := path + sidecarSuffix
		if _, statErr := os.Stat(sidecar); statErr != nil {
			return nil // untracked file, not an error
		}

		md, peekErr := container.PeekMetadataRAID(opts.Version, sidecar, opts.RAID)
		if peekErr != nil {
			mismatches = append(mismatches, Mismatch{FilePath: path, SidecarPath: sidecar, Err: peekErr})
			return nil
		}

		sum, hashErr := container.HashFile(path)
		if hashErr != nil {
			mismatches = append(mismatches, Mismatch{FilePath: path, SidecarPath: sidecar, Err: hashErr})
			return nil
		}

		if !md.HasHash || !bytes.Equal(sum, md.Sha256) {
			mismatches = append(mismatches, Mismatch{FilePath: path, SidecarPath: sidecar, Err: derrors.ErrHashMismatch})
		}
		return nil
	}

	if err := filepath.WalkDir(root, walkFn); err != nil {
		return mismatches, err
	}
	return mismatches, nil
}

// Repair re-decodes m's sidecar directly over the original path, letting
// RAID fallback and Reed-Solomon correction do their work.
func Repair(m Mismatch, opts Options) error {
	_, err := container.Decode(&container.DecodeRequest{
		SidecarPath: m.SidecarPath,
		OutputPath:  m.FilePath,
		Version:     opts.Version,
		Overwrite:   true,
		RAID:        opts.RAID,
		Password:    opts.Password,
	})
	return err
}
