// Package reco reassembles sidecars from a sbxscan database, reversing
// scanner.Scan: given a uid, it pulls every recorded (num, fileid, pos)
// triple, reads each physical block back out of its original source file,
// and concatenates them in block-number order into a fresh sidecar
// (spec.md §6).
package reco

import (
	"database/sql"
	"encoding/hex"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sbxfs/sbxfs/internal/block"
	derrors "github.com/sbxfs/sbxfs/internal/errors"
)

// Selection picks which UIDs in the scan database to reconstruct.
type Selection struct {
	All  bool
	UIDs [][]byte
	SBX  []string // match sbx_meta.sbxname
	File []string // match sbx_meta.name
}

// Options controls how reassembly fills gaps and names output.
type Options struct {
	FillMissing bool // -f: fill missing blocks with zeroed data blocks
	Interactive bool // -i: not read by Reconstruct; it never prompts, and an existing file is refused unless Overwrite is set
	Overwrite   bool // -o
}

// Target describes one sidecar to reconstruct.
type Target struct {
	UID         block.UID
	Version     block.Version
	SidecarName string
}

// Resolve finds every UID in the database matching sel.
func Resolve(db *sql.DB, sel Selection) ([]Target, error) {
	var rows *sql.Rows
	var err error

	switch {
	case sel.All:
		rows, err = db.Query(`SELECT uid, ver FROM sbx_uids`)
	case len(sel.UIDs) > 0:
		rows, err = queryByUIDs(db, sel.UIDs)
	case len(sel.SBX) > 0:
		rows, err = queryByNames(db, `SELECT u.uid, u.ver FROM sbx_uids u JOIN sbx_meta m ON m.uid = u.uid WHERE m.sbxname IN`, sel.SBX)
	case len(sel.File) > 0:
		rows, err = queryByNames(db, `SELECT u.uid, u.ver FROM sbx_uids u JOIN sbx_meta m ON m.uid = u.uid WHERE m.name IN`, sel.File)
	default:
		return nil, derrors.Wrap(derrors.ErrMalformedBlock, "reco: no selection given")
	}
	if err != nil {
		return nil, derrors.NewIoError("scan database", err)
	}
	defer rows.Close()

	var targets []Target
	for rows.Next() {
		var uidBytes []byte
		var ver int
		if err := rows.Scan(&uidBytes, &ver); err != nil {
			return nil, derrors.NewIoError("scan database", err)
		}
		var t Target
		copy(t.UID[:], uidBytes)
		t.Version = block.Version(ver)
		t.SidecarName = sidecarNameFor(db, t.UID)
		targets = append(targets, t)
	}
	return targets, nil
}

func queryByUIDs(db *sql.DB, uids [][]byte) (*sql.Rows, error) {
	placeholders := ""
	args := make([]any, len(uids))
	for i, u := range uids {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = u
	}
	return db.Query(`SELECT uid, ver FROM sbx_uids WHERE uid IN (`+placeholders+`)`, args...)
}

func queryByNames(db *sql.DB, prefix string, names []string) (*sql.Rows, error) {
	placeholders := ""
	args := make([]any, len(names))
	for i, n := range names {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = n
	}
	return db.Query(prefix+" ("+placeholders+")", args...)
}

func sidecarNameFor(db *sql.DB, uid block.UID) string {
	row := db.QueryRow(`SELECT sbxname FROM sbx_meta WHERE uid = ?`, uid[:])
	var name string
	if err := row.Scan(&name); err != nil {
		return hex.EncodeToString(uid[:]) + ".sbx"
	}
	return name
}

// Reconstruct rebuilds t's sidecar at destdir/t.SidecarName by reading
// every recorded block back out of the file it was found in.
func Reconstruct(db *sql.DB, t Target, destdir string, opts Options) error {
	p, err := block.ParamsFor(t.Version)
	if err != nil {
		return err
	}

	rows, err := db.Query(`SELECT b.num, s.name, b.pos FROM sbx_blocks b
		JOIN sbx_source s ON s.id = b.fileid WHERE b.uid = ? ORDER BY b.num`, t.UID[:])
	if err != nil {
		return derrors.NewIoError("scan database", err)
	}
	defer rows.Close()

	blocks := map[uint32][]byte{}
	var maxNum uint32
	sourceFiles := map[string]*os.File{}
	defer func() {
		for _, f := range sourceFiles {
			f.Close()
		}
	}()

	for rows.Next() {
		var num uint32
		var sourceName string
		var pos int64
		if err := rows.Scan(&num, &sourceName, &pos); err != nil {
			return derrors.NewIoError("scan database", err)
		}
		if num > maxNum {
			maxNum = num
		}

		f, ok := sourceFiles[sourceName]
		if !ok {
			f, err = os.Open(sourceName)
			if err != nil {
				return derrors.NewIoError(sourceName, err)
			}
			sourceFiles[sourceName] = f
		}

		raw := make([]byte, p.BlockSize)
		if _, err := f.ReadAt(raw, pos); err != nil {
			return derrors.NewIoError(sourceName, err)
		}
		blocks[num] = raw
	}

	outPath := filepath.Join(destdir, t.SidecarName)
	if !opts.Overwrite {
		if _, statErr := os.Stat(outPath); statErr == nil {
			return derrors.NewTargetExistsError(outPath)
		}
	}

	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return derrors.NewIoError(outPath, err)
	}
	defer out.Close()

	zero := make([]byte, p.BlockSize)
	for n := uint32(0); n <= maxNum; n++ {
		raw, ok := blocks[n]
		if !ok {
			if !opts.FillMissing {
				return derrors.NewBlockMissingError(n)
			}
			raw = zero
		}
		if _, err := out.Write(raw); err != nil {
			return derrors.NewIoError(outPath, err)
		}
	}
	return nil
}
