// Package scanner implements sbxscan's brute-force recovery scan: sliding
// a byte cursor over arbitrary files or raw devices looking for candidate
// SBX block signatures, and recording every hit into a SQLite database so
// internal/reco can later reassemble sidecars without their original
// names or offsets (spec.md §6, testable property 9).
package scanner

import (
	"database/sql"
	"io"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sbxfs/sbxfs/internal/block"
	derrors "github.com/sbxfs/sbxfs/internal/errors"
	"github.com/sbxfs/sbxfs/internal/meta"
)

const schema = `
CREATE TABLE IF NOT EXISTS sbx_source (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS sbx_uids (
	uid BLOB NOT NULL,
	ver INTEGER NOT NULL,
	PRIMARY KEY (uid, ver)
);
CREATE TABLE IF NOT EXISTS sbx_meta (
	uid         BLOB PRIMARY KEY,
	size        INTEGER,
	name        TEXT,
	sbxname     TEXT,
	datetime    INTEGER,
	sbxdatetime INTEGER,
	fileid      INTEGER NOT NULL REFERENCES sbx_source(id)
);
CREATE TABLE IF NOT EXISTS sbx_blocks (
	uid    BLOB NOT NULL,
	num    INTEGER NOT NULL,
	fileid INTEGER NOT NULL REFERENCES sbx_source(id),
	pos    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sbx_blocks_uid_num_pos ON sbx_blocks(uid, num, pos);
`

// OpenDB opens (creating if needed) the scan database at path and applies
// the schema in spec.md §6.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, derrors.NewIoError(path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, derrors.NewIoError(path, err)
	}
	return db, nil
}

// Result summarizes one Scan invocation.
type Result struct {
	BlocksFound int
	UIDsFound   int
}

// Scan slides a window across sourcePath looking for the "SBx" + version
// signature at every offset, and for each hit that passes the CRC gate and
// the Reed-Solomon check records a row in sbx_blocks (and, for block 0,
// sbx_uids/sbx_meta). ver restricts the scan to one container version;
// when ver is zero the whole file is scanned once for V1, then once for V2.
func Scan(db *sql.DB, sourcePath string, ver block.Version) (Result, error) {
	f, err := os.Open(sourcePath)
	if err != nil {
		return Result{}, derrors.NewIoError(sourcePath, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Result{}, derrors.NewIoError(sourcePath, err)
	}

	fileID, err := sourceID(db, sourcePath)
	if err != nil {
		return Result{}, err
	}

	versions := []block.Version{ver}
	if ver == 0 {
		versions = []block.Version{block.V1, block.V2}
	}

	var res Result
	for _, v := range versions {
		p, perr := block.ParamsFor(v)
		if perr != nil {
			continue
		}
		n, serr := scanVersion(db, data, fileID, v, p, &res)
		_ = n
		if serr != nil {
			return res, serr
		}
	}
	return res, nil
}

func scanVersion(db *sql.DB, data []byte, fileID int64, ver block.Version, p block.Params, res *Result) (int, error) {
	magic := block.Magic
	count := 0
	for off := 0; off+p.BlockSize <= len(data); off++ {
		if data[off] != magic[0] || data[off+1] != magic[1] || data[off+2] != magic[2] {
			continue
		}
		if data[off+3] != byte(ver) {
			continue
		}

		raw := data[off : off+p.BlockSize]
		uid, blocknum, payload, err := block.DecodeBlock(ver, raw)
		if err != nil {
			continue // CRC or RS rejected this candidate: not a real block
		}

		if err := recordBlock(db, uid, blocknum, fileID, int64(off), ver); err != nil {
			return count, err
		}
		count++
		res.BlocksFound++

		if blocknum == 0 {
			md := meta.Parse(payload)
			if err := recordMeta(db, uid, md, fileID); err != nil {
				return count, err
			}
			res.UIDsFound++
		}
	}
	return count, nil
}

func sourceID(db *sql.DB, name string) (int64, error) {
	if _, err := db.Exec(`INSERT OR IGNORE INTO sbx_source(name) VALUES (?)`, name); err != nil {
		return 0, derrors.NewIoError(name, err)
	}
	row := db.QueryRow(`SELECT id FROM sbx_source WHERE name = ?`, name)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, derrors.NewIoError(name, err)
	}
	return id, nil
}

func recordBlock(db *sql.DB, uid block.UID, blocknum uint32, fileID, pos int64, ver block.Version) error {
	if _, err := db.Exec(`INSERT OR IGNORE INTO sbx_uids(uid, ver) VALUES (?, ?)`, uid[:], int(ver)); err != nil {
		return derrors.NewIoError("sbx_uids", err)
	}
	if _, err := db.Exec(`INSERT INTO sbx_blocks(uid, num, fileid, pos) VALUES (?, ?, ?, ?)`,
		uid[:], blocknum, fileID, pos); err != nil {
		return derrors.NewIoError("sbx_blocks", err)
	}
	return nil
}

func recordMeta(db *sql.DB, uid block.UID, md meta.Metadata, fileID int64) error {
	_, err := db.Exec(`INSERT OR REPLACE INTO sbx_meta
		(uid, size, name, sbxname, datetime, sbxdatetime, fileid) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uid[:], md.FileSize, md.FileName, md.SidecarName, md.FileDateTime, md.SidecarDateTime, fileID)
	if err != nil {
		return derrors.NewIoError("sbx_meta", err)
	}
	return nil
}
