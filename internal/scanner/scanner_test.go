package scanner

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/sbxfs/sbxfs/internal/block"
	"github.com/sbxfs/sbxfs/internal/container"
)

func TestScanEnumeratesBlocksSurroundedByGarbage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "payload.bin")
	data := make([]byte, 3000)
	rand.New(rand.NewSource(1)).Read(data)
	if err := os.WriteFile(src, data, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	sidecar := filepath.Join(dir, "payload.bin.sbx")
	if err := container.Encode(&container.EncodeRequest{
		SourcePath:  src,
		SidecarPath: sidecar,
		Version:     block.V1,
		UID:         block.UID{9, 8, 7, 6, 5, 4},
		Overwrite:   true,
	}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	sbxBytes, err := os.ReadFile(sidecar)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	garbageBefore := make([]byte, 777)
	garbageAfter := make([]byte, 333)
	rand.New(rand.NewSource(2)).Read(garbageBefore)
	rand.New(rand.NewSource(3)).Read(garbageAfter)

	scanTarget := filepath.Join(dir, "device.img")
	blob := append(append(append([]byte{}, garbageBefore...), sbxBytes...), garbageAfter...)
	if err := os.WriteFile(scanTarget, blob, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	dbPath := filepath.Join(dir, "scan.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	res, err := Scan(db, scanTarget, block.V1)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	p, _ := block.ParamsFor(block.V1)
	wantBlocks := len(sbxBytes) / p.BlockSize
	if res.BlocksFound != wantBlocks {
		t.Errorf("BlocksFound = %d; want %d", res.BlocksFound, wantBlocks)
	}
	if res.UIDsFound != 1 {
		t.Errorf("UIDsFound = %d; want 1", res.UIDsFound)
	}

	var metaCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sbx_meta`).Scan(&metaCount); err != nil {
		t.Fatalf("query sbx_meta failed: %v", err)
	}
	if metaCount != 1 {
		t.Errorf("sbx_meta rows = %d; want exactly 1", metaCount)
	}

	var blockCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sbx_blocks`).Scan(&blockCount); err != nil {
		t.Fatalf("query sbx_blocks failed: %v", err)
	}
	if blockCount != wantBlocks {
		t.Errorf("sbx_blocks rows = %d; want %d", blockCount, wantBlocks)
	}

	// Every recorded offset must point at the real start of that block
	// within the scanned file.
	rows, err := db.Query(`SELECT num, pos FROM sbx_blocks ORDER BY num`)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var num, pos int64
		if err := rows.Scan(&num, &pos); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		wantPos := int64(len(garbageBefore)) + num*int64(p.BlockSize)
		if pos != wantPos {
			t.Errorf("block %d pos = %d; want %d", num, pos, wantPos)
		}
	}
}
