package meta

import (
	"bytes"
	"testing"
)

func TestEncodeParseRoundtrip(t *testing.T) {
	sum := bytes.Repeat([]byte{0xCD}, 32)
	m := Metadata{
		FileName:        "report.pdf",
		SidecarName:     "report.pdf.sbx",
		FileSize:        123456,
		HasFileSize:     true,
		FileDateTime:    1_700_000_000,
		HasFileDateTime: true,
		SidecarDateTime: 1_700_000_500,
		HasSidecarDate:  true,
		Sha256:          sum,
		HasHash:         true,
		Pad:             42,
		HasPad:          true,
	}

	raw := Encode(m)
	padded, err := PadPayload(raw, 278)
	if err != nil {
		t.Fatalf("PadPayload failed: %v", err)
	}
	if len(padded) != 278 {
		t.Fatalf("padded length = %d; want 278", len(padded))
	}

	got := Parse(padded)
	if got.FileName != m.FileName {
		t.Errorf("FileName = %q; want %q", got.FileName, m.FileName)
	}
	if got.SidecarName != m.SidecarName {
		t.Errorf("SidecarName = %q; want %q", got.SidecarName, m.SidecarName)
	}
	if !got.HasFileSize || got.FileSize != m.FileSize {
		t.Errorf("FileSize = %v/%d; want %d", got.HasFileSize, got.FileSize, m.FileSize)
	}
	if !got.HasFileDateTime || got.FileDateTime != m.FileDateTime {
		t.Errorf("FileDateTime mismatch: got %d want %d", got.FileDateTime, m.FileDateTime)
	}
	if !got.HasHash || !bytes.Equal(got.Sha256, sum) {
		t.Errorf("Sha256 mismatch")
	}
	if !got.HasPad || got.Pad != 42 {
		t.Errorf("Pad = %v/%d; want 42", got.HasPad, got.Pad)
	}
}

func TestParseStopsAtPaddingRun(t *testing.T) {
	raw := Encode(Metadata{FileName: "a.txt"})
	payload, _ := PadPayload(raw, 64)

	got := Parse(payload)
	if got.FileName != "a.txt" {
		t.Fatalf("FileName = %q; want a.txt", got.FileName)
	}
	if got.HasFileSize {
		t.Error("unexpected FileSize present")
	}
}

func TestParseSkipsUnknownTag(t *testing.T) {
	var raw []byte
	raw = append(raw, 'Z', 'Z', 'Z', 3, 'x', 'y', 'z')
	raw = appendRecord(raw, TagFileName, []byte("kept.bin"))
	payload, _ := PadPayload(raw, 64)

	got := Parse(payload)
	if got.FileName != "kept.bin" {
		t.Errorf("FileName = %q; want kept.bin (unknown tag should be skipped, not abort parsing)", got.FileName)
	}
}

func TestPadPayloadRejectsOversizedInput(t *testing.T) {
	if _, err := PadPayload(make([]byte, 300), 278); err == nil {
		t.Error("expected error for payload longer than size")
	}
}
