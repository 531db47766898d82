package block

import (
	"bytes"
	"testing"

	"github.com/sbxfs/sbxfs/internal/errors"
)

func TestParamsV1V2(t *testing.T) {
	p1, err := ParamsFor(V1)
	if err != nil {
		t.Fatalf("ParamsFor(V1) failed: %v", err)
	}
	if p1.BlockSize != 512 || p1.HeaderSize != 16 || p1.ChunkReadSize != 278 || p1.Parity != 108 {
		t.Fatalf("unexpected v1 params: %+v", p1)
	}
	if got := p1.TailPadLen(); got != 2 {
		t.Errorf("v1 TailPadLen = %d; want 2", got)
	}

	p2, err := ParamsFor(V2)
	if err != nil {
		t.Fatalf("ParamsFor(V2) failed: %v", err)
	}
	if p2.BlockSize != 4096 || p2.ChunkReadSize != 2352 || p2.Parity != 107 {
		t.Fatalf("unexpected v2 params: %+v", p2)
	}
	if got := p2.TailPadLen(); got != 16 {
		t.Errorf("v2 TailPadLen = %d; want 16", got)
	}
}

func TestParamsForUnsupportedVersion(t *testing.T) {
	if _, err := ParamsFor(Version(9)); !errors.Is(err, errors.ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func uidOf(b byte) UID {
	var u UID
	for i := range u {
		u[i] = b
	}
	return u
}

func TestEncodeDecodeBlockRoundtrip(t *testing.T) {
	for _, ver := range []Version{V1, V2} {
		p, _ := ParamsFor(ver)
		payload := make([]byte, p.ChunkReadSize)
		for i := range payload {
			payload[i] = byte((i * 7) % 256)
		}

		raw, err := EncodeBlock(ver, uidOf(0xAB), 3, payload)
		if err != nil {
			t.Fatalf("v%d: EncodeBlock failed: %v", ver, err)
		}
		if len(raw) != p.BlockSize {
			t.Fatalf("v%d: block length = %d; want %d", ver, len(raw), p.BlockSize)
		}
		if !bytes.Equal(raw[:3], Magic[:]) {
			t.Errorf("v%d: missing magic bytes", ver)
		}
		if raw[3] != byte(ver) {
			t.Errorf("v%d: version byte = %d; want %d", ver, raw[3], ver)
		}
		for i := p.RSCodedLen(); i < p.BlockSize; i++ {
			if raw[i] != 0x1A {
				t.Fatalf("v%d: byte %d of tail pad is %#x; want 0x1A", ver, i, raw[i])
			}
		}

		uid, blocknum, got, err := DecodeBlock(ver, raw)
		if err != nil {
			t.Fatalf("v%d: DecodeBlock failed: %v", ver, err)
		}
		if uid != uidOf(0xAB) {
			t.Errorf("v%d: uid = %x; want %x", ver, uid, uidOf(0xAB))
		}
		if blocknum != 3 {
			t.Errorf("v%d: blocknum = %d; want 3", ver, blocknum)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("v%d: decoded payload does not match original", ver)
		}
	}
}

func TestDecodeBlockTolerates54ByteFlipsV1(t *testing.T) {
	p, _ := ParamsFor(V1)
	payload := bytes.Repeat([]byte{0x42}, p.ChunkReadSize)
	raw, err := EncodeBlock(V1, uidOf(1), 1, payload)
	if err != nil {
		t.Fatalf("EncodeBlock failed: %v", err)
	}

	// 54 single-byte flips at a stride of 4 (offsets 0..212) all land in the
	// first 255-byte v1 codeword, exactly its correction capacity (half of
	// its 108 parity symbols).
	corrupted := append([]byte(nil), raw...)
	for i := 0; i < 54; i++ {
		corrupted[i*4] ^= 0x01
	}

	_, _, got, err := DecodeBlock(V1, corrupted)
	if err != nil {
		t.Fatalf("DecodeBlock with 54 flips failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("decoded payload does not match original after tolerable corruption")
	}
}

func TestDecodeBlockRejectsWrongMagic(t *testing.T) {
	p, _ := ParamsFor(V1)
	payload := make([]byte, p.ChunkReadSize)
	raw, _ := EncodeBlock(V1, uidOf(1), 1, payload)
	raw[0] = 'X'

	_, _, _, err := DecodeBlock(V1, raw)
	if !errors.Is(err, errors.ErrNotAnSbxBlock) {
		t.Errorf("expected ErrNotAnSbxBlock, got %v", err)
	}
}

func TestEncodeBlockRejectsWrongPayloadLength(t *testing.T) {
	_, err := EncodeBlock(V1, uidOf(1), 1, []byte("too short"))
	if !errors.Is(err, errors.ErrMalformedBlock) {
		t.Errorf("expected ErrMalformedBlock, got %v", err)
	}
}
