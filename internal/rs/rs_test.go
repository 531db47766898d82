package rs

import (
	"bytes"
	"testing"

	"github.com/sbxfs/sbxfs/internal/errors"
)

func TestEncodeDecodeRoundtrip(t *testing.T) {
	testCases := []struct {
		name   string
		msgLen int
		parity int
	}{
		{"small", 5, 10},
		{"block-v1-chunk", 147, 108},
		{"single-byte", 1, 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := make([]byte, tc.msgLen)
			for i := range data {
				data[i] = byte((i * 37) % 256)
			}

			encoded, err := Encode(data, tc.parity)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if len(encoded) != tc.msgLen+tc.parity {
				t.Errorf("encoded length = %d; want %d", len(encoded), tc.msgLen+tc.parity)
			}
			if !bytes.Equal(encoded[:tc.msgLen], data) {
				t.Error("encoding is not systematic: prefix does not equal message")
			}

			decoded, err := Decode(encoded, tc.msgLen)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !bytes.Equal(decoded, data) {
				t.Error("decoded data does not match original")
			}
		})
	}
}

func TestDecodeCorrectsErrors(t *testing.T) {
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	const parity = 40

	encoded, err := Encode(data, parity)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	corrupted := append([]byte(nil), encoded...)
	for i := 0; i < parity/2; i++ {
		corrupted[i*2] ^= 0xFF
	}

	decoded, err := Decode(corrupted, len(data))
	if err != nil {
		t.Fatalf("Decode with correctable errors failed: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Error("Decode did not recover original data")
	}
}

func TestDecodeUncorrectable(t *testing.T) {
	data := make([]byte, 50)
	const parity = 10

	encoded, err := Encode(data, parity)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	corrupted := append([]byte(nil), encoded...)
	for i := range corrupted {
		corrupted[i] ^= 0xFF
	}

	_, err = Decode(corrupted, len(data))
	if !errors.Is(err, errors.ErrRSUncorrectable) {
		t.Errorf("expected ErrRSUncorrectable, got %v", err)
	}
}

func TestEncodeEmptyMessage(t *testing.T) {
	encoded, err := Encode(nil, 8)
	if err != nil {
		t.Fatalf("Encode(nil) failed: %v", err)
	}
	if len(encoded) != 8 {
		t.Errorf("encoded length = %d; want 8", len(encoded))
	}
	for _, b := range encoded {
		if b != 0 {
			t.Fatal("empty message should encode to all-zero parity")
		}
	}
}

func TestEncodeRejectsOversizedCodeword(t *testing.T) {
	_, err := Encode(make([]byte, 200), 100)
	if !errors.Is(err, errors.ErrRSEncode) {
		t.Errorf("expected ErrRSEncode for 300-symbol codeword, got %v", err)
	}
}

func TestMaxParity(t *testing.T) {
	if got := MaxParity(100); got != 155 {
		t.Errorf("MaxParity(100) = %d; want 155", got)
	}
	if got := MaxParity(255); got != 0 {
		t.Errorf("MaxParity(255) = %d; want 0", got)
	}
}
