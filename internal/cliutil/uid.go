package cliutil

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/sbxfs/sbxfs/internal/block"
)

// ParseUID implements the `-uid HEX|r` flag convention: a literal hex-digit
// UID right-padded/truncated to 6 bytes (spec.md §3), or "r" for a freshly
// generated random one.
func ParseUID(flagValue string) (block.UID, error) {
	var uid block.UID
	if flagValue == "r" || flagValue == "" {
		if _, err := rand.Read(uid[:]); err != nil {
			return uid, fmt.Errorf("generating random uid: %w", err)
		}
		return uid, nil
	}

	digits := flagValue
	if len(digits)%2 != 0 {
		digits += "0"
	}
	raw, err := hex.DecodeString(digits)
	if err != nil {
		return uid, fmt.Errorf("invalid uid %q: %w", flagValue, err)
	}

	copy(uid[:], raw) // short raw leaves the tail zero; long raw is truncated
	return uid, nil
}
