// Package obfuscate implements the SBX password layer: a keystream XOR
// applied to block payloads before Reed-Solomon encoding (and reversed
// after decoding). This is NOT encryption — it does not authenticate or
// meaningfully hide the data from anyone who suspects a password was
// used, only from a casual byte scan. Every CLI front end accepting
// -p/--password documents this plainly.
package obfuscate

import (
	"github.com/minio/sha256-simd"
)

// Keystream is a password-derived byte stream of a fixed length, XORed
// against one block's worth of payload.
type Keystream struct {
	key []byte
}

// New derives a keystream of exactly size bytes from password:
// k0 = SHA256(password), k1 = SHA256(password||k0), k2 = SHA256(password||k1), ...
// concatenated and truncated to size.
func New(password string, size int) *Keystream {
	passBytes := []byte(password)
	key := make([]byte, 0, size+sha256.Size)

	h := sha256.Sum256(passBytes)
	key = append(key, h[:]...)
	for len(key) < size {
		h = sha256.Sum256(append(append([]byte(nil), passBytes...), h[:]...))
		key = append(key, h[:]...)
	}
	return &Keystream{key: key[:size]}
}

// XOR writes src^key into dst. dst and src must both have the keystream's
// configured length; dst and src may alias.
func (k *Keystream) XOR(dst, src []byte) {
	for i := range src {
		dst[i] = src[i] ^ k.key[i]
	}
}

// Apply XORs buf in place against the keystream.
func (k *Keystream) Apply(buf []byte) {
	k.XOR(buf, buf)
}

// Zero wipes the derived key material once a container operation finishes.
func (k *Keystream) Zero() {
	for i := range k.key {
		k.key[i] = 0
	}
}
