// Package util provides common utilities and constants for sbxfs.
//
// This package contains:
//   - Size constants (KiB, MiB, GiB, TiB) for byte calculations
//   - Progress/speed/time formatting functions (Statify, Timeify, Sizeify)
//   - Buffer pooling helpers for large file operations
//
// All utilities are stateless and thread-safe.
package util

// Size constants for byte calculations
const (
	KiB = 1 << 10 // 1024
	MiB = 1 << 20 // 1,048,576
	GiB = 1 << 30 // 1,073,741,824
	TiB = 1 << 40 // 1,099,511,627,776
)
