package container

import (
	"time"

	"github.com/sbxfs/sbxfs/internal/block"
	"github.com/sbxfs/sbxfs/internal/log"
)

// ProgressFunc is called periodically with bytes processed and the total
// expected, mirroring the teacher's Reporter callback shape.
type ProgressFunc func(done, total int64)

// CancelFunc reports whether the caller asked for early termination. It is
// polled between blocks, giving cancellation block granularity (spec.md §5).
type CancelFunc func() bool

// EncodeRequest describes one source-file-to-sidecar encode operation.
type EncodeRequest struct {
	SourcePath  string
	SidecarPath string
	Version     block.Version
	UID         block.UID
	Overwrite   bool
	RAID        bool
	Password    string // empty disables the obfuscation layer
	Progress    ProgressFunc
	Cancel      CancelFunc
}

// DecodeRequest describes one sidecar-to-output decode operation.
type DecodeRequest struct {
	SidecarPath string
	OutputPath  string
	Version     block.Version
	Overwrite   bool
	RAID        bool // also look for SidecarPath+".raid" on ECC failure
	Password    string
	// ContinueOnError keeps decoding past a block that could not be
	// recovered (filling it with zeros) instead of failing immediately.
	ContinueOnError bool
	// InfoOnly decodes block 0 and returns its metadata without writing
	// any output file or reading data blocks.
	InfoOnly bool
	// TestOnly decodes every block and verifies the hash but never
	// writes OutputPath.
	TestOnly bool
	Progress ProgressFunc
	Cancel   CancelFunc
}

// operationContext carries the version parameters, start time and logger
// shared by the steps of an encode or decode operation.
type operationContext struct {
	params    block.Params
	startTime time.Time
	log       log.Logger
}

func newOperationContext(p block.Params) *operationContext {
	return &operationContext{params: p, startTime: time.Now(), log: log.GetLogger()}
}

func (c *operationContext) cancelled(cancel CancelFunc) bool {
	return cancel != nil && cancel()
}

func (c *operationContext) report(progress ProgressFunc, done, total int64) {
	if progress != nil {
		progress(done, total)
	}
}
