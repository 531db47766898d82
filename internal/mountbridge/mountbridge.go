// Package mountbridge is the small, FUSE-library-agnostic surface a
// passthrough mount uses to invoke the core container encoder/decoder on
// release/open. The actual FUSE syscall binding is out of scope (spec.md
// §1/§6); this package only carries the bookkeeping spec.md §9 specifies
// so a real passthrough layer has something correct to call into.
package mountbridge

import (
	"bytes"
	"sync"

	"github.com/sbxfs/sbxfs/internal/block"
	"github.com/sbxfs/sbxfs/internal/container"
)

// Inode tracks every path that currently aliases one host filesystem
// inode. Hardlinks mean an inode is a SET of paths, not a single path, so
// this is a map rather than a tagged union (spec.md §9).
type Inode struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

// NewInode creates an inode tracker seeded with one path.
func NewInode(path string) *Inode {
	return &Inode{paths: map[string]struct{}{path: {}}}
}

// AddPath records an additional hardlinked path for this inode.
func (i *Inode) AddPath(path string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.paths[path] = struct{}{}
}

// RemovePath drops a path, e.g. on unlink. Returns true if no paths remain.
func (i *Inode) RemovePath(path string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.paths, path)
	return len(i.paths) == 0
}

// AnyPath returns one path aliasing this inode, or "" if none remain.
func (i *Inode) AnyPath() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	for p := range i.paths {
		return p
	}
	return ""
}

// ActiveEncodings is the process-wide active_sbx_encodings set (spec.md
// §5): the set of backing-file paths currently mid-encode. Any open on a
// path in this set must serve the live file without attempting a decode;
// any release on a path in this set is a no-op with respect to encoding
// (an encode for that path is already in flight). The mutex is held only
// across the map operations below, never across I/O, so a worker doing
// the actual encode/decode never blocks another goroutine's lookup.
type ActiveEncodings struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

// NewActiveEncodings creates an empty active-encodings set.
func NewActiveEncodings() *ActiveEncodings {
	return &ActiveEncodings{paths: map[string]struct{}{}}
}

// TryStart marks path as actively encoding. It returns false if an
// encoding for this path was already in flight.
func (a *ActiveEncodings) TryStart(path string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.paths[path]; ok {
		return false
	}
	a.paths[path] = struct{}{}
	return true
}

// Finish clears path's active-encoding marker.
func (a *ActiveEncodings) Finish(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.paths, path)
}

// IsActive reports whether path currently has an encoding in flight.
func (a *ActiveEncodings) IsActive(path string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.paths[path]
	return ok
}

// Bridge wires a passthrough mount's release/open hooks to the container
// encoder/decoder, using ActiveEncodings to give the ordering guarantee
// in spec.md §5: an open following a successful release sees either a
// consistent sidecar or none, never a partial one.
type Bridge struct {
	Active  *ActiveEncodings
	Version block.Version
}

// NewBridge creates a Bridge for the given container version.
func NewBridge(ver block.Version) *Bridge {
	return &Bridge{Active: NewActiveEncodings(), Version: ver}
}

// OnRelease is invoked when the passthrough layer's release handler fires
// for path. It should be run on a worker goroutine, not the FUSE event
// loop (spec.md §5), since Encode blocks on file I/O. sidecarPath is
// path's sidecar location, conventionally path+".sbx".
func (b *Bridge) OnRelease(path, sidecarPath string) error {
	if !b.Active.TryStart(path) {
		return nil // an encoding for this path is already in flight
	}
	defer b.Active.Finish(path)

	return container.Encode(&container.EncodeRequest{
		SourcePath:  path,
		SidecarPath: sidecarPath,
		Version:     b.Version,
		Overwrite:   true,
	})
}

// OnOpen is invoked when the passthrough layer's open handler fires for
// path. If path is mid-encode it must serve the live file untouched; it
// otherwise decodes the sidecar over path whenever the live content no
// longer matches the sidecar's stored hash.
func (b *Bridge) OnOpen(path, sidecarPath string) error {
	if b.Active.IsActive(path) {
		return nil
	}

	sum, err := container.HashFile(path)
	if err != nil {
		return err
	}

	md, err := container.PeekMetadata(b.Version, sidecarPath)
	if err != nil {
		return err
	}
	if md.HasHash && bytes.Equal(sum, md.Sha256) {
		return nil
	}

	_, err = container.Decode(&container.DecodeRequest{
		SidecarPath: sidecarPath,
		OutputPath:  path,
		Version:     b.Version,
		Overwrite:   true,
	})
	return err
}

