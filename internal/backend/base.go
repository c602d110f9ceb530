package backend

import (
	"context"
	"io"
	"iter"
	"runtime"

	"github.com/ferryfs/ferry/internal/resource"
)

// Options carries per-instance backend configuration. Zero values fall back
// to the backend defaults.
type Options struct {
	// Jobs caps concurrent transfers against this instance.
	Jobs int

	// ChecksumJobs caps concurrent checksum computations.
	ChecksumJobs int

	// Config holds backend-specific settings (credentials, endpoints, ...).
	Config map[string]string
}

// DefaultJobs is the default transfer concurrency for a backend instance.
func DefaultJobs() int { return 4 * runtime.NumCPU() }

// DefaultChecksumJobs is the default hashing concurrency.
func DefaultChecksumJobs() int {
	n := runtime.NumCPU() / 2
	if n > 4 {
		n = 4
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Base supplies the declared default for every contract operation. Concrete
// backends embed it and override what they actually support. Bind must be
// called with the outer backend so the copy-then-remove Move fallback
// dispatches to the overridden Copy and Remove.
type Base struct {
	scheme       string
	jobs         int
	checksumJobs int
	config       map[string]string

	// self is the outer backend embedding this Base.
	self FileSystem
}

// NewBase builds the embedded defaults for a backend with the given scheme.
func NewBase(scheme string, opt Options) Base {
	jobs := opt.Jobs
	if jobs <= 0 {
		jobs = DefaultJobs()
	}
	checksumJobs := opt.ChecksumJobs
	if checksumJobs <= 0 {
		checksumJobs = DefaultChecksumJobs()
	}
	return Base{
		scheme:       scheme,
		jobs:         jobs,
		checksumJobs: checksumJobs,
		config:       opt.Config,
	}
}

// Bind registers the outer backend for default implementations that must
// dispatch back into overridden operations.
func (b *Base) Bind(fs FileSystem) { b.self = fs }

// Scheme implements FileSystem.
func (b *Base) Scheme() string { return b.scheme }

// Jobs implements FileSystem.
func (b *Base) Jobs() int { return b.jobs }

// ChecksumJobs implements FileSystem.
func (b *Base) ChecksumJobs() int { return b.checksumJobs }

// Config returns the backend-specific configuration mapping.
func (b *Base) Config() map[string]string { return b.config }

// ConfigValue returns one configuration key, or "" when unset.
func (b *Base) ConfigValue(key string) string { return b.config[key] }

func (b *Base) unsupported(action string) error {
	return &ActionError{Action: action, Scheme: b.scheme}
}

// Checksum must be overridden by every backend.
func (b *Base) Checksum(context.Context, resource.Resource) (string, error) {
	return "", ErrNotImplemented
}

// Info must be overridden by every backend.
func (b *Base) Info(context.Context, resource.Resource) (*Info, error) {
	return nil, ErrNotImplemented
}

// Exists must be overridden by every backend.
func (b *Base) Exists(context.Context, resource.Resource) (bool, error) {
	return false, ErrNotImplemented
}

// IsDir is overridden only by backends that can tell directories from files.
func (b *Base) IsDir(context.Context, resource.Resource) (bool, error) {
	return false, nil
}

// IsFile is overridden only by backends that can tell directories from files.
func (b *Base) IsFile(context.Context, resource.Resource) (bool, error) {
	return true, nil
}

// IsExec is overridden only by backends that track an executable bit.
func (b *Base) IsExec(context.Context, resource.Resource) (bool, error) {
	return false, nil
}

// IsCopy reports whether the file is an independent copy. False by default:
// without backend knowledge we cannot be sure.
func (b *Base) IsCopy(context.Context, resource.Resource) (bool, error) {
	return false, nil
}

// IsEmpty reports whether a file or directory has no content.
func (b *Base) IsEmpty(context.Context, resource.Resource) (bool, error) {
	return false, nil
}

// Walk is unsupported unless overridden.
func (b *Base) Walk(context.Context, resource.Resource) iter.Seq2[DirEntry, error] {
	return func(yield func(DirEntry, error) bool) {
		yield(DirEntry{}, b.unsupported("walk"))
	}
}

// WalkFiles is unsupported unless overridden.
func (b *Base) WalkFiles(context.Context, resource.Resource) iter.Seq2[resource.Resource, error] {
	return func(yield func(resource.Resource, error) bool) {
		yield(resource.Resource{}, b.unsupported("walk_files"))
	}
}

// Ls is unsupported unless overridden.
func (b *Base) Ls(context.Context, resource.Resource, bool) ([]Entry, error) {
	return nil, b.unsupported("ls")
}

// Find is unsupported unless overridden.
func (b *Base) Find(context.Context, resource.Resource, bool, string) ([]Entry, error) {
	return nil, b.unsupported("find")
}

// Open is unsupported unless overridden.
func (b *Base) Open(context.Context, resource.Resource) (io.ReadCloser, error) {
	return nil, b.unsupported("open")
}

// Remove is unsupported unless overridden.
func (b *Base) Remove(context.Context, resource.Resource) error {
	return b.unsupported("remove")
}

// MakeDirs is unsupported unless overridden. Backends without directories
// (object stores) typically override it with a no-op.
func (b *Base) MakeDirs(context.Context, resource.Resource) error {
	return b.unsupported("makedirs")
}

// Copy is unsupported unless overridden.
func (b *Base) Copy(context.Context, resource.Resource, resource.Resource) error {
	return b.unsupported("copy")
}

// Move falls back to copy-then-remove. The fallback is deliberately not
// atomic: an interrupt between the two steps leaves both copies in place,
// and callers depend on exactly that behavior. Backends with a native
// atomic rename override it.
func (b *Base) Move(ctx context.Context, from, to resource.Resource) error {
	if err := b.self.Copy(ctx, from, to); err != nil {
		return err
	}
	return b.self.Remove(ctx, from)
}

// Symlink is unsupported unless overridden.
func (b *Base) Symlink(context.Context, resource.Resource, resource.Resource) error {
	return b.unsupported("symlink")
}

// Hardlink is unsupported unless overridden.
func (b *Base) Hardlink(context.Context, resource.Resource, resource.Resource) error {
	return b.unsupported("hardlink")
}

// Reflink is unsupported unless overridden.
func (b *Base) Reflink(context.Context, resource.Resource, resource.Resource) error {
	return b.unsupported("reflink")
}
