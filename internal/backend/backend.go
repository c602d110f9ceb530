// Package backend defines the contract every storage backend implements,
// the declared defaults for operations a backend omits, and the registry
// through which configured backend instances are constructed.
package backend

import (
	"context"
	"io"
	"io/fs"
	"iter"
	"time"

	"github.com/ferryfs/ferry/internal/progress"
	"github.com/ferryfs/ferry/internal/resource"
)

// Info describes a single file or directory. Size is always populated for
// files; the remaining fields are best effort per backend.
type Info struct {
	Size     int64
	Mtime    time.Time
	Mode     fs.FileMode
	IsDir    bool
	Checksum string
}

// Entry pairs a resource with its detail info. Info is nil when the listing
// was requested without detail.
type Entry struct {
	Resource resource.Resource
	Info     *Info
}

// DirEntry is one step of a recursive Walk: a directory plus the names of
// its immediate subdirectories and files.
type DirEntry struct {
	Dir     resource.Resource
	Subdirs []string
	Files   []string
}

// FileSystem is the full set of operations a backend may implement. Embed
// Base to inherit the declared default for everything not overridden:
//
//	Checksum, Info, Exists    ErrNotImplemented (required overrides)
//	IsDir, IsExec, IsCopy     false
//	IsEmpty                   false
//	IsFile                    true
//	Walk, WalkFiles, Ls,
//	Find, Open, Remove,
//	MakeDirs, Copy, Symlink,
//	Hardlink, Reflink         *ActionError naming the action and scheme
//	Move                      Copy then Remove (not atomic)
//
// The orchestrator relies on these defaults to tell a missing required
// override (a bug) apart from an expected backend limitation.
type FileSystem interface {
	// Scheme returns the backend's URL scheme.
	Scheme() string

	// Jobs returns the configured default transfer concurrency.
	Jobs() int

	// ChecksumJobs returns the configured default hashing concurrency.
	ChecksumJobs() int

	Checksum(ctx context.Context, res resource.Resource) (string, error)
	Exists(ctx context.Context, res resource.Resource) (bool, error)
	IsDir(ctx context.Context, res resource.Resource) (bool, error)
	IsFile(ctx context.Context, res resource.Resource) (bool, error)
	IsExec(ctx context.Context, res resource.Resource) (bool, error)
	IsCopy(ctx context.Context, res resource.Resource) (bool, error)
	IsEmpty(ctx context.Context, res resource.Resource) (bool, error)
	Info(ctx context.Context, res resource.Resource) (*Info, error)

	// Walk yields (dir, subdirs, files) triples for every directory under
	// root. The sequence is lazy and restartable.
	Walk(ctx context.Context, root resource.Resource) iter.Seq2[DirEntry, error]

	// WalkFiles yields every file under root, recursively. The sequence is
	// lazy and restartable: ranging over it twice re-lists the backend.
	WalkFiles(ctx context.Context, root resource.Resource) iter.Seq2[resource.Resource, error]

	Ls(ctx context.Context, res resource.Resource, detail bool) ([]Entry, error)
	Find(ctx context.Context, res resource.Resource, detail bool, prefix string) ([]Entry, error)

	Open(ctx context.Context, res resource.Resource) (io.ReadCloser, error)
	Remove(ctx context.Context, res resource.Resource) error
	MakeDirs(ctx context.Context, res resource.Resource) error

	Copy(ctx context.Context, from, to resource.Resource) error
	Move(ctx context.Context, from, to resource.Resource) error
	Symlink(ctx context.Context, from, to resource.Resource) error
	Hardlink(ctx context.Context, from, to resource.Resource) error
	Reflink(ctx context.Context, from, to resource.Resource) error
}

// FileGetter is the optional "get file" primitive: download one remote file
// into a local path, reporting bytes to cb.
type FileGetter interface {
	GetFile(ctx context.Context, from resource.Resource, localPath string, cb progress.Callback) error
}

// FilePutter is the optional "put file" primitive: upload one local file to
// a backend resource, reporting bytes to cb.
type FilePutter interface {
	PutFile(ctx context.Context, localPath string, to resource.Resource, cb progress.Callback) error
}

// StreamUploader is the optional in-memory stream upload primitive. size is
// a hint; pass -1 when unknown. Progress is reported by the stream itself,
// which the orchestrator wraps before calling.
type StreamUploader interface {
	UploadStream(ctx context.Context, r io.Reader, to resource.Resource, size int64) error
}

// Capability names an optional transfer primitive.
type Capability string

const (
	CapGetFile      Capability = "get_file"
	CapPutFile      Capability = "put_file"
	CapUploadStream Capability = "upload_stream"
)

// Capabilities resolves which optional primitives fs implements. The result
// is fixed by the backend's type; resolve it once per instance, not per call.
func Capabilities(fs FileSystem) map[Capability]bool {
	_, getFile := fs.(FileGetter)
	_, putFile := fs.(FilePutter)
	_, upStream := fs.(StreamUploader)
	return map[Capability]bool{
		CapGetFile:      getFile,
		CapPutFile:      putFile,
		CapUploadStream: upStream,
	}
}
