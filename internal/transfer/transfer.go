// Package transfer implements the generic transfer orchestration shared by
// all backends: capability-gated upload/download dispatch, concurrent
// directory downloads with all-or-nothing failure semantics, and atomic
// materialization of downloaded files.
package transfer

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ferryfs/ferry/internal/backend"
	"github.com/ferryfs/ferry/internal/progress"
	"github.com/ferryfs/ferry/internal/resource"
)

var log = logrus.WithField("component", "transfer")

// Manager orchestrates transfers against one backend instance. It owns an
// explicitly constructed local backend for the destination side of
// downloads. A Manager is stateless across calls; one instance serves
// concurrent transfers.
type Manager struct {
	fs    backend.FileSystem
	local *backend.LocalFS
	caps  map[backend.Capability]bool
}

// NewManager creates a transfer manager for fs. The local backend is
// injected rather than created internally so callers control its
// configuration and lifetime.
func NewManager(fs backend.FileSystem, local *backend.LocalFS) *Manager {
	return &Manager{
		fs:    fs,
		local: local,
		caps:  backend.Capabilities(fs),
	}
}

// Source is what an upload reads from: either an in-memory stream or a
// located resource.
type Source struct {
	reader io.Reader
	res    resource.Resource
}

// ReaderSource uploads from an in-memory stream.
func ReaderSource(r io.Reader) Source { return Source{reader: r} }

// PathSource uploads from a located resource, which must be local.
func PathSource(res resource.Resource) Source { return Source{res: res} }

// IsStream reports whether the source is an in-memory stream.
func (s Source) IsStream() bool { return s.reader != nil }

// UploadOptions tunes one Upload call. The zero value is usable.
type UploadOptions struct {
	// Size is the total size hint in bytes; zero or negative means unknown.
	Size int64

	// Desc labels the progress indicator. Defaults to the source name.
	Desc string

	// Callback receives byte updates. When nil a progress indicator is
	// created for the duration of the call.
	Callback progress.Callback

	// NoProgress suppresses the default progress indicator.
	NoProgress bool
}

// DownloadOptions tunes one Download call. The zero value is usable.
type DownloadOptions struct {
	// Desc labels the progress indicator.
	Desc string

	// Callback receives byte updates for single-file downloads. When nil a
	// progress indicator is created for the duration of the call.
	Callback progress.Callback

	// NoProgress suppresses the default progress indicator.
	NoProgress bool

	// Jobs caps directory transfer concurrency. Zero uses the backend's
	// configured default.
	Jobs int
}

// Upload writes the source to the destination resource on the backend.
// Stream sources go through the backend's stream-upload primitive, resource
// sources through its put-file primitive; lacking the needed primitive is an
// ActionError. The destination must live on this backend, and resource
// sources must be local: cross-backend uploads are not implemented here.
func (m *Manager) Upload(ctx context.Context, src Source, to resource.Resource, opts UploadOptions) error {
	if src.IsStream() {
		if !m.caps[backend.CapUploadStream] {
			return &backend.ActionError{Action: "upload_stream", Scheme: m.fs.Scheme()}
		}
	} else if !m.caps[backend.CapPutFile] {
		return &backend.ActionError{Action: "put_file", Scheme: m.fs.Scheme()}
	}

	if to.Scheme() != m.fs.Scheme() {
		return fmt.Errorf("%w: cannot upload to %s via the %s backend",
			backend.ErrCrossBackend, to, m.fs.Scheme())
	}
	if !src.IsStream() && src.res.Scheme() != resource.SchemeLocal {
		return fmt.Errorf("%w: uploads are sourced from local content, got %s",
			backend.ErrCrossBackend, src.res)
	}

	desc := opts.Desc
	if desc == "" {
		if src.IsStream() {
			desc = to.Name()
		} else {
			desc = src.res.Name()
		}
	}

	total := int64(-1)
	if opts.Size > 0 {
		total = opts.Size
	}
	cb, done := progress.Acquire(opts.Callback, desc, total, opts.NoProgress)
	defer done()
	if opts.Size > 0 {
		cb.SetSize(opts.Size)
	}

	if src.IsStream() {
		size := opts.Size
		if size <= 0 {
			size = -1
		}
		// Wrap the stream so every read reports its byte count; the backend
		// never sees the callback.
		wrapped := progress.NewCallbackReader(src.reader, cb)
		return m.fs.(backend.StreamUploader).UploadStream(ctx, wrapped, to, size)
	}

	log.Debugf("uploading %q to %q", src.res.String(), to.String())
	localSrc := filepath.FromSlash(src.res.Path())
	return m.fs.(backend.FilePutter).PutFile(ctx, localSrc, to, cb)
}
