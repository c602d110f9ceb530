package transfer

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/ferryfs/ferry/internal/backend"
	"github.com/ferryfs/ferry/internal/progress"
	"github.com/ferryfs/ferry/internal/resource"
)

// Download fetches a file or directory from the backend into the
// destination. When source and destination share a non-local scheme the
// transfer is delegated to the backend's server-side copy. Otherwise the
// destination must be local; directories fan out across a bounded worker
// pool, single files materialize atomically.
func (m *Manager) Download(ctx context.Context, from, to resource.Resource, opts DownloadOptions) error {
	return m.download(ctx, from, to, opts, false)
}

// DownloadFile is Download without the directory probe: the source is
// always treated as a single file.
func (m *Manager) DownloadFile(ctx context.Context, from, to resource.Resource, opts DownloadOptions) error {
	return m.download(ctx, from, to, opts, true)
}

func (m *Manager) download(ctx context.Context, from, to resource.Resource, opts DownloadOptions, fileOnly bool) error {
	if !m.caps[backend.CapGetFile] {
		return &backend.ActionError{Action: "get_file", Scheme: m.fs.Scheme()}
	}

	if from.Scheme() != m.fs.Scheme() {
		return fmt.Errorf("%w: cannot download %s via the %s backend",
			backend.ErrCrossBackend, from, m.fs.Scheme())
	}
	if to.Scheme() == m.fs.Scheme() && m.fs.Scheme() != resource.SchemeLocal {
		// Same remote scheme on both sides: server-side copy, nothing is
		// materialized locally.
		return m.fs.Copy(ctx, from, to)
	}
	if to.Scheme() != resource.SchemeLocal {
		return fmt.Errorf("%w: download destination %s is neither local nor on the %s backend",
			backend.ErrCrossBackend, to, m.fs.Scheme())
	}

	if !fileOnly {
		isDir, err := m.fs.IsDir(ctx, from)
		if err != nil {
			return err
		}
		if isDir {
			return m.downloadDir(ctx, from, to, opts)
		}
	}
	return m.downloadFile(ctx, from, to, opts.Desc, opts.Callback, opts.NoProgress)
}

// downloadDir transfers every file under from, concurrently. A single
// failure aborts the whole transfer: work not yet started is never started,
// and the first failure is what the caller sees. A partially transferred
// directory must never look like a completed one.
func (m *Manager) downloadDir(ctx context.Context, from, to resource.Resource, opts DownloadOptions) error {
	var files []resource.Resource
	for file, err := range m.fs.WalkFiles(ctx, from) {
		if err != nil {
			return err
		}
		files = append(files, file)
	}

	if len(files) == 0 {
		return m.local.MakeDirs(ctx, to)
	}

	dests := make([]resource.Resource, len(files))
	for i, file := range files {
		rel, err := file.RelativeTo(from)
		if err != nil {
			return err
		}
		dests[i] = to.Join(rel)
	}

	desc := opts.Desc
	if desc == "" {
		desc = "Downloading directory"
	}
	var bar progress.Callback = progress.Discard
	if !opts.NoProgress {
		countBar := progress.NewCountBar(desc, int64(len(files)))
		defer countBar.Close()
		bar = countBar
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = m.fs.Jobs()
	}

	log.Debugf("downloading directory %q to %q (%d files, %d jobs)",
		from.String(), to.String(), len(files), jobs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i := range files {
		src, dst := files[i], dests[i]
		g.Go(func() error {
			// After the first failure the group context is cancelled;
			// transfers that have not begun stay that way. In-flight ones
			// run to completion and their errors are discarded in favor of
			// the first.
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := m.downloadFile(gctx, src, dst, "", progress.Discard, true); err != nil {
				return err
			}
			bar.Update(1)
			return nil
		})
	}
	return g.Wait()
}

// downloadFile materializes one remote file at the destination path. The
// destination is never observable in a partially written state: bytes land
// in a temporary file next to it, which is atomically renamed into place
// only once the backend primitive has succeeded. On failure the temporary
// file is removed and the destination keeps whatever it held before.
func (m *Manager) downloadFile(ctx context.Context, from, to resource.Resource, desc string, cb progress.Callback, noProgress bool) error {
	if err := m.local.MakeDirs(ctx, to.Parent()); err != nil {
		return err
	}

	// Colocated with the destination so the final step is a same-volume
	// rename, not a copy.
	tmp := tmpPath(to.Path())

	if desc == "" {
		desc = to.Name()
	}
	cb, done := progress.Acquire(cb, desc, -1, noProgress)
	defer done()

	log.Debugf("downloading %q to %q", from.String(), to.String())
	getter := m.fs.(backend.FileGetter)
	if err := getter.GetFile(ctx, from, filepath.FromSlash(tmp), cb); err != nil {
		_ = m.local.Remove(ctx, resource.New(resource.SchemeLocal, tmp))
		return err
	}

	return m.local.Move(ctx, resource.New(resource.SchemeLocal, tmp), to)
}

// tmpPath derives a unique temporary sibling for a destination path.
func tmpPath(path string) string {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return path + "." + hex.EncodeToString(buf[:]) + ".tmp"
}
