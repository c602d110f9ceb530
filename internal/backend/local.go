package backend

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ferryfs/ferry/internal/progress"
	"github.com/ferryfs/ferry/internal/resource"
)

func init() {
	Register(Driver{
		Scheme: resource.SchemeLocal,
		New: func(_ string, opt Options) (FileSystem, error) {
			return NewLocalFS(opt), nil
		},
	})
}

// LocalFS implements the full contract for the local filesystem. It is also
// the destination side of every download: the materializer relies on its
// atomic rename-based Move.
type LocalFS struct {
	Base
}

// NewLocalFS creates a local backend instance. Components that need local
// filesystem operations receive one explicitly; there is no process-wide
// shared instance.
func NewLocalFS(opt Options) *LocalFS {
	l := &LocalFS{Base: NewBase(resource.SchemeLocal, opt)}
	l.Bind(l)
	return l
}

func localPath(res resource.Resource) string {
	return filepath.FromSlash(res.Path())
}

// Checksum returns the MD5 digest of the file contents.
func (l *LocalFS) Checksum(_ context.Context, res resource.Resource) (string, error) {
	f, err := os.Open(localPath(res))
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", res, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Exists implements FileSystem.
func (l *LocalFS) Exists(_ context.Context, res resource.Resource) (bool, error) {
	_, err := os.Lstat(localPath(res))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// IsDir implements FileSystem.
func (l *LocalFS) IsDir(_ context.Context, res resource.Resource) (bool, error) {
	info, err := os.Stat(localPath(res))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// IsFile implements FileSystem.
func (l *LocalFS) IsFile(_ context.Context, res resource.Resource) (bool, error) {
	info, err := os.Stat(localPath(res))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// IsExec implements FileSystem.
func (l *LocalFS) IsExec(_ context.Context, res resource.Resource) (bool, error) {
	info, err := os.Stat(localPath(res))
	if err != nil {
		return false, err
	}
	return info.Mode()&0o111 != 0, nil
}

// IsCopy reports whether the path holds content of its own rather than a
// link to content elsewhere.
func (l *LocalFS) IsCopy(_ context.Context, res resource.Resource) (bool, error) {
	info, err := os.Lstat(localPath(res))
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// IsEmpty reports true for zero-length files and directories without
// entries.
func (l *LocalFS) IsEmpty(_ context.Context, res resource.Resource) (bool, error) {
	p := localPath(res)
	info, err := os.Stat(p)
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		entries, err := os.ReadDir(p)
		if err != nil {
			return false, err
		}
		return len(entries) == 0, nil
	}
	return info.Size() == 0, nil
}

// Info implements FileSystem.
func (l *LocalFS) Info(_ context.Context, res resource.Resource) (*Info, error) {
	info, err := os.Stat(localPath(res))
	if err != nil {
		return nil, err
	}
	return &Info{
		Size:  info.Size(),
		Mtime: info.ModTime(),
		Mode:  info.Mode(),
		IsDir: info.IsDir(),
	}, nil
}

// Walk yields (dir, subdirs, files) triples top-down, entries sorted by
// name within each directory.
func (l *LocalFS) Walk(ctx context.Context, root resource.Resource) iter.Seq2[DirEntry, error] {
	return func(yield func(DirEntry, error) bool) {
		l.walkDir(ctx, root, yield)
	}
}

func (l *LocalFS) walkDir(ctx context.Context, dir resource.Resource, yield func(DirEntry, error) bool) bool {
	entries, err := os.ReadDir(localPath(dir))
	if err != nil {
		return yield(DirEntry{Dir: dir}, err)
	}
	de := DirEntry{Dir: dir}
	for _, e := range entries {
		if e.IsDir() {
			de.Subdirs = append(de.Subdirs, e.Name())
		} else {
			de.Files = append(de.Files, e.Name())
		}
	}
	if !yield(de, nil) {
		return false
	}
	for _, sub := range de.Subdirs {
		if ctx.Err() != nil {
			return yield(DirEntry{}, ctx.Err())
		}
		if !l.walkDir(ctx, dir.Join(sub), yield) {
			return false
		}
	}
	return true
}

// WalkFiles yields every file under root in lexical order.
func (l *LocalFS) WalkFiles(ctx context.Context, root resource.Resource) iter.Seq2[resource.Resource, error] {
	rootPath := localPath(root)
	return func(yield func(resource.Resource, error) bool) {
		err := filepath.WalkDir(rootPath, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(rootPath, p)
			if err != nil {
				return err
			}
			if !yield(root.Join(filepath.ToSlash(rel)), nil) {
				return fs.SkipAll
			}
			return nil
		})
		if err != nil && !errors.Is(err, fs.SkipAll) {
			yield(resource.Resource{}, err)
		}
	}
}

// Ls lists the immediate children of a directory.
func (l *LocalFS) Ls(ctx context.Context, res resource.Resource, detail bool) ([]Entry, error) {
	entries, err := os.ReadDir(localPath(res))
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		child := res.Join(e.Name())
		entry := Entry{Resource: child}
		if detail {
			info, err := l.Info(ctx, child)
			if err != nil {
				return nil, err
			}
			entry.Info = info
		}
		out = append(out, entry)
	}
	return out, nil
}

// Find lists every file under res recursively, optionally restricted to
// relative paths beginning with prefix.
func (l *LocalFS) Find(ctx context.Context, res resource.Resource, detail bool, prefix string) ([]Entry, error) {
	var out []Entry
	for file, err := range l.WalkFiles(ctx, res) {
		if err != nil {
			return nil, err
		}
		if prefix != "" {
			rel, err := file.RelativeTo(res)
			if err != nil || !strings.HasPrefix(rel, prefix) {
				continue
			}
		}
		entry := Entry{Resource: file}
		if detail {
			info, err := l.Info(ctx, file)
			if err != nil {
				return nil, err
			}
			entry.Info = info
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Resource.Path() < out[j].Resource.Path()
	})
	return out, nil
}

// Open implements FileSystem.
func (l *LocalFS) Open(_ context.Context, res resource.Resource) (io.ReadCloser, error) {
	return os.Open(localPath(res))
}

// Remove deletes a file or a whole directory tree.
func (l *LocalFS) Remove(_ context.Context, res resource.Resource) error {
	return os.RemoveAll(localPath(res))
}

// MakeDirs implements FileSystem.
func (l *LocalFS) MakeDirs(_ context.Context, res resource.Resource) error {
	return os.MkdirAll(localPath(res), 0o755)
}

// Copy duplicates file contents to a new independent path.
func (l *LocalFS) Copy(_ context.Context, from, to resource.Resource) error {
	src, err := os.Open(localPath(from))
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(localPath(to))
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copying %s to %s: %w", from, to, err)
	}
	return dst.Close()
}

// Move overrides the copy-then-remove fallback with an atomic rename. The
// rename requires both paths on one filesystem; across mount points it
// falls back to the non-atomic default.
func (l *LocalFS) Move(ctx context.Context, from, to resource.Resource) error {
	err := os.Rename(localPath(from), localPath(to))
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return l.Base.Move(ctx, from, to)
	}
	return err
}

// Symlink implements FileSystem.
func (l *LocalFS) Symlink(_ context.Context, from, to resource.Resource) error {
	return os.Symlink(localPath(from), localPath(to))
}

// Hardlink implements FileSystem.
func (l *LocalFS) Hardlink(_ context.Context, from, to resource.Resource) error {
	return os.Link(localPath(from), localPath(to))
}

// Reflink creates a copy-on-write clone via cp; Go has no portable syscall
// for it.
func (l *LocalFS) Reflink(ctx context.Context, from, to resource.Resource) error {
	return l.runCmd(ctx, "cp", "--reflink=always", localPath(from), localPath(to))
}

func (l *LocalFS) runCmd(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &CmdError{
				Scheme:   l.Scheme(),
				Cmd:      cmd.String(),
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr.String(),
			}
		}
		return err
	}
	return nil
}

// GetFile copies a local file to a local destination path, reporting
// progress. Present so the local backend can serve as the source side of a
// download.
func (l *LocalFS) GetFile(_ context.Context, from resource.Resource, localDst string, cb progress.Callback) error {
	src, err := os.Open(localPath(from))
	if err != nil {
		return err
	}
	defer src.Close()

	if info, err := src.Stat(); err == nil {
		cb.SetSize(info.Size())
	}
	return writeFileFrom(progress.NewCallbackReader(src, cb), localDst)
}

// PutFile copies a local source file to the destination resource, reporting
// progress.
func (l *LocalFS) PutFile(_ context.Context, localSrc string, to resource.Resource, cb progress.Callback) error {
	src, err := os.Open(localSrc)
	if err != nil {
		return err
	}
	defer src.Close()

	if info, err := src.Stat(); err == nil {
		cb.SetSize(info.Size())
	}
	return writeFileFrom(progress.NewCallbackReader(src, cb), localPath(to))
}

// UploadStream writes an in-memory stream to the destination resource.
func (l *LocalFS) UploadStream(_ context.Context, r io.Reader, to resource.Resource, _ int64) error {
	return writeFileFrom(r, localPath(to))
}

func writeFileFrom(r io.Reader, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return f.Close()
}
