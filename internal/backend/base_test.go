package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/ferryfs/ferry/internal/resource"
)

// stubFS embeds Base and overrides nothing, exposing the raw defaults.
type stubFS struct {
	Base
}

func newStubFS(t *testing.T) *stubFS {
	t.Helper()
	fs := &stubFS{Base: NewBase("stub", Options{})}
	fs.Bind(fs)
	return fs
}

func TestBaseRequiredOverrides(t *testing.T) {
	fs := newStubFS(t)
	ctx := context.Background()
	res := resource.New("stub", "some/path")

	if _, err := fs.Checksum(ctx, res); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("Checksum: expected ErrNotImplemented, got %v", err)
	}
	if _, err := fs.Info(ctx, res); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("Info: expected ErrNotImplemented, got %v", err)
	}
	if _, err := fs.Exists(ctx, res); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("Exists: expected ErrNotImplemented, got %v", err)
	}
}

func TestBasePredicateDefaults(t *testing.T) {
	fs := newStubFS(t)
	ctx := context.Background()
	res := resource.New("stub", "some/path")

	checks := []struct {
		name string
		fn   func(context.Context, resource.Resource) (bool, error)
		want bool
	}{
		{"IsDir", fs.IsDir, false},
		{"IsFile", fs.IsFile, true},
		{"IsExec", fs.IsExec, false},
		{"IsCopy", fs.IsCopy, false},
		{"IsEmpty", fs.IsEmpty, false},
	}
	for _, c := range checks {
		got, err := c.fn(ctx, res)
		if err != nil {
			t.Errorf("%s: unexpected error %v", c.name, err)
		}
		if got != c.want {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestBaseUnsupportedActions(t *testing.T) {
	fs := newStubFS(t)
	ctx := context.Background()
	res := resource.New("stub", "a")
	dst := resource.New("stub", "b")

	cases := []struct {
		action string
		err    error
	}{
		{"ls", func() error { _, err := fs.Ls(ctx, res, false); return err }()},
		{"find", func() error { _, err := fs.Find(ctx, res, false, ""); return err }()},
		{"open", func() error { _, err := fs.Open(ctx, res); return err }()},
		{"remove", fs.Remove(ctx, res)},
		{"makedirs", fs.MakeDirs(ctx, res)},
		{"copy", fs.Copy(ctx, res, dst)},
		{"symlink", fs.Symlink(ctx, res, dst)},
		{"hardlink", fs.Hardlink(ctx, res, dst)},
		{"reflink", fs.Reflink(ctx, res, dst)},
	}
	for _, c := range cases {
		var actionErr *ActionError
		if !errors.As(c.err, &actionErr) {
			t.Errorf("%s: expected ActionError, got %v", c.action, c.err)
			continue
		}
		if actionErr.Action != c.action {
			t.Errorf("Expected action %q, got %q", c.action, actionErr.Action)
		}
		if actionErr.Scheme != "stub" {
			t.Errorf("Expected scheme stub, got %q", actionErr.Scheme)
		}
	}
}

func TestBaseWalkUnsupported(t *testing.T) {
	fs := newStubFS(t)
	root := resource.New("stub", "root")

	for _, err := range fs.WalkFiles(context.Background(), root) {
		var actionErr *ActionError
		if !errors.As(err, &actionErr) || actionErr.Action != "walk_files" {
			t.Errorf("Expected walk_files ActionError, got %v", err)
		}
	}
	for _, err := range fs.Walk(context.Background(), root) {
		var actionErr *ActionError
		if !errors.As(err, &actionErr) || actionErr.Action != "walk" {
			t.Errorf("Expected walk ActionError, got %v", err)
		}
	}
}

// moveFS overrides Copy and Remove so the inherited Move must dispatch
// through them.
type moveFS struct {
	Base
	calls     []string
	copyErr   error
	removeErr error
}

func (m *moveFS) Copy(ctx context.Context, from, to resource.Resource) error {
	m.calls = append(m.calls, "copy")
	return m.copyErr
}

func (m *moveFS) Remove(ctx context.Context, res resource.Resource) error {
	m.calls = append(m.calls, "remove")
	return m.removeErr
}

func TestBaseMoveIsCopyThenRemove(t *testing.T) {
	fs := &moveFS{Base: NewBase("stub", Options{})}
	fs.Bind(fs)

	from := resource.New("stub", "a")
	to := resource.New("stub", "b")
	if err := fs.Move(context.Background(), from, to); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if len(fs.calls) != 2 || fs.calls[0] != "copy" || fs.calls[1] != "remove" {
		t.Errorf("Expected [copy remove], got %v", fs.calls)
	}
}

func TestBaseMoveStopsOnCopyFailure(t *testing.T) {
	wantErr := errors.New("copy exploded")
	fs := &moveFS{Base: NewBase("stub", Options{}), copyErr: wantErr}
	fs.Bind(fs)

	err := fs.Move(context.Background(), resource.New("stub", "a"), resource.New("stub", "b"))
	if !errors.Is(err, wantErr) {
		t.Fatalf("Expected copy error, got %v", err)
	}
	if len(fs.calls) != 1 || fs.calls[0] != "copy" {
		t.Errorf("Remove must not run after a failed copy, calls: %v", fs.calls)
	}
}

func TestNewBaseDefaults(t *testing.T) {
	b := NewBase("stub", Options{})
	if b.Jobs() != DefaultJobs() {
		t.Errorf("Expected default jobs %d, got %d", DefaultJobs(), b.Jobs())
	}
	if b.ChecksumJobs() != DefaultChecksumJobs() {
		t.Errorf("Expected default checksum jobs %d, got %d", DefaultChecksumJobs(), b.ChecksumJobs())
	}

	b = NewBase("stub", Options{Jobs: 7, ChecksumJobs: 2, Config: map[string]string{"k": "v"}})
	if b.Jobs() != 7 || b.ChecksumJobs() != 2 {
		t.Errorf("Options not applied: jobs=%d checksumJobs=%d", b.Jobs(), b.ChecksumJobs())
	}
	if b.ConfigValue("k") != "v" {
		t.Errorf("Expected config value v, got %q", b.ConfigValue("k"))
	}
	if b.ConfigValue("missing") != "" {
		t.Error("Unset config keys must return the empty string")
	}
}

func TestActionErrorMessage(t *testing.T) {
	err := &ActionError{Action: "reflink", Scheme: "sftp"}
	want := "reflink is not supported for sftp remotes"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}

func TestCapabilitiesResolution(t *testing.T) {
	caps := Capabilities(newStubFS(t))
	if caps[CapGetFile] || caps[CapPutFile] || caps[CapUploadStream] {
		t.Errorf("Plain Base must expose no transfer capabilities, got %v", caps)
	}

	local := NewLocalFS(Options{})
	caps = Capabilities(local)
	if !caps[CapGetFile] || !caps[CapPutFile] || !caps[CapUploadStream] {
		t.Errorf("Local backend must expose all transfer capabilities, got %v", caps)
	}
}
