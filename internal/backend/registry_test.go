package backend

import (
	"errors"
	"strings"
	"testing"
)

func TestOpenUnknownScheme(t *testing.T) {
	_, err := Open("gopher://host/path", Options{})
	if err == nil {
		t.Fatal("Expected error for unregistered scheme")
	}
	if !strings.Contains(err.Error(), "gopher") {
		t.Errorf("Error should name the scheme, got: %v", err)
	}
}

func TestOpenLocal(t *testing.T) {
	fs, err := Open("/tmp/anywhere", Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if fs.Scheme() != "local" {
		t.Errorf("Expected local backend, got %q", fs.Scheme())
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic on duplicate scheme registration")
		}
	}()
	Register(Driver{Scheme: "local"})
}

func TestCheckRequiresNamesMissingDeps(t *testing.T) {
	failing := Dependency{Name: "ssh-helper", Probe: func() error { return errors.New("not found") }}
	passing := Dependency{Name: "ok-dep", Probe: func() error { return nil }}

	err := checkRequires("sftp", "sftp://host/data", []Dependency{passing, failing})
	if err == nil {
		t.Fatal("Expected MissingDepsError")
	}

	var missing *MissingDepsError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingDepsError, got %T", err)
	}
	if missing.URL != "sftp://host/data" {
		t.Errorf("Expected URL preserved, got %q", missing.URL)
	}
	if missing.Scheme != "sftp" {
		t.Errorf("Expected scheme sftp, got %q", missing.Scheme)
	}
	if len(missing.Missing) != 1 || missing.Missing[0] != "ssh-helper" {
		t.Errorf("Expected exactly the failing dep, got %v", missing.Missing)
	}
	if !strings.Contains(err.Error(), "ssh-helper") {
		t.Errorf("Message should name the missing dep: %v", err)
	}
	if missing.Hint == "" {
		t.Error("Hint must not be empty")
	}
}

func TestCheckRequiresSortsMissing(t *testing.T) {
	fail := func() error { return errors.New("nope") }
	err := checkRequires("s3", "", []Dependency{
		{Name: "zeta", Probe: fail},
		{Name: "alpha", Probe: fail},
	})

	var missing *MissingDepsError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingDepsError, got %T", err)
	}
	if missing.Missing[0] != "alpha" || missing.Missing[1] != "zeta" {
		t.Errorf("Missing deps must be sorted, got %v", missing.Missing)
	}
	if missing.URL != "s3://" {
		t.Errorf("Empty URL should fall back to the scheme, got %q", missing.URL)
	}
}

func TestCheckRequiresAllPresent(t *testing.T) {
	deps := []Dependency{{Name: "ok", Probe: func() error { return nil }}}
	if err := checkRequires("s3", "s3://bucket", deps); err != nil {
		t.Fatalf("Expected nil, got %v", err)
	}
}

func TestInstallHintPerChannel(t *testing.T) {
	orig := Channel
	defer func() { Channel = orig }()

	Channel = "brew"
	if hint := installHint("sftp"); !strings.Contains(hint, "brew install ferry-sftp") {
		t.Errorf("Unexpected brew hint: %q", hint)
	}

	Channel = ""
	if hint := installHint("sftp"); !strings.Contains(hint, "report this bug") {
		t.Errorf("Source builds should point at the bug tracker, got %q", hint)
	}
}
