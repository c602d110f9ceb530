package backend

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
)

// Dependency is one external requirement a backend type declares: a helper
// binary, a credentials helper, anything that must be resolvable before an
// instance of the backend is worth constructing.
type Dependency struct {
	// Name is the dependency identifier shown in error messages.
	Name string

	// Probe reports whether the dependency is resolvable right now.
	Probe func() error
}

// BinaryDep declares a dependency on an executable findable in PATH.
func BinaryDep(name, binary string) Dependency {
	return Dependency{
		Name:  name,
		Probe: func() error { _, err := exec.LookPath(binary); return err },
	}
}

// EnvDep declares a dependency on a non-empty environment variable.
func EnvDep(name, envVar string) Dependency {
	return Dependency{
		Name: name,
		Probe: func() error {
			if os.Getenv(envVar) == "" {
				return fmt.Errorf("environment variable %s is not set", envVar)
			}
			return nil
		},
	}
}

// Channel identifies the packaging channel this binary was installed
// through. Set via -ldflags at release build time; empty for source builds.
var Channel = ""

// checkRequires runs the capability gate: every declared dependency must
// resolve or construction fails. Called once per instance construction by
// Open, never on the transfer path.
func checkRequires(scheme, rawURL string, requires []Dependency) error {
	var missing []string
	for _, dep := range requires {
		if err := dep.Probe(); err != nil {
			missing = append(missing, dep.Name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)

	if rawURL == "" {
		rawURL = scheme + "://"
	}
	return &MissingDepsError{
		URL:     rawURL,
		Scheme:  scheme,
		Missing: missing,
		Hint:    installHint(scheme),
	}
}

func installHint(scheme string) string {
	byChannel := map[string]string{
		"brew": fmt.Sprintf("brew install ferry-%s", scheme),
		"deb":  fmt.Sprintf("apt install ferry-%s", scheme),
		"rpm":  fmt.Sprintf("dnf install ferry-%s", scheme),
	}
	if cmd, ok := byChannel[Channel]; ok {
		return fmt.Sprintf(
			"To install ferry with those dependencies, run:\n\n\t%s\n\nSee https://ferryfs.dev/install for more info.", cmd)
	}
	return "Please report this bug to https://github.com/ferryfs/ferry/issues. Thank you!"
}
