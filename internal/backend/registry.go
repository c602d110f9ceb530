package backend

import (
	"fmt"
	"sync"

	"github.com/ferryfs/ferry/internal/resource"
)

// Driver ties a scheme to its backend constructor and the static
// declarations fixed at backend-type definition time.
type Driver struct {
	// Scheme is the URL scheme this backend serves.
	Scheme string

	// Requires lists external dependencies checked by the capability gate
	// before any instance is constructed.
	Requires []Dependency

	// New constructs a backend instance for the given URL and options.
	New func(rawURL string, opt Options) (FileSystem, error)
}

var (
	driversMu sync.RWMutex
	drivers   = map[string]Driver{}
)

// Register makes a backend driver available by its scheme. It panics on a
// duplicate scheme; drivers register from init.
func Register(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[d.Scheme]; dup {
		panic(fmt.Sprintf("backend: driver for scheme %q registered twice", d.Scheme))
	}
	drivers[d.Scheme] = d
}

// Schemes returns the registered scheme names.
func Schemes() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	out := make([]string, 0, len(drivers))
	for s := range drivers {
		out = append(out, s)
	}
	return out
}

// Open constructs the backend instance serving rawURL. The capability gate
// runs first: missing declared dependencies fail construction with a
// MissingDepsError. Open is meant to be called once per endpoint, outside
// the transfer hot path; the returned instance is safe for concurrent
// transfers.
func Open(rawURL string, opt Options) (FileSystem, error) {
	res, err := resource.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return OpenScheme(res.Scheme(), rawURL, opt)
}

// OpenScheme is Open for a pre-parsed scheme.
func OpenScheme(scheme, rawURL string, opt Options) (FileSystem, error) {
	driversMu.RLock()
	d, ok := drivers[scheme]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported URL scheme %q", scheme)
	}
	if err := checkRequires(scheme, rawURL, d.Requires); err != nil {
		return nil, err
	}
	fs, err := d.New(rawURL, opt)
	if err != nil {
		return nil, fmt.Errorf("constructing %s backend: %w", scheme, err)
	}
	return fs, nil
}
