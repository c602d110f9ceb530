package main

import (
	"fmt"
	"strings"

	"github.com/ferryfs/ferry/internal/backend"
	"github.com/ferryfs/ferry/internal/config"
	"github.com/ferryfs/ferry/internal/resource"
	"github.com/ferryfs/ferry/internal/transfer"
)

// loadConfig reads the config file if one exists. A missing file is not
// an error: URLs can always be given in full on the command line.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		if configPath != "" {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return config.DefaultConfig(), nil
	}
	return cfg, nil
}

// expandURL resolves "name:path" against the configured remotes. An
// argument whose prefix names a remote becomes that remote's URL joined
// with the path; anything else passes through untouched.
func expandURL(cfg *config.Config, raw string) (string, *config.RemoteConfig) {
	name, rest, ok := strings.Cut(raw, ":")
	if ok && !strings.HasPrefix(rest, "//") {
		if rc, err := cfg.Remote(name); err == nil {
			u := strings.TrimRight(rc.URL, "/")
			if rest != "" {
				u += "/" + strings.TrimLeft(rest, "/")
			}
			return u, &rc
		}
	}
	// Full URL: still pick up options from a remote that covers it.
	for _, rc := range cfg.Remotes {
		if strings.HasPrefix(raw, strings.TrimRight(rc.URL, "/")) {
			return raw, &rc
		}
	}
	return raw, nil
}

// openFS builds the backend for a URL or remote argument, applying config
// options and command-line overrides.
func openFS(cfg *config.Config, raw string) (backend.FileSystem, resource.Resource, error) {
	rawURL, rc := expandURL(cfg, raw)

	opt := backend.Options{}
	if rc != nil {
		opt.Jobs = rc.Jobs
		opt.ChecksumJobs = rc.ChecksumJobs
		opt.Config = rc.Options
	}
	if opt.Jobs == 0 {
		opt.Jobs = cfg.Jobs
	}
	if jobs > 0 {
		opt.Jobs = jobs
	}

	fs, err := backend.Open(rawURL, opt)
	if err != nil {
		return nil, resource.Resource{}, err
	}
	return fs, resource.MustParse(rawURL), nil
}

// openManager wires a backend into a transfer manager backed by the
// local filesystem.
func openManager(cfg *config.Config, raw string) (*transfer.Manager, resource.Resource, error) {
	fs, res, err := openFS(cfg, raw)
	if err != nil {
		return nil, resource.Resource{}, err
	}
	local := backend.NewLocalFS(backend.Options{Jobs: fs.Jobs()})
	return transfer.NewManager(fs, local), res, nil
}
