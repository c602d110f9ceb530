package resource

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// SchemeLocal is the scheme of resources on the local filesystem.
const SchemeLocal = "local"

// Resource locates a file or directory on some backend as a (scheme, path)
// pair. The path always uses forward slashes, regardless of the host OS.
// Resources are immutable and comparable; two resources are equal when both
// scheme and path match.
type Resource struct {
	scheme string
	path   string
}

// New creates a resource from an explicit scheme and slash-separated path.
func New(scheme, p string) Resource {
	return Resource{scheme: scheme, path: clean(p)}
}

// Parse builds a resource from a URL-style string. Strings without a scheme
// (plain paths) are treated as local. For object-store schemes such as s3 the
// host becomes the leading path component (the bucket).
func Parse(raw string) (Resource, error) {
	if !strings.Contains(raw, "://") {
		if raw == "" {
			return Resource{}, fmt.Errorf("empty resource path")
		}
		return New(SchemeLocal, raw), nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Resource{}, fmt.Errorf("invalid resource URL %q: %w", raw, err)
	}
	if u.Scheme == "" {
		return Resource{}, fmt.Errorf("resource URL %q has no scheme", raw)
	}

	p := u.Path
	if u.Host != "" {
		p = u.Host + p
	}
	return New(u.Scheme, p), nil
}

// MustParse is Parse for statically known inputs; it panics on error.
func MustParse(raw string) Resource {
	r, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return r
}

// Scheme returns the backend scheme, e.g. "local", "s3", "sftp".
func (r Resource) Scheme() string { return r.scheme }

// Path returns the slash-separated path within the backend.
func (r Resource) Path() string { return r.path }

// IsZero reports whether r is the zero resource.
func (r Resource) IsZero() bool { return r.scheme == "" && r.path == "" }

// Name returns the final path component.
func (r Resource) Name() string { return path.Base(r.path) }

// Parent returns the resource one level up from r.
func (r Resource) Parent() Resource {
	return Resource{scheme: r.scheme, path: path.Dir(r.path)}
}

// Join derives a child resource by appending relative path elements.
func (r Resource) Join(elem ...string) Resource {
	parts := append([]string{r.path}, elem...)
	return Resource{scheme: r.scheme, path: clean(path.Join(parts...))}
}

// RelativeTo returns r's path relative to base. It fails when r does not
// live under base or the schemes differ.
func (r Resource) RelativeTo(base Resource) (string, error) {
	if r.scheme != base.scheme {
		return "", fmt.Errorf("%q is not relative to %q: scheme mismatch", r, base)
	}
	if r.path == base.path {
		return ".", nil
	}
	prefix := strings.TrimSuffix(base.path, "/") + "/"
	if !strings.HasPrefix(r.path, prefix) {
		return "", fmt.Errorf("%q is not under %q", r, base)
	}
	return strings.TrimPrefix(r.path, prefix), nil
}

// String renders the resource as a URL, or as a bare path for local resources.
func (r Resource) String() string {
	if r.scheme == SchemeLocal {
		return r.path
	}
	return r.scheme + "://" + r.path
}

func clean(p string) string {
	cleaned := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if cleaned == "." {
		return ""
	}
	// Keep the root slash, drop any trailing one.
	if len(cleaned) > 1 {
		cleaned = strings.TrimSuffix(cleaned, "/")
	}
	return cleaned
}
