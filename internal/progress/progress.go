// Package progress defines the callback protocol through which transfers
// report how many bytes (or files) they have moved, plus the default
// terminal progress bar used when the caller supplies no callback.
package progress

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// Callback receives incremental transfer updates. Implementations must be
// safe for concurrent use: directory transfers update one callback from
// multiple workers.
type Callback interface {
	// Update reports n additional units (bytes or files) transferred.
	Update(n int64)

	// SetSize reports the total transfer size once it becomes known.
	SetSize(total int64)
}

// Discard is a Callback that drops all updates.
var Discard Callback = discard{}

type discard struct{}

func (discard) Update(int64)  {}
func (discard) SetSize(int64) {}

// Func adapts a plain function to a Callback. SetSize is ignored.
type Func func(n int64)

// Update implements Callback.
func (f Func) Update(n int64) { f(n) }

// SetSize implements Callback.
func (f Func) SetSize(int64) {}

// Bar is a terminal progress bar satisfying Callback. The zero value is not
// usable; construct with NewBar or NewCountBar.
type Bar struct {
	bar *progressbar.ProgressBar
}

// NewBar creates a byte-based progress bar. Pass total -1 when the size is
// not yet known; SetSize adjusts it later.
func NewBar(desc string, total int64) *Bar {
	return &Bar{bar: progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowBytes(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)}
}

// NewCountBar creates a unit-count progress bar, used for "files done out of
// files total" style reporting during directory transfers.
func NewCountBar(desc string, total int64) *Bar {
	return &Bar{bar: progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)}
}

// Update implements Callback.
func (b *Bar) Update(n int64) { _ = b.bar.Add64(n) }

// SetSize implements Callback.
func (b *Bar) SetSize(total int64) { b.bar.ChangeMax64(total) }

// Close finishes rendering and releases the bar.
func (b *Bar) Close() error { return b.bar.Close() }

// Acquire returns cb when non-nil; otherwise it creates a progress indicator
// scoped to the returned close function. The close function must be called on
// every exit path and is safe to call when the caller supplied the callback.
func Acquire(cb Callback, desc string, total int64, quiet bool) (Callback, func()) {
	if cb != nil {
		return cb, func() {}
	}
	if quiet {
		return Discard, func() {}
	}
	bar := NewBar(desc, total)
	return bar, func() { _ = bar.Close() }
}

// CallbackReader wraps a stream so that every Read reports its byte count,
// transparently to whoever consumes the stream.
type CallbackReader struct {
	r  io.Reader
	cb Callback
}

// NewCallbackReader wraps r so reads are reported to cb.
func NewCallbackReader(r io.Reader, cb Callback) *CallbackReader {
	return &CallbackReader{r: r, cb: cb}
}

// Read implements io.Reader.
func (c *CallbackReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.cb.Update(int64(n))
	}
	return n, err
}
