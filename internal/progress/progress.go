// Package progress scopes a cancellable, optionally visible progress
// indicator around a loop over N entities.
package progress

import (
	"context"
	"errors"
	"fmt"
)

// ErrPanic wraps a panic recovered inside Run.
var ErrPanic = errors.New("panic in progress scope")

// Frame is one indicator refresh.
type Frame struct {
	Title   string
	Count   int
	Total   int
	Percent int
	Label   string
}

// Indicator is the visible part of a harness. Cancelled reports a user
// request to stop (a cancel button, a key press).
type Indicator interface {
	Start(title string, total int)
	Update(f Frame)
	Cancelled() bool
	End()
}

// Harness is Active until Close.
type Harness struct {
	ctx     context.Context
	title   string
	total   int
	count   int
	closed  bool
	visible bool
	ind     Indicator
}

// Open starts a harness over total entities. The indicator is only driven
// when enabled; ctx cancellation is honored either way.
func Open(ctx context.Context, total int, title string, enabled bool, ind Indicator) *Harness {
	if ctx == nil {
		ctx = context.Background()
	}
	h := &Harness{ctx: ctx, title: title, total: total, ind: ind, visible: enabled && ind != nil}
	if h.visible {
		ind.Start(title, total)
	}
	return h
}

// Advance reports whether the caller may process the next entity. It checks
// cancellation before counting, so a false return leaves the count unchanged.
func (h *Harness) Advance(label string) bool {
	if h.closed {
		return false
	}
	if h.ctx.Err() != nil {
		return false
	}
	if h.visible && h.ind.Cancelled() {
		return false
	}
	h.count++
	if h.visible {
		h.ind.Update(Frame{Title: h.title, Count: h.count, Total: h.total, Percent: h.Percent(), Label: label})
	}
	return true
}

// Percent is 100*count/total, 100 for an empty harness.
func (h *Harness) Percent() int {
	if h.total <= 0 {
		return 100
	}
	p := 100 * h.count / h.total
	if p > 100 {
		p = 100
	}
	return p
}

func (h *Harness) Count() int   { return h.count }
func (h *Harness) Active() bool { return !h.closed }

// Close ends the indicator. Safe to call more than once.
func (h *Harness) Close() {
	if h.closed {
		return
	}
	h.closed = true
	if h.visible {
		h.ind.End()
	}
}

type Options struct {
	Total     int
	Title     string
	Enabled   bool
	Indicator Indicator
}

// Run opens a harness, hands it to fn and closes it on every exit path. A
// panic in fn is returned as an error wrapping ErrPanic, after the indicator
// has been closed.
func Run(ctx context.Context, opts Options, fn func(h *Harness) error) (err error) {
	h := Open(ctx, opts.Total, opts.Title, opts.Enabled, opts.Indicator)
	defer func() {
		h.Close()
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return fn(h)
}

// Nop is an Indicator that draws nothing and never cancels.
type Nop struct{}

func (Nop) Start(string, int) {}
func (Nop) Update(Frame)      {}
func (Nop) Cancelled() bool   { return false }
func (Nop) End()              {}
