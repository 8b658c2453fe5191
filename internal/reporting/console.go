package reporting

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/gregoiredehame/checker/internal/ir"
)

// ConsoleOptions mirror the report preferences: which lines to print.
type ConsoleOptions struct {
	ShowSuccess bool
	ShowErrors  bool
	ShowNodes   bool
	ShowTime    bool
	NoColor     bool
}

func DefaultConsoleOptions() ConsoleOptions {
	return ConsoleOptions{ShowSuccess: true, ShowErrors: true, ShowNodes: true, ShowTime: true}
}

// Console prints one status line per rule:
//
//	[ SUCCESS ] References (0.000012s)
//	[ ERROR ] Empty Groups (0.000051s)
//	 - '|grp|empty'
type Console struct {
	w    io.Writer
	opts ConsoleOptions
	ok   *color.Color
	bad  *color.Color
	warn *color.Color
}

func NewConsole(w io.Writer, opts ConsoleOptions) *Console {
	c := &Console{
		w:    w,
		opts: opts,
		ok:   color.New(color.FgGreen, color.Bold),
		bad:  color.New(color.FgRed, color.Bold),
		warn: color.New(color.FgYellow, color.Bold),
	}
	if opts.NoColor {
		c.ok.DisableColor()
		c.bad.DisableColor()
		c.warn.DisableColor()
	}
	return c
}

func (c *Console) Emit(display string, findings []ir.Entity, elapsed time.Duration, status ir.Status) {
	var tag string
	switch status {
	case ir.StatusSuccess:
		if !c.opts.ShowSuccess {
			return
		}
		tag = c.ok.Sprint("[ SUCCESS ]")
	case ir.StatusCancelled:
		tag = c.warn.Sprint("[ CANCELLED ]")
	default:
		if !c.opts.ShowErrors {
			return
		}
		tag = c.bad.Sprint("[ ERROR ]")
	}
	if c.opts.ShowTime {
		fmt.Fprintf(c.w, "%s %s (%fs)\n", tag, display, elapsed.Seconds())
	} else {
		fmt.Fprintf(c.w, "%s %s\n", tag, display)
	}
	if status == ir.StatusSuccess || !c.opts.ShowNodes {
		return
	}
	for _, e := range findings {
		fmt.Fprintf(c.w, " - '%s'\n", e)
	}
}
