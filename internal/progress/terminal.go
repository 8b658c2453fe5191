package progress

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/fatih/color"
)

// Terminal draws a single-line bar:
//
//	[#####-----]  42% 3/7 : Get Ngons: |pCube1
type Terminal struct {
	w         io.Writer
	width     int
	cancelled atomic.Bool
	fill      *color.Color
	dim       *color.Color
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{
		w:     w,
		width: 30,
		fill:  color.New(color.FgGreen, color.Bold),
		dim:   color.New(color.FgHiBlack),
	}
}

// Cancel requests a stop; the next Advance returns false. The request
// stays pending across harnesses so a batch stops at the next rule.
func (t *Terminal) Cancel() { t.cancelled.Store(true) }

// CancelOn cancels once a line (or EOF) is read from r. The reader is
// consumed in its own goroutine.
func (t *Terminal) CancelOn(r io.Reader) {
	go func() {
		sc := bufio.NewScanner(r)
		sc.Scan()
		t.Cancel()
	}()
}

func (t *Terminal) Start(title string, total int) {
	fmt.Fprintf(t.w, "%s (%d)\n", title, total)
}

func (t *Terminal) Update(f Frame) {
	n := t.width * f.Percent / 100
	bar := t.fill.Sprint(strings.Repeat("#", n)) + t.dim.Sprint(strings.Repeat("-", t.width-n))
	fmt.Fprintf(t.w, "\r\033[K[%s] %3d%% %d/%d : %s", bar, f.Percent, f.Count, f.Total, f.Label)
}

func (t *Terminal) Cancelled() bool { return t.cancelled.Load() }

func (t *Terminal) End() { fmt.Fprint(t.w, "\r\033[K") }
