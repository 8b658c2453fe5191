package reporting

import (
	"time"

	"github.com/gregoiredehame/checker/internal/ir"
	"github.com/gregoiredehame/checker/internal/runner"
)

type Entry struct {
	Display  string
	Findings []ir.Entity
	Elapsed  time.Duration
	Status   ir.Status
}

// Collector keeps every emitted result in order.
type Collector struct {
	Entries []Entry
}

func (c *Collector) Emit(display string, findings []ir.Entity, elapsed time.Duration, status ir.Status) {
	c.Entries = append(c.Entries, Entry{display, append([]ir.Entity(nil), findings...), elapsed, status})
}

// Failed lists the entries that did not pass.
func (c *Collector) Failed() []Entry {
	var out []Entry
	for _, e := range c.Entries {
		if e.Status != ir.StatusSuccess {
			out = append(out, e)
		}
	}
	return out
}

type multi []runner.Sink

// Multi fans every result out to each sink in order.
func Multi(sinks ...runner.Sink) runner.Sink { return multi(sinks) }

func (m multi) Emit(display string, findings []ir.Entity, elapsed time.Duration, status ir.Status) {
	for _, s := range m {
		s.Emit(display, findings, elapsed, status)
	}
}
