package runner

import (
	"sync/atomic"

	"github.com/gregoiredehame/checker/internal/rules"
)

// Holder publishes the current registry. Registries are immutable; reloading
// rules builds a new one and swaps it in.
type Holder struct {
	p atomic.Pointer[rules.Registry]
}

func NewHolder(reg *rules.Registry) *Holder {
	h := &Holder{}
	h.p.Store(reg)
	return h
}

func (h *Holder) Load() *rules.Registry { return h.p.Load() }

// Swap installs reg and returns the previous registry.
func (h *Holder) Swap(reg *rules.Registry) *rules.Registry { return h.p.Swap(reg) }
