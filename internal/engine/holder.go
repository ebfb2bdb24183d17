package engine

import (
	"sync/atomic"

	"ipcmatch/internal/domain"
)

// Holder publishes the current engine. Swapping never disturbs queries that
// already loaded the previous instance.
type Holder struct {
	current atomic.Pointer[Engine]
}

// NewHolder returns a Holder serving e.
func NewHolder(e *Engine) *Holder {
	h := &Holder{}
	h.current.Store(e)
	return h
}

// Load returns the engine currently being served.
func (h *Holder) Load() *Engine { return h.current.Load() }

// Swap installs next and returns the engine it replaced.
func (h *Holder) Swap(next *Engine) *Engine { return h.current.Swap(next) }

// Rank ranks against the current engine.
func (h *Holder) Rank(query string) []domain.MatchResult { return h.Load().Rank(query) }

// AllEntries lists the current engine's sections.
func (h *Holder) AllEntries() []domain.StatuteEntry { return h.Load().AllEntries() }

// Status reports the current engine's build.
func (h *Holder) Status() Status { return h.Load().Status() }
