package sim

import "github.com/san-kum/cartpoles/internal/dynamo"

// Entry is one index-aligned record of the simulation.
type Entry struct {
	State   dynamo.State
	Control dynamo.Control
	Torque  float64
	Time    float64
}

// History is the append-only record of a run. With a positive capacity it is
// a ring buffer that evicts the oldest entry on overflow; otherwise it grows
// without bound and callers are expected to Truncate or export it.
type History struct {
	entries []Entry
	start   int // index of the oldest entry when capped
	cap     int
	dropped int
}

func NewHistory(capacity int) *History {
	h := &History{cap: capacity}
	if capacity > 0 {
		h.entries = make([]Entry, 0, capacity)
	}
	return h
}

func (h *History) Append(e Entry) {
	if h.cap > 0 && len(h.entries) == h.cap {
		h.entries[h.start] = e
		h.start = (h.start + 1) % h.cap
		h.dropped++
		return
	}
	h.entries = append(h.entries, e)
}

func (h *History) Len() int { return len(h.entries) }

// At returns the i-th retained entry, oldest first.
func (h *History) At(i int) Entry { return h.entries[h.index(i)] }

func (h *History) index(i int) int {
	if h.start == 0 {
		return i
	}
	return (h.start + i) % len(h.entries)
}

func (h *History) Last() (Entry, bool) {
	if len(h.entries) == 0 {
		return Entry{}, false
	}
	return h.At(len(h.entries) - 1), true
}

// Dropped counts entries evicted by the capacity bound or Truncate.
func (h *History) Dropped() int { return h.dropped }

// Entries returns a copy of the retained entries, oldest first.
func (h *History) Entries() []Entry {
	out := make([]Entry, 0, len(h.entries))
	out = append(out, h.entries[h.start:]...)
	return append(out, h.entries[:h.start]...)
}

// Truncate keeps only the newest keep entries.
func (h *History) Truncate(keep int) {
	if keep < 0 {
		keep = 0
	}
	if keep >= len(h.entries) {
		return
	}
	drop := len(h.entries) - keep
	ordered := h.Entries()
	h.entries = append(h.entries[:0], ordered[drop:]...)
	h.start = 0
	h.dropped += drop
}

func (h *History) Reset() {
	h.entries = h.entries[:0]
	h.start = 0
	h.dropped = 0
}

func (h *History) States() []dynamo.State {
	out := make([]dynamo.State, len(h.entries))
	for i := range out {
		out[i] = h.At(i).State
	}
	return out
}

func (h *History) Controls() []dynamo.Control {
	out := make([]dynamo.Control, len(h.entries))
	for i := range out {
		out[i] = h.At(i).Control
	}
	return out
}

func (h *History) Times() []float64 {
	out := make([]float64, len(h.entries))
	for i := range out {
		out[i] = h.At(i).Time
	}
	return out
}

func (h *History) Torques() []float64 {
	out := make([]float64, len(h.entries))
	for i := range out {
		out[i] = h.At(i).Torque
	}
	return out
}
