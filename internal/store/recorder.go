package store

import (
	"slices"
	"sync"

	"github.com/roach88/cpurt/internal/rewrite"
)

// Recorder buffers rewrite events for a later RecordRun. It implements
// rewrite.Listener.
type Recorder struct {
	mu     sync.Mutex
	events []rewrite.Event
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// OnRewrite appends ev.
func (r *Recorder) OnRewrite(ev rewrite.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the buffered events.
func (r *Recorder) Events() []rewrite.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Reset drops the buffered events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
