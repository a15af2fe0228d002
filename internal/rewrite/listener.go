package rewrite

import "github.com/roach88/cpurt/internal/ir"

// Event describes one successful rewrite.
type Event struct {
	RunID   string
	Seq     int64
	Pattern string
	Op      string // kind of the rewritten op
	Func    string // enclosing function
	Target  string // runtime target of the emitted call, if any

	// Attrs is a copy of the emitted call's attributes.
	Attrs ir.IRObject
}

// Listener observes rewrites as they happen. Listeners run on the driver's
// goroutine and must not mutate the module.
type Listener interface {
	OnRewrite(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

// OnRewrite calls f(ev).
func (f ListenerFunc) OnRewrite(ev Event) {
	f(ev)
}
