package rewrite

import "github.com/roach88/cpurt/internal/ir"

// worklist is a FIFO of ops awaiting pattern application. An op is held at
// most once; pushing an op already queued is a no-op.
//
// Not safe for concurrent use; the driver is single-threaded.
type worklist struct {
	ops    []*ir.Op
	queued map[*ir.Op]bool
}

func newWorklist() *worklist {
	return &worklist{
		ops:    make([]*ir.Op, 0, 64),
		queued: make(map[*ir.Op]bool),
	}
}

// Push adds op to the back of the worklist.
func (w *worklist) Push(op *ir.Op) {
	if w.queued[op] {
		return
	}
	w.queued[op] = true
	w.ops = append(w.ops, op)
}

// Pop removes and returns the front op, or nil when empty.
func (w *worklist) Pop() *ir.Op {
	if len(w.ops) == 0 {
		return nil
	}
	op := w.ops[0]
	// Clear the slot so erased ops are not retained by the backing array.
	w.ops[0] = nil
	if len(w.ops) == 1 {
		w.ops = w.ops[:0]
	} else {
		w.ops = w.ops[1:]
	}
	delete(w.queued, op)
	return op
}

// Len returns the number of queued ops.
func (w *worklist) Len() int {
	return len(w.ops)
}
