package ir

// InsertionPoint identifies where a Builder places new ops: before an
// anchor op, or at the end of the block when the anchor is nil.
type InsertionPoint struct {
	Block  *Block
	Before *Op
}

// IsSet reports whether the insertion point refers to a block.
func (ip InsertionPoint) IsSet() bool {
	return ip.Block != nil
}

// Builder creates ops at an insertion point.
//
// OnCreate, when set, is called for every op the builder inserts. The
// rewrite driver uses it to enqueue new ops on its worklist.
type Builder struct {
	ip       InsertionPoint
	OnCreate func(*Op)
}

// NewBuilder returns a builder with no insertion point.
func NewBuilder() *Builder {
	return &Builder{}
}

// SetInsertionPoint places new ops immediately before op.
func (b *Builder) SetInsertionPoint(op *Op) {
	b.ip = InsertionPoint{Block: op.block, Before: op}
}

// SetInsertionPointToStart places new ops at the start of blk. Ops created
// in sequence keep their relative order.
func (b *Builder) SetInsertionPointToStart(blk *Block) {
	var first *Op
	if len(blk.ops) > 0 {
		first = blk.ops[0]
	}
	b.ip = InsertionPoint{Block: blk, Before: first}
}

// SetInsertionPointToEnd places new ops at the end of blk.
func (b *Builder) SetInsertionPointToEnd(blk *Block) {
	b.ip = InsertionPoint{Block: blk}
}

// SaveInsertionPoint returns the current insertion point.
func (b *Builder) SaveInsertionPoint() InsertionPoint {
	return b.ip
}

// RestoreInsertionPoint resets the insertion point to a saved value.
func (b *Builder) RestoreInsertionPoint(ip InsertionPoint) {
	b.ip = ip
}

// InsertionGuard saves the insertion point and returns a func restoring it.
//
//	defer b.InsertionGuard()()
func (b *Builder) InsertionGuard() func() {
	saved := b.ip
	return func() { b.ip = saved }
}

// Insert places a detached op at the insertion point.
func (b *Builder) Insert(op *Op) *Op {
	if b.ip.Block == nil {
		panic("ir.Builder: no insertion point set")
	}
	if b.ip.Before != nil && b.ip.Before.block != b.ip.Block {
		// Anchor moved or erased since the point was set; fall back to end.
		b.ip.Before = nil
	}
	if err := b.ip.Block.InsertBefore(b.ip.Before, op); err != nil {
		panic(err)
	}
	if b.OnCreate != nil {
		b.OnCreate(op)
	}
	return op
}

// Create builds and inserts an op.
func (b *Builder) Create(name OpName, operands []*Value, resultTypes []Type, attrs IRObject) *Op {
	return b.Insert(NewOp(name, operands, resultTypes, attrs))
}

// CreateCall builds and inserts a func.call to callee.
func (b *Builder) CreateCall(callee string, operands []*Value, resultTypes []Type) *Op {
	op := NewOp(OpCall, operands, resultTypes, nil)
	op.Callee = callee
	return b.Insert(op)
}
