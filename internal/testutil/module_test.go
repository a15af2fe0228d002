package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cpurt/internal/ir"
	"github.com/roach88/cpurt/internal/lowering"
	"github.com/roach88/cpurt/internal/rewrite"
)

const replicaModule = `
module: {
	name: "m"
	funcs: main: {
		results: [{dtype: "i32"}]
		ops: [
			{op: "xla_cpu.replica_id", results: [{name: "r", type: {dtype: "i32"}}]},
			{op: "func.return", operands: ["r"]},
		]
	}
}
`

func TestMustCompile(t *testing.T) {
	m := MustCompile(t, replicaModule)

	assert.Equal(t, "m", m.Name)
	assert.Equal(t, 1, m.CountOps(ir.OpReplicaID))
}

func TestDeterministicClock_DrivesLowering(t *testing.T) {
	clock := NewDeterministicClock()
	gen := NewFixedRunIDGenerator("run-1")

	lower := func() *lowering.Result {
		clock.Reset()
		var events []rewrite.Event
		res, err := lowering.Run(context.Background(), MustCompile(t, replicaModule),
			lowering.WithRewriteOptions(
				rewrite.WithClock(clock),
				rewrite.WithRunIDGenerator(gen),
				rewrite.WithLogger(rewrite.DiscardLogger()),
				rewrite.WithListener(rewrite.ListenerFunc(func(ev rewrite.Event) { events = append(events, ev) })),
			))
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, int64(1), events[0].Seq)
		return res
	}

	first, second := lower(), lower()
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, first.OutputFingerprint, second.OutputFingerprint)
	assert.Equal(t, int64(1), clock.Current())
}

func TestRewriteOptions(t *testing.T) {
	res, err := lowering.Run(context.Background(), MustCompile(t, replicaModule),
		lowering.WithRewriteOptions(RewriteOptions()...))
	require.NoError(t, err)

	assert.Equal(t, "test-run-default", res.RunID)
	assert.Equal(t, int64(1), res.LastSeq)
}
