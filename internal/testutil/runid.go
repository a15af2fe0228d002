package testutil

// FixedRunIDGenerator returns the same run ID every time. It implements
// rewrite.RunIDGenerator.
//
// A scenario lowered twice with the same generator records identical
// traces, which is what golden comparison needs. rewrite.FixedGenerator
// instead hands out a sequence and panics once it runs dry.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator returning id.
// An empty id becomes "test-run-default".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run ID.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
