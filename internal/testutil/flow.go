package testutil

// FixedRequestIDGenerator returns the same request ID every time.
//
// Request IDs only appear in logs, so pinning them keeps captured log output
// comparable across runs.
//
// Thread-safety: FixedRequestIDGenerator is stateless and safe for concurrent use.
type FixedRequestIDGenerator struct {
	id string
}

// NewFixedRequestIDGenerator creates a generator that always returns id.
// If id is empty, Generate() returns "test-request-default".
func NewFixedRequestIDGenerator(id string) *FixedRequestIDGenerator {
	if id == "" {
		id = "test-request-default"
	}
	return &FixedRequestIDGenerator{id: id}
}

// Generate returns the fixed request ID.
//
// Implements engine.RequestIDGenerator.
func (g *FixedRequestIDGenerator) Generate() string {
	return g.id
}
