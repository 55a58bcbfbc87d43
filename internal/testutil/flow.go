package testutil

// FixedFlowGenerator returns the same flow token on every call, so every
// event a test produces carries one known token.
//
// Safe for concurrent use.
type FixedFlowGenerator struct {
	token string
}

// NewFixedFlowGenerator returns a generator for token.
// An empty token becomes "test-flow-default".
func NewFixedFlowGenerator(token string) *FixedFlowGenerator {
	if token == "" {
		token = "test-flow-default"
	}
	return &FixedFlowGenerator{token: token}
}

// Generate implements registry.FlowTokenGenerator.
func (g *FixedFlowGenerator) Generate() string {
	return g.token
}
