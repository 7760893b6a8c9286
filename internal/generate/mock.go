package generate

import (
	"context"
	"fmt"
)

// MockGenerator returns canned answers for tests. When Err is set, Generate
// fails with it instead.
type MockGenerator struct {
	Answer string
	Err    error
	// LastContext and LastQuestion record the most recent call for assertions.
	LastContext  string
	LastQuestion string
}

// Generate records the inputs and returns the canned answer.
func (g *MockGenerator) Generate(ctx context.Context, contextText, question string, cfg map[string]interface{}) (string, error) {
	g.LastContext = contextText
	g.LastQuestion = question
	if g.Err != nil {
		return "", g.Err
	}
	if g.Answer != "" {
		return g.Answer, nil
	}
	return fmt.Sprintf("mock answer to: %s", question), nil
}

// Model returns a fixed identifier.
func (g *MockGenerator) Model() string { return "mock" }
