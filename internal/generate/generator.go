// Package generate provides the answer-generation model client. The model is
// an external collaborator: given assembled context and a question it returns
// generated text. Generation parameters from the request are passed through.
package generate

import "context"

// Generator produces an answer from retrieved context and a question.
type Generator interface {
	// Generate returns the model's answer. cfg holds per-request overrides
	// (temperature, top_p, max_length); unknown keys are ignored.
	Generate(ctx context.Context, contextText, question string, cfg map[string]interface{}) (string, error)
	// Model returns the model identifier used for responses.
	Model() string
}
