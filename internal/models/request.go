// Package models defines request/response structures and input validation for the Kotae API.
package models

import (
	"fmt"
	"strings"
)

// Metadata is the per-document metadata mapping. Every stored metadata map
// carries the assigned document ID under the "id" key.
type Metadata map[string]interface{}

// AddDocumentsRequest is the input for adding documents to the vector database.
type AddDocumentsRequest struct {
	Documents []string   `json:"documents"`
	Metadata  []Metadata `json:"metadata,omitempty"`
}

// Validate checks the add request. Metadata, when supplied, must match the
// document count; mismatched lengths are rejected rather than silently
// truncated or padded.
func (r *AddDocumentsRequest) Validate() *ValidationError {
	var details []string
	if len(r.Documents) == 0 {
		details = append(details, "documents must be a non-empty list")
	}
	for i, doc := range r.Documents {
		if strings.TrimSpace(doc) == "" {
			details = append(details, fmt.Sprintf("documents[%d] must not be empty", i))
		}
	}
	if len(r.Metadata) > 0 && len(r.Metadata) != len(r.Documents) {
		details = append(details, fmt.Sprintf(
			"metadata length %d does not match documents length %d", len(r.Metadata), len(r.Documents)))
	}
	if details != nil {
		return &ValidationError{Details: details}
	}
	return nil
}

// AddDocumentsResponse reports the outcome of an add request.
type AddDocumentsResponse struct {
	Message        string  `json:"message"`
	DocumentIDs    []int64 `json:"document_ids"`
	TotalDocuments int     `json:"total_documents"`
	TotalVectors   int     `json:"total_vectors"`
}

// QueryRequest is the input for a retrieval-augmented query.
// Threshold is a pointer so that an explicit 0.0 (keep everything) is
// distinguishable from an omitted field (use the configured default).
type QueryRequest struct {
	Context          string                 `json:"context,omitempty"`
	Question         string                 `json:"question"`
	K                int                    `json:"k,omitempty"`
	Threshold        *float64               `json:"threshold,omitempty"`
	GenerationConfig map[string]interface{} `json:"generation_config,omitempty"`
}

// Validate checks the question (and context, when supplied) against the minimum
// trimmed length. minLength <= 0 means the default of 5 characters.
func (r *QueryRequest) Validate(minLength int) *ValidationError {
	if minLength <= 0 {
		minLength = 5
	}
	var details []string
	if strings.TrimSpace(r.Question) == "" {
		details = append(details, "question must be a non-empty string")
	} else if len(strings.TrimSpace(r.Question)) < minLength {
		details = append(details, fmt.Sprintf("question must be at least %d characters", minLength))
	}
	// Context is optional; it is validated only when the caller supplies one.
	if r.Context != "" && len(strings.TrimSpace(r.Context)) < minLength {
		details = append(details, fmt.Sprintf("context must be at least %d characters", minLength))
	}
	if details != nil {
		return &ValidationError{Details: details}
	}
	return nil
}

// GetContextRequest asks for assembled context without generation.
type GetContextRequest struct {
	Query     string `json:"query"`
	K         int    `json:"k,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`
}

// Validate checks the query text.
func (r *GetContextRequest) Validate() *ValidationError {
	if strings.TrimSpace(r.Query) == "" {
		return &ValidationError{Details: []string{"query must be a non-empty string"}}
	}
	return nil
}

// GetContextResponse carries the assembled context text.
type GetContextResponse struct {
	Context string `json:"context"`
	Length  int    `json:"length"`
}

// BatchQueryRequest holds multiple queries processed in order.
type BatchQueryRequest struct {
	Queries []QueryRequest `json:"queries"`
}

// BatchQueryResult is the outcome of one query within a batch. Either Answer
// or Error is set.
type BatchQueryResult struct {
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
	Error    string `json:"error,omitempty"`
}

// BatchQueryResponse is the response for a batch query.
type BatchQueryResponse struct {
	Total   int                `json:"total"`
	Results []BatchQueryResult `json:"results"`
}
