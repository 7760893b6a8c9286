package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/database"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/generate"
	"github.com/hyperjump/kotae/internal/history"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

func testQueryConfig() config.QueryConfig {
	return config.QueryConfig{
		DefaultK:          3,
		DefaultThreshold:  0.5,
		ContextMaxLength:  2000,
		MinQuestionLength: 5,
	}
}

func newTestEngine(t *testing.T, gen *generate.MockGenerator) *Engine {
	t.Helper()
	db, err := database.New(16, 2, 2, vector.TypeFlat, nil)
	if err != nil {
		t.Fatal(err)
	}
	embedder := embedding.NewMockEmbedder(16)
	hist := history.NewLog(10)
	return NewEngine(db, embedder, gen, hist, testQueryConfig(), "", nil)
}

func addDocs(t *testing.T, e *Engine, docs ...string) {
	t.Helper()
	_, err := e.AddDocuments(context.Background(), &models.AddDocumentsRequest{Documents: docs})
	if err != nil {
		t.Fatal(err)
	}
}

func TestAddDocuments(t *testing.T) {
	e := newTestEngine(t, &generate.MockGenerator{})
	resp, err := e.AddDocuments(context.Background(), &models.AddDocumentsRequest{
		Documents: []string{"doc one", "doc two"},
		Metadata:  []models.Metadata{{"s": "a"}, {"s": "b"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.DocumentIDs) != 2 || resp.TotalDocuments != 2 || resp.TotalVectors != 2 {
		t.Errorf("resp=%+v", resp)
	}
}

func TestAddDocuments_Validation(t *testing.T) {
	e := newTestEngine(t, &generate.MockGenerator{})
	_, err := e.AddDocuments(context.Background(), &models.AddDocumentsRequest{})
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestQuery_RetrievesOwnDocument(t *testing.T) {
	gen := &generate.MockGenerator{Answer: "the answer"}
	e := newTestEngine(t, gen)
	addDocs(t, e, "employees get ten days of paid leave", "the office cat is named Momo")

	zero := 0.0
	resp, err := e.Query(context.Background(), &models.QueryRequest{
		Question:  "employees get ten days of paid leave",
		K:         1,
		Threshold: &zero,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "the answer" {
		t.Errorf("answer=%q", resp.Answer)
	}
	// The question text equals a stored document, so the mock embedder maps it
	// to the identical vector: distance 0, that document retrieved.
	if resp.RetrievalInfo.RetrievedCount != 1 {
		t.Fatalf("retrieved=%d", resp.RetrievalInfo.RetrievedCount)
	}
	if resp.RetrievalInfo.Distances[0] != 0 {
		t.Errorf("distance=%f", resp.RetrievalInfo.Distances[0])
	}
	if resp.RetrievalInfo.DocumentIDs[0] != 0 {
		t.Errorf("document id=%d", resp.RetrievalInfo.DocumentIDs[0])
	}
	if !strings.Contains(gen.LastContext, "paid leave") {
		t.Errorf("generator context=%q", gen.LastContext)
	}
	if resp.Model != "mock" {
		t.Errorf("model=%q", resp.Model)
	}
}

func TestQuery_Validation(t *testing.T) {
	e := newTestEngine(t, &generate.MockGenerator{})
	_, err := e.Query(context.Background(), &models.QueryRequest{Question: "hi"})
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestQuery_NoRetrievalFallback(t *testing.T) {
	gen := &generate.MockGenerator{}
	e := newTestEngine(t, gen)
	// Empty database: the generator is told nothing was found.
	_, err := e.Query(context.Background(), &models.QueryRequest{Question: "anything at all?"})
	if err != nil {
		t.Fatal(err)
	}
	if gen.LastContext != "No relevant information available." {
		t.Errorf("context=%q", gen.LastContext)
	}
}

func TestQuery_CallerContextMerged(t *testing.T) {
	gen := &generate.MockGenerator{}
	e := newTestEngine(t, gen)
	addDocs(t, e, "retrieved document text")

	zero := 0.0
	_, err := e.Query(context.Background(), &models.QueryRequest{
		Question:  "retrieved document text",
		Context:   "caller supplied background",
		Threshold: &zero,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(gen.LastContext, "caller supplied background") {
		t.Errorf("caller context not first: %q", gen.LastContext)
	}
	if !strings.Contains(gen.LastContext, "Supplementary information:") {
		t.Errorf("missing supplementary label: %q", gen.LastContext)
	}
	if !strings.Contains(gen.LastContext, "retrieved document text") {
		t.Errorf("retrieved docs missing: %q", gen.LastContext)
	}
}

func TestQuery_CallerContextOnly(t *testing.T) {
	gen := &generate.MockGenerator{}
	e := newTestEngine(t, gen)
	_, err := e.Query(context.Background(), &models.QueryRequest{
		Question: "a question with no match",
		Context:  "only the caller context",
	})
	if err != nil {
		t.Fatal(err)
	}
	if gen.LastContext != "only the caller context" {
		t.Errorf("context=%q", gen.LastContext)
	}
}

func TestQuery_GenerationFailure(t *testing.T) {
	gen := &generate.MockGenerator{Err: errors.New("model down")}
	e := newTestEngine(t, gen)
	_, err := e.Query(context.Background(), &models.QueryRequest{Question: "will this fail?"})
	var merr *models.ExternalModelError
	if !errors.As(err, &merr) {
		t.Fatalf("expected ExternalModelError, got %v", err)
	}
	if merr.Op != "generate" {
		t.Errorf("op=%q", merr.Op)
	}
}

func TestQuery_RecordsHistory(t *testing.T) {
	e := newTestEngine(t, &generate.MockGenerator{Answer: "ok"})
	_, err := e.Query(context.Background(), &models.QueryRequest{Question: "record this query"})
	if err != nil {
		t.Fatal(err)
	}
	records := e.History(0)
	if len(records) != 1 {
		t.Fatalf("history len=%d", len(records))
	}
	if records[0].Question != "record this query" {
		t.Errorf("question=%q", records[0].Question)
	}
	if records[0].AnswerPreview != "ok" {
		t.Errorf("answer preview=%q", records[0].AnswerPreview)
	}
}

func TestContext(t *testing.T) {
	e := newTestEngine(t, &generate.MockGenerator{})
	addDocs(t, e, "severance pay is two weeks per year served")

	resp, err := e.Context(context.Background(), &models.GetContextRequest{
		Query: "severance pay is two weeks per year served",
		K:     1,
	})
	if err != nil {
		t.Fatal(err)
	}
	// Distance 0 for an exact embedding match, so similarity is 1.000.
	if !strings.HasPrefix(resp.Context, "[similarity: 1.000] ") {
		t.Errorf("context=%q", resp.Context)
	}
	if !strings.Contains(resp.Context, "severance pay") {
		t.Errorf("context=%q", resp.Context)
	}
	if resp.Length != len(resp.Context) {
		t.Errorf("length=%d want %d", resp.Length, len(resp.Context))
	}
}

func TestContext_Validation(t *testing.T) {
	e := newTestEngine(t, &generate.MockGenerator{})
	_, err := e.Context(context.Background(), &models.GetContextRequest{Query: "   "})
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestBatchQuery_PartialFailure(t *testing.T) {
	e := newTestEngine(t, &generate.MockGenerator{Answer: "fine"})
	resp, err := e.BatchQuery(context.Background(), &models.BatchQueryRequest{
		Queries: []models.QueryRequest{
			{Question: "a perfectly good question"},
			{Question: "no"}, // fails validation
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 {
		t.Fatalf("total=%d", resp.Total)
	}
	if resp.Results[0].Answer != "fine" || resp.Results[0].Error != "" {
		t.Errorf("first result %+v", resp.Results[0])
	}
	if resp.Results[1].Error == "" {
		t.Errorf("second result should carry an error: %+v", resp.Results[1])
	}
}

func TestBatchQuery_Empty(t *testing.T) {
	e := newTestEngine(t, &generate.MockGenerator{})
	_, err := e.BatchQuery(context.Background(), &models.BatchQueryRequest{})
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestStats(t *testing.T) {
	e := newTestEngine(t, &generate.MockGenerator{})
	addDocs(t, e, "one", "two")
	if _, err := e.Query(context.Background(), &models.QueryRequest{Question: "count this one"}); err != nil {
		t.Fatal(err)
	}
	s := e.Stats()
	if s.Database.TotalDocuments != 2 {
		t.Errorf("documents=%d", s.Database.TotalDocuments)
	}
	if s.Queries.TotalQueries != 1 {
		t.Errorf("queries=%d", s.Queries.TotalQueries)
	}
}

func TestAssembleContext(t *testing.T) {
	results := []database.SearchResult{{Document: "d1"}, {Document: "d2"}}
	got := assembleContext("", results)
	if got != "d1\nd2" {
		t.Errorf("docs only: %q", got)
	}
	got = assembleContext("base", nil)
	if got != "base" {
		t.Errorf("caller only: %q", got)
	}
	got = assembleContext("", nil)
	if got != noContextFallback {
		t.Errorf("fallback: %q", got)
	}
	got = assembleContext("base", results)
	if got != "base\n\nSupplementary information:\nd1\nd2" {
		t.Errorf("merged: %q", got)
	}
}
