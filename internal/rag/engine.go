// Package rag orchestrates retrieval-augmented question answering: it embeds
// the question, retrieves supporting documents from the vector database,
// assembles the prompt context, and calls the generation model.
package rag

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/database"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/generate"
	"github.com/hyperjump/kotae/internal/history"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// noContextFallback is used as the prompt context when nothing was retrieved
// and the caller supplied no context of their own.
const noContextFallback = "No relevant information available."

// previewLen caps the document and answer previews in responses and history.
const previewLen = 100

// Engine wires the vector database, the embedder, the generator, and the
// query history together. Embeddings are computed before any database call so
// model latency never holds the database lock.
type Engine struct {
	db        *database.VectorDatabase
	embedder  embedding.Embedder
	generator generate.Generator
	history   *history.Log
	cfg       config.QueryConfig
	savePath  string
	logger    *zap.Logger
}

// NewEngine creates a query engine. savePath is the persistence prefix the
// database is saved to after successful writes; empty disables auto-save.
func NewEngine(db *database.VectorDatabase, embedder embedding.Embedder, generator generate.Generator, hist *history.Log, cfg config.QueryConfig, savePath string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:        db,
		embedder:  embedder,
		generator: generator,
		history:   hist,
		cfg:       cfg,
		savePath:  savePath,
		logger:    logger,
	}
}

// AddDocuments embeds the documents and appends them to the database as a
// paired unit, then persists the database. Returns the assigned document IDs.
func (e *Engine) AddDocuments(ctx context.Context, req *models.AddDocumentsRequest) (*models.AddDocumentsResponse, error) {
	if verr := req.Validate(); verr != nil {
		return nil, verr
	}

	embeddings, err := e.embedder.EmbedBatch(ctx, req.Documents)
	if err != nil {
		return nil, &models.ExternalModelError{Op: "embed", Err: err}
	}

	ids, err := e.db.AddEmbeddings(embeddings, req.Documents, req.Metadata)
	if err != nil {
		return nil, err
	}

	if e.savePath != "" {
		if err := e.db.Save(e.savePath); err != nil {
			return nil, err
		}
	}

	stats := e.db.Stats()
	return &models.AddDocumentsResponse{
		Message:        "documents added",
		DocumentIDs:    ids,
		TotalDocuments: stats.TotalDocuments,
		TotalVectors:   stats.TotalVectors,
	}, nil
}

// Query answers a question using retrieved documents plus any caller-supplied
// context. Retrieval uses the configured defaults for k and threshold when the
// request omits them; an explicit threshold of zero keeps every candidate.
func (e *Engine) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error) {
	start := time.Now()

	if verr := req.Validate(e.cfg.MinQuestionLength); verr != nil {
		return nil, verr
	}

	k := req.K
	if k <= 0 {
		k = e.cfg.DefaultK
	}
	threshold := e.cfg.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	queryVec, err := e.embedder.Embed(ctx, req.Question)
	if err != nil {
		return nil, &models.ExternalModelError{Op: "embed", Err: err}
	}

	results, err := e.db.Search(queryVec, k, &threshold)
	if err != nil {
		return nil, err
	}

	contextUsed := assembleContext(req.Context, results)

	answer, err := e.generator.Generate(ctx, contextUsed, req.Question, req.GenerationConfig)
	if err != nil {
		return nil, &models.ExternalModelError{Op: "generate", Err: err}
	}

	elapsed := time.Since(start).Seconds()

	distances := make([]float32, len(results))
	ids := make([]int64, len(results))
	previews := make([]string, len(results))
	for i, r := range results {
		distances[i] = r.Distance
		ids[i] = r.ID
		previews[i] = utils.Truncate(r.Document, previewLen)
	}

	if e.history != nil {
		e.history.Append(history.Record{
			Question:       req.Question,
			ContextPreview: utils.Truncate(req.Context, previewLen),
			AnswerPreview:  utils.Truncate(answer, previewLen),
			RetrievedCount: len(results),
			ResponseTime:   elapsed,
			Distances:      distances,
		})
	}

	e.logger.Info("query answered",
		zap.Int("retrieved", len(results)),
		zap.Float64("response_time", elapsed))

	return &models.QueryResponse{
		Answer: answer,
		RetrievalInfo: models.RetrievalInfo{
			RetrievedCount:   len(results),
			Distances:        distances,
			DocumentIDs:      ids,
			DocumentsPreview: previews,
		},
		ContextUsed:  contextUsed,
		ResponseTime: elapsed,
		Model:        e.generator.Model(),
	}, nil
}

// Context embeds the query and returns the assembled context block without
// invoking the generation model. No similarity threshold is applied; the
// configured defaults fill in k and maxLength when the request omits them.
func (e *Engine) Context(ctx context.Context, req *models.GetContextRequest) (*models.GetContextResponse, error) {
	if verr := req.Validate(); verr != nil {
		return nil, verr
	}

	k := req.K
	if k <= 0 {
		k = e.cfg.DefaultK
	}
	maxLength := req.MaxLength
	if maxLength <= 0 {
		maxLength = e.cfg.ContextMaxLength
	}

	queryVec, err := e.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, &models.ExternalModelError{Op: "embed", Err: err}
	}

	text, err := e.db.GetContext(queryVec, k, maxLength)
	if err != nil {
		return nil, err
	}
	return &models.GetContextResponse{Context: text, Length: len(text)}, nil
}

// BatchQuery processes the queries in order. Per-query failures are reported
// in the corresponding result instead of aborting the batch.
func (e *Engine) BatchQuery(ctx context.Context, req *models.BatchQueryRequest) (*models.BatchQueryResponse, error) {
	if len(req.Queries) == 0 {
		return nil, &models.ValidationError{Details: []string{"queries must be a non-empty list"}}
	}

	results := make([]models.BatchQueryResult, 0, len(req.Queries))
	for i := range req.Queries {
		q := req.Queries[i]
		resp, err := e.Query(ctx, &q)
		if err != nil {
			results = append(results, models.BatchQueryResult{
				Question: q.Question,
				Error:    err.Error(),
			})
			continue
		}
		results = append(results, models.BatchQueryResult{
			Question: q.Question,
			Answer:   resp.Answer,
		})
	}
	return &models.BatchQueryResponse{Total: len(results), Results: results}, nil
}

// Stats combines the database statistics with query-history aggregates.
type Stats struct {
	Database models.Stats `json:"database"`
	Queries  QueryStats   `json:"queries"`
}

// QueryStats summarizes the query history.
type QueryStats struct {
	TotalQueries        int     `json:"total_queries"`
	AverageResponseTime float64 `json:"average_response_time"`
}

// Stats returns current database and history statistics.
func (e *Engine) Stats() Stats {
	s := Stats{Database: e.db.Stats()}
	if e.history != nil {
		s.Queries.TotalQueries = e.history.Len()
		s.Queries.AverageResponseTime = e.history.AverageResponseTime()
	}
	return s
}

// History returns up to limit recent query records.
func (e *Engine) History(limit int) []history.Record {
	if e.history == nil {
		return nil
	}
	return e.history.Recent(limit)
}

// Database exposes the underlying database for stats and persistence hooks.
func (e *Engine) Database() *database.VectorDatabase { return e.db }

// Model returns the generation model identifier.
func (e *Engine) Model() string { return e.generator.Model() }

// assembleContext merges caller-supplied context with retrieved documents.
// Retrieved documents are appended under a "Supplementary information" label
// when both are present; with neither, a fixed fallback line is used so the
// model is told explicitly that nothing was found.
func assembleContext(callerContext string, results []database.SearchResult) string {
	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = r.Document
	}
	retrieved := strings.Join(docs, "\n")

	switch {
	case callerContext != "" && retrieved != "":
		return callerContext + "\n\nSupplementary information:\n" + retrieved
	case retrieved != "":
		return retrieved
	case callerContext != "":
		return callerContext
	default:
		return noContextFallback
	}
}
