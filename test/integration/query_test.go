// Package integration runs the full query pipeline end to end: embed, store,
// persist, restart, retrieve, answer.
package integration

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/database"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/generate"
	"github.com/hyperjump/kotae/internal/history"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/internal/vector"
)

const (
	docLeave = "Employees are entitled to 10 paid leave days per year."
	docBonus = "A bonus is paid after one year of tenure."
)

func queryConfig() config.QueryConfig {
	return config.QueryConfig{
		DefaultK:          3,
		DefaultThreshold:  0.5,
		ContextMaxLength:  2000,
		MinQuestionLength: 5,
	}
}

func newEngine(t *testing.T, indexType, savePath string) *rag.Engine {
	t.Helper()
	db, err := database.New(32, 2, 2, indexType, nil)
	if err != nil {
		t.Fatal(err)
	}
	if savePath != "" {
		if err := db.Load(savePath); err != nil {
			t.Fatal(err)
		}
	}
	return rag.NewEngine(
		db,
		embedding.NewMockEmbedder(32),
		&generate.MockGenerator{Answer: "generated answer"},
		history.NewLog(100),
		queryConfig(),
		savePath,
		nil,
	)
}

func TestQueryPipeline(t *testing.T) {
	engine := newEngine(t, vector.TypeFlat, "")
	ctx := context.Background()

	addResp, err := engine.AddDocuments(ctx, &models.AddDocumentsRequest{
		Documents: []string{docLeave, docBonus},
		Metadata:  []models.Metadata{{"topic": "leave"}, {"topic": "bonus"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if addResp.TotalDocuments != 2 || addResp.TotalVectors != 2 {
		t.Fatalf("add response %+v", addResp)
	}

	// Querying with a stored document's exact text embeds to the identical
	// vector, so it must come back first at distance 0.
	zero := 0.0
	resp, err := engine.Query(ctx, &models.QueryRequest{
		Question:  docLeave,
		K:         1,
		Threshold: &zero,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.RetrievalInfo.RetrievedCount != 1 {
		t.Fatalf("retrieved=%d", resp.RetrievalInfo.RetrievedCount)
	}
	if resp.RetrievalInfo.Distances[0] != 0 {
		t.Errorf("distance=%f", resp.RetrievalInfo.Distances[0])
	}
	if !strings.Contains(resp.RetrievalInfo.DocumentsPreview[0], "paid leave") {
		t.Errorf("wrong document retrieved: %q", resp.RetrievalInfo.DocumentsPreview[0])
	}
	if resp.Answer != "generated answer" {
		t.Errorf("answer=%q", resp.Answer)
	}
	if !strings.Contains(resp.ContextUsed, docLeave) {
		t.Errorf("context=%q", resp.ContextUsed)
	}
}

func TestQueryPipeline_PersistenceAcrossRestart(t *testing.T) {
	savePath := filepath.Join(t.TempDir(), "vector_db")
	ctx := context.Background()

	first := newEngine(t, vector.TypeFlat, savePath)
	if _, err := first.AddDocuments(ctx, &models.AddDocumentsRequest{
		Documents: []string{docLeave, docBonus},
	}); err != nil {
		t.Fatal(err)
	}

	// Fresh engine over the same path simulates a restart.
	second := newEngine(t, vector.TypeFlat, savePath)
	stats := second.Stats()
	if stats.Database.TotalDocuments != 2 || stats.Database.TotalVectors != 2 {
		t.Fatalf("stats after restart: %+v", stats.Database)
	}

	zero := 0.0
	resp, err := second.Query(ctx, &models.QueryRequest{
		Question:  docBonus,
		K:         1,
		Threshold: &zero,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.RetrievalInfo.RetrievedCount != 1 || resp.RetrievalInfo.Distances[0] != 0 {
		t.Fatalf("retrieval after restart: %+v", resp.RetrievalInfo)
	}
	if resp.RetrievalInfo.DocumentIDs[0] != 1 {
		t.Errorf("document id=%d", resp.RetrievalInfo.DocumentIDs[0])
	}
}

func TestQueryPipeline_HNSW(t *testing.T) {
	engine := newEngine(t, vector.TypeHNSW, "")
	ctx := context.Background()

	docs := make([]string, 50)
	for i := range docs {
		docs[i] = strings.Repeat("word ", i+1) + "document"
	}
	if _, err := engine.AddDocuments(ctx, &models.AddDocumentsRequest{Documents: docs}); err != nil {
		t.Fatal(err)
	}

	zero := 0.0
	resp, err := engine.Query(ctx, &models.QueryRequest{
		Question:  docs[17],
		K:         1,
		Threshold: &zero,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.RetrievalInfo.RetrievedCount != 1 || resp.RetrievalInfo.DocumentIDs[0] != 17 {
		t.Fatalf("hnsw retrieval: %+v", resp.RetrievalInfo)
	}
}
