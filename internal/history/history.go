// Package history keeps a bounded in-memory log of recent queries for
// observability. Oldest records are dropped once the capacity is reached.
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/kotae/pkg/utils"
)

// Record describes one processed query. Previews are truncated so the log
// stays small regardless of document sizes.
type Record struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Question       string    `json:"question"`
	ContextPreview string    `json:"context_preview,omitempty"`
	AnswerPreview  string    `json:"answer_preview"`
	RetrievedCount int       `json:"retrieved_docs_count"`
	ResponseTime   float64   `json:"response_time"`
	Distances      []float32 `json:"retrieval_distances"`
}

// Log is a fixed-capacity ring of query records, oldest first.
type Log struct {
	mu       sync.Mutex
	capacity int
	records  []Record
}

// NewLog creates a log holding at most capacity records.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = 100
	}
	return &Log{capacity: capacity}
}

// Append stamps the record with an ID and timestamp and stores it, evicting
// the oldest record when full. Returns the stored record.
func (l *Log) Append(rec Record) Record {
	rec.ID = uuid.New().String()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	if len(l.records) > l.capacity {
		l.records = l.records[len(l.records)-l.capacity:]
	}
	return rec
}

// Recent returns up to limit most recent records in chronological order.
func (l *Log) Recent(limit int) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 || limit > len(l.records) {
		limit = len(l.records)
	}
	out := make([]Record, limit)
	copy(out, l.records[len(l.records)-limit:])
	return out
}

// Len returns the number of stored records.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// AverageResponseTime returns the mean response time over stored records.
func (l *Log) AverageResponseTime() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	times := make([]float64, len(l.records))
	for i, r := range l.records {
		times[i] = r.ResponseTime
	}
	return utils.Mean(times)
}
