package database

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
)

// dataFileSuffix is appended to the database path prefix for the data file.
const dataFileSuffix = "_data.db"

// dataSnapshot is the persisted document-side state. All slices are ordered by
// position, matching the index file written alongside.
type dataSnapshot struct {
	Documents  []string
	Metadata   []models.Metadata
	IDs        []int64
	NextID     int64
	Dim        int
	NList      int
	IndexType  string
	Embeddings [][]float32
}

func initDataSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		position INTEGER PRIMARY KEY,
		doc_id INTEGER NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT,
		embedding BLOB
	);

	CREATE TABLE IF NOT EXISTS state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// saveData writes the snapshot to a SQLite file at path, replacing any
// previous contents. The whole write runs in one transaction.
func saveData(path string, snap *dataSnapshot) error {
	// Rewrite from scratch: the snapshot is the source of truth.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove old data file: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("open data file: %w", err)
	}
	defer db.Close()

	if err := initDataSchema(db); err != nil {
		return fmt.Errorf("initialize data schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert, err := tx.Prepare(
		`INSERT INTO documents (position, doc_id, content, metadata, embedding) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	for i, doc := range snap.Documents {
		metaJSON, err := json.Marshal(snap.Metadata[i])
		if err != nil {
			return fmt.Errorf("marshal metadata at position %d: %w", i, err)
		}
		var blob []byte
		if i < len(snap.Embeddings) {
			blob = float32SliceToBytes(snap.Embeddings[i])
		}
		if _, err := insert.Exec(i, snap.IDs[i], doc, string(metaJSON), blob); err != nil {
			return fmt.Errorf("insert document at position %d: %w", i, err)
		}
	}

	state := map[string]string{
		"next_id":    strconv.FormatInt(snap.NextID, 10),
		"dim":        strconv.Itoa(snap.Dim),
		"nlist":      strconv.Itoa(snap.NList),
		"index_type": snap.IndexType,
	}
	for k, v := range state {
		if _, err := tx.Exec(`INSERT INTO state (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("insert state %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// loadData reads a snapshot written by saveData.
func loadData(path string) (*dataSnapshot, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer db.Close()

	snap := &dataSnapshot{}

	rows, err := db.Query(
		`SELECT doc_id, content, metadata, embedding FROM documents ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var content, metaJSON string
		var blob []byte
		if err := rows.Scan(&id, &content, &metaJSON, &blob); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		var meta models.Metadata
		if metaJSON != "" {
			if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		snap.IDs = append(snap.IDs, id)
		snap.Documents = append(snap.Documents, content)
		snap.Metadata = append(snap.Metadata, meta)
		snap.Embeddings = append(snap.Embeddings, bytesToFloat32Slice(blob))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document rows: %w", err)
	}

	stateRows, err := db.Query(`SELECT key, value FROM state`)
	if err != nil {
		return nil, fmt.Errorf("query state: %w", err)
	}
	defer stateRows.Close()

	for stateRows.Next() {
		var k, v string
		if err := stateRows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan state row: %w", err)
		}
		switch k {
		case "next_id":
			snap.NextID, err = strconv.ParseInt(v, 10, 64)
		case "dim":
			snap.Dim, err = strconv.Atoi(v)
		case "nlist":
			snap.NList, err = strconv.Atoi(v)
		case "index_type":
			snap.IndexType = v
		}
		if err != nil {
			return nil, fmt.Errorf("parse state %s=%q: %w", k, v, err)
		}
	}
	return snap, stateRows.Err()
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
