package models

// RetrievalInfo describes the documents retrieved for a query.
type RetrievalInfo struct {
	RetrievedCount   int       `json:"retrieved_count"`
	Distances        []float32 `json:"distances"`
	DocumentIDs      []int64   `json:"document_ids"`
	DocumentsPreview []string  `json:"documents_preview"`
}

// QueryResponse is the answer to a retrieval-augmented query.
type QueryResponse struct {
	Answer        string        `json:"answer"`
	RetrievalInfo RetrievalInfo `json:"retrieval_info"`
	ContextUsed   string        `json:"context_used"`
	ResponseTime  float64       `json:"response_time"`
	Model         string        `json:"model"`
}

// Stats reports the state of the vector database.
type Stats struct {
	TotalDocuments int    `json:"total_documents"`
	TotalVectors   int    `json:"total_vectors"`
	Dimension      int    `json:"dimension"`
	IndexType      string `json:"index_type"`
	NList          int    `json:"nlist"`
}
