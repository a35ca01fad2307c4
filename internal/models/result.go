package models

// SearchResult is a single ranked hit. Rank is 1-based; Similarity is
// 1 / (1 + Distance) where Distance is the squared L2 distance to the query.
type SearchResult struct {
	LocalID        int            `json:"local_id"`
	Text           string         `json:"text"`
	SourceMetadata map[string]any `json:"source_metadata,omitempty"`
	Rank           int            `json:"rank"`
	Similarity     float64        `json:"similarity"`
	Distance       float64        `json:"distance"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	WorkspaceID string          `json:"workspace_id"`
	Query       string          `json:"query"`
	Results     []*SearchResult `json:"results"`
	QueryTime   int64           `json:"query_time_ms"`
}

// WorkspaceStats describes the resident state of one workspace.
// TotalDocuments and IndexSize are equal unless the workspace is degraded.
type WorkspaceStats struct {
	WorkspaceID        string `json:"workspace_id"`
	TotalDocuments     int    `json:"total_documents"`
	IndexSize          int    `json:"index_size"`
	EmbeddingDimension int    `json:"embedding_dimension"`
	IndexType          string `json:"index_type"`
	Generation         string `json:"generation,omitempty"`
	DiskUsageBytes     int64  `json:"disk_usage_bytes"`
	Degraded           bool   `json:"degraded"`
}
