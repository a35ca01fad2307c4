// Package models defines core data structures for chunks, queries, and search results.
package models

// ChunkRecord is one ledger entry: the text and source metadata of the vector
// stored at the same position in a workspace index.
type ChunkRecord struct {
	LocalID        int            `json:"local_id" msgpack:"local_id"`
	Text           string         `json:"text" msgpack:"text"`
	SourceMetadata map[string]any `json:"source_metadata,omitempty" msgpack:"source_metadata,omitempty"`
}

// AddDocumentsRequest is the input for adding chunks to a workspace.
// Texts and Metadata are aligned by position.
type AddDocumentsRequest struct {
	Texts    []string         `json:"texts"`
	Metadata []map[string]any `json:"metadata"`
}

// AddDocumentsResponse carries the local ids assigned to the added chunks, in input order.
type AddDocumentsResponse struct {
	WorkspaceID string `json:"workspace_id"`
	IDs         []int  `json:"ids"`
}
