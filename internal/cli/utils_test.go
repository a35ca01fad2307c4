package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/tana/internal/models"
)

func sampleResponse() *models.SearchResponse {
	return &models.SearchResponse{
		WorkspaceID: "ws1",
		Query:       "test query",
		QueryTime:   42,
		Results: []*models.SearchResult{
			{
				LocalID:        3,
				Text:           "Content here",
				SourceMetadata: map[string]any{"source": "a.md", "page": int64(2)},
				Rank:           1,
				Similarity:     0.9,
				Distance:       0.111,
			},
		},
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	response := sampleResponse()
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, response, OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	var decoded models.SearchResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Query != response.Query || decoded.QueryTime != response.QueryTime || decoded.WorkspaceID != "ws1" {
		t.Errorf("decoded %+v, want query=%q query_time=%d", decoded, response.Query, response.QueryTime)
	}
	if len(decoded.Results) != 1 || decoded.Results[0].LocalID != 3 {
		t.Errorf("decoded results: want one result with id 3, got %+v", decoded.Results)
	}
}

func TestWriteSearchResults_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatalf("WriteSearchResults(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{"Found 1 results", "42ms", "Rank: 1", "ID: 3", "page=2 source=a.md", "Content here"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteSearchResults_unknownFormatTreatedAsText(t *testing.T) {
	response := &models.SearchResponse{Query: "x"}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, response, OutputFormat("unknown")); err != nil {
		t.Fatalf("WriteSearchResults(unknown): %v", err)
	}
	if !strings.Contains(buf.String(), "Found 0 results") {
		t.Errorf("unknown format should fall back to text; got %q", buf.String())
	}
}

func TestWriteStats(t *testing.T) {
	stats := &models.WorkspaceStats{
		WorkspaceID:        "7",
		TotalDocuments:     5,
		IndexSize:          4,
		EmbeddingDimension: 384,
		IndexType:          "memory",
		DiskUsageBytes:     1024,
		Degraded:           true,
	}
	var buf bytes.Buffer
	if err := WriteStats(&buf, stats, OutputText); err != nil {
		t.Fatalf("WriteStats(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{"Workspace:  7", "Documents:  5", "memory, 384 dims", "1024 bytes", "WARNING"} {
		if !strings.Contains(out, sub) {
			t.Errorf("stats output missing %q:\n%s", sub, out)
		}
	}

	buf.Reset()
	if err := WriteStats(&buf, stats, OutputJSON); err != nil {
		t.Fatalf("WriteStats(json): %v", err)
	}
	var decoded models.WorkspaceStats
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("stats JSON decode: %v", err)
	}
	if decoded != *stats {
		t.Errorf("decoded %+v, want %+v", decoded, *stats)
	}
}

func TestParseMetadata(t *testing.T) {
	got, err := ParseMetadata([]string{"source=a.md", "page=3", "score=0.5", "eq=a=b"})
	if err != nil {
		t.Fatalf("ParseMetadata: %v", err)
	}
	if got["source"] != "a.md" || got["page"] != int64(3) || got["score"] != 0.5 || got["eq"] != "a=b" {
		t.Errorf("ParseMetadata = %#v", got)
	}

	for _, bad := range []string{"novalue", "=x"} {
		if _, err := ParseMetadata([]string{bad}); err == nil {
			t.Errorf("ParseMetadata(%q): expected error", bad)
		}
	}

	got, err = ParseMetadata(nil)
	if err != nil || got != nil {
		t.Errorf("ParseMetadata(nil) = %v, %v", got, err)
	}
}

func TestWriteAdded(t *testing.T) {
	resp := &models.AddDocumentsResponse{WorkspaceID: "ws1", IDs: []int{4, 5}}
	var buf bytes.Buffer
	if err := WriteAdded(&buf, resp, OutputText); err != nil {
		t.Fatalf("WriteAdded(text): %v", err)
	}
	if got, want := buf.String(), "Added 2 documents to workspace ws1 (ids: 4, 5)\n"; got != want {
		t.Errorf("WriteAdded = %q, want %q", got, want)
	}
}
