// Package cli provides output and flag helpers for the tana command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperjump/tana/internal/models"
	"github.com/hyperjump/tana/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms (workspace %s)\n\n",
		len(response.Results), response.QueryTime, response.WorkspaceID)
	for _, result := range response.Results {
		writeOneResult(w, result)
	}
	return nil
}

func writeOneResult(w io.Writer, result *models.SearchResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | ID: %d | Similarity: %.4f (distance %.4f)\n",
		result.Rank, result.LocalID, result.Similarity, result.Distance)
	if len(result.SourceMetadata) > 0 {
		fmt.Fprintf(w, "Metadata: %s\n", formatMetadata(result.SourceMetadata))
	}
	fmt.Fprintf(w, "\n%s\n", utils.Truncate(result.Text, 200))
	fmt.Fprintln(w)
}

// WriteAdded reports the ids assigned by an add.
func WriteAdded(w io.Writer, resp *models.AddDocumentsResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	ids := make([]string, len(resp.IDs))
	for i, id := range resp.IDs {
		ids[i] = strconv.Itoa(id)
	}
	fmt.Fprintf(w, "Added %d documents to workspace %s (ids: %s)\n", len(resp.IDs), resp.WorkspaceID, strings.Join(ids, ", "))
	return nil
}

// WriteStats writes workspace statistics to w in the given format.
func WriteStats(w io.Writer, stats *models.WorkspaceStats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintf(w, "Workspace:  %s\n", stats.WorkspaceID)
	fmt.Fprintf(w, "Documents:  %d\n", stats.TotalDocuments)
	fmt.Fprintf(w, "Index size: %d (%s, %d dims)\n", stats.IndexSize, stats.IndexType, stats.EmbeddingDimension)
	fmt.Fprintf(w, "Disk usage: %d bytes\n", stats.DiskUsageBytes)
	if stats.Generation != "" {
		fmt.Fprintf(w, "Generation: %s\n", stats.Generation)
	}
	if stats.Degraded {
		fmt.Fprintln(w, "WARNING: index and ledger sizes disagree")
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatMetadata(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, m[k])
	}
	return strings.Join(parts, " ")
}

// ParseMetadata turns key=value pairs into a metadata map. Values that parse
// as integers or floats are stored as numbers, everything else as strings.
func ParseMetadata(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid metadata %q: want key=value", p)
		}
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			out[k] = i
		} else if f, err := strconv.ParseFloat(v, 64); err == nil {
			out[k] = f
		} else {
			out[k] = v
		}
	}
	return out, nil
}
