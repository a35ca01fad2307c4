package models

import (
	"errors"
	"strings"
)

// ErrEmptyQuery is returned for a query with no text.
var ErrEmptyQuery = errors.New("query cannot be empty")

// SearchQuery represents a similarity search request against one workspace.
type SearchQuery struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// Validate ensures the query text is present and fills k from defaultK when unset.
// k is capped at maxK when maxK is positive.
func (q *SearchQuery) Validate(defaultK, maxK int) error {
	if strings.TrimSpace(q.Query) == "" {
		return ErrEmptyQuery
	}
	if q.K <= 0 {
		q.K = defaultK
	}
	if maxK > 0 && q.K > maxK {
		q.K = maxK
	}
	return nil
}
