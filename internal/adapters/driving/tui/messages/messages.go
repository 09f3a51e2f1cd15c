// Package messages defines Bubbletea message types for the match browser.
package messages

import (
	"github.com/custodia-labs/supplymatch/internal/core/domain"
)

// SearchCompleted carries the matches for a typed title back to the model.
type SearchCompleted struct {
	Query   string
	Matches []domain.MatchResult
	Err     error
}

// SuggestionCompleted carries a suggestion preview for one matched item.
type SuggestionCompleted struct {
	ItemID int64
	Report domain.SuggestionReport
	Err    error
}

// ErrorOccurred signals that an error happened outside a request.
type ErrorOccurred struct {
	Err error
}
