package mcp

import (
	"github.com/custodia-labs/supplymatch/internal/core/ports/driven"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driving"
)

// Ports aggregates the services the MCP server exposes.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Matching answers catalog searches.
	Matching driving.MatchingService

	// Suggestion computes allocation suggestions. Optional; without it the
	// suggest_allocations tool is not registered.
	Suggestion driving.SuggestionService

	// Catalog backs the item resources. Optional.
	Catalog driven.CatalogStore

	// Requests adds open requests to item resources. Optional.
	Requests driven.RequestStore
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Matching == nil {
		return ErrMissingMatchingService
	}
	return nil
}
