// Package tui provides an interactive terminal match browser.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/supplymatch/internal/core/ports/driving"
)

// Ports aggregates the driving ports the browser talks to.
type Ports struct {
	// Matching answers title queries. Required.
	Matching driving.MatchingService

	// Suggestion previews allocations for a selected match. Optional;
	// without it the suggest key reports that previews are unavailable.
	Suggestion driving.SuggestionService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Matching == nil {
		return ErrMissingMatchingService
	}
	return nil
}
