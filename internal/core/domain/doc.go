// Package domain defines the core business entities for supplymatch.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - CatalogEntry: A general item title projected into the vector index
//   - MatchResult: A scored nearest-neighbour hit with hard/soft strength
//   - AllocationRequest: A partner's open request for an item
//   - SupplyLot: The quantity snapshot an allocation run works against
//   - AllocationSuggestion: An advisory per-request quantity
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
