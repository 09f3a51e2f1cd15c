package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Priority is a request urgency tier.
type Priority string

// Available priority tiers.
const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// ParsePriority parses a tier name, case-insensitively.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, s)
	}
	return p, nil
}

// IsValid returns true if the priority is recognised.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Rank orders tiers; higher ranks are served first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// String returns the string representation.
func (p Priority) String() string {
	return string(p)
}

// AllPriorities returns the tiers in allocation order.
func AllPriorities() []Priority {
	return []Priority{PriorityHigh, PriorityMedium, PriorityLow}
}

// AllocationRequest is a partner's open request for a general item.
type AllocationRequest struct {
	RequestID         int64     `json:"requestId" db:"request_id"`
	PartnerID         int64     `json:"partnerId" db:"partner_id"`
	ItemID            int64     `json:"itemId" db:"item_id"`
	Priority          Priority  `json:"priority" db:"priority"`
	QuantityRequested int64     `json:"quantityRequested" db:"quantity_requested"`
	QuantityFulfilled int64     `json:"quantityFulfilled" db:"quantity_fulfilled"`
	CreatedAt         time.Time `json:"createdAt" db:"created_at"`

	// MatchedFromItemID is set when the request was synthesised from a hard
	// match: the request originally targets that item.
	MatchedFromItemID *int64 `json:"matchedFromItemId,omitempty" db:"-"`
}

// Outstanding returns the quantity still wanted.
func (r AllocationRequest) Outstanding() int64 {
	return r.QuantityRequested - r.QuantityFulfilled
}

// Validate checks the quantities in the snapshot. Quantities are never clamped.
func (r AllocationRequest) Validate() error {
	if !r.Priority.IsValid() {
		return fmt.Errorf("%w: request %d has unknown priority %q", ErrInvalidInput, r.RequestID, r.Priority)
	}
	if r.QuantityRequested < 0 {
		return fmt.Errorf("%w: request %d has negative requested quantity %d",
			ErrInvalidInput, r.RequestID, r.QuantityRequested)
	}
	if r.QuantityFulfilled < 0 {
		return fmt.Errorf("%w: request %d has negative fulfilled quantity %d",
			ErrInvalidInput, r.RequestID, r.QuantityFulfilled)
	}
	if r.QuantityFulfilled > r.QuantityRequested {
		return fmt.Errorf("%w: request %d is over-fulfilled (%d of %d)",
			ErrInvalidInput, r.RequestID, r.QuantityFulfilled, r.QuantityRequested)
	}
	return nil
}

// SupplyLot is the available quantity of one item at suggestion time.
// It is a snapshot; the real decrement happens when staff commit.
type SupplyLot struct {
	ItemID            int64 `json:"itemId"`
	QuantityAvailable int64 `json:"quantityAvailable"`
}

// Validate checks the snapshot quantity.
func (l SupplyLot) Validate() error {
	if l.QuantityAvailable < 0 {
		return fmt.Errorf("%w: item %d has negative available quantity %d",
			ErrInvalidInput, l.ItemID, l.QuantityAvailable)
	}
	return nil
}

// AllocationSuggestion is an advisory quantity for one request.
type AllocationSuggestion struct {
	RequestID         int64 `json:"requestId"`
	PartnerID         int64 `json:"partnerId"`
	ItemID            int64 `json:"itemId"`
	SuggestedQuantity int64 `json:"suggestedQuantity"`

	// MatchedFromItemID is the item the request originally targets when it
	// was reached through a hard match.
	MatchedFromItemID *int64 `json:"matchedFromItemId,omitempty"`
}

// GeneralItem is the flat relational view of a donated item.
type GeneralItem struct {
	ID                int64  `json:"id" db:"id"`
	Title             string `json:"title" db:"title"`
	DonorOfferID      *int64 `json:"donorOfferId,omitempty" db:"donor_offer_id"`
	QuantityAvailable int64  `json:"quantityAvailable" db:"quantity_available"`
}

// CatalogEntry projects the item into the index.
func (g GeneralItem) CatalogEntry() CatalogEntry {
	return CatalogEntry{ID: g.ID, Title: g.Title, GroupID: g.DonorOfferID}
}

// SupplyLot returns the item's quantity snapshot.
func (g GeneralItem) SupplyLot() SupplyLot {
	return SupplyLot{ItemID: g.ID, QuantityAvailable: g.QuantityAvailable}
}

// DonorOffer groups general items donated together.
type DonorOffer struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Partner is an organisation receiving allocations.
type Partner struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// SuggestionInput selects the supply to distribute.
// DonorOfferID and GeneralItemIDs are mutually exclusive.
type SuggestionInput struct {
	DonorOfferID   *int64  `json:"donorOfferId,omitempty"`
	GeneralItemIDs []int64 `json:"generalItemIds,omitempty"`
}

// Validate enforces that exactly one selector is set.
func (in SuggestionInput) Validate() error {
	hasItems := len(in.GeneralItemIDs) > 0
	switch {
	case in.DonorOfferID != nil && hasItems:
		return fmt.Errorf("%w: donorOfferId and generalItemIds are mutually exclusive", ErrInvalidInput)
	case in.DonorOfferID == nil && !hasItems:
		return fmt.Errorf("%w: one of donorOfferId or generalItemIds is required", ErrInvalidInput)
	}
	return nil
}

// ItemReport is the audit record for one item within a suggestion run.
type ItemReport struct {
	ItemID            int64  `json:"itemId"`
	Title             string `json:"title"`
	QuantityAvailable int64  `json:"quantityAvailable"`
	Allocated         int64  `json:"allocated"`

	// HardMatches are the items whose requests were auto-associated.
	HardMatches []MatchResult `json:"hardMatches,omitempty"`

	// SoftMatches need human review and never receive allocation.
	SoftMatches []MatchResult `json:"softMatches,omitempty"`

	// Degraded is set when semantic matching was unavailable and exact-title
	// matching was used instead.
	Degraded bool `json:"degraded,omitempty"`

	// Err is set when the item was aborted (e.g. negative quantities).
	Err error `json:"-"`

	// Error mirrors Err for serialisation.
	Error string `json:"error,omitempty"`
}

// Remaining returns the unallocated quantity.
func (r ItemReport) Remaining() int64 {
	return r.QuantityAvailable - r.Allocated
}

// MarshalJSON adds the derived remaining quantity.
func (r ItemReport) MarshalJSON() ([]byte, error) {
	type plain ItemReport
	return json.Marshal(struct {
		plain
		Remaining int64 `json:"remaining"`
	}{plain(r), r.Remaining()})
}

// SuggestionReport is the output of one suggestion run. It is advisory;
// nothing is reserved or persisted.
type SuggestionReport struct {
	RunID       string                 `json:"runId"`
	GeneratedAt time.Time              `json:"generatedAt"`
	Suggestions []AllocationSuggestion `json:"suggestions"`
	Items       []ItemReport           `json:"items"`
}

// TotalFor sums the suggested quantity for an item.
func (r SuggestionReport) TotalFor(itemID int64) int64 {
	var total int64
	for _, s := range r.Suggestions {
		if s.ItemID == itemID {
			total += s.SuggestedQuantity
		}
	}
	return total
}
