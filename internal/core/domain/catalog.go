package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// CatalogEntry is the vector-indexed projection of a general item.
// The relational store owns the authoritative title and group; the index
// is a derived, eventually consistent copy keyed by ID.
type CatalogEntry struct {
	// ID is the general item identifier.
	ID int64 `json:"id"`

	// Title is the free-text item title that gets embedded.
	Title string `json:"title"`

	// GroupID scopes matching to a donor offer. Nil means unscoped.
	GroupID *int64 `json:"groupId,omitempty"`
}

// Validate checks the entry can be indexed.
func (e CatalogEntry) Validate() error {
	if e.ID <= 0 {
		return fmt.Errorf("%w: entry id must be positive, got %d", ErrInvalidInput, e.ID)
	}
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: entry %d has an empty title", ErrInvalidInput, e.ID)
	}
	return nil
}

// InGroup reports whether the entry belongs to the given group.
// A nil group matches every entry.
func (e CatalogEntry) InGroup(groupID *int64) bool {
	if groupID == nil {
		return true
	}
	return e.GroupID != nil && *e.GroupID == *groupID
}

// CatalogPatch describes a partial update to an existing index entry.
type CatalogPatch struct {
	ID int64 `json:"id"`

	// Title replaces the title when set. The entry is re-embedded only
	// when the normalised title actually changes.
	Title *string `json:"title,omitempty"`

	// GroupID moves the entry to another group when set.
	GroupID *int64 `json:"groupId,omitempty"`

	// ClearGroup detaches the entry from its group. Ignored if GroupID is set.
	ClearGroup bool `json:"clearGroup,omitempty"`
}

// Apply returns the entry with the patch applied.
func (p CatalogPatch) Apply(e CatalogEntry) CatalogEntry {
	if p.Title != nil {
		e.Title = *p.Title
	}
	switch {
	case p.GroupID != nil:
		g := *p.GroupID
		e.GroupID = &g
	case p.ClearGroup:
		e.GroupID = nil
	}
	return e
}

// MatchStrength is the confidence tier of a match.
type MatchStrength string

const (
	// MatchHard is a near-exact semantic match, safe to auto-associate.
	MatchHard MatchStrength = "hard"

	// MatchSoft is a plausible match that needs human confirmation.
	MatchSoft MatchStrength = "soft"
)

// String returns the string representation.
func (s MatchStrength) String() string {
	return string(s)
}

// ClassifyDistance returns MatchHard when distance is within hardCutoff.
func ClassifyDistance(distance, hardCutoff float64) MatchStrength {
	if distance <= hardCutoff {
		return MatchHard
	}
	return MatchSoft
}

// MatchResult is a query-scoped nearest-neighbour hit.
type MatchResult struct {
	ID         int64         `json:"id"`
	Title      string        `json:"title"`
	GroupID    *int64        `json:"groupId,omitempty"`
	Distance   float64       `json:"distance"`
	Similarity float64       `json:"similarity"`
	Strength   MatchStrength `json:"strength"`
}

// IsHard reports whether the match may be auto-associated.
func (m MatchResult) IsHard() bool {
	return m.Strength == MatchHard
}

// MatchQuery holds the parameters of a top-K search.
type MatchQuery struct {
	// Query is the free-text title to match.
	Query string

	// K is the maximum number of results. Zero uses the configured default.
	K int

	// GroupID restricts results to a single group when set.
	GroupID *int64

	// DistanceCutoff drops results farther than this when set.
	DistanceCutoff *float64

	// HardCutoff overrides the configured hard-match threshold when set.
	HardCutoff *float64

	// ExcludeIDs removes the given ids from the result (e.g. the query item itself).
	ExcludeIDs []int64
}

// Validate checks the cutoffs are usable.
func (q MatchQuery) Validate() error {
	if q.K < 0 {
		return fmt.Errorf("%w: k must not be negative, got %d", ErrInvalidInput, q.K)
	}
	if q.DistanceCutoff != nil && !validCutoff(*q.DistanceCutoff) {
		return fmt.Errorf("%w: distance cutoff must be a finite non-negative number", ErrInvalidInput)
	}
	if q.HardCutoff != nil && !validCutoff(*q.HardCutoff) {
		return fmt.Errorf("%w: hard cutoff must be a finite non-negative number", ErrInvalidInput)
	}
	return nil
}

// validCutoff rejects NaN, infinities and negative distances. NaN compares
// false against everything, so it would silently disable a threshold.
func validCutoff(c float64) bool {
	return !math.IsNaN(c) && !math.IsInf(c, 0) && c >= 0
}

// RemoveSelector selects index entries to remove.
// At least one of IDs or GroupID must be supplied.
type RemoveSelector struct {
	IDs     []int64 `json:"ids,omitempty"`
	GroupID *int64  `json:"groupId,omitempty"`
}

// Validate checks that the selector names something to remove.
func (s RemoveSelector) Validate() error {
	if len(s.IDs) == 0 && s.GroupID == nil {
		return fmt.Errorf("%w: remove requires ids or a group id", ErrInvalidInput)
	}
	return nil
}

// EntryOutcome records a failed id within a batch operation.
type EntryOutcome struct {
	ID  int64
	Err error
}

// MarshalJSON renders the error as its message.
func (o EntryOutcome) MarshalJSON() ([]byte, error) {
	msg := ""
	if o.Err != nil {
		msg = o.Err.Error()
	}
	return json.Marshal(struct {
		ID    int64  `json:"id"`
		Error string `json:"error"`
	}{o.ID, msg})
}

// BatchManifest reports per-id results of a batch add or modify.
// Embedding failures are usually per item, so a batch is never all-or-nothing.
type BatchManifest struct {
	Succeeded []int64        `json:"succeeded"`
	Failed    []EntryOutcome `json:"failed"`
}

// OK reports whether every entry succeeded.
func (m BatchManifest) OK() bool {
	return len(m.Failed) == 0
}

// FailedIDs returns the ids that did not apply.
func (m BatchManifest) FailedIDs() []int64 {
	ids := make([]int64, len(m.Failed))
	for i, f := range m.Failed {
		ids[i] = f.ID
	}
	return ids
}
