package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in   string
		want Priority
	}{
		{"HIGH", PriorityHigh},
		{"medium", PriorityMedium},
		{" Low ", PriorityLow},
	}
	for _, tt := range tests {
		got, err := ParsePriority(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParsePriority("urgent")
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestPriority_Rank(t *testing.T) {
	assert.Greater(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Greater(t, PriorityMedium.Rank(), PriorityLow.Rank())
	assert.Equal(t, 0, Priority("x").Rank())
	assert.Equal(t, []Priority{PriorityHigh, PriorityMedium, PriorityLow}, AllPriorities())
}

func TestAllocationRequest_Validate(t *testing.T) {
	ok := AllocationRequest{RequestID: 1, Priority: PriorityHigh, QuantityRequested: 5, QuantityFulfilled: 2}
	require.NoError(t, ok.Validate())
	assert.Equal(t, int64(3), ok.Outstanding())

	tests := []struct {
		name string
		req  AllocationRequest
	}{
		{"unknown priority", AllocationRequest{RequestID: 1, Priority: "NOW", QuantityRequested: 1}},
		{"negative requested", AllocationRequest{RequestID: 1, Priority: PriorityLow, QuantityRequested: -1}},
		{"negative fulfilled", AllocationRequest{RequestID: 1, Priority: PriorityLow, QuantityRequested: 1, QuantityFulfilled: -1}},
		{"over fulfilled", AllocationRequest{RequestID: 1, Priority: PriorityLow, QuantityRequested: 1, QuantityFulfilled: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.req.Validate(), ErrInvalidInput))
		})
	}
}

func TestSupplyLot_Validate(t *testing.T) {
	assert.NoError(t, SupplyLot{ItemID: 1, QuantityAvailable: 0}.Validate())
	assert.True(t, errors.Is(SupplyLot{ItemID: 1, QuantityAvailable: -3}.Validate(), ErrInvalidInput))
}

func TestGeneralItem_Projections(t *testing.T) {
	item := GeneralItem{ID: 9, Title: "gloves", DonorOfferID: int64Ptr(2), QuantityAvailable: 40}

	entry := item.CatalogEntry()
	assert.Equal(t, int64(9), entry.ID)
	assert.Equal(t, "gloves", entry.Title)
	assert.Equal(t, int64(2), *entry.GroupID)

	assert.Equal(t, SupplyLot{ItemID: 9, QuantityAvailable: 40}, item.SupplyLot())
}

func TestSuggestionInput_Validate(t *testing.T) {
	assert.NoError(t, SuggestionInput{DonorOfferID: int64Ptr(1)}.Validate())
	assert.NoError(t, SuggestionInput{GeneralItemIDs: []int64{1, 2}}.Validate())

	both := SuggestionInput{DonorOfferID: int64Ptr(1), GeneralItemIDs: []int64{2}}
	err := both.Validate()
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Contains(t, err.Error(), "mutually exclusive")

	assert.True(t, errors.Is(SuggestionInput{}.Validate(), ErrInvalidInput))
}

func TestSuggestionReport_TotalFor(t *testing.T) {
	r := SuggestionReport{Suggestions: []AllocationSuggestion{
		{RequestID: 1, ItemID: 1, SuggestedQuantity: 6},
		{RequestID: 2, ItemID: 1, SuggestedQuantity: 4},
		{RequestID: 3, ItemID: 2, SuggestedQuantity: 1},
	}}
	assert.Equal(t, int64(10), r.TotalFor(1))
	assert.Equal(t, int64(1), r.TotalFor(2))
	assert.Equal(t, int64(0), r.TotalFor(3))
}

func TestItemReport_Remaining(t *testing.T) {
	assert.Equal(t, int64(3), ItemReport{QuantityAvailable: 10, Allocated: 7}.Remaining())
}

func TestItemReport_JSONIncludesRemaining(t *testing.T) {
	r := ItemReport{ItemID: 3, Title: "masks", QuantityAvailable: 10, Allocated: 6, Err: ErrInvalidInput}

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.EqualValues(t, 4, got["remaining"])
	assert.EqualValues(t, 6, got["allocated"])
	assert.Equal(t, "masks", got["title"])
	assert.NotContains(t, got, "Err")
}
