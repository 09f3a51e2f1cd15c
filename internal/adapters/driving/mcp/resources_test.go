package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
)

func TestExtractID(t *testing.T) {
	tests := []struct {
		name   string
		uri    string
		prefix string
		suffix string
		want   int64
		ok     bool
	}{
		{"item", "supplymatch://items/42", uriScheme + "items/", "", 42, true},
		{"offer items", "supplymatch://offers/7/items", uriScheme + "offers/", "/items", 7, true},
		{"missing suffix", "supplymatch://offers/7", uriScheme + "offers/", "/items", 0, false},
		{"wrong scheme", "file://items/42", uriScheme + "items/", "", 0, false},
		{"not a number", "supplymatch://items/abc", uriScheme + "items/", "", 0, false},
		{"not positive", "supplymatch://items/0", uriScheme + "items/", "", 0, false},
		{"empty", "", uriScheme + "items/", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractID(tt.uri, tt.prefix, tt.suffix)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newResourceServer(t *testing.T, catalog *mockCatalog) *Server {
	t.Helper()
	server, err := NewServer(&Ports{Matching: &mockMatchingService{}, Catalog: catalog, Requests: catalog})
	require.NoError(t, err)
	return server
}

func readRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: uri}}
}

func testCatalog() *mockCatalog {
	offer := int64(7)
	return &mockCatalog{
		items: map[int64]domain.GeneralItem{
			1: {ID: 1, Title: "N95 masks", DonorOfferID: &offer, QuantityAvailable: 10},
			2: {ID: 2, Title: "gloves", DonorOfferID: &offer, QuantityAvailable: 3},
		},
		offers: map[int64][]int64{7: {1, 2}},
		requests: map[int64][]domain.AllocationRequest{
			1: {{RequestID: 5, PartnerID: 50, ItemID: 1, Priority: domain.PriorityHigh, QuantityRequested: 4}},
		},
	}
}

func TestServer_handleItemResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns item with open requests", func(t *testing.T) {
		server := newResourceServer(t, testCatalog())

		result, err := server.handleItemResource(ctx, readRequest("supplymatch://items/1"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)
		assert.Contains(t, result.Contents[0].Text, `"title": "N95 masks"`)
		assert.Contains(t, result.Contents[0].Text, `"requestId": 5`)
	})

	t.Run("unknown item is resource not found", func(t *testing.T) {
		server := newResourceServer(t, testCatalog())

		_, err := server.handleItemResource(ctx, readRequest("supplymatch://items/99"))

		require.Error(t, err)
		assert.False(t, errors.Is(err, domain.ErrNotFound), "store errors are not leaked as-is")
	})

	t.Run("malformed uri is resource not found", func(t *testing.T) {
		server := newResourceServer(t, testCatalog())

		_, err := server.handleItemResource(ctx, readRequest("supplymatch://items/x"))

		require.Error(t, err)
	})

	t.Run("store failure is wrapped", func(t *testing.T) {
		catalog := testCatalog()
		catalog.err = errors.New("database is locked")
		server := newResourceServer(t, catalog)

		_, err := server.handleItemResource(ctx, readRequest("supplymatch://items/1"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "database is locked")
	})
}

func TestServer_handleOfferItemsResource(t *testing.T) {
	ctx := context.Background()
	server := newResourceServer(t, testCatalog())

	result, err := server.handleOfferItemsResource(ctx, readRequest("supplymatch://offers/7/items"))
	require.NoError(t, err)
	assert.Contains(t, result.Contents[0].Text, "N95 masks")
	assert.Contains(t, result.Contents[0].Text, "gloves")

	_, err = server.handleOfferItemsResource(ctx, readRequest("supplymatch://offers/8/items"))
	assert.Error(t, err)
}
