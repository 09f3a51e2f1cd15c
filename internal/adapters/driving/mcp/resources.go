package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for supplymatch resources.
	uriScheme = "supplymatch://"
)

// itemResource is a general item together with its open requests.
type itemResource struct {
	domain.GeneralItem
	OpenRequests []domain.AllocationRequest `json:"openRequests,omitempty"`
}

// registerResources registers resource handlers when a catalog is available.
func (s *Server) registerResources() {
	if s.ports.Catalog == nil {
		return
	}

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "items/{itemId}",
		Name:        "general-item",
		Description: "A general item with its available quantity and open partner requests",
		MIMEType:    "application/json",
	}, s.handleItemResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "offers/{offerId}/items",
		Name:        "offer-items",
		Description: "General items donated together in one donor offer",
		MIMEType:    "application/json",
	}, s.handleOfferItemsResource)
}

// handleItemResource returns a single item.
func (s *Server) handleItemResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// supplymatch://items/{itemId}
	id, ok := extractID(req.Params.URI, uriScheme+"items/", "")
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	item, err := s.ports.Catalog.GeneralItem(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("loading item: %w", err)
	}

	res := itemResource{GeneralItem: *item}
	if s.ports.Requests != nil {
		res.OpenRequests, err = s.ports.Requests.OpenRequests(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading requests: %w", err)
		}
	}

	return jsonResult(req.Params.URI, res)
}

// handleOfferItemsResource returns the items of a donor offer.
func (s *Server) handleOfferItemsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// supplymatch://offers/{offerId}/items
	id, ok := extractID(req.Params.URI, uriScheme+"offers/", "/items")
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	items, err := s.ports.Catalog.ItemsForOffer(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("listing offer items: %w", err)
	}

	return jsonResult(req.Params.URI, items)
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractID parses the numeric id between prefix and suffix of uri.
func extractID(uri, prefix, suffix string) (int64, bool) {
	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return 0, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
