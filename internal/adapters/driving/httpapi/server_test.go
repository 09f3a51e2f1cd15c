package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
)

// --- Mocks ---

type mockMatching struct {
	lastQuery   domain.MatchQuery
	lastEntries []domain.CatalogEntry
	lastPatches []domain.CatalogPatch
	lastRemove  domain.RemoveSelector
	results     []domain.MatchResult
	manifest    domain.BatchManifest
	removed     int
	err         error
}

func (m *mockMatching) AddItems(_ context.Context, entries []domain.CatalogEntry) (domain.BatchManifest, error) {
	m.lastEntries = entries
	return m.manifest, m.err
}

func (m *mockMatching) ModifyItems(_ context.Context, patches []domain.CatalogPatch) (domain.BatchManifest, error) {
	m.lastPatches = patches
	return m.manifest, m.err
}

func (m *mockMatching) RemoveItems(_ context.Context, sel domain.RemoveSelector) (int, error) {
	m.lastRemove = sel
	return m.removed, m.err
}

func (m *mockMatching) Reindex(_ context.Context, _ int) (domain.BatchManifest, error) {
	return m.manifest, m.err
}

func (m *mockMatching) Search(_ context.Context, q domain.MatchQuery) ([]domain.MatchResult, error) {
	m.lastQuery = q
	return m.results, m.err
}

type mockSuggestion struct {
	lastInput domain.SuggestionInput
	report    domain.SuggestionReport
	err       error
}

func (m *mockSuggestion) Suggest(_ context.Context, in domain.SuggestionInput) (domain.SuggestionReport, error) {
	m.lastInput = in
	if err := in.Validate(); err != nil {
		return domain.SuggestionReport{}, err
	}
	return m.report, m.err
}

func (m *mockSuggestion) SuggestForOffer(ctx context.Context, offerID int64) (domain.SuggestionReport, error) {
	return m.Suggest(ctx, domain.SuggestionInput{DonorOfferID: &offerID})
}

func (m *mockSuggestion) SuggestForItems(ctx context.Context, ids []int64) (domain.SuggestionReport, error) {
	return m.Suggest(ctx, domain.SuggestionInput{GeneralItemIDs: ids})
}

// --- Helpers ---

func newTestServer(t *testing.T) (*Server, *mockMatching, *mockSuggestion) {
	t.Helper()
	m := &mockMatching{}
	sg := &mockSuggestion{}
	srv, err := New(Ports{Matching: m, Suggestion: sg}, Config{})
	require.NoError(t, err)
	return srv, m, sg
}

func do(t *testing.T, srv *Server, method, target, body string) (*http.Response, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

// --- Tests ---

func TestNew_RequiresServices(t *testing.T) {
	_, err := New(Ports{}, Config{})
	assert.Error(t, err)
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, body := do(t, srv, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestAddItems(t *testing.T) {
	srv, m, _ := newTestServer(t)
	m.manifest = domain.BatchManifest{Succeeded: []int64{1, 2}}

	resp, body := do(t, srv, http.MethodPost, "/api/items",
		`[{"id":1,"title":"N95 masks","groupId":7},{"id":2,"title":"gloves"}]`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"succeeded":[1,2],"failed":[]}`, body)
	require.Len(t, m.lastEntries, 2)
	require.NotNil(t, m.lastEntries[0].GroupID)
	assert.Equal(t, int64(7), *m.lastEntries[0].GroupID)
	assert.Nil(t, m.lastEntries[1].GroupID)
}

func TestAddItems_PartialFailureIsMultiStatus(t *testing.T) {
	srv, m, _ := newTestServer(t)
	m.manifest = domain.BatchManifest{
		Succeeded: []int64{1},
		Failed:    []domain.EntryOutcome{{ID: 2, Err: fmt.Errorf("%w: empty title", domain.ErrInvalidInput)}},
	}

	resp, body := do(t, srv, http.MethodPost, "/api/items", `[{"id":1,"title":"a"},{"id":2,"title":""}]`)

	assert.Equal(t, http.StatusMultiStatus, resp.StatusCode)
	assert.Contains(t, body, `"error":"invalid input: empty title"`)
}

func TestAddItems_BadBody(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, body := do(t, srv, http.MethodPost, "/api/items", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "malformed JSON")

	resp, _ = do(t, srv, http.MethodPost, "/api/items", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestModifyItems(t *testing.T) {
	srv, m, _ := newTestServer(t)
	m.manifest = domain.BatchManifest{
		Failed: []domain.EntryOutcome{{ID: 9, Err: fmt.Errorf("entry 9: %w", domain.ErrNotFound)}},
	}

	resp, body := do(t, srv, http.MethodPatch, "/api/items", `[{"id":9,"title":"masks"},{"id":3,"clearGroup":true}]`)

	assert.Equal(t, http.StatusMultiStatus, resp.StatusCode)
	assert.Contains(t, body, "not found")
	require.Len(t, m.lastPatches, 2)
	assert.Equal(t, "masks", *m.lastPatches[0].Title)
	assert.True(t, m.lastPatches[1].ClearGroup)
}

func TestRemoveItems(t *testing.T) {
	srv, m, _ := newTestServer(t)
	m.removed = 3

	resp, body := do(t, srv, http.MethodDelete, "/api/items", `{"ids":[1,2],"groupId":7}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"removed":3}`, body)
	assert.Equal(t, []int64{1, 2}, m.lastRemove.IDs)
	assert.Equal(t, int64(7), *m.lastRemove.GroupID)
}

func TestSearch_ParsesQuery(t *testing.T) {
	srv, m, _ := newTestServer(t)
	m.results = []domain.MatchResult{{ID: 4, Title: "masks", Distance: 0.05, Similarity: 0.95, Strength: domain.MatchHard}}

	resp, body := do(t, srv, http.MethodGet,
		"/api/search?q=n95+masks&k=5&groupId=3&distanceCutoff=0.4&hardCutoff=0.1&exclude=1,%202", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "n95 masks", m.lastQuery.Query)
	assert.Equal(t, 5, m.lastQuery.K)
	assert.Equal(t, int64(3), *m.lastQuery.GroupID)
	assert.InDelta(t, 0.4, *m.lastQuery.DistanceCutoff, 1e-12)
	assert.InDelta(t, 0.1, *m.lastQuery.HardCutoff, 1e-12)
	assert.Equal(t, []int64{1, 2}, m.lastQuery.ExcludeIDs)

	var got searchResponse
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	require.Len(t, got.Results, 1)
	assert.Equal(t, domain.MatchHard, got.Results[0].Strength)
}

func TestSearch_NoMatchIsEmptyArray(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, body := do(t, srv, http.MethodGet, "/api/search?q=zzz", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"query":"zzz","results":[]}`, body)
}

func TestSearch_InvalidParameters(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, target := range []string{
		"/api/search?q=a&k=ten",
		"/api/search?q=a&groupId=x",
		"/api/search?q=a&distanceCutoff=far",
		"/api/search?q=a&distanceCutoff=NaN",
		"/api/search?q=a&hardCutoff=Inf",
		"/api/search?q=a&hardCutoff=-inf",
		"/api/search?q=a&hardCutoff=",
		"/api/search?q=a&exclude=1,b",
	} {
		resp, _ := do(t, srv, http.MethodGet, target, "")
		if target == "/api/search?q=a&hardCutoff=" {
			assert.Equal(t, http.StatusOK, resp.StatusCode, target)
			continue
		}
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, target)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"invalid", fmt.Errorf("%w: k must not be negative", domain.ErrInvalidInput), http.StatusBadRequest, "k must not be negative"},
		{"not found", fmt.Errorf("donor offer 3: %w", domain.ErrNotFound), http.StatusNotFound, "donor offer 3"},
		{"upstream", fmt.Errorf("embed: %w: status 503", domain.ErrUpstreamUnavailable), http.StatusServiceUnavailable, "retry later"},
		{"internal", errors.New("disk on fire: /var/secret"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, m, _ := newTestServer(t)
			m.err = tt.err

			resp, body := do(t, srv, http.MethodGet, "/api/search?q=x", "")

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Contains(t, body, tt.body)
			assert.NotContains(t, body, "/var/secret")
			assert.Contains(t, body, `"requestId"`)
		})
	}
}

func TestSuggestForOffer(t *testing.T) {
	srv, _, sg := newTestServer(t)
	sg.report = domain.SuggestionReport{
		RunID: "run-1",
		Suggestions: []domain.AllocationSuggestion{
			{RequestID: 1, PartnerID: 50, ItemID: 2, SuggestedQuantity: 6},
		},
	}

	resp, body := do(t, srv, http.MethodGet, "/api/offers/3/suggestions", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, sg.lastInput.DonorOfferID)
	assert.Equal(t, int64(3), *sg.lastInput.DonorOfferID)
	assert.Contains(t, body, `"suggestedQuantity":6`)
	assert.Contains(t, body, `"runId":"run-1"`)

	resp, _ = do(t, srv, http.MethodGet, "/api/offers/abc/suggestions", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSuggest_MutuallyExclusiveInput(t *testing.T) {
	srv, _, sg := newTestServer(t)

	resp, body := do(t, srv, http.MethodPost, "/api/suggestions", `{"donorOfferId":3,"generalItemIds":[1]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "mutually exclusive")

	resp, _ = do(t, srv, http.MethodPost, "/api/suggestions", `{"generalItemIds":[1,2]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []int64{1, 2}, sg.lastInput.GeneralItemIDs)
}

func TestRateLimit(t *testing.T) {
	m := &mockMatching{}
	srv, err := New(Ports{Matching: m, Suggestion: &mockSuggestion{}}, Config{RequestsPerMinute: 2})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		resp, _ := do(t, srv, http.MethodGet, "/api/search?q=x", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, _ := do(t, srv, http.MethodGet, "/api/search?q=x", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health checks are not limited")
}
