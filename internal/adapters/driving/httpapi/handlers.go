package httpapi

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
)

type removeResponse struct {
	Removed int `json:"removed"`
}

type searchResponse struct {
	Query   string               `json:"query"`
	Results []domain.MatchResult `json:"results"`
}

func (s *Server) addItems(c *fiber.Ctx) error {
	var entries []domain.CatalogEntry
	if err := decodeBody(c, &entries); err != nil {
		return err
	}
	manifest, err := s.ports.Matching.AddItems(c.UserContext(), entries)
	if err != nil {
		return err
	}
	return c.Status(manifestStatus(manifest)).JSON(normalizeManifest(manifest))
}

func (s *Server) modifyItems(c *fiber.Ctx) error {
	var patches []domain.CatalogPatch
	if err := decodeBody(c, &patches); err != nil {
		return err
	}
	manifest, err := s.ports.Matching.ModifyItems(c.UserContext(), patches)
	if err != nil {
		return err
	}
	return c.Status(manifestStatus(manifest)).JSON(normalizeManifest(manifest))
}

func (s *Server) removeItems(c *fiber.Ctx) error {
	var sel domain.RemoveSelector
	if err := decodeBody(c, &sel); err != nil {
		return err
	}
	n, err := s.ports.Matching.RemoveItems(c.UserContext(), sel)
	if err != nil {
		return err
	}
	return c.JSON(removeResponse{Removed: n})
}

func (s *Server) search(c *fiber.Ctx) error {
	q := domain.MatchQuery{Query: c.Query("q")}
	var err error
	if q.K, err = queryInt(c, "k"); err != nil {
		return err
	}
	if q.GroupID, err = queryInt64Ptr(c, "groupId"); err != nil {
		return err
	}
	if q.DistanceCutoff, err = queryFloatPtr(c, "distanceCutoff"); err != nil {
		return err
	}
	if q.HardCutoff, err = queryFloatPtr(c, "hardCutoff"); err != nil {
		return err
	}
	if q.ExcludeIDs, err = queryIDList(c, "exclude"); err != nil {
		return err
	}

	results, err := s.ports.Matching.Search(c.UserContext(), q)
	if err != nil {
		return err
	}
	if results == nil {
		results = []domain.MatchResult{}
	}
	return c.JSON(searchResponse{Query: q.Query, Results: results})
}

func (s *Server) suggestForOffer(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: offer id %q is not a number", domain.ErrInvalidInput, c.Params("id"))
	}
	report, err := s.ports.Suggestion.SuggestForOffer(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func (s *Server) suggest(c *fiber.Ctx) error {
	var in domain.SuggestionInput
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	report, err := s.ports.Suggestion.Suggest(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.JSON(report)
}

// manifestStatus is 200 when every entry applied and 207 otherwise.
func manifestStatus(m domain.BatchManifest) int {
	if m.OK() {
		return fiber.StatusOK
	}
	return fiber.StatusMultiStatus
}

func normalizeManifest(m domain.BatchManifest) domain.BatchManifest {
	if m.Succeeded == nil {
		m.Succeeded = []int64{}
	}
	if m.Failed == nil {
		m.Failed = []domain.EntryOutcome{}
	}
	return m
}

func decodeBody(c *fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return fmt.Errorf("%w: request body is required", domain.ErrInvalidInput)
	}
	if err := c.BodyParser(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func queryInt(c *fiber.Ctx, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidInput, name)
	}
	return v, nil
}

func queryInt64Ptr(c *fiber.Ctx, name string) (*int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidInput, name)
	}
	return &v, nil
}

func queryFloatPtr(c *fiber.Ctx, name string) (*float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %s must be a finite number", domain.ErrInvalidInput, name)
	}
	return &v, nil
}

// queryIDList parses a comma-separated id list such as "1,2,3".
func queryIDList(c *fiber.Ctx, name string) ([]int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	return parseIDList(raw)
}

// parseIDList parses a comma-separated list of ids, ignoring blanks.
func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an id", domain.ErrInvalidInput, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
