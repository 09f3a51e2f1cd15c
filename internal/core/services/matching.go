package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driven"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driving"
	"github.com/custodia-labs/supplymatch/internal/logger"
	"github.com/custodia-labs/supplymatch/internal/textnorm"
)

// Ensure MatchingService implements the interface.
var _ driving.MatchingService = (*MatchingService)(nil)

// overFetch multiplies k for the first index query so that stale and
// excluded ids can usually be dropped without a second round trip.
const overFetch = 2

// MatchingService keeps the catalog index synchronised with item titles and
// answers top-K queries classified by confidence.
type MatchingService struct {
	index    driven.CatalogIndex
	catalog  driven.CatalogStore
	embedder *guardedEmbedder
	settings atomic.Pointer[domain.MatchSettings]
}

// NewMatchingService creates a matching service.
// All dependencies are required; a missing one, invalid settings, or a
// collection whose recorded dimension disagrees with the embedding model
// is a domain.ErrConfiguration so that the process fails at startup.
func NewMatchingService(
	index driven.CatalogIndex,
	catalog driven.CatalogStore,
	embedding driven.EmbeddingService,
	settings domain.MatchSettings,
	ratePerSecond float64,
) (*MatchingService, error) {
	if index == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, domain.ErrVectorIndexUnavailable)
	}
	if embedding == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, domain.ErrEmbeddingUnavailable)
	}
	if catalog == nil {
		return nil, fmt.Errorf("%w: catalog store is required", domain.ErrConfiguration)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if stored, model := index.Dimensions(), embedding.Dimensions(); stored > 0 && model > 0 && stored != model {
		return nil, fmt.Errorf("%w: collection %q holds %d-dimension vectors but %s produces %d",
			domain.ErrConfiguration, settings.Collection, stored, embedding.ModelName(), model)
	}

	s := &MatchingService{
		index:    index,
		catalog:  catalog,
		embedder: newGuardedEmbedder(embedding, ratePerSecond, settings.RetryBackoff),
	}
	s.settings.Store(&settings)
	return s, nil
}

// Settings returns the active matching settings.
func (s *MatchingService) Settings() domain.MatchSettings {
	return *s.settings.Load()
}

// UpdateSettings swaps the thresholds used by subsequent calls.
// The collection cannot change at runtime.
func (s *MatchingService) UpdateSettings(settings domain.MatchSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if current := s.Settings(); settings.Collection != current.Collection {
		return fmt.Errorf("%w: collection cannot change from %q to %q without a restart",
			domain.ErrConfiguration, current.Collection, settings.Collection)
	}
	s.settings.Store(&settings)
	logger.Info("Matching settings reloaded: hard=%.3f distance=%.3f auto_hard=%.3f auto_distance=%.3f",
		settings.HardCutoff, settings.DistanceCutoff, settings.AutoHardCutoff, settings.AutoDistanceCutoff)
	return nil
}

// AddItems embeds and upserts entries keyed by id.
// Duplicate ids within a batch collapse to the last occurrence.
func (s *MatchingService) AddItems(ctx context.Context, entries []domain.CatalogEntry) (domain.BatchManifest, error) {
	logger.Section("Catalog Add")
	if err := s.checkBatch(len(entries)); err != nil {
		return domain.BatchManifest{}, err
	}

	var manifest domain.BatchManifest
	valid := make([]domain.CatalogEntry, 0, len(entries))
	for _, e := range dedupeEntries(entries) {
		if err := e.Validate(); err != nil {
			manifest.Failed = append(manifest.Failed, domain.EntryOutcome{ID: e.ID, Err: err})
			continue
		}
		valid = append(valid, e)
	}

	vectors := s.embedEntries(ctx, valid, &manifest)
	records := make([]driven.IndexRecord, 0, len(vectors))
	for _, e := range valid {
		if v, ok := vectors[e.ID]; ok {
			records = append(records, driven.IndexRecord{Entry: e, Vector: v})
		}
	}

	s.upsert(ctx, records, &manifest)
	logger.Debug("Added %d entries, %d failed", len(manifest.Succeeded), len(manifest.Failed))
	return manifest, nil
}

// ModifyItems patches existing entries. An id missing from the index fails
// with domain.ErrNotFound rather than being silently created: divergence
// between the relational store and the index must be visible to the caller.
func (s *MatchingService) ModifyItems(ctx context.Context, patches []domain.CatalogPatch) (domain.BatchManifest, error) {
	logger.Section("Catalog Modify")
	if err := s.checkBatch(len(patches)); err != nil {
		return domain.BatchManifest{}, err
	}

	ids := make([]int64, 0, len(patches))
	for _, p := range patches {
		ids = append(ids, p.ID)
	}
	existing, err := s.index.Get(ctx, ids)
	if err != nil {
		return domain.BatchManifest{}, fmt.Errorf("load entries: %w", indexError(err))
	}

	var manifest domain.BatchManifest
	var reembed []domain.CatalogEntry
	var records []driven.IndexRecord
	seen := make(map[int64]int, len(patches))

	for _, p := range patches {
		current, ok := existing[p.ID]
		if !ok {
			manifest.Failed = append(manifest.Failed, domain.EntryOutcome{
				ID:  p.ID,
				Err: fmt.Errorf("entry %d: %w", p.ID, domain.ErrNotFound),
			})
			continue
		}
		// Later patches for the same id build on earlier ones.
		if i, dup := seen[p.ID]; dup {
			current = records[i]
		}
		updated := p.Apply(current.Entry)
		if err := updated.Validate(); err != nil {
			manifest.Failed = append(manifest.Failed, domain.EntryOutcome{ID: p.ID, Err: err})
			continue
		}

		rec := driven.IndexRecord{Entry: updated, Vector: current.Vector}
		if !textnorm.Equal(updated.Title, current.Entry.Title) {
			rec.Vector = nil
		}
		if i, dup := seen[p.ID]; dup {
			records[i] = rec
		} else {
			seen[p.ID] = len(records)
			records = append(records, rec)
		}
	}

	for _, rec := range records {
		if rec.Vector == nil {
			reembed = append(reembed, rec.Entry)
		}
	}
	logger.Debug("Modify: %d patches, %d need re-embedding", len(records), len(reembed))

	vectors := s.embedEntries(ctx, reembed, &manifest)
	ready := make([]driven.IndexRecord, 0, len(records))
	for _, rec := range records {
		if rec.Vector == nil {
			v, ok := vectors[rec.Entry.ID]
			if !ok {
				continue
			}
			rec.Vector = v
		}
		ready = append(ready, rec)
	}

	s.upsert(ctx, ready, &manifest)
	return manifest, nil
}

// RemoveItems deletes entries by id list and/or group.
func (s *MatchingService) RemoveItems(ctx context.Context, sel domain.RemoveSelector) (int, error) {
	logger.Section("Catalog Remove")
	if err := sel.Validate(); err != nil {
		return 0, err
	}

	removed := 0
	if len(sel.IDs) > 0 {
		n, err := s.index.DeleteIDs(ctx, sel.IDs)
		if err != nil {
			return removed, fmt.Errorf("delete ids: %w", indexError(err))
		}
		removed += n
	}
	if sel.GroupID != nil {
		n, err := s.index.DeleteGroup(ctx, *sel.GroupID)
		if err != nil {
			return removed, fmt.Errorf("delete group %d: %w", *sel.GroupID, indexError(err))
		}
		removed += n
	}

	logger.Debug("Removed %d entries", removed)
	return removed, nil
}

// Reindex projects every catalog item into the index, batchSize items at a
// time. It is how a new or lost collection is rebuilt from the relational
// store. Per-item failures land in the manifest; a store or context failure
// stops the run and returns what was done so far.
func (s *MatchingService) Reindex(ctx context.Context, batchSize int) (domain.BatchManifest, error) {
	logger.Section("Catalog Reindex")
	maxBatch := s.Settings().MaxBatchSize
	if batchSize <= 0 || batchSize > maxBatch {
		batchSize = maxBatch
	}
	defer logger.Timed("reindex")()

	var total domain.BatchManifest
	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		page, err := s.catalog.AllItems(ctx, afterID, batchSize)
		if err != nil {
			return total, fmt.Errorf("reindex after id %d: %w", afterID, err)
		}
		if len(page) == 0 {
			break
		}

		entries := make([]domain.CatalogEntry, len(page))
		for i, it := range page {
			entries[i] = it.CatalogEntry()
		}
		m, err := s.AddItems(ctx, entries)
		if err != nil {
			return total, err
		}
		total.Succeeded = append(total.Succeeded, m.Succeeded...)
		total.Failed = append(total.Failed, m.Failed...)
		afterID = page[len(page)-1].ID
		logger.Debug("Reindexed through id %d", afterID)
	}

	logger.Info("Reindexed %d items, %d failed", len(total.Succeeded), len(total.Failed))
	return total, nil
}

// Search returns the closest live entries for q.Query.
func (s *MatchingService) Search(ctx context.Context, q domain.MatchQuery) ([]domain.MatchResult, error) {
	logger.Section("Catalog Search")
	defer logger.Timed("catalog search")()

	if err := q.Validate(); err != nil {
		return nil, err
	}
	query := textnorm.Title(q.Query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.MatchResult{}, nil
	}

	settings := s.Settings()
	k := q.K
	if k == 0 {
		k = settings.DefaultK
	}
	hardCutoff := settings.HardCutoff
	if q.HardCutoff != nil {
		hardCutoff = *q.HardCutoff
	}
	distanceCutoff := settings.DistanceCutoffPtr()
	if q.DistanceCutoff != nil {
		distanceCutoff = q.DistanceCutoff
	}
	logger.Debug("Query: %q k=%d hard=%.3f group=%s cutoff=%s",
		query, k, hardCutoff, formatOptionalInt(q.GroupID), formatOptionalFloat(distanceCutoff))

	vec, err := s.embedder.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := s.liveHits(ctx, vec, k, q, distanceCutoff)
	if err != nil {
		return nil, err
	}
	if len(hits) > k {
		hits = hits[:k]
	}

	results := make([]domain.MatchResult, len(hits))
	for i, h := range hits {
		results[i] = toMatchResult(h, hardCutoff)
	}
	logger.Info("Final matches: %d", len(results))
	return results, nil
}

// ExactTitleMatches returns live items whose normalised title equals title.
// It is the degraded path used when the embedding provider is unavailable.
func (s *MatchingService) ExactTitleMatches(ctx context.Context, title string, excludeID int64) ([]domain.MatchResult, error) {
	normalized := textnorm.Title(title)
	if normalized == "" {
		return []domain.MatchResult{}, nil
	}
	items, err := s.catalog.ItemsByNormalizedTitle(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("exact title lookup: %w", err)
	}

	results := make([]domain.MatchResult, 0, len(items))
	for _, it := range items {
		if it.ID == excludeID {
			continue
		}
		results = append(results, domain.MatchResult{
			ID:         it.ID,
			Title:      it.Title,
			GroupID:    it.DonorOfferID,
			Distance:   0,
			Similarity: 1,
			Strength:   domain.MatchHard,
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

// checkBatch enforces the bounded batch size.
func (s *MatchingService) checkBatch(n int) error {
	if n == 0 {
		return fmt.Errorf("%w: batch is empty", domain.ErrInvalidInput)
	}
	if limit := s.Settings().MaxBatchSize; n > limit {
		return fmt.Errorf("%w: batch of %d exceeds the limit of %d", domain.ErrInvalidInput, n, limit)
	}
	return nil
}

// embedEntries embeds the normalised titles of entries. The batch endpoint
// is tried first; if it fails each entry is embedded on its own so that
// failures are attributed to individual ids. Failed ids are appended to
// the manifest and absent from the returned map.
func (s *MatchingService) embedEntries(
	ctx context.Context, entries []domain.CatalogEntry, manifest *domain.BatchManifest,
) map[int64][]float32 {
	out := make(map[int64][]float32, len(entries))
	if len(entries) == 0 {
		return out
	}

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = textnorm.Title(e.Title)
	}

	vecs, err := s.embedder.embedBatch(ctx, texts)
	if err == nil {
		for i, e := range entries {
			out[e.ID] = vecs[i]
		}
		return out
	}

	if ctx.Err() != nil {
		for _, e := range entries {
			manifest.Failed = append(manifest.Failed, domain.EntryOutcome{ID: e.ID, Err: err})
		}
		return out
	}

	logger.Warn("Batch embedding failed (%v), falling back to per-entry embedding", err)
	for i, e := range entries {
		v, err := s.embedder.embed(ctx, texts[i])
		if err != nil {
			manifest.Failed = append(manifest.Failed, domain.EntryOutcome{ID: e.ID, Err: err})
			continue
		}
		out[e.ID] = v
	}
	return out
}

// upsert writes records in one call and records the outcome per id.
func (s *MatchingService) upsert(ctx context.Context, records []driven.IndexRecord, manifest *domain.BatchManifest) {
	if len(records) == 0 {
		return
	}
	if err := s.index.Upsert(ctx, records); err != nil {
		err = fmt.Errorf("upsert: %w", indexError(err))
		for _, r := range records {
			manifest.Failed = append(manifest.Failed, domain.EntryOutcome{ID: r.Entry.ID, Err: err})
		}
		return
	}
	for _, r := range records {
		manifest.Succeeded = append(manifest.Succeeded, r.Entry.ID)
	}
}

// liveHits queries the index until k live hits survive the filters or the
// index has nothing more to return. Stale ids can crowd the nearest slots,
// so the limit doubles on each pass rather than staying fixed.
func (s *MatchingService) liveHits(
	ctx context.Context, vec []float32, k int, q domain.MatchQuery, cutoff *float64,
) ([]driven.VectorHit, error) {
	total, err := s.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count index: %w", indexError(err))
	}
	if total == 0 {
		return nil, nil
	}
	k = min(k, total)
	limit := min(k*overFetch+len(q.ExcludeIDs), total)

	for {
		raw, err := s.index.Query(ctx, vec, limit, q.GroupID)
		if err != nil {
			return nil, fmt.Errorf("query index: %w", indexError(err))
		}
		logger.Debug("Raw hits: %d of limit %d", len(raw), limit)

		hits, err := s.dropStale(ctx, rankHits(raw, q.GroupID, cutoff, q.ExcludeIDs))
		if err != nil {
			return nil, err
		}
		if len(hits) >= k || len(raw) < limit || limit >= total || beyondCutoff(raw, cutoff) {
			return hits, nil
		}
		limit = min(limit*2, total)
	}
}

// beyondCutoff reports whether the farthest raw hit already lies past the
// cutoff, in which case a wider fetch cannot add anything.
func beyondCutoff(raw []driven.VectorHit, cutoff *float64) bool {
	if cutoff == nil || len(raw) == 0 {
		return false
	}
	var farthest float64
	for _, h := range raw {
		farthest = max(farthest, h.Distance)
	}
	return farthest > *cutoff
}

// dropStale removes hits whose ids no longer exist in the relational store.
// The index is a projection that may lag deletes.
func (s *MatchingService) dropStale(ctx context.Context, hits []driven.VectorHit) ([]driven.VectorHit, error) {
	if len(hits) == 0 {
		return hits, nil
	}
	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.Entry.ID
	}
	live, err := s.catalog.ExistingItemIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("check item existence: %w", err)
	}

	kept := hits[:0]
	var stale []int64
	for _, h := range hits {
		if live[h.Entry.ID] {
			kept = append(kept, h)
		} else {
			stale = append(stale, h.Entry.ID)
		}
	}
	if len(stale) > 0 {
		logger.Warn("Index returned %d stale ids not in the catalog: %v", len(stale), stale)
	}
	return kept, nil
}

// rankHits sorts by ascending distance then ascending id, and drops hits
// outside the group, beyond the cutoff, or explicitly excluded.
// The group check repeats the index pre-filter so that a lax backend
// cannot leak entries across offers.
func rankHits(hits []driven.VectorHit, groupID *int64, cutoff *float64, exclude []int64) []driven.VectorHit {
	skip := make(map[int64]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	out := make([]driven.VectorHit, 0, len(hits))
	for _, h := range hits {
		if skip[h.Entry.ID] || !h.Entry.InGroup(groupID) {
			continue
		}
		if cutoff != nil && h.Distance > *cutoff {
			continue
		}
		out = append(out, h)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Entry.ID < out[j].Entry.ID
	})
	return out
}

func toMatchResult(h driven.VectorHit, hardCutoff float64) domain.MatchResult {
	return domain.MatchResult{
		ID:         h.Entry.ID,
		Title:      h.Entry.Title,
		GroupID:    h.Entry.GroupID,
		Distance:   h.Distance,
		Similarity: 1 - h.Distance,
		Strength:   domain.ClassifyDistance(h.Distance, hardCutoff),
	}
}

// dedupeEntries keeps the last occurrence of each id, preserving first-seen order.
func dedupeEntries(entries []domain.CatalogEntry) []domain.CatalogEntry {
	pos := make(map[int64]int, len(entries))
	out := make([]domain.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		if i, ok := pos[e.ID]; ok {
			out[i] = e
			continue
		}
		pos[e.ID] = len(out)
		out = append(out, e)
	}
	return out
}

// indexError classifies a vector store failure.
func indexError(err error) error {
	if errors.Is(err, domain.ErrUpstreamUnavailable) ||
		errors.Is(err, domain.ErrConfiguration) ||
		errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
}

func formatOptionalInt(v *int64) string {
	if v == nil {
		return "any"
	}
	return fmt.Sprintf("%d", *v)
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return "none"
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", *v), "0"), ".")
}
