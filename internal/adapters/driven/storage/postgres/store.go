package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driven"
	"github.com/custodia-labs/supplymatch/internal/textnorm"
)

// Ensure Store implements the interface.
var _ driven.Catalog = (*Store)(nil)

// schema is applied statement by statement on connect. Quantities carry no
// CHECK constraints so that snapshots reach the engine unchanged.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS donor_offers (
		id   BIGINT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS partners (
		id   BIGINT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS general_items (
		id                 BIGINT PRIMARY KEY,
		title              TEXT NOT NULL,
		normalized_title   TEXT NOT NULL,
		donor_offer_id     BIGINT REFERENCES donor_offers(id) ON DELETE SET NULL,
		quantity_available BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_general_items_offer ON general_items(donor_offer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_general_items_normalized_title ON general_items(normalized_title)`,
	`CREATE TABLE IF NOT EXISTS requests (
		request_id         BIGINT PRIMARY KEY,
		partner_id         BIGINT NOT NULL REFERENCES partners(id) ON DELETE CASCADE,
		item_id            BIGINT NOT NULL REFERENCES general_items(id) ON DELETE CASCADE,
		priority           TEXT NOT NULL CHECK (priority IN ('LOW', 'MEDIUM', 'HIGH')),
		quantity_requested BIGINT NOT NULL,
		quantity_fulfilled BIGINT NOT NULL DEFAULT 0,
		created_at         TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_item ON requests(item_id, created_at, request_id)`,
}

const itemColumns = "id, title, donor_offer_id, quantity_available"

// Store is the PostgreSQL-backed relational catalog.
type Store struct {
	pool *pgxpool.Pool
}

// NewPool creates and verifies a pgxpool connection pool.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}

// Open connects to databaseURL and ensures the schema exists.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := NewPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool and ensures the schema exists. Close closes
// the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	return &Store{pool: pool}, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// SaveOffer stores or updates a donor offer.
func (s *Store) SaveOffer(ctx context.Context, offer domain.DonorOffer) error {
	if offer.ID <= 0 {
		return fmt.Errorf("%w: offer id must be positive", domain.ErrInvalidInput)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO donor_offers (id, name) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		offer.ID, offer.Name)
	if err != nil {
		return fmt.Errorf("saveOffer %d: %w", offer.ID, err)
	}
	return nil
}

// SavePartner stores or updates a partner.
func (s *Store) SavePartner(ctx context.Context, partner domain.Partner) error {
	if partner.ID <= 0 {
		return fmt.Errorf("%w: partner id must be positive", domain.ErrInvalidInput)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO partners (id, name) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		partner.ID, partner.Name)
	if err != nil {
		return fmt.Errorf("savePartner %d: %w", partner.ID, err)
	}
	return nil
}

// SaveItem stores or updates a general item. A referenced offer must exist.
func (s *Store) SaveItem(ctx context.Context, item domain.GeneralItem) error {
	if err := item.CatalogEntry().Validate(); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("saveItem begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if item.DonorOfferID != nil {
		if err := requireRow(ctx, tx, "SELECT EXISTS (SELECT 1 FROM donor_offers WHERE id = $1)", *item.DonorOfferID); err != nil {
			return fmt.Errorf("donor offer %d: %w", *item.DonorOfferID, err)
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO general_items (id, title, normalized_title, donor_offer_id, quantity_available)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title,
		   normalized_title = EXCLUDED.normalized_title,
		   donor_offer_id = EXCLUDED.donor_offer_id,
		   quantity_available = EXCLUDED.quantity_available`,
		item.ID, item.Title, textnorm.Title(item.Title), item.DonorOfferID, item.QuantityAvailable)
	if err != nil {
		return fmt.Errorf("saveItem %d: %w", item.ID, err)
	}
	return tx.Commit(ctx)
}

// SaveRequest stores or updates a request. Its item and partner must exist.
func (s *Store) SaveRequest(ctx context.Context, req domain.AllocationRequest) error {
	if req.RequestID <= 0 {
		return fmt.Errorf("%w: request id must be positive", domain.ErrInvalidInput)
	}
	if !req.Priority.IsValid() {
		return fmt.Errorf("%w: unknown priority %q", domain.ErrInvalidInput, req.Priority)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("saveRequest begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := requireRow(ctx, tx, "SELECT EXISTS (SELECT 1 FROM general_items WHERE id = $1)", req.ItemID); err != nil {
		return fmt.Errorf("general item %d: %w", req.ItemID, err)
	}
	if err := requireRow(ctx, tx, "SELECT EXISTS (SELECT 1 FROM partners WHERE id = $1)", req.PartnerID); err != nil {
		return fmt.Errorf("partner %d: %w", req.PartnerID, err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO requests (request_id, partner_id, item_id, priority,
		   quantity_requested, quantity_fulfilled, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (request_id) DO UPDATE SET
		   partner_id = EXCLUDED.partner_id,
		   item_id = EXCLUDED.item_id,
		   priority = EXCLUDED.priority,
		   quantity_requested = EXCLUDED.quantity_requested,
		   quantity_fulfilled = EXCLUDED.quantity_fulfilled,
		   created_at = EXCLUDED.created_at`,
		req.RequestID, req.PartnerID, req.ItemID, string(req.Priority),
		req.QuantityRequested, req.QuantityFulfilled, req.CreatedAt)
	if err != nil {
		return fmt.Errorf("saveRequest %d: %w", req.RequestID, err)
	}
	return tx.Commit(ctx)
}

// DeleteItem removes an item. Its requests are removed by cascade.
func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM general_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleteItem %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("general item %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// GeneralItem returns an item by id.
func (s *Store) GeneralItem(ctx context.Context, id int64) (*domain.GeneralItem, error) {
	var it domain.GeneralItem
	err := s.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM general_items WHERE id = $1`, id,
	).Scan(&it.ID, &it.Title, &it.DonorOfferID, &it.QuantityAvailable)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("general item %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("generalItem %d: %w", id, err)
	}
	return &it, nil
}

// GeneralItems returns items in the order requested.
func (s *Store) GeneralItems(ctx context.Context, ids []int64) ([]domain.GeneralItem, error) {
	if len(ids) == 0 {
		return []domain.GeneralItem{}, nil
	}
	rows, err := s.queryItems(ctx, `SELECT `+itemColumns+` FROM general_items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("generalItems: %w", err)
	}
	byID := make(map[int64]domain.GeneralItem, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	out := make([]domain.GeneralItem, 0, len(ids))
	var missing []string
	for _, id := range ids {
		it, ok := byID[id]
		if !ok {
			missing = append(missing, strconv.FormatInt(id, 10))
			continue
		}
		out = append(out, it)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("general items %s: %w", strings.Join(missing, ","), domain.ErrNotFound)
	}
	return out, nil
}

// ItemsForOffer returns the items of an offer ordered by id.
func (s *Store) ItemsForOffer(ctx context.Context, offerID int64) ([]domain.GeneralItem, error) {
	if err := requireRow(ctx, s.pool, "SELECT EXISTS (SELECT 1 FROM donor_offers WHERE id = $1)", offerID); err != nil {
		return nil, fmt.Errorf("donor offer %d: %w", offerID, err)
	}
	items, err := s.queryItems(ctx,
		`SELECT `+itemColumns+` FROM general_items WHERE donor_offer_id = $1 ORDER BY id`, offerID)
	if err != nil {
		return nil, fmt.Errorf("itemsForOffer %d: %w", offerID, err)
	}
	return items, nil
}

// ExistingItemIDs returns the subset of ids that are stored.
func (s *Store) ExistingItemIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id FROM general_items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("existingItemIDs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("existingItemIDs scan: %w", err)
		}
		out[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("existingItemIDs: %w", err)
	}
	return out, nil
}

// ItemsByNormalizedTitle returns items whose normalised title equals title.
func (s *Store) ItemsByNormalizedTitle(ctx context.Context, title string) ([]domain.GeneralItem, error) {
	items, err := s.queryItems(ctx,
		`SELECT `+itemColumns+` FROM general_items WHERE normalized_title = $1 ORDER BY id`, title)
	if err != nil {
		return nil, fmt.Errorf("itemsByNormalizedTitle: %w", err)
	}
	return items, nil
}

// AllItems pages through items ordered by id. limit <= 0 returns the rest.
func (s *Store) AllItems(ctx context.Context, afterID int64, limit int) ([]domain.GeneralItem, error) {
	var (
		items []domain.GeneralItem
		err   error
	)
	const base = `SELECT ` + itemColumns + ` FROM general_items WHERE id > $1 ORDER BY id`
	if limit > 0 {
		items, err = s.queryItems(ctx, base+` LIMIT $2`, afterID, limit)
	} else {
		items, err = s.queryItems(ctx, base, afterID)
	}
	if err != nil {
		return nil, fmt.Errorf("allItems: %w", err)
	}
	return items, nil
}

// OpenRequests returns requests for the item whose outstanding quantity is
// not zero, ordered by creation time then id.
func (s *Store) OpenRequests(ctx context.Context, itemID int64) ([]domain.AllocationRequest, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT request_id, partner_id, item_id, priority,
		        quantity_requested, quantity_fulfilled, created_at
		 FROM requests
		 WHERE item_id = $1 AND quantity_requested - quantity_fulfilled <> 0
		 ORDER BY created_at, request_id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("openRequests query: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AllocationRequest, 0)
	for rows.Next() {
		var (
			r        domain.AllocationRequest
			priority string
		)
		if err := rows.Scan(
			&r.RequestID, &r.PartnerID, &r.ItemID, &priority,
			&r.QuantityRequested, &r.QuantityFulfilled, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("openRequests scan: %w", err)
		}
		r.Priority = domain.Priority(priority)
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("openRequests: %w", err)
	}
	return out, nil
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]domain.GeneralItem, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.GeneralItem, 0)
	for rows.Next() {
		var it domain.GeneralItem
		if err := rows.Scan(&it.ID, &it.Title, &it.DonorOfferID, &it.QuantityAvailable); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// rowQuerier is satisfied by both the pool and a transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// requireRow runs an EXISTS query and maps false to domain.ErrNotFound.
func requireRow(ctx context.Context, q rowQuerier, query string, id int64) error {
	var exists bool
	if err := q.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return nil
}
