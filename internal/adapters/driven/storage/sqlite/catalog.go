package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driven"
	"github.com/custodia-labs/supplymatch/internal/textnorm"
)

// Ensure Store implements the interface.
var _ driven.Catalog = (*Store)(nil)

const itemColumns = "id, title, donor_offer_id, quantity_available"

// requestRow stores created_at as unix microseconds so that ordering is
// numeric and round trips are exact.
type requestRow struct {
	RequestID         int64  `db:"request_id"`
	PartnerID         int64  `db:"partner_id"`
	ItemID            int64  `db:"item_id"`
	Priority          string `db:"priority"`
	QuantityRequested int64  `db:"quantity_requested"`
	QuantityFulfilled int64  `db:"quantity_fulfilled"`
	CreatedAt         int64  `db:"created_at"`
}

func (r requestRow) toDomain() domain.AllocationRequest {
	return domain.AllocationRequest{
		RequestID:         r.RequestID,
		PartnerID:         r.PartnerID,
		ItemID:            r.ItemID,
		Priority:          domain.Priority(r.Priority),
		QuantityRequested: r.QuantityRequested,
		QuantityFulfilled: r.QuantityFulfilled,
		CreatedAt:         time.UnixMicro(r.CreatedAt).UTC(),
	}
}

// SaveOffer stores or updates a donor offer.
func (s *Store) SaveOffer(ctx context.Context, offer domain.DonorOffer) error {
	if offer.ID <= 0 {
		return fmt.Errorf("%w: offer id must be positive", domain.ErrInvalidInput)
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO donor_offers (id, name) VALUES (:id, :name)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, offer)
	if err != nil {
		return fmt.Errorf("saving donor offer %d: %w", offer.ID, err)
	}
	return nil
}

// SavePartner stores or updates a partner.
func (s *Store) SavePartner(ctx context.Context, partner domain.Partner) error {
	if partner.ID <= 0 {
		return fmt.Errorf("%w: partner id must be positive", domain.ErrInvalidInput)
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO partners (id, name) VALUES (:id, :name)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, partner)
	if err != nil {
		return fmt.Errorf("saving partner %d: %w", partner.ID, err)
	}
	return nil
}

// SaveItem stores or updates a general item. A referenced offer must exist.
// Updating in place keeps the item's requests.
func (s *Store) SaveItem(ctx context.Context, item domain.GeneralItem) error {
	if err := item.CatalogEntry().Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if item.DonorOfferID != nil {
		if err := requireRow(ctx, tx, "donor_offers", "id", *item.DonorOfferID); err != nil {
			return fmt.Errorf("donor offer %d: %w", *item.DonorOfferID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO general_items (id, title, normalized_title, donor_offer_id, quantity_available)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			normalized_title = excluded.normalized_title,
			donor_offer_id = excluded.donor_offer_id,
			quantity_available = excluded.quantity_available
	`, item.ID, item.Title, textnorm.Title(item.Title), item.DonorOfferID, item.QuantityAvailable)
	if err != nil {
		return fmt.Errorf("saving general item %d: %w", item.ID, err)
	}
	return tx.Commit()
}

// SaveRequest stores or updates a request. Its item and partner must exist.
func (s *Store) SaveRequest(ctx context.Context, req domain.AllocationRequest) error {
	if req.RequestID <= 0 {
		return fmt.Errorf("%w: request id must be positive", domain.ErrInvalidInput)
	}
	if !req.Priority.IsValid() {
		return fmt.Errorf("%w: unknown priority %q", domain.ErrInvalidInput, req.Priority)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := requireRow(ctx, tx, "general_items", "id", req.ItemID); err != nil {
		return fmt.Errorf("general item %d: %w", req.ItemID, err)
	}
	if err := requireRow(ctx, tx, "partners", "id", req.PartnerID); err != nil {
		return fmt.Errorf("partner %d: %w", req.PartnerID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO requests (request_id, partner_id, item_id, priority,
			quantity_requested, quantity_fulfilled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id) DO UPDATE SET
			partner_id = excluded.partner_id,
			item_id = excluded.item_id,
			priority = excluded.priority,
			quantity_requested = excluded.quantity_requested,
			quantity_fulfilled = excluded.quantity_fulfilled,
			created_at = excluded.created_at
	`, req.RequestID, req.PartnerID, req.ItemID, string(req.Priority),
		req.QuantityRequested, req.QuantityFulfilled, req.CreatedAt.UnixMicro())
	if err != nil {
		return fmt.Errorf("saving request %d: %w", req.RequestID, err)
	}
	return tx.Commit()
}

// DeleteItem removes an item. Its requests are removed by cascade.
func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM general_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting general item %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting general item %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("general item %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// GeneralItem returns an item by id.
func (s *Store) GeneralItem(ctx context.Context, id int64) (*domain.GeneralItem, error) {
	var it domain.GeneralItem
	err := s.db.GetContext(ctx, &it, "SELECT "+itemColumns+" FROM general_items WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("general item %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading general item %d: %w", id, err)
	}
	return &it, nil
}

// GeneralItems returns items in the order requested.
func (s *Store) GeneralItems(ctx context.Context, ids []int64) ([]domain.GeneralItem, error) {
	if len(ids) == 0 {
		return []domain.GeneralItem{}, nil
	}

	var rows []domain.GeneralItem
	if err := s.selectIn(ctx, &rows, "SELECT "+itemColumns+" FROM general_items WHERE id IN (?)", ids); err != nil {
		return nil, fmt.Errorf("loading general items: %w", err)
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
	if err := requireRow(ctx, s.db, "donor_offers", "id", offerID); err != nil {
		return nil, fmt.Errorf("donor offer %d: %w", offerID, err)
	}
	out := []domain.GeneralItem{}
	err := s.db.SelectContext(ctx, &out,
		"SELECT "+itemColumns+" FROM general_items WHERE donor_offer_id = ? ORDER BY id", offerID)
	if err != nil {
		return nil, fmt.Errorf("loading items for offer %d: %w", offerID, err)
	}
	return out, nil
}

// ExistingItemIDs returns the subset of ids that are stored.
func (s *Store) ExistingItemIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var found []int64
	if err := s.selectIn(ctx, &found, "SELECT id FROM general_items WHERE id IN (?)", ids); err != nil {
		return nil, fmt.Errorf("checking item ids: %w", err)
	}
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

// ItemsByNormalizedTitle returns items whose normalised title equals title.
func (s *Store) ItemsByNormalizedTitle(ctx context.Context, title string) ([]domain.GeneralItem, error) {
	out := []domain.GeneralItem{}
	err := s.db.SelectContext(ctx, &out,
		"SELECT "+itemColumns+" FROM general_items WHERE normalized_title = ? ORDER BY id", title)
	if err != nil {
		return nil, fmt.Errorf("loading items by title: %w", err)
	}
	return out, nil
}

// AllItems pages through items ordered by id. limit <= 0 returns the rest.
func (s *Store) AllItems(ctx context.Context, afterID int64, limit int) ([]domain.GeneralItem, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	out := []domain.GeneralItem{}
	err := s.db.SelectContext(ctx, &out,
		"SELECT "+itemColumns+" FROM general_items WHERE id > ? ORDER BY id LIMIT ?", afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("paging items: %w", err)
	}
	return out, nil
}

// OpenRequests returns requests for the item whose outstanding quantity is
// not zero, ordered by creation time then id.
func (s *Store) OpenRequests(ctx context.Context, itemID int64) ([]domain.AllocationRequest, error) {
	var rows []requestRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT request_id, partner_id, item_id, priority,
			quantity_requested, quantity_fulfilled, created_at
		FROM requests
		WHERE item_id = ? AND quantity_requested - quantity_fulfilled <> 0
		ORDER BY created_at, request_id
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("loading requests for item %d: %w", itemID, err)
	}
	out := make([]domain.AllocationRequest, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// selectIn expands the single IN (?) placeholder in query over ids.
func (s *Store) selectIn(ctx context.Context, dest any, query string, ids []int64) error {
	q, args, err := sqlx.In(query, ids)
	if err != nil {
		return err
	}
	return s.db.SelectContext(ctx, dest, s.db.Rebind(q), args...)
}

// requireRow returns domain.ErrNotFound when no row has column = id.
// table and column are constants supplied by this package.
func requireRow(ctx context.Context, q sqlx.QueryerContext, table, column string, id int64) error {
	var one int
	err := sqlx.GetContext(ctx, q, &one, "SELECT 1 FROM "+table+" WHERE "+column+" = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}
