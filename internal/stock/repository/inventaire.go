package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmastock/pharmastock-backend/internal/stock/domain"
	"github.com/pharmastock/pharmastock-backend/pkg/database"
	"github.com/pharmastock/pharmastock-backend/pkg/errors"
)

var inventaireItemColumns = []string{
	"id", "inventaire_id", "product_code", "quantity", "expiration_date",
	"lot_number", "signalement_id", "created_at",
}

// InventaireRepository handles inventaire and item persistence
type InventaireRepository struct {
	db *database.DB
}

// NewInventaireRepository creates a new inventaire repository
func NewInventaireRepository(db *database.DB) *InventaireRepository {
	return &InventaireRepository{db: db}
}

// Create creates a new inventaire in progress
func (r *InventaireRepository) Create(ctx context.Context, inv *domain.Inventaire) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	inv.Status = domain.InventaireInProgress

	query := `
		INSERT INTO inventaires (id, name, status)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	if err := r.db.QueryRowxContext(ctx, query, inv.ID, inv.Name, inv.Status).Scan(&inv.CreatedAt); err != nil {
		return mapWriteError(err)
	}
	return nil
}

// GetByID gets an inventaire by ID
func (r *InventaireRepository) GetByID(ctx context.Context, id string) (*domain.Inventaire, error) {
	var inv domain.Inventaire
	query := `SELECT id, name, status, created_at, completed_at FROM inventaires WHERE id = $1`
	if err := r.db.GetContext(ctx, &inv, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("inventaire")
		}
		return nil, err
	}
	return &inv, nil
}

// List lists inventaires, newest first
func (r *InventaireRepository) List(ctx context.Context) ([]*domain.Inventaire, error) {
	query := `SELECT id, name, status, created_at, completed_at FROM inventaires ORDER BY created_at DESC`

	inventaires := []*domain.Inventaire{}
	if err := r.db.SelectContext(ctx, &inventaires, query); err != nil {
		return nil, err
	}
	return inventaires, nil
}

// Complete marks an in-progress inventaire as completed
func (r *InventaireRepository) Complete(ctx context.Context, inv *domain.Inventaire) error {
	query := `
		UPDATE inventaires SET status = $2, completed_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING completed_at
	`

	err := r.db.QueryRowxContext(ctx, query, inv.ID, domain.InventaireCompleted, domain.InventaireInProgress).
		Scan(&inv.CompletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return errors.Conflict("inventaire is not in progress")
		}
		return err
	}
	inv.Status = domain.InventaireCompleted
	return nil
}

// Delete deletes an inventaire and its items
func (r *InventaireRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM inventaires WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("inventaire")
	}
	return nil
}

// AddItem inserts an item. When sig is not nil it is inserted first in the
// same transaction and the item is linked to it.
func (r *InventaireRepository) AddItem(ctx context.Context, item *domain.InventaireItem, sig *domain.Signalement) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if sig != nil {
			if err := insertSignalement(ctx, tx, sig); err != nil {
				return err
			}
			item.SignalementID = &sig.ID
		}

		query := `
			INSERT INTO inventaire_items (
				id, inventaire_id, product_code, quantity, expiration_date, lot_number, signalement_id
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at
		`
		err := tx.QueryRowxContext(ctx, query,
			item.ID, item.InventaireID, item.ProductCode, item.Quantity,
			item.ExpirationDate, item.LotNumber, item.SignalementID,
		).Scan(&item.CreatedAt)
		if err != nil {
			return mapWriteError(err)
		}
		return nil
	})
}

// ListItems lists the items of an inventaire in scan order
func (r *InventaireRepository) ListItems(ctx context.Context, inventaireID string) ([]*domain.InventaireItem, error) {
	query := `SELECT ` + columnList(inventaireItemColumns) + ` FROM inventaire_items
		WHERE inventaire_id = $1 ORDER BY created_at, id`

	items := []*domain.InventaireItem{}
	if err := r.db.SelectContext(ctx, &items, query, inventaireID); err != nil {
		return nil, err
	}
	return items, nil
}

// Summary aggregates the items of an inventaire
func (r *InventaireRepository) Summary(ctx context.Context, inventaireID string) (*domain.InventaireSummary, error) {
	query := `
		SELECT
			COUNT(*) AS item_count,
			COALESCE(SUM(quantity), 0) AS total_quantity,
			COUNT(DISTINCT product_code) AS distinct_products
		FROM inventaire_items
		WHERE inventaire_id = $1
	`

	var summary domain.InventaireSummary
	if err := r.db.GetContext(ctx, &summary, query, inventaireID); err != nil {
		return nil, err
	}
	return &summary, nil
}
