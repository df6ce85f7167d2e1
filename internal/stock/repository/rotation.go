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

var rotationColumns = []string{
	"id", "code", "normalized_code", "monthly_rotation", "unit_purchase_price", "last_updated",
}

// RotationRepository handles product rotation persistence.
// It also serves as the matcher's store on single-record lookups.
type RotationRepository struct {
	db *database.DB
}

// NewRotationRepository creates a new rotation repository
func NewRotationRepository(db *database.DB) *RotationRepository {
	return &RotationRepository{db: db}
}

const upsertRotationQuery = `
	INSERT INTO product_rotations (id, code, normalized_code, monthly_rotation, unit_purchase_price, last_updated)
	VALUES ($1, $2, $3, $4, $5, NOW())
	ON CONFLICT (normalized_code) DO UPDATE SET
		code = EXCLUDED.code,
		monthly_rotation = EXCLUDED.monthly_rotation,
		unit_purchase_price = EXCLUDED.unit_purchase_price,
		last_updated = NOW()
	RETURNING id, last_updated
`

// Upsert inserts a rotation or replaces the one sharing its normalized code.
// NormalizedCode must already be set.
func (r *RotationRepository) Upsert(ctx context.Context, rot *domain.ProductRotation) error {
	return upsertRotation(ctx, r.db, rot)
}

// BulkUpsert upserts every rotation in one transaction
func (r *RotationRepository) BulkUpsert(ctx context.Context, rotations []*domain.ProductRotation) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for _, rot := range rotations {
			if err := upsertRotation(ctx, tx, rot); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertRotation(ctx context.Context, q sqlxQueryer, rot *domain.ProductRotation) error {
	if rot.ID == "" {
		rot.ID = uuid.New().String()
	}

	err := q.QueryRowxContext(ctx, upsertRotationQuery,
		rot.ID, rot.Code, rot.NormalizedCode, rot.MonthlyRotation, rot.UnitPurchasePrice,
	).Scan(&rot.ID, &rot.LastUpdated)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

// GetByID gets a rotation by ID
func (r *RotationRepository) GetByID(ctx context.Context, id string) (*domain.ProductRotation, error) {
	var rot domain.ProductRotation
	query := `SELECT ` + columnList(rotationColumns) + ` FROM product_rotations WHERE id = $1`
	if err := r.db.GetContext(ctx, &rot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("rotation")
		}
		return nil, err
	}
	return &rot, nil
}

// FindByCode returns the rotation stored under the raw code, or nil
func (r *RotationRepository) FindByCode(ctx context.Context, code string) (*domain.ProductRotation, error) {
	query := `SELECT ` + columnList(rotationColumns) + ` FROM product_rotations
		WHERE code = $1 ORDER BY last_updated DESC LIMIT 1`
	return r.findOne(ctx, query, code)
}

// FindByNormalizedCode returns the rotation stored under the normalized code, or nil
func (r *RotationRepository) FindByNormalizedCode(ctx context.Context, normalizedCode string) (*domain.ProductRotation, error) {
	query := `SELECT ` + columnList(rotationColumns) + ` FROM product_rotations WHERE normalized_code = $1`
	return r.findOne(ctx, query, normalizedCode)
}

func (r *RotationRepository) findOne(ctx context.Context, query string, arg string) (*domain.ProductRotation, error) {
	var rot domain.ProductRotation
	if err := r.db.GetContext(ctx, &rot, query, arg); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rot, nil
}

// Candidates returns every rotation ordered by normalized code
func (r *RotationRepository) Candidates(ctx context.Context) ([]*domain.ProductRotation, error) {
	query := `SELECT ` + columnList(rotationColumns) + ` FROM product_rotations ORDER BY normalized_code`

	rotations := []*domain.ProductRotation{}
	if err := r.db.SelectContext(ctx, &rotations, query); err != nil {
		return nil, err
	}
	return rotations, nil
}

// List returns a page of rotations ordered by normalized code
func (r *RotationRepository) List(ctx context.Context, limit, offset int) ([]*domain.ProductRotation, error) {
	query := `SELECT ` + columnList(rotationColumns) + ` FROM product_rotations
		ORDER BY normalized_code LIMIT $1 OFFSET $2`

	rotations := []*domain.ProductRotation{}
	if err := r.db.SelectContext(ctx, &rotations, query, limit, offset); err != nil {
		return nil, err
	}
	return rotations, nil
}

// Count returns the number of stored rotations
func (r *RotationRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM product_rotations`); err != nil {
		return 0, err
	}
	return total, nil
}

// Delete deletes a rotation
func (r *RotationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM product_rotations WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("rotation")
	}
	return nil
}
