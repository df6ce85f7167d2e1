package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pharmastock/pharmastock-backend/internal/stock/domain"
	"github.com/pharmastock/pharmastock-backend/pkg/database"
	"github.com/pharmastock/pharmastock-backend/pkg/errors"
)

var signalementColumns = []string{
	"id", "product_code", "quantity", "expiration_date", "comment", "status",
	"computed_urgency", "sell_through_probability", "created_at", "updated_at",
}

// SignalementRepository handles signalement persistence
type SignalementRepository struct {
	db *database.DB
}

// NewSignalementRepository creates a new signalement repository
func NewSignalementRepository(db *database.DB) *SignalementRepository {
	return &SignalementRepository{db: db}
}

// Create inserts a signalement. Status defaults to PENDING.
func (r *SignalementRepository) Create(ctx context.Context, s *domain.Signalement) error {
	return insertSignalement(ctx, r.db, s)
}

// insertSignalement runs the insert on any sqlx handle so it can join a transaction
func insertSignalement(ctx context.Context, q sqlxQueryer, s *domain.Signalement) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Status == "" {
		s.Status = domain.StatusPending
	}

	query := `
		INSERT INTO signalements (id, product_code, quantity, expiration_date, comment, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := q.QueryRowxContext(ctx, query,
		s.ID, s.ProductCode, s.Quantity, s.ExpirationDate, s.Comment, s.Status,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

// GetByID gets a signalement by ID
func (r *SignalementRepository) GetByID(ctx context.Context, id string) (*domain.Signalement, error) {
	var s domain.Signalement
	query := `SELECT ` + columnList(signalementColumns) + ` FROM signalements WHERE id = $1`
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("signalement")
		}
		return nil, err
	}
	return &s, nil
}

// List returns the signalements matching filter, soonest expiry first
func (r *SignalementRepository) List(ctx context.Context, filter domain.SignalementFilter) ([]*domain.Signalement, error) {
	builder := applySignalementFilter(psql.Select(signalementColumns...).From("signalements"), filter).
		OrderBy("expiration_date ASC", "created_at DESC")

	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build signalement query: %w", err)
	}

	signalements := []*domain.Signalement{}
	if err := r.db.SelectContext(ctx, &signalements, query, args...); err != nil {
		return nil, err
	}
	return signalements, nil
}

// Count returns the number of signalements matching filter, ignoring pagination
func (r *SignalementRepository) Count(ctx context.Context, filter domain.SignalementFilter) (int64, error) {
	query, args, err := applySignalementFilter(psql.Select("COUNT(*)").From("signalements"), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build signalement count: %w", err)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, err
	}
	return total, nil
}

func applySignalementFilter(b sq.SelectBuilder, f domain.SignalementFilter) sq.SelectBuilder {
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		b = b.Where(sq.Eq{"status": statuses})
	}
	if len(f.Urgencies) > 0 {
		urgencies := make([]string, len(f.Urgencies))
		for i, u := range f.Urgencies {
			urgencies[i] = string(u)
		}
		b = b.Where(sq.Eq{"computed_urgency": urgencies})
	}
	if f.ProductCodePrefix != "" {
		b = b.Where(sq.Like{"product_code": f.ProductCodePrefix + "%"})
	}
	if f.ExpiringBefore != nil {
		b = b.Where(sq.LtOrEq{"expiration_date": *f.ExpiringBefore})
	}
	return b
}

// ListOpen returns every signalement the bulk urgency recompute covers
func (r *SignalementRepository) ListOpen(ctx context.Context) ([]*domain.Signalement, error) {
	open := domain.OpenStatuses()
	statuses := make([]string, len(open))
	for i, s := range open {
		statuses[i] = string(s)
	}

	query := `SELECT ` + columnList(signalementColumns) + ` FROM signalements
		WHERE status = ANY($1)
		ORDER BY expiration_date, id`

	signalements := []*domain.Signalement{}
	if err := r.db.SelectContext(ctx, &signalements, query, pq.Array(statuses)); err != nil {
		return nil, err
	}
	return signalements, nil
}

// SaveUrgency writes tier, probability, status and updated_at in one statement
func (r *SignalementRepository) SaveUrgency(ctx context.Context, id string, u domain.UrgencyUpdate) error {
	query := `
		UPDATE signalements SET
			computed_urgency = $2, sell_through_probability = $3, status = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, u.Tier, u.SellThroughProbability, u.Status, u.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("signalement")
	}
	return nil
}

// Update writes the user-editable fields of a signalement
func (r *SignalementRepository) Update(ctx context.Context, s *domain.Signalement) error {
	query := `
		UPDATE signalements SET
			quantity = $2, expiration_date = $3, comment = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowxContext(ctx, query, s.ID, s.Quantity, s.ExpirationDate, s.Comment).Scan(&s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return errors.NotFound("signalement")
		}
		return mapWriteError(err)
	}
	return nil
}

// UpdateStatuses sets status on every listed signalement and returns how many rows changed
func (r *SignalementRepository) UpdateStatuses(ctx context.Context, ids []string, status domain.SignalementStatus) (int64, error) {
	query := `UPDATE signalements SET status = $1, updated_at = NOW() WHERE id = ANY($2)`

	result, err := r.db.ExecContext(ctx, query, status, pq.Array(ids))
	if err != nil {
		return 0, mapWriteError(err)
	}

	affected, _ := result.RowsAffected()
	return affected, nil
}

// Delete deletes a signalement
func (r *SignalementRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM signalements WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("signalement")
	}
	return nil
}

// CountByStatus groups signalements by status
func (r *SignalementRepository) CountByStatus(ctx context.Context) ([]domain.StatusCount, error) {
	query := `SELECT status AS key, COUNT(*) AS count FROM signalements GROUP BY status ORDER BY status`

	counts := []domain.StatusCount{}
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, err
	}
	return counts, nil
}

// CountByUrgency groups signalements by computed urgency; not yet computed rows count as "none"
func (r *SignalementRepository) CountByUrgency(ctx context.Context) ([]domain.StatusCount, error) {
	query := `
		SELECT COALESCE(computed_urgency, 'none') AS key, COUNT(*) AS count
		FROM signalements
		GROUP BY computed_urgency
		ORDER BY key
	`

	counts := []domain.StatusCount{}
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, err
	}
	return counts, nil
}
