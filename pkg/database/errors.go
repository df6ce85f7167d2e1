package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/pharmastock/pharmastock-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	// Value too long for its column (22001)
	case "22001":
		col := pqErr.Column
		if col == "" {
			col = "value"
		}
		return errors.Validation(map[string]string{
			col: "is too long",
		})

	// Malformed input for the column type, e.g. a non-UUID id (22P02)
	case "22P02":
		return errors.BadRequest("malformed value")

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_positive"):
		return errors.Validation(map[string]string{
			"quantity": "must be at least 1",
		})

	case strings.Contains(constraint, "quantity_non_negative"):
		return errors.Validation(map[string]string{
			"quantity": "must not be negative",
		})

	case strings.Contains(constraint, "monthly_rotation_range"):
		return errors.Validation(map[string]string{
			"monthly_rotation": "must be between 0 and 1000",
		})

	case strings.Contains(constraint, "product_code_format"):
		return errors.Validation(map[string]string{
			"product_code": "must contain 8 to 20 digits",
		})

	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: PENDING, IN_PROGRESS, TO_DESTOCK, TO_VERIFY, SELLING_THROUGH, DESTROYED",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "normalized_code"):
		return "a rotation for this product code already exists"
	default:
		return "a record with these values already exists"
	}
}
