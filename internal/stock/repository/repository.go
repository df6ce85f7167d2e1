// Package repository persists the stock service entities in PostgreSQL.
package repository

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pharmastock/pharmastock-backend/pkg/database"
)

// psql builds PostgreSQL statements with $n placeholders
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// mapWriteError turns constraint violations into AppErrors and leaves other errors untouched
func mapWriteError(err error) error {
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}

func columnList(columns []string) string {
	return strings.Join(columns, ", ")
}

// sqlxQueryer is satisfied by both *sqlx.DB and *sqlx.Tx
type sqlxQueryer interface {
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
}
