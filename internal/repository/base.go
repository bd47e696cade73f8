// Package repository provides the storage layer: every transaction that
// keeps a denormalized counter in step with its source rows lives here.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/v1mal/open-scene-engine-sub000/internal/database"
	"github.com/v1mal/open-scene-engine-sub000/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Option tunes a repository.
type Option func(*options)

type options struct {
	now  func() time.Time
	read *gorm.DB
}

// WithClock replaces the storage clock. Tests use it to pin timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithReadDB routes list queries to a read replica.
func WithReadDB(db *gorm.DB) Option {
	return func(o *options) { o.read = db }
}

func buildOptions(primary *gorm.DB, opts []Option) options {
	o := options{now: database.Now, read: primary}
	for _, fn := range opts {
		fn(&o)
	}
	if o.read == nil {
		o.read = primary
	}
	return o
}

// forUpdate is the row lock taken on every contended row. The sqlite
// dialect drops it; transactions there are serialized anyway.
var forUpdate = clause.Locking{Strength: "UPDATE"}

// SQLSTATE codes meaning the transaction lost a race and may be retried.
var retryableSQLStates = map[string]bool{
	"23505": true, // unique_violation
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57014": true, // query_canceled (statement/lock timeout)
}

// translateError maps storage failures onto the AppError taxonomy. AppErrors
// raised inside a transaction pass through untouched.
func translateError(err error, resource string, id any) error {
	if err == nil {
		return nil
	}

	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return models.NewConflictError(resource+" already exists", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewConflictError(resource+" update timed out", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && retryableSQLStates[pgErr.Code] {
		return models.NewConflictError(resource+" update conflicted", err)
	}

	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "database is locked") {
		return models.NewConflictError(resource+" update conflicted", err)
	}

	return models.NewInternalError(fmt.Errorf("%s: %w", resource, err))
}

// escapeLike escapes LIKE metacharacters for use with ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// decrementFloor renders "col - 1" clamped at zero.
func decrementFloor(col string) clause.Expr {
	return gorm.Expr(fmt.Sprintf("CASE WHEN %s > 0 THEN %s - 1 ELSE 0 END", col, col))
}
