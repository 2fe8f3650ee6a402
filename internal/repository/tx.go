package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Sentinel errors surfaced by ledger repositories. Services translate them into API errors.
var (
	ErrTxConflict       = errors.New("transaction conflict after retries")
	ErrAlreadyEnrolled  = errors.New("student already enrolled in batch")
	ErrCapacityExceeded = errors.New("batch capacity exceeded")
	ErrBatchNotOpen     = errors.New("batch not accepting enrollments")
	ErrHasDependents    = errors.New("record has active dependents")
	ErrCapacityBelow    = errors.New("capacity below active enrollments")
	ErrCenterMismatch   = errors.New("student belongs to another training center")
	ErrCourseDeleted    = errors.New("course is deleted")
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"

	activeEnrollmentConstraint = "uq_enrollments_active_student_batch"
)

// Transactor runs units of work in a transaction and retries serialization failures.
type Transactor struct {
	db         *sqlx.DB
	maxRetries int
	retryDelay time.Duration
	onRetry    func()
	logger     *zap.Logger
}

// TransactorOption customises a Transactor.
type TransactorOption func(*Transactor)

// WithRetryHook registers a callback invoked before each retry attempt.
func WithRetryHook(fn func()) TransactorOption {
	return func(t *Transactor) { t.onRetry = fn }
}

// WithTxLogger sets the logger used for retry diagnostics.
func WithTxLogger(logger *zap.Logger) TransactorOption {
	return func(t *Transactor) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTransactor constructs a transactor. maxRetries counts attempts after the first.
func NewTransactor(db *sqlx.DB, maxRetries int, retryDelay time.Duration, opts ...TransactorOption) *Transactor {
	if maxRetries < 0 {
		maxRetries = 0
	}
	t := &Transactor{db: db, maxRetries: maxRetries, retryDelay: retryDelay, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// WithinTx executes fn inside a transaction. fn must be safe to re-run: it is invoked again
// when PostgreSQL reports a serialization failure or deadlock. After the last attempt the
// error wraps ErrTxConflict.
func (t *Transactor) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	var err error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			if t.onRetry != nil {
				t.onRetry()
			}
			t.logger.Debug("retrying transaction", zap.Int("attempt", attempt), zap.Error(err))
			if waitErr := sleepContext(ctx, t.retryDelay*time.Duration(attempt)); waitErr != nil {
				return waitErr
			}
		}
		err = t.run(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrTxConflict, err)
}

func (t *Transactor) run(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// wrapNoRows keeps sql.ErrNoRows untouched so callers can compare against it.
func wrapNoRows(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sql.ErrNoRows
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryable reports whether err is a PostgreSQL serialization failure or deadlock.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	code := string(pqErr.Code)
	return code == pgSerializationFailure || code == pgDeadlockDetected
}

// IsUniqueViolation reports whether err violates the named unique constraint. An empty
// constraint matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != pgUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
