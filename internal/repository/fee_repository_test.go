package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/training-ledger-api/internal/models"
)

func feeRow(status models.FeeStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "student_id", "amount", "fee_type", "status", "due_date", "paid_date", "receipt_number",
		"approved_by", "approved_date", "rejection_reason", "notes", "recorded_by", "created_at", "updated_at"}).
		AddRow("fee-1", "stu-1", int64(5000), "COURSE", string(status), nil, now, "R-1", nil, nil, nil, nil, "op-1", now, now)
}

func TestFeeRepositoryCreateForcesPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO fees")).
		WithArgs(sqlmock.AnyArg(), "stu-1", int64(5000), models.FeeTypeCourse, models.FeeStatusPending, nil, nil, "op-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	fee := &models.Fee{StudentID: "stu-1", Amount: 5000, FeeType: models.FeeTypeCourse, Status: models.FeeStatusApproved, RecordedBy: "op-1"}
	require.NoError(t, repo.Create(context.Background(), fee))
	assert.Equal(t, models.FeeStatusPending, fee.Status)
	assert.NotEmpty(t, fee.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryMarkPaidOnlyFromPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	paid := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	receipt := "R-1"
	query := regexp.QuoteMeta("UPDATE fees SET status = $2, paid_date = $3, receipt_number = $4, updated_at = $5 WHERE id = $1 AND status = $6")
	mock.ExpectQuery(query).
		WithArgs("fee-1", models.FeeStatusPaid, paid, &receipt, sqlmock.AnyArg(), models.FeeStatusPending).
		WillReturnRows(feeRow(models.FeeStatusPaid))
	mock.ExpectQuery(query).WillReturnError(sql.ErrNoRows)

	fee, err := repo.MarkPaid(context.Background(), "fee-1", paid, &receipt)
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusPaid, fee.Status)

	_, err = repo.MarkPaid(context.Background(), "fee-1", paid, &receipt)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryReviewGuardsTerminalStates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	reviewedAt := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND status IN ($6, $7)")).
		WithArgs("fee-1", models.FeeStatusApproved, "admin-1", reviewedAt, nil, models.FeeStatusPending, models.FeeStatusPaid).
		WillReturnRows(feeRow(models.FeeStatusApproved))

	fee, err := repo.Review(context.Background(), ReviewFeeParams{ID: "fee-1", Status: models.FeeStatusApproved, ReviewerID: "admin-1", ReviewedAt: reviewedAt})
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusApproved, fee.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
