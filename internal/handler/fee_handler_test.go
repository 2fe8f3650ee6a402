package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/training-ledger-api/internal/dto"
	"github.com/noah-isme/training-ledger-api/internal/models"
	appErrors "github.com/noah-isme/training-ledger-api/pkg/errors"
)

type feeServiceMock struct {
	recorded dto.RecordFeeRequest
	paid     dto.MarkFeePaidRequest
	reason   string
	err      error
}

func (m *feeServiceMock) RecordFee(ctx context.Context, scope models.Scope, req dto.RecordFeeRequest) (*models.Fee, error) {
	m.recorded = req
	return &models.Fee{ID: "fee-1", Amount: req.Amount, Status: models.FeeStatusPending}, m.err
}

func (m *feeServiceMock) GetFee(ctx context.Context, scope models.Scope, id string) (*models.FeeDetail, error) {
	return &models.FeeDetail{Fee: models.Fee{ID: id}}, m.err
}

func (m *feeServiceMock) ListFees(ctx context.Context, scope models.Scope, filter models.FeeFilter) ([]models.FeeDetail, *models.Pagination, error) {
	return nil, &models.Pagination{Page: 1, PageSize: 20}, m.err
}

func (m *feeServiceMock) MarkPaid(ctx context.Context, scope models.Scope, id string, req dto.MarkFeePaidRequest) (*models.Fee, error) {
	m.paid = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.Fee{ID: id, Status: models.FeeStatusPaid}, nil
}

func (m *feeServiceMock) Approve(ctx context.Context, scope models.Scope, id string) (*models.Fee, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Fee{ID: id, Status: models.FeeStatusApproved}, nil
}

func (m *feeServiceMock) Reject(ctx context.Context, scope models.Scope, id string, req dto.RejectFeeRequest) (*models.Fee, error) {
	m.reason = req.Reason
	return &models.Fee{ID: id, Status: models.FeeStatusRejected}, m.err
}

func TestFeeHandlerRecordNormalisesType(t *testing.T) {
	mock := &feeServiceMock{}
	handler := NewFeeHandler(mock)

	c, w := newGinContext(http.MethodPost, "/fees", []byte(`{"student_id":"`+studentID+`","amount":5000,"fee_type":" course "}`))
	withScope(c, adminScope)
	handler.Record(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "COURSE", mock.recorded.FeeType)
	assert.Equal(t, int64(5000), mock.recorded.Amount)
}

func TestFeeHandlerPayAndReview(t *testing.T) {
	mock := &feeServiceMock{}
	handler := NewFeeHandler(mock)

	c, w := newGinContext(http.MethodPost, "/fees/"+feeID+"/pay", []byte(`{"paid_date":"2026-02-01","receipt_number":"R-1"}`))
	withParams(c, "id", feeID)
	withScope(c, adminScope)
	handler.Pay(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2026-02-01", mock.paid.PaidDate)

	c, w = newGinContext(http.MethodPost, "/fees/"+feeID+"/reject", []byte(`{"reason":"bounced"}`))
	withParams(c, "id", feeID)
	withScope(c, adminScope)
	handler.Reject(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bounced", mock.reason)

	mock.err = appErrors.ErrInvalidTransition
	c, w = newGinContext(http.MethodPost, "/fees/"+feeID+"/approve", nil)
	withParams(c, "id", feeID)
	withScope(c, adminScope)
	handler.Approve(c)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, decode(t, w).Error.Code)
}

func TestFeeHandlerRejectsMalformedFeeID(t *testing.T) {
	mock := &feeServiceMock{}
	handler := NewFeeHandler(mock)

	c, w := newGinContext(http.MethodGet, "/fees/abc", nil)
	withParams(c, "id", "abc")
	withScope(c, adminScope)
	handler.Get(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decode(t, w).Error.Code)

	c, w = newGinContext(http.MethodPost, "/fees/abc/pay", []byte(`{"paid_date":"2026-02-01"}`))
	withParams(c, "id", "abc")
	withScope(c, adminScope)
	handler.Pay(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mock.paid.PaidDate)
}

func TestFeeHandlerRecordRejectsMalformedStudentID(t *testing.T) {
	mock := &feeServiceMock{}
	c, w := newGinContext(http.MethodPost, "/fees", []byte(`{"student_id":"x","amount":5000,"fee_type":"COURSE"}`))
	withScope(c, adminScope)
	NewFeeHandler(mock).Record(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decode(t, w).Error.Code)
	assert.Empty(t, mock.recorded.StudentID)
}
