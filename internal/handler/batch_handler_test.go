package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/training-ledger-api/internal/dto"
	"github.com/noah-isme/training-ledger-api/internal/models"
	appErrors "github.com/noah-isme/training-ledger-api/pkg/errors"
)

type batchServiceMock struct {
	created    dto.CreateBatchRequest
	status     models.BatchStatus
	filter     models.BatchFilter
	deleteErr  error
	statusErr  error
	list       []models.BatchDetail
	pagination *models.Pagination
}

func (m *batchServiceMock) CreateBatch(ctx context.Context, scope models.Scope, req dto.CreateBatchRequest) (*models.Batch, error) {
	m.created = req
	return &models.Batch{ID: "batch-1", Code: req.Code, Status: models.BatchStatusUpcoming}, nil
}

func (m *batchServiceMock) GetBatch(ctx context.Context, scope models.Scope, id string) (*models.BatchDetail, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
}

func (m *batchServiceMock) ListBatches(ctx context.Context, scope models.Scope, filter models.BatchFilter) ([]models.BatchDetail, *models.Pagination, error) {
	m.filter = filter
	return m.list, m.pagination, nil
}

func (m *batchServiceMock) UpdateBatch(ctx context.Context, scope models.Scope, id string, req dto.UpdateBatchRequest) (*models.Batch, error) {
	return &models.Batch{ID: id}, nil
}

func (m *batchServiceMock) UpdateBatchStatus(ctx context.Context, scope models.Scope, id string, status models.BatchStatus) (*models.Batch, error) {
	m.status = status
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return &models.Batch{ID: id, Status: status}, nil
}

func (m *batchServiceMock) DeleteBatch(ctx context.Context, scope models.Scope, id string) error {
	return m.deleteErr
}

func TestBatchHandlerCreate(t *testing.T) {
	mock := &batchServiceMock{}
	handler := NewBatchHandler(mock)
	payload, _ := json.Marshal(dto.CreateBatchRequest{Code: "B-01", Name: "Jan", CourseID: courseID, TrainingCenterID: centerID, MaxCapacity: 10, StartDate: "2026-01-05"})

	c, w := newGinContext(http.MethodPost, "/batches", payload)
	withScope(c, adminScope)
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "B-01", mock.created.Code)
	assert.Equal(t, 10, mock.created.MaxCapacity)
}

func TestBatchHandlerCreateRejectsMalformedJSON(t *testing.T) {
	handler := NewBatchHandler(&batchServiceMock{})
	c, w := newGinContext(http.MethodPost, "/batches", []byte("{"))
	withScope(c, adminScope)
	handler.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decode(t, w).Error.Code)
}

func TestBatchHandlerCreateRejectsMalformedCourseID(t *testing.T) {
	mock := &batchServiceMock{}
	payload, _ := json.Marshal(dto.CreateBatchRequest{Code: "B-01", Name: "Jan", CourseID: "c", TrainingCenterID: centerID, MaxCapacity: 10, StartDate: "2026-01-05"})

	c, w := newGinContext(http.MethodPost, "/batches", payload)
	withScope(c, adminScope)
	NewBatchHandler(mock).Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decode(t, w).Error.Code)
	assert.Empty(t, mock.created.Code)
}

func TestBatchHandlerListParsesFilters(t *testing.T) {
	mock := &batchServiceMock{list: []models.BatchDetail{{Batch: models.Batch{ID: "batch-1"}}}, pagination: &models.Pagination{Page: 2, PageSize: 5, TotalCount: 6}}
	handler := NewBatchHandler(mock)

	c, w := newGinContext(http.MethodGet, "/batches?status=ongoing&page=2&limit=5&include_deleted=true", nil)
	withScope(c, adminScope)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.BatchStatusOngoing, mock.filter.Status)
	assert.Equal(t, 2, mock.filter.Page)
	assert.Equal(t, 5, mock.filter.PageSize)
	assert.True(t, mock.filter.IncludeDeleted)
	assert.Equal(t, 6, decode(t, w).Pagination.TotalCount)
}

func TestBatchHandlerUpdateStatus(t *testing.T) {
	mock := &batchServiceMock{}
	handler := NewBatchHandler(mock)

	c, w := newGinContext(http.MethodPatch, "/batches/"+batchID+"/status", []byte(`{"status":"completed"}`))
	withParams(c, "id", batchID)
	withScope(c, adminScope)
	handler.UpdateStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.BatchStatusCompleted, mock.status)

	mock.statusErr = appErrors.ErrInvalidTransition
	c, w = newGinContext(http.MethodPatch, "/batches/"+batchID+"/status", []byte(`{"status":"UPCOMING"}`))
	withParams(c, "id", batchID)
	withScope(c, adminScope)
	handler.UpdateStatus(c)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, decode(t, w).Error.Code)
}

func TestBatchHandlerDelete(t *testing.T) {
	mock := &batchServiceMock{}
	handler := NewBatchHandler(mock)

	c, w := newGinContext(http.MethodDelete, "/batches/"+batchID, nil)
	withParams(c, "id", batchID)
	withScope(c, adminScope)
	handler.Delete(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)

	mock.deleteErr = appErrors.ErrHasDependents
	c, w = newGinContext(http.MethodDelete, "/batches/"+batchID, nil)
	withParams(c, "id", batchID)
	withScope(c, adminScope)
	handler.Delete(c)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, appErrors.ErrHasDependents.Code, decode(t, w).Error.Code)
}

func TestBatchHandlerGetNotFound(t *testing.T) {
	handler := NewBatchHandler(&batchServiceMock{})
	c, w := newGinContext(http.MethodGet, "/batches/"+batchID, nil)
	withParams(c, "id", batchID)
	withScope(c, adminScope)
	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBatchHandlerRejectsMalformedIDs(t *testing.T) {
	mock := &batchServiceMock{}
	handler := NewBatchHandler(mock)

	c, w := newGinContext(http.MethodPatch, "/batches/abc/status", []byte(`{"status":"COMPLETED"}`))
	withParams(c, "id", "abc")
	withScope(c, adminScope)
	handler.UpdateStatus(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decode(t, w).Error.Code)
	assert.Empty(t, mock.status)

	c, w = newGinContext(http.MethodGet, "/batches?course_id=abc", nil)
	withScope(c, adminScope)
	handler.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decode(t, w).Error.Code)
}

func TestBatchHandlerListCanonicalisesIDs(t *testing.T) {
	mock := &batchServiceMock{}
	handler := NewBatchHandler(mock)

	c, w := newGinContext(http.MethodGet, "/batches?training_center_id="+strings.ToUpper(centerID), nil)
	withScope(c, adminScope)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, centerID, mock.filter.TrainingCenterID)
}
