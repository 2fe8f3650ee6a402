package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/training-ledger-api/internal/models"
	appErrors "github.com/noah-isme/training-ledger-api/pkg/errors"
)

type courseServiceMock struct{ err error }

func (m courseServiceMock) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	return &models.Course{ID: id}, m.err
}

func (m courseServiceMock) DeleteCourse(ctx context.Context, scope models.Scope, id string) error {
	return m.err
}

func TestCourseHandlerDelete(t *testing.T) {
	c, w := newGinContext(http.MethodDelete, "/courses/"+courseID, nil)
	withParams(c, "id", courseID)
	withScope(c, adminScope)
	NewCourseHandler(courseServiceMock{}).Delete(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)

	c, w = newGinContext(http.MethodDelete, "/courses/"+courseID, nil)
	withParams(c, "id", courseID)
	withScope(c, adminScope)
	NewCourseHandler(courseServiceMock{err: appErrors.ErrHasDependents}).Delete(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCourseHandlerGetRejectsMalformedID(t *testing.T) {
	c, w := newGinContext(http.MethodGet, "/courses/abc", nil)
	withParams(c, "id", "abc")
	NewCourseHandler(courseServiceMock{}).Get(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decode(t, w).Error.Code)
}
