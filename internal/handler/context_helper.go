package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/training-ledger-api/internal/middleware"
	"github.com/noah-isme/training-ledger-api/internal/models"
	appErrors "github.com/noah-isme/training-ledger-api/pkg/errors"
	"github.com/noah-isme/training-ledger-api/pkg/response"
)

// scopeFromContext returns the resolved scope or writes 401 and reports false.
func scopeFromContext(c *gin.Context) (models.Scope, bool) {
	scope, ok := middleware.ScopeFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Scope{}, false
	}
	return scope, true
}

func bindError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
}

// pathID reads a UUID path parameter in canonical form or writes 400 and reports false.
func pathID(c *gin.Context, name string) (string, bool) {
	id, err := canonicalUUID(c.Param(name))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, name+" must be a UUID"))
		return "", false
	}
	return id, true
}

// queryIDs copies the optional UUID filters named by fields from the query string. A malformed
// value writes 400 and reports false.
func queryIDs(c *gin.Context, fields map[string]*string) bool {
	for name, dst := range fields {
		value := c.Query(name)
		if value == "" {
			continue
		}
		id, err := canonicalUUID(value)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, name+" must be a UUID"))
			return false
		}
		*dst = id
	}
	return true
}

func canonicalUUID(value string) (string, error) {
	parsed, err := uuid.Parse(value)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

func pageParams(c *gin.Context) (page, size int) {
	page, size = 1, 20
	if v, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		page = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		size = v
	}
	return page, size
}
