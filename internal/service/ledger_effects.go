package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/training-ledger-api/internal/models"
	"github.com/noah-isme/training-ledger-api/internal/repository"
	appErrors "github.com/noah-isme/training-ledger-api/pkg/errors"
)

const (
	reportCachePattern = "report:*"
	dateLayout         = "2006-01-02"
)

// ledgerEffects groups the best-effort side effects of a committed ledger mutation.
type ledgerEffects struct {
	audit   auditLogger
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

func (e ledgerEffects) record(ctx context.Context, scope models.Scope, action, resource, resourceID string, oldValues, newValues interface{}) {
	if e.audit == nil {
		return
	}
	actor := scope.PrincipalID
	log := &models.AuditLog{
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		OldValues:  auditJSON(oldValues),
		NewValues:  auditJSON(newValues),
		IPAddress:  "system",
		UserAgent:  "ledger",
		CreatedAt:  time.Now().UTC(),
	}
	if actor != "" {
		log.UserID = &actor
	}
	if err := e.audit.CreateAuditLog(ctx, log); err != nil {
		e.logger.Warn("failed to persist audit log", zap.String("action", action), zap.Error(err))
	}
}

// invalidateReports drops every cached summary. Failures only log.
func (e ledgerEffects) invalidateReports(ctx context.Context) {
	if e.cache == nil {
		return
	}
	_ = e.cache.Invalidate(ctx, reportCachePattern)
}

func auditJSON(v interface{}) []byte {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

func parseDate(raw, field string) (time.Time, error) {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, field+" must use YYYY-MM-DD")
	}
	return t, nil
}

func parseOptionalDate(raw *string, field string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := parseDate(*raw, field)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// txConflict translates exhausted transaction retries; ok is false for other errors.
func txConflict(err error) (*appErrors.Error, bool) {
	if errors.Is(err, repository.ErrTxConflict) {
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "concurrent update, please retry"), true
	}
	return nil, false
}

func internalError(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
