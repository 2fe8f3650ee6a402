package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/training-ledger-api/internal/models"
	"github.com/noah-isme/training-ledger-api/pkg/config"
	"github.com/noah-isme/training-ledger-api/pkg/jobs"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

const auditJobType = "audit_log"

// AuditService persists audit entries off the request path through a worker queue.
type AuditService struct {
	repo   auditLogger
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditService builds the queue-backed audit writer. Call Start before use.
func NewAuditService(repo auditLogger, cfg config.AuditConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AuditService{repo: repo, logger: logger}
	svc.queue = jobs.NewQueue("audit", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return svc
}

// Start launches the audit workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains pending entries and stops the workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// CreateAuditLog enqueues the entry. When the queue cannot take it the entry is written inline.
func (s *AuditService) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log == nil {
		return nil
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if err := s.queue.Enqueue(jobs.Job{ID: log.ID, Type: auditJobType, Payload: log}); err != nil {
		s.logger.Warn("audit queue unavailable, writing inline", zap.String("action", log.Action), zap.Error(err))
		return s.repo.CreateAuditLog(ctx, log)
	}
	return nil
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	log, ok := job.Payload.(*models.AuditLog)
	if !ok {
		return fmt.Errorf("unexpected audit payload %T", job.Payload)
	}
	return s.repo.CreateAuditLog(ctx, log)
}
