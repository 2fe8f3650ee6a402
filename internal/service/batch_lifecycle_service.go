package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/training-ledger-api/internal/models"
)

const defaultLifecycleSchedule = "0 5 0 * * *"

type batchAdvancer interface {
	AdvanceByDate(ctx context.Context, asOf time.Time) (started, completed int64, err error)
}

// LifecycleResult summarises one scheduler pass.
type LifecycleResult struct {
	AsOf      time.Time `json:"as_of"`
	Started   int64     `json:"started"`
	Completed int64     `json:"completed"`
}

// BatchLifecycleService moves batches UPCOMING to ONGOING on their start date and ONGOING to
// COMPLETED after their end date.
type BatchLifecycleService struct {
	repo     batchAdvancer
	effects  ledgerEffects
	metrics  *MetricsService
	logger   *zap.Logger
	schedule string
	now      func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running sync.Mutex
}

// NewBatchLifecycleService constructs the scheduler. An empty schedule uses the daily default.
func NewBatchLifecycleService(repo batchAdvancer, audit auditLogger, cache *CacheService, metrics *MetricsService, schedule string, logger *zap.Logger) *BatchLifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schedule == "" {
		schedule = defaultLifecycleSchedule
	}
	return &BatchLifecycleService{
		repo:     repo,
		effects:  ledgerEffects{audit: audit, cache: cache, metrics: metrics, logger: logger},
		metrics:  metrics,
		logger:   logger,
		schedule: schedule,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start registers the job and starts the cron scheduler.
func (s *BatchLifecycleService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.Run(ctx); err != nil {
			s.logger.Error("batch lifecycle run failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("register batch lifecycle job: %w", err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("batch lifecycle scheduler started", zap.String("schedule", s.schedule))
	return nil
}

// Stop halts the scheduler and waits for a running pass to finish.
func (s *BatchLifecycleService) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Info("batch lifecycle scheduler stopped")
}

// Run performs a single pass using the current date. Overlapping passes are skipped.
func (s *BatchLifecycleService) Run(ctx context.Context) (*LifecycleResult, error) {
	if !s.running.TryLock() {
		s.logger.Debug("batch lifecycle pass already running")
		return &LifecycleResult{}, nil
	}
	defer s.running.Unlock()

	now := s.now()
	asOf := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	started, completed, err := s.repo.AdvanceByDate(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("advance batches: %w", err)
	}
	result := &LifecycleResult{AsOf: asOf, Started: started, Completed: completed}

	s.metrics.RecordBatchTransitions(string(models.BatchStatusOngoing), started)
	s.metrics.RecordBatchTransitions(string(models.BatchStatusCompleted), completed)
	if started+completed > 0 {
		s.effects.record(ctx, models.Scope{}, models.AuditActionBatchLifecycleRun, batchResource, asOf.Format(dateLayout), nil, result)
		s.effects.invalidateReports(ctx)
	}
	s.logger.Info("batch lifecycle pass complete",
		zap.Time("as_of", asOf), zap.Int64("started", started), zap.Int64("completed", completed))
	return result, nil
}
