package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/training-ledger-api/internal/models"
)

type advancerStub struct {
	asOf      time.Time
	started   int64
	completed int64
	err       error
	calls     int
}

func (a *advancerStub) AdvanceByDate(ctx context.Context, asOf time.Time) (int64, int64, error) {
	a.calls++
	a.asOf = asOf
	return a.started, a.completed, a.err
}

func TestBatchLifecycleRun(t *testing.T) {
	repo := &advancerStub{started: 2, completed: 1}
	ledger := newMemLedger()
	svc := NewBatchLifecycleService(repo, ledger, nil, nil, "", nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 0, 5, 0, 0, time.UTC) }

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Started)
	assert.Equal(t, int64(1), result.Completed)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), repo.asOf)
	assert.Equal(t, []string{models.AuditActionBatchLifecycleRun}, ledger.auditActions())
}

func TestBatchLifecycleRunWithoutChangesSkipsAudit(t *testing.T) {
	ledger := newMemLedger()
	svc := NewBatchLifecycleService(&advancerStub{}, ledger, nil, nil, "", nil)

	_, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ledger.auditActions())
}

func TestBatchLifecycleRunPropagatesErrors(t *testing.T) {
	svc := NewBatchLifecycleService(&advancerStub{err: errors.New("db down")}, nil, nil, nil, "", nil)

	_, err := svc.Run(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestBatchLifecycleStartStop(t *testing.T) {
	svc := NewBatchLifecycleService(&advancerStub{}, nil, nil, nil, "*/1 * * * * *", nil)
	require.NoError(t, svc.Start(context.Background()))
	require.NoError(t, svc.Start(context.Background()))
	svc.Stop()
	svc.Stop()

	bad := NewBatchLifecycleService(&advancerStub{}, nil, nil, nil, "not a schedule", nil)
	assert.Error(t, bad.Start(context.Background()))
}
