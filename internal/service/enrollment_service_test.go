package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/training-ledger-api/internal/models"
	appErrors "github.com/noah-isme/training-ledger-api/pkg/errors"
)

func newEnrollmentFixture(t *testing.T) (*memLedger, *EnrollmentService) {
	t.Helper()
	ledger := newMemLedger()
	ledger.addCenter("center-a")
	ledger.addCenter("center-b")
	ledger.addCourse("course-1", 5000)
	svc := NewEnrollmentService(memEnrollments{ledger}, memBatches{ledger}, memStudents{ledger}, ledger, nil, nil, nil)
	return ledger, svc
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	ledger, svc := newEnrollmentFixture(t)
	ledger.addBatch("batch-1", "course-1", "center-a", 2, models.BatchStatusUpcoming)
	ledger.addStudent("s-1", "center-a")

	enrollment, err := svc.Enroll(context.Background(), operatorScope("center-a"), "batch-1", "s-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.Equal(t, "op-center-a", enrollment.EnrolledBy)
	assert.Equal(t, 1, ledger.activeEnrollments("batch-1"))
	assert.Equal(t, []string{models.AuditActionEnroll}, ledger.auditActions())

	_, err = svc.Enroll(context.Background(), operatorScope("center-a"), "batch-1", "s-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyEnrolled))
}

func TestEnrollmentServiceRejectsForeignCenterOperator(t *testing.T) {
	ledger, svc := newEnrollmentFixture(t)
	ledger.addBatch("batch-b", "course-1", "center-b", 5, models.BatchStatusUpcoming)
	ledger.addStudent("s-1", "center-b")

	_, err := svc.Enroll(context.Background(), operatorScope("center-a"), "batch-b", "s-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrPermissionDenied))
	assert.Equal(t, 0, ledger.activeEnrollments("batch-b"))
}

func TestEnrollmentServiceRejectsStudentPrincipal(t *testing.T) {
	ledger, svc := newEnrollmentFixture(t)
	ledger.addBatch("batch-1", "course-1", "center-a", 5, models.BatchStatusUpcoming)
	ledger.addStudent("s-1", "center-a")

	_, err := svc.Enroll(context.Background(), studentScope("s-1", "center-a"), "batch-1", "s-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrPermissionDenied))
}

func TestEnrollmentServiceBatchStates(t *testing.T) {
	cases := []struct {
		status models.BatchStatus
		want   *appErrors.Error
	}{
		{models.BatchStatusOngoing, nil},
		{models.BatchStatusCompleted, appErrors.ErrValidation},
		{models.BatchStatusCancelled, appErrors.ErrValidation},
		{models.BatchStatusSuspended, appErrors.ErrValidation},
		{models.BatchStatusDeleted, appErrors.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			ledger, svc := newEnrollmentFixture(t)
			ledger.addBatch("batch-1", "course-1", "center-a", 5, tc.status)
			ledger.addStudent("s-1", "center-a")

			_, err := svc.Enroll(context.Background(), adminScope, "batch-1", "s-1")
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, appErrors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestEnrollmentServiceStudentCenterRules(t *testing.T) {
	ledger, svc := newEnrollmentFixture(t)
	ledger.addBatch("batch-1", "course-1", "center-a", 5, models.BatchStatusUpcoming)
	ledger.addStudent("s-other", "center-b")
	ledger.addStudent("s-new", "")
	ledger.addStudent("s-dropped", "center-a")
	ledger.students["s-dropped"].Status = models.StudentStatusDropped

	_, err := svc.Enroll(context.Background(), adminScope, "batch-1", "s-other")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Enroll(context.Background(), adminScope, "batch-1", "s-dropped")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Enroll(context.Background(), adminScope, "batch-1", "s-new")
	require.NoError(t, err)
	require.NotNil(t, ledger.students["s-new"].TrainingCenterID)
	assert.Equal(t, "center-a", *ledger.students["s-new"].TrainingCenterID)

	_, err = svc.Enroll(context.Background(), adminScope, "batch-1", "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestEnrollmentServiceConcurrentCapacity(t *testing.T) {
	ledger, svc := newEnrollmentFixture(t)
	ledger.addBatch("batch-1", "course-1", "center-a", 2, models.BatchStatusUpcoming)
	for i := 1; i <= 3; i++ {
		ledger.addStudent(fmt.Sprintf("s-%d", i), "center-a")
	}

	errs := make([]error, 3)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Enroll(context.Background(), operatorScope("center-a"), "batch-1", fmt.Sprintf("s-%d", i+1))
		}(i)
	}
	wg.Wait()

	successes, exceeded := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case appErrors.Is(err, appErrors.ErrCapacityExceeded):
			exceeded++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 2, successes)
	assert.Equal(t, 1, exceeded)
	assert.Equal(t, 2, ledger.activeEnrollments("batch-1"))
}

func TestEnrollmentServiceConcurrentDuplicate(t *testing.T) {
	ledger, svc := newEnrollmentFixture(t)
	ledger.addBatch("batch-1", "course-1", "center-a", 10, models.BatchStatusOngoing)
	ledger.addStudent("s-1", "center-a")

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Enroll(context.Background(), adminScope, "batch-1", "s-1")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyEnrolled), "got %v", err)
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, ledger.activeEnrollments("batch-1"))
}

func TestEnrollmentServiceUnenrollIsIdempotent(t *testing.T) {
	ledger, svc := newEnrollmentFixture(t)
	ledger.addBatch("batch-1", "course-1", "center-a", 1, models.BatchStatusUpcoming)
	ledger.addStudent("s-1", "center-a")
	ledger.addStudent("s-2", "center-a")
	ctx := context.Background()

	_, err := svc.Enroll(ctx, adminScope, "batch-1", "s-1")
	require.NoError(t, err)

	removed, err := svc.Unenroll(ctx, adminScope, "batch-1", "s-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusRemoved, removed.Status)
	require.NotNil(t, removed.RemovedAt)

	again, err := svc.Unenroll(ctx, adminScope, "batch-1", "s-1")
	require.NoError(t, err)
	assert.Equal(t, removed.ID, again.ID)
	assert.Equal(t, []string{models.AuditActionEnroll, models.AuditActionUnenroll}, ledger.auditActions())

	_, err = svc.Unenroll(ctx, adminScope, "batch-1", "s-2")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	// The freed seat is available again.
	_, err = svc.Enroll(ctx, adminScope, "batch-1", "s-2")
	assert.NoError(t, err)
}

func TestEnrollmentServiceListScopesOperators(t *testing.T) {
	ledger, svc := newEnrollmentFixture(t)
	ledger.addBatch("batch-a", "course-1", "center-a", 5, models.BatchStatusUpcoming)
	ledger.addBatch("batch-b", "course-1", "center-b", 5, models.BatchStatusUpcoming)
	ledger.addStudent("s-a", "center-a")
	ledger.addStudent("s-b", "center-b")
	ctx := context.Background()
	_, err := svc.Enroll(ctx, adminScope, "batch-a", "s-a")
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, adminScope, "batch-b", "s-b")
	require.NoError(t, err)

	items, page, err := svc.ListEnrollments(ctx, operatorScope("center-a"), models.EnrollmentFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "s-a", items[0].StudentID)
	assert.Equal(t, 1, page.TotalCount)

	_, _, err = svc.ListEnrollments(ctx, operatorScope("center-a"), models.EnrollmentFilter{TrainingCenterID: "center-b"})
	assert.True(t, appErrors.Is(err, appErrors.ErrPermissionDenied))

	items, _, err = svc.ListEnrollments(ctx, studentScope("s-b", "center-b"), models.EnrollmentFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "batch-b", items[0].BatchID)
}

func TestEnrollmentServiceRecordsOutcomeMetrics(t *testing.T) {
	ledger := newMemLedger()
	ledger.addCourse("course-1", 100)
	ledger.addBatch("batch-1", "course-1", "center-a", 1, models.BatchStatusUpcoming)
	ledger.addStudent("s-1", "center-a")
	ledger.addStudent("s-2", "center-a")
	metrics := NewMetricsService()
	svc := NewEnrollmentService(memEnrollments{ledger}, memBatches{ledger}, memStudents{ledger}, nil, nil, metrics, nil)

	_, err := svc.Enroll(context.Background(), adminScope, "batch-1", "s-1")
	require.NoError(t, err)
	_, err = svc.Enroll(context.Background(), adminScope, "batch-1", "s-2")
	require.Error(t, err)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `ledger_enrollments_total{outcome="success"} 1`)
	assert.Contains(t, rec.Body.String(), `ledger_enrollments_total{outcome="CAPACITY_EXCEEDED"} 1`)
}
