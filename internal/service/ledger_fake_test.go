package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/training-ledger-api/internal/models"
	"github.com/noah-isme/training-ledger-api/internal/repository"
)

// memLedger is an in-memory stand-in for the ledger tables. A single mutex plays the role of
// the batch row lock so concurrent tests exercise the same check-then-insert contract.
type memLedger struct {
	mu          sync.Mutex
	centers     map[string]*models.TrainingCenter
	courses     map[string]*models.Course
	students    map[string]*models.Student
	batches     map[string]*models.Batch
	enrollments []*models.Enrollment
	fees        map[string]*models.Fee
	audits      []*models.AuditLog
}

func newMemLedger() *memLedger {
	return &memLedger{
		centers:  map[string]*models.TrainingCenter{},
		courses:  map[string]*models.Course{},
		students: map[string]*models.Student{},
		batches:  map[string]*models.Batch{},
		fees:     map[string]*models.Fee{},
	}
}

func (l *memLedger) addCenter(id string) {
	l.centers[id] = &models.TrainingCenter{ID: id, Code: id, Name: "Center " + id, Status: models.TrainingCenterStatusActive}
}

func (l *memLedger) addCourse(id string, fee int64) {
	l.courses[id] = &models.Course{ID: id, Code: id, Name: "Course " + id, CourseFee: fee, Status: models.CourseStatusActive}
}

func (l *memLedger) addStudent(id, centerID string) {
	student := &models.Student{ID: id, EnrollmentNo: "EN-" + id, FullName: "Student " + id, Status: models.StudentStatusActive}
	if centerID != "" {
		center := centerID
		student.TrainingCenterID = &center
	}
	l.students[id] = student
}

func (l *memLedger) addBatch(id, courseID, centerID string, capacity int, status models.BatchStatus) {
	l.batches[id] = &models.Batch{
		ID:               id,
		Code:             "B-" + id,
		Name:             "Batch " + id,
		CourseID:         courseID,
		TrainingCenterID: centerID,
		MaxCapacity:      capacity,
		StartDate:        time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Status:           status,
	}
}

func (l *memLedger) activeCount(batchID string) int {
	count := 0
	for _, e := range l.enrollments {
		if e.BatchID == batchID && e.Status == models.EnrollmentStatusActive {
			count++
		}
	}
	return count
}

func (l *memLedger) activeEnrollments(batchID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.activeCount(batchID)
}

func (l *memLedger) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.audits = append(l.audits, log)
	return nil
}

func (l *memLedger) auditActions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	actions := make([]string, 0, len(l.audits))
	for _, a := range l.audits {
		actions = append(actions, a.Action)
	}
	return actions
}

type memCenters struct{ *memLedger }

func (m memCenters) FindByID(ctx context.Context, id string) (*models.TrainingCenter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	center, ok := m.centers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *center
	return &copied, nil
}

type memCourses struct{ *memLedger }

func (m memCourses) FindByID(ctx context.Context, id string) (*models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	course, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *course
	return &copied, nil
}

func (m memCourses) SoftDelete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	course, ok := m.courses[id]
	if !ok {
		return false, sql.ErrNoRows
	}
	if course.Status == models.CourseStatusDeleted {
		return false, nil
	}
	for _, batch := range m.batches {
		if batch.CourseID == id && batch.Status != models.BatchStatusDeleted && m.activeCount(batch.ID) > 0 {
			return false, repository.ErrHasDependents
		}
	}
	course.Status = models.CourseStatusDeleted
	return true, nil
}

type memStudents struct{ *memLedger }

func (m memStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	student, ok := m.students[id]
	if !ok || student.Status == models.StudentStatusDeleted {
		return nil, sql.ErrNoRows
	}
	copied := *student
	return &copied, nil
}

func (m memStudents) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, student := range m.students {
		if student.UserID != nil && *student.UserID == userID && student.Status != models.StudentStatusDeleted {
			copied := *student
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

type memBatches struct{ *memLedger }

func (m memBatches) Create(ctx context.Context, batch *models.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if course, ok := m.courses[batch.CourseID]; ok && course.Status == models.CourseStatusDeleted {
		return repository.ErrCourseDeleted
	}
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	copied := *batch
	m.batches[batch.ID] = &copied
	return nil
}

func (m memBatches) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch, ok := m.batches[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *batch
	return &copied, nil
}

func (m memBatches) FindDetailByID(ctx context.Context, id string) (*models.BatchDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch, ok := m.batches[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.BatchDetail{Batch: *batch, ActiveEnrollments: m.activeCount(id)}, nil
}

func (m memBatches) List(ctx context.Context, filter models.BatchFilter) ([]models.BatchDetail, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := []models.BatchDetail{}
	for _, batch := range m.batches {
		if filter.TrainingCenterID != "" && batch.TrainingCenterID != filter.TrainingCenterID {
			continue
		}
		if filter.Status != "" && batch.Status != filter.Status {
			continue
		}
		if filter.Status == "" && !filter.IncludeDeleted && batch.Status == models.BatchStatusDeleted {
			continue
		}
		items = append(items, models.BatchDetail{Batch: *batch, ActiveEnrollments: m.activeCount(batch.ID)})
	}
	return items, len(items), nil
}

func (m memBatches) Update(ctx context.Context, params repository.UpdateBatchParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch, ok := m.batches[params.ID]
	if !ok || batch.Status == models.BatchStatusDeleted {
		return sql.ErrNoRows
	}
	if params.MaxCapacity < m.activeCount(params.ID) {
		return repository.ErrCapacityBelow
	}
	batch.Name = params.Name
	batch.MaxCapacity = params.MaxCapacity
	batch.StartDate = params.StartDate
	batch.EndDate = params.EndDate
	return nil
}

func (m memBatches) UpdateStatus(ctx context.Context, id string, from, to models.BatchStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch, ok := m.batches[id]
	if !ok || batch.Status != from {
		return sql.ErrNoRows
	}
	batch.Status = to
	return nil
}

func (m memBatches) SoftDelete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch, ok := m.batches[id]
	if !ok {
		return false, sql.ErrNoRows
	}
	if batch.Status == models.BatchStatusDeleted {
		return false, nil
	}
	if m.activeCount(id) > 0 {
		return false, repository.ErrHasDependents
	}
	now := time.Now().UTC()
	batch.Status = models.BatchStatusDeleted
	batch.DeletedAt = &now
	return true, nil
}

type memEnrollments struct{ *memLedger }

func (m memEnrollments) Enroll(ctx context.Context, params repository.EnrollParams) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch, ok := m.batches[params.BatchID]
	if !ok || batch.Status == models.BatchStatusDeleted {
		return nil, sql.ErrNoRows
	}
	if !batch.Status.AcceptsEnrollments() {
		return nil, repository.ErrBatchNotOpen
	}
	if course, ok := m.courses[batch.CourseID]; ok && course.Status == models.CourseStatusDeleted {
		return nil, repository.ErrCourseDeleted
	}
	for _, e := range m.enrollments {
		if e.BatchID == params.BatchID && e.StudentID == params.StudentID && e.Status == models.EnrollmentStatusActive {
			return nil, repository.ErrAlreadyEnrolled
		}
	}
	if m.activeCount(params.BatchID) >= batch.MaxCapacity {
		return nil, repository.ErrCapacityExceeded
	}
	if params.BindCenterID != "" {
		student := m.students[params.StudentID]
		if student.TrainingCenterID != nil && *student.TrainingCenterID != params.BindCenterID {
			return nil, repository.ErrCenterMismatch
		}
		center := params.BindCenterID
		student.TrainingCenterID = &center
	}
	now := time.Now().UTC()
	enrollment := &models.Enrollment{
		ID:         uuid.NewString(),
		StudentID:  params.StudentID,
		BatchID:    params.BatchID,
		Status:     models.EnrollmentStatusActive,
		EnrolledAt: now,
		EnrolledBy: params.EnrolledBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.enrollments = append(m.enrollments, enrollment)
	copied := *enrollment
	return &copied, nil
}

func (m memEnrollments) Unenroll(ctx context.Context, studentID, batchID, removedBy string) (*models.Enrollment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.Enrollment
	for _, e := range m.enrollments {
		if e.BatchID != batchID || e.StudentID != studentID {
			continue
		}
		if e.Status == models.EnrollmentStatusActive {
			now := time.Now().UTC()
			e.Status = models.EnrollmentStatusRemoved
			e.RemovedAt = &now
			e.RemovedBy = &removedBy
			copied := *e
			return &copied, true, nil
		}
		latest = e
	}
	if latest == nil {
		return nil, false, sql.ErrNoRows
	}
	copied := *latest
	return &copied, false, nil
}

func (m memEnrollments) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := []models.EnrollmentDetail{}
	for _, e := range m.enrollments {
		batch := m.batches[e.BatchID]
		if filter.TrainingCenterID != "" && batch.TrainingCenterID != filter.TrainingCenterID {
			continue
		}
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.BatchID != "" && e.BatchID != filter.BatchID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		items = append(items, models.EnrollmentDetail{Enrollment: *e, BatchCode: batch.Code, TrainingCenterID: batch.TrainingCenterID})
	}
	return items, len(items), nil
}

type memFees struct{ *memLedger }

func (m memFees) Create(ctx context.Context, fee *models.Fee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	fee.ID = uuid.NewString()
	fee.Status = models.FeeStatusPending
	fee.CreatedAt = now
	fee.UpdatedAt = now
	copied := *fee
	m.fees[fee.ID] = &copied
	return nil
}

func (m memFees) detail(fee *models.Fee) *models.FeeDetail {
	detail := &models.FeeDetail{Fee: *fee}
	if student, ok := m.students[fee.StudentID]; ok {
		detail.StudentName = student.FullName
		detail.TrainingCenterID = student.TrainingCenterID
	}
	return detail
}

func (m memFees) FindByID(ctx context.Context, id string) (*models.FeeDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fee, ok := m.fees[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return m.detail(fee), nil
}

func (m memFees) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeDetail, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := []models.FeeDetail{}
	for _, fee := range m.fees {
		detail := m.detail(fee)
		if filter.StudentID != "" && fee.StudentID != filter.StudentID {
			continue
		}
		if filter.TrainingCenterID != "" && detail.CenterID() != filter.TrainingCenterID {
			continue
		}
		items = append(items, *detail)
	}
	return items, len(items), nil
}

func (m memFees) MarkPaid(ctx context.Context, id string, paidDate time.Time, receipt *string) (*models.Fee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fee, ok := m.fees[id]
	if !ok || fee.Status != models.FeeStatusPending {
		return nil, sql.ErrNoRows
	}
	fee.Status = models.FeeStatusPaid
	fee.PaidDate = &paidDate
	fee.ReceiptNumber = receipt
	copied := *fee
	return &copied, nil
}

func (m memFees) Review(ctx context.Context, params repository.ReviewFeeParams) (*models.Fee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fee, ok := m.fees[params.ID]
	if !ok || fee.Status.Terminal() {
		return nil, sql.ErrNoRows
	}
	reviewer := params.ReviewerID
	reviewedAt := params.ReviewedAt
	fee.Status = params.Status
	fee.ApprovedBy = &reviewer
	fee.ApprovedDate = &reviewedAt
	fee.RejectionReason = params.Reason
	copied := *fee
	return &copied, nil
}

var adminScope = models.Scope{PrincipalID: "admin-1", Role: models.RoleAdmin}

func operatorScope(centerID string) models.Scope {
	return models.Scope{PrincipalID: "op-" + centerID, Role: models.RoleOperator, CenterID: centerID}
}

func studentScope(studentID, centerID string) models.Scope {
	return models.Scope{PrincipalID: "user-" + studentID, Role: models.RoleStudent, StudentID: studentID, CenterID: centerID}
}
