package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-wizard/internal/dto"
	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-wizard/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	active      map[string]bool
	created     *dto.EnrollmentPayload
	updated     *dto.EnrollmentPayload
	excluded    string
	writeErr    error
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) ExistsActiveForDocument(ctx context.Context, periodID, document, excludeID string) (bool, error) {
	m.excluded = excludeID
	return m.active[periodID+"|"+document], nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, payload dto.EnrollmentPayload) (*models.Enrollment, error) {
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	m.created = &payload
	return &models.Enrollment{
		ID:               "enr-new",
		StudentID:        "stu-new",
		AcademicPeriodID: payload.Billing.AcademicPeriodID,
		Status:           models.EnrollmentStatusActive,
		CreatedAt:        time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (m *mockEnrollmentRepo) Update(ctx context.Context, id string, payload dto.EnrollmentPayload) (*models.Enrollment, error) {
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	m.updated = &payload
	e := m.enrollments[id]
	return &e, nil
}

type mockPeriodReader struct {
	periods map[string]models.AcademicPeriod
}

func (m *mockPeriodReader) FindPeriod(ctx context.Context, id string) (*models.AcademicPeriod, error) {
	p, ok := m.periods[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func newEnrollmentServiceFixture() (*EnrollmentService, *mockEnrollmentRepo) {
	repo := &mockEnrollmentRepo{
		enrollments: map[string]models.Enrollment{
			"enr-1": {ID: "enr-1", StudentID: "stu-1", Status: models.EnrollmentStatusActive},
		},
		active: map[string]bool{},
	}
	periods := &mockPeriodReader{periods: map[string]models.AcademicPeriod{
		"period-2026": {ID: "period-2026", IsOpen: true},
		"period-2024": {ID: "period-2024", IsOpen: false},
	}}
	return NewEnrollmentService(repo, periods, nil, zap.NewNop()), repo
}

func TestEnrollmentCreateNormalisesAndPersists(t *testing.T) {
	svc, repo := newEnrollmentServiceFixture()
	payload := AssembleEnrollment(completeState())
	payload.Student.Email = "  ana@example.com "

	receipt, err := svc.Create(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "enr-new", receipt.EnrollmentID)
	assert.Equal(t, "ACTIVE", receipt.Status)

	require.NotNil(t, repo.created)
	assert.Equal(t, "12345678900", repo.created.Student.DocumentNumber)
	assert.Equal(t, "ana@example.com", repo.created.Student.Email)
	assert.Equal(t, "98765432100", repo.created.Responsibles[0].DocumentNumber)
}

func TestEnrollmentCreateRejectsInvalidPayload(t *testing.T) {
	svc, _ := newEnrollmentServiceFixture()
	payload := AssembleEnrollment(completeState())
	payload.Student.Name = ""

	_, err := svc.Create(context.Background(), payload)
	require.ErrorIs(t, err, appErrors.ErrUnprocessable)
	issues, ok := appErrors.FromError(err).Details.([]models.FieldIssue)
	require.True(t, ok)
	assert.Equal(t, "Student.Name", issues[0].Field)
}

func TestEnrollmentCreateChecksPeriod(t *testing.T) {
	svc, _ := newEnrollmentServiceFixture()

	payload := AssembleEnrollment(completeState())
	payload.Billing.AcademicPeriodID = "period-2024"
	_, err := svc.Create(context.Background(), payload)
	assert.ErrorIs(t, err, appErrors.ErrInvalidBillingPeriod)

	payload.Billing.AcademicPeriodID = "period-1999"
	_, err = svc.Create(context.Background(), payload)
	assert.ErrorIs(t, err, appErrors.ErrInvalidBillingPeriod)
}

func TestEnrollmentCreateRejectsDuplicate(t *testing.T) {
	svc, repo := newEnrollmentServiceFixture()
	repo.active["period-2026|12345678900"] = true

	_, err := svc.Create(context.Background(), AssembleEnrollment(completeState()))
	assert.ErrorIs(t, err, appErrors.ErrDuplicateEnrollment)
	assert.Nil(t, repo.created)
}

func TestEnrollmentCreateTranslatesConstraintViolations(t *testing.T) {
	svc, repo := newEnrollmentServiceFixture()

	repo.writeErr = &pq.Error{Code: "23505"}
	_, err := svc.Create(context.Background(), AssembleEnrollment(completeState()))
	assert.ErrorIs(t, err, appErrors.ErrDuplicateEnrollment)

	repo.writeErr = &pq.Error{Code: "23503"}
	_, err = svc.Create(context.Background(), AssembleEnrollment(completeState()))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	repo.writeErr = errors.New("disk full")
	_, err = svc.Create(context.Background(), AssembleEnrollment(completeState()))
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestEnrollmentUpdate(t *testing.T) {
	svc, repo := newEnrollmentServiceFixture()

	_, err := svc.Update(context.Background(), "missing", AssembleEnrollment(completeState()))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	receipt, err := svc.Update(context.Background(), "enr-1", AssembleEnrollment(completeState()))
	require.NoError(t, err)
	assert.Equal(t, "enr-1", receipt.EnrollmentID)
	assert.Equal(t, "enr-1", repo.excluded, "the enrollment being edited is not its own duplicate")
	require.NotNil(t, repo.updated)
}
