package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-wizard/internal/dto"
	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-wizard/pkg/errors"
)

type enrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ExistsActiveForDocument(ctx context.Context, periodID, document, excludeID string) (bool, error)
	Create(ctx context.Context, payload dto.EnrollmentPayload) (*models.Enrollment, error)
	Update(ctx context.Context, id string, payload dto.EnrollmentPayload) (*models.Enrollment, error)
}

type periodReader interface {
	FindPeriod(ctx context.Context, id string) (*models.AcademicPeriod, error)
}

// EnrollmentService is the enrollment create and update operation the wizard
// submits to.
type EnrollmentService struct {
	repo      enrollmentRepository
	periods   periodReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, periods periodReader, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, periods: periods, validator: validate, logger: logger}
}

// Create registers a new enrollment.
func (s *EnrollmentService) Create(ctx context.Context, payload dto.EnrollmentPayload) (*dto.EnrollmentReceipt, error) {
	payload = normalizePayload(payload)
	if err := s.check(ctx, payload, ""); err != nil {
		return nil, err
	}
	enrollment, err := s.repo.Create(ctx, payload)
	if err != nil {
		return nil, translateWriteError(err, "failed to create enrollment")
	}
	s.logger.Info("enrollment created", zap.String("enrollment_id", enrollment.ID), zap.String("period_id", enrollment.AcademicPeriodID))
	return receipt(enrollment), nil
}

// Update replaces the data of an existing enrollment.
func (s *EnrollmentService) Update(ctx context.Context, id string, payload dto.EnrollmentPayload) (*dto.EnrollmentReceipt, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	payload = normalizePayload(payload)
	if err := s.check(ctx, payload, id); err != nil {
		return nil, err
	}
	enrollment, err := s.repo.Update(ctx, id, payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, translateWriteError(err, "failed to update enrollment")
	}
	s.logger.Info("enrollment updated", zap.String("enrollment_id", enrollment.ID))
	return receipt(enrollment), nil
}

func (s *EnrollmentService) check(ctx context.Context, payload dto.EnrollmentPayload, excludeID string) error {
	if err := s.validator.Struct(payload); err != nil {
		return appErrors.WithDetails(
			appErrors.Wrap(err, appErrors.ErrUnprocessable.Code, appErrors.ErrUnprocessable.Status, "invalid enrollment payload"),
			payloadIssues(err),
		)
	}

	period, err := s.periods.FindPeriod(ctx, payload.Billing.AcademicPeriodID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidBillingPeriod, "academic period not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic period")
	}
	if !period.IsOpen {
		return appErrors.Clone(appErrors.ErrInvalidBillingPeriod, "")
	}

	if doc := payload.Student.DocumentNumber; doc != "" {
		exists, err := s.repo.ExistsActiveForDocument(ctx, period.ID, doc, excludeID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollments")
		}
		if exists {
			return appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
		}
	}
	return nil
}

// translateWriteError maps constraint violations reported by postgres.
func translateWriteError(err error, message string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return appErrors.Wrap(err, appErrors.ErrDuplicateEnrollment.Code, appErrors.ErrDuplicateEnrollment.Status, appErrors.ErrDuplicateEnrollment.Message)
		case "23503":
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "referenced catalog entry does not exist")
		}
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// normalizePayload stores documents as digits and e-mails trimmed.
func normalizePayload(p dto.EnrollmentPayload) dto.EnrollmentPayload {
	p.Student.DocumentNumber = CleanDocument(p.Student.DocumentNumber)
	p.Student.Email = strings.TrimSpace(p.Student.Email)
	guardians := make([]dto.GuardianPayload, len(p.Responsibles))
	for i, g := range p.Responsibles {
		g.DocumentNumber = CleanDocument(g.DocumentNumber)
		g.Email = strings.TrimSpace(g.Email)
		guardians[i] = g
	}
	p.Responsibles = guardians
	return p
}

func payloadIssues(err error) []models.FieldIssue {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	issues := make([]models.FieldIssue, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		issues = append(issues, models.FieldIssue{Field: ns, Rule: fe.Tag(), Message: fe.Error()})
	}
	return issues
}

func receipt(e *models.Enrollment) *dto.EnrollmentReceipt {
	return &dto.EnrollmentReceipt{
		EnrollmentID: e.ID,
		StudentID:    e.StudentID,
		Status:       string(e.Status),
		CreatedAt:    e.CreatedAt,
	}
}
