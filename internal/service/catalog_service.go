package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-wizard/pkg/errors"
)

type catalogRepository interface {
	ListPeriods(ctx context.Context) ([]models.AcademicPeriod, error)
	FindPeriod(ctx context.Context, id string) (*models.AcademicPeriod, error)
	ListCourses(ctx context.Context, periodID string) ([]models.Course, error)
	ListClasses(ctx context.Context, periodID, levelID string) ([]models.ClassGroup, error)
	FindContract(ctx context.Context, id string) (*models.Contract, error)
	ListScholarships(ctx context.Context) ([]models.Scholarship, error)
	FindScholarship(ctx context.Context, id string) (*models.Scholarship, error)
}

// CatalogService reads the academic catalog through the cache.
type CatalogService struct {
	repo   catalogRepository
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewCatalogService constructs CatalogService. cache may be nil.
func NewCatalogService(repo catalogRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Periods lists academic periods.
func (s *CatalogService) Periods(ctx context.Context) ([]models.AcademicPeriod, error) {
	periods, err := remember(ctx, s.cache, "catalog:periods", s.ttl, s.repo.ListPeriods)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list academic periods")
	}
	return periods, nil
}

// Period loads one academic period.
func (s *CatalogService) Period(ctx context.Context, id string) (*models.AcademicPeriod, error) {
	period, err := s.repo.FindPeriod(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic period")
	}
	return period, nil
}

// Courses lists the courses of a period with their levels nested.
func (s *CatalogService) Courses(ctx context.Context, periodID string) ([]models.Course, error) {
	key := fmt.Sprintf("catalog:courses:%s", periodID)
	courses, err := remember(ctx, s.cache, key, s.ttl, func(ctx context.Context) ([]models.Course, error) {
		return s.repo.ListCourses(ctx, periodID)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// Classes lists the classes of a level within a period.
func (s *CatalogService) Classes(ctx context.Context, periodID, levelID string) ([]models.ClassGroup, error) {
	key := fmt.Sprintf("catalog:classes:%s:%s", periodID, levelID)
	classes, err := remember(ctx, s.cache, key, s.ttl, func(ctx context.Context) ([]models.ClassGroup, error) {
		return s.repo.ListClasses(ctx, periodID, levelID)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}

// Contract loads a fee template.
func (s *CatalogService) Contract(ctx context.Context, id string) (*models.Contract, error) {
	key := fmt.Sprintf("catalog:contract:%s", id)
	contract, err := remember(ctx, s.cache, key, s.ttl, func(ctx context.Context) (*models.Contract, error) {
		return s.repo.FindContract(ctx, id)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contract not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract")
	}
	return contract, nil
}

// Scholarships lists active scholarships.
func (s *CatalogService) Scholarships(ctx context.Context) ([]models.Scholarship, error) {
	scholarships, err := remember(ctx, s.cache, "catalog:scholarships", s.ttl, s.repo.ListScholarships)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scholarships")
	}
	return scholarships, nil
}

// Scholarship loads one active scholarship.
func (s *CatalogService) Scholarship(ctx context.Context, id string) (*models.Scholarship, error) {
	scholarship, err := s.repo.FindScholarship(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "scholarship not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scholarship")
	}
	if !scholarship.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "scholarship is not active")
	}
	return scholarship, nil
}

// Snapshot fetches the catalog slices the selection enables. Lookup failures
// yield empty slices and degraded=true instead of an error.
func (s *CatalogService) Snapshot(ctx context.Context, tag SelectionTag) (CatalogSnapshot, bool) {
	snapshot := CatalogSnapshot{Tag: tag}
	degraded := false

	periods, err := s.Periods(ctx)
	if err != nil {
		s.logger.Warn("catalog periods unavailable", zap.Error(err))
		degraded = true
	}
	snapshot.Periods = periods

	if tag.CoursesEnabled() {
		courses, err := s.Courses(ctx, tag.PeriodID)
		if err != nil {
			s.logger.Warn("catalog courses unavailable", zap.String("period_id", tag.PeriodID), zap.Error(err))
			degraded = true
		}
		snapshot.Courses = courses
	}
	if tag.ClassesEnabled() {
		classes, err := s.Classes(ctx, tag.PeriodID, tag.LevelID)
		if err != nil {
			s.logger.Warn("catalog classes unavailable", zap.String("level_id", tag.LevelID), zap.Error(err))
			degraded = true
		}
		snapshot.Classes = classes
	}
	return snapshot, degraded
}
