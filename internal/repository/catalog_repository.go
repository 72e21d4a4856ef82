package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
)

// CatalogRepository reads academic periods, courses, levels, classes,
// contracts and scholarships.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListPeriods returns every academic period, newest first.
func (r *CatalogRepository) ListPeriods(ctx context.Context) ([]models.AcademicPeriod, error) {
	const query = `SELECT id, name, segment, is_open FROM academic_periods ORDER BY name DESC`
	var periods []models.AcademicPeriod
	if err := r.db.SelectContext(ctx, &periods, query); err != nil {
		return nil, fmt.Errorf("list academic periods: %w", err)
	}
	return periods, nil
}

// FindPeriod returns one academic period.
func (r *CatalogRepository) FindPeriod(ctx context.Context, id string) (*models.AcademicPeriod, error) {
	const query = `SELECT id, name, segment, is_open FROM academic_periods WHERE id = $1`
	var period models.AcademicPeriod
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// ListCourses returns the courses of a period with their levels nested. The
// level's contract is the one assigned for that period.
func (r *CatalogRepository) ListCourses(ctx context.Context, periodID string) ([]models.Course, error) {
	const courseQuery = `SELECT id, period_id, name FROM courses WHERE period_id = $1 ORDER BY name`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, courseQuery, periodID); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	const levelQuery = `SELECT l.id, l.course_id, l.name, lp.contract_id
FROM levels l
JOIN courses c ON c.id = l.course_id
LEFT JOIN level_periods lp ON lp.level_id = l.id AND lp.period_id = c.period_id
WHERE c.period_id = $1
ORDER BY l.name`
	var levels []models.Level
	if err := r.db.SelectContext(ctx, &levels, levelQuery, periodID); err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}

	index := make(map[string]int, len(courses))
	for i := range courses {
		courses[i].Levels = []models.Level{}
		index[courses[i].ID] = i
	}
	for _, level := range levels {
		if i, ok := index[level.CourseID]; ok {
			courses[i].Levels = append(courses[i].Levels, level)
		}
	}
	return courses, nil
}

// ListClasses returns the classes of a level in a period.
func (r *CatalogRepository) ListClasses(ctx context.Context, periodID, levelID string) ([]models.ClassGroup, error) {
	const query = `SELECT id, level_id, period_id, name FROM class_groups WHERE period_id = $1 AND level_id = $2 ORDER BY name`
	var classes []models.ClassGroup
	if err := r.db.SelectContext(ctx, &classes, query, periodID, levelID); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// FindContract returns one contract.
func (r *CatalogRepository) FindContract(ctx context.Context, id string) (*models.Contract, error) {
	const query = `SELECT id, name, monthly_fee, enrollment_fee, monthly_installments, enrollment_installments, payment_type
FROM contracts WHERE id = $1`
	var contract models.Contract
	if err := r.db.GetContext(ctx, &contract, query, id); err != nil {
		return nil, err
	}
	return &contract, nil
}

// ListScholarships returns active scholarships.
func (r *CatalogRepository) ListScholarships(ctx context.Context) ([]models.Scholarship, error) {
	const query = `SELECT id, name, monthly_percent, enrollment_percent, active FROM scholarships WHERE active = TRUE ORDER BY name`
	var scholarships []models.Scholarship
	if err := r.db.SelectContext(ctx, &scholarships, query); err != nil {
		return nil, fmt.Errorf("list scholarships: %w", err)
	}
	return scholarships, nil
}

// FindScholarship returns one scholarship.
func (r *CatalogRepository) FindScholarship(ctx context.Context, id string) (*models.Scholarship, error) {
	const query = `SELECT id, name, monthly_percent, enrollment_percent, active FROM scholarships WHERE id = $1`
	var scholarship models.Scholarship
	if err := r.db.GetContext(ctx, &scholarship, query, id); err != nil {
		return nil, err
	}
	return &scholarship, nil
}
