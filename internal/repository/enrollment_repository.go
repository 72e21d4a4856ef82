package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-enrollment-wizard/internal/dto"
	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
)

// EnrollmentRepository persists submitted enrollments and everything attached to them.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID returns an enrollment.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, academic_period_id, course_id, level_id, class_id, contract_id, scholarship_id, status, created_at, updated_at
FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ExistsActiveForDocument reports whether a student with the cleaned document
// already has an active enrollment in the period, ignoring excludeID.
func (r *EnrollmentRepository) ExistsActiveForDocument(ctx context.Context, periodID, document, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (
	SELECT 1 FROM enrollments e
	JOIN people p ON p.id = e.student_id
	WHERE e.academic_period_id = $1 AND p.document_number = $2 AND e.status = 'ACTIVE' AND e.id <> $3
)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, periodID, document, excludeID); err != nil {
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return exists, nil
}

// Create stores a new enrollment in a single transaction.
func (r *EnrollmentRepository) Create(ctx context.Context, payload dto.EnrollmentPayload) (enrollment *models.Enrollment, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	studentID, err := upsertPerson(ctx, tx, studentPerson(payload.Student))
	if err != nil {
		return nil, fmt.Errorf("store student: %w", err)
	}

	now := time.Now().UTC()
	enrollment = &models.Enrollment{
		ID:               uuid.NewString(),
		StudentID:        studentID,
		AcademicPeriodID: payload.Billing.AcademicPeriodID,
		CourseID:         payload.Billing.CourseID,
		LevelID:          payload.Billing.LevelID,
		ClassID:          payload.Billing.ClassID,
		ContractID:       payload.Billing.ContractID,
		ScholarshipID:    payload.Billing.ScholarshipID,
		Status:           models.EnrollmentStatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	const insertQuery = `INSERT INTO enrollments (id, student_id, academic_period_id, course_id, level_id, class_id, contract_id, scholarship_id, status, created_at, updated_at)
VALUES (:id, :student_id, :academic_period_id, :course_id, :level_id, :class_id, :contract_id, :scholarship_id, :status, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, enrollment); err != nil {
		return nil, fmt.Errorf("insert enrollment: %w", err)
	}
	if err = writeEnrollmentDetails(ctx, tx, enrollment.ID, payload); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enrollment: %w", err)
	}
	return enrollment, nil
}

// Update replaces the details of an existing enrollment in a single transaction.
func (r *EnrollmentRepository) Update(ctx context.Context, id string, payload dto.EnrollmentPayload) (enrollment *models.Enrollment, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.Enrollment
	const lockQuery = `SELECT id, student_id, academic_period_id, course_id, level_id, class_id, contract_id, scholarship_id, status, created_at, updated_at
FROM enrollments WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockQuery, id); err != nil {
		return nil, err
	}

	studentID, err := upsertPerson(ctx, tx, studentPerson(payload.Student))
	if err != nil {
		return nil, fmt.Errorf("store student: %w", err)
	}

	current.StudentID = studentID
	current.AcademicPeriodID = payload.Billing.AcademicPeriodID
	current.CourseID = payload.Billing.CourseID
	current.LevelID = payload.Billing.LevelID
	current.ClassID = payload.Billing.ClassID
	current.ContractID = payload.Billing.ContractID
	current.ScholarshipID = payload.Billing.ScholarshipID
	current.UpdatedAt = time.Now().UTC()

	const updateQuery = `UPDATE enrollments SET student_id = :student_id, academic_period_id = :academic_period_id, course_id = :course_id,
level_id = :level_id, class_id = :class_id, contract_id = :contract_id, scholarship_id = :scholarship_id, updated_at = :updated_at
WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, updateQuery, &current); err != nil {
		return nil, fmt.Errorf("update enrollment: %w", err)
	}
	for _, table := range enrollmentDetailTables {
		if _, err = tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE enrollment_id = $1", table), id); err != nil {
			return nil, fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err = writeEnrollmentDetails(ctx, tx, id, payload); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enrollment: %w", err)
	}
	return &current, nil
}

// enrollmentDetailTables are rewritten wholesale on update.
var enrollmentDetailTables = []string{
	"enrollment_guardians",
	"enrollment_addresses",
	"enrollment_medical_infos",
	"enrollment_medications",
	"enrollment_emergency_contacts",
	"enrollment_billing_terms",
	"enrollment_discounts",
}

func writeEnrollmentDetails(ctx context.Context, tx *sqlx.Tx, enrollmentID string, payload dto.EnrollmentPayload) error {
	guardianIDs := make([]string, len(payload.Responsibles))
	for i, g := range payload.Responsibles {
		personID, err := upsertPerson(ctx, tx, guardianPerson(g))
		if err != nil {
			return fmt.Errorf("store guardian %d: %w", i, err)
		}
		guardianIDs[i] = personID
		const linkQuery = `INSERT INTO enrollment_guardians (enrollment_id, person_id, relationship, is_pedagogical, is_financial, is_emergency_contact, position)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
		if _, err := tx.ExecContext(ctx, linkQuery, enrollmentID, personID, nullString(string(g.Relationship)), g.IsPedagogical, g.IsFinancial, g.IsEmergencyContact, i); err != nil {
			return fmt.Errorf("link guardian %d: %w", i, err)
		}
	}

	a := payload.Address
	const addressQuery = `INSERT INTO enrollment_addresses (enrollment_id, zip_code, street, number, complement, neighborhood, city, state)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.ExecContext(ctx, addressQuery, enrollmentID, a.ZipCode, a.Street, a.Number, nullString(a.Complement), a.Neighborhood, a.City, a.State); err != nil {
		return fmt.Errorf("insert address: %w", err)
	}

	const medicalQuery = `INSERT INTO enrollment_medical_infos (enrollment_id, conditions, has_whatsapp, is_self_responsible) VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, medicalQuery, enrollmentID, nullString(payload.MedicalInfo.Conditions), payload.Student.HasWhatsapp, payload.Student.IsSelfResponsible); err != nil {
		return fmt.Errorf("insert medical info: %w", err)
	}
	for i, m := range payload.MedicalInfo.Medications {
		const medicationQuery = `INSERT INTO enrollment_medications (id, enrollment_id, name, dosage, frequency, notes, position)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
		if _, err := tx.ExecContext(ctx, medicationQuery, uuid.NewString(), enrollmentID, m.Name, nullString(m.Dosage), nullString(m.Frequency), nullString(m.Notes), i); err != nil {
			return fmt.Errorf("insert medication %d: %w", i, err)
		}
	}
	for _, c := range payload.MedicalInfo.EmergencyContacts {
		var guardianID *string
		if c.GuardianIndex != nil && *c.GuardianIndex >= 0 && *c.GuardianIndex < len(guardianIDs) {
			guardianID = &guardianIDs[*c.GuardianIndex]
		}
		const contactQuery = `INSERT INTO enrollment_emergency_contacts (id, enrollment_id, name, phone, relationship, position, guardian_person_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
		if _, err := tx.ExecContext(ctx, contactQuery, uuid.NewString(), enrollmentID, c.Name, c.Phone, string(c.Relationship), c.Order, guardianID); err != nil {
			return fmt.Errorf("insert emergency contact %d: %w", c.Order, err)
		}
	}

	b := payload.Billing
	const billingQuery = `INSERT INTO enrollment_billing_terms (enrollment_id, monthly_fee, enrollment_fee, monthly_installments, enrollment_installments,
payment_due_day, payment_method, monthly_discount_percent, enrollment_discount_percent)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := tx.ExecContext(ctx, billingQuery, enrollmentID, b.MonthlyFee, b.EnrollmentFee, nullInt(b.MonthlyInstallments), nullInt(b.EnrollmentInstallments),
		nullInt(b.PaymentDueDay), nullString(string(b.PaymentMethod)), b.MonthlyDiscountPercent, b.EnrollmentDiscountPercent); err != nil {
		return fmt.Errorf("insert billing terms: %w", err)
	}
	for i, d := range b.IndividualDiscounts {
		const discountQuery = `INSERT INTO enrollment_discounts (id, enrollment_id, description, target, percent) VALUES ($1, $2, $3, $4, $5)`
		if _, err := tx.ExecContext(ctx, discountQuery, uuid.NewString(), enrollmentID, d.Description, string(d.Target), d.Percent); err != nil {
			return fmt.Errorf("insert discount %d: %w", i, err)
		}
	}
	return nil
}

// upsertPerson stores a person keyed by document number and returns its id.
// People without a document are always inserted.
func upsertPerson(ctx context.Context, tx *sqlx.Tx, p models.Person) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.DocumentNumber == "" {
		const insertQuery = `INSERT INTO people (id, name, email, phone, birth_date, document_type, document_number, profession)
VALUES (:id, :name, :email, :phone, :birth_date, :document_type, NULL, :profession)`
		if _, err := tx.NamedExecContext(ctx, insertQuery, p); err != nil {
			return "", err
		}
		return p.ID, nil
	}
	const upsertQuery = `INSERT INTO people (id, name, email, phone, birth_date, document_type, document_number, profession)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (document_number) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone,
birth_date = EXCLUDED.birth_date, document_type = EXCLUDED.document_type, profession = EXCLUDED.profession
RETURNING id`
	var id string
	if err := tx.GetContext(ctx, &id, upsertQuery, p.ID, p.Name, p.Email, p.Phone, p.BirthDate, p.DocumentType, p.DocumentNumber, p.Profession); err != nil {
		return "", err
	}
	return id, nil
}

func studentPerson(s dto.StudentPayload) models.Person {
	birth := s.BirthDate
	return models.Person{
		Name:           s.Name,
		Email:          optionalString(s.Email),
		Phone:          optionalString(s.Phone),
		BirthDate:      &birth,
		DocumentType:   s.DocumentType,
		DocumentNumber: s.DocumentNumber,
	}
}

func guardianPerson(g dto.GuardianPayload) models.Person {
	return models.Person{
		ID:             g.ID,
		Name:           g.Name,
		Email:          optionalString(g.Email),
		Phone:          optionalString(g.Phone),
		BirthDate:      g.BirthDate,
		DocumentType:   g.DocumentType,
		DocumentNumber: g.DocumentNumber,
		Profession:     optionalString(g.Profession),
	}
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v != 0}
}
