package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive      EnrollmentStatus = "ACTIVE"
	EnrollmentStatusTransferred EnrollmentStatus = "TRANSFERRED"
	EnrollmentStatusCancelled   EnrollmentStatus = "CANCELLED"
)

// Enrollment is the persisted outcome of a submitted wizard.
type Enrollment struct {
	ID               string           `db:"id" json:"id"`
	StudentID        string           `db:"student_id" json:"studentId"`
	AcademicPeriodID string           `db:"academic_period_id" json:"academicPeriodId"`
	CourseID         string           `db:"course_id" json:"courseId"`
	LevelID          string           `db:"level_id" json:"levelId"`
	ClassID          *string          `db:"class_id" json:"classId,omitempty"`
	ContractID       *string          `db:"contract_id" json:"contractId,omitempty"`
	ScholarshipID    *string          `db:"scholarship_id" json:"scholarshipId,omitempty"`
	Status           EnrollmentStatus `db:"status" json:"status"`
	CreatedAt        time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updatedAt"`
}

// Person is a stored student or guardian identity.
type Person struct {
	ID             string       `db:"id" json:"id"`
	Name           string       `db:"name" json:"name"`
	Email          *string      `db:"email" json:"email,omitempty"`
	Phone          *string      `db:"phone" json:"phone,omitempty"`
	BirthDate      *time.Time   `db:"birth_date" json:"birthDate,omitempty"`
	DocumentType   DocumentType `db:"document_type" json:"documentType"`
	DocumentNumber string       `db:"document_number" json:"documentNumber"`
	Profession     *string      `db:"profession" json:"profession,omitempty"`
}
