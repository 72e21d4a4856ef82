package dto

import (
	"time"

	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
)

// EnrollmentPayload is the body accepted by the enrollment create and update operations.
type EnrollmentPayload struct {
	Student      StudentPayload    `json:"student" validate:"required"`
	Responsibles []GuardianPayload `json:"responsibles" validate:"dive"`
	Address      models.Address    `json:"address" validate:"required"`
	MedicalInfo  MedicalPayload    `json:"medicalInfo"`
	Billing      BillingPayload    `json:"billing" validate:"required"`
}

// StudentPayload is the student identity sent on submission.
type StudentPayload struct {
	Name              string              `json:"name" validate:"required"`
	Email             string              `json:"email,omitempty" validate:"omitempty,email"`
	Phone             string              `json:"phone,omitempty"`
	BirthDate         time.Time           `json:"birthDate" validate:"required"`
	DocumentType      models.DocumentType `json:"documentType" validate:"required"`
	DocumentNumber    string              `json:"documentNumber,omitempty"`
	IsSelfResponsible bool                `json:"isSelfResponsible"`
	HasWhatsapp       bool                `json:"hasWhatsapp"`
}

// GuardianPayload is one guardian sent on submission.
type GuardianPayload struct {
	ID                 string              `json:"id,omitempty"`
	Name               string              `json:"name" validate:"required"`
	Email              string              `json:"email,omitempty" validate:"omitempty,email"`
	Phone              string              `json:"phone" validate:"required"`
	BirthDate          *time.Time          `json:"birthDate,omitempty"`
	DocumentType       models.DocumentType `json:"documentType" validate:"required"`
	DocumentNumber     string              `json:"documentNumber" validate:"required"`
	Relationship       models.Relationship `json:"relationship,omitempty"`
	Profession         string              `json:"profession,omitempty"`
	IsPedagogical      bool                `json:"isPedagogical"`
	IsFinancial        bool                `json:"isFinancial"`
	IsEmergencyContact bool                `json:"isEmergencyContact"`
	IsExisting         bool                `json:"isExisting"`
}

// MedicalPayload carries medical notes and the merged emergency contacts.
type MedicalPayload struct {
	Conditions        string                    `json:"conditions,omitempty"`
	Medications       []models.Medication       `json:"medications" validate:"dive"`
	EmergencyContacts []models.EmergencyContact `json:"emergencyContacts" validate:"dive"`
}

// BillingPayload carries placement and financial terms. Optional identifiers
// are absent when not selected.
type BillingPayload struct {
	AcademicPeriodID          string                      `json:"academicPeriodId" validate:"required"`
	CourseID                  string                      `json:"courseId" validate:"required"`
	LevelID                   string                      `json:"levelId" validate:"required"`
	ClassID                   *string                     `json:"classId,omitempty"`
	ContractID                *string                     `json:"contractId,omitempty"`
	ScholarshipID             *string                     `json:"scholarshipId,omitempty"`
	MonthlyFee                float64                     `json:"monthlyFee" validate:"gte=0"`
	EnrollmentFee             float64                     `json:"enrollmentFee" validate:"gte=0"`
	MonthlyInstallments       int                         `json:"monthlyInstallments,omitempty"`
	EnrollmentInstallments    int                         `json:"enrollmentInstallments,omitempty"`
	PaymentDueDay             int                         `json:"paymentDueDay,omitempty" validate:"omitempty,min=1,max=31"`
	PaymentMethod             models.PaymentMethod        `json:"paymentMethod,omitempty"`
	MonthlyDiscountPercent    float64                     `json:"monthlyDiscountPercent,omitempty" validate:"gte=0,lte=100"`
	EnrollmentDiscountPercent float64                     `json:"enrollmentDiscountPercent,omitempty" validate:"gte=0,lte=100"`
	IndividualDiscounts       []models.IndividualDiscount `json:"individualDiscounts,omitempty" validate:"dive"`
}

// EnrollmentReceipt is returned after a successful create or update.
type EnrollmentReceipt struct {
	EnrollmentID string    `json:"enrollmentId"`
	StudentID    string    `json:"studentId"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}
