package service

import (
	"errors"
	"net/http"
	"time"

	"github.com/noah-isme/sma-enrollment-wizard/internal/dto"
	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-wizard/pkg/errors"
)

// AssembleEnrollment converts a completed wizard state into the payload of the
// enrollment create and update operations. Guardians flagged as emergency
// contacts come first, followed by the manually entered contacts.
func AssembleEnrollment(state models.WizardState) dto.EnrollmentPayload {
	payload := dto.EnrollmentPayload{
		Student: dto.StudentPayload{
			Name:              state.BasicInfo.Name,
			Email:             state.BasicInfo.Email,
			Phone:             state.BasicInfo.Phone,
			BirthDate:         dateTime(state.BasicInfo.BirthDate),
			DocumentType:      state.BasicInfo.DocumentType,
			DocumentNumber:    state.BasicInfo.DocumentNumber,
			IsSelfResponsible: state.BasicInfo.IsSelfResponsible,
			HasWhatsapp:       state.BasicInfo.HasWhatsapp,
		},
		Responsibles: make([]dto.GuardianPayload, 0, len(state.Responsibles)),
		Address:      state.Address,
		MedicalInfo: dto.MedicalPayload{
			Conditions:        state.MedicalInfo.Conditions,
			Medications:       append([]models.Medication{}, state.MedicalInfo.Medications...),
			EmergencyContacts: MergeEmergencyContacts(state.Responsibles, state.MedicalInfo.EmergencyContacts),
		},
		Billing: assembleBilling(state.Billing),
	}

	for _, g := range state.Responsibles {
		gp := dto.GuardianPayload{
			ID:                 g.ID,
			Name:               g.Name,
			Email:              g.Email,
			Phone:              g.Phone,
			DocumentType:       g.DocumentType,
			DocumentNumber:     g.DocumentNumber,
			Relationship:       g.Relationship,
			Profession:         g.Profession,
			IsPedagogical:      g.IsPedagogical,
			IsFinancial:        g.IsFinancial,
			IsEmergencyContact: g.IsEmergencyContact,
			IsExisting:         g.IsExisting,
		}
		if g.BirthDate.IsSet() {
			bd := dateTime(g.BirthDate)
			gp.BirthDate = &bd
		}
		payload.Responsibles = append(payload.Responsibles, gp)
	}
	return payload
}

// MergeEmergencyContacts synthesises contacts from flagged guardians and
// renumbers the manual contacts to follow them.
func MergeEmergencyContacts(guardians []models.Guardian, manual []models.EmergencyContact) []models.EmergencyContact {
	merged := make([]models.EmergencyContact, 0, len(guardians)+len(manual))
	for i, g := range guardians {
		if !g.IsEmergencyContact {
			continue
		}
		idx := i
		merged = append(merged, models.EmergencyContact{
			Name:          g.Name,
			Phone:         g.Phone,
			Relationship:  models.RelationshipGuardian,
			Order:         len(merged),
			GuardianIndex: &idx,
		})
	}
	for _, c := range manual {
		c.Order = len(merged)
		c.GuardianIndex = nil
		merged = append(merged, c)
	}
	return merged
}

func assembleBilling(b models.Billing) dto.BillingPayload {
	out := dto.BillingPayload{
		AcademicPeriodID:          b.AcademicPeriodID,
		CourseID:                  b.CourseID,
		LevelID:                   b.LevelID,
		ClassID:                   optionalID(b.ClassID),
		MonthlyFee:                b.MonthlyFee,
		EnrollmentFee:             b.EnrollmentFee,
		MonthlyInstallments:       b.MonthlyInstallments,
		EnrollmentInstallments:    b.EnrollmentInstallments,
		PaymentDueDay:             b.PaymentDueDay,
		PaymentMethod:             b.PaymentMethod,
		MonthlyDiscountPercent:    b.MonthlyDiscountPercent,
		EnrollmentDiscountPercent: b.EnrollmentDiscountPercent,
	}
	if b.HasContract() {
		out.ContractID = optionalID(*b.ContractID)
	}
	if b.HasScholarship() {
		out.ScholarshipID = optionalID(*b.ScholarshipID)
	}
	if len(b.IndividualDiscounts) > 0 {
		out.IndividualDiscounts = append([]models.IndividualDiscount{}, b.IndividualDiscounts...)
	}
	return out
}

func optionalID(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func dateTime(d models.Date) time.Time {
	if !d.IsSet() {
		return time.Time{}
	}
	y, m, day := d.Time.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// SubmissionFailureKind classifies a rejected submission.
type SubmissionFailureKind string

const (
	FailureConflict    SubmissionFailureKind = "conflict"
	FailureBadRequest  SubmissionFailureKind = "bad_request"
	FailureValidation  SubmissionFailureKind = "validation"
	FailureServerError SubmissionFailureKind = "server_error"
	FailureUnknown     SubmissionFailureKind = "unknown"
)

// User-facing submission failure messages.
const (
	MsgDuplicateEnrollment = "student is already enrolled for this academic period"
	MsgInvalidBilling      = "the selected billing period is not valid"
	MsgSubmissionInvalid   = "the enrollment data was rejected, please review the form"
	MsgServiceUnavailable  = "the enrollment service is unavailable, please try again later"
	MsgSubmissionFailed    = "could not submit the enrollment"
)

// SubmissionOutcome tells the wizard what to show after a rejected submission.
type SubmissionOutcome struct {
	Kind     SubmissionFailureKind `json:"kind"`
	Message  string                `json:"message"`
	Redirect *models.WizardStep    `json:"redirectStep,omitempty"`
}

// ClassifySubmissionFailure maps an enrollment operation error to a message
// and, for conflicts and bad requests, the step the user must revisit.
func ClassifySubmissionFailure(err error) SubmissionOutcome {
	var appErr *appErrors.Error
	if !errors.As(err, &appErr) {
		return SubmissionOutcome{Kind: FailureUnknown, Message: MsgSubmissionFailed}
	}
	switch {
	case appErr.Status == http.StatusConflict:
		step := models.StepStudent
		return SubmissionOutcome{Kind: FailureConflict, Message: MsgDuplicateEnrollment, Redirect: &step}
	case appErr.Status == http.StatusBadRequest:
		step := models.StepBilling
		return SubmissionOutcome{Kind: FailureBadRequest, Message: MsgInvalidBilling, Redirect: &step}
	case appErr.Status == http.StatusUnprocessableEntity:
		msg := MsgSubmissionInvalid
		if appErr.Message != "" {
			msg = appErr.Message
		}
		return SubmissionOutcome{Kind: FailureValidation, Message: msg}
	case appErr.Status >= http.StatusInternalServerError:
		return SubmissionOutcome{Kind: FailureServerError, Message: MsgServiceUnavailable}
	default:
		return SubmissionOutcome{Kind: FailureUnknown, Message: MsgSubmissionFailed}
	}
}
