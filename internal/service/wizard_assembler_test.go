package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-wizard/pkg/errors"
)

func TestMergeEmergencyContactsPutsGuardiansFirst(t *testing.T) {
	father := motherGuardian()
	father.Name = "Joao Souza"
	father.IsEmergencyContact = false
	guardians := []models.Guardian{father, motherGuardian()}
	manual := []models.EmergencyContact{
		{Name: "Tia Rosa", Phone: "11977776666", Relationship: models.RelationshipUncleAunt, Order: 0},
	}

	merged := MergeEmergencyContacts(guardians, manual)
	require.Len(t, merged, 2)

	assert.Equal(t, "Maria Souza", merged[0].Name)
	assert.Equal(t, models.RelationshipGuardian, merged[0].Relationship)
	assert.Equal(t, 0, merged[0].Order)
	require.NotNil(t, merged[0].GuardianIndex)
	assert.Equal(t, 1, *merged[0].GuardianIndex)

	assert.Equal(t, "Tia Rosa", merged[1].Name)
	assert.Equal(t, 1, merged[1].Order)
	assert.Nil(t, merged[1].GuardianIndex)
	assert.Equal(t, 0, manual[0].Order, "input slice is untouched")
}

func TestAssembleEnrollmentMapsState(t *testing.T) {
	state := completeState()
	state.MedicalInfo.Medications = []models.Medication{{Name: "Ritalina", Dosage: "10mg"}}

	payload := AssembleEnrollment(state)

	assert.Equal(t, "Ana Souza", payload.Student.Name)
	assert.Equal(t, time.Date(2012, time.May, 20, 0, 0, 0, 0, time.UTC), payload.Student.BirthDate)
	require.Len(t, payload.Responsibles, 1)
	require.NotNil(t, payload.Responsibles[0].BirthDate)
	assert.True(t, payload.Responsibles[0].IsFinancial)
	assert.Len(t, payload.MedicalInfo.Medications, 1)
	require.Len(t, payload.MedicalInfo.EmergencyContacts, 1)
	assert.Equal(t, models.RelationshipGuardian, payload.MedicalInfo.EmergencyContacts[0].Relationship)

	assert.Equal(t, "level-6", payload.Billing.LevelID)
	assert.Nil(t, payload.Billing.ClassID)
	assert.Nil(t, payload.Billing.ContractID)
	assert.Nil(t, payload.Billing.ScholarshipID)
	assert.Empty(t, payload.Billing.IndividualDiscounts)
}

func TestAssembleEnrollmentOptionalIdentifiers(t *testing.T) {
	state := completeState()
	state.Billing.ClassID = "class-6a"
	state.Billing.ContractID = strPtr("contract-6")
	state.Billing.ScholarshipID = strPtr("sch-1")

	payload := AssembleEnrollment(state)
	require.NotNil(t, payload.Billing.ClassID)
	assert.Equal(t, "class-6a", *payload.Billing.ClassID)
	assert.Equal(t, "contract-6", *payload.Billing.ContractID)
	assert.Equal(t, "sch-1", *payload.Billing.ScholarshipID)
}

func TestClassifySubmissionFailure(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		kind     SubmissionFailureKind
		message  string
		redirect *models.WizardStep
	}{
		{
			name:     "duplicate enrollment",
			err:      fmt.Errorf("create: %w", appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")),
			kind:     FailureConflict,
			message:  MsgDuplicateEnrollment,
			redirect: stepPtr(models.StepStudent),
		},
		{
			name:     "closed period",
			err:      appErrors.Clone(appErrors.ErrInvalidBillingPeriod, ""),
			kind:     FailureBadRequest,
			message:  MsgInvalidBilling,
			redirect: stepPtr(models.StepBilling),
		},
		{
			name:    "payload rejected",
			err:     appErrors.Clone(appErrors.ErrUnprocessable, "guardian phone is invalid"),
			kind:    FailureValidation,
			message: "guardian phone is invalid",
		},
		{
			name:    "server error",
			err:     appErrors.Clone(appErrors.ErrInternal, ""),
			kind:    FailureServerError,
			message: MsgServiceUnavailable,
		},
		{
			name:    "untyped error",
			err:     errors.New("connection reset"),
			kind:    FailureUnknown,
			message: MsgSubmissionFailed,
		},
		{
			name:    "other status",
			err:     appErrors.Clone(appErrors.ErrForbidden, ""),
			kind:    FailureUnknown,
			message: MsgSubmissionFailed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			outcome := ClassifySubmissionFailure(tc.err)
			assert.Equal(t, tc.kind, outcome.Kind)
			assert.Equal(t, tc.message, outcome.Message)
			assert.Equal(t, tc.redirect, outcome.Redirect)
		})
	}
}

func stepPtr(s models.WizardStep) *models.WizardStep { return &s }
