package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
)

func issueFields(res models.StepResult) []string {
	fields := make([]string, 0, len(res.FieldIssues))
	for _, issue := range res.FieldIssues {
		fields = append(fields, issue.Field)
	}
	return fields
}

func TestValidateAllPassesCompleteState(t *testing.T) {
	v := newTestValidator()

	res, ok := v.ValidateAll(completeState())
	assert.True(t, ok)
	assert.True(t, res.Valid)
	assert.Equal(t, models.StepReview, res.Step)
}

func TestValidateStudentReportsFieldIssuesByJSONPath(t *testing.T) {
	v := newTestValidator()
	state := completeState()
	state.BasicInfo.Name = ""
	state.BasicInfo.Email = "not-an-email"

	res := v.ValidateStep(models.StepStudent, state)
	require.False(t, res.Valid)
	assert.Equal(t, MsgFixFields, res.RootError)
	assert.ElementsMatch(t, []string{"basicInfo.name", "basicInfo.email"}, issueFields(res))
	for _, issue := range res.FieldIssues {
		if issue.Field == "basicInfo.name" {
			assert.Equal(t, "required", issue.Rule)
			assert.Equal(t, requiredText, issue.Message)
		}
	}
}

func TestValidateStudentRequiresBirthDate(t *testing.T) {
	v := newTestValidator()
	state := completeState()
	state.BasicInfo.BirthDate = models.Date{}

	res := v.ValidateStep(models.StepStudent, state)
	require.False(t, res.Valid)
	assert.Contains(t, issueFields(res), "basicInfo.birthDate")
}

func TestValidateStudentAdultNeedsPhoneAndDocument(t *testing.T) {
	v := newTestValidator()
	state := completeState()
	state.BasicInfo.BirthDate = models.NewDate(2008, time.March, 10)
	state.BasicInfo.DocumentNumber = ""

	res := v.ValidateStep(models.StepStudent, state)
	require.False(t, res.Valid)
	assert.ElementsMatch(t, []string{"basicInfo.phone", "basicInfo.documentNumber"}, issueFields(res))

	state.BasicInfo.BirthDate = models.NewDate(2008, time.March, 11)
	assert.True(t, v.ValidateStep(models.StepStudent, state).Valid, "a minor may omit phone and document")
}

func TestValidateStudentDocumentConflictIgnoresFormatting(t *testing.T) {
	v := newTestValidator()
	state := completeState()
	state.Responsibles[0].DocumentNumber = "12345678900"

	res := v.ValidateStep(models.StepStudent, state)
	assert.False(t, res.Valid)
	assert.Equal(t, MsgStudentDocumentConflict, res.RootError)
	assert.Empty(t, res.FieldIssues)
}

func TestValidateStudentEmailConflictIsCaseInsensitive(t *testing.T) {
	v := newTestValidator()
	state := completeState()
	state.Responsibles[0].Email = " ANA@example.com"

	res := v.ValidateStep(models.StepStudent, state)
	assert.Equal(t, MsgStudentEmailConflict, res.RootError)
}

func TestValidateGuardiansRules(t *testing.T) {
	v := newTestValidator()

	cases := []struct {
		name   string
		mutate func(s *models.WizardState)
		root   string
	}{
		{
			name:   "no guardians",
			mutate: func(s *models.WizardState) { s.Responsibles = nil },
			root:   MsgGuardianRequired,
		},
		{
			name:   "missing phone",
			mutate: func(s *models.WizardState) { s.Responsibles[0].Phone = "" },
			root:   MsgFixFields,
		},
		{
			name: "minor guardian",
			mutate: func(s *models.WizardState) {
				s.Responsibles[0].BirthDate = models.NewDate(2010, time.January, 1)
			},
			root: MsgGuardiansMustBeAdults,
		},
		{
			name:   "no pedagogical",
			mutate: func(s *models.WizardState) { s.Responsibles[0].IsPedagogical = false },
			root:   MsgPedagogicalRequired,
		},
		{
			name:   "no financial",
			mutate: func(s *models.WizardState) { s.Responsibles[0].IsFinancial = false },
			root:   MsgFinancialRequired,
		},
		{
			name: "duplicate document",
			mutate: func(s *models.WizardState) {
				other := motherGuardian()
				other.Email = "joao@example.com"
				other.DocumentNumber = "98765432100"
				s.Responsibles = append(s.Responsibles, other)
			},
			root: MsgGuardianDocumentDup,
		},
		{
			name: "duplicate email",
			mutate: func(s *models.WizardState) {
				other := motherGuardian()
				other.Email = "MARIA@example.com"
				other.DocumentNumber = "111.222.333-44"
				s.Responsibles = append(s.Responsibles, other)
			},
			root: MsgGuardianEmailDup,
		},
		{
			name:   "document equals student",
			mutate: func(s *models.WizardState) { s.Responsibles[0].DocumentNumber = "123.456.789-00" },
			root:   MsgGuardianDocumentConflict,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := completeState()
			tc.mutate(&state)
			res := v.ValidateStep(models.StepGuardians, state)
			assert.False(t, res.Valid)
			assert.Equal(t, tc.root, res.RootError)
		})
	}
}

func TestValidateGuardiansSkippedWhenSelfResponsible(t *testing.T) {
	v := newTestValidator()
	state := selfResponsibleState()

	assert.True(t, v.ValidateStep(models.StepGuardians, state).Valid)
	_, ok := v.ValidateAll(state)
	assert.True(t, ok)
}

func TestValidateMedicalNeedsEmergencyContact(t *testing.T) {
	v := newTestValidator()
	state := completeState()
	state.Responsibles[0].IsEmergencyContact = false

	res := v.ValidateStep(models.StepMedical, state)
	assert.Equal(t, MsgEmergencyContactNeeded, res.RootError)

	state.MedicalInfo.EmergencyContacts = []models.EmergencyContact{{
		Name: "Tia Rosa", Phone: "11977776666", Relationship: models.RelationshipUncleAunt,
	}}
	assert.True(t, v.ValidateStep(models.StepMedical, state).Valid)
}

func TestValidateMedicalContactFields(t *testing.T) {
	v := newTestValidator()
	state := completeState()
	state.MedicalInfo.EmergencyContacts = []models.EmergencyContact{{Name: "Tia Rosa", Relationship: models.RelationshipOther}}

	res := v.ValidateStep(models.StepMedical, state)
	require.False(t, res.Valid)
	assert.Equal(t, []string{"medicalInfo.emergencyContacts[0].phone"}, issueFields(res))
}

func TestValidateBillingRequiredFieldsDependOnContract(t *testing.T) {
	v := newTestValidator()
	state := completeState()
	state.Billing.PaymentDueDay = 0
	state.Billing.PaymentMethod = ""

	assert.True(t, v.ValidateStep(models.StepBilling, state).Valid, "payment terms are optional without a contract")

	contract := "contract-1"
	state.Billing.ContractID = &contract
	res := v.ValidateStep(models.StepBilling, state)
	require.False(t, res.Valid)
	assert.ElementsMatch(t, []string{"billing.paymentDueDay", "billing.paymentMethod"}, issueFields(res))
}

func TestValidateBillingMissingSelection(t *testing.T) {
	v := newTestValidator()
	state := completeState()
	state.Billing.LevelID = ""

	res := v.ValidateStep(models.StepBilling, state)
	assert.Equal(t, []string{"billing.levelId"}, issueFields(res))
}

func TestValidateBillingScholarshipExcludesDiscounts(t *testing.T) {
	v := newTestValidator()
	state := completeState()
	scholarship := "sch-1"
	state.Billing.ScholarshipID = &scholarship
	state.Billing.IndividualDiscounts = []models.IndividualDiscount{{Description: "sibling", Target: models.DiscountTargetMonthly, Percent: 10}}

	res := v.ValidateStep(models.StepBilling, state)
	assert.Equal(t, MsgDiscountConflict, res.RootError)
}

func TestValidateBillingDiscountFields(t *testing.T) {
	v := newTestValidator()
	state := completeState()
	state.Billing.IndividualDiscounts = []models.IndividualDiscount{{Description: "sibling", Target: models.DiscountTargetMonthly, Percent: 150}}

	res := v.ValidateStep(models.StepBilling, state)
	require.False(t, res.Valid)
	assert.Equal(t, []string{"billing.individualDiscounts[0].percent"}, issueFields(res))
}

func TestValidateStepDoesNotMutateState(t *testing.T) {
	v := newTestValidator()
	state := completeState()
	before := state.Clone()

	for step := models.StepStudent; step <= models.StepReview; step++ {
		v.ValidateStep(step, state)
	}
	assert.Equal(t, before, state)
}

func TestValidateAllReturnsFirstFailingStep(t *testing.T) {
	v := newTestValidator()
	state := completeState()
	state.Address.City = ""
	state.Billing.CourseID = ""

	res, ok := v.ValidateAll(state)
	assert.False(t, ok)
	assert.Equal(t, models.StepAddress, res.Step)
}
