package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-wizard/pkg/errors"
)

func cascadingForm(state models.WizardState) *WizardForm {
	form := NewWizardFormFrom(state)
	form.Subscribe(CascadeListener())
	return form
}

func TestSetFieldRejectsUnknownPathAndBadValue(t *testing.T) {
	form := NewWizardForm()

	err := form.SetField("basicInfo.nickname", []byte(`"x"`))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	err = form.SetField(FieldPaymentDueDay, []byte(`"tenth"`))
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Equal(t, 0, form.State().Billing.PaymentDueDay)
}

func TestSetFieldParsesDates(t *testing.T) {
	form := NewWizardForm()
	require.NoError(t, form.SetField(FieldStudentBirthDate, []byte(`"2012-05-20"`)))
	assert.Equal(t, "2012-05-20", form.State().BasicInfo.BirthDate.String())

	require.NoError(t, form.SetField(FieldStudentBirthDate, []byte(`null`)))
	assert.False(t, form.State().BasicInfo.BirthDate.IsSet())
}

func TestSetFieldNotifiesListenersInOrder(t *testing.T) {
	form := NewWizardForm()
	var seen []string
	form.Subscribe(func(_ *WizardForm, c FieldChange) { seen = append(seen, "first:"+string(c.Path)) })
	form.Subscribe(func(_ *WizardForm, c FieldChange) { seen = append(seen, "second:"+string(c.Path)) })

	require.NoError(t, form.SetField(FieldCity, []byte(`"Recife"`)))
	assert.Equal(t, []string{"first:address.city", "second:address.city"}, seen)
}

func TestCascadePeriodChangeClearsDownstream(t *testing.T) {
	state := completeState()
	contract := "contract-1"
	state.Billing.ClassID = "class-6a"
	state.Billing.ContractID = &contract
	state.Billing.MonthlyFee = 900
	form := cascadingForm(state)

	require.NoError(t, form.SetField(FieldAcademicPeriod, rawJSON(t, "period-2027")))

	b := form.State().Billing
	assert.Equal(t, "period-2027", b.AcademicPeriodID)
	assert.Empty(t, b.CourseID)
	assert.Empty(t, b.LevelID)
	assert.Empty(t, b.ClassID)
	assert.Nil(t, b.ContractID)
	assert.Equal(t, 900.0, b.MonthlyFee, "monetary values survive a cascade")
}

func TestCascadeLevelChangeKeepsCourse(t *testing.T) {
	state := completeState()
	state.Billing.ClassID = "class-6a"
	form := cascadingForm(state)

	require.NoError(t, form.SetField(FieldLevel, rawJSON(t, "level-7")))

	b := form.State().Billing
	assert.Equal(t, "course-fund", b.CourseID)
	assert.Equal(t, "level-7", b.LevelID)
	assert.Empty(t, b.ClassID)
}

func TestCascadeIgnoresUnchangedValue(t *testing.T) {
	state := completeState()
	state.Billing.ClassID = "class-6a"
	form := cascadingForm(state)

	require.NoError(t, form.SetField(FieldCourse, rawJSON(t, "course-fund")))
	assert.Equal(t, "class-6a", form.State().Billing.ClassID)
}

func TestDownstreamOfReturnsCopy(t *testing.T) {
	paths := DownstreamOf(FieldCourse)
	paths[0] = "mutated"
	assert.Equal(t, []FieldPath{FieldLevel, FieldClass, FieldContract}, DownstreamOf(FieldCourse))
	assert.Empty(t, DownstreamOf(FieldClass))
}

func TestApplyContractDefaultsKeepsUserEditedValues(t *testing.T) {
	form := NewWizardFormFrom(completeState())
	require.NoError(t, form.SetField(FieldMonthlyFee, rawJSON(t, 750.5)))

	form.ApplyContractDefaults(models.Contract{
		ID:                     "contract-6",
		MonthlyFee:             1200,
		EnrollmentFee:          300,
		MonthlyInstallments:    11,
		EnrollmentInstallments: 2,
		PaymentType:            models.PaymentMethodBoleto,
	})

	b := form.State().Billing
	require.NotNil(t, b.ContractID)
	assert.Equal(t, "contract-6", *b.ContractID)
	assert.Equal(t, 750.5, b.MonthlyFee)
	assert.Equal(t, 300.0, b.EnrollmentFee)
	assert.Equal(t, 11, b.MonthlyInstallments)
	assert.Equal(t, 2, b.EnrollmentInstallments)
	assert.Equal(t, models.PaymentMethodBoleto, b.PaymentMethod)
}

func TestEmergencyContactsAreRenumbered(t *testing.T) {
	form := NewWizardForm()
	form.AppendEmergencyContact(models.EmergencyContact{Name: "A", Phone: "1", Relationship: models.RelationshipOther})
	form.AppendEmergencyContact(models.EmergencyContact{Name: "B", Phone: "2", Relationship: models.RelationshipOther})
	form.AppendEmergencyContact(models.EmergencyContact{Name: "C", Phone: "3", Relationship: models.RelationshipOther})

	require.NoError(t, form.RemoveEmergencyContact(0))
	contacts := form.State().MedicalInfo.EmergencyContacts
	require.Len(t, contacts, 2)
	assert.Equal(t, "B", contacts[0].Name)
	assert.Equal(t, 0, contacts[0].Order)
	assert.Equal(t, 1, contacts[1].Order)

	assert.ErrorIs(t, form.RemoveEmergencyContact(5), appErrors.ErrNotFound)
}

func TestScholarshipAndDiscountsAreExclusive(t *testing.T) {
	form := NewWizardForm()
	form.AddIndividualDiscount(models.IndividualDiscount{Description: "sibling", Target: models.DiscountTargetMonthly, Percent: 10})

	form.SelectScholarship("sch-1", 50, 100)
	b := form.State().Billing
	assert.True(t, b.HasScholarship())
	assert.Empty(t, b.IndividualDiscounts)
	assert.Equal(t, 50.0, b.MonthlyDiscountPercent)

	form.AddIndividualDiscount(models.IndividualDiscount{Description: "loyalty", Target: models.DiscountTargetEnrollment, Percent: 5})
	b = form.State().Billing
	assert.False(t, b.HasScholarship())
	assert.Zero(t, b.MonthlyDiscountPercent)
	assert.Len(t, b.IndividualDiscounts, 1)
}

func TestGuardianListTransitions(t *testing.T) {
	form := NewWizardForm()
	idx := form.AppendGuardian(motherGuardian())
	assert.Equal(t, 0, idx)

	updated := motherGuardian()
	updated.Name = "Maria S. Lima"
	require.NoError(t, form.UpdateGuardian(0, updated))
	assert.Equal(t, "Maria S. Lima", form.State().Responsibles[0].Name)

	assert.ErrorIs(t, form.UpdateGuardian(3, updated), appErrors.ErrNotFound)
	require.NoError(t, form.RemoveGuardian(0))
	assert.Empty(t, form.State().Responsibles)
}

func TestStateReturnsDeepCopy(t *testing.T) {
	form := NewWizardFormFrom(completeState())
	snapshot := form.State()
	snapshot.Responsibles[0].Name = "changed"

	assert.Equal(t, "Maria Souza", form.State().Responsibles[0].Name)
}

func TestResetRestoresDefaults(t *testing.T) {
	form := NewWizardFormFrom(completeState())
	form.Reset()
	assert.Equal(t, models.NewWizardState(), form.State())
}
