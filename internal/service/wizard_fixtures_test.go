package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
)

var fixtureToday = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixtureToday }

func newTestValidator() *StepValidator {
	return NewStepValidator(nil, nil, fixedClock)
}

func rawJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func motherGuardian() models.Guardian {
	return models.Guardian{
		Name:               "Maria Souza",
		Email:              "maria@example.com",
		Phone:              "11999990000",
		BirthDate:          models.NewDate(1985, time.January, 10),
		DocumentType:       models.DocumentTypeCPF,
		DocumentNumber:     "987.654.321-00",
		Relationship:       models.RelationshipMother,
		IsPedagogical:      true,
		IsFinancial:        true,
		IsEmergencyContact: true,
	}
}

// completeState returns a minor student with one guardian that passes every step.
func completeState() models.WizardState {
	state := models.NewWizardState()
	state.BasicInfo = models.BasicInfo{
		Name:           "Ana Souza",
		Email:          "ana@example.com",
		BirthDate:      models.NewDate(2012, time.May, 20),
		DocumentType:   models.DocumentTypeCPF,
		DocumentNumber: "123.456.789-00",
	}
	state.Responsibles = []models.Guardian{motherGuardian()}
	state.Address = models.Address{
		ZipCode:      "01310-100",
		Street:       "Avenida Paulista",
		Number:       "1000",
		Neighborhood: "Bela Vista",
		City:         "Sao Paulo",
		State:        "SP",
	}
	state.Billing.AcademicPeriodID = "period-2026"
	state.Billing.CourseID = "course-fund"
	state.Billing.LevelID = "level-6"
	state.Billing.PaymentDueDay = 10
	state.Billing.PaymentMethod = models.PaymentMethodPix
	return state
}

// selfResponsibleState returns an adult student answering for themselves.
func selfResponsibleState() models.WizardState {
	state := completeState()
	state.BasicInfo.BirthDate = models.NewDate(2000, time.July, 1)
	state.BasicInfo.Phone = "11988887777"
	state.BasicInfo.IsSelfResponsible = true
	state.Responsibles = []models.Guardian{}
	return state
}
