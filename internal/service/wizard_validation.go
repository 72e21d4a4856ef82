package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
)

// Root-level messages for cross-entity violations.
const (
	MsgStudentDocumentConflict  = "student document equals a guardian's document"
	MsgStudentEmailConflict     = "student e-mail equals a guardian's e-mail"
	MsgGuardianRequired         = "add at least one guardian"
	MsgGuardiansMustBeAdults    = "all guardians must be adults"
	MsgPedagogicalRequired      = "at least one pedagogical guardian is required"
	MsgFinancialRequired        = "at least one financial guardian is required"
	MsgGuardianDocumentConflict = "a guardian's document equals the student's document"
	MsgGuardianDocumentDup      = "two guardians share the same document"
	MsgGuardianEmailDup         = "two guardians share the same e-mail"
	MsgEmergencyContactNeeded   = "add at least one emergency contact"
	MsgDiscountConflict         = "choose either a scholarship or individual discounts, not both"
	MsgFixFields                = "please fix the highlighted fields"

	requiredText = "this field is required"
)

var (
	billingWithContract = []string{
		"AcademicPeriodID", "CourseID", "LevelID",
		"PaymentDueDay", "PaymentMethod", "MonthlyInstallments", "EnrollmentInstallments",
		"MonthlyFee", "EnrollmentFee",
	}
	billingWithoutContract = []string{"AcademicPeriodID", "CourseID", "LevelID"}
)

// NewWizardValidate returns a validator configured for wizard models: JSON
// field names, calendar dates treated as values and English messages.
func NewWizardValidate() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	locale := en.New()
	trans, _ := ut.New(locale, locale).GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(models.Date); ok && d.IsSet() {
			return d.Time
		}
		return nil
	}, models.Date{})

	_ = validate.RegisterTranslation("required", trans,
		func(t ut.Translator) error { return t.Add("required", requiredText, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T("required", fe.Field())
			return s
		},
	)
	return validate, trans
}

// StepValidator decides whether a wizard step may be left. It never mutates
// the state it inspects.
type StepValidator struct {
	validate *validator.Validate
	trans    ut.Translator
	now      func() time.Time
}

// NewStepValidator constructs a StepValidator. A nil validate gets the wizard
// defaults; a nil clock uses time.Now.
func NewStepValidator(validate *validator.Validate, trans ut.Translator, now func() time.Time) *StepValidator {
	if validate == nil {
		validate, trans = NewWizardValidate()
	}
	if now == nil {
		now = time.Now
	}
	return &StepValidator{validate: validate, trans: trans, now: now}
}

// Today returns the validator's notion of the current day.
func (v *StepValidator) Today() time.Time {
	return v.now()
}

// ValidateStep runs the rules of step against state. The first violation wins.
func (v *StepValidator) ValidateStep(step models.WizardStep, state models.WizardState) models.StepResult {
	switch step {
	case models.StepStudent:
		return v.validateStudent(step, &state)
	case models.StepGuardians:
		return v.validateGuardians(step, &state)
	case models.StepAddress:
		return v.fieldsOnly(step, v.structIssues("address", state.Address))
	case models.StepMedical:
		return v.validateMedical(step, &state)
	case models.StepBilling:
		return v.validateBilling(step, &state)
	case models.StepReview:
		return pass(step)
	default:
		return fail(step, fmt.Sprintf("unknown step %d", int(step)), nil)
	}
}

// ValidateAll validates every step before the review and returns the first failure.
func (v *StepValidator) ValidateAll(state models.WizardState) (models.StepResult, bool) {
	for step := models.StepStudent; step < models.StepReview; step++ {
		if res := v.ValidateStep(step, state); !res.Valid {
			return res, false
		}
	}
	return pass(models.StepReview), true
}

func (v *StepValidator) validateStudent(step models.WizardStep, s *models.WizardState) models.StepResult {
	issues := v.structIssues("basicInfo", s.BasicInfo)
	if IsAdult(s.BasicInfo.BirthDate, v.Today()) {
		if strings.TrimSpace(s.BasicInfo.Phone) == "" {
			issues = append(issues, requiredIssue("basicInfo.phone"))
		}
		if strings.TrimSpace(s.BasicInfo.DocumentNumber) == "" {
			issues = append(issues, requiredIssue("basicInfo.documentNumber"))
		}
	}
	if len(issues) > 0 {
		return v.fieldsOnly(step, issues)
	}

	if doc := CleanDocument(s.BasicInfo.DocumentNumber); doc != "" {
		for _, g := range s.Responsibles {
			if CleanDocument(g.DocumentNumber) == doc {
				return fail(step, MsgStudentDocumentConflict, nil)
			}
		}
	}
	if email := NormalizeEmail(s.BasicInfo.Email); email != "" {
		for _, g := range s.Responsibles {
			if NormalizeEmail(g.Email) == email {
				return fail(step, MsgStudentEmailConflict, nil)
			}
		}
	}
	return pass(step)
}

func (v *StepValidator) validateGuardians(step models.WizardStep, s *models.WizardState) models.StepResult {
	if s.BasicInfo.IsSelfResponsible {
		return pass(step)
	}
	if len(s.Responsibles) == 0 {
		return fail(step, MsgGuardianRequired, nil)
	}

	var issues []models.FieldIssue
	for i, g := range s.Responsibles {
		issues = append(issues, v.structIssues(fmt.Sprintf("responsibles[%d]", i), g)...)
	}
	if len(issues) > 0 {
		return v.fieldsOnly(step, issues)
	}

	today := v.Today()
	var pedagogical, financial bool
	for _, g := range s.Responsibles {
		if !IsAdult(g.BirthDate, today) {
			return fail(step, MsgGuardiansMustBeAdults, nil)
		}
		pedagogical = pedagogical || g.IsPedagogical
		financial = financial || g.IsFinancial
	}
	if !pedagogical {
		return fail(step, MsgPedagogicalRequired, nil)
	}
	if !financial {
		return fail(step, MsgFinancialRequired, nil)
	}

	studentDoc := CleanDocument(s.BasicInfo.DocumentNumber)
	docs := make(map[string]struct{}, len(s.Responsibles))
	var docCount int
	for _, g := range s.Responsibles {
		doc := CleanDocument(g.DocumentNumber)
		if doc == "" {
			continue
		}
		if doc == studentDoc {
			return fail(step, MsgGuardianDocumentConflict, nil)
		}
		docs[doc] = struct{}{}
		docCount++
	}
	if len(docs) != docCount {
		return fail(step, MsgGuardianDocumentDup, nil)
	}

	studentEmail := NormalizeEmail(s.BasicInfo.Email)
	emails := make(map[string]struct{}, len(s.Responsibles))
	for _, g := range s.Responsibles {
		email := NormalizeEmail(g.Email)
		if email == "" {
			continue
		}
		if email == studentEmail {
			return fail(step, MsgStudentEmailConflict, nil)
		}
		if _, seen := emails[email]; seen {
			return fail(step, MsgGuardianEmailDup, nil)
		}
		emails[email] = struct{}{}
	}
	return pass(step)
}

func (v *StepValidator) validateMedical(step models.WizardStep, s *models.WizardState) models.StepResult {
	if !s.BasicInfo.IsSelfResponsible && len(s.MedicalInfo.EmergencyContacts) == 0 {
		flagged := false
		for _, g := range s.Responsibles {
			if g.IsEmergencyContact {
				flagged = true
				break
			}
		}
		if !flagged {
			return fail(step, MsgEmergencyContactNeeded, nil)
		}
	}
	return v.fieldsOnly(step, v.structIssues("medicalInfo", s.MedicalInfo))
}

func (v *StepValidator) validateBilling(step models.WizardStep, s *models.WizardState) models.StepResult {
	fields := billingWithoutContract
	if s.Billing.HasContract() {
		fields = billingWithContract
	}
	var issues []models.FieldIssue
	if err := v.validate.StructPartial(s.Billing, fields...); err != nil {
		issues = v.translate("billing", err)
	}
	if len(issues) > 0 {
		return v.fieldsOnly(step, issues)
	}
	if s.Billing.HasScholarship() && len(s.Billing.IndividualDiscounts) > 0 {
		return fail(step, MsgDiscountConflict, nil)
	}
	if len(s.Billing.IndividualDiscounts) > 0 {
		return v.fieldsOnly(step, v.sliceIssues("billing.individualDiscounts", s.Billing.IndividualDiscounts))
	}
	return pass(step)
}

func (v *StepValidator) structIssues(prefix string, value interface{}) []models.FieldIssue {
	if err := v.validate.Struct(value); err != nil {
		return v.translate(prefix, err)
	}
	return nil
}

func (v *StepValidator) sliceIssues(prefix string, discounts []models.IndividualDiscount) []models.FieldIssue {
	var issues []models.FieldIssue
	for i, d := range discounts {
		issues = append(issues, v.structIssues(fmt.Sprintf("%s[%d]", prefix, i), d)...)
	}
	return issues
}

// translate converts validator errors into field issues addressed by JSON path.
func (v *StepValidator) translate(prefix string, err error) []models.FieldIssue {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []models.FieldIssue{{Field: prefix, Rule: "invalid", Message: err.Error()}}
	}
	issues := make([]models.FieldIssue, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		msg := fe.Error()
		if v.trans != nil {
			msg = fe.Translate(v.trans)
		}
		issues = append(issues, models.FieldIssue{Field: prefix + "." + ns, Rule: fe.Tag(), Message: msg})
	}
	return issues
}

func (v *StepValidator) fieldsOnly(step models.WizardStep, issues []models.FieldIssue) models.StepResult {
	if len(issues) == 0 {
		return pass(step)
	}
	return fail(step, MsgFixFields, issues)
}

func requiredIssue(field string) models.FieldIssue {
	return models.FieldIssue{Field: field, Rule: "required", Message: requiredText}
}

func pass(step models.WizardStep) models.StepResult {
	return models.StepResult{Step: step, Valid: true}
}

func fail(step models.WizardStep, root string, issues []models.FieldIssue) models.StepResult {
	return models.StepResult{Step: step, RootError: root, FieldIssues: issues}
}
