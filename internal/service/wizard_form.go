package service

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-wizard/pkg/errors"
)

// FieldPath addresses one editable value of the wizard state.
type FieldPath string

// Editable field paths.
const (
	FieldStudentName           FieldPath = "basicInfo.name"
	FieldStudentEmail          FieldPath = "basicInfo.email"
	FieldStudentPhone          FieldPath = "basicInfo.phone"
	FieldStudentBirthDate      FieldPath = "basicInfo.birthDate"
	FieldStudentDocumentType   FieldPath = "basicInfo.documentType"
	FieldStudentDocumentNumber FieldPath = "basicInfo.documentNumber"
	FieldSelfResponsible       FieldPath = "basicInfo.isSelfResponsible"
	FieldHasWhatsapp           FieldPath = "basicInfo.hasWhatsapp"

	FieldZipCode      FieldPath = "address.zipCode"
	FieldStreet       FieldPath = "address.street"
	FieldNumber       FieldPath = "address.number"
	FieldComplement   FieldPath = "address.complement"
	FieldNeighborhood FieldPath = "address.neighborhood"
	FieldCity         FieldPath = "address.city"
	FieldState        FieldPath = "address.state"

	FieldConditions FieldPath = "medicalInfo.conditions"

	FieldAcademicPeriod         FieldPath = "billing.academicPeriodId"
	FieldCourse                 FieldPath = "billing.courseId"
	FieldLevel                  FieldPath = "billing.levelId"
	FieldClass                  FieldPath = "billing.classId"
	FieldContract               FieldPath = "billing.contractId"
	FieldMonthlyFee             FieldPath = "billing.monthlyFee"
	FieldEnrollmentFee          FieldPath = "billing.enrollmentFee"
	FieldMonthlyInstallments    FieldPath = "billing.monthlyInstallments"
	FieldEnrollmentInstallments FieldPath = "billing.enrollmentInstallments"
	FieldPaymentDueDay          FieldPath = "billing.paymentDueDay"
	FieldPaymentMethod          FieldPath = "billing.paymentMethod"

	// Collection paths reported by list transitions.
	FieldResponsibles        FieldPath = "responsibles"
	FieldMedications         FieldPath = "medicalInfo.medications"
	FieldEmergencyContacts   FieldPath = "medicalInfo.emergencyContacts"
	FieldScholarship         FieldPath = "billing.scholarshipId"
	FieldIndividualDiscounts FieldPath = "billing.individualDiscounts"
)

// ChangeSource tells listeners who caused a change.
type ChangeSource string

const (
	SourceUser     ChangeSource = "user"
	SourceCascade  ChangeSource = "cascade"
	SourceContract ChangeSource = "contract"
)

// FieldChange describes one applied transition.
type FieldChange struct {
	Path    FieldPath
	Old     interface{}
	New     interface{}
	Changed bool
	Source  ChangeSource
}

// FormListener observes every transition in registration order.
type FormListener func(form *WizardForm, change FieldChange)

type fieldSetter func(s *models.WizardState, raw json.RawMessage) (old, updated interface{}, err error)

func bind[T any](ref func(*models.WizardState) *T) fieldSetter {
	return func(s *models.WizardState, raw json.RawMessage) (interface{}, interface{}, error) {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
		target := ref(s)
		old := *target
		*target = v
		return old, v, nil
	}
}

// bindOptionalID stores "" and null as an unset identifier.
func bindOptionalID(ref func(*models.WizardState) **string) fieldSetter {
	return func(s *models.WizardState, raw json.RawMessage) (interface{}, interface{}, error) {
		var v *string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, nil, err
		}
		if v != nil && *v == "" {
			v = nil
		}
		target := ref(s)
		old := derefID(*target)
		*target = v
		return old, derefID(v), nil
	}
}

func derefID(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

var fieldSetters = map[FieldPath]fieldSetter{
	FieldStudentName:           bind(func(s *models.WizardState) *string { return &s.BasicInfo.Name }),
	FieldStudentEmail:          bind(func(s *models.WizardState) *string { return &s.BasicInfo.Email }),
	FieldStudentPhone:          bind(func(s *models.WizardState) *string { return &s.BasicInfo.Phone }),
	FieldStudentBirthDate:      bind(func(s *models.WizardState) *models.Date { return &s.BasicInfo.BirthDate }),
	FieldStudentDocumentType:   bind(func(s *models.WizardState) *models.DocumentType { return &s.BasicInfo.DocumentType }),
	FieldStudentDocumentNumber: bind(func(s *models.WizardState) *string { return &s.BasicInfo.DocumentNumber }),
	FieldSelfResponsible:       bind(func(s *models.WizardState) *bool { return &s.BasicInfo.IsSelfResponsible }),
	FieldHasWhatsapp:           bind(func(s *models.WizardState) *bool { return &s.BasicInfo.HasWhatsapp }),

	FieldZipCode:      bind(func(s *models.WizardState) *string { return &s.Address.ZipCode }),
	FieldStreet:       bind(func(s *models.WizardState) *string { return &s.Address.Street }),
	FieldNumber:       bind(func(s *models.WizardState) *string { return &s.Address.Number }),
	FieldComplement:   bind(func(s *models.WizardState) *string { return &s.Address.Complement }),
	FieldNeighborhood: bind(func(s *models.WizardState) *string { return &s.Address.Neighborhood }),
	FieldCity:         bind(func(s *models.WizardState) *string { return &s.Address.City }),
	FieldState:        bind(func(s *models.WizardState) *string { return &s.Address.State }),

	FieldConditions: bind(func(s *models.WizardState) *string { return &s.MedicalInfo.Conditions }),

	FieldAcademicPeriod:         bind(func(s *models.WizardState) *string { return &s.Billing.AcademicPeriodID }),
	FieldCourse:                 bind(func(s *models.WizardState) *string { return &s.Billing.CourseID }),
	FieldLevel:                  bind(func(s *models.WizardState) *string { return &s.Billing.LevelID }),
	FieldClass:                  bind(func(s *models.WizardState) *string { return &s.Billing.ClassID }),
	FieldContract:               bindOptionalID(func(s *models.WizardState) **string { return &s.Billing.ContractID }),
	FieldMonthlyFee:             bind(func(s *models.WizardState) *float64 { return &s.Billing.MonthlyFee }),
	FieldEnrollmentFee:          bind(func(s *models.WizardState) *float64 { return &s.Billing.EnrollmentFee }),
	FieldMonthlyInstallments:    bind(func(s *models.WizardState) *int { return &s.Billing.MonthlyInstallments }),
	FieldEnrollmentInstallments: bind(func(s *models.WizardState) *int { return &s.Billing.EnrollmentInstallments }),
	FieldPaymentDueDay:          bind(func(s *models.WizardState) *int { return &s.Billing.PaymentDueDay }),
	FieldPaymentMethod:          bind(func(s *models.WizardState) *models.PaymentMethod { return &s.Billing.PaymentMethod }),
}

// fieldClearers reset identifier fields; used by ClearDownstream.
var fieldClearers = map[FieldPath]func(s *models.WizardState) interface{}{
	FieldCourse: func(s *models.WizardState) interface{} {
		old := s.Billing.CourseID
		s.Billing.CourseID = ""
		return old
	},
	FieldLevel: func(s *models.WizardState) interface{} {
		old := s.Billing.LevelID
		s.Billing.LevelID = ""
		return old
	},
	FieldClass: func(s *models.WizardState) interface{} {
		old := s.Billing.ClassID
		s.Billing.ClassID = ""
		return old
	},
	FieldContract: func(s *models.WizardState) interface{} {
		old := derefID(s.Billing.ContractID)
		s.Billing.ContractID = nil
		return old
	},
}

// monetaryFields are the billing values a contract may pre-fill.
var monetaryFields = map[FieldPath]bool{
	FieldMonthlyFee:             true,
	FieldEnrollmentFee:          true,
	FieldMonthlyInstallments:    true,
	FieldEnrollmentInstallments: true,
	FieldPaymentMethod:          true,
}

// IsKnownField reports whether path can be set through SetField.
func IsKnownField(path FieldPath) bool {
	_, ok := fieldSetters[path]
	return ok
}

// WizardForm owns the state of one wizard. It is not safe for concurrent use;
// the owning session serialises access.
type WizardForm struct {
	state     models.WizardState
	edited    map[FieldPath]bool
	listeners []FormListener
}

// NewWizardForm creates a form holding the default state.
func NewWizardForm() *WizardForm {
	return &WizardForm{state: models.NewWizardState(), edited: make(map[FieldPath]bool)}
}

// NewWizardFormFrom creates a form seeded with an existing state.
func NewWizardFormFrom(state models.WizardState) *WizardForm {
	f := NewWizardForm()
	f.state = normalizeState(state.Clone())
	return f
}

// Subscribe registers a listener.
func (f *WizardForm) Subscribe(l FormListener) {
	if l != nil {
		f.listeners = append(f.listeners, l)
	}
}

// State returns a deep copy of the current state.
func (f *WizardForm) State() models.WizardState {
	return f.state.Clone()
}

// view exposes the owned state read-only to package internals without copying.
func (f *WizardForm) view() *models.WizardState {
	return &f.state
}

// SelfResponsible reports whether the student answers for themselves.
func (f *WizardForm) SelfResponsible() bool {
	return f.state.BasicInfo.IsSelfResponsible
}

func (f *WizardForm) emit(change FieldChange) {
	for _, l := range f.listeners {
		l(f, change)
	}
}

// SetField applies a user edit to a single field.
func (f *WizardForm) SetField(path FieldPath, raw json.RawMessage) error {
	setter, ok := fieldSetters[path]
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown field %q", path))
	}
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	old, updated, err := setter(&f.state, raw)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid value for %s", path))
	}
	if monetaryFields[path] {
		f.edited[path] = true
	}
	f.emit(FieldChange{Path: path, Old: old, New: updated, Changed: !reflect.DeepEqual(old, updated), Source: SourceUser})
	return nil
}

// ClearDownstream resets identifier fields invalidated by an upstream change.
func (f *WizardForm) ClearDownstream(paths ...FieldPath) []FieldPath {
	var cleared []FieldPath
	for _, path := range paths {
		clear, ok := fieldClearers[path]
		if !ok {
			continue
		}
		old := clear(&f.state)
		changed := old != ""
		if changed {
			cleared = append(cleared, path)
		}
		f.emit(FieldChange{Path: path, Old: old, New: "", Changed: changed, Source: SourceCascade})
	}
	return cleared
}

// ApplyContractDefaults selects contract and pre-fills the monetary fields the
// user has not edited yet.
func (f *WizardForm) ApplyContractDefaults(contract models.Contract) {
	b := &f.state.Billing
	old := derefID(b.ContractID)
	id := contract.ID
	b.ContractID = &id
	if !f.edited[FieldMonthlyFee] {
		b.MonthlyFee = contract.MonthlyFee
	}
	if !f.edited[FieldEnrollmentFee] {
		b.EnrollmentFee = contract.EnrollmentFee
	}
	if !f.edited[FieldMonthlyInstallments] && contract.MonthlyInstallments > 0 {
		b.MonthlyInstallments = contract.MonthlyInstallments
	}
	if !f.edited[FieldEnrollmentInstallments] && contract.EnrollmentInstallments > 0 {
		b.EnrollmentInstallments = contract.EnrollmentInstallments
	}
	if !f.edited[FieldPaymentMethod] && contract.PaymentType != "" {
		b.PaymentMethod = contract.PaymentType
	}
	f.emit(FieldChange{Path: FieldContract, Old: old, New: id, Changed: old != id, Source: SourceContract})
}

// AppendGuardian adds a guardian and returns its index.
func (f *WizardForm) AppendGuardian(g models.Guardian) int {
	f.state.Responsibles = append(f.state.Responsibles, g)
	idx := len(f.state.Responsibles) - 1
	f.emit(FieldChange{Path: FieldResponsibles, New: g, Changed: true, Source: SourceUser})
	return idx
}

// UpdateGuardian replaces the guardian at index.
func (f *WizardForm) UpdateGuardian(index int, g models.Guardian) error {
	if index < 0 || index >= len(f.state.Responsibles) {
		return indexError("guardian", index)
	}
	old := f.state.Responsibles[index]
	f.state.Responsibles[index] = g
	f.emit(FieldChange{Path: FieldResponsibles, Old: old, New: g, Changed: !reflect.DeepEqual(old, g), Source: SourceUser})
	return nil
}

// RemoveGuardian deletes the guardian at index.
func (f *WizardForm) RemoveGuardian(index int) error {
	if index < 0 || index >= len(f.state.Responsibles) {
		return indexError("guardian", index)
	}
	old := f.state.Responsibles[index]
	f.state.Responsibles = append(f.state.Responsibles[:index], f.state.Responsibles[index+1:]...)
	f.emit(FieldChange{Path: FieldResponsibles, Old: old, Changed: true, Source: SourceUser})
	return nil
}

// AppendMedication adds a medication.
func (f *WizardForm) AppendMedication(m models.Medication) int {
	f.state.MedicalInfo.Medications = append(f.state.MedicalInfo.Medications, m)
	f.emit(FieldChange{Path: FieldMedications, New: m, Changed: true, Source: SourceUser})
	return len(f.state.MedicalInfo.Medications) - 1
}

// RemoveMedication deletes the medication at index.
func (f *WizardForm) RemoveMedication(index int) error {
	meds := f.state.MedicalInfo.Medications
	if index < 0 || index >= len(meds) {
		return indexError("medication", index)
	}
	old := meds[index]
	f.state.MedicalInfo.Medications = append(meds[:index], meds[index+1:]...)
	f.emit(FieldChange{Path: FieldMedications, Old: old, Changed: true, Source: SourceUser})
	return nil
}

// AppendEmergencyContact adds a manually entered emergency contact at the end
// of the list.
func (f *WizardForm) AppendEmergencyContact(c models.EmergencyContact) int {
	c.Order = len(f.state.MedicalInfo.EmergencyContacts)
	c.GuardianIndex = nil
	f.state.MedicalInfo.EmergencyContacts = append(f.state.MedicalInfo.EmergencyContacts, c)
	f.emit(FieldChange{Path: FieldEmergencyContacts, New: c, Changed: true, Source: SourceUser})
	return c.Order
}

// RemoveEmergencyContact deletes the contact at index and renumbers the rest.
func (f *WizardForm) RemoveEmergencyContact(index int) error {
	contacts := f.state.MedicalInfo.EmergencyContacts
	if index < 0 || index >= len(contacts) {
		return indexError("emergency contact", index)
	}
	old := contacts[index]
	contacts = append(contacts[:index], contacts[index+1:]...)
	for i := range contacts {
		contacts[i].Order = i
	}
	f.state.MedicalInfo.EmergencyContacts = contacts
	f.emit(FieldChange{Path: FieldEmergencyContacts, Old: old, Changed: true, Source: SourceUser})
	return nil
}

// SelectScholarship picks a scholarship; individual discounts are dropped.
func (f *WizardForm) SelectScholarship(id string, monthlyPercent, enrollmentPercent float64) {
	b := &f.state.Billing
	old := derefID(b.ScholarshipID)
	b.ScholarshipID = &id
	b.MonthlyDiscountPercent = monthlyPercent
	b.EnrollmentDiscountPercent = enrollmentPercent
	b.IndividualDiscounts = []models.IndividualDiscount{}
	f.emit(FieldChange{Path: FieldScholarship, Old: old, New: id, Changed: old != id, Source: SourceUser})
}

// ClearScholarship removes the selected scholarship and its percentages.
func (f *WizardForm) ClearScholarship() {
	b := &f.state.Billing
	old := derefID(b.ScholarshipID)
	b.ScholarshipID = nil
	b.MonthlyDiscountPercent = 0
	b.EnrollmentDiscountPercent = 0
	f.emit(FieldChange{Path: FieldScholarship, Old: old, New: "", Changed: old != "", Source: SourceUser})
}

// AddIndividualDiscount appends an ad-hoc discount; any scholarship is dropped.
func (f *WizardForm) AddIndividualDiscount(d models.IndividualDiscount) int {
	b := &f.state.Billing
	b.ScholarshipID = nil
	b.MonthlyDiscountPercent = 0
	b.EnrollmentDiscountPercent = 0
	b.IndividualDiscounts = append(b.IndividualDiscounts, d)
	f.emit(FieldChange{Path: FieldIndividualDiscounts, New: d, Changed: true, Source: SourceUser})
	return len(b.IndividualDiscounts) - 1
}

// RemoveIndividualDiscount deletes the discount at index.
func (f *WizardForm) RemoveIndividualDiscount(index int) error {
	discounts := f.state.Billing.IndividualDiscounts
	if index < 0 || index >= len(discounts) {
		return indexError("discount", index)
	}
	old := discounts[index]
	f.state.Billing.IndividualDiscounts = append(discounts[:index], discounts[index+1:]...)
	f.emit(FieldChange{Path: FieldIndividualDiscounts, Old: old, Changed: true, Source: SourceUser})
	return nil
}

// Reset discards every value and returns to the defaults. Listeners are kept.
func (f *WizardForm) Reset() {
	f.state = models.NewWizardState()
	f.edited = make(map[FieldPath]bool)
}

func indexError(kind string, index int) error {
	return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s %d not found", kind, index))
}

// normalizeState makes seeded states satisfy the invariants the transitions keep.
func normalizeState(s models.WizardState) models.WizardState {
	if s.Responsibles == nil {
		s.Responsibles = []models.Guardian{}
	}
	if s.MedicalInfo.Medications == nil {
		s.MedicalInfo.Medications = []models.Medication{}
	}
	if s.MedicalInfo.EmergencyContacts == nil {
		s.MedicalInfo.EmergencyContacts = []models.EmergencyContact{}
	}
	for i := range s.MedicalInfo.EmergencyContacts {
		s.MedicalInfo.EmergencyContacts[i].Order = i
	}
	if s.Billing.IndividualDiscounts == nil {
		s.Billing.IndividualDiscounts = []models.IndividualDiscount{}
	}
	if len(s.Billing.IndividualDiscounts) > 0 {
		s.Billing.ScholarshipID = nil
		s.Billing.MonthlyDiscountPercent = 0
		s.Billing.EnrollmentDiscountPercent = 0
	}
	if s.Billing.ContractID != nil && *s.Billing.ContractID == "" {
		s.Billing.ContractID = nil
	}
	return s
}
