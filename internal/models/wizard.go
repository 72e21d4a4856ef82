package models

import "slices"

// DocumentType identifies the kind of identity document a person presents.
type DocumentType string

const (
	DocumentTypeCPF      DocumentType = "CPF"
	DocumentTypeRG       DocumentType = "RG"
	DocumentTypePassport DocumentType = "PASSPORT"
	DocumentTypeOther    DocumentType = "OTHER"
)

// Relationship describes how an emergency contact relates to the student.
type Relationship string

const (
	RelationshipGuardian    Relationship = "GUARDIAN"
	RelationshipMother      Relationship = "MOTHER"
	RelationshipFather      Relationship = "FATHER"
	RelationshipGrandparent Relationship = "GRANDPARENT"
	RelationshipSibling     Relationship = "SIBLING"
	RelationshipUncleAunt   Relationship = "UNCLE_AUNT"
	RelationshipOther       Relationship = "OTHER"
)

// PaymentMethod enumerates accepted payment methods for tuition.
type PaymentMethod string

const (
	PaymentMethodBoleto       PaymentMethod = "BOLETO"
	PaymentMethodPix          PaymentMethod = "PIX"
	PaymentMethodCreditCard   PaymentMethod = "CREDIT_CARD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCash         PaymentMethod = "CASH"
)

// DiscountTarget tells which fee an individual discount applies to.
type DiscountTarget string

const (
	DiscountTargetMonthly    DiscountTarget = "MONTHLY"
	DiscountTargetEnrollment DiscountTarget = "ENROLLMENT"
)

// WizardState is the single mutable aggregate of one enrollment session.
type WizardState struct {
	BasicInfo    BasicInfo   `json:"basicInfo"`
	Responsibles []Guardian  `json:"responsibles"`
	Address      Address     `json:"address"`
	MedicalInfo  MedicalInfo `json:"medicalInfo"`
	Billing      Billing     `json:"billing"`
}

// BasicInfo holds the student identity captured on the first step.
// Phone and DocumentNumber are additionally required for adult students.
type BasicInfo struct {
	Name              string       `json:"name" validate:"required"`
	Email             string       `json:"email,omitempty" validate:"omitempty,email"`
	Phone             string       `json:"phone,omitempty"`
	BirthDate         Date         `json:"birthDate" validate:"required"`
	DocumentType      DocumentType `json:"documentType" validate:"required,oneof=CPF RG PASSPORT OTHER"`
	DocumentNumber    string       `json:"documentNumber,omitempty"`
	IsSelfResponsible bool         `json:"isSelfResponsible"`
	HasWhatsapp       bool         `json:"hasWhatsapp"`
}

// Guardian is a person responsible for the student.
type Guardian struct {
	ID                 string       `json:"id,omitempty"`
	Name               string       `json:"name" validate:"required"`
	Email              string       `json:"email,omitempty" validate:"omitempty,email"`
	Phone              string       `json:"phone" validate:"required"`
	BirthDate          Date         `json:"birthDate"`
	DocumentType       DocumentType `json:"documentType" validate:"required,oneof=CPF RG PASSPORT OTHER"`
	DocumentNumber     string       `json:"documentNumber" validate:"required"`
	Relationship       Relationship `json:"relationship,omitempty" validate:"omitempty,oneof=GUARDIAN MOTHER FATHER GRANDPARENT SIBLING UNCLE_AUNT OTHER"`
	Profession         string       `json:"profession,omitempty"`
	IsPedagogical      bool         `json:"isPedagogical"`
	IsFinancial        bool         `json:"isFinancial"`
	IsEmergencyContact bool         `json:"isEmergencyContact"`
	IsExisting         bool         `json:"isExisting"`
}

// Address is the student's postal address.
type Address struct {
	ZipCode      string `json:"zipCode" validate:"required"`
	Street       string `json:"street" validate:"required"`
	Number       string `json:"number" validate:"required"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood" validate:"required"`
	City         string `json:"city" validate:"required"`
	State        string `json:"state" validate:"required"`
}

// MedicalInfo groups health notes and emergency contacts.
type MedicalInfo struct {
	Conditions        string             `json:"conditions,omitempty"`
	Medications       []Medication       `json:"medications" validate:"dive"`
	EmergencyContacts []EmergencyContact `json:"emergencyContacts" validate:"dive"`
}

// Medication is a medicine the student takes regularly.
type Medication struct {
	Name      string `json:"name" validate:"required"`
	Dosage    string `json:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// EmergencyContact is someone to call in an emergency. GuardianIndex points back
// to the guardian it was derived from, when applicable.
type EmergencyContact struct {
	Name          string       `json:"name" validate:"required"`
	Phone         string       `json:"phone" validate:"required"`
	Relationship  Relationship `json:"relationship" validate:"required,oneof=GUARDIAN MOTHER FATHER GRANDPARENT SIBLING UNCLE_AUNT OTHER"`
	Order         int          `json:"order"`
	GuardianIndex *int         `json:"guardianIndex,omitempty"`
}

// Billing captures the academic placement and the financial terms.
type Billing struct {
	AcademicPeriodID          string               `json:"academicPeriodId" validate:"required"`
	CourseID                  string               `json:"courseId" validate:"required"`
	LevelID                   string               `json:"levelId" validate:"required"`
	ClassID                   string               `json:"classId,omitempty"`
	ContractID                *string              `json:"contractId"`
	MonthlyFee                float64              `json:"monthlyFee" validate:"gte=0"`
	EnrollmentFee             float64              `json:"enrollmentFee" validate:"gte=0"`
	MonthlyInstallments       int                  `json:"monthlyInstallments" validate:"required,min=1,max=12"`
	EnrollmentInstallments    int                  `json:"enrollmentInstallments" validate:"required,min=1,max=12"`
	PaymentDueDay             int                  `json:"paymentDueDay" validate:"required,min=1,max=31"`
	PaymentMethod             PaymentMethod        `json:"paymentMethod" validate:"required,oneof=BOLETO PIX CREDIT_CARD BANK_TRANSFER CASH"`
	ScholarshipID             *string              `json:"scholarshipId"`
	MonthlyDiscountPercent    float64              `json:"monthlyDiscountPercent" validate:"gte=0,lte=100"`
	EnrollmentDiscountPercent float64              `json:"enrollmentDiscountPercent" validate:"gte=0,lte=100"`
	IndividualDiscounts       []IndividualDiscount `json:"individualDiscounts" validate:"dive"`
}

// IndividualDiscount is an ad-hoc discount granted to one student.
type IndividualDiscount struct {
	Description string         `json:"description" validate:"required"`
	Target      DiscountTarget `json:"target" validate:"required,oneof=MONTHLY ENROLLMENT"`
	Percent     float64        `json:"percent" validate:"gt=0,lte=100"`
}

// HasContract reports whether a contract has been selected.
func (b Billing) HasContract() bool {
	return b.ContractID != nil && *b.ContractID != ""
}

// HasScholarship reports whether a scholarship has been selected.
func (b Billing) HasScholarship() bool {
	return b.ScholarshipID != nil && *b.ScholarshipID != ""
}

// Clone returns a deep copy of the state.
func (s WizardState) Clone() WizardState {
	out := s
	out.Responsibles = slices.Clone(s.Responsibles)
	out.MedicalInfo.Medications = slices.Clone(s.MedicalInfo.Medications)
	if s.MedicalInfo.EmergencyContacts != nil {
		out.MedicalInfo.EmergencyContacts = make([]EmergencyContact, len(s.MedicalInfo.EmergencyContacts))
		for i, c := range s.MedicalInfo.EmergencyContacts {
			if c.GuardianIndex != nil {
				idx := *c.GuardianIndex
				c.GuardianIndex = &idx
			}
			out.MedicalInfo.EmergencyContacts[i] = c
		}
	}
	out.Billing.IndividualDiscounts = slices.Clone(s.Billing.IndividualDiscounts)
	out.Billing.ContractID = cloneString(s.Billing.ContractID)
	out.Billing.ScholarshipID = cloneString(s.Billing.ScholarshipID)
	return out
}

// NewWizardState returns the defaults a freshly mounted wizard starts from.
func NewWizardState() WizardState {
	return WizardState{
		BasicInfo:    BasicInfo{DocumentType: DocumentTypeCPF},
		Responsibles: []Guardian{},
		MedicalInfo: MedicalInfo{
			Medications:       []Medication{},
			EmergencyContacts: []EmergencyContact{},
		},
		Billing: Billing{
			MonthlyInstallments:    12,
			EnrollmentInstallments: 1,
			IndividualDiscounts:    []IndividualDiscount{},
		},
	}
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
