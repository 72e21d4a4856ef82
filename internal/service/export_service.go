package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
	"github.com/noah-isme/sma-enrollment-wizard/pkg/export"
)

// ReviewFormat selects the rendering of a review summary.
type ReviewFormat string

const (
	ReviewFormatPDF ReviewFormat = "pdf"
	ReviewFormatCSV ReviewFormat = "csv"
)

type documentRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

type reviewSource interface {
	ReviewState(ctx context.Context, id string) (models.WizardState, error)
}

// ReviewFile is a rendered review summary.
type ReviewFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders the review step of a wizard.
type ExportService struct {
	source reviewSource
	csv    documentRenderer
	pdf    documentRenderer
	logger *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(source reviewSource, logger *zap.Logger, csv, pdf documentRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{source: source, csv: csv, pdf: pdf, logger: logger}
}

// Review renders the current state of a wizard session.
func (s *ExportService) Review(ctx context.Context, id string, format ReviewFormat) (*ReviewFile, error) {
	state, err := s.source.ReviewState(ctx, id)
	if err != nil {
		return nil, err
	}
	doc := ReviewDocument(state)

	var (
		data        []byte
		contentType string
	)
	switch format {
	case ReviewFormatPDF:
		data, err = s.pdf.Render(doc)
		contentType = "application/pdf"
	case ReviewFormatCSV:
		data, err = s.csv.Render(doc)
		contentType = "text/csv"
	default:
		return nil, fmt.Errorf("unsupported review format %s", format)
	}
	if err != nil {
		s.logger.Error("review render failed", zap.String("wizard_id", id), zap.String("format", string(format)), zap.Error(err))
		return nil, err
	}
	return &ReviewFile{
		Filename:    fmt.Sprintf("enrollment_review_%s.%s", sanitizeFilename(id), format),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// ReviewDocument lays out a wizard state as the sections of the review page.
// Emergency contacts are shown merged, the way they will be submitted.
func ReviewDocument(state models.WizardState) export.Document {
	b := state.BasicInfo
	doc := export.Document{
		Title:    "Enrollment Review",
		Subtitle: b.Name,
	}
	doc.Sections = append(doc.Sections, export.KeyValue("Student",
		[2]string{"Name", b.Name},
		[2]string{"Email", b.Email},
		[2]string{"Phone", b.Phone},
		[2]string{"Birth date", b.BirthDate.String()},
		[2]string{"Document", documentLabel(b.DocumentType, b.DocumentNumber)},
		[2]string{"Self responsible", yesNo(b.IsSelfResponsible)},
		[2]string{"WhatsApp", yesNo(b.HasWhatsapp)},
	))

	guardians := export.Section{
		Heading: "Guardians",
		Headers: []string{"Name", "Document", "Phone", "Email", "Roles"},
	}
	for _, g := range state.Responsibles {
		guardians.Rows = append(guardians.Rows, []string{
			g.Name, documentLabel(g.DocumentType, g.DocumentNumber), g.Phone, g.Email, guardianRoles(g),
		})
	}
	doc.Sections = append(doc.Sections, guardians)

	a := state.Address
	doc.Sections = append(doc.Sections, export.KeyValue("Address",
		[2]string{"Street", strings.TrimSpace(a.Street + ", " + a.Number + " " + a.Complement)},
		[2]string{"Neighborhood", a.Neighborhood},
		[2]string{"City", a.City + " - " + a.State},
		[2]string{"Zip code", a.ZipCode},
	))

	medications := export.Section{
		Heading: "Medications",
		Headers: []string{"Name", "Dosage", "Frequency", "Notes"},
	}
	for _, m := range state.MedicalInfo.Medications {
		medications.Rows = append(medications.Rows, []string{m.Name, m.Dosage, m.Frequency, m.Notes})
	}
	doc.Sections = append(doc.Sections, export.KeyValue("Medical", [2]string{"Conditions", state.MedicalInfo.Conditions}), medications)

	contacts := export.Section{
		Heading: "Emergency contacts",
		Headers: []string{"Order", "Name", "Phone", "Relationship"},
	}
	for _, c := range MergeEmergencyContacts(state.Responsibles, state.MedicalInfo.EmergencyContacts) {
		contacts.Rows = append(contacts.Rows, []string{strconv.Itoa(c.Order + 1), c.Name, c.Phone, string(c.Relationship)})
	}
	doc.Sections = append(doc.Sections, contacts)

	bill := state.Billing
	pairs := [][2]string{
		{"Academic period", bill.AcademicPeriodID},
		{"Course", bill.CourseID},
		{"Level", bill.LevelID},
		{"Class", bill.ClassID},
		{"Contract", derefID(bill.ContractID)},
		{"Monthly fee", money(bill.MonthlyFee)},
		{"Monthly installments", strconv.Itoa(bill.MonthlyInstallments)},
		{"Enrollment fee", money(bill.EnrollmentFee)},
		{"Enrollment installments", strconv.Itoa(bill.EnrollmentInstallments)},
		{"Payment due day", strconv.Itoa(bill.PaymentDueDay)},
		{"Payment method", string(bill.PaymentMethod)},
	}
	if bill.HasScholarship() {
		pairs = append(pairs,
			[2]string{"Scholarship", *bill.ScholarshipID},
			[2]string{"Monthly discount", percent(bill.MonthlyDiscountPercent)},
			[2]string{"Enrollment discount", percent(bill.EnrollmentDiscountPercent)},
		)
	}
	doc.Sections = append(doc.Sections, export.KeyValue("Billing", pairs...))

	if len(bill.IndividualDiscounts) > 0 {
		discounts := export.Section{
			Heading: "Individual discounts",
			Headers: []string{"Description", "Applies to", "Percent"},
		}
		for _, d := range bill.IndividualDiscounts {
			discounts.Rows = append(discounts.Rows, []string{d.Description, string(d.Target), percent(d.Percent)})
		}
		doc.Sections = append(doc.Sections, discounts)
	}
	return doc
}

func documentLabel(kind models.DocumentType, number string) string {
	if number == "" {
		return string(kind)
	}
	return fmt.Sprintf("%s %s", kind, number)
}

func guardianRoles(g models.Guardian) string {
	roles := make([]string, 0, 3)
	if g.IsPedagogical {
		roles = append(roles, "pedagogical")
	}
	if g.IsFinancial {
		roles = append(roles, "financial")
	}
	if g.IsEmergencyContact {
		roles = append(roles, "emergency")
	}
	return strings.Join(roles, ", ")
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
