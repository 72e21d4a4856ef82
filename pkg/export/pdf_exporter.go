package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const pageWidth = 190.0

// PDFExporter renders documents as A4 pages of bordered tables.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF with the document title followed by each section.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	if len(doc.Sections) == 0 {
		return nil, fmt.Errorf("pdf requires at least one section")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	if doc.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(strings.ToUpper(doc.Title)), "", 1, "C", false, 0, "")
	}
	if doc.Subtitle != "" {
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 6, tr(doc.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	for _, section := range doc.Sections {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 8, tr(section.Heading), "", 1, "L", false, 0, "")
		if len(section.Rows) == 0 {
			pdf.SetFont("Arial", "I", 9)
			pdf.CellFormat(0, 7, "-", "", 1, "L", false, 0, "")
			pdf.Ln(2)
			continue
		}
		cols := len(section.Headers)
		if cols == 0 {
			cols = len(section.Rows[0])
		}
		colWidth := pageWidth / float64(cols)

		if len(section.Headers) > 0 {
			pdf.SetFont("Arial", "B", 9)
			for _, header := range section.Headers {
				pdf.CellFormat(colWidth, 7, tr(header), "1", 0, "C", false, 0, "")
			}
			pdf.Ln(-1)
		}
		pdf.SetFont("Arial", "", 9)
		for _, row := range section.Rows {
			for i := 0; i < cols; i++ {
				value := ""
				if i < len(row) {
					value = row[i]
				}
				pdf.CellFormat(colWidth, 7, tr(value), "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
		}
		pdf.Ln(3)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
