package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVExporter flattens a document into section,column,value records.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render writes one record per cell, prefixed with the section heading and
// row number, so sections with different headers share one file.
func (e *CSVExporter) Render(doc Document) ([]byte, error) {
	if len(doc.Sections) == 0 {
		return nil, fmt.Errorf("csv requires at least one section")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write([]string{"section", "row", "column", "value"}); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, section := range doc.Sections {
		for r, row := range section.Rows {
			for c, value := range row {
				column := fmt.Sprintf("%d", c)
				if c < len(section.Headers) {
					column = section.Headers[c]
				}
				if err := writer.Write([]string{section.Heading, fmt.Sprintf("%d", r+1), column, value}); err != nil {
					return nil, fmt.Errorf("write csv row: %w", err)
				}
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
