package export

import (
	"fmt"
	"strings"
)

// Format is a supported export encoding.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat normalises raw input, defaulting to CSV.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv"
}

// Renderer dispatches a document to the exporter matching the format.
type Renderer struct {
	csv *CSVExporter
	pdf *PDFExporter
}

// NewRenderer builds a Renderer with the default exporters.
func NewRenderer() *Renderer {
	return &Renderer{csv: NewCSVExporter(), pdf: NewPDFExporter()}
}

// Render encodes doc in the requested format. CSV output carries only the table.
func (r *Renderer) Render(format Format, doc Document) ([]byte, error) {
	switch format {
	case FormatCSV:
		return r.csv.Render(doc.Data)
	case FormatPDF:
		return r.pdf.Render(doc)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
