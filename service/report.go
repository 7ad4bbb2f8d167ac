package service

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/crypticpy/RTASS-sub003/model"
	"github.com/jung-kurt/gofpdf/v2"
)

// ReportService renders a finished audit as a PDF document
type ReportService struct{}

func NewReportService() *ReportService {
	return &ReportService{}
}

// GeneratePDF renders one audit result into a PDF and returns the bytes
func (s *ReportService) GeneratePDF(audit *model.AuditResult) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Compliance Audit %s", audit.ID), false)
	pdf.SetAuthor("RTASS", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Incident Communications Compliance Audit")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, fmt.Sprintf("Audit ID: %s", audit.ID))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Incident: %s    Transcript: %s", audit.IncidentID, audit.TranscriptID))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Created: %s", audit.CreatedAt.Format("2006-01-02 15:04 MST")))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, fmt.Sprintf("Overall: %d/100 (%s)", audit.OverallScore, audit.OverallStatus))
	pdf.Ln(12)

	s.writeSection(pdf, "Summary", []string{audit.Summary}, false)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, "Category Results")
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 11)
	for _, cat := range audit.Categories {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.Cell(0, 6, fmt.Sprintf("%s: %d/100 (%s)", cat.Name, cat.Score, cat.Status))
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "", 11)
		if cat.Rationale != "" {
			pdf.MultiCell(0, 5, cat.Rationale, "", "L", false)
		}
		for _, cr := range cat.Criteria {
			pdf.MultiCell(0, 5, fmt.Sprintf("  [%s] %s", cr.Status, firstNonEmpty(cr.Description, cr.CriterionID)), "", "L", false)
		}
		pdf.Ln(3)
	}

	if len(audit.Findings) > 0 {
		lines := make([]string, 0, len(audit.Findings))
		for _, f := range audit.Findings {
			lines = append(lines, fmt.Sprintf("[%s] %s: %s", f.Severity, f.Category, f.Description))
		}
		s.writeSection(pdf, "Findings", lines, true)
		pdf.Ln(6)
	}

	if len(audit.Recommendations) > 0 {
		lines := make([]string, 0, len(audit.Recommendations))
		for _, r := range audit.Recommendations {
			lines = append(lines, fmt.Sprintf("[%s] %s", r.Priority, r.Text))
		}
		s.writeSection(pdf, "Recommendations", lines, true)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	return buf.Bytes(), nil
}

func (s *ReportService) writeSection(pdf *gofpdf.Fpdf, title string, lines []string, bullet bool) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, title)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 11)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if bullet {
			line = "- " + line
		}
		pdf.MultiCell(0, 5, line, "", "L", false)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
