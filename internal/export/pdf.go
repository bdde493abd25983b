// Package export renders user lists as downloadable PDF documents.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"
)

// ListData holds everything the PDF needs; the caller resolves names so
// this package never touches the database.
type ListData struct {
	Title       string
	Description string
	OwnerName   string
	Entries     []ListEntry
	GeneratedAt time.Time
}

type ListEntry struct {
	Title string
	Kind  string
	Year  int
}

// ListPDF renders a list as an A4 portrait PDF and returns the bytes plus a
// filename suggestion.
func ListPDF(data ListData) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(data.Title, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, data.Title)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(100, 100, 100)
	pdf.Cell(0, 6, fmt.Sprintf("by %s", data.OwnerName))
	pdf.Ln(6)
	if data.Description != "" {
		pdf.MultiCell(0, 5, data.Description, "", "L", false)
		pdf.Ln(2)
	}
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(12, 8, "#", "1", 0, "C", true, 0, "")
	pdf.CellFormat(118, 8, "Title", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 8, "Type", "1", 0, "C", true, 0, "")
	pdf.CellFormat(20, 8, "Year", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for i, entry := range data.Entries {
		year := ""
		if entry.Year > 0 {
			year = fmt.Sprintf("%d", entry.Year)
		}
		pdf.CellFormat(12, 7, fmt.Sprintf("%d", i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(118, 7, entry.Title, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, entry.Kind, "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 7, year, "1", 1, "C", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.Cell(0, 5, fmt.Sprintf("Exported from AniLog on %s · %d entries",
		data.GeneratedAt.Format("2006-01-02"), len(data.Entries)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", fmt.Errorf("render list pdf: %w", err)
	}

	filename := fmt.Sprintf("anilog-list-%s.pdf", safeFilenamePart(data.Title))
	return buf.Bytes(), filename, nil
}

func safeFilenamePart(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		case r == ' ', r == '-', r == '_':
			out = append(out, '-')
		}
	}
	if len(out) == 0 {
		return "list"
	}
	if len(out) > 40 {
		out = out[:40]
	}
	return string(out)
}
