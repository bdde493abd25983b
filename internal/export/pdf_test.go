package export

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestListPDF(t *testing.T) {
	data := ListData{
		Title:       "Winter Favorites",
		Description: "Shows I kept coming back to.",
		OwnerName:   "Rin",
		GeneratedAt: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		Entries: []ListEntry{
			{Title: "Frieren: Beyond Journey's End", Kind: "anime", Year: 2023},
			{Title: "Vinland Saga", Kind: "manga", Year: 2005},
		},
	}

	pdfBytes, filename, err := ListPDF(data)
	if err != nil {
		t.Fatalf("ListPDF failed: %v", err)
	}

	if !bytes.HasPrefix(pdfBytes, []byte("%PDF")) {
		t.Error("output should start with a PDF header")
	}
	if len(pdfBytes) < 500 {
		t.Errorf("output suspiciously small: %d bytes", len(pdfBytes))
	}
	if filename != "anilog-list-Winter-Favorites.pdf" {
		t.Errorf("unexpected filename %q", filename)
	}
}

func TestListPDFEmptyList(t *testing.T) {
	data := ListData{
		Title:       "Empty",
		OwnerName:   "Rin",
		GeneratedAt: time.Now(),
	}

	pdfBytes, _, err := ListPDF(data)
	if err != nil {
		t.Fatalf("ListPDF failed for empty list: %v", err)
	}
	if !bytes.HasPrefix(pdfBytes, []byte("%PDF")) {
		t.Error("output should start with a PDF header")
	}
}

func TestSafeFilenamePart(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Winter Favorites", "Winter-Favorites"},
		{"!!!", "list"},
		{"a/b\\c", "abc"},
		{strings.Repeat("x", 60), strings.Repeat("x", 40)},
	}
	for _, tt := range tests {
		if got := safeFilenamePart(tt.in); got != tt.want {
			t.Errorf("safeFilenamePart(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
