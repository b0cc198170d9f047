package validate

import (
	"errors"
	"strings"
	"testing"
)

// TestPersonName verifies acceptance of legal names, including Filipino
// names with diacritics, and rejection of injection-looking input.
func TestPersonName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"simple name", "Juan dela Cruz", "Juan dela Cruz", nil},
		{"diacritics", "Niño Muñoz", "Niño Muñoz", nil},
		{"suffix and period", "Jose P. Rizal Jr.", "Jose P. Rizal Jr.", nil},
		{"apostrophe", "O'Brien", "O'Brien", nil},
		{"trimmed", "  Maria Clara  ", "Maria Clara", nil},
		{"empty", "", "", ErrEmpty},
		{"whitespace only", "   ", "", ErrEmpty},
		{"angle brackets", "<script>alert(1)</script>", "", ErrInvalidCharacters},
		{"digits", "Juan 2", "", ErrInvalidCharacters},
		{"leading punctuation", "-Juan", "", ErrInvalidCharacters},
		{"too long", strings.Repeat("a", 151), "", ErrStringTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PersonName(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("PersonName(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("PersonName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestRemarks verifies remarks are required, bounded, and HTML-escaped.
func TestRemarks(t *testing.T) {
	if _, err := Remarks(""); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty remarks error = %v, want ErrEmpty", err)
	}
	if _, err := Remarks(strings.Repeat("x", 1001)); !errors.Is(err, ErrStringTooLong) {
		t.Errorf("long remarks error = %v, want ErrStringTooLong", err)
	}

	got, err := Remarks(`death certificate is blurry, <resubmit>`)
	if err != nil {
		t.Fatalf("Remarks failed: %v", err)
	}
	if strings.Contains(got, "<") {
		t.Errorf("remarks not escaped: %q", got)
	}
}

// TestReceiptNumber verifies the accepted receipt formats.
func TestReceiptNumber(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"1234567", false},
		{"OR-2025-000123", false},
		{"GW-abc123", false},
		{"", true},
		{"12 34", true},
		{"12;DROP", true},
		{strings.Repeat("9", 51), true},
	}

	for _, tt := range tests {
		_, err := ReceiptNumber(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ReceiptNumber(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}

// TestMIMEType verifies normalization and the accepted document types.
func TestMIMEType(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"application/pdf", MIMEApplicationPDF, false},
		{"IMAGE/JPEG", MIMEImageJPEG, false},
		{"image/png; charset=binary", MIMEImagePNG, false},
		{"  image/jpeg  ", MIMEImageJPEG, false},
		{"image/gif", "", true},
		{"text/html", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := MIMEType(tt.input, AllowedDocumentTypes)
		if (err != nil) != tt.wantErr {
			t.Fatalf("MIMEType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Errorf("MIMEType(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// TestFileSize verifies the size bounds.
func TestFileSize(t *testing.T) {
	constraints := FileConstraints{MaxSizeBytes: 1000, MinSizeBytes: 10}

	if err := FileSize(500, constraints); err != nil {
		t.Errorf("in-range size failed: %v", err)
	}
	if err := FileSize(1001, constraints); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("oversize error = %v, want ErrFileTooLarge", err)
	}
	if err := FileSize(5, constraints); !errors.Is(err, ErrFileTooSmall) {
		t.Errorf("undersize error = %v, want ErrFileTooSmall", err)
	}
}
