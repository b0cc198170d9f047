package validate

import (
	"errors"
	"fmt"
	"strings"
)

// File validation errors
var (
	ErrInvalidMIMEType = errors.New("invalid MIME type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrFileTooSmall    = errors.New("file too small")
)

// MIME types accepted for scanned civil registry documents.
const (
	MIMEApplicationPDF = "application/pdf"
	MIMEImageJPEG      = "image/jpeg"
	MIMEImagePNG       = "image/png"
)

// AllowedDocumentTypes defines the MIME types accepted for uploaded
// documents: scanned certificates, IDs, affidavits, and payment proofs.
var AllowedDocumentTypes = []string{
	MIMEApplicationPDF,
	MIMEImageJPEG,
	MIMEImagePNG,
}

// FileConstraints defines validation constraints for file uploads.
type FileConstraints struct {
	AllowedTypes []string // Allowed MIME types
	MaxSizeBytes int64    // Maximum file size in bytes
	MinSizeBytes int64    // Minimum file size in bytes (0 = no minimum)
}

// MIMEType validates a MIME type against allowed types.
// Returns the normalized MIME type (lowercased, parameters stripped) and an
// error if invalid.
func MIMEType(mimeType string, allowedTypes []string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(mimeType))
	// Browsers may append parameters, e.g. "image/jpeg; charset=binary".
	if idx := strings.Index(normalized, ";"); idx >= 0 {
		normalized = strings.TrimSpace(normalized[:idx])
	}
	if normalized == "" {
		return "", fmt.Errorf("%w: empty content type", ErrInvalidMIMEType)
	}
	for _, allowed := range allowedTypes {
		if normalized == allowed {
			return normalized, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not accepted", ErrInvalidMIMEType, mimeType)
}

// FileSize validates a file size against the given constraints.
func FileSize(size int64, constraints FileConstraints) error {
	if constraints.MaxSizeBytes > 0 && size > constraints.MaxSizeBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, size, constraints.MaxSizeBytes)
	}
	if constraints.MinSizeBytes > 0 && size < constraints.MinSizeBytes {
		return fmt.Errorf("%w: %d bytes is below minimum of %d", ErrFileTooSmall, size, constraints.MinSizeBytes)
	}
	return nil
}
