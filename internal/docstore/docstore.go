// Package docstore stores the citizen's uploaded documents (death
// certificates, valid IDs, affidavits, payment proofs) under opaque keys
// and serves them back to staff. The production backend is an S3-compatible
// bucket; an in-memory store backs development and tests.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/baliwag-egov/civreg/internal/validate"
)

// Allowed MIME types for document uploads.
const (
	MIMEPDF  = "application/pdf"
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
)

// Validation errors.
var (
	ErrUnsupportedType = errors.New("unsupported content type")
	ErrFileTooLarge    = errors.New("file size exceeds maximum allowed")
	ErrInvalidPrefix   = errors.New("invalid key prefix")
	ErrNotFound        = errors.New("document not found")
)

// AllowedMIMETypes maps allowed MIME types to their file extensions.
var AllowedMIMETypes = map[string]string{
	MIMEPDF:  ".pdf",
	MIMEJPEG: ".jpg",
	MIMEPNG:  ".png",
}

// PutInput describes a document upload handled server-side.
type PutInput struct {
	// Prefix groups the object under the owning entity, e.g. a permit ID.
	// Sanitized before use; "temp" when empty.
	Prefix      string
	ContentType string
	Size        int64
	Body        io.Reader
}

// SignedUploadRequest asks for a pre-signed PUT URL so the browser can
// upload directly to the bucket.
type SignedUploadRequest struct {
	Prefix      string
	ContentType string
	Size        int64
}

// SignedUploadResponse carries the pre-signed URL and the key the object
// will land under.
type SignedUploadResponse struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Object is a retrieved document ready for streaming.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Store is the document storage collaborator.
type Store interface {
	// Put stores a document and returns its key.
	Put(ctx context.Context, in PutInput) (string, error)

	// Open retrieves a stored document by key.
	Open(ctx context.Context, key string) (*Object, error)

	// SignedUploadURL returns a pre-signed PUT URL for a direct browser
	// upload.
	SignedUploadURL(ctx context.Context, req SignedUploadRequest) (*SignedUploadResponse, error)

	// SignedDownloadURL returns a pre-signed GET URL so a document can be
	// fetched without proxying through the API.
	SignedDownloadURL(ctx context.Context, key string) (string, error)
}

// ValidateContentType checks whether the content type is acceptable for a
// civil registry document.
func ValidateContentType(contentType string) error {
	if _, err := validate.MIMEType(contentType, validate.AllowedDocumentTypes); err != nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	return nil
}

// GenerateKey creates a unique object key: documents/{prefix}/{uuid}{ext}.
func GenerateKey(contentType, prefix string) (string, error) {
	ext, ok := AllowedMIMETypes[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}
	clean := "temp"
	if prefix != "" {
		clean = sanitizePathComponent(prefix)
		if clean == "" {
			return "", ErrInvalidPrefix
		}
	}
	return fmt.Sprintf("documents/%s/%s%s", clean, uuid.New().String(), ext), nil
}

// sanitizePathComponent strips everything but alphanumerics, hyphens and
// underscores.
func sanitizePathComponent(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// IsAbsoluteURL reports whether a stored key is an external URL rather than
// a bucket key. Legacy records keep full URLs; retrieval redirects to them.
func IsAbsoluteURL(key string) bool {
	return strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://")
}

// ContentTypeForKey infers a content type from the key's file extension.
// Unknown extensions fall back to octet-stream.
func ContentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".pdf":
		return MIMEPDF
	case ".jpg", ".jpeg":
		return MIMEJPEG
	case ".png":
		return MIMEPNG
	default:
		return "application/octet-stream"
	}
}
