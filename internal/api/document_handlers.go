package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/baliwag-egov/civreg/internal/audit"
	"github.com/baliwag-egov/civreg/internal/docstore"
	"github.com/baliwag-egov/civreg/internal/middleware"
)

// DocumentHandlers serves stored documents back to staff and citizens and
// hands out pre-signed upload URLs.
type DocumentHandlers struct {
	docs   docstore.Store
	audits audit.Repository
}

// NewDocumentHandlers creates the document endpoint handlers.
func NewDocumentHandlers(docs docstore.Store, audits audit.Repository) *DocumentHandlers {
	return &DocumentHandlers{docs: docs, audits: audits}
}

// Retrieve handles GET /documents/{key...}. Legacy records whose key is a
// full URL are answered with a redirect; bucket keys are streamed with a
// content type inferred from the extension.
func (h *DocumentHandlers) Retrieve(w http.ResponseWriter, r *http.Request) {
	if middleware.GetIdentity(r.Context()).UserID == "" {
		WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	key := r.PathValue("key")
	if key == "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "document key is required")
		return
	}

	audit.LogFromRequest(r, h.audits, audit.Record{
		EntityType: "document",
		EntityID:   key,
		Action:     "retrieve",
	})

	if docstore.IsAbsoluteURL(key) {
		http.Redirect(w, r, key, http.StatusFound)
		return
	}

	// ?presign=true hands back a short-lived direct URL instead of
	// streaming through the API.
	if r.URL.Query().Get("presign") == "true" {
		url, err := h.docs.SignedDownloadURL(r.Context(), key)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "document not found")
				return
			}
			WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "failed to presign document")
			return
		}
		WriteJSON(w, r.Context(), http.StatusOK, map[string]string{"url": url})
		return
	}

	obj, err := h.docs.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "document not found")
			return
		}
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "failed to retrieve document")
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", docstore.ContentTypeForKey(key))
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, obj.Body)
}

// signUploadBody is the JSON body for the pre-signed upload endpoint.
type signUploadBody struct {
	Prefix      string `json:"prefix"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// SignUpload handles POST /documents/sign: a pre-signed PUT URL for a
// direct browser upload.
func (h *DocumentHandlers) SignUpload(w http.ResponseWriter, r *http.Request) {
	if middleware.GetIdentity(r.Context()).UserID == "" {
		WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	var body signUploadBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	resp, err := h.docs.SignedUploadURL(r.Context(), docstore.SignedUploadRequest{
		Prefix:      body.Prefix,
		ContentType: body.ContentType,
		Size:        body.Size,
	})
	if err != nil {
		writeDocstoreError(w, r, err)
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, resp)
}
