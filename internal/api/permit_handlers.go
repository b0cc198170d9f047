package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/baliwag-egov/civreg/internal/docstore"
	"github.com/baliwag-egov/civreg/internal/permit"
)

// maxSubmissionMemory bounds the in-memory portion of multipart parsing;
// larger file parts spill to disk.
const maxSubmissionMemory = 10 << 20

// PermitHandlers exposes the lifecycle engine over HTTP. One handler set
// serves all five request variants; the {variant} path segment selects the
// configuration.
type PermitHandlers struct {
	engine *permit.Engine
	docs   docstore.Store
}

// NewPermitHandlers creates the permit endpoint handlers.
func NewPermitHandlers(engine *permit.Engine, docs docstore.Store) *PermitHandlers {
	return &PermitHandlers{engine: engine, docs: docs}
}

func (h *PermitHandlers) parseVariant(w http.ResponseWriter, r *http.Request) (permit.Variant, bool) {
	variant, err := permit.ParseVariant(r.PathValue("variant"))
	if err != nil {
		WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, err.Error())
		return "", false
	}
	return variant, true
}

// storeUploads persists every file part of a parsed multipart form and
// returns role → document key. Non-file fields are left to the caller.
func (h *PermitHandlers) storeUploads(r *http.Request, prefix string) (map[string]string, error) {
	docs := make(map[string]string)
	if r.MultipartForm == nil {
		return docs, nil
	}
	for role, headers := range r.MultipartForm.File {
		if len(headers) == 0 {
			continue
		}
		key, err := h.storeUpload(r, headers[0], prefix)
		if err != nil {
			return nil, fmt.Errorf("document %q: %w", role, err)
		}
		docs[role] = key
	}
	return docs, nil
}

func (h *PermitHandlers) storeUpload(r *http.Request, header *multipart.FileHeader, prefix string) (string, error) {
	file, err := header.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	return h.docs.Put(r.Context(), docstore.PutInput{
		Prefix:      prefix,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
}

// Submit handles POST /permits/{variant}: a multipart submission with the
// form fields and one file part per document role.
func (h *PermitHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	variant, ok := h.parseVariant(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxSubmissionMemory); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "expected a multipart form")
		return
	}

	copies := 0
	if v := r.FormValue("copies"); v != "" {
		// A non-numeric copy count falls back to the default of one.
		copies, _ = strconv.Atoi(v)
	}
	in := permit.SubmitInput{
		ApplicantName: r.FormValue("applicant_name"),
		DeceasedName:  r.FormValue("deceased_name"),
		Subtype: permit.Subtype{
			RegistrationType: r.FormValue("registration_type"),
			BurialType:       r.FormValue("burial_type"),
			NicheType:        r.FormValue("niche_type"),
			Copies:           copies,
		},
	}

	docs, err := h.storeUploads(r, string(variant))
	if err != nil {
		writeDocstoreError(w, r, err)
		return
	}
	in.Documents = docs

	req, err := h.engine.Submit(r.Context(), variant, in)
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}
	WriteJSON(w, r.Context(), http.StatusCreated, req)
}

// Resubmit handles POST /permits/{variant}/{id}/resubmit: replacement
// documents after a correction round.
func (h *PermitHandlers) Resubmit(w http.ResponseWriter, r *http.Request) {
	variant, ok := h.parseVariant(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxSubmissionMemory); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "expected a multipart form")
		return
	}
	version, err := strconv.ParseInt(r.FormValue("version"), 10, 64)
	if err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "version field is required")
		return
	}

	docs, err := h.storeUploads(r, string(variant))
	if err != nil {
		writeDocstoreError(w, r, err)
		return
	}

	req, err := h.engine.Resubmit(r.Context(), variant, r.PathValue("id"), docs, version)
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, req)
}

// transitionBody is the JSON body shared by the staff transition
// endpoints.
type transitionBody struct {
	Remarks string `json:"remarks"`
	Version int64  `json:"version"`
}

func decodeTransitionBody(w http.ResponseWriter, r *http.Request) (transitionBody, bool) {
	var body transitionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return body, false
	}
	return body, true
}

// Approve handles POST /permits/{variant}/{id}/approve.
func (h *PermitHandlers) Approve(w http.ResponseWriter, r *http.Request) {
	variant, ok := h.parseVariant(w, r)
	if !ok {
		return
	}
	body, ok := decodeTransitionBody(w, r)
	if !ok {
		return
	}

	req, err := h.engine.Approve(r.Context(), variant, r.PathValue("id"), body.Version)
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, req)
}

// Return handles POST /permits/{variant}/{id}/return: send back for
// correction, or reject terminally for variants with no correction path.
func (h *PermitHandlers) Return(w http.ResponseWriter, r *http.Request) {
	variant, ok := h.parseVariant(w, r)
	if !ok {
		return
	}
	body, ok := decodeTransitionBody(w, r)
	if !ok {
		return
	}

	req, err := h.engine.Return(r.Context(), variant, r.PathValue("id"), body.Remarks, body.Version)
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, req)
}

// overrideFeesBody is the JSON body for the staff fee override endpoint.
type overrideFeesBody struct {
	RegistrationType string `json:"registration_type"`
	BurialType       string `json:"burial_type"`
	NicheType        string `json:"niche_type"`
	Copies           int    `json:"copies"`
	Version          int64  `json:"version"`
}

// OverrideFees handles POST /permits/{variant}/{id}/fees.
func (h *PermitHandlers) OverrideFees(w http.ResponseWriter, r *http.Request) {
	variant, ok := h.parseVariant(w, r)
	if !ok {
		return
	}
	var body overrideFeesBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	sub := permit.Subtype{
		RegistrationType: body.RegistrationType,
		BurialType:       body.BurialType,
		NicheType:        body.NicheType,
		Copies:           body.Copies,
	}
	req, err := h.engine.OverrideFees(r.Context(), variant, r.PathValue("id"), sub, body.Version)
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, req)
}

// SubmitPayment handles POST /permits/{variant}/{id}/payment: multipart
// with a receipt_number field, a proof file part, or both.
func (h *PermitHandlers) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	variant, ok := h.parseVariant(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxSubmissionMemory); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "expected a multipart form")
		return
	}
	version, err := strconv.ParseInt(r.FormValue("version"), 10, 64)
	if err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "version field is required")
		return
	}

	proof := permit.PaymentProof{ReceiptNumber: r.FormValue("receipt_number")}
	if r.MultipartForm != nil {
		if headers := r.MultipartForm.File["proof"]; len(headers) > 0 {
			key, err := h.storeUpload(r, headers[0], string(variant))
			if err != nil {
				writeDocstoreError(w, r, err)
				return
			}
			proof.DocumentKey = key
		}
	}

	req, err := h.engine.SubmitPayment(r.Context(), variant, r.PathValue("id"), proof, version)
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, req)
}

// ConfirmPayment handles POST /permits/{variant}/{id}/payment/confirm.
func (h *PermitHandlers) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	variant, ok := h.parseVariant(w, r)
	if !ok {
		return
	}
	body, ok := decodeTransitionBody(w, r)
	if !ok {
		return
	}

	req, err := h.engine.ConfirmPayment(r.Context(), variant, r.PathValue("id"), body.Version)
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, req)
}

// RejectPayment handles POST /permits/{variant}/{id}/payment/reject.
func (h *PermitHandlers) RejectPayment(w http.ResponseWriter, r *http.Request) {
	variant, ok := h.parseVariant(w, r)
	if !ok {
		return
	}
	body, ok := decodeTransitionBody(w, r)
	if !ok {
		return
	}

	req, err := h.engine.RejectPayment(r.Context(), variant, r.PathValue("id"), body.Remarks, body.Version)
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, req)
}

// InitiatePayment handles POST /permits/{variant}/{id}/payment/initiate:
// open an online payment session with the external gateway.
func (h *PermitHandlers) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	variant, ok := h.parseVariant(w, r)
	if !ok {
		return
	}

	result, err := h.engine.InitiatePayment(r.Context(), variant, r.PathValue("id"))
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, result)
}

// Get handles GET /permits/{variant}/{id}.
func (h *PermitHandlers) Get(w http.ResponseWriter, r *http.Request) {
	variant, ok := h.parseVariant(w, r)
	if !ok {
		return
	}

	req, err := h.engine.Get(r.Context(), variant, r.PathValue("id"))
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, req)
}

// History handles GET /permits/{variant}/{id}/history.
func (h *PermitHandlers) History(w http.ResponseWriter, r *http.Request) {
	variant, ok := h.parseVariant(w, r)
	if !ok {
		return
	}

	history, err := h.engine.GetHistory(r.Context(), variant, r.PathValue("id"))
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, history)
}

// Queue handles GET /permits/{variant}/queue: the staff verification
// queue.
func (h *PermitHandlers) Queue(w http.ResponseWriter, r *http.Request) {
	variant, ok := h.parseVariant(w, r)
	if !ok {
		return
	}

	requests, err := h.engine.ListQueue(r.Context(), variant)
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, map[string]any{"requests": requests})
}

// Mine handles GET /permits/mine: the caller's own requests.
func (h *PermitHandlers) Mine(w http.ResponseWriter, r *http.Request) {
	requests, err := h.engine.ListMine(r.Context())
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, map[string]any{"requests": requests})
}

func writeDocstoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, docstore.ErrUnsupportedType):
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeUnsupportedType, err.Error())
	case errors.Is(err, docstore.ErrFileTooLarge):
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "failed to store document")
	}
}
