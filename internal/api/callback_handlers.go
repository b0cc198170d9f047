package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/baliwag-egov/civreg/internal/gateway"
	"github.com/baliwag-egov/civreg/internal/permit"
)

// maxCallbackBody bounds the gateway callback payload.
const maxCallbackBody = 1 << 20

// CallbackHandlers receives asynchronous settlement notifications from the
// payment gateway.
type CallbackHandlers struct {
	engine       *permit.Engine
	clientSystem string
}

// NewCallbackHandlers creates the gateway callback handler. clientSystem is
// this portal's identifier; callbacks addressed to anything else are
// rejected.
func NewCallbackHandlers(engine *permit.Engine, clientSystem string) *CallbackHandlers {
	return &CallbackHandlers{engine: engine, clientSystem: clientSystem}
}

// Callback handles POST /internal/payments/callback. Replayed
// notifications are acknowledged with 200 so the gateway stops retrying.
func (h *CallbackHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	var data gateway.CallbackData
	if err := json.NewDecoder(io.LimitReader(r.Body, maxCallbackBody)).Decode(&data); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "invalid callback payload")
		return
	}

	if err := gateway.ValidCallback(data, h.clientSystem); err != nil {
		slog.WarnContext(r.Context(), "rejecting gateway callback",
			"reference_id", data.ReferenceID, "error", err)
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	if err := h.engine.HandleCallback(r.Context(), data); err != nil {
		if errors.Is(err, permit.ErrNotFound) {
			WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, err.Error())
			return
		}
		WriteEngineError(w, r, err)
		return
	}

	WriteJSON(w, r.Context(), http.StatusOK, map[string]string{"status": "acknowledged"})
}
