package api

import "net/http"

// Routes builds the ServeMux for the portal API. submitLimit, when not
// nil, wraps the submission endpoints with a tighter rate limit than the
// global one; the other routes are left to the global limiter.
func Routes(permits *PermitHandlers, callbacks *CallbackHandlers, documents *DocumentHandlers, health *HealthHandlers, submitLimit func(http.Handler) http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	limited := func(h http.HandlerFunc) http.Handler {
		if submitLimit == nil {
			return h
		}
		return submitLimit(h)
	}

	// Lifecycle
	mux.Handle("POST /permits/{variant}", limited(permits.Submit))
	mux.HandleFunc("GET /permits/mine", permits.Mine)
	mux.HandleFunc("GET /permits/{variant}/queue", permits.Queue)
	mux.HandleFunc("GET /permits/{variant}/{id}", permits.Get)
	mux.HandleFunc("GET /permits/{variant}/{id}/history", permits.History)
	mux.Handle("POST /permits/{variant}/{id}/resubmit", limited(permits.Resubmit))
	mux.HandleFunc("POST /permits/{variant}/{id}/approve", permits.Approve)
	mux.HandleFunc("POST /permits/{variant}/{id}/return", permits.Return)
	mux.HandleFunc("POST /permits/{variant}/{id}/fees", permits.OverrideFees)

	// Payments
	mux.HandleFunc("POST /permits/{variant}/{id}/payment", permits.SubmitPayment)
	mux.HandleFunc("POST /permits/{variant}/{id}/payment/confirm", permits.ConfirmPayment)
	mux.HandleFunc("POST /permits/{variant}/{id}/payment/reject", permits.RejectPayment)
	mux.HandleFunc("POST /permits/{variant}/{id}/payment/initiate", permits.InitiatePayment)
	mux.HandleFunc("POST /internal/payments/callback", callbacks.Callback)

	// Documents
	mux.HandleFunc("GET /documents/{key...}", documents.Retrieve)
	mux.HandleFunc("POST /documents/sign", documents.SignUpload)

	// Probes
	mux.HandleFunc("GET /health", health.Health)
	mux.HandleFunc("GET /ready", health.Ready)

	return mux
}
