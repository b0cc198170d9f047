// Package gateway talks to the LinkBiz payment gateway used by the city
// treasury. Initiation is a synchronous JSON POST; settlement arrives later
// through an asynchronous callback handled by the API layer.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/baliwag-egov/civreg/internal/middleware"
)

// ErrUnavailable is returned when the gateway cannot be reached or answers
// with a server error. Callers degrade to manual payment instructions
// instead of failing the request.
var ErrUnavailable = errors.New("payment gateway unavailable")

// ErrRejected is returned when the gateway understood the request but
// refused to open a payment session.
var ErrRejected = errors.New("payment gateway rejected initiation")

// Callback payment statuses as sent by the gateway.
const (
	CallbackPaid      = "paid"
	CallbackFailed    = "failed"
	CallbackCancelled = "cancelled"
	CallbackPending   = "pending"
)

// InitiateRequest is the payload sent to the gateway to open a payment
// session for an order of payment.
type InitiateRequest struct {
	ReferenceID    string `json:"reference_id"`
	AmountCentavos int64  `json:"amount"`
	Description    string `json:"description"`
	PayerName      string `json:"payer_name,omitempty"`
	PayerEmail     string `json:"payer_email,omitempty"`
	ClientSystem   string `json:"client_system"`
	CallbackURL    string `json:"callback_url"`
}

// InitiateResponse is the gateway's answer to an initiation request.
type InitiateResponse struct {
	Accepted   bool   `json:"accepted"`
	GatewayURL string `json:"gateway_url"`
	Message    string `json:"message,omitempty"`
}

// CallbackData is the asynchronous settlement notification posted by the
// gateway once the payer completes (or abandons) the session.
type CallbackData struct {
	ReferenceID    string `json:"reference_id"`
	AmountCentavos int64  `json:"amount"`
	PaymentStatus  string `json:"payment_status"`
	ReceiptNumber  string `json:"receipt_number"`
	PaymentID      string `json:"payment_id"`
	PaymentMethod  string `json:"payment_method"`
	PaidAt         string `json:"paid_at"`
	ClientSystem   string `json:"client_system"`
}

// PaidTime parses the gateway's paid_at timestamp, falling back to the
// current time when the field is absent or malformed.
func (c CallbackData) PaidTime() time.Time {
	if t, err := time.Parse(time.RFC3339, c.PaidAt); err == nil {
		return t
	}
	return time.Now().UTC()
}

// Client initiates payment sessions with the external gateway.
type Client interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error)
}

// HTTPClient is the production Client implementation.
type HTTPClient struct {
	baseURL      string
	clientSystem string
	callbackURL  string
	httpClient   *http.Client
}

// NewHTTPClient creates a gateway client. baseURL is the gateway's
// initiation endpoint, clientSystem identifies this portal in both
// directions, and callbackURL is where settlement notifications land.
func NewHTTPClient(baseURL, clientSystem, callbackURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:      baseURL,
		clientSystem: clientSystem,
		callbackURL:  callbackURL,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// Initiate opens a payment session for the given order of payment.
func (c *HTTPClient) Initiate(ctx context.Context, req InitiateRequest) (_ *InitiateResponse, err error) {
	ctx, endSpan := middleware.StartGatewaySpan(ctx, req.ReferenceID)
	defer func() { endSpan(err) }()

	req.ClientSystem = c.clientSystem
	req.CallbackURL = c.callbackURL

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode initiation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build initiation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: gateway returned %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: gateway returned %d", ErrRejected, resp.StatusCode)
	}

	var out InitiateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if !out.Accepted {
		return nil, fmt.Errorf("%w: %s", ErrRejected, out.Message)
	}
	return &out, nil
}

// ValidCallback checks that a callback was addressed to this portal and
// carries a known payment status.
func ValidCallback(data CallbackData, clientSystem string) error {
	if data.ClientSystem != clientSystem {
		return fmt.Errorf("callback for foreign client system %q", data.ClientSystem)
	}
	if data.ReferenceID == "" {
		return errors.New("callback missing reference_id")
	}
	switch data.PaymentStatus {
	case CallbackPaid, CallbackFailed, CallbackCancelled, CallbackPending:
		return nil
	default:
		return fmt.Errorf("unknown payment status %q", data.PaymentStatus)
	}
}
