// Package ledger records monetary transactions tied to permit and
// certificate requests. A transaction is created PENDING at gateway
// initiation, or created CONFIRMED directly when staff verify an
// over-the-counter payment. Once CONFIRMED or CANCELLED a transaction
// never changes again.
package ledger

import "time"

// Status of a transaction.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// Payment kinds distinguishing how the money moved.
const (
	KindGateway = "gateway" // e-payment gateway initiation + callback
	KindCounter = "counter" // over-the-counter payment verified by staff
)

// Transaction represents one pending-or-confirmed monetary movement tied to
// exactly one permit/request entity.
type Transaction struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Kind           string     `json:"kind"`
	AmountCentavos int64      `json:"amount_centavos"`
	ReferenceID    string     `json:"reference_id"`
	EntityType     string     `json:"entity_type"`
	EntityID       string     `json:"entity_id"`
	Status         Status     `json:"status"`
	ReceiptNumber  string     `json:"receipt_number,omitempty"`
	PaymentMethod  string     `json:"payment_method,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// isValidStatusTransition reports whether a transaction may move between
// the two statuses. CONFIRMED and CANCELLED are terminal.
func isValidStatusTransition(from, to Status) bool {
	if from == StatusPending {
		return to == StatusConfirmed || to == StatusCancelled
	}
	return false
}
