// Package permit implements the request lifecycle shared by all cemetery
// and civil-registry services: death registration, burial, cremation and
// exhumation permits, and death certificate copies. A single engine drives
// every variant through the same status machine, parameterized by a
// per-variant configuration table.
package permit

import (
	"time"

	"github.com/baliwag-egov/civreg/internal/fees"
)

// Status is a lifecycle state of a permit request.
type Status string

// Lifecycle states. REJECTED is terminal and only reachable for variants
// whose configuration has no correction path.
const (
	StatusPendingVerification   Status = "PENDING_VERIFICATION"
	StatusReturnedForCorrection Status = "RETURNED_FOR_CORRECTION"
	StatusApprovedForPayment    Status = "APPROVED_FOR_PAYMENT"
	StatusPaymentSubmitted      Status = "PAYMENT_SUBMITTED"
	StatusRegisteredForPickup   Status = "REGISTERED_FOR_PICKUP"
	StatusRejected              Status = "REJECTED"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingVerification, StatusReturnedForCorrection,
		StatusApprovedForPayment, StatusPaymentSubmitted,
		StatusRegisteredForPickup, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusRegisteredForPickup || s == StatusRejected
}

// Subtype carries the variant-specific discriminators that drive fee and
// document rules. Unused fields stay at their zero value.
type Subtype struct {
	RegistrationType string `json:"registration_type,omitempty"` // REGULAR or DELAYED
	BurialType       string `json:"burial_type,omitempty"`       // BURIAL or NICHE
	NicheType        string `json:"niche_type,omitempty"`        // CHILD or ADULT
	Copies           int    `json:"copies,omitempty"`            // certificate copies, >= 1
}

// PaymentProof is what the citizen presents after paying at the cashier or
// through the gateway: a receipt number, an uploaded proof document, or
// both. At least one must be present.
type PaymentProof struct {
	ReceiptNumber string `json:"receipt_number,omitempty"`
	DocumentKey   string `json:"document_key,omitempty"`
}

// Empty reports whether neither form of proof is present.
func (p PaymentProof) Empty() bool {
	return p.ReceiptNumber == "" && p.DocumentKey == ""
}

// Request is one permit or certificate request moving through the
// lifecycle. Concrete variants share this shape; the Variant field
// discriminates.
type Request struct {
	ID      string  `json:"id"`
	Variant Variant `json:"variant"`
	OwnerID string  `json:"owner_id"`
	Status  Status  `json:"status"`
	Subtype Subtype `json:"subtype"`

	// ApplicantName and DeceasedName come from the submission form.
	ApplicantName string `json:"applicant_name"`
	DeceasedName  string `json:"deceased_name"`

	// Documents maps a document role (e.g. "deathCertificate") to its
	// document store key. The required roles depend on variant and subtype.
	Documents map[string]string `json:"documents"`

	// Fee breakdown, frozen at submission. Staff may override during a
	// correction round; otherwise immutable.
	Fees fees.Breakdown `json:"fees"`

	// ORCode is the order-of-payment code, generated exactly once at
	// approval.
	ORCode string `json:"or_code,omitempty"`

	PaymentProof PaymentProof `json:"payment_proof"`

	// Processing metadata, stamped by the staff member (or the gateway)
	// that last moved the request.
	ProcessedBy string     `json:"processed_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Remarks     string     `json:"remarks,omitempty"`

	// PickupDeadline is set when confirming payment for a DELAYED death
	// registration: eleven working days out.
	PickupDeadline *time.Time `json:"pickup_deadline,omitempty"`

	// Version guards concurrent transitions: every update must carry the
	// version it read, and exactly one of two racing writers wins.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Request) clone() *Request {
	c := *r
	if r.Documents != nil {
		c.Documents = make(map[string]string, len(r.Documents))
		for k, v := range r.Documents {
			c.Documents[k] = v
		}
	}
	if r.ProcessedAt != nil {
		t := *r.ProcessedAt
		c.ProcessedAt = &t
	}
	if r.PickupDeadline != nil {
		t := *r.PickupDeadline
		c.PickupDeadline = &t
	}
	c.Fees.AddOns = append([]fees.LineItem(nil), r.Fees.AddOns...)
	return &c
}
