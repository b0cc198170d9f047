package permit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/baliwag-egov/civreg/internal/audit"
	"github.com/baliwag-egov/civreg/internal/fees"
	"github.com/baliwag-egov/civreg/internal/gateway"
	"github.com/baliwag-egov/civreg/internal/ledger"
	"github.com/baliwag-egov/civreg/internal/middleware"
	"github.com/baliwag-egov/civreg/internal/validate"
)

// Engine error taxonomy. Handlers map each to a distinct response status.
var (
	// ErrUnauthorized means no identity is present on the request.
	ErrUnauthorized = errors.New("authentication required")
	// ErrForbidden means the identity's role is insufficient or the entity
	// belongs to someone else.
	ErrForbidden = errors.New("operation not allowed for this identity")
	// ErrNotFound means the entity or transaction does not exist.
	ErrNotFound = errors.New("request not found")
	// ErrValidation means the input is incomplete or inconsistent. The
	// wrapping message names what is missing.
	ErrValidation = errors.New("validation failed")
	// ErrPrecondition means the entity is not in the status the operation
	// requires, usually because a concurrent transition won.
	ErrPrecondition = errors.New("request is not in the required status")
)

// GatewayActor is stamped as the processor when a gateway callback, rather
// than a staff member, completes a payment.
const GatewayActor = "payment-gateway"

// Engine drives every request variant through the shared lifecycle,
// enforcing status preconditions, role gates and ownership, and recording
// an audit entry for each transition.
type Engine struct {
	repo    Repository
	ledger  ledger.Store
	audits  audit.Repository
	gateway gateway.Client
	clock   *orClock
	now     func() time.Time
	logger  *slog.Logger
	metrics *Metrics
}

// NewEngine creates a lifecycle engine. gw may be nil when no payment
// gateway is configured; InitiatePayment then always takes the fallback
// path.
func NewEngine(repo Repository, ledgerStore ledger.Store, audits audit.Repository, gw gateway.Client, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		repo:    repo,
		ledger:  ledgerStore,
		audits:  audits,
		gateway: gw,
		clock:   newORClock(),
		now:     time.Now,
		logger:  logger,
	}
}

// UseMetrics attaches the transition counters. Call before serving; an
// engine without metrics simply does not count.
func (e *Engine) UseMetrics(m *Metrics) {
	e.metrics = m
}

// SubmitInput is a citizen's submission for any variant.
type SubmitInput struct {
	Subtype       Subtype
	ApplicantName string
	DeceasedName  string
	// Documents maps document roles to document store keys. The handler
	// layer persists the uploads before calling Submit.
	Documents map[string]string
}

// Submit validates a submission, freezes its fee breakdown and creates the
// request in PENDING_VERIFICATION.
func (e *Engine) Submit(ctx context.Context, variant Variant, in SubmitInput) (*Request, error) {
	actor, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := Config(variant)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	applicant, err := validate.PersonName(in.ApplicantName)
	if err != nil {
		return nil, fmt.Errorf("%w: applicant name: %v", ErrValidation, err)
	}
	deceased, err := validate.PersonName(in.DeceasedName)
	if err != nil {
		return nil, fmt.Errorf("%w: deceased name: %v", ErrValidation, err)
	}
	if missing := missingDocuments(cfg, in.Subtype, in.Documents); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing documents: %v", ErrValidation, missing)
	}

	breakdown, err := fees.Quote(cfg.FeeInput(in.Subtype))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	req := &Request{
		Variant:       variant,
		OwnerID:       actor.UserID,
		Status:        StatusPendingVerification,
		Subtype:       in.Subtype,
		ApplicantName: applicant,
		DeceasedName:  deceased,
		Documents:     in.Documents,
		Fees:          breakdown,
	}
	if err := e.repo.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	e.metrics.observe(variant, "submit")
	audit.Log(ctx, e.audits, audit.Record{
		EntityType: string(variant),
		EntityID:   req.ID,
		Action:     "submit",
		Details:    fmt.Sprintf("total fee %s", fees.FormatPeso(breakdown.Total)),
	})
	return req, nil
}

// Resubmit re-enters PENDING_VERIFICATION from a correction round. New
// document uploads replace the corresponding roles; the full required set
// must be present afterward. Prior staff remarks remain readable in the
// history.
func (e *Engine) Resubmit(ctx context.Context, variant Variant, id string, documents map[string]string, version int64) (*Request, error) {
	actor, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	req, err := e.load(ctx, variant, id)
	if err != nil {
		return nil, err
	}
	if req.OwnerID != actor.UserID {
		return nil, fmt.Errorf("%w: not the submitter", ErrForbidden)
	}
	if req.Status != StatusReturnedForCorrection {
		return nil, fmt.Errorf("%w: resubmission requires %s, currently %s", ErrPrecondition, StatusReturnedForCorrection, req.Status)
	}

	cfg, _ := Config(variant)
	if req.Documents == nil {
		req.Documents = make(map[string]string, len(documents))
	}
	for role, key := range documents {
		req.Documents[role] = key
	}
	if missing := missingDocuments(cfg, req.Subtype, req.Documents); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing documents: %v", ErrValidation, missing)
	}

	req.Status = StatusPendingVerification
	req.Version = version
	if err := e.save(ctx, req); err != nil {
		return nil, err
	}

	e.metrics.observe(variant, "resubmit")
	audit.Log(ctx, e.audits, audit.Record{
		EntityType: string(variant),
		EntityID:   req.ID,
		Action:     "resubmit",
	})
	return req, nil
}

// Approve moves a pending request to APPROVED_FOR_PAYMENT, generating its
// order-of-payment code. Staff only.
func (e *Engine) Approve(ctx context.Context, variant Variant, id string, version int64) (*Request, error) {
	actor, err := requireStaff(ctx)
	if err != nil {
		return nil, err
	}
	req, err := e.load(ctx, variant, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPendingVerification {
		return nil, fmt.Errorf("%w: approval requires %s, currently %s", ErrPrecondition, StatusPendingVerification, req.Status)
	}

	cfg, _ := Config(variant)
	req.Status = StatusApprovedForPayment
	req.ORCode = generateORCode(e.clock, cfg.ORPrefix, req.ID)
	e.stampProcessor(req, actor.UserID)
	req.Version = version
	if err := e.save(ctx, req); err != nil {
		return nil, err
	}

	e.metrics.observe(variant, "approve")
	audit.Log(ctx, e.audits, audit.Record{
		EntityType: string(variant),
		EntityID:   req.ID,
		Action:     "approve",
		Details:    fmt.Sprintf("order of payment %s", req.ORCode),
	})
	return req, nil
}

// Return sends a pending request back for correction with the staff
// member's remarks — or, for variants with no correction path, rejects it
// terminally. Staff only; remarks are mandatory.
func (e *Engine) Return(ctx context.Context, variant Variant, id, remarks string, version int64) (*Request, error) {
	actor, err := requireStaff(ctx)
	if err != nil {
		return nil, err
	}
	remarks, err = validate.Remarks(remarks)
	if err != nil {
		return nil, fmt.Errorf("%w: remarks are required when returning a request: %v", ErrValidation, err)
	}
	req, err := e.load(ctx, variant, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPendingVerification {
		return nil, fmt.Errorf("%w: return requires %s, currently %s", ErrPrecondition, StatusPendingVerification, req.Status)
	}

	cfg, _ := Config(variant)
	action := "return"
	req.Status = StatusReturnedForCorrection
	if cfg.RejectTerminal {
		action = "reject"
		req.Status = StatusRejected
	}
	req.Remarks = remarks
	e.stampProcessor(req, actor.UserID)
	req.Version = version
	if err := e.save(ctx, req); err != nil {
		return nil, err
	}

	e.metrics.observe(variant, action)
	audit.Log(ctx, e.audits, audit.Record{
		EntityType: string(variant),
		EntityID:   req.ID,
		Action:     action,
		Details:    remarks,
	})
	return req, nil
}

// OverrideFees lets staff requote a request's frozen fee breakdown during a
// correction round, typically after the citizen declared the wrong
// sub-type. The new sub-type replaces the old and the breakdown is frozen
// again.
func (e *Engine) OverrideFees(ctx context.Context, variant Variant, id string, sub Subtype, version int64) (*Request, error) {
	actor, err := requireStaff(ctx)
	if err != nil {
		return nil, err
	}
	req, err := e.load(ctx, variant, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusReturnedForCorrection {
		return nil, fmt.Errorf("%w: fee override requires %s, currently %s", ErrPrecondition, StatusReturnedForCorrection, req.Status)
	}

	cfg, _ := Config(variant)
	breakdown, err := fees.Quote(cfg.FeeInput(sub))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	req.Subtype = sub
	req.Fees = breakdown
	e.stampProcessor(req, actor.UserID)
	req.Version = version
	if err := e.save(ctx, req); err != nil {
		return nil, err
	}

	audit.Log(ctx, e.audits, audit.Record{
		EntityType: string(variant),
		EntityID:   req.ID,
		Action:     "override_fees",
		Details:    fmt.Sprintf("new total %s", fees.FormatPeso(breakdown.Total)),
	})
	return req, nil
}

// SubmitPayment records the citizen's payment proof: a receipt number from
// the cashier, an uploaded proof document, or both. Owner only.
func (e *Engine) SubmitPayment(ctx context.Context, variant Variant, id string, proof PaymentProof, version int64) (*Request, error) {
	actor, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if proof.Empty() {
		return nil, fmt.Errorf("%w: a receipt number or a proof document is required", ErrValidation)
	}
	if proof.ReceiptNumber != "" {
		if _, err := validate.ReceiptNumber(proof.ReceiptNumber); err != nil {
			return nil, fmt.Errorf("%w: receipt number: %v", ErrValidation, err)
		}
	}
	req, err := e.load(ctx, variant, id)
	if err != nil {
		return nil, err
	}
	if req.OwnerID != actor.UserID {
		return nil, fmt.Errorf("%w: not the submitter", ErrForbidden)
	}
	if req.Status != StatusApprovedForPayment {
		return nil, fmt.Errorf("%w: payment submission requires %s, currently %s", ErrPrecondition, StatusApprovedForPayment, req.Status)
	}

	req.Status = StatusPaymentSubmitted
	req.PaymentProof = proof
	req.Version = version
	if err := e.save(ctx, req); err != nil {
		return nil, err
	}

	e.metrics.observe(variant, "submit_payment")
	audit.Log(ctx, e.audits, audit.Record{
		EntityType: string(variant),
		EntityID:   req.ID,
		Action:     "submit_payment",
		Details:    paymentProofDetails(proof),
	})
	return req, nil
}

// ConfirmPayment verifies the submitted proof, writes a CONFIRMED
// transaction and releases the request for pickup. Staff only. For DELAYED
// death registrations the pickup deadline is set eleven working days out.
func (e *Engine) ConfirmPayment(ctx context.Context, variant Variant, id string, version int64) (*Request, error) {
	actor, err := requireStaff(ctx)
	if err != nil {
		return nil, err
	}
	req, err := e.load(ctx, variant, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPaymentSubmitted {
		return nil, fmt.Errorf("%w: confirmation requires %s, currently %s", ErrPrecondition, StatusPaymentSubmitted, req.Status)
	}

	cfg, _ := Config(variant)
	ok, err := fees.Recompute(cfg.FeeInput(req.Subtype), req.Fees)
	if err != nil || !ok {
		return nil, fmt.Errorf("%w: frozen fee breakdown no longer matches the tariff for its sub-type", ErrValidation)
	}

	now := e.now().UTC()
	req.Status = StatusRegisteredForPickup
	e.stampProcessor(req, actor.UserID)
	e.setPickupDeadline(req, now)
	req.Version = version
	if err := e.save(ctx, req); err != nil {
		return nil, err
	}

	// The ledger write comes after the version check has picked a winner;
	// a lost race must never leave a stray CONFIRMED transaction behind.
	if _, err := e.ledger.FinalizeInternal(ctx, &ledger.Transaction{
		UserID:         req.OwnerID,
		Kind:           ledger.KindCounter,
		AmountCentavos: req.Fees.Total,
		ReferenceID:    req.ORCode,
		EntityType:     string(variant),
		EntityID:       req.ID,
		ReceiptNumber:  req.PaymentProof.ReceiptNumber,
		PaidAt:         &now,
	}); err != nil {
		return nil, fmt.Errorf("record transaction: %w", err)
	}

	e.metrics.observe(variant, "confirm_payment")
	audit.Log(ctx, e.audits, audit.Record{
		EntityType: string(variant),
		EntityID:   req.ID,
		Action:     "confirm_payment",
		Details:    fmt.Sprintf("confirmed %s against %s", fees.FormatPeso(req.Fees.Total), req.ORCode),
	})
	return req, nil
}

// RejectPayment sends a submitted payment back: the proof is cleared and
// the request reverts to APPROVED_FOR_PAYMENT so the citizen can resubmit.
// Staff only; remarks are mandatory.
func (e *Engine) RejectPayment(ctx context.Context, variant Variant, id, remarks string, version int64) (*Request, error) {
	actor, err := requireStaff(ctx)
	if err != nil {
		return nil, err
	}
	remarks, err = validate.Remarks(remarks)
	if err != nil {
		return nil, fmt.Errorf("%w: remarks are required when rejecting a payment: %v", ErrValidation, err)
	}
	req, err := e.load(ctx, variant, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPaymentSubmitted {
		return nil, fmt.Errorf("%w: rejection requires %s, currently %s", ErrPrecondition, StatusPaymentSubmitted, req.Status)
	}

	req.Status = StatusApprovedForPayment
	req.PaymentProof = PaymentProof{}
	req.Remarks = "payment rejected: " + remarks
	e.stampProcessor(req, actor.UserID)
	req.Version = version
	if err := e.save(ctx, req); err != nil {
		return nil, err
	}

	e.metrics.observe(variant, "reject_payment")
	audit.Log(ctx, e.audits, audit.Record{
		EntityType: string(variant),
		EntityID:   req.ID,
		Action:     "reject_payment",
		Details:    remarks,
	})
	return req, nil
}

// InitiateResult is the outcome of a gateway initiation. When Fallback is
// true the gateway was unreachable and the citizen should be shown manual
// payment instructions; a PENDING transaction exists either way.
type InitiateResult struct {
	ReferenceID string `json:"reference_id"`
	GatewayURL  string `json:"gateway_url,omitempty"`
	Fallback    bool   `json:"fallback"`
}

// InitiatePayment opens an online payment session with the external
// gateway for an approved request. The PENDING transaction is recorded
// before the gateway is called, so an unreachable gateway degrades to the
// manual path instead of failing. Owner only.
func (e *Engine) InitiatePayment(ctx context.Context, variant Variant, id string) (*InitiateResult, error) {
	actor, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	req, err := e.load(ctx, variant, id)
	if err != nil {
		return nil, err
	}
	if req.OwnerID != actor.UserID {
		return nil, fmt.Errorf("%w: not the submitter", ErrForbidden)
	}
	if req.Status != StatusApprovedForPayment {
		return nil, fmt.Errorf("%w: online payment requires %s, currently %s", ErrPrecondition, StatusApprovedForPayment, req.Status)
	}

	if err := e.ledger.RecordPending(ctx, &ledger.Transaction{
		UserID:         req.OwnerID,
		Kind:           ledger.KindGateway,
		AmountCentavos: req.Fees.Total,
		ReferenceID:    req.ORCode,
		EntityType:     string(variant),
		EntityID:       req.ID,
	}); err != nil {
		if errors.Is(err, ledger.ErrDuplicateReference) {
			return nil, fmt.Errorf("%w: a payment session for %s is already open", ErrPrecondition, req.ORCode)
		}
		return nil, fmt.Errorf("record pending transaction: %w", err)
	}

	audit.Log(ctx, e.audits, audit.Record{
		EntityType: string(variant),
		EntityID:   req.ID,
		Action:     "initiate_payment",
		Details:    fmt.Sprintf("gateway session for %s, %s", req.ORCode, fees.FormatPeso(req.Fees.Total)),
	})

	result := &InitiateResult{ReferenceID: req.ORCode}
	if e.gateway == nil {
		result.Fallback = true
		return result, nil
	}

	resp, err := e.gateway.Initiate(ctx, gateway.InitiateRequest{
		ReferenceID:    req.ORCode,
		AmountCentavos: req.Fees.Total,
		Description:    fmt.Sprintf("%s %s", variant, req.ID),
		PayerName:      req.ApplicantName,
	})
	if err != nil {
		// The PENDING transaction stays on the books; the citizen pays at
		// the counter and staff settle it against the same reference.
		e.logger.WarnContext(ctx, "gateway initiation failed, degrading to manual payment",
			"reference_id", req.ORCode, "error", err)
		result.Fallback = true
		return result, nil
	}
	result.GatewayURL = resp.GatewayURL
	return result, nil
}

// HandleCallback settles a gateway notification against the ledger and, on
// a paid outcome, releases the request for pickup. Replayed callbacks for a
// finalized reference are acknowledged without side effects. The handler
// layer has already verified the client_system field.
func (e *Engine) HandleCallback(ctx context.Context, data gateway.CallbackData) error {
	tx, err := e.ledger.GetByReference(ctx, data.ReferenceID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return fmt.Errorf("%w: no transaction for reference %s", ErrNotFound, data.ReferenceID)
		}
		return fmt.Errorf("look up transaction: %w", err)
	}

	switch data.PaymentStatus {
	case gateway.CallbackPaid:
		confirmed, err := e.ledger.Confirm(ctx, data.ReferenceID, data.ReceiptNumber, data.PaymentMethod, data.PaidTime())
		if err != nil {
			if errors.Is(err, ledger.ErrAlreadyFinal) {
				// Duplicate delivery; the first one already did the work.
				e.logger.InfoContext(ctx, "ignoring replayed gateway callback",
					"reference_id", data.ReferenceID)
				return nil
			}
			return fmt.Errorf("confirm transaction: %w", err)
		}

		audit.Log(ctx, e.audits, audit.Record{
			Actor:      GatewayActor,
			EntityType: tx.EntityType,
			EntityID:   tx.EntityID,
			Action:     "gateway_callback",
			Details:    fmt.Sprintf("paid %s via %s, receipt %s", fees.FormatPeso(confirmed.AmountCentavos), data.PaymentMethod, data.ReceiptNumber),
		})
		e.releaseAfterGatewayPayment(ctx, tx, data)
		return nil

	case gateway.CallbackFailed, gateway.CallbackCancelled:
		if _, err := e.ledger.Cancel(ctx, data.ReferenceID); err != nil {
			if errors.Is(err, ledger.ErrAlreadyFinal) {
				return nil
			}
			return fmt.Errorf("cancel transaction: %w", err)
		}
		audit.Log(ctx, e.audits, audit.Record{
			Actor:      GatewayActor,
			EntityType: tx.EntityType,
			EntityID:   tx.EntityID,
			Action:     "gateway_callback",
			Details:    fmt.Sprintf("payment %s for %s", data.PaymentStatus, data.ReferenceID),
		})
		return nil

	case gateway.CallbackPending:
		// Informational; nothing to settle yet.
		return nil

	default:
		return fmt.Errorf("%w: unknown payment status %q", ErrValidation, data.PaymentStatus)
	}
}

// releaseAfterGatewayPayment advances the paid request to
// REGISTERED_FOR_PICKUP. A lost race against a concurrent staff transition
// is logged and absorbed; the confirmed transaction is the source of truth
// either way.
func (e *Engine) releaseAfterGatewayPayment(ctx context.Context, tx *ledger.Transaction, data gateway.CallbackData) {
	variant := Variant(tx.EntityType)
	req, err := e.repo.Get(ctx, variant, tx.EntityID)
	if err != nil {
		e.logger.ErrorContext(ctx, "paid request missing after gateway confirmation",
			"reference_id", data.ReferenceID, "entity_id", tx.EntityID, "error", err)
		return
	}
	if req.Status != StatusApprovedForPayment && req.Status != StatusPaymentSubmitted {
		e.logger.WarnContext(ctx, "paid request not awaiting payment, leaving status as is",
			"reference_id", data.ReferenceID, "status", req.Status)
		return
	}

	req.Status = StatusRegisteredForPickup
	req.PaymentProof = PaymentProof{ReceiptNumber: data.ReceiptNumber}
	e.stampProcessor(req, GatewayActor)
	e.setPickupDeadline(req, e.now().UTC())
	if err := e.repo.Update(ctx, req); err != nil {
		e.logger.WarnContext(ctx, "could not release paid request, concurrent transition won",
			"reference_id", data.ReferenceID, "error", err)
		return
	}
	e.metrics.observe(variant, "gateway_callback")
}

// Get retrieves a request. Citizens see only their own; staff see all.
func (e *Engine) Get(ctx context.Context, variant Variant, id string) (*Request, error) {
	actor, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	req, err := e.load(ctx, variant, id)
	if err != nil {
		return nil, err
	}
	if req.OwnerID != actor.UserID && !actor.Role.IsStaff() {
		return nil, fmt.Errorf("%w: not the submitter", ErrForbidden)
	}
	return req, nil
}

// ListQueue returns the staff verification queue for a variant: all
// requests awaiting verification, oldest first. Staff only.
func (e *Engine) ListQueue(ctx context.Context, variant Variant) ([]*Request, error) {
	if _, err := requireStaff(ctx); err != nil {
		return nil, err
	}
	if _, err := Config(variant); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return e.repo.ListByStatus(ctx, variant, StatusPendingVerification)
}

// ListMine returns the caller's own requests across variants, newest
// first.
func (e *Engine) ListMine(ctx context.Context) ([]*Request, error) {
	actor, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	return e.repo.ListByOwner(ctx, actor.UserID)
}

// History is a request's full trail: its audit entries, newest first, and
// its ledger transactions, oldest first.
type History struct {
	Request      *Request              `json:"request"`
	Entries      []*audit.Entry        `json:"entries"`
	Transactions []*ledger.Transaction `json:"transactions"`
}

// GetHistory returns the audit and payment trail of a request. Citizens
// see only their own; staff see all.
func (e *Engine) GetHistory(ctx context.Context, variant Variant, id string) (*History, error) {
	req, err := e.Get(ctx, variant, id)
	if err != nil {
		return nil, err
	}

	entries, err := e.audits.QueryByEntity(string(variant), id, 0)
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	txs, err := e.ledger.ListByEntity(ctx, string(variant), id)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}

	audit.Log(ctx, e.audits, audit.Record{
		EntityType: string(variant),
		EntityID:   id,
		Action:     "view_history",
	})
	return &History{Request: req, Entries: entries, Transactions: txs}, nil
}

func (e *Engine) load(ctx context.Context, variant Variant, id string) (*Request, error) {
	if _, err := Config(variant); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	req, err := e.repo.Get(ctx, variant, id)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return nil, fmt.Errorf("%w: %s %s", ErrNotFound, variant, id)
		}
		return nil, fmt.Errorf("load request: %w", err)
	}
	return req, nil
}

// save persists a transition, mapping a lost optimistic-concurrency race to
// the precondition error the caller already handles.
func (e *Engine) save(ctx context.Context, req *Request) error {
	err := e.repo.Update(ctx, req)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrVersionConflict) {
		return fmt.Errorf("%w: the request was processed concurrently", ErrPrecondition)
	}
	if errors.Is(err, ErrRequestNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, req.Variant, req.ID)
	}
	return fmt.Errorf("save request: %w", err)
}

func (e *Engine) stampProcessor(req *Request, actor string) {
	now := e.now().UTC()
	req.ProcessedBy = actor
	req.ProcessedAt = &now
}

// setPickupDeadline applies the eleven-working-day rule for DELAYED death
// registrations.
func (e *Engine) setPickupDeadline(req *Request, from time.Time) {
	if req.Variant == VariantDeathRegistration && req.Subtype.RegistrationType == fees.RegistrationDelayed {
		deadline := addWorkingDays(from, pickupWorkingDays)
		req.PickupDeadline = &deadline
	}
}

func requireIdentity(ctx context.Context) (middleware.Identity, error) {
	actor := middleware.GetIdentity(ctx)
	if actor.UserID == "" {
		return middleware.Identity{}, ErrUnauthorized
	}
	return actor, nil
}

func requireStaff(ctx context.Context) (middleware.Identity, error) {
	actor, err := requireIdentity(ctx)
	if err != nil {
		return middleware.Identity{}, err
	}
	if !actor.Role.IsStaff() {
		return middleware.Identity{}, fmt.Errorf("%w: staff role required", ErrForbidden)
	}
	return actor, nil
}

func paymentProofDetails(proof PaymentProof) string {
	switch {
	case proof.ReceiptNumber != "" && proof.DocumentKey != "":
		return fmt.Sprintf("receipt %s with proof document", proof.ReceiptNumber)
	case proof.ReceiptNumber != "":
		return "receipt " + proof.ReceiptNumber
	default:
		return "proof document uploaded"
	}
}
