package ledger

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newPendingTx(referenceID string) *Transaction {
	return &Transaction{
		UserID:         "user-1",
		Kind:           KindGateway,
		AmountCentavos: 85000,
		ReferenceID:    referenceID,
		EntityType:     "burial_permit",
		EntityID:       "permit-1",
	}
}

// TestRecordPending verifies that a new transaction is stored as PENDING with
// generated fields reflected back to the caller.
func TestRecordPending(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	tx := newPendingTx("OR-BP-1-abc")
	if err := store.RecordPending(ctx, tx); err != nil {
		t.Fatalf("RecordPending failed: %v", err)
	}

	if tx.ID == "" {
		t.Error("expected generated ID to be reflected back")
	}
	if tx.Status != StatusPending {
		t.Errorf("status = %s, want %s", tx.Status, StatusPending)
	}
	if tx.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	got, err := store.GetByReference(ctx, "OR-BP-1-abc")
	if err != nil {
		t.Fatalf("GetByReference failed: %v", err)
	}
	if got.ID != tx.ID {
		t.Errorf("ID = %s, want %s", got.ID, tx.ID)
	}
}

// TestRecordPendingDuplicateReference verifies the duplicate-initiation
// guard: a second PENDING transaction with the same reference is rejected,
// but reusing the reference after finalization is allowed.
func TestRecordPendingDuplicateReference(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.RecordPending(ctx, newPendingTx("OR-1-dup")); err != nil {
		t.Fatalf("first RecordPending failed: %v", err)
	}

	err := store.RecordPending(ctx, newPendingTx("OR-1-dup"))
	if !errors.Is(err, ErrDuplicateReference) {
		t.Errorf("expected ErrDuplicateReference, got %v", err)
	}

	// Once cancelled, the reference is free again.
	if _, err := store.Cancel(ctx, "OR-1-dup"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if err := store.RecordPending(ctx, newPendingTx("OR-1-dup")); err != nil {
		t.Errorf("expected reuse after cancel to succeed, got %v", err)
	}
}

// TestConfirm verifies the PENDING → CONFIRMED transition stamps receipt
// details.
func TestConfirm(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.RecordPending(ctx, newPendingTx("OR-2-conf")); err != nil {
		t.Fatalf("RecordPending failed: %v", err)
	}

	paidAt := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	got, err := store.Confirm(ctx, "OR-2-conf", "RCPT-001", "gcash", paidAt)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	if got.Status != StatusConfirmed {
		t.Errorf("status = %s, want %s", got.Status, StatusConfirmed)
	}
	if got.ReceiptNumber != "RCPT-001" {
		t.Errorf("receipt = %s, want RCPT-001", got.ReceiptNumber)
	}
	if got.PaymentMethod != "gcash" {
		t.Errorf("payment method = %s, want gcash", got.PaymentMethod)
	}
	if got.PaidAt == nil || !got.PaidAt.Equal(paidAt) {
		t.Errorf("paidAt = %v, want %v", got.PaidAt, paidAt)
	}
}

// TestConfirmIdempotency verifies that a second confirmation attempt for the
// same reference fails with ErrAlreadyFinal rather than double-applying.
func TestConfirmIdempotency(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.RecordPending(ctx, newPendingTx("OR-3-idem")); err != nil {
		t.Fatalf("RecordPending failed: %v", err)
	}
	if _, err := store.Confirm(ctx, "OR-3-idem", "RCPT-002", "gcash", time.Now()); err != nil {
		t.Fatalf("first Confirm failed: %v", err)
	}

	_, err := store.Confirm(ctx, "OR-3-idem", "RCPT-002-DUP", "gcash", time.Now())
	if !errors.Is(err, ErrAlreadyFinal) {
		t.Errorf("expected ErrAlreadyFinal on replay, got %v", err)
	}

	// The stored record keeps the first receipt.
	got, err := store.GetByReference(ctx, "OR-3-idem")
	if err != nil {
		t.Fatalf("GetByReference failed: %v", err)
	}
	if got.ReceiptNumber != "RCPT-002" {
		t.Errorf("receipt = %s, want RCPT-002", got.ReceiptNumber)
	}
}

// TestConfirmUnknownReference verifies ErrNotFound for a reference that was
// never initiated.
func TestConfirmUnknownReference(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Confirm(context.Background(), "OR-never", "RCPT", "gcash", time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestCancel verifies the PENDING → CANCELLED transition and that a
// cancelled transaction cannot later be confirmed.
func TestCancel(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.RecordPending(ctx, newPendingTx("OR-4-cancel")); err != nil {
		t.Fatalf("RecordPending failed: %v", err)
	}

	got, err := store.Cancel(ctx, "OR-4-cancel")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("status = %s, want %s", got.Status, StatusCancelled)
	}

	_, err = store.Confirm(ctx, "OR-4-cancel", "RCPT", "gcash", time.Now())
	if !errors.Is(err, ErrAlreadyFinal) {
		t.Errorf("expected ErrAlreadyFinal after cancel, got %v", err)
	}
}

// TestFinalizeInternal verifies that counter payments land directly in
// CONFIRMED with a paid timestamp.
func TestFinalizeInternal(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	tx := newPendingTx("OR-5-counter")
	tx.Kind = KindCounter
	tx.ReceiptNumber = "OR-MANUAL-77"

	got, err := store.FinalizeInternal(ctx, tx)
	if err != nil {
		t.Fatalf("FinalizeInternal failed: %v", err)
	}

	if got.Status != StatusConfirmed {
		t.Errorf("status = %s, want %s", got.Status, StatusConfirmed)
	}
	if got.PaidAt == nil {
		t.Error("expected PaidAt to be defaulted")
	}
	if got.ReceiptNumber != "OR-MANUAL-77" {
		t.Errorf("receipt = %s, want OR-MANUAL-77", got.ReceiptNumber)
	}
}

// TestListByEntity verifies entity scoping and oldest-first ordering.
func TestListByEntity(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := newPendingTx("OR-6-a")
	if err := store.RecordPending(ctx, first); err != nil {
		t.Fatalf("RecordPending failed: %v", err)
	}
	if _, err := store.Cancel(ctx, "OR-6-a"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	second := newPendingTx("OR-6-b")
	if err := store.RecordPending(ctx, second); err != nil {
		t.Fatalf("RecordPending failed: %v", err)
	}

	other := newPendingTx("OR-6-c")
	other.EntityID = "permit-other"
	if err := store.RecordPending(ctx, other); err != nil {
		t.Fatalf("RecordPending failed: %v", err)
	}

	results, err := store.ListByEntity(ctx, "burial_permit", "permit-1")
	if err != nil {
		t.Fatalf("ListByEntity failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(results))
	}
	if results[0].ReferenceID != "OR-6-a" || results[1].ReferenceID != "OR-6-b" {
		t.Errorf("unexpected ordering: %s, %s", results[0].ReferenceID, results[1].ReferenceID)
	}
	if results[0].Status != StatusCancelled {
		t.Errorf("first status = %s, want %s", results[0].Status, StatusCancelled)
	}
}

// TestGetByReferencePrefersPending verifies that when a cancelled and a
// pending transaction share a reference, lookups resolve to the pending one.
func TestGetByReferencePrefersPending(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.RecordPending(ctx, newPendingTx("OR-7-pref")); err != nil {
		t.Fatalf("RecordPending failed: %v", err)
	}
	if _, err := store.Cancel(ctx, "OR-7-pref"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	fresh := newPendingTx("OR-7-pref")
	if err := store.RecordPending(ctx, fresh); err != nil {
		t.Fatalf("second RecordPending failed: %v", err)
	}

	got, err := store.GetByReference(ctx, "OR-7-pref")
	if err != nil {
		t.Fatalf("GetByReference failed: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("status = %s, want %s", got.Status, StatusPending)
	}
	if got.ID != fresh.ID {
		t.Errorf("ID = %s, want %s", got.ID, fresh.ID)
	}
}
