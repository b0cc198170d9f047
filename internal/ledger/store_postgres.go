package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/baliwag-egov/civreg/internal/middleware"
)

// uniqueViolation is the Postgres error code raised by the partial unique
// index on (reference_id) WHERE status = 'PENDING'.
const uniqueViolation = "23505"

// PostgresStore implements Store using PostgreSQL. Status transitions rely
// on conditional UPDATEs so concurrent confirmations resolve to exactly one
// winner without explicit locking.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres-backed ledger store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// RecordPending creates a PENDING transaction.
func (s *PostgresStore) RecordPending(ctx context.Context, tx *Transaction) (err error) {
	ctx, endSpan := middleware.StartDBSpan(ctx, "transactions", "insert")
	defer func() { endSpan(err) }()

	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	tx.Status = StatusPending
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	const q = `
		INSERT INTO transactions
			(id, user_id, kind, amount_centavos, reference_id, entity_type, entity_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(ctx, q,
		tx.ID, tx.UserID, tx.Kind, tx.AmountCentavos, tx.ReferenceID,
		tx.EntityType, tx.EntityID, tx.Status, tx.CreatedAt, tx.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrDuplicateReference
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// Confirm transitions PENDING → CONFIRMED for the matching reference.
func (s *PostgresStore) Confirm(ctx context.Context, referenceID, receiptNumber, paymentMethod string, paidAt time.Time) (_ *Transaction, err error) {
	ctx, endSpan := middleware.StartDBSpan(ctx, "transactions", "update")
	defer func() { endSpan(err) }()

	const q = `
		UPDATE transactions
		SET status = $2, receipt_number = $3, payment_method = $4, paid_at = $5, updated_at = now()
		WHERE reference_id = $1 AND status = $6
		RETURNING id, user_id, kind, amount_centavos, reference_id, entity_type, entity_id, status,
		          receipt_number, payment_method, paid_at, created_at, updated_at
	`
	row := s.db.QueryRowContext(ctx, q, referenceID, StatusConfirmed, receiptNumber, paymentMethod, paidAt.UTC(), StatusPending)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.classifyMissing(ctx, referenceID)
	}
	return tx, err
}

// Cancel transitions PENDING → CANCELLED for the matching reference.
func (s *PostgresStore) Cancel(ctx context.Context, referenceID string) (_ *Transaction, err error) {
	ctx, endSpan := middleware.StartDBSpan(ctx, "transactions", "update")
	defer func() { endSpan(err) }()

	const q = `
		UPDATE transactions
		SET status = $2, updated_at = now()
		WHERE reference_id = $1 AND status = $3
		RETURNING id, user_id, kind, amount_centavos, reference_id, entity_type, entity_id, status,
		          receipt_number, payment_method, paid_at, created_at, updated_at
	`
	row := s.db.QueryRowContext(ctx, q, referenceID, StatusCancelled, StatusPending)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.classifyMissing(ctx, referenceID)
	}
	return tx, err
}

// classifyMissing distinguishes a finalized transaction from an unknown
// reference after a conditional update matched no rows.
func (s *PostgresStore) classifyMissing(ctx context.Context, referenceID string) error {
	var status Status
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM transactions WHERE reference_id = $1 ORDER BY created_at DESC LIMIT 1`,
		referenceID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("classify transaction state: %w", err)
	}
	return ErrAlreadyFinal
}

// FinalizeInternal creates a CONFIRMED transaction directly.
func (s *PostgresStore) FinalizeInternal(ctx context.Context, tx *Transaction) (_ *Transaction, err error) {
	ctx, endSpan := middleware.StartDBSpan(ctx, "transactions", "insert")
	defer func() { endSpan(err) }()

	stored := *tx
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	stored.Status = StatusConfirmed
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	if stored.PaidAt == nil {
		stored.PaidAt = &now
	}

	const q = `
		INSERT INTO transactions
			(id, user_id, kind, amount_centavos, reference_id, entity_type, entity_id, status,
			 receipt_number, payment_method, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.db.ExecContext(ctx, q,
		stored.ID, stored.UserID, stored.Kind, stored.AmountCentavos, stored.ReferenceID,
		stored.EntityType, stored.EntityID, stored.Status,
		stored.ReceiptNumber, stored.PaymentMethod, stored.PaidAt, stored.CreatedAt, stored.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert confirmed transaction: %w", err)
	}
	return &stored, nil
}

// GetByReference retrieves a transaction by reference ID, preferring the
// PENDING one when several share a reference.
func (s *PostgresStore) GetByReference(ctx context.Context, referenceID string) (_ *Transaction, err error) {
	ctx, endSpan := middleware.StartDBSpan(ctx, "transactions", "query")
	defer func() { endSpan(err) }()

	const q = `
		SELECT id, user_id, kind, amount_centavos, reference_id, entity_type, entity_id, status,
		       receipt_number, payment_method, paid_at, created_at, updated_at
		FROM transactions
		WHERE reference_id = $1
		ORDER BY (status = 'PENDING') DESC, created_at DESC
		LIMIT 1
	`
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, q, referenceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return tx, err
}

// ListByEntity retrieves all transactions for an entity, oldest first.
func (s *PostgresStore) ListByEntity(ctx context.Context, entityType, entityID string) (_ []*Transaction, err error) {
	ctx, endSpan := middleware.StartDBSpan(ctx, "transactions", "query")
	defer func() { endSpan(err) }()

	const q = `
		SELECT id, user_id, kind, amount_centavos, reference_id, entity_type, entity_id, status,
		       receipt_number, payment_method, paid_at, created_at, updated_at
		FROM transactions
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, q, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var results []*Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, tx)
	}
	return results, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	var (
		tx            Transaction
		receiptNumber sql.NullString
		paymentMethod sql.NullString
		paidAt        sql.NullTime
	)
	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.Kind, &tx.AmountCentavos, &tx.ReferenceID,
		&tx.EntityType, &tx.EntityID, &tx.Status,
		&receiptNumber, &paymentMethod, &paidAt, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	tx.ReceiptNumber = receiptNumber.String
	tx.PaymentMethod = paymentMethod.String
	if paidAt.Valid {
		t := paidAt.Time
		tx.PaidAt = &t
	}
	return &tx, nil
}
