package permit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/baliwag-egov/civreg/internal/fees"
	"github.com/baliwag-egov/civreg/internal/middleware"
)

// PostgresRepository implements Repository using PostgreSQL. Documents and
// the fee breakdown are stored as JSONB; the version column carries the
// optimistic concurrency check.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new Postgres-backed permit repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const permitColumns = `
	id, variant, owner_id, status,
	registration_type, burial_type, niche_type, copies,
	applicant_name, deceased_name, documents, fees,
	or_code, receipt_number, proof_document_key,
	processed_by, processed_at, remarks, pickup_deadline,
	version, created_at, updated_at
`

// Create stores a new request.
func (r *PostgresRepository) Create(ctx context.Context, req *Request) (err error) {
	ctx, endSpan := middleware.StartDBSpan(ctx, "permits", "insert")
	defer func() { endSpan(err) }()

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	req.Version = 1
	req.CreatedAt = now
	req.UpdatedAt = now

	docsJSON, feesJSON, err := encodeJSONFields(req)
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO permits (` + permitColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`
	_, err = r.db.ExecContext(ctx, q,
		req.ID, req.Variant, req.OwnerID, req.Status,
		req.Subtype.RegistrationType, req.Subtype.BurialType,
		req.Subtype.NicheType, req.Subtype.Copies,
		req.ApplicantName, req.DeceasedName, docsJSON, feesJSON,
		nullString(req.ORCode), nullString(req.PaymentProof.ReceiptNumber),
		nullString(req.PaymentProof.DocumentKey),
		nullString(req.ProcessedBy), req.ProcessedAt, req.Remarks, req.PickupDeadline,
		req.Version, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert permit: %w", err)
	}
	return nil
}

// Get retrieves a request by variant and ID.
func (r *PostgresRepository) Get(ctx context.Context, variant Variant, id string) (_ *Request, err error) {
	ctx, endSpan := middleware.StartDBSpan(ctx, "permits", "query")
	defer func() { endSpan(err) }()

	const q = `SELECT ` + permitColumns + ` FROM permits WHERE variant = $1 AND id = $2`
	req, err := scanRequest(r.db.QueryRowContext(ctx, q, variant, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	return req, err
}

// Update persists req under an optimistic version check.
func (r *PostgresRepository) Update(ctx context.Context, req *Request) (err error) {
	ctx, endSpan := middleware.StartDBSpan(ctx, "permits", "update")
	defer func() { endSpan(err) }()

	docsJSON, feesJSON, err := encodeJSONFields(req)
	if err != nil {
		return err
	}

	const q = `
		UPDATE permits SET
			status = $3,
			registration_type = $4, burial_type = $5, niche_type = $6, copies = $7,
			documents = $8, fees = $9,
			or_code = $10, receipt_number = $11, proof_document_key = $12,
			processed_by = $13, processed_at = $14, remarks = $15, pickup_deadline = $16,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
	`
	res, err := r.db.ExecContext(ctx, q,
		req.ID, req.Version, req.Status,
		req.Subtype.RegistrationType, req.Subtype.BurialType,
		req.Subtype.NicheType, req.Subtype.Copies,
		docsJSON, feesJSON,
		nullString(req.ORCode), nullString(req.PaymentProof.ReceiptNumber),
		nullString(req.PaymentProof.DocumentKey),
		nullString(req.ProcessedBy), req.ProcessedAt, req.Remarks, req.PickupDeadline,
	)
	if err != nil {
		return fmt.Errorf("update permit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update permit: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing row from a lost race.
		var exists bool
		checkErr := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM permits WHERE id = $1)`, req.ID,
		).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("update permit: %w", checkErr)
		}
		if !exists {
			return ErrRequestNotFound
		}
		return ErrVersionConflict
	}
	req.Version++
	return nil
}

// ListByStatus returns requests of a variant in the given status, oldest
// first.
func (r *PostgresRepository) ListByStatus(ctx context.Context, variant Variant, status Status) (_ []*Request, err error) {
	ctx, endSpan := middleware.StartDBSpan(ctx, "permits", "query")
	defer func() { endSpan(err) }()

	const q = `
		SELECT ` + permitColumns + `
		FROM permits
		WHERE variant = $1 AND status = $2
		ORDER BY created_at ASC
	`
	return r.queryRequests(ctx, q, variant, status)
}

// ListByOwner returns a user's requests, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) (_ []*Request, err error) {
	ctx, endSpan := middleware.StartDBSpan(ctx, "permits", "query")
	defer func() { endSpan(err) }()

	const q = `
		SELECT ` + permitColumns + `
		FROM permits
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`
	return r.queryRequests(ctx, q, ownerID)
}

func (r *PostgresRepository) queryRequests(ctx context.Context, query string, args ...any) ([]*Request, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list permits: %w", err)
	}
	defer rows.Close()

	var results []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, req)
	}
	return results, rows.Err()
}

type requestScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row requestScanner) (*Request, error) {
	var (
		req                             Request
		docsJSON, feesJSON              []byte
		orCode, receiptNumber, proofKey sql.NullString
		processedBy                     sql.NullString
		processedAt, pickupDeadline     sql.NullTime
	)
	err := row.Scan(
		&req.ID, &req.Variant, &req.OwnerID, &req.Status,
		&req.Subtype.RegistrationType, &req.Subtype.BurialType,
		&req.Subtype.NicheType, &req.Subtype.Copies,
		&req.ApplicantName, &req.DeceasedName, &docsJSON, &feesJSON,
		&orCode, &receiptNumber, &proofKey,
		&processedBy, &processedAt, &req.Remarks, &pickupDeadline,
		&req.Version, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan permit: %w", err)
	}

	req.ORCode = orCode.String
	req.PaymentProof.ReceiptNumber = receiptNumber.String
	req.PaymentProof.DocumentKey = proofKey.String
	req.ProcessedBy = processedBy.String
	if processedAt.Valid {
		t := processedAt.Time
		req.ProcessedAt = &t
	}
	if pickupDeadline.Valid {
		t := pickupDeadline.Time
		req.PickupDeadline = &t
	}

	if len(docsJSON) > 0 {
		if err := json.Unmarshal(docsJSON, &req.Documents); err != nil {
			return nil, fmt.Errorf("decode permit documents: %w", err)
		}
	}
	if len(feesJSON) > 0 {
		var b fees.Breakdown
		if err := json.Unmarshal(feesJSON, &b); err != nil {
			return nil, fmt.Errorf("decode permit fees: %w", err)
		}
		req.Fees = b
	}
	return &req, nil
}

func encodeJSONFields(req *Request) (docsJSON, feesJSON []byte, err error) {
	docs := req.Documents
	if docs == nil {
		docs = map[string]string{}
	}
	docsJSON, err = json.Marshal(docs)
	if err != nil {
		return nil, nil, fmt.Errorf("encode permit documents: %w", err)
	}
	feesJSON, err = json.Marshal(req.Fees)
	if err != nil {
		return nil, nil, fmt.Errorf("encode permit fees: %w", err)
	}
	return docsJSON, feesJSON, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
