//go:build integration

package migrations_test

import (
	"context"
	"testing"

	"github.com/baliwag-egov/civreg/internal/fees"
	"github.com/baliwag-egov/civreg/internal/permit"
)

// TestMigration000001_PermitRoundTrip drives the Postgres repository
// against the real schema: a freshly submitted burial permit leaves
// registration_type, niche_type, or_code, remarks and every other optional
// field empty, and the row must insert, read back and update anyway.
func TestMigration000001_PermitRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := permit.NewPostgresRepository(db)
	ctx := context.Background()

	req := &permit.Request{
		Variant:       permit.VariantBurialPermit,
		OwnerID:       "test-citizen",
		Status:        permit.StatusPendingVerification,
		Subtype:       permit.Subtype{BurialType: "BURIAL"},
		ApplicantName: "Juan dela Cruz",
		DeceasedName:  "Pedro dela Cruz",
		Documents: map[string]string{
			permit.DocDeathCertificate: "docs/dc.pdf",
			permit.DocValidID:          "docs/id.jpg",
		},
		Fees: fees.Breakdown{Base: 30000, Total: 30000},
	}
	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	t.Cleanup(func() {
		db.Exec(`DELETE FROM permits WHERE id = $1`, req.ID)
	})

	got, err := repo.Get(ctx, permit.VariantBurialPermit, req.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != permit.StatusPendingVerification {
		t.Errorf("status = %s, want %s", got.Status, permit.StatusPendingVerification)
	}
	if got.Subtype.BurialType != "BURIAL" || got.Subtype.RegistrationType != "" || got.Subtype.NicheType != "" {
		t.Errorf("subtype = %+v", got.Subtype)
	}
	if got.ORCode != "" || got.Remarks != "" || got.ProcessedAt != nil {
		t.Errorf("optional fields should read back empty: %+v", got)
	}
	if got.Version != 1 {
		t.Errorf("version = %d, want 1", got.Version)
	}

	// An approval-shaped update still carries empty remarks.
	got.Status = permit.StatusApprovedForPayment
	got.ORCode = "OR-BP-test-" + req.ID[:8]
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	again, err := repo.Get(ctx, permit.VariantBurialPermit, req.ID)
	if err != nil {
		t.Fatalf("Get after update failed: %v", err)
	}
	if again.Status != permit.StatusApprovedForPayment || again.ORCode != got.ORCode {
		t.Errorf("updated row = %+v", again)
	}
	if again.Version != 2 {
		t.Errorf("version after update = %d, want 2", again.Version)
	}
}

// TestMigration000001_StatusCheck verifies the status check constraint.
func TestMigration000001_StatusCheck(t *testing.T) {
	db := openTestDB(t)
	repo := permit.NewPostgresRepository(db)

	err := repo.Create(context.Background(), &permit.Request{
		Variant:       permit.VariantBurialPermit,
		OwnerID:       "test-citizen",
		Status:        permit.Status("ARCHIVED"),
		ApplicantName: "Juan dela Cruz",
	})
	if err == nil {
		t.Fatal("unknown status should violate the check constraint")
	}
}
