package audit

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/baliwag-egov/civreg/internal/middleware"
)

func TestAppend_Validation(t *testing.T) {
	repo := NewInMemoryRepository()

	tests := []struct {
		name    string
		rec     Record
		wantErr error
	}{
		{
			name:    "empty entity type",
			rec:     Record{EntityID: "p-1", Action: "submit"},
			wantErr: ErrInvalidEntityType,
		},
		{
			name:    "empty entity ID",
			rec:     Record{EntityType: "burial_permit", Action: "submit"},
			wantErr: ErrInvalidEntityID,
		},
		{
			name:    "empty action",
			rec:     Record{EntityType: "burial_permit", EntityID: "p-1"},
			wantErr: ErrInvalidAction,
		},
		{
			name:    "unknown entity type",
			rec:     Record{EntityType: "marriage_license", EntityID: "p-1", Action: "submit"},
			wantErr: ErrInvalidEntityType,
		},
		{
			name:    "unknown action",
			rec:     Record{EntityType: "burial_permit", EntityID: "p-1", Action: "delete"},
			wantErr: ErrInvalidAction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := repo.Append(tt.rec); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestAppend_ReturnsCopy(t *testing.T) {
	repo := NewInMemoryRepository()

	entry, err := repo.Append(Record{
		Actor:      "emp-1",
		EntityType: "burial_permit",
		EntityID:   "p-1",
		Action:     "approve",
		Details:    "OR-2025-000001",
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if entry.ID == "" || entry.CreatedAt.IsZero() {
		t.Error("expected assigned ID and timestamp")
	}

	// Mutating the returned entry must not affect stored state.
	entry.Details = "tampered"
	stored, err := repo.QueryByEntity("burial_permit", "p-1", 0)
	if err != nil {
		t.Fatalf("QueryByEntity failed: %v", err)
	}
	if len(stored) != 1 || stored[0].Details != "OR-2025-000001" {
		t.Errorf("stored entry was mutated: %+v", stored[0])
	}
}

func TestQueryByEntity_NewestFirstWithLimit(t *testing.T) {
	repo := NewInMemoryRepository()

	actions := []string{"submit", "return", "resubmit", "approve"}
	for _, action := range actions {
		if _, err := repo.Append(Record{
			EntityType: "cremation_permit",
			EntityID:   "p-9",
			Action:     action,
		}); err != nil {
			t.Fatalf("Append(%s) failed: %v", action, err)
		}
	}
	// Entries for a different entity must not leak in.
	if _, err := repo.Append(Record{EntityType: "cremation_permit", EntityID: "p-other", Action: "submit"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	all, err := repo.QueryByEntity("cremation_permit", "p-9", 0)
	if err != nil {
		t.Fatalf("QueryByEntity failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(all))
	}
	if all[0].Action != "approve" || all[3].Action != "submit" {
		t.Errorf("expected newest-first order, got %s..%s", all[0].Action, all[3].Action)
	}

	limited, err := repo.QueryByEntity("cremation_permit", "p-9", 2)
	if err != nil {
		t.Fatalf("QueryByEntity failed: %v", err)
	}
	if len(limited) != 2 || limited[0].Action != "approve" || limited[1].Action != "resubmit" {
		t.Errorf("unexpected limited result: %+v", limited)
	}
}

func TestQueryByActor(t *testing.T) {
	repo := NewInMemoryRepository()

	for _, rec := range []Record{
		{Actor: "emp-1", EntityType: "burial_permit", EntityID: "p-1", Action: "approve"},
		{Actor: "emp-2", EntityType: "burial_permit", EntityID: "p-2", Action: "return"},
		{Actor: "emp-1", EntityType: "transaction", EntityID: "tx-1", Action: "confirm_payment"},
	} {
		if _, err := repo.Append(rec); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	entries, err := repo.QueryByActor("emp-1", 0)
	if err != nil {
		t.Fatalf("QueryByActor failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for emp-1, got %d", len(entries))
	}
	if entries[0].Action != "confirm_payment" {
		t.Errorf("expected newest first, got %s", entries[0].Action)
	}
}

func TestLog_FillsActorAndRequestIDFromContext(t *testing.T) {
	repo := NewInMemoryRepository()

	ctx := middleware.SetIdentity(context.Background(), middleware.Identity{UserID: "citizen-5"})
	req := httptest.NewRequest("POST", "/permits/burial_permit", nil).WithContext(ctx)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("User-Agent", "portal-web/1.0")

	LogFromRequest(req, repo, Record{
		EntityType: "burial_permit",
		EntityID:   "p-1",
		Action:     "submit",
	})

	entries, err := repo.QueryByEntity("burial_permit", "p-1", 0)
	if err != nil {
		t.Fatalf("QueryByEntity failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Actor != "citizen-5" {
		t.Errorf("expected actor from context, got %q", e.Actor)
	}
	if e.IPAddress != "203.0.113.7" {
		t.Errorf("expected first X-Forwarded-For hop, got %q", e.IPAddress)
	}
	if e.UserAgent != "portal-web/1.0" {
		t.Errorf("unexpected user agent %q", e.UserAgent)
	}
}

func TestLog_SwallowsFailures(t *testing.T) {
	// Invalid record and nil repository must not panic; audit writes are a
	// side effect of the core operations.
	Log(context.Background(), nil, Record{EntityType: "burial_permit", EntityID: "p-1", Action: "submit"})
	Log(context.Background(), NewInMemoryRepository(), Record{})
}
