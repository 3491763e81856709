package ingest

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestQuotaLedgerSpendAndLimit(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "quota.json")
	ledger, err := NewQuotaLedger(path, 100)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	if err := ledger.Spend(60); err != nil {
		t.Fatalf("first spend: %v", err)
	}
	if got := ledger.Remaining(); got != 40 {
		t.Fatalf("remaining: want 40, got %d", got)
	}

	if err := ledger.Spend(50); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	// A refused spend must not consume budget.
	if got := ledger.Remaining(); got != 40 {
		t.Fatalf("remaining after refused spend: want 40, got %d", got)
	}

	if err := ledger.Spend(40); err != nil {
		t.Fatalf("exact spend to the ceiling: %v", err)
	}
}

func TestQuotaLedgerPersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "quota.json")
	first, err := NewQuotaLedger(path, 100)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if err := first.Spend(70); err != nil {
		t.Fatalf("spend: %v", err)
	}

	second, err := NewQuotaLedger(path, 100)
	if err != nil {
		t.Fatalf("reopen ledger: %v", err)
	}
	if got := second.Remaining(); got != 30 {
		t.Fatalf("cumulative budget not respected across instances: want 30, got %d", got)
	}
}

func TestQuotaLedgerZeroSpendIsFree(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "quota.json")
	ledger, err := NewQuotaLedger(path, 10)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if err := ledger.Spend(0); err != nil {
		t.Fatalf("zero spend should be free: %v", err)
	}
	if got := ledger.Remaining(); got != 10 {
		t.Fatalf("remaining: want 10, got %d", got)
	}
}
