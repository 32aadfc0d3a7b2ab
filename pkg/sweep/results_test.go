package sweep

import (
	"errors"
	"testing"

	"dustsweep/pkg/types"
)

func TestResultStoreLifecycle(t *testing.T) {
	s := NewResultStore()
	s.Create("s1", "q1", types.StatusPending)

	res, err := s.Get("s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if res.Status != types.StatusPending || res.QuoteID != "q1" {
		t.Fatalf("unexpected result: %+v", res)
	}

	s.SetStatus("s1", types.StatusSweeping)
	s.AppendTx("s1", types.ChainTxRecord{ChainID: 1, Stage: "sweep", TxHash: "0xabc", Outcome: types.TxConfirmed})

	res, _ = s.Get("s1")
	if res.Status != types.StatusSweeping || len(res.Chains) != 1 {
		t.Fatalf("unexpected result after updates: %+v", res)
	}

	// Readers get copies; mutating one must not leak into the store.
	res.Chains[0].TxHash = "tampered"
	fresh, _ := s.Get("s1")
	if fresh.Chains[0].TxHash != "0xabc" {
		t.Fatal("Get must return an isolated copy")
	}
}

func TestResultStoreNotFound(t *testing.T) {
	s := NewResultStore()
	if _, err := s.Get("missing"); !errors.Is(err, types.ErrSweepNotFound) {
		t.Fatalf("expected ErrSweepNotFound, got %v", err)
	}
}

func TestResultStoreFail(t *testing.T) {
	s := NewResultStore()
	s.Create("s1", "q1", types.StatusPending)
	s.Fail("s1", "every chain sweep failed", true)

	res, _ := s.Get("s1")
	if res.Status != types.StatusFailed {
		t.Fatalf("expected failed, got %s", res.Status)
	}
	if !res.NeedsReconciliation || res.Error == "" {
		t.Fatalf("expected reconciliation flag and message, got %+v", res)
	}
}
