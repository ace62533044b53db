package registry

import (
	"testing"

	"github.com/broxus/ton-subwalk/internal/chain"
)

func mustInsert(t *testing.T, r *Registry, account chain.AccountID, hash chain.MessageHash, expireAt uint32) *PendingMessage {
	t.Helper()
	pm, err := r.Insert(chain.BaseWorkchainID, account, hash, expireAt)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return pm
}

func TestInsertThenMatchDeliversSome(t *testing.T) {
	r := New()
	account := chain.AccountID{1}
	hash := chain.MessageHash{2}

	pm := mustInsert(t, r, account, hash, 1000)
	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", r.Count())
	}

	want := chain.TransactionWithHash{Hash: chain.TxHash{9}}
	done := make(chan *chain.TransactionWithHash, 1)
	go func() { done <- pm.Wait() }()

	if ok := r.Match(chain.BaseWorkchainID, account, hash, want); !ok {
		t.Fatalf("Match returned false for a pending entry")
	}

	got := <-done
	if got == nil || *got != want {
		t.Fatalf("Wait() = %#v, want %#v", got, want)
	}
	if r.Count() != 0 {
		t.Fatalf("Count() after match = %d, want 0", r.Count())
	}
}

// S2 — expiry.
func TestRemoveExpiredDeliversNone(t *testing.T) {
	r := New()
	account := chain.AccountID{1}
	hash := chain.MessageHash{2}

	pm := mustInsert(t, r, account, hash, 400)

	r.RemoveExpired(401)

	got := pm.Wait()
	if got != nil {
		t.Fatalf("Wait() = %#v, want nil", got)
	}
	if r.Count() != 0 {
		t.Fatalf("Count() after expiry = %d, want 0", r.Count())
	}
}

func TestRemoveExpiredKeepsUnexpiredEntries(t *testing.T) {
	r := New()
	account := chain.AccountID{1}
	expired := chain.MessageHash{1}
	alive := chain.MessageHash{2}

	mustInsert(t, r, account, expired, 100)
	mustInsert(t, r, account, alive, 2000)

	r.RemoveExpired(200)

	if r.Count() != 1 {
		t.Fatalf("Count() after partial expiry = %d, want 1", r.Count())
	}
	if !r.Match(chain.BaseWorkchainID, account, alive, chain.TransactionWithHash{}) {
		t.Fatalf("surviving entry was not matchable")
	}
}

// S3 — duplicate submission.
func TestInsertDuplicateFails(t *testing.T) {
	r := New()
	account := chain.AccountID{1}
	hash := chain.MessageHash{2}

	mustInsert(t, r, account, hash, 1000)

	_, err := r.Insert(chain.BaseWorkchainID, account, hash, 1000)
	if err != ErrAlreadySent {
		t.Fatalf("second Insert err = %v, want ErrAlreadySent", err)
	}
	if r.Count() != 1 {
		t.Fatalf("Count() after rejected duplicate = %d, want 1", r.Count())
	}
}

// S4 — submission failure rollback.
func TestRollbackRestoresInvariant(t *testing.T) {
	r := New()
	account := chain.AccountID{1}
	hash := chain.MessageHash{2}

	mustInsert(t, r, account, hash, 1000)
	if r.Count() != 1 {
		t.Fatalf("Count() before rollback = %d, want 1", r.Count())
	}

	r.Rollback(chain.BaseWorkchainID, account, hash)

	if r.Count() != 0 {
		t.Fatalf("Count() after rollback = %d, want 0", r.Count())
	}

	// The key must be fully gone: a fresh Insert for the same triple
	// must succeed rather than failing with ErrAlreadySent.
	if _, err := r.Insert(chain.BaseWorkchainID, account, hash, 1000); err != nil {
		t.Fatalf("Insert after rollback: %v", err)
	}
}

func TestUnsupportedWorkchainRejected(t *testing.T) {
	r := New()
	_, err := r.Insert(5, chain.AccountID{1}, chain.MessageHash{2}, 1000)
	if err != ErrUnsupportedWorkchain {
		t.Fatalf("err = %v, want ErrUnsupportedWorkchain", err)
	}
}

func TestInnerMapPrunedWhenEmpty(t *testing.T) {
	r := New()
	account := chain.AccountID{1}
	hash := chain.MessageHash{2}

	mustInsert(t, r, account, hash, 1000)
	r.masterchain.mu.Lock()
	_ = r.masterchain.accounts
	r.masterchain.mu.Unlock()

	if !r.Match(chain.BaseWorkchainID, account, hash, chain.TransactionWithHash{}) {
		t.Fatalf("expected match")
	}

	r.base.mu.Lock()
	if _, exists := r.base.accounts[account]; exists {
		t.Fatalf("inner map for account left behind after last removal")
	}
	r.base.mu.Unlock()
}

func TestReleaseIsSingleShot(t *testing.T) {
	pm := newPendingMessage(1000)
	first := chain.TransactionWithHash{Hash: chain.TxHash{1}}

	pm.release(&first)
	pm.release(nil) // must be a no-op, not a second send / panic on closed channel

	got := pm.Wait()
	if got == nil || *got != first {
		t.Fatalf("Wait() = %#v, want first release's value", got)
	}
}

func TestShutdownAllReleasesEveryWaiter(t *testing.T) {
	r := New()
	accounts := []chain.AccountID{{1}, {2}, {3}}
	waiters := make([]*PendingMessage, len(accounts))
	for i, acc := range accounts {
		waiters[i] = mustInsert(t, r, acc, chain.MessageHash{byte(i)}, 1000)
	}

	r.ShutdownAll()

	for i, pm := range waiters {
		if got := pm.Wait(); got != nil {
			t.Fatalf("waiter %d got %#v, want nil after shutdown", i, got)
		}
	}
	if r.Count() != 0 {
		t.Fatalf("Count() after ShutdownAll = %d, want 0", r.Count())
	}
}

func TestArmFiresOnInsert(t *testing.T) {
	r := New()
	armed := r.Arm()

	select {
	case <-armed:
		t.Fatalf("notifier fired before any Insert")
	default:
	}

	mustInsert(t, r, chain.AccountID{1}, chain.MessageHash{1}, 1000)

	select {
	case <-armed:
	default:
		t.Fatalf("notifier did not fire after Insert")
	}
}
