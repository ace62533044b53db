// Package registry implements the pending-message registry (C4): a
// sharded concurrent mapping from (workchain, account, message hash) to
// a single waiter, with expiry by chain time and a lost-wakeup-safe
// notifier for the chain walker.
package registry

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/broxus/ton-subwalk/internal/chain"
)

var (
	ErrNotExternalIn       = errors.New("registry: expected external message")
	ErrUnsupportedWorkchain = errors.New("registry: unsupported workchain")
	ErrAlreadySent          = errors.New("registry: message already sent")
)

// PendingMessage is one in-flight send: a chain-time expiry and a
// single-shot reply slot. Go has no destructor, so every removal path
// that can have a waiter (Match, expiry, or subscription shutdown) must
// call release exactly once; Rollback removes an entry before anyone
// waits on it and does not release it. release itself is idempotent via
// sync.Once so a caller cannot violate that by accident.
type PendingMessage struct {
	ExpireAt uint32

	once  sync.Once
	reply chan *chain.TransactionWithHash
}

func newPendingMessage(expireAt uint32) *PendingMessage {
	return &PendingMessage{ExpireAt: expireAt, reply: make(chan *chain.TransactionWithHash, 1)}
}

// release delivers result (nil meaning "none") to the waiter exactly
// once. Subsequent calls are no-ops.
func (p *PendingMessage) release(result *chain.TransactionWithHash) {
	p.once.Do(func() {
		p.reply <- result
		close(p.reply)
	})
}

// Wait blocks until the entry is released, returning the matched
// transaction or nil if it was expired, unmatched at shutdown, or
// otherwise dropped without observation.
func (p *PendingMessage) Wait() *chain.TransactionWithHash {
	return <-p.reply
}

type workchainBucket struct {
	mu       sync.Mutex
	accounts map[chain.AccountID]map[chain.MessageHash]*PendingMessage
}

func newBucket() *workchainBucket {
	return &workchainBucket{accounts: make(map[chain.AccountID]map[chain.MessageHash]*PendingMessage)}
}

// Registry is the two-level pending-message map: fixed workchain
// buckets (masterchain, base), each a plain map guarded by the bucket's
// own lock, plus a process-wide counter and notifier shared across both.
type Registry struct {
	masterchain *workchainBucket
	base        *workchainBucket

	counter atomic.Int64
	notify  *notifier
}

func New() *Registry {
	return &Registry{
		masterchain: newBucket(),
		base:        newBucket(),
		notify:      newNotifier(),
	}
}

func (r *Registry) bucketFor(workchain int32) (*workchainBucket, bool) {
	switch workchain {
	case chain.MasterchainID:
		return r.masterchain, true
	case chain.BaseWorkchainID:
		return r.base, true
	default:
		return nil, false
	}
}

// Count returns the current pending-message total.
func (r *Registry) Count() int64 {
	return r.counter.Load()
}

// Arm returns the channel that will close on the next successful
// Insert or Match call made after this point (Rollback, RemoveExpired
// and ShutdownAll do not fire it) — callers must
// call Arm before re-checking Count to avoid a lost wakeup (spec §5).
func (r *Registry) Arm() <-chan struct{} {
	return r.notify.arm()
}

// Insert adds a new pending entry, failing if one is already registered
// for this (workchain, account, message hash) triple. The counter
// increment and notifier fire happen while the bucket lock is still
// held, which is what makes the zero-to-positive transition race-free
// against a walker that armed its wait first.
func (r *Registry) Insert(workchain int32, account chain.AccountID, msgHash chain.MessageHash, expireAt uint32) (*PendingMessage, error) {
	bucket, ok := r.bucketFor(workchain)
	if !ok {
		return nil, ErrUnsupportedWorkchain
	}

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	inner, ok := bucket.accounts[account]
	if !ok {
		inner = make(map[chain.MessageHash]*PendingMessage)
		bucket.accounts[account] = inner
	}
	if _, exists := inner[msgHash]; exists {
		return nil, ErrAlreadySent
	}

	pm := newPendingMessage(expireAt)
	inner[msgHash] = pm
	r.counter.Add(1)
	r.notify.notify()
	return pm, nil
}

// Rollback undoes an Insert after a downstream submission failure: the
// entry is removed and the counter decremented, preserving invariant (1)
// from spec §3/§8 (the source's documented non-decrementing behavior is
// the explicitly flagged correction in spec §9 — not replicated here).
// No one can be waiting on the entry yet at this point in send_message's
// flow, so no release is needed.
func (r *Registry) Rollback(workchain int32, account chain.AccountID, msgHash chain.MessageHash) {
	bucket, ok := r.bucketFor(workchain)
	if !ok {
		return
	}

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	inner, ok := bucket.accounts[account]
	if !ok {
		return
	}
	if _, exists := inner[msgHash]; !exists {
		return
	}
	delete(inner, msgHash)
	if len(inner) == 0 {
		delete(bucket.accounts, account)
	}
	r.counter.Add(-1)
}

// Match removes the pending entry for (workchain, account, msgHash), if
// any, delivering result to its waiter. Returns true if an entry was
// found and matched.
func (r *Registry) Match(workchain int32, account chain.AccountID, msgHash chain.MessageHash, result chain.TransactionWithHash) bool {
	bucket, ok := r.bucketFor(workchain)
	if !ok {
		return false
	}

	bucket.mu.Lock()
	inner, ok := bucket.accounts[account]
	if !ok {
		bucket.mu.Unlock()
		return false
	}
	pm, ok := inner[msgHash]
	if !ok {
		bucket.mu.Unlock()
		return false
	}
	delete(inner, msgHash)
	if len(inner) == 0 {
		delete(bucket.accounts, account)
	}
	r.counter.Add(-1)
	r.notify.notify()
	bucket.mu.Unlock()

	pm.release(&result)
	return true
}

// RemoveExpired prunes every pending entry (in both buckets) whose
// ExpireAt is strictly less than utime, delivering "none" to each.
func (r *Registry) RemoveExpired(utime uint32) {
	r.removeExpiredBucket(chain.MasterchainID, r.masterchain, utime)
	r.removeExpiredBucket(chain.BaseWorkchainID, r.base, utime)
}

func (r *Registry) removeExpiredBucket(_ int32, bucket *workchainBucket, utime uint32) {
	bucket.mu.Lock()
	var expired []*PendingMessage
	for account, inner := range bucket.accounts {
		for hash, pm := range inner {
			if pm.ExpireAt < utime {
				delete(inner, hash)
				expired = append(expired, pm)
			}
		}
		if len(inner) == 0 {
			delete(bucket.accounts, account)
		}
	}
	if len(expired) > 0 {
		r.counter.Add(-int64(len(expired)))
	}
	bucket.mu.Unlock()

	for _, pm := range expired {
		pm.release(nil)
	}
}

// ShutdownAll releases every still-pending entry with "none", mirroring
// the source's destructor-on-drop semantics when the owning subscription
// is closed (spec §9 "destructor-delivered none"). Intended for use from
// Subscription.Close.
func (r *Registry) ShutdownAll() {
	r.shutdownBucket(r.masterchain)
	r.shutdownBucket(r.base)
}

func (r *Registry) shutdownBucket(bucket *workchainBucket) {
	bucket.mu.Lock()
	var pending []*PendingMessage
	for account, inner := range bucket.accounts {
		for hash, pm := range inner {
			delete(inner, hash)
			pending = append(pending, pm)
		}
		delete(bucket.accounts, account)
	}
	if len(pending) > 0 {
		r.counter.Add(-int64(len(pending)))
	}
	bucket.mu.Unlock()

	for _, pm := range pending {
		pm.release(nil)
	}
}
