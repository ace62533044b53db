// Package subscription ties the pending-message registry (C4), the chain
// walker (C5) and the control channel (A4) into the single handle the
// rest of the engine (and the CLI) calls send_message against.
package subscription

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/broxus/ton-subwalk/internal/chain"
	"github.com/broxus/ton-subwalk/internal/control"
	"github.com/broxus/ton-subwalk/internal/fetch"
	"github.com/broxus/ton-subwalk/internal/registry"
	"github.com/broxus/ton-subwalk/internal/walker"
)

// Subscription is the engine's public handle: submit a message, await
// the transaction that executes it. The walker goroutine it owns is
// stopped by canceling the context passed to New — Go has no Drop, so
// that cancellation is the explicit substitute for the source's
// drop-triggers-weak-upgrade-failure lifecycle (spec §9).
type Subscription struct {
	registry *registry.Registry
	walker   *walker.Walker
	control  control.NodeTcpRpc

	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
}

// New builds the registry and walker and starts the walker's background
// loop under a child of ctx.
func New(ctx context.Context, fetcher *fetch.Fetcher, ctl control.NodeTcpRpc) *Subscription {
	reg := registry.New()
	w := walker.New(fetcher, reg, ctl)

	runCtx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		registry: reg,
		walker:   w,
		control:  ctl,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		w.Run(runCtx)
	}()

	return s
}

// Close stops the walker and releases every still-pending message with
// "none", mirroring the source's destructor semantics (spec §9).
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		s.registry.ShutdownAll()
	})
}

// SendMessage submits an external-in message and awaits the transaction
// that executes it, per spec §4.4.
func (s *Subscription) SendMessage(ctx context.Context, msg *chain.Message, expireAt uint32) (*chain.TransactionWithHash, error) {
	if !msg.ExternalIn {
		return nil, registry.ErrNotExternalIn
	}

	workchain, account, err := chain.SplitAddress(msg.Dst)
	if err != nil {
		return nil, fmt.Errorf("subscription: %w", err)
	}
	if !chain.SupportedWorkchain(workchain) {
		return nil, registry.ErrUnsupportedWorkchain
	}

	msgHash := chain.MessageHash(sha256.Sum256(msg.SerializeForHash()))

	pending, err := s.registry.Insert(workchain, account, msgHash, expireAt)
	if err != nil {
		return nil, err
	}

	if err := s.control.SendMessage(ctx, msg.Body); err != nil {
		s.registry.Rollback(workchain, account, msgHash)
		return nil, fmt.Errorf("subscription: submit message: %w", err)
	}

	// No global deadline here: expiry is chain-time driven and enforced
	// by the walker via expire_at, not by ctx (spec §5 "Retries and
	// timeouts").
	return pending.Wait(), nil
}

// PendingCount exposes the registry's counter (printed by the console's
// pending command; the walker's pending gauge reads the registry
// directly).
func (s *Subscription) PendingCount() int64 {
	return s.registry.Count()
}
