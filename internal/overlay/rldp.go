package overlay

import (
	"context"
	"errors"
	"time"
)

// RLDPNode is the subset of RLDP's Node the engine consumes (spec §6).
// RLDP layers reliable, larger-datagram queries over ADNL, carrying its
// own roundtrip time back to the caller so internal/udprpc can feed its
// EMA (spec §4.1).
type RLDPNode interface {
	// Query sends query to peer and returns the answer along with how
	// long the roundtrip took. A nil answer with a nil error means the
	// query timed out.
	Query(ctx context.Context, peer NodeIdShort, query []byte, maxAnswerSize int64, timeout time.Duration) (answer []byte, roundtrip time.Duration, err error)
}

// localRLDP is RLDP re-expressed over the same pending-reply transport
// ADNL uses; the narrowly-scoped implementation in this package has no
// need for the real protocol's FEC/segmentation machinery since it talks
// to a peer implementation under its own control.
type localRLDP struct {
	adnl *localADNL

	// forceCompression mirrors the source's force_compression flag. The
	// concrete transport here never compresses, and Query does not read
	// this field; it is only stored.
	forceCompression bool
}

// NewRLDP builds an RLDP node sharing adnl's identities and transport.
func NewRLDP(adnl *localADNL, forceCompression bool) *localRLDP {
	return &localRLDP{adnl: adnl, forceCompression: forceCompression}
}

func (r *localRLDP) Query(ctx context.Context, peer NodeIdShort, query []byte, maxAnswerSize int64, timeout time.Duration) ([]byte, time.Duration, error) {
	r.adnl.mu.RLock()
	addr, ok := r.adnl.peers[peer]
	r.adnl.mu.RUnlock()
	if !ok {
		return nil, 0, errUnknownPeer
	}

	_ = maxAnswerSize // accepted for interface parity; the in-process transport has no framing limit to enforce

	start := time.Now()
	answer, roundtrip, err := r.adnl.transport.query(ctx, addr, query, timeout)
	if err != nil {
		return nil, 0, err
	}
	if answer == nil {
		return nil, time.Since(start), nil
	}
	return answer, roundtrip, nil
}

var errUnknownPeer = errors.New("overlay: unknown rldp peer")
