package udprpc

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/broxus/ton-subwalk/internal/chain"
	"github.com/broxus/ton-subwalk/internal/overlay"
)

const resolveRetryCount = 10
const rldpAttemptInterval = 50 * time.Millisecond

// ErrTimeout is returned by AdnlQuery when the transport yields no
// answer within the requested timeout. Per spec §7's error table,
// transport timeouts are retried with backoff and never surfaced by the
// fetchers that sit on top of this client — callers should match this
// sentinel rather than treat every AdnlQuery error as permanent.
var ErrTimeout = fmt.Errorf("udprpc: adnl query timeout")

// UninitNodeUdpRpc is the pre-peer-resolution half of the session: it
// owns the local ADNL/DHT/RLDP handles but has not yet learned which
// remote node it talks to.
type UninitNodeUdpRpc struct {
	adnl overlay.ADNLNode
	dht  overlay.DHTNode
	rldp overlay.RLDPNode
}

// NewUninit wraps already-constructed overlay handles. The caller is
// responsible for binding the local UDP socket and generating the local
// ADNL identity (internal/overlay.NewADNL + GenerateKey) before this is
// called — resolving this process's own public IP is left to deployment
// configuration rather than an in-process lookup, since no such library
// is available in-pack.
func NewUninit(adnl overlay.ADNLNode, dht overlay.DHTNode, rldp overlay.RLDPNode) *UninitNodeUdpRpc {
	return &UninitNodeUdpRpc{adnl: adnl, dht: dht, rldp: rldp}
}

// ResolvePeer seeds the DHT with bootstrap entries, asks it to discover
// more nodes, then resolves peerID's current address and public key.
func (u *UninitNodeUdpRpc) ResolvePeer(ctx context.Context, bootstrap []overlay.DHTPeer, peerID overlay.NodeIdShort) (overlay.RemotePeer, error) {
	for _, peer := range bootstrap {
		if err := u.dht.AddDHTPeer(peer); err != nil {
			return overlay.RemotePeer{}, fmt.Errorf("udprpc: seed dht peer: %w", err)
		}
	}

	if _, err := u.dht.FindMoreDHTNodes(ctx); err != nil {
		return overlay.RemotePeer{}, fmt.Errorf("udprpc: find more dht nodes: %w", err)
	}

	addr, pub, err := u.resolveIP(ctx, peerID)
	if err != nil {
		return overlay.RemotePeer{}, err
	}
	return overlay.RemotePeer{IP: addr, PubKey: pub}, nil
}

func (u *UninitNodeUdpRpc) resolveIP(ctx context.Context, peerID overlay.NodeIdShort) (addr *net.UDPAddr, pub ed25519.PublicKey, err error) {
	var lastErr error
	for attempt := 1; attempt <= resolveRetryCount; attempt++ {
		a, p, e := u.dht.FindAddress(ctx, peerID)
		if e == nil {
			return a, p, nil
		}
		lastErr = e
	}
	return nil, nil, fmt.Errorf("udprpc: resolve peer ip after %d attempts: %w", resolveRetryCount, lastErr)
}

// Initialize completes construction once the peer is known, registering
// it with ADNL and precomputing the shard-overlay query prefix.
func (u *UninitNodeUdpRpc) Initialize(peer overlay.RemotePeer, zerostateFileHash [32]byte) (*NodeUdpRpc, error) {
	localID, err := u.adnl.KeyByTag(overlay.KeyTag)
	if err != nil {
		return nil, fmt.Errorf("udprpc: local adnl key: %w", err)
	}

	peerID := overlay.ShortIDFromPublicKey(peer.PubKey)
	if err := u.adnl.AddPeer(overlay.PeerContextDHT, localID, peerID, peer.IP, peer.PubKey); err != nil {
		return nil, fmt.Errorf("udprpc: register peer: %w", err)
	}

	overlayID := overlay.ForShardOverlay(chain.MasterchainID, zerostateFileHash)
	shortOverlay := overlayID.ComputeShortID()

	return &NodeUdpRpc{
		localID:     localID,
		peerID:      peerID,
		queryPrefix: append([]byte(nil), shortOverlay[:]...),
		adnl:        u.adnl,
		rldp:        u.rldp,
	}, nil
}

// NodeUdpRpc is the resolved session (spec §3 "UDP RPC session"): local
// and peer identities, a precomputed query prefix, and a guarded
// roundtrip estimate fed by every successful RLDP query.
type NodeUdpRpc struct {
	localID     overlay.NodeIdShort
	peerID      overlay.NodeIdShort
	queryPrefix []byte

	adnl overlay.ADNLNode
	rldp overlay.RLDPNode

	mu        sync.Mutex
	roundtrip time.Duration
}

// AdnlQuery issues a small query over ADNL with the session's prefix,
// returning an error if no answer arrived within timeout.
func (n *NodeUdpRpc) AdnlQuery(ctx context.Context, query []byte, timeout time.Duration) ([]byte, error) {
	answer, err := n.adnl.QueryWithPrefix(ctx, n.localID, n.peerID, n.queryPrefix, query, timeout)
	if err != nil {
		return nil, err
	}
	if answer == nil {
		return nil, ErrTimeout
	}
	return answer, nil
}

// RldpQuery issues a bulk query over RLDP, hinting the current roundtrip
// estimate (widened per retry attempt) and folding the observed
// roundtrip back into the EMA on success, per spec §4.1/§8 property 6.
func (n *NodeUdpRpc) RldpQuery(ctx context.Context, query []byte, attempt uint64) ([]byte, error) {
	data := make([]byte, 0, len(n.queryPrefix)+len(query))
	data = append(data, n.queryPrefix...)
	data = append(data, query...)

	n.mu.Lock()
	hint := n.roundtrip
	n.mu.Unlock()

	// Budget is only derived from the estimate once one exists (spec
	// §4.1: "if the current estimate is > 0 ... otherwise no budget is
	// passed to RLDP"). With no estimate yet, BlockTimeouts.Max stands
	// in for "library default" on this concrete transport, which has no
	// such built-in default of its own — independent of attempt.
	var timeout time.Duration
	if hint > 0 {
		timeout = hint + time.Duration(attempt)*rldpAttemptInterval
	} else {
		timeout = BlockTimeouts.Max
	}

	answer, roundtrip, err := n.rldp.Query(ctx, n.peerID, data, 1<<20, timeout)
	if err != nil {
		return nil, err
	}
	if answer == nil {
		return nil, nil
	}

	n.mu.Lock()
	if n.roundtrip > 0 {
		n.roundtrip = (n.roundtrip + roundtrip) / 2
	} else {
		n.roundtrip = roundtrip
	}
	n.mu.Unlock()

	return answer, nil
}

// Roundtrip returns the current RLDP roundtrip estimate. No metrics
// gauge is fed from it.
func (n *NodeUdpRpc) Roundtrip() time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.roundtrip
}

// GetNextBlock and GetBlock are implemented in internal/fetch, which
// drives this session's AdnlQuery/RldpQuery through the wire encodings in
// internal/chain and the retry policy in this package.
