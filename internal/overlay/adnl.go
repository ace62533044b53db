package overlay

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net"
	"sync"
	"time"
)

// ADNLNode is the subset of ADNL's Node the engine consumes (spec §6).
type ADNLNode interface {
	// KeyByTag returns the local identity registered under tag.
	KeyByTag(tag int) (NodeIdShort, error)
	// Start begins listening; construction completes before this is
	// called so the local network is already up before the overlay id
	// (which depends on the target chain) is known (spec §9).
	Start() error
	// AddPeer registers a peer's address/identity so future queries to
	// it can be routed.
	AddPeer(ctx PeerContext, local, peer NodeIdShort, addr *net.UDPAddr, peerFull ed25519.PublicKey) error
	// QueryWithPrefix issues a query to peer, serialized after prefix.
	// A nil result with a nil error means "timed out" (spec §4.1); the
	// caller (internal/udprpc) turns that into a "timeout" error.
	QueryWithPrefix(ctx context.Context, local, peer NodeIdShort, prefix, query []byte, timeout time.Duration) ([]byte, error)
}

// KeyTag is the fixed ADNL key tag the engine's single local identity is
// registered under (spec §4.1: "tagged with a fixed tag 0").
const KeyTag = 0

type localADNL struct {
	transport *transport

	mu    sync.RWMutex
	keys  map[int]ed25519.PrivateKey
	peers map[NodeIdShort]*net.UDPAddr
}

// NewADNL builds a local ADNL node bound to conn.
func NewADNL(conn net.PacketConn) *localADNL {
	return &localADNL{
		transport: newTransport(conn),
		keys:      make(map[int]ed25519.PrivateKey),
		peers:     make(map[NodeIdShort]*net.UDPAddr),
	}
}

// GenerateKey creates a fresh Ed25519 identity and registers it under tag,
// mirroring Keystore::builder().with_tagged_key(...) in the source.
func (n *localADNL) GenerateKey(tag int) (NodeIdShort, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return NodeIdShort{}, fmt.Errorf("overlay: generate adnl key: %w", err)
	}
	n.mu.Lock()
	n.keys[tag] = priv
	n.mu.Unlock()
	return ShortIDFromPublicKey(pub), nil
}

func (n *localADNL) KeyByTag(tag int) (NodeIdShort, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	priv, ok := n.keys[tag]
	if !ok {
		return NodeIdShort{}, fmt.Errorf("overlay: no adnl key registered for tag %d", tag)
	}
	return ShortIDFromPublicKey(priv.Public().(ed25519.PublicKey)), nil
}

func (n *localADNL) Start() error {
	// The transport's read loop is already running (started by
	// newTransport); nothing else to spin up for the narrowly-scoped
	// implementation used here.
	return nil
}

func (n *localADNL) AddPeer(_ PeerContext, _, peer NodeIdShort, addr *net.UDPAddr, _ ed25519.PublicKey) error {
	n.mu.Lock()
	n.peers[peer] = addr
	n.mu.Unlock()
	return nil
}

func (n *localADNL) QueryWithPrefix(ctx context.Context, _, peer NodeIdShort, prefix, query []byte, timeout time.Duration) ([]byte, error) {
	n.mu.RLock()
	addr, ok := n.peers[peer]
	n.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("overlay: unknown adnl peer")
	}

	payload := make([]byte, 0, len(prefix)+len(query))
	payload = append(payload, prefix...)
	payload = append(payload, query...)

	answer, _, err := n.transport.query(ctx, addr, payload, timeout)
	if err != nil {
		return nil, err
	}
	return answer, nil
}

func (n *localADNL) Close() {
	n.transport.close()
}

// Transport returns the underlying query/answer matcher so a DHT node
// can be built sharing the same UDP socket (overlay.NewDHT), rather than
// binding a second port for peer discovery.
func (n *localADNL) Transport() *transport {
	return n.transport
}
