package overlay

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// transport is a generic request/response matcher over a UDP socket: every
// outbound query carries a random 32-byte id, and the reply to it carries
// the same id back. It is the shared plumbing behind both the ADNL and
// RLDP node implementations in this package.
//
// The design — register a pending reply, hand back a channel, have a
// background loop match inbound packets against the pending set and wake
// the channel — follows go-ethereum's discover/udp.go (pending/gotreply/
// loop), generalized from discv4's (peerID, packet type) matching key to
// a random query id, which is how ADNL/RLDP actually multiplex
// concurrent queries to the same peer.
type transport struct {
	conn net.PacketConn

	mu      sync.Mutex
	pending map[[32]byte]chan inboundAnswer
	closing chan struct{}
	closed  bool

	// onQuery, when set, handles inbound queries. Nothing in this
	// package sets it, so inbound queries are dropped (pure client role).
	onQuery func(from *net.UDPAddr, id [32]byte, payload []byte)
}

type inboundAnswer struct {
	payload   []byte
	arrivedAt time.Time
}

const (
	kindQuery  byte = 0
	kindAnswer byte = 1
)

var errTransportClosed = errors.New("overlay: transport closed")
var errQueryTimeout = errors.New("overlay: query timeout")

func newTransport(conn net.PacketConn) *transport {
	t := &transport{
		conn:    conn,
		pending: make(map[[32]byte]chan inboundAnswer),
		closing: make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *transport) close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.closing)
	t.mu.Unlock()
	t.conn.Close()
}

// newQueryID draws a random correlation id for one outstanding query.
func newQueryID() [32]byte {
	var id [32]byte
	_, _ = rand.Read(id[:])
	return id
}

func encodeEnvelope(kind byte, id [32]byte, payload []byte) []byte {
	buf := make([]byte, 0, 1+32+len(payload))
	buf = append(buf, kind)
	buf = append(buf, id[:]...)
	buf = append(buf, payload...)
	return buf
}

func decodeEnvelope(buf []byte) (kind byte, id [32]byte, payload []byte, err error) {
	if len(buf) < 33 {
		return 0, id, nil, fmt.Errorf("overlay: packet too small (%d bytes)", len(buf))
	}
	kind = buf[0]
	copy(id[:], buf[1:33])
	payload = buf[33:]
	return kind, id, payload, nil
}

// query sends payload to addr and waits up to timeout for a matching
// answer. A nil, nil return means "no answer within the deadline" — the
// ADNL/RLDP adapters translate this into their respective "timeout"/
// "None" semantics from spec §4.1.
func (t *transport) query(ctx context.Context, addr *net.UDPAddr, payload []byte, timeout time.Duration) ([]byte, time.Duration, error) {
	id := newQueryID()
	ch := make(chan inboundAnswer, 1)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, 0, errTransportClosed
	}
	t.pending[id] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	sentAt := time.Now()
	if _, err := t.conn.WriteTo(encodeEnvelope(kindQuery, id, payload), addr); err != nil {
		return nil, 0, fmt.Errorf("overlay: write query: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ans := <-ch:
		return ans.payload, ans.arrivedAt.Sub(sentAt), nil
	case <-timer.C:
		return nil, 0, nil
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	case <-t.closing:
		return nil, 0, errTransportClosed
	}
}

// reply answers an inbound query with the given id. Nothing in this
// package calls it; the engine is a pure client and never answers
// application queries.
func (t *transport) reply(addr *net.UDPAddr, id [32]byte, payload []byte) error {
	_, err := t.conn.WriteTo(encodeEnvelope(kindAnswer, id, payload), addr)
	return err
}

func (t *transport) readLoop() {
	buf := make([]byte, 64*1024)
	for {
		n, from, err := t.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-t.closing:
				return
			default:
			}
			continue
		}
		kind, id, payload, err := decodeEnvelope(buf[:n])
		if err != nil {
			continue
		}
		switch kind {
		case kindAnswer:
			t.mu.Lock()
			ch, ok := t.pending[id]
			t.mu.Unlock()
			if ok {
				select {
				case ch <- inboundAnswer{payload: append([]byte(nil), payload...), arrivedAt: time.Now()}:
				default:
				}
			}
		case kindQuery:
			if t.onQuery != nil {
				t.onQuery(from.(*net.UDPAddr), id, payload)
			}
		}
	}
}
