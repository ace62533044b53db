package udprpc

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/broxus/ton-subwalk/internal/overlay"
)

// fakeADNL answers every QueryWithPrefix from a scripted queue, so tests
// can drive timeout/success sequences without a real socket.
type fakeADNL struct {
	localID overlay.NodeIdShort
	answers []fakeAdnlAnswer
	calls   int
}

type fakeAdnlAnswer struct {
	payload []byte // nil means "timeout"
}

func (f *fakeADNL) KeyByTag(tag int) (overlay.NodeIdShort, error) { return f.localID, nil }
func (f *fakeADNL) Start() error                                  { return nil }
func (f *fakeADNL) AddPeer(overlay.PeerContext, overlay.NodeIdShort, overlay.NodeIdShort, *net.UDPAddr, ed25519.PublicKey) error {
	return nil
}
func (f *fakeADNL) QueryWithPrefix(ctx context.Context, _, _ overlay.NodeIdShort, _, _ []byte, _ time.Duration) ([]byte, error) {
	if f.calls >= len(f.answers) {
		return nil, errors.New("fakeADNL: no more scripted answers")
	}
	a := f.answers[f.calls]
	f.calls++
	return a.payload, nil
}

type fakeRLDP struct {
	answers   []fakeRldpAnswer
	calls     int
	roundtrip time.Duration
}

type fakeRldpAnswer struct {
	payload []byte // nil means "timeout"
}

func (f *fakeRLDP) Query(ctx context.Context, _ overlay.NodeIdShort, _ []byte, _ int64, _ time.Duration) ([]byte, time.Duration, error) {
	if f.calls >= len(f.answers) {
		return nil, 0, errors.New("fakeRLDP: no more scripted answers")
	}
	a := f.answers[f.calls]
	f.calls++
	return a.payload, f.roundtrip, nil
}

func newTestSession(t *testing.T, adnl overlay.ADNLNode, rldp overlay.RLDPNode) *NodeUdpRpc {
	t.Helper()
	uninit := NewUninit(adnl, nil, rldp)
	_, pub, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate peer key: %v", err)
	}
	session, err := uninit.Initialize(overlay.RemotePeer{PubKey: pub}, [32]byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return session
}

func TestAdnlQueryReturnsAnswer(t *testing.T) {
	adnl := &fakeADNL{answers: []fakeAdnlAnswer{{payload: []byte("hello")}}}
	session := newTestSession(t, adnl, &fakeRLDP{})

	answer, err := session.AdnlQuery(context.Background(), []byte("Q"), time.Second)
	if err != nil {
		t.Fatalf("AdnlQuery: %v", err)
	}
	if string(answer) != "hello" {
		t.Fatalf("answer = %q, want %q", answer, "hello")
	}
}

func TestAdnlQueryTimeoutIsErrTimeout(t *testing.T) {
	adnl := &fakeADNL{answers: []fakeAdnlAnswer{{payload: nil}}}
	session := newTestSession(t, adnl, &fakeRLDP{})

	_, err := session.AdnlQuery(context.Background(), []byte("Q"), time.Second)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

// Property 6: after successive successful observations starting from 0,
// the roundtrip estimate is the running pairwise average
// (((o1+o2)/2+o3)/2...).
func TestRldpQueryRoundtripEMA(t *testing.T) {
	observed := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}
	rldp := &fakeRLDP{}
	session := newTestSession(t, &fakeADNL{}, rldp)

	want := time.Duration(0)
	for i, o := range observed {
		rldp.answers = append(rldp.answers, fakeRldpAnswer{payload: []byte("x")})
		rldp.roundtrip = o
		if i == 0 {
			want = o
		} else {
			want = (want + o) / 2
		}

		if _, err := session.RldpQuery(context.Background(), []byte("Q"), uint64(i)); err != nil {
			t.Fatalf("RldpQuery #%d: %v", i, err)
		}
		if got := session.Roundtrip(); got != want {
			t.Fatalf("Roundtrip() after observation %d = %v, want %v", i, got, want)
		}
	}
}

func TestRldpQueryTimeoutReturnsNilAnswer(t *testing.T) {
	rldp := &fakeRLDP{answers: []fakeRldpAnswer{{payload: nil}}}
	session := newTestSession(t, &fakeADNL{}, rldp)

	answer, err := session.RldpQuery(context.Background(), []byte("Q"), 0)
	if err != nil {
		t.Fatalf("RldpQuery: %v", err)
	}
	if answer != nil {
		t.Fatalf("answer = %v, want nil on timeout", answer)
	}
}

// fakeDHT supports ResolvePeer's retry-then-succeed and
// retry-exhaustion paths.
type fakeDHT struct {
	addPeerErr   error
	findMoreErr  error
	failuresLeft int
	addr         *net.UDPAddr
	pub          ed25519.PublicKey
	findErr      error
}

func (f *fakeDHT) AddDHTPeer(overlay.DHTPeer) error           { return f.addPeerErr }
func (f *fakeDHT) FindMoreDHTNodes(context.Context) (int, error) { return 0, f.findMoreErr }
func (f *fakeDHT) FindAddress(context.Context, overlay.NodeIdShort) (*net.UDPAddr, ed25519.PublicKey, error) {
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return nil, nil, errors.New("not found yet")
	}
	if f.findErr != nil {
		return nil, nil, f.findErr
	}
	return f.addr, f.pub, nil
}

func TestResolvePeerRetriesThenSucceeds(t *testing.T) {
	_, pub, _ := ed25519.GenerateKey(rand.Reader)
	dht := &fakeDHT{failuresLeft: 5, addr: &net.UDPAddr{IP: net.ParseIP("1.2.3.4"), Port: 1234}, pub: pub}
	uninit := NewUninit(&fakeADNL{}, dht, &fakeRLDP{})

	peer, err := uninit.ResolvePeer(context.Background(), nil, overlay.NodeIdShort{})
	if err != nil {
		t.Fatalf("ResolvePeer: %v", err)
	}
	if peer.IP.String() != dht.addr.String() {
		t.Fatalf("peer.IP = %v, want %v", peer.IP, dht.addr)
	}
}

func TestResolvePeerFailsAfterTenAttempts(t *testing.T) {
	dht := &fakeDHT{failuresLeft: 999}
	uninit := NewUninit(&fakeADNL{}, dht, &fakeRLDP{})

	_, err := uninit.ResolvePeer(context.Background(), nil, overlay.NodeIdShort{})
	if err == nil {
		t.Fatalf("expected ResolvePeer to fail after exhausting retries")
	}
	if got, want := 999-dht.failuresLeft, resolveRetryCount; got != want {
		t.Fatalf("FindAddress called %d times, want %d", got, want)
	}
}
