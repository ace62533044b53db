package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"path/filepath"

	"github.com/broxus/ton-subwalk/internal/appconfig"
	"github.com/broxus/ton-subwalk/internal/control"
	"github.com/broxus/ton-subwalk/internal/fetch"
	"github.com/broxus/ton-subwalk/internal/nodeconfig"
	"github.com/broxus/ton-subwalk/internal/overlay"
	"github.com/broxus/ton-subwalk/internal/subscription"
	"github.com/broxus/ton-subwalk/internal/udprpc"
)

// engine bundles every handle buildEngine wires up. The commands use
// subscription and control; none of them reads session.
type engine struct {
	subscription *subscription.Subscription
	session      *udprpc.NodeUdpRpc
	control      *control.Client

	close func()
}

func (e *engine) Close() {
	if e.close != nil {
		e.close()
	}
}

// parsePeerID decodes the hex-encoded 32-byte short id identifying the
// single remote node this process talks to (spec §4.1).
func parsePeerID(s string) (overlay.NodeIdShort, error) {
	var id overlay.NodeIdShort
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("peer_id: %w", err)
	}
	if len(raw) != len(id) {
		return id, fmt.Errorf("peer_id: want %d bytes, got %d", len(id), len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

func parseZerostateHash(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("zerostate_file_hash: %w", err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("zerostate_file_hash: want %d bytes, got %d", len(out), len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// buildEngine stands up the full UDP RPC session (C1), resolves the
// configured peer over DHT, wires the block fetcher (C3), dials the
// control channel (A4) and starts the subscription's walker (C4/C5).
// Every long-running command (run, send, console) goes through this —
// it is the CLI-side equivalent of the source's two-phase UDP RPC
// construction (spec §4.1/§9).
func buildEngine(ctx context.Context, cfg appconfig.Config) (*engine, error) {
	peerID, err := parsePeerID(cfg.PeerID)
	if err != nil {
		return nil, err
	}
	zerostate, err := parseZerostateHash(cfg.ZerostateFileHash)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenPacket("udp", cfg.UDPListenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", cfg.UDPListenAddr, err)
	}

	adnlNode := overlay.NewADNL(conn)
	if _, err := adnlNode.GenerateKey(overlay.KeyTag); err != nil {
		conn.Close()
		return nil, err
	}
	if err := adnlNode.Start(); err != nil {
		conn.Close()
		return nil, err
	}

	dhtNode, err := overlay.NewDHT(adnlNode.Transport(), filepath.Join(cfg.DataDir, "dht"))
	if err != nil {
		adnlNode.Close()
		return nil, err
	}
	rldpNode := overlay.NewRLDP(adnlNode, true)

	globalCfg, err := nodeconfig.LoadGlobalConfig(cfg.GlobalConfigPath)
	if err != nil {
		dhtNode.Close()
		adnlNode.Close()
		return nil, err
	}
	bootstrap, err := globalCfg.DHTPeers()
	if err != nil {
		dhtNode.Close()
		adnlNode.Close()
		return nil, err
	}

	uninit := udprpc.NewUninit(adnlNode, dhtNode, rldpNode)
	peer, err := uninit.ResolvePeer(ctx, bootstrap, peerID)
	if err != nil {
		dhtNode.Close()
		adnlNode.Close()
		return nil, fmt.Errorf("resolve peer: %w", err)
	}
	session, err := uninit.Initialize(peer, zerostate)
	if err != nil {
		dhtNode.Close()
		adnlNode.Close()
		return nil, fmt.Errorf("initialize udp rpc: %w", err)
	}

	fetcher, err := fetch.New(session)
	if err != nil {
		dhtNode.Close()
		adnlNode.Close()
		return nil, err
	}

	ctl, err := control.Dial(ctx, cfg.ControlDialAddr)
	if err != nil {
		dhtNode.Close()
		adnlNode.Close()
		return nil, fmt.Errorf("dial control %s: %w", cfg.ControlDialAddr, err)
	}

	sub := subscription.New(ctx, fetcher, ctl)

	return &engine{
		subscription: sub,
		session:      session,
		control:      ctl,
		close: func() {
			sub.Close()
			ctl.Close()
			dhtNode.Close()
			adnlNode.Close()
		},
	}, nil
}
