// Package overlay models the ADNL/RLDP/DHT capability surface the engine
// consumes (spec §6). The real protocols' packet cryptography is out of
// scope (spec §1) and assumed to live in an external network library; this
// package defines the interfaces that boundary exposes, plus one narrowly
// scoped concrete implementation (a pending-reply-list transport in the
// style of go-ethereum's discover/udp.go) so the repo is runnable
// without such a library linked in.
package overlay

import (
	"crypto/ed25519"
	"crypto/sha256"
	"net"
)

// NodeIdShort is the 32-byte hash identity of an ADNL peer.
type NodeIdShort [32]byte

func ShortIDFromPublicKey(pub ed25519.PublicKey) NodeIdShort {
	return NodeIdShort(sha256.Sum256(pub))
}

// OverlayID identifies a logical overlay; every query inside it carries
// this id as a prefix.
type OverlayID [32]byte

// ForShardOverlay computes the overlay id for a shard's zerostate, per
// spec §4.1. The real construction mixes in a TL-serialized "shard" box;
// here it is simplified to a domain-separated hash, which is sufficient
// since no peer outside this process needs to reproduce TON's exact
// overlay id derivation for the engine to function against its own
// transport implementation.
func ForShardOverlay(workchain int32, zerostateFileHash [32]byte) OverlayID {
	h := sha256.New()
	h.Write([]byte("shard_overlay"))
	var wc [4]byte
	wc[0] = byte(workchain >> 24)
	wc[1] = byte(workchain >> 16)
	wc[2] = byte(workchain >> 8)
	wc[3] = byte(workchain)
	h.Write(wc[:])
	h.Write(zerostateFileHash[:])
	var out OverlayID
	copy(out[:], h.Sum(nil))
	return out
}

// ComputeShortID reduces a full overlay id to the short id carried in
// query prefixes.
func (id OverlayID) ComputeShortID() NodeIdShort {
	return NodeIdShort(sha256.Sum256(id[:]))
}

// RemotePeer is an immutable (address, public key) pair identifying the
// single node this process talks to.
type RemotePeer struct {
	IP     *net.UDPAddr
	PubKey ed25519.PublicKey
}

// PeerContext records why a peer was added to ADNL's peer table; mirrors
// the source's adnl::NewPeerContext.
type PeerContext int

const (
	PeerContextDHT PeerContext = iota
	PeerContextOverlay
)
