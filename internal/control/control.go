// Package control implements the TCP control-channel client (A4): a
// deliberately minimal stand-in for the real TL-based control protocol
// (out of scope per spec §1) that only implements the two operations the
// engine actually calls, framed as length-prefixed JSON envelopes.
package control

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/broxus/ton-subwalk/internal/chain"
)

// NodeStats is the discriminated status the control server reports.
// Only StatusRunning carries a masterchain tip; the other variants are
// treated as hard failures by GetLastMcBlock callers (spec §4.5 step 1).
type NodeStats struct {
	Status      Status
	LastMcBlock chain.BlockIdExt
}

type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusSyncing Status = "syncing"
)

// NodeTcpRpc is the subset of the control server's client the engine
// consumes (spec §6).
type NodeTcpRpc interface {
	SendMessage(ctx context.Context, payload []byte) error
	GetStats(ctx context.Context) (NodeStats, error)
}

type wireEnvelope struct {
	Op          string `json:"op"`
	Payload     []byte `json:"payload,omitempty"`
	Error       string `json:"error,omitempty"`
	Status      Status `json:"status,omitempty"`
	LastMcBlock *wireBlockID `json:"last_mc_block,omitempty"`
}

type wireBlockID struct {
	Workchain int32  `json:"workchain"`
	Shard     uint64 `json:"shard"`
	SeqNo     uint32 `json:"seq_no"`
	RootHash  string `json:"root_hash"`
	FileHash  string `json:"file_hash"`
}

// Client dials a control-server socket once and serializes requests over
// it; each call writes one length-prefixed JSON envelope and reads one
// back.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
}

func Dial(ctx context.Context, addr string) (*Client, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("control: dial %s: %w", addr, err)
	}
	return &Client{conn: conn, r: bufio.NewReader(conn)}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) roundtrip(ctx context.Context, req wireEnvelope) (wireEnvelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
	} else {
		_ = c.conn.SetDeadline(time.Time{})
	}

	data, err := json.Marshal(req)
	if err != nil {
		return wireEnvelope{}, fmt.Errorf("control: marshal request: %w", err)
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := c.conn.Write(lenBuf[:]); err != nil {
		return wireEnvelope{}, fmt.Errorf("control: write length: %w", err)
	}
	if _, err := c.conn.Write(data); err != nil {
		return wireEnvelope{}, fmt.Errorf("control: write body: %w", err)
	}

	if _, err := io.ReadFull(c.r, lenBuf[:]); err != nil {
		return wireEnvelope{}, fmt.Errorf("control: read length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(c.r, body); err != nil {
		return wireEnvelope{}, fmt.Errorf("control: read body: %w", err)
	}

	var resp wireEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		return wireEnvelope{}, fmt.Errorf("control: decode response: %w", err)
	}
	if resp.Error != "" {
		return wireEnvelope{}, fmt.Errorf("control: remote error: %s", resp.Error)
	}
	return resp, nil
}

func (c *Client) SendMessage(ctx context.Context, payload []byte) error {
	_, err := c.roundtrip(ctx, wireEnvelope{Op: "send_message", Payload: payload})
	return err
}

func (c *Client) GetStats(ctx context.Context) (NodeStats, error) {
	resp, err := c.roundtrip(ctx, wireEnvelope{Op: "get_stats"})
	if err != nil {
		return NodeStats{}, err
	}

	stats := NodeStats{Status: resp.Status}
	if resp.Status == StatusRunning {
		if resp.LastMcBlock == nil {
			return NodeStats{}, fmt.Errorf("control: running status missing last_mc_block")
		}
		id, err := decodeWireBlockID(*resp.LastMcBlock)
		if err != nil {
			return NodeStats{}, fmt.Errorf("control: decode last_mc_block: %w", err)
		}
		stats.LastMcBlock = id
	}
	return stats, nil
}

func decodeWireBlockID(w wireBlockID) (chain.BlockIdExt, error) {
	var id chain.BlockIdExt
	id.Workchain = w.Workchain
	id.Shard = w.Shard
	id.SeqNo = w.SeqNo

	root, err := hex.DecodeString(w.RootHash)
	if err != nil || len(root) != len(id.RootHash) {
		return chain.BlockIdExt{}, fmt.Errorf("control: malformed root_hash")
	}
	copy(id.RootHash[:], root)

	file, err := hex.DecodeString(w.FileHash)
	if err != nil || len(file) != len(id.FileHash) {
		return chain.BlockIdExt{}, fmt.Errorf("control: malformed file_hash")
	}
	copy(id.FileHash[:], file)

	return id, nil
}
