package overlay

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// DHTPeer is one entry in the DHT's peer book: a known (id, address,
// public key) triple, either a configured bootstrap node or one learned
// via FindMoreDHTNodes.
type DHTPeer struct {
	ID        NodeIdShort
	Addr      *net.UDPAddr
	PublicKey ed25519.PublicKey
}

// DHTNode is the subset of DHT's Node the engine consumes (spec §6).
type DHTNode interface {
	AddDHTPeer(entry DHTPeer) error
	FindMoreDHTNodes(ctx context.Context) (int, error)
	FindAddress(ctx context.Context, peer NodeIdShort) (*net.UDPAddr, ed25519.PublicKey, error)
}

type dhtRecord struct {
	Addr string `json:"addr"`
	Pub  []byte `json:"pub"`
}

// localDHT is a deliberately small DHT: a persisted peer book (goleveldb,
// in the style of go-ethereum's discover.newTable's nodeDBPath parameter)
// plus a short-TTL resolution cache (go-cache) so repeated lookups for
// the one peer this client cares about don't re-walk the known-peer list
// on every call.
type localDHT struct {
	transport *transport

	mu    sync.RWMutex
	known map[NodeIdShort]DHTPeer

	db    *leveldb.DB
	cache *gocache.Cache
}

// NewDHT builds a DHT node. dbPath may be empty, in which case the peer
// book lives only in memory for the process lifetime (still sufficient
// for a client that is handed its bootstrap list on every start).
func NewDHT(t *transport, dbPath string) (*localDHT, error) {
	var (
		db  *leveldb.DB
		err error
	)
	if dbPath == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(dbPath, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("overlay: open dht peer store: %w", err)
	}

	d := &localDHT{
		transport: t,
		known:     make(map[NodeIdShort]DHTPeer),
		db:        db,
		cache:     gocache.New(30*time.Second, time.Minute),
	}
	d.loadFromDisk()
	return d, nil
}

func (d *localDHT) loadFromDisk() {
	iter := d.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		var id NodeIdShort
		key, err := hex.DecodeString(string(iter.Key()))
		if err != nil || len(key) != len(id) {
			continue
		}
		copy(id[:], key)

		var rec dhtRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue
		}
		addr, err := net.ResolveUDPAddr("udp", rec.Addr)
		if err != nil {
			continue
		}
		d.known[id] = DHTPeer{ID: id, Addr: addr, PublicKey: ed25519.PublicKey(rec.Pub)}
	}
}

func (d *localDHT) AddDHTPeer(entry DHTPeer) error {
	d.mu.Lock()
	d.known[entry.ID] = entry
	d.mu.Unlock()

	rec := dhtRecord{Addr: entry.Addr.String(), Pub: []byte(entry.PublicKey)}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("overlay: marshal dht peer: %w", err)
	}
	return d.db.Put([]byte(hex.EncodeToString(entry.ID[:])), data, nil)
}

type resolveRequest struct {
	Target NodeIdShort `json:"target"`
}

type resolveResponse struct {
	Found bool   `json:"found"`
	Addr  string `json:"addr,omitempty"`
	Pub   []byte `json:"pub,omitempty"`
}

// FindMoreDHTNodes asks every currently known peer to introduce more
// nodes, merging anything new into the peer book. It mirrors discv4's
// findnode/neighbors round trip (udp.go) but over the shared JSON
// envelope this package uses for its DHT queries.
func (d *localDHT) FindMoreDHTNodes(ctx context.Context) (int, error) {
	d.mu.RLock()
	peers := make([]DHTPeer, 0, len(d.known))
	for _, p := range d.known {
		peers = append(peers, p)
	}
	d.mu.RUnlock()

	found := 0
	for _, p := range peers {
		req, err := json.Marshal(struct {
			Op string `json:"op"`
		}{Op: "find_nodes"})
		if err != nil {
			continue
		}
		answer, _, err := d.transport.query(ctx, p.Addr, req, 2*time.Second)
		if err != nil || answer == nil {
			continue
		}
		var neighbors []DHTPeer
		if err := json.Unmarshal(answer, &neighbors); err != nil {
			continue
		}
		for _, n := range neighbors {
			d.mu.Lock()
			_, already := d.known[n.ID]
			d.mu.Unlock()
			if !already {
				if err := d.AddDHTPeer(n); err == nil {
					found++
				}
			}
		}
	}
	return found, nil
}

// FindAddress resolves peer's current address and full identity. A single
// call makes one attempt; internal/udprpc's UninitNodeUdpRpc.resolveIP is responsible for
// the retry loop described in spec §4.1.
func (d *localDHT) FindAddress(ctx context.Context, peer NodeIdShort) (*net.UDPAddr, ed25519.PublicKey, error) {
	cacheKey := hex.EncodeToString(peer[:])
	if cached, ok := d.cache.Get(cacheKey); ok {
		p := cached.(DHTPeer)
		return p.Addr, p.PublicKey, nil
	}

	d.mu.RLock()
	if p, ok := d.known[peer]; ok {
		d.mu.RUnlock()
		d.cache.SetDefault(cacheKey, p)
		return p.Addr, p.PublicKey, nil
	}
	peers := make([]DHTPeer, 0, len(d.known))
	for _, p := range d.known {
		peers = append(peers, p)
	}
	d.mu.RUnlock()

	req, err := json.Marshal(resolveRequest{Target: peer})
	if err != nil {
		return nil, nil, fmt.Errorf("overlay: marshal resolve request: %w", err)
	}

	for _, p := range peers {
		answer, _, err := d.transport.query(ctx, p.Addr, req, 2*time.Second)
		if err != nil || answer == nil {
			continue
		}
		var resp resolveResponse
		if err := json.Unmarshal(answer, &resp); err != nil || !resp.Found {
			continue
		}
		addr, err := net.ResolveUDPAddr("udp", resp.Addr)
		if err != nil {
			continue
		}
		found := DHTPeer{ID: peer, Addr: addr, PublicKey: ed25519.PublicKey(resp.Pub)}
		_ = d.AddDHTPeer(found)
		d.cache.SetDefault(cacheKey, found)
		return addr, found.PublicKey, nil
	}
	return nil, nil, fmt.Errorf("overlay: could not resolve peer %s", cacheKey)
}

func (d *localDHT) Close() error {
	return d.db.Close()
}
