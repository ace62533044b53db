// Package nodeconfig implements the validator node's JSON config (A1):
// a document that preserves unknown top-level keys byte-structurally
// while exposing typed accessors for the keys the engine reads and
// writes, plus the flat DHT bootstrap list consumed by peer resolution.
package nodeconfig

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/broxus/ton-subwalk/internal/overlay"
)

const (
	keyIPAddress         = "ip_address"
	keyControlServer     = "control_server"
	keyControlServerPort = "control_server_port"
	keyAdnlNode          = "adnl_node"
)

// NodeConfig wraps a raw top-level JSON object so round-tripping never
// drops keys this module doesn't know about.
type NodeConfig struct {
	raw map[string]json.RawMessage
}

func New() *NodeConfig {
	return &NodeConfig{raw: make(map[string]json.RawMessage)}
}

func Load(path string) (*NodeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("nodeconfig: read %s: %w", path, err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("nodeconfig: parse %s: %w", path, err)
	}
	return &NodeConfig{raw: raw}, nil
}

func (c *NodeConfig) Store(path string) error {
	data, err := json.MarshalIndent(c.raw, "", "  ")
	if err != nil {
		return fmt.Errorf("nodeconfig: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("nodeconfig: write %s: %w", path, err)
	}
	return nil
}

func (c *NodeConfig) setField(field string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("nodeconfig: marshal %s: %w", field, err)
	}
	if c.raw == nil {
		c.raw = make(map[string]json.RawMessage)
	}
	c.raw[field] = data
	return nil
}

// IPAddress returns the "ip_address" field, if present.
func (c *NodeConfig) IPAddress() (string, bool, error) {
	raw, ok := c.raw[keyIPAddress]
	if !ok {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false, fmt.Errorf("nodeconfig: parse ip_address: %w", err)
	}
	return s, true, nil
}

func (c *NodeConfig) SetIPAddress(addr string) error {
	return c.setField(keyIPAddress, addr)
}

// ControlServerPort returns the "control_server_port" field, if present.
func (c *NodeConfig) ControlServerPort() (int, bool, error) {
	raw, ok := c.raw[keyControlServerPort]
	if !ok {
		return 0, false, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false, fmt.Errorf("nodeconfig: parse control_server_port: %w", err)
	}
	return n, true, nil
}

func (c *NodeConfig) SetControlServerPort(port int) error {
	return c.setField(keyControlServerPort, port)
}

// base64Key32 round-trips a 32-byte key through JSON as base64, the
// encoding spec §6 requires for adnl_node/control_server key material.
type base64Key32 [32]byte

func (k base64Key32) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.StdEncoding.EncodeToString(k[:]))
}

func (k *base64Key32) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("nodeconfig: invalid base64 key: %w", err)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("nodeconfig: key must be 32 bytes, got %d", len(decoded))
	}
	copy(k[:], decoded)
	return nil
}

// AdnlKeyEntry is one entry of adnl_node.keys: a tag and its private key
// material. The real config's pub_key field is unit ("()") since the
// public key is always derived from the private key; it is omitted here.
type AdnlKeyEntry struct {
	Tag  int `json:"tag"`
	Data struct {
		TypeID int         `json:"type_id"`
		PvtKey base64Key32 `json:"pvt_key"`
	} `json:"data"`
}

// NodeConfigAdnl mirrors the adnl_node object (spec §6).
type NodeConfigAdnl struct {
	IPAddress        string         `json:"ip_address"`
	Keys             []AdnlKeyEntry `json:"keys"`
	RecvPipelinePool *uint8         `json:"recv_pipeline_pool,omitempty"`
	RecvPriorityPool *uint8         `json:"recv_priority_pool,omitempty"`
	Throughput       *uint32        `json:"throughput,omitempty"`
}

// PrivateKey returns the ed25519 private key registered under tag, if any.
func (a *NodeConfigAdnl) PrivateKey(tag int) (ed25519.PrivateKey, bool) {
	for _, entry := range a.Keys {
		if entry.Tag == tag {
			seed := entry.Data.PvtKey
			return ed25519.NewKeyFromSeed(seed[:]), true
		}
	}
	return nil, false
}

func (c *NodeConfig) AdnlNode() (*NodeConfigAdnl, bool, error) {
	raw, ok := c.raw[keyAdnlNode]
	if !ok {
		return nil, false, nil
	}
	var node NodeConfigAdnl
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, false, fmt.Errorf("nodeconfig: parse adnl_node: %w", err)
	}
	return &node, true, nil
}

func (c *NodeConfig) SetAdnlNode(node *NodeConfigAdnl) error {
	return c.setField(keyAdnlNode, node)
}

// controlClients models the {any} | {list: [...]} union: Any set means
// "any", otherwise List holds the allowed client keys.
type controlClients struct {
	Any  bool
	List []ed25519.PublicKey
}

func (cl controlClients) MarshalJSON() ([]byte, error) {
	if cl.Any {
		return json.Marshal("any")
	}
	type item struct {
		TypeID int         `json:"type_id"`
		PubKey base64Key32 `json:"pub_key"`
	}
	items := make([]item, len(cl.List))
	for i, pub := range cl.List {
		var it item
		copy(it.PubKey[:], pub)
		items[i] = it
	}
	return json.Marshal(struct {
		List []item `json:"list"`
	}{List: items})
}

func (cl *controlClients) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		if asString != "any" {
			return fmt.Errorf("nodeconfig: unexpected control_server.clients string %q", asString)
		}
		cl.Any = true
		return nil
	}

	var asList struct {
		List []struct {
			TypeID int         `json:"type_id"`
			PubKey base64Key32 `json:"pub_key"`
		} `json:"list"`
	}
	if err := json.Unmarshal(data, &asList); err != nil {
		return fmt.Errorf("nodeconfig: parse control_server.clients: %w", err)
	}
	cl.List = make([]ed25519.PublicKey, len(asList.List))
	for i, entry := range asList.List {
		pub := make(ed25519.PublicKey, 32)
		copy(pub, entry.PubKey[:])
		cl.List[i] = pub
	}
	return nil
}

// NodeConfigControlServerTimeouts mirrors control_server.timeouts.
type NodeConfigControlServerTimeouts struct {
	ReadMs  int64 `json:"read"`
	WriteMs int64 `json:"write"`
}

// NodeConfigControlServer mirrors the control_server object (spec §6).
type NodeConfigControlServer struct {
	Address   string                           `json:"address"`
	Clients   controlClients                   `json:"clients"`
	ServerKey base64Key32                      `json:"server_key"`
	Timeouts  *NodeConfigControlServerTimeouts `json:"timeouts,omitempty"`
}

func (c *NodeConfig) ControlServer() (*NodeConfigControlServer, bool, error) {
	raw, ok := c.raw[keyControlServer]
	if !ok {
		return nil, false, nil
	}
	var server NodeConfigControlServer
	if err := json.Unmarshal(raw, &server); err != nil {
		return nil, false, fmt.Errorf("nodeconfig: parse control_server: %w", err)
	}
	return &server, true, nil
}

func (c *NodeConfig) SetControlServer(server *NodeConfigControlServer) error {
	return c.setField(keyControlServer, server)
}

// GlobalConfig is the flat DHT bootstrap list consumed by resolve_peer
// (spec §4.1/§6).
type GlobalConfig struct {
	DHTNodes []GlobalConfigDHTEntry `json:"dht_nodes"`
}

type GlobalConfigDHTEntry struct {
	ID        base64Key32 `json:"id"`
	Address   string      `json:"address"`
	PublicKey base64Key32 `json:"public_key"`
}

func LoadGlobalConfig(path string) (*GlobalConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("nodeconfig: read global config %s: %w", path, err)
	}
	var cfg GlobalConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("nodeconfig: parse global config %s: %w", path, err)
	}
	return &cfg, nil
}

// DHTPeers converts the bootstrap list into overlay.DHTPeer entries ready
// for UninitNodeUdpRpc.ResolvePeer.
func (g *GlobalConfig) DHTPeers() ([]overlay.DHTPeer, error) {
	peers := make([]overlay.DHTPeer, 0, len(g.DHTNodes))
	for _, entry := range g.DHTNodes {
		addr, err := net.ResolveUDPAddr("udp", entry.Address)
		if err != nil {
			return nil, fmt.Errorf("nodeconfig: resolve dht peer address %q: %w", entry.Address, err)
		}
		pub := make(ed25519.PublicKey, 32)
		copy(pub, entry.PublicKey[:])
		peers = append(peers, overlay.DHTPeer{
			ID:        overlay.NodeIdShort(entry.ID),
			Addr:      addr,
			PublicKey: pub,
		})
	}
	return peers, nil
}
