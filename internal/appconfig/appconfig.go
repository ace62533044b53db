// Package appconfig implements the process-level TOML config (A2): data
// directory, logging, and the listen/dial addresses every tonwalk
// subcommand needs, following the same naoina/toml loadConfig/Marshal
// idiom go-ethereum-derived CLIs use for their own TOML config file.
package appconfig

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/naoina/toml"
)

// Config is the top-level tonwalk.toml document. Every field except
// PeerID and ZerostateFileHash has a default, so a missing file is not an
// error for commands (like keygen) that don't touch the network.
type Config struct {
	DataDir  string `toml:"data_dir"`
	LogLevel string `toml:"log_level"`

	UDPListenAddr    string `toml:"udp_listen_addr"`
	ControlDialAddr  string `toml:"control_dial_addr"`
	StatusListenAddr string `toml:"status_listen_addr"`

	NodeConfigPath   string `toml:"node_config_path"`
	GlobalConfigPath string `toml:"global_config_path"`

	// PeerID is the hex-encoded short id of the single remote node this
	// process talks to (spec §4.1 "resolves a peer"). Required by every
	// command that opens the UDP RPC session (run, send, console).
	PeerID string `toml:"peer_id"`
	// ZerostateFileHash is the hex-encoded 32-byte zerostate file hash
	// of the chain being followed, parameterizing the shard overlay id
	// (spec §4.1 "Initialization").
	ZerostateFileHash string `toml:"zerostate_file_hash"`
}

// Default returns the configuration tonwalk runs with when no config
// file is present.
func Default() Config {
	return Config{
		DataDir:          "./tonwalk-data",
		LogLevel:         "info",
		UDPListenAddr:    "0.0.0.0:30303",
		ControlDialAddr:  "127.0.0.1:3030",
		StatusListenAddr: "127.0.0.1:8089",
		NodeConfigPath:   "./node_config.json",
		GlobalConfigPath: "./global_config.json",
	}
}

var tomlSettings = toml.Config{
	NormFieldName: func(_ reflect.Type, key string) string { return key },
	FieldToKey:    func(_ reflect.Type, field string) string { return field },
	MissingField: func(_ reflect.Type, _ string) error {
		// Unknown keys are ignored rather than rejected: a tonwalk.toml
		// shared across versions shouldn't break an older binary.
		return nil
	},
}

// Load reads path, overlaying it on top of Default so a partial file is
// enough to override just the fields a deployment cares about.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("appconfig: open %s: %w", path, err)
	}
	defer f.Close()

	if err := tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("appconfig: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Store writes cfg to path as pretty-printed TOML.
func Store(path string, cfg Config) error {
	data, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("appconfig: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("appconfig: write %s: %w", path, err)
	}
	return nil
}
