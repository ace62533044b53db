package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
	"gopkg.in/urfave/cli.v1"

	"github.com/broxus/ton-subwalk/internal/mnemonic"
	"github.com/broxus/ton-subwalk/internal/nodeconfig"
)

const mnemonicEntropyBits = 256 // 256 bits -> 24 words

// ed25519PrivateKeyTypeID is the TL constructor id for pk.ed25519
// (spec §6 "keys list of {tag, data:{type_id, ...}}").
const ed25519PrivateKeyTypeID = 1209251014

var (
	keygenPhraseFlag = cli.StringFlag{
		Name:  "phrase",
		Usage: "existing 24-word mnemonic to derive from (a fresh one is generated if omitted)",
	}
	keygenOutFlag = cli.StringFlag{
		Name:  "out",
		Usage: "node config JSON to write the derived key into under adnl_node.keys (optional)",
	}
	keygenTagFlag = cli.IntFlag{
		Name:  "tag",
		Usage: "ADNL key tag to register the derived key under",
		Value: 0,
	}
)

var keygenCommand = cli.Command{
	Name:  "keygen",
	Usage: "derive (or generate) an Ed25519 keypair from a 24-word mnemonic",
	Flags: []cli.Flag{keygenPhraseFlag, keygenOutFlag, keygenTagFlag},
	Action: func(c *cli.Context) error {
		phrase := strings.TrimSpace(c.String(keygenPhraseFlag.Name))
		if phrase == "" {
			entropy, err := bip39.NewEntropy(mnemonicEntropyBits)
			if err != nil {
				return fmt.Errorf("keygen: generate entropy: %w", err)
			}
			phrase, err = bip39.NewMnemonic(entropy)
			if err != nil {
				return fmt.Errorf("keygen: generate mnemonic: %w", err)
			}
		}

		priv, pub, err := mnemonic.DeriveKeypair(phrase)
		if err != nil {
			return fmt.Errorf("keygen: %w", err)
		}

		fmt.Printf("mnemonic:    %s\n", phrase)
		fmt.Printf("public_key:  %s\n", hex.EncodeToString(pub))

		outPath := c.String(keygenOutFlag.Name)
		if outPath == "" {
			return nil
		}
		if err := writeKeyToNodeConfig(outPath, c.Int(keygenTagFlag.Name), priv); err != nil {
			return fmt.Errorf("keygen: %w", err)
		}
		fmt.Printf("wrote adnl_node key (tag %d) to %s\n", c.Int(keygenTagFlag.Name), outPath)
		return nil
	},
}

func writeKeyToNodeConfig(path string, tag int, priv ed25519.PrivateKey) error {
	cfg, err := nodeconfig.Load(path)
	if err != nil {
		cfg = nodeconfig.New()
	}

	adnlNode, ok, err := cfg.AdnlNode()
	if err != nil {
		return err
	}
	if !ok {
		adnlNode = &nodeconfig.NodeConfigAdnl{}
	}

	seed := priv.Seed()
	var entry nodeconfig.AdnlKeyEntry
	entry.Tag = tag
	entry.Data.TypeID = ed25519PrivateKeyTypeID
	copy(entry.Data.PvtKey[:], seed)

	replaced := false
	for i := range adnlNode.Keys {
		if adnlNode.Keys[i].Tag == tag {
			adnlNode.Keys[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		adnlNode.Keys = append(adnlNode.Keys, entry)
	}

	if err := cfg.SetAdnlNode(adnlNode); err != nil {
		return err
	}
	return cfg.Store(path)
}
