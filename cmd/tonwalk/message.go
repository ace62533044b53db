package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/broxus/ton-subwalk/internal/chain"
)

// parseAddress accepts "<workchain>:<64 hex chars>", the conventional
// TON address notation, and returns the destination chain.Address
// send_message needs (spec §4.4 step 2).
func parseAddress(s string) (*chain.Address, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("address %q: want \"<workchain>:<account hex>\"", s)
	}
	wc, err := strconv.ParseInt(parts[0], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("address %q: bad workchain: %w", s, err)
	}
	raw, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("address %q: bad account hex: %w", s, err)
	}
	var account chain.AccountID
	if len(raw) != len(account) {
		return nil, fmt.Errorf("address %q: account must be %d bytes, got %d", s, len(account), len(raw))
	}
	copy(account[:], raw)
	return &chain.Address{Workchain: int32(wc), Account: account}, nil
}

// newExternalMessage assembles the minimal external-in message
// send_message consumes: a destination address and the raw serialized
// body to submit over the control channel.
func newExternalMessage(dst *chain.Address, body []byte) *chain.Message {
	return &chain.Message{ExternalIn: true, Dst: dst, Body: body}
}

// newExternalMessageHex is newExternalMessage for callers (the console)
// that work with a hex-encoded body rather than a file on disk.
func newExternalMessageHex(dst *chain.Address, bodyHex string) (*chain.Message, error) {
	body, err := hex.DecodeString(bodyHex)
	if err != nil {
		return nil, fmt.Errorf("message body: %w", err)
	}
	return newExternalMessage(dst, body), nil
}
