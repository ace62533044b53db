package main

import (
	"strings"
	"testing"
)

func TestParsePeerIDRoundTrip(t *testing.T) {
	hex32 := strings.Repeat("ab", 32)
	id, err := parsePeerID(hex32)
	if err != nil {
		t.Fatalf("parsePeerID: %v", err)
	}
	if id[0] != 0xab || id[31] != 0xab {
		t.Fatalf("unexpected decoded id: %x", id)
	}
}

func TestParsePeerIDRejectsWrongLength(t *testing.T) {
	if _, err := parsePeerID(strings.Repeat("ab", 31)); err == nil {
		t.Fatalf("expected error for short peer id")
	}
}

func TestParseZerostateHashRejectsBadHex(t *testing.T) {
	if _, err := parseZerostateHash("not-hex"); err == nil {
		t.Fatalf("expected error for non-hex zerostate hash")
	}
}

func TestParseZerostateHashRoundTrip(t *testing.T) {
	hex32 := strings.Repeat("11", 32)
	hash, err := parseZerostateHash(hex32)
	if err != nil {
		t.Fatalf("parseZerostateHash: %v", err)
	}
	if hash[0] != 0x11 {
		t.Fatalf("unexpected decoded hash: %x", hash)
	}
}
