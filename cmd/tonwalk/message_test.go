package main

import "testing"

const sampleAccountHex = "0102030000000000000000000000000000000000000000000000000000000000"[:64]

func TestParseAddressRoundTrip(t *testing.T) {
	addr, err := parseAddress("-1:" + sampleAccountHex)
	if err != nil {
		t.Fatalf("parseAddress: %v", err)
	}
	if addr.Workchain != -1 {
		t.Fatalf("Workchain = %d, want -1", addr.Workchain)
	}
	if addr.Account[0] != 0x01 || addr.Account[1] != 0x02 || addr.Account[2] != 0x03 {
		t.Fatalf("Account = %x, want leading 01 02 03", addr.Account[:3])
	}
}

func TestParseAddressRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"0",
		"0:deadbeef",                  // too short
		"notanumber:" + sampleAccountHex, // bad workchain
	}
	for _, c := range cases {
		if _, err := parseAddress(c); err == nil {
			t.Fatalf("parseAddress(%q): expected error, got none", c)
		}
	}
}

func TestNewExternalMessageHexDecodesBody(t *testing.T) {
	addr, err := parseAddress("0:" + sampleAccountHex)
	if err != nil {
		t.Fatalf("parseAddress: %v", err)
	}

	msg, err := newExternalMessageHex(addr, "deadbeef")
	if err != nil {
		t.Fatalf("newExternalMessageHex: %v", err)
	}
	if !msg.ExternalIn {
		t.Fatalf("ExternalIn = false, want true")
	}
	if len(msg.Body) != 4 || msg.Body[0] != 0xde {
		t.Fatalf("Body = %x, want deadbeef", msg.Body)
	}
}

func TestNewExternalMessageHexRejectsBadHex(t *testing.T) {
	addr, err := parseAddress("0:" + sampleAccountHex)
	if err != nil {
		t.Fatalf("parseAddress: %v", err)
	}
	if _, err := newExternalMessageHex(addr, "not-hex"); err == nil {
		t.Fatalf("expected error for non-hex body")
	}
}
