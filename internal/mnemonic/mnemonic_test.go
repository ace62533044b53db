package mnemonic

import (
	"strings"
	"testing"

	"github.com/tyler-smith/go-bip39/wordlists"
)

func samplePhrase() string {
	return strings.Join(wordlists.English[:24], " ")
}

func TestValidatePhraseAcceptsWellFormed(t *testing.T) {
	if err := ValidatePhrase(samplePhrase()); err != nil {
		t.Fatalf("ValidatePhrase: %v", err)
	}
}

func TestValidatePhraseRejectsWrongWordCount(t *testing.T) {
	short := strings.Join(wordlists.English[:23], " ")
	if err := ValidatePhrase(short); err == nil {
		t.Fatalf("expected error for 23-word phrase")
	}
}

func TestValidatePhraseRejectsUnknownWord(t *testing.T) {
	words := append([]string{}, wordlists.English[:23]...)
	words = append(words, "notarealbip39word")
	if err := ValidatePhrase(strings.Join(words, " ")); err == nil {
		t.Fatalf("expected error for out-of-wordlist word")
	}
}

// Property 9: deterministic derivation.
func TestDeriveKeypairIsDeterministic(t *testing.T) {
	phrase := samplePhrase()

	priv1, pub1, err := DeriveKeypair(phrase)
	if err != nil {
		t.Fatalf("DeriveKeypair: %v", err)
	}
	priv2, pub2, err := DeriveKeypair(phrase)
	if err != nil {
		t.Fatalf("DeriveKeypair: %v", err)
	}

	if string(priv1) != string(priv2) {
		t.Fatalf("private keys differ across calls with the same phrase")
	}
	if string(pub1) != string(pub2) {
		t.Fatalf("public keys differ across calls with the same phrase")
	}
}

func TestDeriveKeypairDiffersAcrossPhrases(t *testing.T) {
	phraseA := samplePhrase()
	phraseB := strings.Join(wordlists.English[24:48], " ")

	_, pubA, err := DeriveKeypair(phraseA)
	if err != nil {
		t.Fatalf("DeriveKeypair(A): %v", err)
	}
	_, pubB, err := DeriveKeypair(phraseB)
	if err != nil {
		t.Fatalf("DeriveKeypair(B): %v", err)
	}
	if string(pubA) == string(pubB) {
		t.Fatalf("distinct phrases derived the same public key")
	}
}

func TestDeriveKeypairRejectsInvalidPhrase(t *testing.T) {
	if _, _, err := DeriveKeypair("too few words"); err == nil {
		t.Fatalf("expected validation error for malformed phrase")
	}
}
