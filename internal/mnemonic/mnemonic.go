// Package mnemonic implements key derivation (A3): a 24-word phrase,
// validated word-by-word against the standard wordlist, deriving an
// Ed25519 keypair through the exact (non-BIP39-standard) KDF the engine
// requires.
package mnemonic

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39/wordlists"
	"golang.org/x/crypto/pbkdf2"
)

const (
	wordCount       = 24
	pbkdfIterations = 100000
	pbkdfKeyLen     = 64
	pbkdfSalt       = "TON default seed"
)

var wordSet = buildWordSet(wordlists.English)

func buildWordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// ValidatePhrase requires exactly 24 whitespace-separated words, each
// present in the fixed wordlist. Unlike standard BIP39 validation, no
// checksum is verified — the source's mnemonic scheme only constrains
// word count and membership.
func ValidatePhrase(phrase string) error {
	words := strings.Fields(phrase)
	if len(words) != wordCount {
		return fmt.Errorf("mnemonic: expected %d words, got %d", wordCount, len(words))
	}
	for _, w := range words {
		if _, ok := wordSet[w]; !ok {
			return fmt.Errorf("mnemonic: word %q is not in the wordlist", w)
		}
	}
	return nil
}

// DeriveKeypair derives the Ed25519 keypair for phrase:
//
//	password = HMAC-SHA512(key=phrase, message="")
//	seed     = PBKDF2-HMAC-SHA512(password, "TON default seed", 100000, 64)
//	secret   = seed[0:32]
func DeriveKeypair(phrase string) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	if err := ValidatePhrase(phrase); err != nil {
		return nil, nil, err
	}

	mac := hmac.New(sha512.New, []byte(phrase))
	password := mac.Sum(nil)

	seed := pbkdf2.Key(password, []byte(pbkdfSalt), pbkdfIterations, pbkdfKeyLen, sha512.New)

	priv := ed25519.NewKeyFromSeed(seed[:32])
	pub := priv.Public().(ed25519.PublicKey)
	return priv, pub, nil
}
