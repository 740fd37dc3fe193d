// Package address derives storage addresses for the cookiejar family.
//
// An address is the first 6 hex characters of SHA-512(namespace name)
// followed by the first 64 hex characters of SHA-512(public key hex),
// 70 lowercase hex characters in total. For "cookiejar" the namespace
// prefix is a4d219.
package address

import (
	"crypto/sha512"
	"encoding/hex"

	"github.com/blockberries/cookiejar"
)

const (
	// PrefixLength is the length of the namespace prefix in hex chars.
	PrefixLength = 6
	// KeyLength is the length of the identity part in hex chars.
	KeyLength = 64
	// Length is the total address length in hex chars.
	Length = PrefixLength + KeyLength
)

// Namespace returns the namespace prefix of name.
func Namespace(name string) string {
	return hash(name)[:PrefixLength]
}

// Address returns the storage address of the identity whose hex
// encoded public key is publicKeyHex, under namespace name.
func Address(name, publicKeyHex string) string {
	return Namespace(name) + hash(publicKeyHex)[:KeyLength]
}

// Cookiejar returns the cookiejar storage address of publicKeyHex.
func Cookiejar(publicKeyHex string) string {
	return Address(cookiejar.FamilyName, publicKeyHex)
}

// Validate checks that addr is a well-formed address: exactly Length
// lowercase hex characters.
func Validate(addr string) error {
	if len(addr) != Length {
		return cookiejar.NewEncodingError(nil, "address must be %d hex characters, got %d", Length, len(addr))
	}
	for i := 0; i < len(addr); i++ {
		c := addr[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return cookiejar.NewEncodingError(nil, "address has non lowercase-hex character %q at %d", c, i)
		}
	}
	return nil
}

// InNamespace reports whether addr lies under one of the prefixes.
func InNamespace(addr string, prefixes ...string) bool {
	for _, p := range prefixes {
		if len(addr) >= len(p) && addr[:len(p)] == p {
			return true
		}
	}
	return false
}

func hash(s string) string {
	sum := sha512.Sum512([]byte(s))
	return hex.EncodeToString(sum[:])
}

