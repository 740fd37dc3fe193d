// Package signing manages cookiejar signing identities: secp256k1
// keypairs persisted as a single hex line, and the compact recoverable
// signatures that identify transactions and batches.
//
// The public key is the 33-byte compressed SEC1 encoding, hex encoded.
// It is the canonical identity used both for addressing and for
// authenticating headers.
package signing

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

const (
	// PrivateKeyLen is the length of a raw private key in bytes.
	PrivateKeyLen = 32
	// PublicKeyLen is the length of a compressed public key in bytes.
	PublicKeyLen = 33
	// SignatureLen is the length of a compact recoverable signature.
	SignatureLen = 65
)

var (
	ErrInvalidPrivateKey = errors.New("invalid private key")
	ErrInvalidSignature  = errors.New("invalid signature")
)

// Signer signs messages with one private key.
type Signer struct {
	privateKey   *secp256k1.PrivateKey
	publicKeyHex string
}

// NewSigner creates a Signer from a private key.
func NewSigner(priv *secp256k1.PrivateKey) *Signer {
	return &Signer{
		privateKey:   priv,
		publicKeyHex: hex.EncodeToString(priv.PubKey().SerializeCompressed()),
	}
}

// GeneratePrivateKey returns a fresh random private key.
func GeneratePrivateKey() (*secp256k1.PrivateKey, error) {
	return secp256k1.GeneratePrivateKey()
}

// ParsePrivateKeyHex parses a hex encoded 32-byte private key. Keys that
// are zero or not below the curve order are rejected.
func ParsePrivateKeyHex(s string) (*secp256k1.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if len(s) != 2*PrivateKeyLen {
		return nil, fmt.Errorf("%w: expected %d hex characters, got %d", ErrInvalidPrivateKey, 2*PrivateKeyLen, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	var k secp256k1.ModNScalar
	if overflow := k.SetByteSlice(b); overflow || k.IsZero() {
		return nil, fmt.Errorf("%w: scalar out of range", ErrInvalidPrivateKey)
	}
	return secp256k1.NewPrivateKey(&k), nil
}

// PrivateKeyHex returns the hex encoding of priv.
func PrivateKeyHex(priv *secp256k1.PrivateKey) string {
	return hex.EncodeToString(priv.Serialize())
}

// PublicKeyHex returns the hex-encoded compressed public key.
// This is the canonical identity of the signer.
func (s *Signer) PublicKeyHex() string {
	return s.publicKeyHex
}

// Sign signs sha256(message) and returns the hex encoded compact
// signature.
func (s *Signer) Sign(message []byte) string {
	digest := sha256.Sum256(message)
	return hex.EncodeToString(ecdsa.SignCompact(s.privateKey, digest[:], true))
}

// Verify reports whether signatureHex is a valid signature of message by
// the key whose compressed hex encoding is publicKeyHex.
//
// Only the low-S form is accepted. Signatures name transactions and
// batches, so a message must have exactly one valid encoding per key.
func Verify(publicKeyHex string, message []byte, signatureHex string) error {
	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != SignatureLen {
		return fmt.Errorf("%w: malformed encoding", ErrInvalidSignature)
	}
	// Layout: recovery code, R, S.
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(sig[33:]); overflow || s.IsOverHalfOrder() {
		return fmt.Errorf("%w: non-canonical S value", ErrInvalidSignature)
	}
	digest := sha256.Sum256(message)
	pub, compressed, err := ecdsa.RecoverCompact(sig, digest[:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !compressed {
		return fmt.Errorf("%w: signer key is not compressed", ErrInvalidSignature)
	}
	if hex.EncodeToString(pub.SerializeCompressed()) != strings.ToLower(publicKeyHex) {
		return fmt.Errorf("%w: not signed by %s", ErrInvalidSignature, publicKeyHex)
	}
	return nil
}
