package cookiejartest

import (
	"encoding/hex"
	"testing"

	"github.com/blockberries/cookiejar/envelope"
	"github.com/blockberries/cookiejar/signing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// NewSigner returns a signer for a fresh random identity.
func NewSigner(t testing.TB) *signing.Signer {
	t.Helper()
	priv, err := signing.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return signing.NewSigner(priv)
}

// NewBuilder returns an envelope builder for a fresh random identity.
func NewBuilder(t testing.TB, opts ...envelope.Option) *envelope.Builder {
	t.Helper()
	return envelope.NewBuilder(NewSigner(t), opts...)
}

// WriteKey stores a fresh key as <dir>/<name>.priv and returns its path.
func WriteKey(t testing.TB, dir, name string) string {
	t.Helper()
	priv, err := signing.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path, err := signing.WriteKeyFiles(dir, name, priv, false)
	if err != nil {
		t.Fatalf("write key: %v", err)
	}
	return path
}

// HighS returns the high-S twin of a compact signature: S replaced by
// N-S with the recovery id flipped. It recovers the same public key.
func HighS(t testing.TB, sigHex string) string {
	t.Helper()
	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != signing.SignatureLen {
		t.Fatalf("malformed signature %q", sigHex)
	}
	var s secp256k1.ModNScalar
	if s.SetByteSlice(sig[33:]) {
		t.Fatalf("S overflows the group order")
	}
	s.Negate()
	b := s.Bytes()
	copy(sig[33:], b[:])
	sig[0] ^= 1
	return hex.EncodeToString(sig)
}
