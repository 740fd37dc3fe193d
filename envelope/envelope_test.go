package envelope

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/blockberries/cookiejar"
	"github.com/blockberries/cookiejar/address"
	"github.com/blockberries/cookiejar/signing"
	"github.com/blockberries/cookiejar/types"

	"github.com/stretchr/testify/require"
)

func newSigner(t *testing.T) *signing.Signer {
	t.Helper()
	priv, err := signing.GeneratePrivateKey()
	require.NoError(t, err)
	return signing.NewSigner(priv)
}

func TestPayload_RoundTrip(t *testing.T) {
	for _, tc := range []struct {
		action string
		amount uint64
	}{
		{"increment", 0},
		{"increment", 5},
		{"decrement", 1<<31 - 1},
		{"reset", 0},
		{"increment", ^uint64(0)},
	} {
		data, err := EncodePayload(tc.action, tc.amount)
		require.NoError(t, err)
		again, err := EncodePayload(tc.action, tc.amount)
		require.NoError(t, err)
		require.True(t, bytes.Equal(data, again), "encoding must be canonical")

		p, err := DecodePayload(data)
		require.NoError(t, err)
		require.Equal(t, tc.action, p.Action)
		require.Equal(t, tc.amount, p.Amount)
	}
}

func TestDecodePayload_Malformed(t *testing.T) {
	data, err := EncodePayload("increment", 5)
	require.NoError(t, err)

	for name, in := range map[string][]byte{
		"empty":    nil,
		"trailing": append(append([]byte{}, data...), 0xFF, 0xFF, 0xFF),
	} {
		_, err := DecodePayload(in)
		_, ok := cookiejar.IsEncoding(err)
		require.True(t, ok, "%s: expected EncodingError, got %v", name, err)
	}
}

func TestParseAmount(t *testing.T) {
	n, err := ParseAmount("2147483647")
	require.NoError(t, err)
	require.Equal(t, uint64(1<<31-1), n)

	for _, in := range []string{"-1", "abc", "", "1.5", "18446744073709551616"} {
		_, err := ParseAmount(in)
		_, ok := cookiejar.IsEncoding(err)
		require.True(t, ok, "%q: expected EncodingError, got %v", in, err)
	}
}

func TestBuild(t *testing.T) {
	s := newSigner(t)
	b := NewBuilder(s)

	batch, err := b.Build("increment", 5)
	require.NoError(t, err)
	require.Len(t, batch.Transactions, 1)

	bh, headers, err := VerifyBatch(batch)
	require.NoError(t, err)
	require.Equal(t, s.PublicKeyHex(), bh.SignerPublicKey)
	require.Equal(t, []string{batch.Transactions[0].ID()}, bh.TransactionIDs)

	h := headers[0]
	addr := address.Cookiejar(s.PublicKeyHex())
	require.Equal(t, s.PublicKeyHex(), h.SignerPublicKey)
	require.Equal(t, s.PublicKeyHex(), h.BatcherPublicKey)
	require.Equal(t, cookiejar.FamilyName, h.FamilyName)
	require.Equal(t, cookiejar.FamilyVersion, h.FamilyVersion)
	require.Equal(t, []string{addr}, h.Inputs)
	require.Equal(t, []string{addr}, h.Outputs)
	require.Empty(t, h.Dependencies)
	require.NotEmpty(t, h.Nonce)
	require.Equal(t, PayloadHash(batch.Transactions[0].Payload), h.PayloadSHA512)

	p, err := DecodePayload(batch.Transactions[0].Payload)
	require.NoError(t, err)
	require.Equal(t, types.Payload{Action: "increment", Amount: 5}, p)
}

func TestBuild_UniqueIDs(t *testing.T) {
	b := NewBuilder(newSigner(t))
	first, err := b.Build("increment", 1)
	require.NoError(t, err)
	second, err := b.Build("increment", 1)
	require.NoError(t, err)
	require.NotEqual(t, first.ID(), second.ID())
	require.NotEqual(t, first.Transactions[0].ID(), second.Transactions[0].ID())
}

func TestBuild_FixedNonce(t *testing.T) {
	s := newSigner(t)
	n := 0
	b := NewBuilder(s, WithNonce(func() string {
		n++
		return strconv.Itoa(n)
	}))
	txn, err := b.Transaction("reset", 0)
	require.NoError(t, err)
	h, err := DecodeHeader(txn.Header)
	require.NoError(t, err)
	require.Equal(t, "1", h.Nonce)
}

func TestVerify_Tampering(t *testing.T) {
	s := newSigner(t)
	b := NewBuilder(s)
	batch, err := b.Build("increment", 5)
	require.NoError(t, err)

	t.Run("payload", func(t *testing.T) {
		tampered := cloneBatch(batch)
		p, err := EncodePayload("increment", 500)
		require.NoError(t, err)
		tampered.Transactions[0].Payload = p
		_, _, err = VerifyBatch(tampered)
		_, ok := cookiejar.IsInvalidTransaction(err)
		require.True(t, ok, "expected InvalidTransaction, got %v", err)
	})

	t.Run("transaction signature", func(t *testing.T) {
		other, err := NewBuilder(newSigner(t)).Transaction("increment", 5)
		require.NoError(t, err)
		tampered := cloneBatch(batch)
		tampered.Transactions[0].HeaderSignature = other.HeaderSignature
		_, _, err = VerifyBatch(tampered)
		_, ok := cookiejar.IsInvalidTransaction(err)
		require.True(t, ok, "expected InvalidTransaction, got %v", err)
	})

	t.Run("foreign batcher", func(t *testing.T) {
		txn, err := NewBuilder(newSigner(t)).Transaction("increment", 5)
		require.NoError(t, err)
		foreign, err := b.Batch(txn)
		require.NoError(t, err)
		_, _, err = VerifyBatch(foreign)
		_, ok := cookiejar.IsInvalidTransaction(err)
		require.True(t, ok, "expected InvalidTransaction, got %v", err)
	})

	t.Run("garbage header", func(t *testing.T) {
		tampered := cloneBatch(batch)
		tampered.Header = []byte{0xFF, 0xFF, 0xFF}
		_, _, err := VerifyBatch(tampered)
		require.Error(t, err)
	})
}

func TestMarshal_RoundTrip(t *testing.T) {
	b := NewBuilder(newSigner(t))
	first, err := b.Build("increment", 5)
	require.NoError(t, err)
	second, err := b.Build("decrement", 3)
	require.NoError(t, err)

	data, err := Marshal(first, second)
	require.NoError(t, err)
	list, err := Unmarshal(data)
	require.NoError(t, err)
	require.Len(t, list.Batches, 2)
	require.Equal(t, first.ID(), list.Batches[0].ID())
	require.Equal(t, second.ID(), list.Batches[1].ID())
	for _, batch := range list.Batches {
		_, _, err := VerifyBatch(batch)
		require.NoError(t, err)
	}

	_, err = Unmarshal(nil)
	_, ok := cookiejar.IsEncoding(err)
	require.True(t, ok)
}

func TestBatch_Empty(t *testing.T) {
	_, err := NewBuilder(newSigner(t)).Batch()
	_, ok := cookiejar.IsEncoding(err)
	require.True(t, ok)
}

func cloneBatch(b types.Batch) types.Batch {
	c := b
	c.Transactions = append([]types.Transaction(nil), b.Transactions...)
	return c
}
