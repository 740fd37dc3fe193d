// Package envelope builds and verifies the signed envelopes that carry
// cookiejar action requests to a node.
//
// A transaction wraps exactly one payload. Its header commits to the
// signer, the family, the single storage address read and written, an
// empty dependency set, a fresh nonce and the SHA-512 of the payload; the
// signature over the header bytes is the transaction id. A batch wraps
// one or more transactions, commits to their ordered ids and is signed by
// the same identity; its signature is the batch id used for polling.
//
// Building is pure: nothing here touches the network.
package envelope

import (
	"crypto/sha512"
	"encoding/hex"

	"github.com/blockberries/cookiejar"
	"github.com/blockberries/cookiejar/address"
	"github.com/blockberries/cookiejar/signing"
	"github.com/blockberries/cookiejar/types"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"github.com/google/uuid"
)

// Option configures a Builder.
type Option func(*Builder)

// WithNonce replaces the nonce source. The default is a random UUID.
func WithNonce(nonce func() string) Option {
	return func(b *Builder) { b.nonce = nonce }
}

// WithFamily overrides the family name and version committed to by
// headers.
func WithFamily(name, version string) Option {
	return func(b *Builder) {
		b.family = name
		b.version = version
	}
}

// Builder produces signed transactions and batches for one identity.
type Builder struct {
	signer  *signing.Signer
	family  string
	version string
	nonce   func() string
}

// NewBuilder creates a Builder that signs with signer.
func NewBuilder(signer *signing.Signer, opts ...Option) *Builder {
	b := &Builder{
		signer:  signer,
		family:  cookiejar.FamilyName,
		version: cookiejar.FamilyVersion,
		nonce:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// PublicKey returns the hex public key of the builder's identity.
func (b *Builder) PublicKey() string { return b.signer.PublicKeyHex() }

// Address returns the storage address of the builder's identity.
func (b *Builder) Address() string {
	return address.Address(b.family, b.signer.PublicKeyHex())
}

// Transaction builds one signed transaction carrying (action, amount).
func (b *Builder) Transaction(action string, amount uint64) (types.Transaction, error) {
	payload, err := EncodePayload(action, amount)
	if err != nil {
		return types.Transaction{}, err
	}
	addr := b.Address()
	pub := b.signer.PublicKeyHex()
	header := types.TransactionHeader{
		SignerPublicKey:  pub,
		BatcherPublicKey: pub,
		FamilyName:       b.family,
		FamilyVersion:    b.version,
		Inputs:           []string{addr},
		Outputs:          []string{addr},
		Dependencies:     []string{},
		Nonce:            b.nonce(),
		PayloadSHA512:    PayloadHash(payload),
	}
	hb, err := cramberry.Marshal(header)
	if err != nil {
		return types.Transaction{}, cookiejar.NewEncodingError(err, "encode transaction header")
	}
	return types.Transaction{
		Header:          hb,
		HeaderSignature: b.signer.Sign(hb),
		Payload:         payload,
	}, nil
}

// Batch wraps txns, in order, into a batch signed by the builder's
// identity.
func (b *Builder) Batch(txns ...types.Transaction) (types.Batch, error) {
	if len(txns) == 0 {
		return types.Batch{}, cookiejar.NewEncodingError(nil, "batch must contain at least one transaction")
	}
	ids := make([]string, len(txns))
	for i, txn := range txns {
		ids[i] = txn.ID()
	}
	hb, err := cramberry.Marshal(types.BatchHeader{
		SignerPublicKey: b.signer.PublicKeyHex(),
		TransactionIDs:  ids,
	})
	if err != nil {
		return types.Batch{}, cookiejar.NewEncodingError(err, "encode batch header")
	}
	return types.Batch{
		Header:          hb,
		HeaderSignature: b.signer.Sign(hb),
		Transactions:    txns,
	}, nil
}

// Build produces a signed batch holding exactly one transaction that
// carries (action, amount).
func (b *Builder) Build(action string, amount uint64) (types.Batch, error) {
	txn, err := b.Transaction(action, amount)
	if err != nil {
		return types.Batch{}, err
	}
	return b.Batch(txn)
}

// Marshal serializes batches as a BatchList, the body of a submission.
func Marshal(batches ...types.Batch) ([]byte, error) {
	data, err := cramberry.Marshal(types.BatchList{Batches: batches})
	if err != nil {
		return nil, cookiejar.NewEncodingError(err, "encode batch list")
	}
	return data, nil
}

// Unmarshal parses a submitted BatchList.
func Unmarshal(data []byte) (types.BatchList, error) {
	var list types.BatchList
	if len(data) == 0 {
		return list, cookiejar.NewEncodingError(nil, "empty batch list")
	}
	if err := cramberry.Unmarshal(data, &list); err != nil {
		return types.BatchList{}, cookiejar.NewEncodingError(err, "decode batch list")
	}
	if len(list.Batches) == 0 {
		return types.BatchList{}, cookiejar.NewEncodingError(nil, "batch list holds no batches")
	}
	return list, nil
}

// DecodeHeader parses serialized transaction header bytes.
func DecodeHeader(data []byte) (types.TransactionHeader, error) {
	var h types.TransactionHeader
	if err := cramberry.Unmarshal(data, &h); err != nil {
		return types.TransactionHeader{}, cookiejar.NewEncodingError(err, "decode transaction header")
	}
	return h, nil
}

// DecodeBatchHeader parses serialized batch header bytes.
func DecodeBatchHeader(data []byte) (types.BatchHeader, error) {
	var h types.BatchHeader
	if err := cramberry.Unmarshal(data, &h); err != nil {
		return types.BatchHeader{}, cookiejar.NewEncodingError(err, "decode batch header")
	}
	return h, nil
}

// PayloadHash returns the hex SHA-512 of payload.
func PayloadHash(payload []byte) string {
	sum := sha512.Sum512(payload)
	return hex.EncodeToString(sum[:])
}
