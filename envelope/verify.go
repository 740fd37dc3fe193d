package envelope

import (
	"github.com/blockberries/cookiejar"
	"github.com/blockberries/cookiejar/signing"
	"github.com/blockberries/cookiejar/types"
)

// VerifyTransaction checks that txn is signed by the signer its header
// declares and that the header commits to its payload. It returns the
// decoded header.
func VerifyTransaction(txn types.Transaction) (types.TransactionHeader, error) {
	h, err := DecodeHeader(txn.Header)
	if err != nil {
		return types.TransactionHeader{}, err
	}
	if err := signing.Verify(h.SignerPublicKey, txn.Header, txn.HeaderSignature); err != nil {
		return types.TransactionHeader{}, cookiejar.NewInvalidTransaction("transaction %s: %v", short(txn.ID()), err)
	}
	if got := PayloadHash(txn.Payload); got != h.PayloadSHA512 {
		return types.TransactionHeader{}, cookiejar.NewInvalidTransaction("transaction %s: payload does not match header hash", short(txn.ID()))
	}
	return h, nil
}

// VerifyBatch checks the batch signature, that the batch header lists
// exactly the contained transaction ids in order, and that every
// transaction is valid and names the batch signer as its batcher.
func VerifyBatch(b types.Batch) (types.BatchHeader, []types.TransactionHeader, error) {
	bh, err := DecodeBatchHeader(b.Header)
	if err != nil {
		return types.BatchHeader{}, nil, err
	}
	if err := signing.Verify(bh.SignerPublicKey, b.Header, b.HeaderSignature); err != nil {
		return types.BatchHeader{}, nil, cookiejar.NewInvalidTransaction("batch %s: %v", short(b.ID()), err)
	}
	if len(bh.TransactionIDs) != len(b.Transactions) {
		return types.BatchHeader{}, nil, cookiejar.NewInvalidTransaction("batch %s: header lists %d transactions, batch holds %d",
			short(b.ID()), len(bh.TransactionIDs), len(b.Transactions))
	}
	headers := make([]types.TransactionHeader, len(b.Transactions))
	for i, txn := range b.Transactions {
		if bh.TransactionIDs[i] != txn.ID() {
			return types.BatchHeader{}, nil, cookiejar.NewInvalidTransaction("batch %s: transaction %d id mismatch", short(b.ID()), i)
		}
		h, err := VerifyTransaction(txn)
		if err != nil {
			return types.BatchHeader{}, nil, err
		}
		if h.BatcherPublicKey != bh.SignerPublicKey {
			return types.BatchHeader{}, nil, cookiejar.NewInvalidTransaction("transaction %s: batcher key does not match batch signer", short(txn.ID()))
		}
		headers[i] = h
	}
	return bh, headers, nil
}

func short(id string) string {
	if len(id) > 16 {
		return id[:16]
	}
	return id
}
