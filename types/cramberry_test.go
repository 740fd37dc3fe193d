package types_test

import (
	"bytes"
	"testing"

	"github.com/blockberries/cookiejar/types"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// roundTrip marshals v, unmarshals into a new T, and returns it.
func roundTrip[T any](t *testing.T, v T) T {
	t.Helper()
	data, err := cramberry.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var out T
	if err := cramberry.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	return out
}

func sampleHeader() types.TransactionHeader {
	addr := "a4d219" + "9f2c64d7f0e6a0b5a3e3a8c4c2ffde1d2b7b0d0bdf4cd2a6f2b0f3e9e1c9d0aa"
	return types.TransactionHeader{
		SignerPublicKey:  "02f1c3",
		BatcherPublicKey: "02f1c3",
		FamilyName:       "cookiejar",
		FamilyVersion:    "1.0",
		Inputs:           []string{addr},
		Outputs:          []string{addr},
		Dependencies:     []string{},
		Nonce:            "6a1f3c9e-7a55-4ad4-9d2f-0b8b3f3b9c11",
		PayloadSHA512:    "cf83e1357eefb8bd",
	}
}

func TestTransactionHeader_Deterministic(t *testing.T) {
	h := sampleHeader()
	a, err := cramberry.Marshal(h)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	b, err := cramberry.Marshal(sampleHeader())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("identical headers must serialize identically")
	}

	h.Nonce = "another nonce"
	c, err := cramberry.Marshal(h)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if bytes.Equal(a, c) {
		t.Fatal("headers differing only by nonce must serialize differently")
	}
}

func TestTransactionHeader_RoundTrip(t *testing.T) {
	v := sampleHeader()
	got := roundTrip(t, v)
	if got.FamilyName != v.FamilyName || got.Nonce != v.Nonce || got.PayloadSHA512 != v.PayloadSHA512 {
		t.Fatalf("TransactionHeader round-trip failed: got %+v", got)
	}
	if len(got.Inputs) != 1 || got.Inputs[0] != v.Inputs[0] {
		t.Fatalf("TransactionHeader.Inputs mismatch: %v", got.Inputs)
	}
	if len(got.Outputs) != 1 || got.Outputs[0] != v.Outputs[0] {
		t.Fatalf("TransactionHeader.Outputs mismatch: %v", got.Outputs)
	}
	if len(got.Dependencies) != 0 {
		t.Fatalf("expected no dependencies, got %v", got.Dependencies)
	}
}

func TestBatchList_RoundTrip(t *testing.T) {
	v := types.BatchList{Batches: []types.Batch{{
		Header:          []byte{0x0A, 0x01},
		HeaderSignature: "batch-sig",
		Transactions: []types.Transaction{{
			Header:          []byte{0x0B},
			HeaderSignature: "txn-sig",
			Payload:         []byte{0x01, 0x02},
		}},
	}}}
	got := roundTrip(t, v)
	if len(got.Batches) != 1 || len(got.Batches[0].Transactions) != 1 {
		t.Fatalf("BatchList shape wrong: %+v", got)
	}
	if got.Batches[0].ID() != "batch-sig" || got.Batches[0].Transactions[0].ID() != "txn-sig" {
		t.Fatalf("BatchList ids wrong: %+v", got)
	}
	if !bytes.Equal(got.Batches[0].Transactions[0].Payload, []byte{0x01, 0x02}) {
		t.Fatal("Transaction.Payload mismatch")
	}
}

func TestProcessResponse_RoundTrip(t *testing.T) {
	v := types.ProcessResponse{
		Status:  types.ProcessOK,
		Message: "",
		Writes:  []types.StateEntry{{Address: "a4d219ff", Data: []byte("5")}},
	}
	got := roundTrip(t, v)
	if !got.OK() {
		t.Fatalf("expected OK status, got %s", got.Status)
	}
	if len(got.Writes) != 1 || string(got.Writes[0].Data) != "5" {
		t.Fatalf("ProcessResponse.Writes mismatch: %+v", got.Writes)
	}
}

func TestStatus_Terminal(t *testing.T) {
	for s, want := range map[types.Status]bool{
		types.StatusPending:   false,
		types.StatusUnknown:   false,
		types.StatusCommitted: true,
		types.StatusInvalid:   true,
	} {
		if s.Terminal() != want {
			t.Errorf("%s.Terminal() = %v, want %v", s, s.Terminal(), want)
		}
	}
}

func TestProcessStatus_String(t *testing.T) {
	if types.ProcessInvalidTransaction.String() != "INVALID_TRANSACTION" {
		t.Errorf("unexpected string: %s", types.ProcessInvalidTransaction)
	}
	if types.ProcessStatus(9).String() != "unknown(9)" {
		t.Errorf("unexpected string: %s", types.ProcessStatus(9))
	}
}
