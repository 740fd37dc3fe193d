package local

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/blockberries/cookiejar/envelope"
	"github.com/blockberries/cookiejar/handler"
	"github.com/blockberries/cookiejar/processor"
	"github.com/blockberries/cookiejar/signing"
	"github.com/blockberries/cookiejar/types"
)

func newBuilder(t *testing.T) *envelope.Builder {
	t.Helper()
	priv, err := signing.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return envelope.NewBuilder(signing.NewSigner(priv))
}

func request(t *testing.T, b *envelope.Builder, action string, amount uint64, inputs ...types.StateEntry) types.ProcessRequest {
	t.Helper()
	txn, err := b.Transaction(action, amount)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return types.ProcessRequest{Header: txn.Header, Payload: txn.Payload, Signature: txn.HeaderSignature, Inputs: inputs}
}

func TestLocalConnection_FullCycle(t *testing.T) {
	conn := NewConnection(handler.New())
	defer conn.Close()

	info, err := conn.Info(context.Background(), types.InfoRequest{})
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.FamilyName != "cookiejar" {
		t.Errorf("expected family cookiejar, got %s", info.FamilyName)
	}

	b := newBuilder(t)
	resp, err := conn.Process(context.Background(), request(t, b, "increment", 42))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("tx failed: %s", resp.Message)
	}

	resp, err = conn.Process(context.Background(), request(t, b, "decrement", 2, resp.Writes...))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !resp.OK() || len(resp.Writes) != 1 || string(resp.Writes[0].Data) != "40" {
		t.Fatalf("expected jar=40, got %+v", resp)
	}
}

func TestLocalConnection_ProcessConcurrent(t *testing.T) {
	conn := NewConnection(handler.New())
	if _, err := conn.Info(context.Background(), types.InfoRequest{}); err != nil {
		t.Fatalf("Info failed: %v", err)
	}

	reqs := make([]types.ProcessRequest, 20)
	for i := range reqs {
		reqs[i] = request(t, newBuilder(t), "increment", 1)
	}

	var wg sync.WaitGroup
	for _, req := range reqs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := conn.Process(context.Background(), req)
			if err != nil {
				t.Errorf("Process error: %v", err)
				return
			}
			if !resp.OK() {
				t.Errorf("expected OK, got %s", resp.Status)
			}
		}()
	}
	wg.Wait()
}

func TestLocalConnection_Close(t *testing.T) {
	conn := NewConnection(handler.New())
	if _, err := conn.Info(context.Background(), types.InfoRequest{}); err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	_, err := conn.Process(context.Background(), request(t, newBuilder(t), "increment", 1))
	if !errors.Is(err, processor.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
