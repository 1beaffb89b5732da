package ton

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(ClientConfig{
		Endpoint:       srv.URL,
		MaxAttempts:    3,
		RetryBaseDelay: time.Millisecond,
		Logger:         zerolog.Nop(),
	})
	return client, srv
}

func writeResult(t *testing.T, w http.ResponseWriter, result interface{}) {
	t.Helper()
	raw, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"result": json.RawMessage(raw),
	})
}

func TestInvokeRetriesTransportFailures(t *testing.T) {
	var calls int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeResult(t, w, AccountState{Balance: "1000", State: "active"})
	})

	state, err := client.GetAccountState(context.Background(), "EQtest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Balance != "1000" {
		t.Errorf("expected balance 1000, got %s", state.Balance)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestInvokeDoesNotRetryApplicationErrors(t *testing.T) {
	var calls int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"code": -32000, "message": "invalid address"},
		})
	})

	_, err := client.GetAccountState(context.Background(), "bogus")
	if err == nil {
		t.Fatal("expected error")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %T", err)
	}
	if rpcErr.Kind != KindRPC {
		t.Errorf("expected KindRPC, got %v", rpcErr.Kind)
	}
	if rpcErr.Retryable() {
		t.Error("application errors must not be retryable")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected a single attempt, got %d", got)
	}
}

func TestInvokeClassifiesDecodeFailures(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json at all"))
	})

	_, err := client.GetAccountState(context.Background(), "EQtest")

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %v", err)
	}
	if rpcErr.Kind != KindDecode {
		t.Errorf("expected KindDecode, got %v", rpcErr.Kind)
	}
}

func TestGetSequence(t *testing.T) {
	tests := []struct {
		name   string
		result GetMethodResult
		want   int64
	}{
		{
			name:   "hex stack value",
			result: GetMethodResult{ExitCode: 0, Stack: [][]interface{}{{"num", "0x1f"}}},
			want:   31,
		},
		{
			name:   "decimal stack value",
			result: GetMethodResult{ExitCode: 0, Stack: [][]interface{}{{"num", "7"}}},
			want:   7,
		},
		{
			name:   "fresh account getter failure yields zero",
			result: GetMethodResult{ExitCode: -13},
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeResult(t, w, tt.result)
			})

			got, err := client.GetSequence(context.Background(), "EQcustody")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestSubmit(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.Method != "sendBoc" {
			t.Errorf("expected sendBoc, got %s", req.Method)
		}
		writeResult(t, w, map[string]string{"hash": "deadbeef"})
	})

	hash, err := client.Submit(context.Background(), "dGVzdA==")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash != "deadbeef" {
		t.Errorf("expected hash deadbeef, got %s", hash)
	}
}

func TestGetStatus(t *testing.T) {
	txs := []Transaction{
		{
			Utime:    1700000000,
			ExitCode: 0,
			InMsg:    &TransactionMessage{Hash: "match-me", Destination: "EQdest"},
		},
		{
			Utime:    1699999999,
			ExitCode: 1,
			InMsg:    &TransactionMessage{Hash: "other", Destination: "EQdest"},
		},
	}

	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeResult(t, w, txs)
	})

	status, err := client.GetStatus(context.Background(), "EQdest", "match-me")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status == nil || !status.Success {
		t.Fatalf("expected confirmed status, got %+v", status)
	}

	status, err = client.GetStatus(context.Background(), "EQdest", "absent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != nil {
		t.Errorf("expected nil status for unknown hash, got %+v", status)
	}
}

func TestGetStatusDegradesWhenLookupUnsupported(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"code": -32601, "message": "method not supported"},
		})
	})

	status, err := client.GetStatus(context.Background(), "EQdest", "any")
	if err != nil {
		t.Fatalf("expected graceful degradation, got error: %v", err)
	}
	if status != nil {
		t.Errorf("expected nil status, got %+v", status)
	}
}
