package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPClient_GetParsedTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		if req.Method != "getTransaction" {
			t.Errorf("expected method getTransaction, got %s", req.Method)
		}
		opts, _ := req.Params[1].(map[string]interface{})
		if opts["encoding"] != "jsonParsed" {
			t.Errorf("expected jsonParsed encoding, got %v", opts["encoding"])
		}
		if opts["commitment"] != "confirmed" {
			t.Errorf("expected confirmed commitment, got %v", opts["commitment"])
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"jsonrpc": "2.0",
			"id": ` + strconv.FormatUint(req.ID, 10) + `,
			"result": {
				"slot": 123456,
				"blockTime": 1700000000,
				"meta": {
					"err": null,
					"preBalances": [20000000000, 0, 1],
					"postBalances": [9999995000, 10000000000, 1],
					"logMessages": ["Program 11111111111111111111111111111111 invoke [1]"],
					"innerInstructions": [{
						"index": 1,
						"instructions": [{
							"programId": "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P",
							"accounts": ["G", "F", "Mint111"],
							"data": "3Bxs4h24hBtQy9rw"
						}]
					}]
				},
				"transaction": {
					"signatures": ["testsig123"],
					"message": {
						"accountKeys": [
							{"pubkey": "Seed111", "signer": true, "writable": true, "source": "transaction"},
							{"pubkey": "Dest111", "signer": false, "writable": true, "source": "transaction"},
							{"pubkey": "11111111111111111111111111111111", "signer": false, "writable": false, "source": "transaction"}
						],
						"instructions": [
							{
								"program": "system",
								"programId": "11111111111111111111111111111111",
								"parsed": {"type": "transfer", "info": {"source": "Seed111", "destination": "Dest111", "lamports": 10000000000}},
								"stackHeight": null
							},
							{
								"program": "spl-memo",
								"programId": "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr",
								"parsed": "gm",
								"stackHeight": null
							}
						]
					}
				}
			}
		}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	tx, err := client.GetParsedTransaction(context.Background(), "testsig123")
	if err != nil {
		t.Fatalf("GetParsedTransaction: %v", err)
	}
	if tx == nil {
		t.Fatal("expected transaction, got nil")
	}

	if tx.Slot != 123456 {
		t.Errorf("expected slot 123456, got %d", tx.Slot)
	}
	if tx.BlockTime != 1700000000 {
		t.Errorf("expected blockTime 1700000000, got %d", tx.BlockTime)
	}
	if tx.Failed() {
		t.Error("expected successful transaction")
	}
	if len(tx.AccountKeys) != 3 || tx.AccountKeys[1] != "Dest111" {
		t.Errorf("unexpected account keys: %v", tx.AccountKeys)
	}

	change, ok := tx.BalanceChange("Seed111")
	if !ok || change != -10000005000 {
		t.Errorf("expected seed change -10000005000, got %d (ok=%v)", change, ok)
	}

	if len(tx.Instructions) != 2 {
		t.Fatalf("expected 2 instructions, got %d", len(tx.Instructions))
	}
	transfer := tx.Instructions[0]
	if transfer.Program != "system" || transfer.Type != "transfer" {
		t.Errorf("expected system transfer, got %s/%s", transfer.Program, transfer.Type)
	}
	if transfer.Source != "Seed111" || transfer.Destination != "Dest111" || transfer.Lamports != 10000000000 {
		t.Errorf("unexpected transfer info: %+v", transfer)
	}
	if tx.Instructions[1].Type != "" {
		t.Errorf("memo instruction should have no type, got %q", tx.Instructions[1].Type)
	}

	if len(tx.InnerInstructions) != 1 {
		t.Fatalf("expected 1 inner instruction, got %d", len(tx.InnerInstructions))
	}
	inner := tx.InnerInstructions[0]
	if inner.ProgramID != "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P" || len(inner.Accounts) != 3 {
		t.Errorf("unexpected inner instruction: %+v", inner)
	}
}

func TestHTTPClient_GetParsedTransaction_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  nil,
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	tx, err := client.GetParsedTransaction(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("GetParsedTransaction: %v", err)
	}
	if tx != nil {
		t.Errorf("expected nil for not found, got %+v", tx)
	}
}

func TestHTTPClient_LegacyAccountKeys(t *testing.T) {
	var key parsedAccountKey
	if err := json.Unmarshal([]byte(`"Plain111"`), &key); err != nil {
		t.Fatalf("unmarshal string key: %v", err)
	}
	if key.Pubkey != "Plain111" {
		t.Errorf("expected Plain111, got %s", key.Pubkey)
	}
}

func TestHTTPClient_GetSignaturesForAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "getSignaturesForAddress" {
			t.Errorf("expected method getSignaturesForAddress, got %s", req.Method)
		}

		blockTime := int64(1700000000)
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": []map[string]interface{}{
				{"signature": "sig1", "slot": int64(100), "blockTime": blockTime, "err": nil},
				{"signature": "sig2", "slot": int64(101), "blockTime": blockTime, "err": nil},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	sigs, err := client.GetSignaturesForAddress(ctx, "testaddr", &SignaturesOpts{Limit: 10})
	if err != nil {
		t.Fatalf("GetSignaturesForAddress: %v", err)
	}

	if len(sigs) != 2 {
		t.Fatalf("expected 2 signatures, got %d", len(sigs))
	}

	if sigs[0].Signature != "sig1" {
		t.Errorf("expected sig1, got %s", sigs[0].Signature)
	}

	if sigs[1].Slot != 101 {
		t.Errorf("expected slot 101, got %d", sigs[1].Slot)
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := attempts.Add(1)
		if count < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  int64(999),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)
	ctx := context.Background()

	slot, err := client.GetSlot(ctx)
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}

	if slot != 999 {
		t.Errorf("expected slot 999, got %d", slot)
	}

	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32600,
				"message": "Invalid Request",
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	_, err := client.GetSlot(ctx)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	rpcErr, ok := err.(*rpcError)
	if !ok {
		t.Fatalf("expected rpcError, got %T", err)
	}

	if rpcErr.Code != -32600 {
		t.Errorf("expected code -32600, got %d", rpcErr.Code)
	}
}

func TestHTTPClient_GetAccountInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "getAccountInfo" {
			t.Errorf("expected method getAccountInfo, got %s", req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": map[string]interface{}{
					"lamports":   uint64(1000000),
					"owner":      "11111111111111111111111111111111",
					"data":       []string{"SGVsbG8gV29ybGQ=", "base64"},
					"executable": false,
					"rentEpoch":  uint64(100),
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	info, err := client.GetAccountInfo(ctx, "testpubkey")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}

	if info == nil {
		t.Fatal("expected account info, got nil")
	}

	if info.Lamports != 1000000 {
		t.Errorf("expected lamports 1000000, got %d", info.Lamports)
	}

	if info.Owner != "11111111111111111111111111111111" {
		t.Errorf("unexpected owner: %s", info.Owner)
	}

	if info.Data != "SGVsbG8gV29ybGQ=" {
		t.Errorf("unexpected data: %s", info.Data)
	}
}

func TestHTTPClient_GetAccountInfo_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": nil,
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	info, err := client.GetAccountInfo(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}

	if info != nil {
		t.Errorf("expected nil for not found, got %+v", info)
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	_, err := client.GetSlot(ctx)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestHTTPClient_RateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": int64(1)})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRateLimit(20, 1))
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := client.GetSlot(ctx); err != nil {
			t.Fatalf("GetSlot: %v", err)
		}
	}
	// Burst 1 at 20 rps: the 2nd and 3rd calls each wait ~50ms.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected rate limiting delay, took %v", elapsed)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestHTTPClient_RateLimitCancelled(t *testing.T) {
	client := NewHTTPClient("http://127.0.0.1:0", WithRateLimit(0.001, 1))
	ctx, cancel := context.WithCancel(context.Background())

	// First call consumes the only token and fails on the dead endpoint.
	client.maxRetries = 0
	client.GetSlot(ctx)

	cancel()
	if _, err := client.GetSlot(ctx); err == nil {
		t.Fatal("expected error waiting for limiter with cancelled context")
	}
}
