package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, handler func(req request) response) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, jsonrpcVersion, req.JsonRpc)
		assert.Equal(t, "application/json;charset=utf-8", r.Header.Get("Content-Type"))

		resp := handler(req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestNewClientRequiresUrl(t *testing.T) {
	_, err := NewClient("", time.Second, 0, false)
	assert.ErrorIs(t, err, ErrMissingUrl)
}

func TestCallDecodesResult(t *testing.T) {
	srv := newServer(t, func(req request) response {
		assert.Equal(t, "OwnerOf", req.Method)
		return response{Id: req.Id, Result: json.RawMessage(`"0x1111111111111111111111111111111111111111"`)}
	})

	client, err := NewClient(srv.URL, time.Second, 0, true)
	require.NoError(t, err)

	var owner string
	require.NoError(t, client.Call(context.Background(), "OwnerOf", map[string]interface{}{"tokenId": 1}, &owner))
	assert.Equal(t, "0x1111111111111111111111111111111111111111", owner)
}

func TestCallReturnsRpcError(t *testing.T) {
	srv := newServer(t, func(req request) response {
		return response{Id: req.Id, Error: &Error{Code: -5, Message: "token not found"}}
	})

	client, err := NewClient(srv.URL, time.Second, 0, false)
	require.NoError(t, err)

	err = client.Call(context.Background(), "OwnerOf", nil, nil)

	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ErrorCode(-5), rpcErr.Code)
	assert.Equal(t, "-5:token not found", err.Error())
}

func TestCallRejectsMismatchedId(t *testing.T) {
	srv := newServer(t, func(req request) response {
		return response{Id: req.Id + 100, Result: json.RawMessage(`true`)}
	})

	client, err := NewClient(srv.URL, time.Second, 0, false)
	require.NoError(t, err)

	var ok bool
	assert.ErrorIs(t, client.Call(context.Background(), "IsApprovedForTransfer", nil, &ok), ErrUnexpectedId)
}

func TestCallRequiresResult(t *testing.T) {
	srv := newServer(t, func(req request) response {
		return response{Id: req.Id}
	})

	client, err := NewClient(srv.URL, time.Second, 0, false)
	require.NoError(t, err)

	require.NoError(t, client.Call(context.Background(), "Transfer", nil, nil))

	var ok bool
	assert.ErrorIs(t, client.Call(context.Background(), "IsApprovedForTransfer", nil, &ok), ErrEmptyResult)
}

func TestCallRejectsNullResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		_ = json.NewDecoder(r.Body).Decode(&req)
		_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":null}`, req.Id)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, time.Second, 0, false)
	require.NoError(t, err)

	var owner string
	assert.ErrorIs(t, client.Call(context.Background(), "OwnerOf", nil, &owner), ErrEmptyResult)
	assert.Empty(t, owner)
}

func TestCallRetriesServerErrors(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		_ = json.NewDecoder(r.Body).Decode(&req)
		if atomic.AddInt32(&attempts, 1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(response{Id: req.Id, Result: json.RawMessage(`true`)})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, 5*time.Second, 2, false)
	require.NoError(t, err)

	var ok bool
	require.NoError(t, client.Call(context.Background(), "IsApprovedForTransfer", nil, &ok))
	assert.True(t, ok)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

// gateway applies every request it receives, then loses the response of the
// first one.
func gateway(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()

	var applied int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		_ = json.NewDecoder(r.Body).Decode(&req)
		if atomic.AddInt32(&applied, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(response{Id: req.Id, Result: json.RawMessage(`true`)})
	}))
	t.Cleanup(srv.Close)

	return srv, &applied
}

func TestSendIsNotRetried(t *testing.T) {
	srv, applied := gateway(t)

	client, err := NewClient(srv.URL, 5*time.Second, 3, false)
	require.NoError(t, err)

	err = client.Send(context.Background(), "Transfer", map[string]interface{}{"tokenId": 1}, nil)
	assert.ErrorIs(t, err, ErrOutcomeUnknown)
	assert.Equal(t, int32(1), atomic.LoadInt32(applied))
}

func TestCallIsRetriedAfterSend(t *testing.T) {
	srv, applied := gateway(t)

	client, err := NewClient(srv.URL, 5*time.Second, 3, false)
	require.NoError(t, err)

	var ok bool
	require.NoError(t, client.Call(context.Background(), "IsApprovedForTransfer", nil, &ok))
	assert.True(t, ok)
	assert.Equal(t, int32(2), atomic.LoadInt32(applied))

	require.NoError(t, client.Send(context.Background(), "PayOut", nil, nil))
	assert.Equal(t, int32(3), atomic.LoadInt32(applied))
}

func TestCallHonoursContext(t *testing.T) {
	srv := newServer(t, func(req request) response {
		return response{Id: req.Id, Result: json.RawMessage(`true`)}
	})

	client, err := NewClient(srv.URL, time.Second, 0, false)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ok bool
	assert.Error(t, client.Call(ctx, "IsApprovedForTransfer", nil, &ok))
}
