package relay_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeuslawyer/remix-simulator/internal/jsonrpc"
	"github.com/zeuslawyer/remix-simulator/internal/metrics"
	"github.com/zeuslawyer/remix-simulator/internal/provider"
	"github.com/zeuslawyer/remix-simulator/internal/relay"
)

// fakeProvider answers eth_call with 0x1, fails "boom" with a Go error and
// echoes the method name for everything else.
type fakeProvider struct {
	mu    sync.Mutex
	calls []string
	delay map[string]time.Duration
}

func (f *fakeProvider) Init(context.Context) error { return nil }

func (f *fakeProvider) SendAsync(ctx context.Context, req *jsonrpc.Request) <-chan provider.Result {
	f.mu.Lock()
	f.calls = append(f.calls, req.Method)
	delay := f.delay[req.Method]
	f.mu.Unlock()
	return provider.Async(ctx, func(context.Context) (*jsonrpc.Response, error) {
		time.Sleep(delay)
		switch req.Method {
		case "boom":
			return nil, errors.New("provider exploded")
		case "eth_call":
			return jsonrpc.NewResult(req.ID, "0x1")
		case "":
			return jsonrpc.NewError(req.ID, jsonrpc.CodeInvalidRequest, "invalid request"), nil
		default:
			return jsonrpc.NewResult(req.ID, req.Method)
		}
	})
}

func (f *fakeProvider) OnData(func(any)) func() { return func() {} }

func (f *fakeProvider) Accounts() []string { return nil }

type recorded struct {
	mu     sync.Mutex
	events [][3]string
}

func (r *recorded) RecordEvent(category, action, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, [3]string{category, action, label})
}

func newRelay() (*relay.Relay, *fakeProvider, *recorded) {
	prov := &fakeProvider{}
	rec := &recorded{}
	return relay.New(prov, metrics.NewMetrics(), rec), prov, rec
}

func TestHandleResult(t *testing.T) {
	t.Parallel()
	r, prov, rec := newRelay()
	reply := r.Handle(context.Background(), relay.TransportWebSocket, []byte(`{"jsonrpc":"2.0","id":1,"method":"eth_call","params":[{}]}`))
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":"0x1"}`, string(reply))
	assert.Equal(t, []string{"eth_call"}, prov.calls)
	assert.Equal(t, [][3]string{{"rpc", "eth_call", "websocket"}}, rec.events)
}

func TestHandleDispatchError(t *testing.T) {
	t.Parallel()
	r, _, _ := newRelay()
	reply := r.Handle(context.Background(), relay.TransportHTTP, []byte(`{"jsonrpc":"2.0","id":"a","method":"boom"}`))
	var resp jsonrpc.Response
	require.NoError(t, json.Unmarshal(reply, &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeInternalError, resp.Error.Code)
	assert.Equal(t, "provider exploded", resp.Error.Message)
	assert.JSONEq(t, `"a"`, string(resp.ID))
}

func TestHandleParseError(t *testing.T) {
	t.Parallel()
	r, prov, _ := newRelay()
	for _, body := range []string{`{not json`, ``, `[{"id":1`} {
		reply := r.Handle(context.Background(), relay.TransportWebSocket, []byte(body))
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}`, string(reply), body)
	}
	assert.Empty(t, prov.calls)
}

func TestHandleInvalidRequest(t *testing.T) {
	t.Parallel()
	r, prov, _ := newRelay()
	reply := r.Handle(context.Background(), relay.TransportHTTP, []byte(`{"id":4,"method":12}`))
	var resp jsonrpc.Response
	require.NoError(t, json.Unmarshal(reply, &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeInvalidRequest, resp.Error.Code)
	assert.JSONEq(t, `4`, string(resp.ID))

	reply = r.Handle(context.Background(), relay.TransportHTTP, []byte(`"just a string"`))
	require.NoError(t, json.Unmarshal(reply, &resp))
	assert.Equal(t, jsonrpc.CodeInvalidRequest, resp.Error.Code)
	assert.Empty(t, prov.calls)
}

func TestHandleMalformedPassesThrough(t *testing.T) {
	t.Parallel()
	r, prov, _ := newRelay()
	// Decodable requests reach the provider even without a method.
	reply := r.Handle(context.Background(), relay.TransportHTTP, []byte(`{"id":5}`))
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":5,"error":{"code":-32600,"message":"invalid request"}}`, string(reply))
	assert.Equal(t, []string{""}, prov.calls)
}

func TestHandleBatchKeepsOrder(t *testing.T) {
	t.Parallel()
	r, prov, _ := newRelay()
	prov.delay = map[string]time.Duration{"slow": 50 * time.Millisecond}
	reply := r.Handle(context.Background(), relay.TransportHTTP, []byte(`[
		{"jsonrpc":"2.0","id":1,"method":"slow"},
		{"jsonrpc":"2.0","id":2,"method":"fast"},
		42
	]`))
	assert.JSONEq(t, `[
		{"jsonrpc":"2.0","id":1,"result":"slow"},
		{"jsonrpc":"2.0","id":2,"result":"fast"},
		{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"invalid request"}}
	]`, string(reply))
}

func TestHandleEmptyBatch(t *testing.T) {
	t.Parallel()
	r, _, _ := newRelay()
	reply := r.Handle(context.Background(), relay.TransportHTTP, []byte(` [ ] `))
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"empty batch"}}`, string(reply))
}

func TestHandleSurvivesCancellation(t *testing.T) {
	t.Parallel()
	r, prov, _ := newRelay()
	prov.delay = map[string]time.Duration{"eth_call": 20 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reply := r.Handle(ctx, relay.TransportWebSocket, []byte(`{"jsonrpc":"2.0","id":1,"method":"eth_call"}`))
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":"0x1"}`, string(reply))
}
