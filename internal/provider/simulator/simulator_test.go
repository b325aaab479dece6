package simulator_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeuslawyer/remix-simulator/internal/config"
	"github.com/zeuslawyer/remix-simulator/internal/db"
	"github.com/zeuslawyer/remix-simulator/internal/events"
	"github.com/zeuslawyer/remix-simulator/internal/jsonrpc"
	"github.com/zeuslawyer/remix-simulator/internal/provider"
	"github.com/zeuslawyer/remix-simulator/internal/provider/simulator"
)

func newSimulator(t *testing.T) *simulator.Simulator {
	t.Helper()
	database, err := db.MakeDB(&config.Config{
		Persistence: config.Persistence{
			Database: config.Database{
				Driver:   config.DatabaseDriverSQLite,
				Database: ":memory:",
			},
		},
	})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)

	sim := simulator.New(database, simulator.Options{
		ChainID:             1337,
		Accounts:            3,
		InitialBalanceEther: 100,
		BlockGasLimit:       30_000_000,
	})
	require.NoError(t, sim.Init(context.Background()))
	t.Cleanup(func() {
		sim.Close()
		_ = sqlDB.Close()
	})
	return sim
}

func call(t *testing.T, sim *simulator.Simulator, method string, params ...any) *jsonrpc.Response {
	t.Helper()
	return callOn(t, context.Background(), sim, method, params...)
}

func callOn(t *testing.T, ctx context.Context, sim *simulator.Simulator, method string, params ...any) *jsonrpc.Response {
	t.Helper()
	rawParams, err := json.Marshal(params)
	require.NoError(t, err)
	req := &jsonrpc.Request{
		JSONRPC: jsonrpc.Version,
		ID:      json.RawMessage(`1`),
		Method:  method,
		Params:  rawParams,
	}
	select {
	case res, ok := <-sim.SendAsync(ctx, req):
		require.True(t, ok)
		require.NoError(t, res.Err)
		require.NotNil(t, res.Response)
		return res.Response
	case <-time.After(5 * time.Second):
		t.Fatalf("%s did not complete", method)
		return nil
	}
}

func result[T any](t *testing.T, resp *jsonrpc.Response) T {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected error: %v", resp.Error)
	var out T
	require.NoError(t, json.Unmarshal(resp.Result, &out))
	return out
}

func TestInitCreatesAccounts(t *testing.T) {
	t.Parallel()
	sim := newSimulator(t)
	accounts := sim.Accounts()
	require.Len(t, accounts, 3)
	for _, account := range accounts {
		assert.Regexp(t, `^0x[0-9a-f]{40}$`, account)
	}

	assert.Equal(t, accounts, result[[]string](t, call(t, sim, "eth_accounts")))
	assert.Equal(t, accounts[0], result[string](t, call(t, sim, "eth_coinbase")))
	// 100 ether
	assert.Equal(t, "0x56bc75e2d63100000", result[string](t, call(t, sim, "eth_getBalance", accounts[1], "latest")))
	assert.Equal(t, "0x0", result[string](t, call(t, sim, "eth_blockNumber")))

	// Init is idempotent.
	require.NoError(t, sim.Init(context.Background()))
	assert.Equal(t, accounts, sim.Accounts())
}

func TestChainIdentity(t *testing.T) {
	t.Parallel()
	sim := newSimulator(t)
	assert.Equal(t, "0x539", result[string](t, call(t, sim, "eth_chainId")))
	assert.Equal(t, "1337", result[string](t, call(t, sim, "net_version")))
	assert.True(t, result[bool](t, call(t, sim, "net_listening")))
	assert.Equal(t, simulator.DefaultClientVersion, result[string](t, call(t, sim, "web3_clientVersion")))
	assert.Equal(t, "0x3b9aca00", result[string](t, call(t, sim, "eth_gasPrice")))
}

func TestUnknownMethod(t *testing.T) {
	t.Parallel()
	sim := newSimulator(t)
	resp := call(t, sim, "eth_doesNotExist")
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeMethodNotFound, resp.Error.Code)
	assert.JSONEq(t, `1`, string(resp.ID))
}

func TestInvalidParams(t *testing.T) {
	t.Parallel()
	sim := newSimulator(t)
	resp := call(t, sim, "eth_getBalance", "not-an-address")
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeInvalidParams, resp.Error.Code)

	resp = call(t, sim, "eth_getBalance")
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeInvalidParams, resp.Error.Code)
}

func TestMissingMethodIsInvalidRequest(t *testing.T) {
	t.Parallel()
	sim := newSimulator(t)
	res := <-sim.SendAsync(context.Background(), &jsonrpc.Request{ID: json.RawMessage(`9`)})
	require.NoError(t, res.Err)
	require.NotNil(t, res.Response.Error)
	assert.Equal(t, jsonrpc.CodeInvalidRequest, res.Response.Error.Code)
}

func TestSendTransaction(t *testing.T) {
	t.Parallel()
	sim := newSimulator(t)
	accounts := sim.Accounts()

	hash := result[string](t, call(t, sim, "eth_sendTransaction", map[string]string{
		"from":  accounts[0],
		"to":    accounts[1],
		"value": "0xde0b6b3a7640000", // 1 ether
	}))
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, hash)
	assert.Equal(t, "0x1", result[string](t, call(t, sim, "eth_blockNumber")))
	assert.Equal(t, "0x1", result[string](t, call(t, sim, "eth_getTransactionCount", accounts[0], "latest")))

	// 101 ether
	assert.Equal(t, "0x579a814e10a740000", result[string](t, call(t, sim, "eth_getBalance", accounts[1])))
	// 99 ether minus 21000 gas at 1 gwei
	assert.Equal(t, "0x55de694604a21b000", result[string](t, call(t, sim, "eth_getBalance", accounts[0])))

	tx := result[map[string]any](t, call(t, sim, "eth_getTransactionByHash", hash))
	assert.Equal(t, hash, tx["hash"])
	assert.Equal(t, accounts[0], tx["from"])
	assert.Equal(t, accounts[1], tx["to"])
	assert.Equal(t, "0x1", tx["blockNumber"])

	receipt := result[map[string]any](t, call(t, sim, "eth_getTransactionReceipt", hash))
	assert.Equal(t, "0x1", receipt["status"])
	assert.Equal(t, "0x5208", receipt["gasUsed"])
	assert.Nil(t, receipt["contractAddress"])

	block := result[map[string]any](t, call(t, sim, "eth_getBlockByNumber", "latest", false))
	assert.Equal(t, "0x1", block["number"])
	assert.Equal(t, []any{hash}, block["transactions"])

	full := result[map[string]any](t, call(t, sim, "eth_getBlockByNumber", "0x1", true))
	txs, ok := full["transactions"].([]any)
	require.True(t, ok)
	require.Len(t, txs, 1)
	assert.Equal(t, hash, txs[0].(map[string]any)["hash"])
}

func TestContractCreation(t *testing.T) {
	t.Parallel()
	sim := newSimulator(t)
	accounts := sim.Accounts()

	hash := result[string](t, call(t, sim, "eth_sendTransaction", map[string]string{
		"from": accounts[2],
		"data": "0x6080604052",
	}))
	receipt := result[map[string]any](t, call(t, sim, "eth_getTransactionReceipt", hash))
	assert.Regexp(t, `^0x[0-9a-f]{40}$`, receipt["contractAddress"])
	assert.Nil(t, receipt["to"])
	// 53000 + 5 non-zero bytes
	assert.Equal(t, fmt.Sprintf("0x%x", 53000+5*16), receipt["gasUsed"])
}

func TestSendTransactionErrors(t *testing.T) {
	t.Parallel()
	sim := newSimulator(t)
	accounts := sim.Accounts()

	resp := call(t, sim, "eth_sendTransaction", map[string]string{
		"from": "0x000000000000000000000000000000000000dead",
		"to":   accounts[0],
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeServerError, resp.Error.Code)

	resp = call(t, sim, "eth_sendTransaction", map[string]string{
		"from":  accounts[0],
		"to":    accounts[1],
		"value": "0xffffffffffffffffffffffffffffffff",
	})
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "insufficient funds")

	// Failed transactions mine nothing.
	assert.Equal(t, "0x0", result[string](t, call(t, sim, "eth_blockNumber")))
}

func TestCallAndEstimateGas(t *testing.T) {
	t.Parallel()
	sim := newSimulator(t)
	accounts := sim.Accounts()

	assert.Equal(t, "0x", result[string](t, call(t, sim, "eth_call", map[string]string{
		"to":   accounts[1],
		"data": "0x70a08231",
	}, "latest")))
	assert.Equal(t, "0x5208", result[string](t, call(t, sim, "eth_estimateGas", map[string]string{
		"from": accounts[0],
		"to":   accounts[1],
	})))
}

func TestUnknownLookupsReturnNull(t *testing.T) {
	t.Parallel()
	sim := newSimulator(t)
	missing := "0x" + fmt.Sprintf("%064x", 42)
	assert.JSONEq(t, `null`, string(call(t, sim, "eth_getTransactionByHash", missing).Result))
	assert.JSONEq(t, `null`, string(call(t, sim, "eth_getTransactionReceipt", missing).Result))
	assert.JSONEq(t, `null`, string(call(t, sim, "eth_getBlockByNumber", "0x99", false).Result))
}

func TestNewHeadsSubscription(t *testing.T) {
	t.Parallel()
	sim := newSimulator(t)
	ctx := provider.WithChannel(context.Background(), "conn-a")

	data := make(chan any, 4)
	unsubscribe := sim.OnData(func(payload any) {
		data <- payload
	})
	defer unsubscribe()

	subscriptionID := result[string](t, callOn(t, ctx, sim, "eth_subscribe", "newHeads"))
	assert.Regexp(t, `^0x[0-9a-f]{32}$`, subscriptionID)

	assert.Equal(t, "0x0", result[string](t, call(t, sim, "evm_mine")))

	select {
	case payload := <-data:
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		var notification struct {
			Method string `json:"method"`
			Params struct {
				Subscription string         `json:"subscription"`
				Result       map[string]any `json:"result"`
			} `json:"params"`
		}
		require.NoError(t, json.Unmarshal(encoded, &notification))
		assert.Equal(t, "eth_subscription", notification.Method)
		assert.Equal(t, subscriptionID, notification.Params.Subscription)
		assert.Equal(t, "0x1", notification.Params.Result["number"])
		assert.NotContains(t, notification.Params.Result, "transactions")
	case <-time.After(5 * time.Second):
		t.Fatal("no newHeads notification")
	}

	// Only the owning channel may cancel a subscription.
	assert.False(t, result[bool](t, callOn(t, provider.WithChannel(context.Background(), "conn-b"), sim, "eth_unsubscribe", subscriptionID)))
	assert.True(t, result[bool](t, callOn(t, ctx, sim, "eth_unsubscribe", subscriptionID)))
	assert.False(t, result[bool](t, callOn(t, ctx, sim, "eth_unsubscribe", subscriptionID)))

	resp := callOn(t, ctx, sim, "eth_subscribe", "logs")
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeInvalidParams, resp.Error.Code)
}

func TestSubscribeWithoutChannel(t *testing.T) {
	t.Parallel()
	sim := newSimulator(t)
	resp := call(t, sim, "eth_subscribe", "newHeads")
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeServerError, resp.Error.Code)
	assert.Equal(t, "notifications not supported", resp.Error.Message)
}

func subscriptionOf(payload any) string {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	var notification struct {
		Params struct {
			Subscription string `json:"subscription"`
		} `json:"params"`
	}
	if err := json.Unmarshal(encoded, &notification); err != nil {
		return ""
	}
	return notification.Params.Subscription
}

func TestManySubscriptionsWithSlowConsumer(t *testing.T) {
	t.Parallel()
	sim := newSimulator(t)

	var mu sync.Mutex
	delivered := map[string]int{}
	unsubscribe := sim.OnData(func(payload any) {
		time.Sleep(100 * time.Microsecond)
		id := subscriptionOf(payload)
		mu.Lock()
		delivered[id]++
		mu.Unlock()
	})
	defer unsubscribe()

	const perChannel = 3 * events.QueueDepth
	closing := provider.WithChannel(context.Background(), "closing")
	staying := provider.WithChannel(context.Background(), "staying")
	closingIDs := make(map[string]bool, perChannel)
	stayingIDs := make(map[string]bool, perChannel)
	for range perChannel {
		closingIDs[result[string](t, callOn(t, closing, sim, "eth_subscribe", "newHeads"))] = true
		stayingIDs[result[string](t, callOn(t, staying, sim, "eth_subscribe", "newHeads"))] = true
	}

	assert.Equal(t, "0x0", result[string](t, call(t, sim, "evm_mine")))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) == 2*perChannel
	}, 10*time.Second, 10*time.Millisecond)

	sim.ReleaseChannel("closing")
	assert.Equal(t, "0x0", result[string](t, call(t, sim, "evm_mine")))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for id := range stayingIDs {
			if delivered[id] != 2 {
				return false
			}
		}
		return true
	}, 10*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for id := range closingIDs {
		assert.Equal(t, 1, delivered[id], "released subscription %s was notified again", id)
	}
}

func TestConcurrentTransactions(t *testing.T) {
	t.Parallel()
	sim := newSimulator(t)
	accounts := sim.Accounts()

	const n = 10
	results := make(chan error, n)
	for range n {
		go func() {
			params, _ := json.Marshal([]any{map[string]string{"from": accounts[0], "to": accounts[1], "value": "0x1"}})
			res := <-sim.SendAsync(context.Background(), &jsonrpc.Request{
				JSONRPC: jsonrpc.Version,
				ID:      json.RawMessage(`1`),
				Method:  "eth_sendTransaction",
				Params:  params,
			})
			if res.Err != nil {
				results <- res.Err
				return
			}
			if res.Response.Error != nil {
				results <- res.Response.Error
				return
			}
			results <- nil
		}()
	}
	for range n {
		require.NoError(t, <-results)
	}
	assert.Equal(t, fmt.Sprintf("0x%x", n), result[string](t, call(t, sim, "eth_blockNumber")))
	assert.Equal(t, fmt.Sprintf("0x%x", n), result[string](t, call(t, sim, "eth_getTransactionCount", accounts[0])))
}

func TestNotInitialized(t *testing.T) {
	t.Parallel()
	database, err := db.MakeDB(&config.Config{
		Persistence: config.Persistence{
			Database: config.Database{Driver: config.DatabaseDriverSQLite, Database: ":memory:"},
		},
	})
	require.NoError(t, err)
	sim := simulator.New(database, simulator.Options{ChainID: 1, Accounts: 1, BlockGasLimit: 1})
	res := <-sim.SendAsync(context.Background(), &jsonrpc.Request{Method: "eth_blockNumber"})
	assert.ErrorIs(t, res.Err, simulator.ErrNotInitialized)

	sim = simulator.New(database, simulator.Options{ChainID: 1})
	assert.ErrorIs(t, sim.Init(context.Background()), simulator.ErrNoAccounts)
}
