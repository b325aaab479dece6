package simulator

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/zeuslawyer/remix-simulator/internal/db/models"
	"github.com/zeuslawyer/remix-simulator/internal/provider"
	"gorm.io/gorm"
)

func (s *Simulator) registerHandlers() {
	s.handlers = map[string]handlerFunc{
		"web3_clientVersion":        s.clientVersion,
		"net_version":               s.netVersion,
		"net_listening":             s.netListening,
		"eth_chainId":               s.chainID,
		"eth_accounts":              s.ethAccounts,
		"eth_coinbase":              s.ethCoinbase,
		"eth_blockNumber":           s.blockNumber,
		"eth_gasPrice":              s.gasPrice,
		"eth_getBalance":            s.getBalance,
		"eth_getTransactionCount":   s.getTransactionCount,
		"eth_sendTransaction":       s.sendTransaction,
		"eth_call":                  s.call,
		"eth_estimateGas":           s.estimateGas,
		"eth_getTransactionByHash":  s.getTransactionByHash,
		"eth_getTransactionReceipt": s.getTransactionReceipt,
		"eth_getBlockByNumber":      s.getBlockByNumber,
		"eth_subscribe":             s.subscribe,
		"eth_unsubscribe":           s.unsubscribe,
		"evm_mine":                  s.evmMine,
	}
}

func stringParam(params []json.RawMessage, i int, name string) (string, error) {
	if i >= len(params) {
		return "", invalidParams("missing value for required argument %s", name)
	}
	var v string
	if err := json.Unmarshal(params[i], &v); err != nil {
		return "", invalidParams("%s must be a string", name)
	}
	return v, nil
}

func optionalStringParam(params []json.RawMessage, i int, name, fallback string) (string, error) {
	if i >= len(params) || string(params[i]) == "null" {
		return fallback, nil
	}
	return stringParam(params, i, name)
}

func optionalBoolParam(params []json.RawMessage, i int, name string) (bool, error) {
	if i >= len(params) || string(params[i]) == "null" {
		return false, nil
	}
	var v bool
	if err := json.Unmarshal(params[i], &v); err != nil {
		return false, invalidParams("%s must be a boolean", name)
	}
	return v, nil
}

func addressParam(params []json.RawMessage, i int) (string, error) {
	raw, err := stringParam(params, i, "address")
	if err != nil {
		return "", err
	}
	address, err := normalizeAddress(raw)
	if err != nil {
		return "", invalidParams("%v", err)
	}
	return address, nil
}

func hashParam(params []json.RawMessage, i int) (string, error) {
	raw, err := stringParam(params, i, "hash")
	if err != nil {
		return "", err
	}
	hash, err := normalizeHash(raw)
	if err != nil {
		return "", invalidParams("%v", err)
	}
	return hash, nil
}

func txParam(params []json.RawMessage, requireFrom bool) (pendingTx, error) {
	if len(params) == 0 {
		return pendingTx{}, invalidParams("missing value for required argument transaction")
	}
	return parseTxArgs(params[0], requireFrom)
}

// resolveBlock maps a block tag or hex number onto a block number.
func resolveBlock(db *gorm.DB, tag string) (uint64, error) {
	switch tag {
	case "latest", "pending", "safe", "finalized":
		number, err := models.LatestBlockNumber(db)
		if err != nil {
			return 0, fmt.Errorf("failed to load latest block: %w", err)
		}
		return number, nil
	case "earliest":
		return 0, nil
	}
	number, err := decodeUint(tag)
	if err != nil {
		return 0, invalidParams("invalid block number or tag %q", tag)
	}
	return number, nil
}

func (s *Simulator) clientVersion(context.Context, []json.RawMessage) (any, error) {
	return s.opts.ClientVersion, nil
}

func (s *Simulator) netVersion(context.Context, []json.RawMessage) (any, error) {
	return strconv.FormatUint(s.opts.ChainID, 10), nil
}

func (s *Simulator) netListening(context.Context, []json.RawMessage) (any, error) {
	return true, nil
}

func (s *Simulator) chainID(context.Context, []json.RawMessage) (any, error) {
	return encodeUint(s.opts.ChainID), nil
}

func (s *Simulator) ethAccounts(context.Context, []json.RawMessage) (any, error) {
	return s.Accounts(), nil
}

func (s *Simulator) ethCoinbase(context.Context, []json.RawMessage) (any, error) {
	return s.coinbase(), nil
}

func (s *Simulator) blockNumber(ctx context.Context, _ []json.RawMessage) (any, error) {
	number, err := models.LatestBlockNumber(s.db.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to load latest block: %w", err)
	}
	return encodeUint(number), nil
}

func (s *Simulator) gasPrice(context.Context, []json.RawMessage) (any, error) {
	return encodeUint(defaultGasPrice), nil
}

func (s *Simulator) getBalance(ctx context.Context, params []json.RawMessage) (any, error) {
	address, err := addressParam(params, 0)
	if err != nil {
		return nil, err
	}
	if _, err := optionalStringParam(params, 1, "block", "latest"); err != nil {
		return nil, err
	}
	account, err := models.FindAccountByAddress(s.db.WithContext(ctx), address)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "0x0", nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return encodeDecimal(account.Balance), nil
}

func (s *Simulator) getTransactionCount(ctx context.Context, params []json.RawMessage) (any, error) {
	address, err := addressParam(params, 0)
	if err != nil {
		return nil, err
	}
	account, err := models.FindAccountByAddress(s.db.WithContext(ctx), address)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "0x0", nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return encodeUint(account.Nonce), nil
}

func (s *Simulator) sendTransaction(ctx context.Context, params []json.RawMessage) (any, error) {
	pending, err := txParam(params, true)
	if err != nil {
		return nil, err
	}
	block, err := s.mine(ctx, &pending)
	if err != nil {
		return nil, err
	}
	return block.Transactions[0].Hash, nil
}

// call validates the call object. Contract execution is not simulated, so the
// return data is always empty.
func (s *Simulator) call(_ context.Context, params []json.RawMessage) (any, error) {
	if _, err := txParam(params, false); err != nil {
		return nil, err
	}
	if _, err := optionalStringParam(params, 1, "block", "latest"); err != nil {
		return nil, err
	}
	return "0x", nil
}

func (s *Simulator) estimateGas(_ context.Context, params []json.RawMessage) (any, error) {
	pending, err := txParam(params, false)
	if err != nil {
		return nil, err
	}
	return encodeUint(intrinsicGas(pending.input, pending.creation())), nil
}

func (s *Simulator) getTransactionByHash(ctx context.Context, params []json.RawMessage) (any, error) {
	hash, err := hashParam(params, 0)
	if err != nil {
		return nil, err
	}
	t, err := models.FindTransactionByHash(s.db.WithContext(ctx), hash)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	return formatTransaction(t, s.opts.ChainID), nil
}

func (s *Simulator) getTransactionReceipt(ctx context.Context, params []json.RawMessage) (any, error) {
	hash, err := hashParam(params, 0)
	if err != nil {
		return nil, err
	}
	t, err := models.FindTransactionByHash(s.db.WithContext(ctx), hash)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	return formatReceipt(t), nil
}

func (s *Simulator) getBlockByNumber(ctx context.Context, params []json.RawMessage) (any, error) {
	tag, err := optionalStringParam(params, 0, "block", "latest")
	if err != nil {
		return nil, err
	}
	full, err := optionalBoolParam(params, 1, "full transactions")
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	number, err := resolveBlock(db, tag)
	if err != nil {
		return nil, err
	}
	block, err := models.FindBlockByNumber(db, number)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to load block: %w", err)
	}
	return formatBlock(block, full, s.opts.ChainID), nil
}

func (s *Simulator) subscribe(ctx context.Context, params []json.RawMessage) (any, error) {
	kind, err := stringParam(params, 0, "subscription type")
	if err != nil {
		return nil, err
	}
	if kind != subscriptionNewHeads {
		return nil, invalidParams("unsupported subscription type %q", kind)
	}
	channel := provider.ChannelFromContext(ctx)
	if channel == "" {
		return nil, serverError("notifications not supported")
	}
	id := uuid.New()
	subscriptionID := "0x" + hex.EncodeToString(id[:])
	s.subscriptions.Store(subscriptionID, subscription{kind: kind, channel: channel})
	return subscriptionID, nil
}

// unsubscribe only removes subscriptions opened on the calling channel.
func (s *Simulator) unsubscribe(ctx context.Context, params []json.RawMessage) (any, error) {
	id, err := stringParam(params, 0, "subscription id")
	if err != nil {
		return nil, err
	}
	channel := provider.ChannelFromContext(ctx)
	removed := false
	s.subscriptions.Compute(strings.ToLower(id), func(sub subscription, loaded bool) (subscription, bool) {
		if !loaded || sub.channel != channel {
			return sub, !loaded
		}
		removed = true
		return sub, true
	})
	return removed, nil
}

func (s *Simulator) evmMine(ctx context.Context, _ []json.RawMessage) (any, error) {
	if _, err := s.mine(ctx, nil); err != nil {
		return nil, err
	}
	return "0x0", nil
}
