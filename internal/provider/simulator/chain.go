package simulator

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/mattn/go-nulltype"
	"github.com/zeuslawyer/remix-simulator/internal/db/models"
	"github.com/zeuslawyer/remix-simulator/internal/events"
	"github.com/zeuslawyer/remix-simulator/internal/jsonrpc"
	"gorm.io/gorm"
)

const (
	txGas                 = 21000
	txGasContractCreation = 53000
	txDataZeroGas         = 4
	txDataNonZeroGas      = 16
	defaultGasPrice       = 1_000_000_000
)

// txArgs is the transaction object accepted by eth_sendTransaction,
// eth_call and eth_estimateGas.
type txArgs struct {
	From     string  `json:"from"`
	To       *string `json:"to"`
	Value    string  `json:"value"`
	Gas      string  `json:"gas"`
	GasPrice string  `json:"gasPrice"`
	Nonce    string  `json:"nonce"`
	Data     string  `json:"data"`
	Input    string  `json:"input"`
}

type pendingTx struct {
	from     string
	to       string
	value    *big.Int
	gas      uint64
	gasPrice *big.Int
	nonce    *uint64
	input    []byte
}

func (p pendingTx) creation() bool {
	return p.to == ""
}

func parseTxArgs(raw json.RawMessage, requireFrom bool) (pendingTx, error) {
	var args txArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return pendingTx{}, invalidParams("invalid transaction object: %v", err)
	}

	p := pendingTx{value: new(big.Int), gasPrice: big.NewInt(defaultGasPrice)}
	var err error
	if args.From != "" || requireFrom {
		p.from, err = normalizeAddress(args.From)
		if err != nil {
			return p, invalidParams("from: %v", err)
		}
	}
	if args.To != nil && *args.To != "" {
		p.to, err = normalizeAddress(*args.To)
		if err != nil {
			return p, invalidParams("to: %v", err)
		}
	}
	if args.Value != "" {
		p.value, err = decodeBig(args.Value)
		if err != nil {
			return p, invalidParams("value: %v", err)
		}
	}
	if args.Gas != "" {
		p.gas, err = decodeUint(args.Gas)
		if err != nil {
			return p, invalidParams("gas: %v", err)
		}
	}
	if args.GasPrice != "" {
		p.gasPrice, err = decodeBig(args.GasPrice)
		if err != nil {
			return p, invalidParams("gasPrice: %v", err)
		}
	}
	if args.Nonce != "" {
		nonce, err := decodeUint(args.Nonce)
		if err != nil {
			return p, invalidParams("nonce: %v", err)
		}
		p.nonce = &nonce
	}
	input := args.Input
	if input == "" {
		input = args.Data
	}
	p.input, err = decodeData(input)
	if err != nil {
		return p, invalidParams("data: %v", err)
	}
	return p, nil
}

func intrinsicGas(input []byte, creation bool) uint64 {
	gas := uint64(txGas)
	if creation {
		gas = txGasContractCreation
	}
	for _, b := range input {
		if b == 0 {
			gas += txDataZeroGas
		} else {
			gas += txDataNonZeroGas
		}
	}
	return gas
}

func serverError(format string, args ...any) error {
	return &jsonrpc.Error{Code: jsonrpc.CodeServerError, Message: fmt.Sprintf(format, args...)}
}

func invalidParams(format string, args ...any) error {
	return &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

// mine produces one block holding pending, or an empty block when pending is
// nil, and notifies newHeads subscribers once it is committed.
func (s *Simulator) mine(ctx context.Context, pending *pendingTx) (models.Block, error) {
	s.mineMu.Lock()
	defer s.mineMu.Unlock()

	var block models.Block
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		parent, err := models.FindLatestBlock(tx)
		if err != nil {
			return fmt.Errorf("failed to load parent block: %w", err)
		}
		block = models.Block{
			Number:     parent.Number + 1,
			ParentHash: parent.Hash,
			Timestamp:  max(uint64(time.Now().Unix()), parent.Timestamp),
			GasLimit:   s.opts.BlockGasLimit,
			Miner:      s.coinbase(),
		}

		var txs []models.Transaction
		if pending != nil {
			applied, err := s.applyTransaction(tx, *pending, block.Number)
			if err != nil {
				return err
			}
			block.GasUsed = applied.GasUsed
			txs = append(txs, applied)
		}

		block.Hash = blockHash(block, txs)
		if err := tx.Create(&block).Error; err != nil {
			return fmt.Errorf("failed to store block: %w", err)
		}
		for i := range txs {
			txs[i].BlockHash = block.Hash
			txs[i].Position = uint64(i)
		}
		if len(txs) > 0 {
			if err := tx.Create(&txs).Error; err != nil {
				return fmt.Errorf("failed to store transactions: %w", err)
			}
		}
		block.Transactions = txs
		return nil
	})
	if err != nil {
		return block, err
	}

	slog.Debug("Mined block", "number", block.Number, "hash", block.Hash, "transactions", len(block.Transactions))
	s.notifyNewHead(block)
	return block, nil
}

func (s *Simulator) applyTransaction(tx *gorm.DB, p pendingTx, blockNumber uint64) (models.Transaction, error) {
	sender, err := models.FindAccountByAddress(tx, p.from)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Transaction{}, serverError("sender account not recognized")
	} else if err != nil {
		return models.Transaction{}, fmt.Errorf("failed to load sender: %w", err)
	}
	if p.nonce != nil && *p.nonce != sender.Nonce {
		return models.Transaction{}, serverError("invalid nonce: expected %d, got %d", sender.Nonce, *p.nonce)
	}

	gasUsed := intrinsicGas(p.input, p.creation())
	gasLimit := p.gas
	if gasLimit == 0 {
		gasLimit = max(gasUsed, 90000)
	}
	if gasLimit < gasUsed {
		return models.Transaction{}, serverError("intrinsic gas too low: have %d, want %d", gasLimit, gasUsed)
	}
	if gasLimit > s.opts.BlockGasLimit {
		return models.Transaction{}, serverError("exceeds block gas limit")
	}

	balance, err := sender.BalanceWei()
	if err != nil {
		return models.Transaction{}, err
	}
	fee := new(big.Int).Mul(new(big.Int).SetUint64(gasUsed), p.gasPrice)
	cost := new(big.Int).Add(p.value, fee)
	if balance.Cmp(cost) < 0 {
		return models.Transaction{}, serverError("insufficient funds for gas * price + value")
	}

	stored := models.Transaction{
		BlockNumber: blockNumber,
		From:        p.from,
		Value:       p.value.String(),
		Gas:         gasLimit,
		GasPrice:    p.gasPrice.String(),
		GasUsed:     gasUsed,
		Nonce:       sender.Nonce,
		Input:       "0x" + hex.EncodeToString(p.input),
	}
	stored.Hash = transactionHash(s.opts.ChainID, stored, p.to)

	recipient := p.to
	if p.creation() {
		recipient = contractAddress(p.from, sender.Nonce)
		stored.ContractAddress = nulltype.NullStringOf(recipient)
	} else {
		stored.To = nulltype.NullStringOf(p.to)
	}

	err = tx.Model(&sender).Updates(map[string]any{
		"balance": new(big.Int).Sub(balance, cost).String(),
		"nonce":   sender.Nonce + 1,
	}).Error
	if err != nil {
		return models.Transaction{}, fmt.Errorf("failed to debit sender: %w", err)
	}
	if err := credit(tx, recipient, p.value); err != nil {
		return models.Transaction{}, err
	}
	return stored, nil
}

func credit(tx *gorm.DB, address string, value *big.Int) error {
	account, err := models.FindAccountByAddress(tx, address)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = tx.Create(&models.Account{Address: address, Balance: value.String(), Ordinal: -1}).Error
		if err != nil {
			return fmt.Errorf("failed to create recipient: %w", err)
		}
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to load recipient: %w", err)
	}
	balance, err := account.BalanceWei()
	if err != nil {
		return err
	}
	err = tx.Model(&account).Update("balance", new(big.Int).Add(balance, value).String()).Error
	if err != nil {
		return fmt.Errorf("failed to credit recipient: %w", err)
	}
	return nil
}

func (s *Simulator) coinbase() string {
	s.accountsMu.RLock()
	defer s.accountsMu.RUnlock()
	if len(s.accounts) == 0 {
		return ""
	}
	return s.accounts[0]
}

func (s *Simulator) notifyNewHead(block models.Block) {
	// Headers carry no transaction list.
	header := formatBlock(block, false, s.opts.ChainID)
	header.Transactions = nil
	var notifications []any
	s.subscriptions.Range(func(id string, sub subscription) bool {
		if sub.kind != subscriptionNewHeads {
			return true
		}
		notifications = append(notifications, subscriptionNotification{
			JSONRPC: jsonrpc.Version,
			Method:  "eth_subscription",
			Params: subscriptionParams{
				Subscription: id,
				Result:       header,
			},
		})
		return true
	})
	if len(notifications) == 0 {
		return
	}
	s.publish(events.DataBatchEvent{Payloads: notifications})
}

func transactionHash(chainID uint64, t models.Transaction, to string) string {
	return "0x" + hex.EncodeToString(keccak(
		uint64Bytes(chainID),
		[]byte(t.From),
		[]byte(to),
		uint64Bytes(t.Nonce),
		[]byte(t.Value),
		uint64Bytes(t.Gas),
		[]byte(t.GasPrice),
		[]byte(t.Input),
	))
}

func blockHash(b models.Block, txs []models.Transaction) string {
	parts := [][]byte{
		[]byte(b.ParentHash),
		uint64Bytes(b.Number),
		uint64Bytes(b.Timestamp),
		[]byte(b.Miner),
	}
	for _, t := range txs {
		parts = append(parts, []byte(t.Hash))
	}
	return "0x" + hex.EncodeToString(keccak(parts...))
}

func contractAddress(from string, nonce uint64) string {
	return "0x" + hex.EncodeToString(keccak([]byte(from), uint64Bytes(nonce))[12:])
}
