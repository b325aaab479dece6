package simulator

import (
	"math/big"

	"github.com/zeuslawyer/remix-simulator/internal/db/models"
)

const (
	emptyUncleHash = "0x1dcc4de8dec75d7aab85b567b6ccd41ad312451b948a7413f0a142fd40d49347"
	emptyRootHash  = "0x56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421"
	emptyBloom     = "0x" +
		"00000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000" +
		"00000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000" +
		"00000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000" +
		"00000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000"
)

type rpcBlock struct {
	Number           string   `json:"number"`
	Hash             string   `json:"hash"`
	ParentHash       string   `json:"parentHash"`
	Nonce            string   `json:"nonce"`
	Sha3Uncles       string   `json:"sha3Uncles"`
	LogsBloom        string   `json:"logsBloom"`
	TransactionsRoot string   `json:"transactionsRoot"`
	StateRoot        string   `json:"stateRoot"`
	ReceiptsRoot     string   `json:"receiptsRoot"`
	Miner            string   `json:"miner"`
	Difficulty       string   `json:"difficulty"`
	TotalDifficulty  string   `json:"totalDifficulty"`
	ExtraData        string   `json:"extraData"`
	Size             string   `json:"size"`
	GasLimit         string   `json:"gasLimit"`
	GasUsed          string   `json:"gasUsed"`
	Timestamp        string   `json:"timestamp"`
	Transactions     *[]any   `json:"transactions,omitempty"`
	Uncles           []string `json:"uncles"`
}

type rpcTransaction struct {
	Hash             string  `json:"hash"`
	Nonce            string  `json:"nonce"`
	BlockHash        string  `json:"blockHash"`
	BlockNumber      string  `json:"blockNumber"`
	TransactionIndex string  `json:"transactionIndex"`
	From             string  `json:"from"`
	To               *string `json:"to"`
	Value            string  `json:"value"`
	Gas              string  `json:"gas"`
	GasPrice         string  `json:"gasPrice"`
	Input            string  `json:"input"`
	ChainID          string  `json:"chainId"`
	Type             string  `json:"type"`
}

type rpcReceipt struct {
	TransactionHash   string   `json:"transactionHash"`
	TransactionIndex  string   `json:"transactionIndex"`
	BlockHash         string   `json:"blockHash"`
	BlockNumber       string   `json:"blockNumber"`
	From              string   `json:"from"`
	To                *string  `json:"to"`
	CumulativeGasUsed string   `json:"cumulativeGasUsed"`
	GasUsed           string   `json:"gasUsed"`
	EffectiveGasPrice string   `json:"effectiveGasPrice"`
	ContractAddress   *string  `json:"contractAddress"`
	Logs              []string `json:"logs"`
	LogsBloom         string   `json:"logsBloom"`
	Status            string   `json:"status"`
	Type              string   `json:"type"`
}

const (
	subscriptionNewHeads = "newHeads"
)

type subscriptionParams struct {
	Subscription string `json:"subscription"`
	Result       any    `json:"result"`
}

type subscriptionNotification struct {
	JSONRPC string             `json:"jsonrpc"`
	Method  string             `json:"method"`
	Params  subscriptionParams `json:"params"`
}

func formatBlock(b models.Block, fullTransactions bool, chainID uint64) rpcBlock {
	out := rpcBlock{
		Number:           encodeUint(b.Number),
		Hash:             b.Hash,
		ParentHash:       b.ParentHash,
		Nonce:            "0x0000000000000000",
		Sha3Uncles:       emptyUncleHash,
		LogsBloom:        emptyBloom,
		TransactionsRoot: emptyRootHash,
		StateRoot:        emptyRootHash,
		ReceiptsRoot:     emptyRootHash,
		Miner:            b.Miner,
		Difficulty:       "0x0",
		TotalDifficulty:  "0x0",
		ExtraData:        "0x",
		Size:             encodeUint(uint64(1000 + 100*len(b.Transactions))),
		GasLimit:         encodeUint(b.GasLimit),
		GasUsed:          encodeUint(b.GasUsed),
		Timestamp:        encodeUint(b.Timestamp),
		Uncles:           []string{},
	}
	txs := make([]any, 0, len(b.Transactions))
	for _, t := range b.Transactions {
		if fullTransactions {
			txs = append(txs, formatTransaction(t, chainID))
		} else {
			txs = append(txs, t.Hash)
		}
	}
	out.Transactions = &txs
	return out
}

func formatTransaction(t models.Transaction, chainID uint64) rpcTransaction {
	return rpcTransaction{
		Hash:             t.Hash,
		Nonce:            encodeUint(t.Nonce),
		BlockHash:        t.BlockHash,
		BlockNumber:      encodeUint(t.BlockNumber),
		TransactionIndex: encodeUint(t.Position),
		From:             t.From,
		To:               nullable(t.To.Valid(), t.To.StringValue()),
		Value:            encodeDecimal(t.Value),
		Gas:              encodeUint(t.Gas),
		GasPrice:         encodeDecimal(t.GasPrice),
		Input:            t.Input,
		ChainID:          encodeUint(chainID),
		Type:             "0x0",
	}
}

func formatReceipt(t models.Transaction) rpcReceipt {
	return rpcReceipt{
		TransactionHash:   t.Hash,
		TransactionIndex:  encodeUint(t.Position),
		BlockHash:         t.BlockHash,
		BlockNumber:       encodeUint(t.BlockNumber),
		From:              t.From,
		To:                nullable(t.To.Valid(), t.To.StringValue()),
		CumulativeGasUsed: encodeUint(t.GasUsed),
		GasUsed:           encodeUint(t.GasUsed),
		EffectiveGasPrice: encodeDecimal(t.GasPrice),
		ContractAddress:   nullable(t.ContractAddress.Valid(), t.ContractAddress.StringValue()),
		Logs:              []string{},
		LogsBloom:         emptyBloom,
		Status:            "0x1",
		Type:              "0x0",
	}
}

func nullable(valid bool, value string) *string {
	if !valid {
		return nil
	}
	return &value
}

// encodeDecimal re-encodes a stored base-10 amount as a hex quantity.
func encodeDecimal(s string) string {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return "0x0"
	}
	return encodeBig(v)
}
