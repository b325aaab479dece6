package models

import (
	"time"

	"github.com/mattn/go-nulltype"
	"gorm.io/gorm"
)

type Transaction struct {
	Hash        string `json:"hash" gorm:"primaryKey;type:varchar(66)"`
	BlockNumber uint64 `json:"block_number" gorm:"index"`
	BlockHash   string `json:"block_hash" gorm:"type:varchar(66)"`
	// Position is the transaction index within its block.
	Position uint64              `json:"position"`
	From     string              `json:"from" gorm:"type:varchar(42);index"`
	To       nulltype.NullString `json:"to" gorm:"type:varchar(42)"`
	Value    string              `json:"value"`
	Gas      uint64              `json:"gas"`
	GasPrice string              `json:"gas_price"`
	GasUsed  uint64              `json:"gas_used"`
	Nonce    uint64              `json:"nonce"`
	Input    string              `json:"input"`
	// ContractAddress is set only for contract creations.
	ContractAddress nulltype.NullString `json:"contract_address" gorm:"type:varchar(42)"`
	CreatedAt       time.Time           `json:"-"`
}

func (t Transaction) TableName() string {
	return "transactions"
}

func FindTransactionByHash(db *gorm.DB, hash string) (Transaction, error) {
	var tx Transaction
	err := db.First(&tx, "hash = ?", hash).Error
	return tx, err
}

func CountTransactions(db *gorm.DB) (int, error) {
	var count int64
	err := db.Model(&Transaction{}).Count(&count).Error
	return int(count), err
}
