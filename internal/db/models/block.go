package models

import (
	"time"

	"gorm.io/gorm"
)

type Block struct {
	Number       uint64        `json:"number" gorm:"primaryKey;autoIncrement:false"`
	Hash         string        `json:"hash" gorm:"uniqueIndex;type:varchar(66)"`
	ParentHash   string        `json:"parent_hash" gorm:"type:varchar(66)"`
	Timestamp    uint64        `json:"timestamp"`
	GasLimit     uint64        `json:"gas_limit"`
	GasUsed      uint64        `json:"gas_used"`
	Miner        string        `json:"miner" gorm:"type:varchar(42)"`
	Transactions []Transaction `json:"transactions" gorm:"foreignKey:BlockNumber;references:Number"`
	CreatedAt    time.Time     `json:"-"`
}

func (b Block) TableName() string {
	return "blocks"
}

func FindBlockByNumber(db *gorm.DB, number uint64) (Block, error) {
	var block Block
	err := db.Preload("Transactions", func(db *gorm.DB) *gorm.DB {
		return db.Order("position asc")
	}).First(&block, "number = ?", number).Error
	return block, err
}

func FindLatestBlock(db *gorm.DB) (Block, error) {
	var block Block
	err := db.Preload("Transactions").Order("number desc").First(&block).Error
	return block, err
}

func LatestBlockNumber(db *gorm.DB) (uint64, error) {
	var block Block
	err := db.Select("number").Order("number desc").First(&block).Error
	return block.Number, err
}
