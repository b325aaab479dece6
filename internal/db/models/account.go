package models

import (
	"fmt"
	"math/big"
	"time"

	"gorm.io/gorm"
)

// Account is a funded address. Test accounts carry an Ordinal of zero or more,
// other addresses that received value carry -1. Balance is a base-10 wei amount.
type Account struct {
	Address   string `json:"address" gorm:"primaryKey;type:varchar(42)"`
	Balance   string `json:"balance" gorm:"not null"`
	Nonce     uint64 `json:"nonce" gorm:"not null;default:0"`
	Ordinal   int    `json:"ordinal" gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a Account) TableName() string {
	return "accounts"
}

func (a Account) BalanceWei() (*big.Int, error) {
	balance, ok := new(big.Int).SetString(a.Balance, 10)
	if !ok {
		return nil, fmt.Errorf("invalid balance %q for account %s", a.Balance, a.Address)
	}
	return balance, nil
}

func FindAccountByAddress(db *gorm.DB, address string) (Account, error) {
	var account Account
	err := db.First(&account, "address = ?", address).Error
	return account, err
}

// ListAccounts returns the test accounts in creation order.
func ListAccounts(db *gorm.DB) ([]Account, error) {
	var accounts []Account
	err := db.Where("ordinal >= ?", 0).Order("ordinal asc").Find(&accounts).Error
	return accounts, err
}
