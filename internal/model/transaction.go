package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction type values.
const TxTypeRecharge = "recharge"

// WalletTransaction is one append-only audit row per balance-affecting event.
// Rows are never updated or deleted. BalanceBefore/BalanceAfter are captured
// at write time so the trail stays readable even if the wallet moves on.
type WalletTransaction struct {
	ID            uint64          `gorm:"primaryKey" json:"id"`
	WalletID      uint64          `gorm:"index;not null" json:"wallet_id"`
	Type          string          `gorm:"size:32;not null" json:"type"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	BalanceBefore decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"balance_after"`
	Description   string          `gorm:"size:255;not null" json:"description"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (WalletTransaction) TableName() string { return "wallet_transactions" }
