package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds a passenger's running balance. One row per user, created
// lazily on first balance read or first approved recharge. Version guards
// concurrent balance updates (optimistic lock).
type Wallet struct {
	ID        uint64          `gorm:"primaryKey" json:"id"`
	UserID    string          `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Balance   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:'0'" json:"balance"`
	Version   uint64          `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Wallet) TableName() string { return "wallets" }
