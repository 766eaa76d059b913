package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RequestStatus is the lifecycle state of a recharge request. A request is
// created pending and transitions exactly once to approved or rejected.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// ParseRequestStatus validates a status filter value.
func ParseRequestStatus(s string) (RequestStatus, bool) {
	switch RequestStatus(strings.ToLower(s)) {
	case StatusPending:
		return StatusPending, true
	case StatusApproved:
		return StatusApproved, true
	case StatusRejected:
		return StatusRejected, true
	}
	return "", false
}

// PaymentMethod is one of the mobile-money providers accepted for recharges.
type PaymentMethod string

const (
	MethodBkash  PaymentMethod = "bkash"
	MethodNagad  PaymentMethod = "nagad"
	MethodRocket PaymentMethod = "rocket"
)

// ParsePaymentMethod normalizes case and rejects unknown providers.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(strings.ToLower(s)) {
	case MethodBkash:
		return MethodBkash, true
	case MethodNagad:
		return MethodNagad, true
	case MethodRocket:
		return MethodRocket, true
	}
	return "", false
}

// RechargeRequest is a passenger's claim of an external mobile-money payment,
// held pending until an administrator verifies it. TransactionID carries the
// provider's reference and is unique across all requests, which is what stops
// the same real-world payment being submitted twice.
type RechargeRequest struct {
	ID              string          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          string          `gorm:"type:uuid;index;not null" json:"user_id"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	PaymentMethod   PaymentMethod   `gorm:"size:16;not null" json:"payment_method"`
	PhoneNumber     string          `gorm:"size:16;not null" json:"phone_number"`
	TransactionID   string          `gorm:"size:64;uniqueIndex;not null" json:"transaction_id"`
	Status          RequestStatus   `gorm:"size:16;index;not null;default:'pending'" json:"status"`
	RejectionReason *string         `gorm:"size:255" json:"rejection_reason,omitempty"`
	ProcessedBy     *string         `gorm:"type:uuid" json:"processed_by,omitempty"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (RechargeRequest) TableName() string { return "recharge_requests" }
