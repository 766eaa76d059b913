package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/TechySakib/EasyRide-Bus-Ticket-Management-System-sub000/internal/model"
	"github.com/TechySakib/EasyRide-Bus-Ticket-Management-System-sub000/internal/repo"
)

// RechargeService glues the recharge workflow to the repository.
type RechargeService struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

// NewRechargeService returns RechargeService.
func NewRechargeService(r repo.RepositoryInterface, logger *zap.SugaredLogger) *RechargeService {
	return &RechargeService{repo: r, log: logger}
}

// SubmitInput is the validated-at-intake shape of a recharge submission.
type SubmitInput struct {
	Amount        decimal.Decimal
	PaymentMethod string
	PhoneNumber   string
	TransactionID string
}

// Submit validates and stores a pending recharge request. Nothing is written
// on validation failure; a reused transaction id surfaces as
// repo.ErrDuplicateTransaction.
func (s *RechargeService) Submit(ctx context.Context, userID string, in SubmitInput) (*model.RechargeRequest, error) {
	method, phone, err := validateSubmit(in)
	if err != nil {
		return nil, err
	}
	req := &model.RechargeRequest{
		ID:            uuid.NewString(),
		UserID:        userID,
		Amount:        in.Amount,
		PaymentMethod: method,
		PhoneNumber:   phone,
		TransactionID: strings.TrimSpace(in.TransactionID),
		Status:        model.StatusPending,
	}
	if err := s.repo.CreateRechargeRequest(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// MyRequests returns the caller's own requests, newest first.
func (s *RechargeService) MyRequests(ctx context.Context, userID string) ([]model.RechargeRequest, error) {
	return s.repo.ListRequestsByUser(ctx, userID)
}

// ListAll is the admin view, optionally filtered by status. Rows whose
// requester has no profile on record fall back to a placeholder rather than
// failing the batch.
func (s *RechargeService) ListAll(ctx context.Context, status *model.RequestStatus) ([]repo.RequestWithUser, error) {
	rows, err := s.repo.ListRequests(ctx, status)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].UserName == "" {
			rows[i].UserName = "Unknown"
		}
	}
	return rows, nil
}

// Approve transitions a pending request to approved and credits the user's
// wallet, all in one transaction. The conditional status update inside
// TransitionRequest is what makes a retried or double-clicked approval
// credit exactly once.
func (s *RechargeService) Approve(ctx context.Context, requestID, adminID string) (string, error) {
	var (
		msg      string
		userID   string
		newBal   decimal.Decimal
		credited bool
	)
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := s.repo.GetRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		// advisory fast path; the conditional update below is the real guard
		if req.Status != model.StatusPending {
			return repo.ErrAlreadyProcessed
		}
		if err := s.repo.TransitionRequest(ctx, tx, requestID, model.StatusApproved, adminID, nil); err != nil {
			return err
		}

		w, err := s.repo.GetWalletForUpdate(ctx, tx, req.UserID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			w = &model.Wallet{UserID: req.UserID, Balance: decimal.Zero}
			if err := s.repo.CreateWallet(ctx, tx, w); err != nil {
				return err
			}
		}

		bal := w.Balance.Add(req.Amount)
		if err := s.repo.UpdateWalletBalance(ctx, tx, w.ID, bal, w.Version); err != nil {
			return err
		}
		t := &model.WalletTransaction{
			WalletID:      w.ID,
			Type:          model.TxTypeRecharge,
			Amount:        req.Amount,
			BalanceBefore: w.Balance,
			BalanceAfter:  bal,
			Description:   fmt.Sprintf("Wallet recharge via %s, ref %s", req.PaymentMethod, req.TransactionID),
		}
		if err := s.repo.CreateTransaction(ctx, tx, t); err != nil {
			return err
		}
		payload, _ := json.Marshal(map[string]interface{}{
			"request_id": req.ID,
			"user_id":    req.UserID,
			"amount":     req.Amount,
			"balance":    bal,
		})
		evt := &model.OutboxEvent{
			Aggregate:   "Wallet",
			AggregateID: req.UserID,
			EventType:   model.EventRechargeApproved,
			Payload:     string(payload),
		}
		if err := s.repo.CreateOutboxEvent(ctx, tx, evt); err != nil {
			return err
		}

		userID, newBal, credited = req.UserID, bal, true
		msg = fmt.Sprintf("Recharge of %s approved, wallet credited", req.Amount.StringFixed(2))
		return nil
	})
	if err != nil {
		return "", err
	}
	// cache only after commit so a rollback never leaves a stale balance
	if credited {
		if err := s.repo.CacheBalance(ctx, userID, newBal); err != nil {
			s.log.Warnf("cache balance user=%s: %v", userID, err)
		}
	}
	return msg, nil
}

// Reject transitions a pending request to rejected with the given reason.
// Same pending guard as Approve; no wallet interaction.
func (s *RechargeService) Reject(ctx context.Context, requestID, adminID, reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", &ValidationError{Field: "reason", Message: "is required"}
	}
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := s.repo.GetRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req.Status != model.StatusPending {
			return repo.ErrAlreadyProcessed
		}
		return s.repo.TransitionRequest(ctx, tx, requestID, model.StatusRejected, adminID, &reason)
	})
	if err != nil {
		return "", err
	}
	return "Recharge request rejected", nil
}

// GetBalance returns the wallet balance, creating the wallet lazily on a
// user's first read. The stored balance is authoritative; the cache is a
// best-effort fast path.
func (s *RechargeService) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	if bal, err := s.repo.GetCachedBalance(ctx, userID); err == nil {
		return bal, nil
	}
	w, err := s.repo.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if err := s.repo.CacheBalance(ctx, userID, w.Balance); err != nil {
		s.log.Warnf("cache balance user=%s: %v", userID, err)
	}
	return w.Balance, nil
}

// GetTransactions fetches the caller's recent wallet history.
func (s *RechargeService) GetTransactions(ctx context.Context, userID string, limit int) ([]model.WalletTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	w, err := s.repo.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, w.ID, limit)
}

// Repo exposes underlying repository (unit tests helper).
func (s *RechargeService) Repo() repo.RepositoryInterface {
	return s.repo
}
