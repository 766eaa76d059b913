package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/TechySakib/EasyRide-Bus-Ticket-Management-System-sub000/internal/model"
)

// RequestWithUser is the admin listing row: a request decorated with the
// requester's profile, when one exists.
type RequestWithUser struct {
	model.RechargeRequest
	UserName  string `json:"user_name"`
	UserPhone string `json:"user_phone"`
}

// RepositoryInterface restricts Repo methods so services can be tested
// against a narrow surface.
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB
	CreateRechargeRequest(ctx context.Context, req *model.RechargeRequest) error
	GetRequest(ctx context.Context, tx *gorm.DB, id string) (*model.RechargeRequest, error)
	ListRequestsByUser(ctx context.Context, userID string) ([]model.RechargeRequest, error)
	ListRequests(ctx context.Context, status *model.RequestStatus) ([]RequestWithUser, error)
	TransitionRequest(ctx context.Context, tx *gorm.DB, id string, to model.RequestStatus, adminID string, reason *string) error
	GetWalletForUpdate(ctx context.Context, tx *gorm.DB, userID string) (*model.Wallet, error)
	CreateWallet(ctx context.Context, tx *gorm.DB, w *model.Wallet) error
	GetOrCreateWallet(ctx context.Context, userID string) (*model.Wallet, error)
	UpdateWalletBalance(ctx context.Context, tx *gorm.DB, walletID uint64, newBalance decimal.Decimal, oldVersion uint64) error
	CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.WalletTransaction) error
	ListTransactions(ctx context.Context, walletID uint64, limit int) ([]model.WalletTransaction, error)
	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error
	CacheBalance(ctx context.Context, userID string, bal decimal.Decimal) error
	GetCachedBalance(ctx context.Context, userID string) (decimal.Decimal, error)
}

// Repository implements RepositoryInterface over Postgres, Redis and Kafka.
type Repository struct {
	db     *gorm.DB
	rdb    *redis.Client
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, rdb *redis.Client, w *kafka.Writer, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, writer: w, log: logger}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// CreateRechargeRequest inserts a pending request. The unique index on
// transaction_id is the idempotency anchor; a violation surfaces as
// ErrDuplicateTransaction so handlers can answer 409 instead of 500.
func (r *Repository) CreateRechargeRequest(ctx context.Context, req *model.RechargeRequest) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateTransaction
		}
		return err
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// sqlite in tests
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetRequest loads one request inside tx (or the base handle).
func (r *Repository) GetRequest(ctx context.Context, tx *gorm.DB, id string) (*model.RechargeRequest, error) {
	if tx == nil {
		tx = r.db
	}
	var req model.RechargeRequest
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

// ListRequestsByUser returns a user's own requests, newest first.
func (r *Repository) ListRequestsByUser(ctx context.Context, userID string) ([]model.RechargeRequest, error) {
	var reqs []model.RechargeRequest
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&reqs).Error
	return reqs, err
}

// ListRequests returns the admin view, each row joined against user_profiles.
// The join is LEFT so a missing profile never drops or fails the row.
func (r *Repository) ListRequests(ctx context.Context, status *model.RequestStatus) ([]RequestWithUser, error) {
	q := r.db.WithContext(ctx).
		Model(&model.RechargeRequest{}).
		Select("recharge_requests.*, user_profiles.full_name AS user_name, user_profiles.phone AS user_phone").
		Joins("LEFT JOIN user_profiles ON user_profiles.user_id = recharge_requests.user_id")
	if status != nil {
		q = q.Where("recharge_requests.status = ?", *status)
	}
	var rows []RequestWithUser
	err := q.Order("recharge_requests.created_at DESC").Find(&rows).Error
	return rows, err
}

// TransitionRequest moves a request out of pending. The WHERE clause on the
// current status is the concurrency control for the whole subsystem: of any
// number of racing approve/reject calls, exactly one affects a row and the
// rest get ErrAlreadyProcessed.
func (r *Repository) TransitionRequest(ctx context.Context, tx *gorm.DB, id string, to model.RequestStatus, adminID string, reason *string) error {
	if tx == nil {
		tx = r.db
	}
	now := time.Now()
	updates := map[string]interface{}{
		"status":       to,
		"processed_by": adminID,
		"processed_at": &now,
	}
	if reason != nil {
		updates["rejection_reason"] = *reason
	}
	res := tx.WithContext(ctx).
		Model(&model.RechargeRequest{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyProcessed
	}
	return nil
}

// GetWalletForUpdate locks the wallet row for the duration of tx.
func (r *Repository) GetWalletForUpdate(ctx context.Context, tx *gorm.DB, userID string) (*model.Wallet, error) {
	var w model.Wallet
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateWallet inserts a fresh zero-balance wallet.
func (r *Repository) CreateWallet(ctx context.Context, tx *gorm.DB, w *model.Wallet) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(w).Error
}

// GetOrCreateWallet materializes a user's wallet on first read.
func (r *Repository) GetOrCreateWallet(ctx context.Context, userID string) (*model.Wallet, error) {
	var w model.Wallet
	err := r.db.WithContext(ctx).
		Where(model.Wallet{UserID: userID}).
		Attrs(model.Wallet{Balance: decimal.Zero}).
		FirstOrCreate(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// UpdateWalletBalance with optimistic lock.
func (r *Repository) UpdateWalletBalance(ctx context.Context, tx *gorm.DB, walletID uint64, newBalance decimal.Decimal, oldVersion uint64) error {
	res := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("id = ? AND version = ?", walletID, oldVersion).
		Updates(map[string]interface{}{
			"balance":    newBalance,
			"version":    oldVersion + 1,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New("optimistic lock conflict")
	}
	return nil
}

// CreateTransaction appends one audit row.
func (r *Repository) CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.WalletTransaction) error {
	return tx.WithContext(ctx).Create(t).Error
}

// ListTransactions returns a wallet's history, newest first.
func (r *Repository) ListTransactions(ctx context.Context, walletID uint64, limit int) ([]model.WalletTransaction, error) {
	var txs []model.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}

// CreateOutboxEvent writes event.
func (r *Repository) CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error {
	return tx.WithContext(ctx).Create(evt).Error
}

// PollOutbox pulls unprocessed events.
func (r *Repository) PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var evts []model.OutboxEvent
	err := r.db.WithContext(ctx).Where("processed = false").Order("created_at").Limit(limit).Find(&evts).Error
	return evts, err
}

// MarkOutboxProcessed sets processed flag.
func (r *Repository) MarkOutboxProcessed(ctx context.Context, id uint64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{"processed": true, "processed_at": &now}).Error
}

// PublishEvent sends to Kafka.
func (r *Repository) PublishEvent(ctx context.Context, evt model.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(evt.AggregateID),
		Value: []byte(evt.Payload),
		Time:  time.Now(),
	}
	return r.writer.WriteMessages(ctx, msg)
}

// CacheBalance writes Redis.
func (r *Repository) CacheBalance(ctx context.Context, userID string, bal decimal.Decimal) error {
	return r.rdb.Set(ctx, fmt.Sprintf("wallet:balance:%s", userID), bal.String(), 5*time.Minute).Err()
}

// GetCachedBalance reads Redis.
func (r *Repository) GetCachedBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	str, err := r.rdb.Get(ctx, fmt.Sprintf("wallet:balance:%s", userID)).Result()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(str)
}
