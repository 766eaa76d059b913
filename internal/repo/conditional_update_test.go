package repo

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/TechySakib/EasyRide-Bus-Ticket-Management-System-sub000/internal/logger"
	"github.com/TechySakib/EasyRide-Bus-Ticket-Management-System-sub000/internal/model"
)

func newTestRepo(t *testing.T, dsn string) (*Repository, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.RechargeRequest{}, &model.Wallet{}))
	return NewRepository(db, nil, &kafka.Writer{}, must(logger.NewLogger())), db
}

func seedPending(t *testing.T, db *gorm.DB) *model.RechargeRequest {
	req := &model.RechargeRequest{
		ID:            uuid.NewString(),
		UserID:        uuid.NewString(),
		Amount:        decimal.NewFromInt(100),
		PaymentMethod: model.MethodBkash,
		PhoneNumber:   "01712345678",
		TransactionID: uuid.NewString(),
		Status:        model.StatusPending,
	}
	require.NoError(t, db.Create(req).Error)
	return req
}

func TestTransitionRequest_SecondCallLoses(t *testing.T) {
	r, db := newTestRepo(t, "file:transition_seq?mode=memory&cache=shared")
	req := seedPending(t, db)
	ctx := context.Background()

	err := r.TransitionRequest(ctx, nil, req.ID, model.StatusApproved, uuid.NewString(), nil)
	require.NoError(t, err)

	err = r.TransitionRequest(ctx, nil, req.ID, model.StatusRejected, uuid.NewString(), strPtr("too late"))
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	var final model.RechargeRequest
	require.NoError(t, db.First(&final, "id = ?", req.ID).Error)
	assert.Equal(t, model.StatusApproved, final.Status)
	assert.Nil(t, final.RejectionReason)
}

func TestTransitionRequest_ConcurrentApprovals(t *testing.T) {
	r, db := newTestRepo(t, "file:transition_race?mode=memory&cache=shared&_busy_timeout=5000")
	req := seedPending(t, db)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.TransitionRequest(ctx, nil, req.ID, model.StatusApproved, uuid.NewString(), nil); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if !errors.Is(err, ErrAlreadyProcessed) {
				t.Logf("transition: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one approval may win the conditional update")

	var final model.RechargeRequest
	require.NoError(t, db.First(&final, "id = ?", req.ID).Error)
	assert.Equal(t, model.StatusApproved, final.Status)
}

func TestCreateRechargeRequest_DuplicateTransactionID(t *testing.T) {
	r, db := newTestRepo(t, "file:dup_txn?mode=memory&cache=shared")
	ctx := context.Background()

	first := seedPending(t, db)
	dup := &model.RechargeRequest{
		ID:            uuid.NewString(),
		UserID:        uuid.NewString(),
		Amount:        decimal.NewFromInt(50),
		PaymentMethod: model.MethodNagad,
		PhoneNumber:   "01812345678",
		TransactionID: first.TransactionID,
		Status:        model.StatusPending,
	}
	err := r.CreateRechargeRequest(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicateTransaction)
}

func strPtr(s string) *string { return &s }

func must(l *zap.SugaredLogger, err error) *zap.SugaredLogger {
	if err != nil {
		panic(err)
	}
	return l
}
