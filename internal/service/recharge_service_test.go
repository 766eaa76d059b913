package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/TechySakib/EasyRide-Bus-Ticket-Management-System-sub000/internal/logger"
	"github.com/TechySakib/EasyRide-Bus-Ticket-Management-System-sub000/internal/model"
	"github.com/TechySakib/EasyRide-Bus-Ticket-Management-System-sub000/internal/repo"
)

func newTestService(t *testing.T) (*RechargeService, context.Context) {
	// one in-memory DB per test, shared across pooled connections
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.RechargeRequest{},
		&model.Wallet{},
		&model.WalletTransaction{},
		&model.OutboxEvent{},
		&model.UserProfile{},
	))

	// cache misses are the uninteresting path here; an unprimed mock makes
	// every Get/Set fail, which the service must tolerate
	rdb, _ := redismock.NewClientMock()

	log, _ := logger.NewLogger()
	repository := repo.NewRepository(db, rdb, &kafka.Writer{}, log)
	return NewRechargeService(repository, log), context.Background()
}

func validInput(txnID string) SubmitInput {
	return SubmitInput{
		Amount:        decimal.NewFromInt(100),
		PaymentMethod: "bkash",
		PhoneNumber:   "01712345678",
		TransactionID: txnID,
	}
}

func TestSubmit_StoresPendingRequest(t *testing.T) {
	svc, ctx := newTestService(t)
	userID := uuid.NewString()

	rec, err := svc.Submit(ctx, userID, SubmitInput{
		Amount:        decimal.RequireFromString("100"),
		PaymentMethod: "BKASH",
		PhoneNumber:   "017-1234 5678",
		TransactionID: "TXN123",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, rec.Status)
	assert.Equal(t, model.MethodBkash, rec.PaymentMethod, "method normalized to lowercase")
	assert.Equal(t, "01712345678", rec.PhoneNumber, "spaces and hyphens stripped")
	assert.NotEmpty(t, rec.ID)
}

func TestSubmit_DuplicateTransactionID(t *testing.T) {
	svc, ctx := newTestService(t)

	_, err := svc.Submit(ctx, uuid.NewString(), validInput("TXN-DUP"))
	require.NoError(t, err)

	// same external payment reference, even from another user
	_, err = svc.Submit(ctx, uuid.NewString(), validInput("TXN-DUP"))
	assert.ErrorIs(t, err, repo.ErrDuplicateTransaction)

	var count int64
	svc.Repo().DB(ctx).Model(&model.RechargeRequest{}).Where("transaction_id = ?", "TXN-DUP").Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestSubmit_ValidationBoundaries(t *testing.T) {
	svc, ctx := newTestService(t)
	userID := uuid.NewString()

	cases := []struct {
		name  string
		in    SubmitInput
		field string
	}{
		{"zero amount", SubmitInput{Amount: decimal.Zero, PaymentMethod: "bkash", PhoneNumber: "01712345678", TransactionID: "t1"}, "amount"},
		{"negative amount", SubmitInput{Amount: decimal.NewFromInt(-5), PaymentMethod: "bkash", PhoneNumber: "01712345678", TransactionID: "t2"}, "amount"},
		{"unknown method", SubmitInput{Amount: decimal.NewFromInt(10), PaymentMethod: "PAYPAL", PhoneNumber: "01712345678", TransactionID: "t3"}, "payment_method"},
		{"short phone", SubmitInput{Amount: decimal.NewFromInt(10), PaymentMethod: "bkash", PhoneNumber: "123", TransactionID: "t4"}, "phone_number"},
		{"missing txn id", SubmitInput{Amount: decimal.NewFromInt(10), PaymentMethod: "bkash", PhoneNumber: "01712345678", TransactionID: "  "}, "transaction_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, userID, tc.in)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}

	// nothing was written by any rejected submission
	var count int64
	svc.Repo().DB(ctx).Model(&model.RechargeRequest{}).Count(&count)
	assert.EqualValues(t, 0, count)

	// smallest accepted amount
	_, err := svc.Submit(ctx, userID, SubmitInput{
		Amount:        decimal.RequireFromString("0.01"),
		PaymentMethod: "bkash",
		PhoneNumber:   "01712345678",
		TransactionID: "t-min",
	})
	assert.NoError(t, err)
}

func TestApprove_EndToEnd(t *testing.T) {
	svc, ctx := newTestService(t)
	userID := uuid.NewString()
	adminID := uuid.NewString()

	rec, err := svc.Submit(ctx, userID, validInput("TXN123"))
	require.NoError(t, err)

	msg, err := svc.Approve(ctx, rec.ID, adminID)
	require.NoError(t, err)
	assert.NotEmpty(t, msg)

	var stored model.RechargeRequest
	require.NoError(t, svc.Repo().DB(ctx).First(&stored, "id = ?", rec.ID).Error)
	assert.Equal(t, model.StatusApproved, stored.Status)
	require.NotNil(t, stored.ProcessedBy)
	assert.Equal(t, adminID, *stored.ProcessedBy)
	assert.NotNil(t, stored.ProcessedAt)

	bal, err := svc.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", bal.StringFixed(2))

	txs, err := svc.GetTransactions(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, model.TxTypeRecharge, txs[0].Type)
	assert.Contains(t, txs[0].Description, "TXN123")
	assert.Contains(t, txs[0].Description, "bkash")

	var evts int64
	svc.Repo().DB(ctx).Model(&model.OutboxEvent{}).Where("event_type = ?", model.EventRechargeApproved).Count(&evts)
	assert.EqualValues(t, 1, evts)
}

func TestApprove_Idempotent(t *testing.T) {
	svc, ctx := newTestService(t)
	userID := uuid.NewString()

	rec, err := svc.Submit(ctx, userID, validInput("TXN-A"))
	require.NoError(t, err)

	_, err = svc.Approve(ctx, rec.ID, uuid.NewString())
	require.NoError(t, err)

	// retried approval must not double-credit
	_, err = svc.Approve(ctx, rec.ID, uuid.NewString())
	assert.ErrorIs(t, err, repo.ErrAlreadyProcessed)

	bal, err := svc.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", bal.StringFixed(2))

	var txCount int64
	svc.Repo().DB(ctx).Model(&model.WalletTransaction{}).Count(&txCount)
	assert.EqualValues(t, 1, txCount)
}

func TestApprove_UnknownRequest(t *testing.T) {
	svc, ctx := newTestService(t)
	_, err := svc.Approve(ctx, uuid.NewString(), uuid.NewString())
	assert.ErrorIs(t, err, repo.ErrRequestNotFound)
}

func TestReject_Idempotent(t *testing.T) {
	svc, ctx := newTestService(t)
	userID := uuid.NewString()

	rec, err := svc.Submit(ctx, userID, validInput("TXN-R"))
	require.NoError(t, err)

	_, err = svc.Reject(ctx, rec.ID, uuid.NewString(), "Invalid transaction")
	require.NoError(t, err)

	_, err = svc.Reject(ctx, rec.ID, uuid.NewString(), "second reason")
	assert.ErrorIs(t, err, repo.ErrAlreadyProcessed)

	var stored model.RechargeRequest
	require.NoError(t, svc.Repo().DB(ctx).First(&stored, "id = ?", rec.ID).Error)
	assert.Equal(t, model.StatusRejected, stored.Status)
	require.NotNil(t, stored.RejectionReason)
	assert.Equal(t, "Invalid transaction", *stored.RejectionReason, "reason from the first call only")

	// rejection never touches the wallet
	bal, err := svc.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}

func TestReject_RequiresReason(t *testing.T) {
	svc, ctx := newTestService(t)
	rec, err := svc.Submit(ctx, uuid.NewString(), validInput("TXN-NR"))
	require.NoError(t, err)

	_, err = svc.Reject(ctx, rec.ID, uuid.NewString(), "   ")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "reason", vErr.Field)

	// still pending, still approvable
	_, err = svc.Approve(ctx, rec.ID, uuid.NewString())
	assert.NoError(t, err)
}

func TestBalanceInvariant_DecimalExact(t *testing.T) {
	svc, ctx := newTestService(t)
	userID := uuid.NewString()
	adminID := uuid.NewString()

	amounts := []string{"100.50", "250.25"}
	for i, a := range amounts {
		rec, err := svc.Submit(ctx, userID, SubmitInput{
			Amount:        decimal.RequireFromString(a),
			PaymentMethod: "nagad",
			PhoneNumber:   "01812345678",
			TransactionID: fmt.Sprintf("TXN-DEC-%d", i),
		})
		require.NoError(t, err)
		_, err = svc.Approve(ctx, rec.ID, adminID)
		require.NoError(t, err)
	}

	bal, err := svc.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "350.75", bal.StringFixed(2))
}

func TestGetBalance_LazyWalletCreation(t *testing.T) {
	svc, ctx := newTestService(t)
	userID := uuid.NewString()

	bal, err := svc.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	bal, err = svc.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	var count int64
	svc.Repo().DB(ctx).Model(&model.Wallet{}).Where("user_id = ?", userID).Count(&count)
	assert.EqualValues(t, 1, count, "second read must not create a duplicate wallet")
}

func TestMyRequests_NewestFirst(t *testing.T) {
	svc, ctx := newTestService(t)
	userID := uuid.NewString()

	for i := 0; i < 3; i++ {
		_, err := svc.Submit(ctx, userID, validInput(fmt.Sprintf("TXN-ORD-%d", i)))
		require.NoError(t, err)
	}
	// another user's request must not appear
	_, err := svc.Submit(ctx, uuid.NewString(), validInput("TXN-OTHER"))
	require.NoError(t, err)

	reqs, err := svc.MyRequests(ctx, userID)
	require.NoError(t, err)
	require.Len(t, reqs, 3)
	for i := 1; i < len(reqs); i++ {
		assert.False(t, reqs[i].CreatedAt.After(reqs[i-1].CreatedAt))
	}
}

func TestListAll_EnrichmentAndFilter(t *testing.T) {
	svc, ctx := newTestService(t)
	known := uuid.NewString()
	unknown := uuid.NewString()

	require.NoError(t, svc.Repo().DB(ctx).Create(&model.UserProfile{
		UserID: known, FullName: "Sadia Rahman", Phone: "01912345678",
	}).Error)

	recKnown, err := svc.Submit(ctx, known, validInput("TXN-K"))
	require.NoError(t, err)
	_, err = svc.Submit(ctx, unknown, validInput("TXN-U"))
	require.NoError(t, err)
	_, err = svc.Approve(ctx, recKnown.ID, uuid.NewString())
	require.NoError(t, err)

	rows, err := svc.ListAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	byUser := map[string]string{}
	for _, row := range rows {
		byUser[row.UserID] = row.UserName
	}
	assert.Equal(t, "Sadia Rahman", byUser[known])
	assert.Equal(t, "Unknown", byUser[unknown], "missing profile falls back, never errors")

	pending := model.StatusPending
	rows, err = svc.ListAll(ctx, &pending)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, unknown, rows[0].UserID)
}
