package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/TechySakib/EasyRide-Bus-Ticket-Management-System-sub000/internal/model"
	"github.com/TechySakib/EasyRide-Bus-Ticket-Management-System-sub000/internal/repo"
	"github.com/TechySakib/EasyRide-Bus-Ticket-Management-System-sub000/internal/service"
)

func RegisterHandlers(r *gin.Engine, svc *service.RechargeService, secret string, log *zap.SugaredLogger) {
	v1 := r.Group("/v1/recharge", AuthMiddleware(secret))
	{
		v1.POST("/request", submitHandler(svc, log))
		v1.GET("/my-requests", myRequestsHandler(svc, log))
		v1.GET("/wallet/balance", balanceHandler(svc, log))
		v1.GET("/wallet/transactions", transactionsHandler(svc, log))

		admin := v1.Group("", RequireAdmin())
		{
			admin.GET("/all", listAllHandler(svc, log))
			admin.POST("/approve/:id", approveHandler(svc, log))
			admin.POST("/reject/:id", rejectHandler(svc, log))
		}
	}
}

// respondError maps the service error taxonomy onto status codes. Anything
// unrecognized is a storage-level failure: logged verbatim, returned generic.
func respondError(c *gin.Context, log *zap.SugaredLogger, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Message, "field": vErr.Field})
	case errors.Is(err, repo.ErrDuplicateTransaction):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, repo.ErrAlreadyProcessed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repo.ErrRequestNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

type submitReq struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	PhoneNumber   string          `json:"phone_number"`
	TransactionID string          `json:"transaction_id"`
}

func submitHandler(svc *service.RechargeService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rec, err := svc.Submit(c, c.GetString(ctxUserID), service.SubmitInput{
			Amount:        req.Amount,
			PaymentMethod: req.PaymentMethod,
			PhoneNumber:   req.PhoneNumber,
			TransactionID: req.TransactionID,
		})
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, rec)
	}
}

func myRequestsHandler(svc *service.RechargeService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqs, err := svc.MyRequests(c, c.GetString(ctxUserID))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, reqs)
	}
}

func listAllHandler(svc *service.RechargeService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var status *model.RequestStatus
		if s := c.Query("status"); s != "" {
			st, ok := model.ParseRequestStatus(s)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
				return
			}
			status = &st
		}
		rows, err := svc.ListAll(c, status)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

func approveHandler(svc *service.RechargeService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		msg, err := svc.Approve(c, c.Param("id"), c.GetString(ctxUserID))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": msg})
	}
}

type rejectReq struct {
	Reason string `json:"reason"`
}

func rejectHandler(svc *service.RechargeService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req rejectReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		msg, err := svc.Reject(c, c.Param("id"), c.GetString(ctxUserID), req.Reason)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": msg})
	}
}

func balanceHandler(svc *service.RechargeService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		bal, err := svc.GetBalance(c, c.GetString(ctxUserID))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"balance": bal})
	}
}

func transactionsHandler(svc *service.RechargeService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		txs, err := svc.GetTransactions(c, c.GetString(ctxUserID), limit)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, txs)
	}
}
