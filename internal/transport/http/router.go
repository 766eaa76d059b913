package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/TechySakib/EasyRide-Bus-Ticket-Management-System-sub000/internal/config"
	"github.com/TechySakib/EasyRide-Bus-Ticket-Management-System-sub000/internal/service"
)

func NewRouter(svc *service.RechargeService, cfg *config.Config, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware(log))
	r.Use(RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	RegisterHandlers(r, svc, cfg.Auth.JWTSecret, log)
	return r
}
