package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matthew-ngzc/campus-chow/internal/adapter/http/middleware"
	"github.com/matthew-ngzc/campus-chow/internal/logging"
)

func baseRouter(l *slog.Logger, healthCheck gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Metrics(), middleware.Logging(l))

	r.GET("/healthz", healthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func NewOrdersRouter(h *OrdersHandler, internalKey string, healthCheck gin.HandlerFunc) *gin.Engine {
	r := baseRouter(logging.New("http"), healthCheck)

	v1 := r.Group("/v1")
	{
		v1.POST("/orders", h.CreateOrder)
		v1.GET("/orders/:id", h.GetOrder)
		v1.GET("/orders", h.ListOrders)
	}

	internal := r.Group("/internal", middleware.InternalKey(internalKey))
	{
		internal.PATCH("/orders/:id/status", h.UpdateStatus)
		internal.POST("/sweeps/reminder", h.RunReminderSweep)
		internal.POST("/sweeps/auto-cancel", h.RunAutoCancelSweep)
	}

	return r
}

func NewPaymentsRouter(h *PaymentsHandler, internalKey string, healthCheck gin.HandlerFunc) *gin.Engine {
	r := baseRouter(logging.New("http"), healthCheck)

	v1 := r.Group("/v1")
	{
		v1.GET("/payments/:orderId", h.GetPayment)
		v1.POST("/payments/:orderId/screenshot", h.UploadScreenshot)
	}

	internal := r.Group("/internal", middleware.InternalKey(internalKey))
	{
		internal.POST("/payments", h.CreatePayment)
		internal.POST("/transactions", h.AddTransaction)
	}

	return r
}
