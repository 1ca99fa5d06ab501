package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/matthew-ngzc/campus-chow/internal/entity"
	"github.com/matthew-ngzc/campus-chow/internal/logging"
	"github.com/matthew-ngzc/campus-chow/internal/scheduler"
	"github.com/matthew-ngzc/campus-chow/internal/usecase"
)

type OrdersHandler struct {
	core *usecase.Orders
	loc  *time.Location
}

func NewOrdersHandler(core *usecase.Orders, loc *time.Location) *OrdersHandler {
	return &OrdersHandler{core: core, loc: loc}
}

type createOrderReq struct {
	CustomerID    int64                    `json:"customer_id" binding:"required"`
	CustomerEmail string                   `json:"customer_email" binding:"required,email"`
	MerchantID    int64                    `json:"merchant_id" binding:"required"`
	DeliveryTime  time.Time                `json:"delivery_time" binding:"required"`
	Building      string                   `json:"building" binding:"required"`
	RoomType      string                   `json:"room_type" binding:"required"`
	RoomNumber    string                   `json:"room_number" binding:"required"`
	Items         []usecase.OrderItemInput `json:"order_items" binding:"required,min=1"`
}

func (h *OrdersHandler) CreateOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	order, err := h.core.CreateOrder(ctx, usecase.CreateOrderInput{
		CustomerID:    req.CustomerID,
		CustomerEmail: req.CustomerEmail,
		MerchantID:    req.MerchantID,
		DeliveryTime:  req.DeliveryTime.In(h.loc),
		Building:      req.Building,
		RoomType:      req.RoomType,
		RoomNumber:    req.RoomNumber,
		Items:         req.Items,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *OrdersHandler) GetOrder(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_order_id"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	order, err := h.core.GetOrder(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrdersHandler) ListOrders(c *gin.Context) {
	customerID, err := strconv.ParseInt(c.Query("customer_id"), 10, 64)
	if err != nil || customerID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_customer_id"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	filter := usecase.OrderFilter(c.Query("type"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	orders, err := h.core.ListOrders(ctx, customerID, filter, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	total, err := h.core.CountOrders(ctx, customerID, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "total": total})
}

type statusUpdateReq struct {
	NewStatus string `json:"new_status" binding:"required"`
	Source    string `json:"source" binding:"required"`
}

// UpdateStatus is the internal escape hatch around the bus, used by ops and
// by integration tests. The same source restriction table applies.
func (h *OrdersHandler) UpdateStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_order_id"})
		return
	}
	var req statusUpdateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	order, err := h.core.UpdateOrderStatusFrom(ctx, req.Source, id, entity.OrderStatus(req.NewStatus), time.Now().In(h.loc))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type sweepReq struct {
	Slot string `json:"slot" binding:"required"` // "HH:MM"
	Date string `json:"date" binding:"required"` // "2006-01-02"
}

func (h *OrdersHandler) slotAt(c *gin.Context) (time.Time, bool) {
	var req sweepReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return time.Time{}, false
	}
	slot, ok := entity.DeliverySlots[req.Slot]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_slot"})
		return time.Time{}, false
	}
	date, err := time.ParseInLocation("2006-01-02", req.Date, h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_date"})
		return time.Time{}, false
	}
	return scheduler.SlotTime(slot, date, h.loc), true
}

// RunReminderSweep triggers the reminder sweep for a slot+date without
// waiting for the scheduler.
func (h *OrdersHandler) RunReminderSweep(c *gin.Context) {
	slotAt, ok := h.slotAt(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	n, err := h.core.RunPaymentReminder(ctx, slotAt)
	if err != nil {
		writeError(c, err)
		return
	}
	logging.From(c).Info("manual reminder sweep", "slot_at", slotAt, "orders", n)
	c.JSON(http.StatusOK, gin.H{"orders": n})
}

func (h *OrdersHandler) RunAutoCancelSweep(c *gin.Context) {
	slotAt, ok := h.slotAt(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	n, err := h.core.RunAutoCancel(ctx, slotAt)
	if err != nil {
		writeError(c, err)
		return
	}
	logging.From(c).Info("manual auto-cancel sweep", "slot_at", slotAt, "orders", n)
	c.JSON(http.StatusOK, gin.H{"cancelled": n})
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, usecase.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, usecase.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, usecase.ErrValidation), errors.Is(err, usecase.ErrInvalidStatus):
		status = http.StatusBadRequest
	case errors.Is(err, usecase.ErrUnauthorizedSource), errors.Is(err, usecase.ErrForbiddenTransition):
		status = http.StatusForbidden
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
