package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/matthew-ngzc/campus-chow/internal/usecase"
)

type PaymentsHandler struct {
	core *usecase.Payments
	loc  *time.Location
}

func NewPaymentsHandler(core *usecase.Payments, loc *time.Location) *PaymentsHandler {
	return &PaymentsHandler{core: core, loc: loc}
}

type createPaymentReq struct {
	OrderID         int64     `json:"order_id" binding:"required"`
	AmountCents     int64     `json:"amount_cents" binding:"required,gt=0"`
	PaymentDeadline time.Time `json:"payment_deadline" binding:"required"`
}

// CreatePayment is called by the orders service right after an order commits.
func (h *PaymentsHandler) CreatePayment(c *gin.Context) {
	var req createPaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	p, err := h.core.CreatePayment(ctx, req.OrderID, req.AmountCents, req.PaymentDeadline.In(h.loc))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *PaymentsHandler) GetPayment(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("orderId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_order_id"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	p, err := h.core.GetPayment(ctx, orderID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type uploadScreenshotReq struct {
	ImgURL  string `json:"img_url" binding:"required,url"`
	Bank    string `json:"bank" binding:"required"`
	OCRText string `json:"ocr_text"`
}

func (h *PaymentsHandler) UploadScreenshot(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("orderId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_order_id"})
		return
	}
	var req uploadScreenshotReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	p, err := h.core.UploadScreenshot(ctx, usecase.ScreenshotPayload{
		OrderID: orderID,
		ImgURL:  req.ImgURL,
		Bank:    req.Bank,
		OCRText: req.OCRText,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type addTransactionReq struct {
	TransactionRef string `json:"transaction_ref" binding:"required,max=100"`
	AmountCents    int64  `json:"amount_cents" binding:"required,gt=0"`
	DateTime       string `json:"transaction_datetime" binding:"required"`
	Sender         string `json:"sender" binding:"required"`
	Receiver       string `json:"receiver" binding:"required"`
}

// AddTransaction ingests one bank statement line, normally pushed by the
// statement automation.
func (h *PaymentsHandler) AddTransaction(c *gin.Context) {
	var req addTransactionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	t, err := h.core.AddTransaction(ctx, usecase.TransactionPayload{
		TransactionRef: req.TransactionRef,
		AmountCents:    req.AmountCents,
		DateTime:       req.DateTime,
		Sender:         req.Sender,
		Receiver:       req.Receiver,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}
