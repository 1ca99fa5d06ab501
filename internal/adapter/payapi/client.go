// Package payapi is the orders side's HTTP client for the payments service's
// internal API.
package payapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/matthew-ngzc/campus-chow/internal/usecase"
)

type Client struct {
	http        *http.Client
	baseURL     string
	internalKey string
}

func NewClient(baseURL, internalKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		http:        &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		internalKey: internalKey,
	}
}

// CreatePayment asks the payments service to open a pending payment for a new
// order. A 409 means the payment already exists, which is success for our
// purposes: the caller may be retrying after a crash.
func (c *Client) CreatePayment(ctx context.Context, orderID, amountCents int64, deadline time.Time) error {
	body, err := json.Marshal(map[string]any{
		"order_id":         orderID,
		"amount_cents":     amountCents,
		"payment_deadline": deadline.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/payments", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Key", c.internalKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("payments service: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK, http.StatusConflict:
		return nil
	default:
		return fmt.Errorf("payments service returned %d", resp.StatusCode)
	}
}

var _ usecase.PaymentsClient = (*Client)(nil)
