// Package razorpay covers the two gateway calls the storefront needs:
// creating a gateway order before checkout and verifying a payment's capture
// status before an order is placed.
package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const StatusCaptured = "captured"

type Client struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	HTTP      *http.Client
}

func NewClient(baseURL, keyID, keySecret string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:   baseURL,
		KeyID:     keyID,
		KeySecret: keySecret,
		HTTP:      &http.Client{Timeout: timeout},
	}
}

type GatewayOrder struct {
	ID          string `json:"id"`
	AmountPaise int    `json:"amount"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
	Status      string `json:"status"`
}

// CreateOrder opens a payment intent with the gateway. Amount is in paise.
func (c *Client) CreateOrder(ctx context.Context, amountPaise int, receipt string) (GatewayOrder, error) {
	body, err := json.Marshal(map[string]any{
		"amount":   amountPaise,
		"currency": "INR",
		"receipt":  receipt,
	})
	if err != nil {
		return GatewayOrder{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return GatewayOrder{}, err
	}
	req.SetBasicAuth(c.KeyID, c.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	var out GatewayOrder
	if err := c.do(req, &out); err != nil {
		return GatewayOrder{}, err
	}
	return out, nil
}

type Payment struct {
	ID          string `json:"id"`
	Status      string `json:"status"` // created | authorized | captured | refunded | failed
	AmountPaise int    `json:"amount"`
	OrderID     string `json:"order_id"`
	Method      string `json:"method"`
}

// FetchPayment looks a payment up by id; callers gate order placement on
// Status == StatusCaptured.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (Payment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return Payment{}, err
	}
	req.SetBasicAuth(c.KeyID, c.KeySecret)

	var out Payment
	if err := c.do(req, &out); err != nil {
		return Payment{}, err
	}
	return out, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("razorpay: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Error struct {
				Description string `json:"description"`
			} `json:"error"`
		}
		msg := string(raw)
		if err := json.Unmarshal(raw, &body); err == nil && body.Error.Description != "" {
			msg = body.Error.Description
		}
		return fmt.Errorf("razorpay: status %d: %s", resp.StatusCode, msg)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("razorpay: malformed response: %w", err)
	}
	return nil
}
