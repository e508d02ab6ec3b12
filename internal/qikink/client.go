// Package qikink talks to the Qikink print-on-demand API: order creation and
// order/tracking queries, authenticated with a cached bearer token.
package qikink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrUnreachable covers timeouts and transport failures: the provider may
	// or may not have seen the request, so callers must roll back local state
	// and must not retry automatically.
	ErrUnreachable = errors.New("qikink unreachable")

	ErrOrderNotFound = errors.New("qikink order not found")
)

// APIError is a definitive rejection from the provider (non-2xx, or a 2xx
// response missing the order id).
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("qikink rejected request: status=%d message=%s", e.StatusCode, e.Message)
}

// TokenSource supplies a live access token, refreshing it when expired.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Client struct {
	BaseURL  string
	ClientID string
	Tokens   TokenSource
	HTTP     *http.Client
}

func NewClient(baseURL, clientID string, tokens TokenSource, timeout time.Duration) *Client {
	return &Client{
		BaseURL:  baseURL,
		ClientID: clientID,
		Tokens:   tokens,
		HTTP:     &http.Client{Timeout: timeout},
	}
}

type LineItem struct {
	SearchFromMyProducts int    `json:"search_from_my_products"`
	Quantity             string `json:"quantity"`
	Price                string `json:"price"`
	SKU                  string `json:"sku"`
}

type AddOns struct {
	BoxPacking   int `json:"box_packing"`
	GiftWrap     int `json:"gift_wrap"`
	RushOrder    int `json:"rush_order"`
	CustomLetter int `json:"custom_letter"`
}

type ShippingAddress struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Address1    string `json:"address1"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	City        string `json:"city"`
	Zip         string `json:"zip"`
	Province    string `json:"province"`
	CountryCode string `json:"country_code"`
}

type OrderPayload struct {
	OrderNumber     string          `json:"order_number"`
	QikinkShipping  string          `json:"qikink_shipping"` // "1": qikink handles shipping
	Gateway         string          `json:"gateway"`         // COD | PREPAID
	TotalOrderValue string          `json:"total_order_value"`
	LineItems       []LineItem      `json:"line_items"`
	AddOns          []AddOns        `json:"add_ons"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
}

type OrderResult struct {
	OrderID   string
	AWBNumber string
}

func (c *Client) CreateOrder(ctx context.Context, p OrderPayload) (OrderResult, error) {
	token, err := c.Tokens.Token(ctx)
	if err != nil {
		return OrderResult{}, fmt.Errorf("qikink token: %w", err)
	}

	body, err := json.Marshal(p)
	if err != nil {
		return OrderResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/order/create", bytes.NewReader(body))
	if err != nil {
		return OrderResult{}, err
	}
	req.Header.Set("ClientId", c.ClientID)
	req.Header.Set("Accesstoken", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return OrderResult{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return OrderResult{}, &APIError{StatusCode: resp.StatusCode, Message: apiMessage(raw)}
	}

	var out struct {
		OrderID   json.Number `json:"order_id"`
		AWBNumber string      `json:"awb_number"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return OrderResult{}, &APIError{StatusCode: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}
	if out.OrderID.String() == "" {
		// no order id means we cannot reconcile later; treat as a rejection
		return OrderResult{}, &APIError{StatusCode: resp.StatusCode, Message: "order_id missing in response"}
	}
	return OrderResult{OrderID: out.OrderID.String(), AWBNumber: out.AWBNumber}, nil
}

// OrderStatus is the tracking view of a fulfillment order. TrackingLink and
// AWB stay empty until the provider ships the order; that is not an error.
type OrderStatus struct {
	Status       string
	AWB          string
	TrackingLink string // tracking site URL with the AWB appended
}

func (c *Client) GetOrder(ctx context.Context, qikinkOrderID string) (OrderStatus, error) {
	token, err := c.Tokens.Token(ctx)
	if err != nil {
		return OrderStatus{}, fmt.Errorf("qikink token: %w", err)
	}

	u := c.BaseURL + "/api/order?id=" + url.QueryEscape(qikinkOrderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return OrderStatus{}, err
	}
	req.Header.Set("ClientId", c.ClientID)
	req.Header.Set("Accesstoken", token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return OrderStatus{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return OrderStatus{}, &APIError{StatusCode: resp.StatusCode, Message: apiMessage(raw)}
	}

	// The provider answers with an array; take the first element and treat a
	// missing shipping block as "not shipped yet", not as a failure.
	var list []struct {
		Status   string `json:"status"`
		Shipping *struct {
			AWB          string `json:"awb"`
			TrackingLink string `json:"tracking_link"`
		} `json:"shipping"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return OrderStatus{}, &APIError{StatusCode: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}
	if len(list) == 0 {
		return OrderStatus{}, ErrOrderNotFound
	}

	st := OrderStatus{Status: list[0].Status}
	if s := list[0].Shipping; s != nil && s.TrackingLink != "" && s.AWB != "" {
		st.AWB = s.AWB
		st.TrackingLink = s.TrackingLink + s.AWB
	} else if s != nil {
		st.AWB = s.AWB
	}
	return st, nil
}

func apiMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return string(raw)
}
