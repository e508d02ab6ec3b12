package razorpay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "key_1", user)
		assert.Equal(t, "secret_1", pass)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(49900), body["amount"])
		assert.Equal(t, "INR", body["currency"])

		w.Write([]byte(`{"id":"order_abc","amount":49900,"currency":"INR","receipt":"receipt_order_1","status":"created"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key_1", "secret_1", 2*time.Second)
	o, err := c.CreateOrder(context.Background(), 49900, "receipt_order_1")
	require.NoError(t, err)
	assert.Equal(t, "order_abc", o.ID)
	assert.Equal(t, 49900, o.AmountPaise)
}

func TestFetchPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/pay_1", r.URL.Path)
		w.Write([]byte(`{"id":"pay_1","status":"captured","amount":49900,"order_id":"order_abc","method":"upi"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key_1", "secret_1", 2*time.Second)
	p, err := c.FetchPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, StatusCaptured, p.Status)
	assert.Equal(t, 49900, p.AmountPaise)
}

func TestFetchPayment_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"payment id is invalid"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key_1", "secret_1", 2*time.Second)
	_, err := c.FetchPayment(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payment id is invalid")
}
