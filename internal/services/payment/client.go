package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"legal-consult/internal/status"
	"legal-consult/utils"
)

type ClientConfig struct {
	BaseURL   string `json:"baseUrl" mapstructure:"base_url"`
	KeyID     string `json:"keyId" mapstructure:"key_id"`
	KeySecret string `json:"keySecret" mapstructure:"key_secret"`
}

type Client struct {
	// baseURL is the base url of the payment processor backend.
	baseURL string

	// keyID identifies the merchant account.
	keyID string

	// keySecret signs every outgoing request body.
	keySecret string

	// hc is the http client.
	hc *http.Client
}

// newClient creates a new processor client.
func newClient(_ context.Context, c *ClientConfig) *Client {
	return &Client{
		baseURL:   c.BaseURL,
		keyID:     c.KeyID,
		keySecret: c.KeySecret,

		// set http client with timeout.
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// createOrder asks the processor for a new payment order. The order id it
// returns is the idempotency key for the whole confirmation flow, so any
// transport failure surfaces as ErrGatewayUnavailable and is NOT retried
// here; a silent retry could mint a second live order for the same draft.
func (c *Client) createOrder(ctx context.Context, amountMinor int64, currency string, notes map[string]string) (string, error) {
	number, err := utils.RandomRequestID()
	if err != nil {
		return "", fmt.Errorf("createOrder: requestID: %v", err)
	}

	payload := struct {
		RequestID string            `json:"requestId"`
		KeyID     string            `json:"keyId"`
		Amount    int64             `json:"amount"`
		Currency  string            `json:"currency"`
		Notes     map[string]string `json:"notes,omitempty"`
	}{
		RequestID: number,
		KeyID:     c.keyID,
		Amount:    amountMinor,
		Currency:  currency,
		Notes:     notes,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("createOrder: json.Marshal: %v", err)
	}

	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", _baseURL.String(), "/orders"), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("createOrder: http.NewReq: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("SignedHash", Hmac256(body, []byte(c.keySecret)))

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: createOrder: %v", status.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return "", fmt.Errorf("%w: createOrder: http status %d", status.ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("createOrder: http status %d", resp.StatusCode)
	}

	var reply struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			OrderID  string `json:"orderId"`
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
		} `json:"data"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return "", fmt.Errorf("createOrder: json.Decode: %v", err)
	}
	if reply.Status != "OK" {
		return "", fmt.Errorf("createOrder: reply.Status: %v, reply.Message: %v", reply.Status, reply.Message)
	}

	return reply.Data.OrderID, nil
}

// refund asks the processor to refund a captured payment.
func (c *Client) refund(ctx context.Context, paymentID string, amountMinor int64) (string, error) {
	number, err := utils.RandomRequestID()
	if err != nil {
		return "", fmt.Errorf("refund: requestID: %v", err)
	}

	payload := struct {
		RequestID string `json:"requestId"`
		KeyID     string `json:"keyId"`
		PaymentID string `json:"paymentId"`
		Amount    int64  `json:"amount,omitempty"`
	}{
		RequestID: number,
		KeyID:     c.keyID,
		PaymentID: paymentID,
		Amount:    amountMinor,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("refund: json.Marshal: %v", err)
	}

	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", _baseURL.String(), "/refunds"), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("refund: http.NewReq: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("SignedHash", Hmac256(body, []byte(c.keySecret)))

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: refund: %v", status.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	var reply struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			RefundID string `json:"refundId"`
		} `json:"data"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return "", fmt.Errorf("refund: json.Decode: %v", err)
	}
	if reply.Status != "OK" {
		return "", fmt.Errorf("refund: reply.Status: %v, reply.Message: %v", reply.Status, reply.Message)
	}

	return reply.Data.RefundID, nil
}
