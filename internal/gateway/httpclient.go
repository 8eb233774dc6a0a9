package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const alreadyCapturedCode = "ORDER_ALREADY_CAPTURED"

// HTTPClient talks to the payment provider REST API
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPClient creates a provider API client
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// GetCheckoutSession fetches a checkout session by id
func (c *HTTPClient) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	var out CheckoutSession
	if err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(id), "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPaymentIntent fetches a payment intent by id
func (c *HTTPClient) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	var out PaymentIntent
	if err := c.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(id), "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CaptureOrder captures a wallet order. The order id doubles as the
// provider idempotency key so repeated captures resolve to the same result.
func (c *HTTPClient) CaptureOrder(ctx context.Context, id string) (*WalletOrder, error) {
	var out WalletOrder
	err := c.do(ctx, http.MethodPost, "/v1/wallet/orders/"+url.PathEscape(id)+"/capture", "capture-"+id, &out)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) && pe.Code == alreadyCapturedCode {
			return nil, fmt.Errorf("%w: %w", ErrAlreadyCaptured, err)
		}
		return nil, err
	}
	return &out, nil
}

// GetOrder fetches a wallet order by id
func (c *HTTPClient) GetOrder(ctx context.Context, id string) (*WalletOrder, error) {
	var out WalletOrder
	if err := c.do(ctx, http.MethodGet, "/v1/wallet/orders/"+url.PathEscape(id), "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type apiErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *HTTPClient) do(ctx context.Context, method, path, idempotencyKey string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		pe := &ProviderError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var apiErr apiErrorBody
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Code != "" {
			pe.Code = apiErr.Error.Code
			pe.Message = apiErr.Error.Message
		}
		return pe
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode provider response: %w", err)
	}
	return nil
}
