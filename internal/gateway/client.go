package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const tokenExpirySlack = 60 * time.Second

// HTTPClient talks to the payment network's REST API using OAuth
// client-credentials tokens. Tokens are cached until shortly before expiry.
type HTTPClient struct {
	baseURL    string
	clientID   string
	secret     string
	httpClient *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewHTTPClient builds a gateway client. The timeout bounds every call;
// exceeding it is reported as ErrIndeterminate, never as a failure.
func NewHTTPClient(baseURL, clientID, secret string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		clientID:   clientID,
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type apiError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

type payoutResponse struct {
	BatchHeader struct {
		PayoutBatchID string `json:"payout_batch_id"`
		BatchStatus   string `json:"batch_status"`
	} `json:"batch_header"`
}

type orderResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Amount struct {
			Value        string `json:"value"`
			CurrencyCode string `json:"currency_code"`
		} `json:"amount"`
	} `json:"purchase_units"`
}

// CreatePayout submits a single-item payout batch. The sender batch id in
// the request doubles as the network-side idempotency key.
func (c *HTTPClient) CreatePayout(ctx context.Context, req PayoutRequest) (PayoutResult, error) {
	body := map[string]any{
		"sender_batch_header": map[string]any{
			"sender_batch_id": req.SenderBatchID,
			"email_subject":   "You have a payout",
		},
		"items": []map[string]any{{
			"recipient_type": "EMAIL",
			"receiver":       req.ReceiverEmail,
			"note":           req.Note,
			"sender_item_id": req.SenderBatchID,
			"amount": map[string]string{
				"value":    req.Value,
				"currency": req.Currency,
			},
		}},
	}

	var resp payoutResponse
	if err := c.call(ctx, http.MethodPost, "/v1/payments/payouts", body, &resp); err != nil {
		return PayoutResult{}, err
	}
	return PayoutResult{BatchID: resp.BatchHeader.PayoutBatchID, Status: resp.BatchHeader.BatchStatus}, nil
}

// PayoutStatus queries a payout batch by its network identifier.
func (c *HTTPClient) PayoutStatus(ctx context.Context, batchID string) (PayoutResult, error) {
	var resp payoutResponse
	if err := c.call(ctx, http.MethodGet, "/v1/payments/payouts/"+url.PathEscape(batchID), nil, &resp); err != nil {
		return PayoutResult{}, err
	}
	return PayoutResult{BatchID: resp.BatchHeader.PayoutBatchID, Status: resp.BatchHeader.BatchStatus}, nil
}

// GetOrder fetches a checkout order for deposit verification.
func (c *HTTPClient) GetOrder(ctx context.Context, orderID string) (Order, error) {
	var resp orderResponse
	err := c.call(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(orderID), nil, &resp)
	if err != nil {
		var transferErr *TransferError
		if errors.As(err, &transferErr) && transferErr.Code == "RESOURCE_NOT_FOUND" {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}

	order := Order{ID: resp.ID, Status: resp.Status}
	if len(resp.PurchaseUnits) > 0 {
		order.Value = resp.PurchaseUnits[0].Amount.Value
		order.Currency = resp.PurchaseUnits[0].Amount.CurrencyCode
	}
	return order, nil
}

func (c *HTTPClient) call(ctx context.Context, method, path string, body, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransportError(err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.invalidateToken()
		return ErrAuth
	case resp.StatusCode >= 400:
		var apiErr apiError
		if err := json.Unmarshal(data, &apiErr); err != nil || apiErr.Name == "" {
			return &TransferError{Code: fmt.Sprintf("HTTP_%d", resp.StatusCode), Reason: strings.TrimSpace(string(data))}
		}
		return &TransferError{Code: apiErr.Name, Reason: apiErr.Message}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (c *HTTPClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned %d", ErrAuth, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", ErrAuth, err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrAuth)
	}

	c.mu.Lock()
	c.token = tr.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenExpirySlack)
	c.mu.Unlock()
	return tr.AccessToken, nil
}

func (c *HTTPClient) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// classifyTransportError maps timeouts to ErrIndeterminate. A timed-out call
// may still have succeeded on the network side, so it must not be reported
// as a declared failure.
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrIndeterminate, err)
	}
	return err
}
