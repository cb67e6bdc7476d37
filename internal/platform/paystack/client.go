package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bookora/payments/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Client is a minimal REST client for the gateway's customer and
// subscription APIs. Webhook ingestion never calls the gateway; only the
// authorization-capture flow does, to start a recurring subscription from a
// saved card.
type Client struct {
	baseURL string
	secret  string
	httpc   *http.Client
	log     *zap.SugaredLogger
}

func NewClient(cfg *config.Config, log *zap.SugaredLogger) *Client {
	return &Client{
		baseURL: cfg.Paystack.BaseURL,
		secret:  cfg.Paystack.SecretKey,
		httpc:   &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

// apiEnvelope is the gateway's uniform response wrapper.
type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type Customer struct {
	CustomerCode string `json:"customer_code"`
	Email        string `json:"email"`
}

// CreateCustomer registers (or fetches, the gateway dedupes on email) a
// customer record.
func (c *Client) CreateCustomer(ctx context.Context, email, firstName, lastName, phone string) (*Customer, error) {
	body := map[string]any{
		"email":      email,
		"first_name": firstName,
		"last_name":  lastName,
		"phone":      phone,
	}
	var out Customer
	if err := c.post(ctx, "/customer", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type Subscription struct {
	SubscriptionCode string `json:"subscription_code"`
	EmailToken       string `json:"email_token"`
	Status           string `json:"status"`
}

// CreateSubscription starts a recurring subscription from a saved
// authorization.
func (c *Client) CreateSubscription(ctx context.Context, customerCode, planCode, authorizationCode string) (*Subscription, error) {
	body := map[string]any{
		"customer":      customerCode,
		"plan":          planCode,
		"authorization": authorizationCode,
	}
	var out Subscription
	if err := c.post(ctx, "/subscription", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("unexpected response from %s (status %d): %w", path, resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 || !env.Status {
		return fmt.Errorf("gateway call %s failed (status %d): %s", path, resp.StatusCode, env.Message)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}
	return nil
}

var Module = fx.Options(
	fx.Provide(NewClient),
)
