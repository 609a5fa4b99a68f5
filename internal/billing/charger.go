package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Charger collects a payment. Implementations must respect the
// context deadline; a timeout is a failed charge, never a presumed
// success.
type Charger interface {
	Charge(ctx context.Context, userID int, amountCents int64, reference string) error
}

// HTTPCharger forwards charges to the payment gateway.
type HTTPCharger struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewHTTPCharger(baseURL, apiKey string, timeout time.Duration) *HTTPCharger {
	return &HTTPCharger{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type chargeRequest struct {
	UserID      int    `json:"user_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
}

func (c *HTTPCharger) Charge(ctx context.Context, userID int, amountCents int64, reference string) error {
	body, err := json.Marshal(chargeRequest{
		UserID:      userID,
		AmountCents: amountCents,
		Currency:    "IDR",
		Reference:   reference,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("charge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("charge declined: gateway returned %d", resp.StatusCode)
	}
	return nil
}
