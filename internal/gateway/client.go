// Package gateway talks to the PIX payment provider used to fund user
// balances. Failures are surfaced to the caller as a transient error,
// never retried, and never partially credit a balance.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds every gateway call.
const DefaultTimeout = 30 * time.Second

// Error represents a failed gateway interaction: network failure, non-2xx
// status or a malformed response body.
type Error struct {
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment gateway: %v", e.Err)
	}
	return fmt.Sprintf("payment gateway: status %d: %s", e.Status, e.Body)
}

func (e *Error) Unwrap() error { return e.Err }

// Client is the payment provider API client. Authentication is HTTP Basic
// with the secret key as user and a fixed "x" password.
type Client struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
}

// NewClient creates a gateway client for the given API base URL.
func NewClient(baseURL, secretKey string) *Client {
	auth := base64.StdEncoding.EncodeToString([]byte(secretKey + ":x"))
	return &Client{
		baseURL:    baseURL,
		authHeader: "Basic " + auth,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// Customer identifies the paying user on the charge.
type Customer struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Phone    string   `json:"phone"`
	Document Document `json:"document"`
}

// Document is the customer's tax document.
type Document struct {
	Number string `json:"number"`
	Type   string `json:"type"`
}

type chargeItem struct {
	Title     string `json:"title"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Tangible  bool   `json:"tangible"`
}

type pixOptions struct {
	ExpiresInDays int `json:"expiresInDays"`
}

type webhookOptions struct {
	URL string `json:"url"`
}

type chargeRequest struct {
	Amount        int64           `json:"amount"`
	PaymentMethod string          `json:"paymentMethod"`
	Customer      Customer        `json:"customer"`
	Items         []chargeItem    `json:"items"`
	Pix           pixOptions      `json:"pix"`
	Webhook       *webhookOptions `json:"webhook,omitempty"`
}

// Charge is the provider's view of a created PIX transaction.
type Charge struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Pix    struct {
		QRCode         string `json:"qrcode"`
		URL            string `json:"url"`
		ExpirationDate string `json:"expirationDate"`
	} `json:"pix"`
}

// CreateCharge creates a PIX charge for amountCents. The returned charge
// carries the copy-and-paste QR payload the user pays with.
func (c *Client) CreateCharge(ctx context.Context, amountCents int64, description string, customer Customer, webhookURL string) (*Charge, error) {
	req := chargeRequest{
		Amount:        amountCents,
		PaymentMethod: "pix",
		Customer:      customer,
		Items: []chargeItem{{
			Title:     description,
			UnitPrice: amountCents,
			Quantity:  1,
			Tangible:  false,
		}},
		Pix: pixOptions{ExpiresInDays: 1},
	}
	if webhookURL != "" {
		req.Webhook = &webhookOptions{URL: webhookURL}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("encoding charge: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", c.authHeader)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Err: err}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &Error{Status: resp.StatusCode, Body: string(respBody)}
	}

	var charge Charge
	if err := json.Unmarshal(respBody, &charge); err != nil {
		return nil, &Error{Err: fmt.Errorf("decoding charge response: %w", err)}
	}
	if charge.Pix.QRCode == "" {
		return nil, &Error{Err: fmt.Errorf("charge response missing pix data")}
	}
	return &charge, nil
}

// GetChargeStatus queries the provider for a charge's current status.
func (c *Client) GetChargeStatus(ctx context.Context, chargeID string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/charges/"+chargeID, nil)
	if err != nil {
		return "", &Error{Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", c.authHeader)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &Error{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &Error{Status: resp.StatusCode, Body: string(respBody)}
	}

	var out struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", &Error{Err: fmt.Errorf("decoding status response: %w", err)}
	}
	return out.Status, nil
}
