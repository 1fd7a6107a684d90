package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brojonat/tipjar/service/nats"
	"github.com/brojonat/tipjar/service/solana"
	"github.com/brojonat/tipjar/service/view"
)

// Submission is the server's answer to a confirmed tip or withdrawal.
type Submission struct {
	Receipt *solana.Receipt `json:"receipt"`
	View    view.View       `json:"view"`
}

// PayCard is a Solana Pay request for the tip jar.
type PayCard struct {
	Address    string `json:"address"`
	Amount     uint64 `json:"amount"`
	AmountSOL  string `json:"amount_sol"`
	Label      string `json:"label,omitempty"`
	Message    string `json:"message,omitempty"`
	PaymentURL string `json:"payment_url"`
	QRCodeData string `json:"qr_code_data,omitempty"`
}

// Health is the /health response.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// Client is the HTTP client for the tip jar server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new tip jar client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		// Submissions block until confirmation.
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Status returns the server's current view of the tip jar. With refresh the
// server re-reads the chain first.
func (c *Client) Status(ctx context.Context, refresh bool) (*view.View, error) {
	path := "/api/v1/tipjar"
	if refresh {
		path += "?refresh=true"
	}
	var v view.View
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Connect connects the server's wallet.
func (c *Client) Connect(ctx context.Context) (*view.View, error) {
	var v view.View
	if err := c.do(ctx, http.MethodPost, "/api/v1/wallet/connect", nil, http.StatusOK, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Disconnect disconnects the server's wallet.
func (c *Client) Disconnect(ctx context.Context) (*view.View, error) {
	var v view.View
	if err := c.do(ctx, http.MethodPost, "/api/v1/wallet/disconnect", nil, http.StatusOK, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// SendTip tips amount (a SOL decimal such as "0.1") from the server's wallet.
func (c *Client) SendTip(ctx context.Context, amount string) (*Submission, error) {
	var sub Submission
	body := map[string]interface{}{"amount": amount}
	if err := c.do(ctx, http.MethodPost, "/api/v1/tips", body, http.StatusCreated, &sub); err != nil {
		return nil, err
	}
	c.logger.Debug("tip confirmed", "amount", amount, "signature", sub.Receipt.Signature.String())
	return &sub, nil
}

// Withdraw withdraws amount SOL to the owner.
func (c *Client) Withdraw(ctx context.Context, amount string) (*Submission, error) {
	return c.withdraw(ctx, map[string]interface{}{"amount": amount})
}

// WithdrawAll withdraws everything above the rent floor.
func (c *Client) WithdrawAll(ctx context.Context) (*Submission, error) {
	return c.withdraw(ctx, map[string]interface{}{"all": true})
}

func (c *Client) withdraw(ctx context.Context, body map[string]interface{}) (*Submission, error) {
	var sub Submission
	if err := c.do(ctx, http.MethodPost, "/api/v1/withdrawals", body, http.StatusCreated, &sub); err != nil {
		return nil, err
	}
	c.logger.Debug("withdrawal confirmed", "amount", sub.Receipt.Amount, "signature", sub.Receipt.Signature.String())
	return &sub, nil
}

// PayURI fetches the payment request. Empty arguments keep the server's
// defaults.
func (c *Client) PayURI(ctx context.Context, amount, label string, withQR bool) (*PayCard, error) {
	q := url.Values{}
	if amount != "" {
		q.Set("amount", amount)
	}
	if label != "" {
		q.Set("label", label)
	}
	if withQR {
		q.Set("qr", "true")
	}
	path := "/api/v1/pay-uri"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var card PayCard
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// Health checks the server.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, http.StatusOK, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// StreamEvents follows the server's event stream, calling fn for each tip
// jar event until ctx is cancelled, the stream ends or fn returns an error.
func (c *Client) StreamEvents(ctx context.Context, replay bool, fn func(*nats.Event) error) error {
	u := c.baseURL + "/api/v1/stream/events"
	if replay {
		u += "?replay=true"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream is bounded by ctx, not by the client timeout.
	streamClient := *c.httpClient
	streamClient.Timeout = 0
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	var eventName string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if eventName == "tipjar" && data.Len() > 0 {
				var event nats.Event
				if err := json.Unmarshal([]byte(data.String()), &event); err != nil {
					c.logger.Warn("skipping malformed event", "error", err)
				} else if err := fn(&event); err != nil {
					return err
				}
			}
			eventName = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// comment / keepalive
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("error reading event stream: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, want int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return c.parseErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
}
