// Package backend is the HTTP client for the bank-integration API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/khanhbq56/money-tracking/internal/apperr"
	"github.com/khanhbq56/money-tracking/internal/logging"
	"github.com/khanhbq56/money-tracking/internal/model"
)

const maxResponseBytes = 8 << 20

// Client talks to the bank-integration endpoints under a base URL.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  oauth2.TokenSource
	timeout time.Duration
	log     logrus.FieldLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokenSource attaches a credential to every request.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithRequestTimeout bounds calls whose context carries no deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the request logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = logging.OrDiscard(l) }
}

// New creates a Client for baseURL, e.g. http://localhost:8000/api/bank-integration.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		log:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StaticToken returns a bearer token source, or nil for an empty token.
func StaticToken(token string) oauth2.TokenSource {
	if token == "" {
		return nil
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

// Status returns the enabled flag and last sync time of every bank.
func (c *Client) Status(ctx context.Context) (map[string]model.BankStatus, error) {
	const op = "get status"
	var raw json.RawMessage
	if err := c.do(ctx, op, http.MethodGet, "/status", nil, nil, &raw); err != nil {
		return nil, err
	}
	statuses, err := decodeStatus(raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindServer, op, err)
	}
	return statuses, nil
}

func decodeStatus(body []byte) (map[string]model.BankStatus, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding status: %w", err)
	}
	if data, ok := raw["data"]; ok {
		raw = nil
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decoding status data: %w", err)
		}
	}
	out := make(map[string]model.BankStatus, len(raw))
	for code, v := range raw {
		switch code {
		case "success", "error", "message":
			continue
		}
		var s bankStatusDTO
		if err := json.Unmarshal(v, &s); err != nil {
			return nil, fmt.Errorf("decoding status of %s: %w", code, err)
		}
		out[code] = model.BankStatus{Enabled: s.Enabled, LastSync: s.LastSync.ptr()}
	}
	return out, nil
}

// Configs returns the server's bank configurations in server order.
func (c *Client) Configs(ctx context.Context) ([]model.BankConfig, error) {
	var resp configsResponse
	if err := c.do(ctx, "get configs", http.MethodGet, "/configs", nil, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]model.BankConfig, 0, len(resp.ConfiguredBanks))
	for _, d := range resp.ConfiguredBanks {
		out = append(out, d.model())
	}
	return out, nil
}

// Enable turns on email sync for a bank.
func (c *Client) Enable(ctx context.Context, bankCode string) (model.ToggleAck, error) {
	var resp toggleResponse
	body := map[string]any{"bank_code": bankCode}
	if err := c.do(ctx, "enable bank", http.MethodPost, "/enable", nil, body, &resp); err != nil {
		return model.ToggleAck{}, err
	}
	return model.ToggleAck{LastSyncAt: resp.LastSyncAt.ptr()}, nil
}

// Disable turns off email sync for a bank. deleteCustom also removes a
// custom bank's configuration.
func (c *Client) Disable(ctx context.Context, bankCode string, deleteCustom bool) (model.ToggleAck, error) {
	var resp toggleResponse
	body := map[string]any{"bank_code": bankCode}
	if deleteCustom {
		body["delete_custom"] = true
	}
	if err := c.do(ctx, "disable bank", http.MethodPost, "/disable", nil, body, &resp); err != nil {
		return model.ToggleAck{}, err
	}
	return model.ToggleAck{LastSyncAt: resp.LastSyncAt.ptr()}, nil
}

// GmailStatus reports whether the user has granted mailbox read permission.
func (c *Client) GmailStatus(ctx context.Context) (bool, error) {
	var resp gmailStatusResponse
	if err := c.do(ctx, "get gmail status", http.MethodGet, "/gmail-status", nil, nil, &resp); err != nil {
		return false, err
	}
	return resp.HasPermission, nil
}

// Sync runs a direct sync that creates transactions server-side.
func (c *Client) Sync(ctx context.Context, req model.SyncRequest) (*model.SyncResult, error) {
	const op = "sync"
	var resp syncResponse
	if err := c.do(ctx, op, http.MethodPost, "/sync", nil, req.Params(), &resp); err != nil {
		return nil, err
	}
	summaries, err := decodeSummaries(resp.Data)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindServer, op, err)
	}
	return &model.SyncResult{Summaries: summaries}, nil
}

func decodeSummaries(data json.RawMessage) ([]model.SyncSummary, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	var dtos []syncSummaryDTO
	if data[0] == '{' {
		var one syncSummaryDTO
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("decoding sync summary: %w", err)
		}
		dtos = append(dtos, one)
	} else if err := json.Unmarshal(data, &dtos); err != nil {
		return nil, fmt.Errorf("decoding sync summaries: %w", err)
	}
	out := make([]model.SyncSummary, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.model())
	}
	return out, nil
}

// SyncPreview parses matching emails without creating anything.
func (c *Client) SyncPreview(ctx context.Context, req model.SyncRequest) (*model.PreviewResult, error) {
	const op = "sync preview"
	var resp previewResponse
	if err := c.do(ctx, op, http.MethodPost, "/sync-preview", nil, req.Params(), &resp); err != nil {
		return nil, err
	}
	result := &model.PreviewResult{BankCode: req.BankCode}
	for i, raw := range resp.Transactions {
		cand, err := decodeCandidate(raw)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindServer, op, fmt.Errorf("decoding transaction %d: %w", i, err))
		}
		result.Candidates = append(result.Candidates, cand)
	}
	if r := resp.ExchangeRateInfo; r != nil {
		result.ExchangeRate = &model.ExchangeRateInfo{
			Rate:      r.Rate,
			From:      r.FromCurrency,
			To:        r.ToCurrency,
			UpdatedAt: r.UpdatedAt.ptr(),
		}
	}
	return result, nil
}

// ImportSelected creates transactions from the given candidates. Error
// indices refer to positions in txns.
func (c *Client) ImportSelected(ctx context.Context, txns []model.CandidateTransaction) (*model.ImportResult, error) {
	const op = "import selected"
	req := importRequest{SelectedTransactions: make([]json.RawMessage, 0, len(txns))}
	for i, t := range txns {
		raw, err := encodeCandidate(t)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, op, fmt.Errorf("encoding transaction %d: %w", i, err))
		}
		req.SelectedTransactions = append(req.SelectedTransactions, raw)
	}
	var resp importResponse
	if err := c.do(ctx, op, http.MethodPost, "/import-selected", nil, req, &resp); err != nil {
		return nil, err
	}
	result := &model.ImportResult{ImportedCount: resp.ImportedCount}
	for _, e := range resp.Errors {
		result.Errors = append(result.Errors, model.ImportError{CandidateIndex: e.Index, Reason: e.Reason})
	}
	return result, nil
}

// CreateCustom registers a custom bank and returns its server-assigned code.
func (c *Client) CreateCustom(ctx context.Context, in model.CustomBankInput) (string, error) {
	var resp createCustomResponse
	body := createCustomRequest{
		BankName:      in.Name,
		SenderPattern: in.SenderPattern,
		AccountSuffix: in.AccountSuffix,
	}
	if err := c.do(ctx, "create custom bank", http.MethodPost, "/custom/create", nil, body, &resp); err != nil {
		return "", err
	}
	return resp.BankCode, nil
}

// SyncHistory returns transactions previously created by sync for a bank.
func (c *Client) SyncHistory(ctx context.Context, bankCode string) ([]model.HistoryItem, error) {
	var resp historyResponse
	q := url.Values{"bank_code": {bankCode}}
	if err := c.do(ctx, "get sync history", http.MethodGet, "/sync-history", q, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]model.HistoryItem, 0, len(resp.Transactions))
	for _, d := range resp.Transactions {
		out = append(out, model.HistoryItem{
			EmailSubject: d.EmailSubject,
			EmailDate:    d.EmailDate.value(),
			Type:         model.TransactionType(d.TransactionType),
			Amount:       d.Amount,
			Description:  d.Description,
			Status:       d.Status,
			CreatedAt:    d.CreatedAt.ptr(),
		})
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperr.Wrap(apperr.KindValidation, op, fmt.Errorf("encoding request: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return apperr.Wrap(apperr.KindUnknown, op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return apperr.Wrap(apperr.KindUnknown, op, fmt.Errorf("obtaining credential: %w", err))
		}
		tok.SetAuthHeader(req)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithFields(logrus.Fields{"op": op, "path": path}).WithError(err).Debug("request failed")
		return transportError(ctx, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportError(ctx, op, err)
	}
	c.log.WithFields(logrus.Fields{
		"op":       op,
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("backend request")

	var env envelope
	envErr := json.Unmarshal(data, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := ""
		if envErr == nil {
			msg = env.text()
		}
		if msg == "" {
			msg = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		return apperr.Server(op, msg)
	}
	if envErr == nil && env.Success != nil && !*env.Success {
		msg := env.text()
		if msg == "" {
			msg = "request failed"
		}
		return apperr.Server(op, msg)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Wrap(apperr.KindServer, op, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// transportError classifies a failure to complete the exchange.
func transportError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperr.Wrap(apperr.KindTimeout, op, err)
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		return apperr.Wrap(apperr.KindCanceled, op, err)
	default:
		return apperr.Wrap(apperr.KindNetwork, op, err)
	}
}
