// Package paystack реализует клиент платёжного шлюза Paystack.
package paystack

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

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

const DefaultBaseURL = "https://api.paystack.co"

// ErrRejected означает, что шлюз ответил, но отказал в операции.
var ErrRejected = errors.New("paystack: request rejected")

// Config описывает подключение к шлюзу.
type Config struct {
	BaseURL     string
	SecretKey   string
	CallbackURL string
	Timeout     time.Duration
	MaxRetries  int
}

// Client инкапсулирует HTTP-взаимодействие с Paystack.
type Client struct {
	baseURL     string
	secretKey   string
	callbackURL string
	http        *retryablehttp.Client
}

// InitializeRequest: параметры создания транзакции. Сумма передаётся в минимальных единицах.
type InitializeRequest struct {
	Email       string
	AmountMinor int64
	Reference   string
	Metadata    map[string]string
}

// InitializeResult: ссылка и адрес страницы оплаты.
type InitializeResult struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
}

// Transaction: состояние транзакции по данным шлюза.
type Transaction struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// NewClient создаёт клиент с ограниченным числом повторов и таймаутом на попытку.
func NewClient(cfg Config, log *logrus.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.MaxRetries
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil
	if log != nil {
		rc.Logger = leveledLogger{entry: log.WithField("component", "paystack")}
	}
	rc.CheckRetry = checkRetry
	// Ответ 4xx возвращаем вызывающему как есть, чтобы прочитать сообщение шлюза.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL:     baseURL,
		secretKey:   cfg.SecretKey,
		callbackURL: cfg.CallbackURL,
		http:        rc,
	}
}

// Initialize создаёт транзакцию и возвращает адрес страницы оплаты.
func (c *Client) Initialize(ctx context.Context, in InitializeRequest) (*InitializeResult, error) {
	body := map[string]interface{}{
		"email":     in.Email,
		"amount":    in.AmountMinor,
		"reference": in.Reference,
	}
	if len(in.Metadata) > 0 {
		body["metadata"] = in.Metadata
	}
	if c.callbackURL != "" {
		body["callback_url"] = c.callbackURL
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("paystack: encode initialize: %w", err)
	}

	var out envelope[InitializeResult]
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", payload, &out); err != nil {
		return nil, err
	}
	if out.Data.Reference == "" {
		out.Data.Reference = in.Reference
	}
	return &out.Data, nil
}

// Verify запрашивает авторитетный статус транзакции.
func (c *Client) Verify(ctx context.Context, reference string) (*Transaction, error) {
	var out envelope[Transaction]
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

type noRetryKey struct{}

// checkRetry повторяет только идемпотентные запросы. Повтор POST /transaction/initialize
// с той же ссылкой шлюз отклоняет как дубликат, хотя первая транзакция могла создаться.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Value(noRetryKey{}) != nil {
		return false, ctx.Err()
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, dst interface{ isOK() (bool, string) }) error {
	var body interface{}
	if payload != nil {
		body = payload
	}
	if method != http.MethodGet {
		ctx = context.WithValue(ctx, noRetryKey{}, true)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("paystack: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("paystack: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("paystack: read response: %w", err)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("paystack: unexpected status %d", resp.StatusCode)
		}
		return fmt.Errorf("paystack: decode response (status %d): %w", resp.StatusCode, err)
	}

	ok, message := dst.isOK()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("paystack: unexpected status %d: %s", resp.StatusCode, message)
	}
	if resp.StatusCode >= http.StatusBadRequest || !ok {
		return fmt.Errorf("%w: %s", ErrRejected, message)
	}
	return nil
}

func (e *envelope[T]) isOK() (bool, string) {
	return e.Status, e.Message
}

// leveledLogger передаёт журнал повторов retryablehttp в logrus.
type leveledLogger struct {
	entry *logrus.Entry
}

func (l leveledLogger) fields(kv []interface{}) *logrus.Entry {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			f[k] = kv[i+1]
		}
	}
	return l.entry.WithFields(f)
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.fields(kv).Error(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.fields(kv).Debug(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.fields(kv).Debug(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.fields(kv).Warn(msg) }
