// Package remote はFlexTimeバックエンドのリソースAPIを呼び出すHTTPクライアントを提供する。
// すべてのリクエストに固定の認可ヘッダーを付与し、クライアント側でレート制限を行う。
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/flextime/internal/metrics"
	"github.com/hitoshi/flextime/internal/model"
)

const (
	userAgent = "FlexTime/1.0"
	// maxResponseSize はレスポンスボディの読み取り上限（4MB）。
	maxResponseSize = 4 << 20
)

// Config はクライアントの設定。
type Config struct {
	BaseURL    string
	AuthHeader string
	// RateLimit は1秒あたりのリクエスト数。0以下の場合は制限しない。
	RateLimit float64
	RateBurst int
}

// StatusError はリモートAPIが2xx以外を返したことを表す。
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote API returned status %d: %s", e.StatusCode, e.Body)
}

// IsNotFound は404応答かどうかを返す。
func IsNotFound(err error) bool {
	var sErr *StatusError
	return errors.As(err, &sErr) && sErr.StatusCode == http.StatusNotFound
}

// Report は最新レポートのレスポンス。resumoTextoのみを使用する。
type Report struct {
	ResumoTexto *string `json:"resumoTexto"`
}

// Client はリソースAPIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	limiter    *rate.Limiter
	baseURL    string
	authHeader string
}

// NewClient はClientを生成する。metricsがnilの場合は記録しない。
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger, m metrics.MetricsCollector) *Client {
	if m == nil {
		m = metrics.Nop{}
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    m,
		limiter:    rate.NewLimiter(limit, burst),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		authHeader: cfg.AuthHeader,
	}
}

// List は GET /{resource}/user/{userID}?page&size&sort を呼び出し、contentをoutへデコードする。
// outは*[]Tを渡す。要素の順序はサーバーの返却順のまま。
func (c *Client) List(ctx context.Context, resource model.ResourceType, userID int64, q model.PageQuery, out any) error {
	path := fmt.Sprintf("/%s/user/%d", resource, userID)
	var page struct {
		Content json.RawMessage `json:"content"`
	}
	if err := c.do(ctx, http.MethodGet, string(resource), path, q.Values(), nil, &page); err != nil {
		return err
	}
	if len(page.Content) == 0 || string(page.Content) == "null" {
		return json.Unmarshal([]byte("[]"), out)
	}
	if err := json.Unmarshal(page.Content, out); err != nil {
		return fmt.Errorf("failed to decode %s content: %w", resource, err)
	}
	return nil
}

// Create は POST /{resource} を呼び出す。outがnilでなければレスポンスをデコードする。
func (c *Client) Create(ctx context.Context, resource model.ResourceType, body any, out any) error {
	return c.do(ctx, http.MethodPost, string(resource), "/"+string(resource), nil, body, out)
}

// Update は PUT /{resource}/{id} を呼び出す。
func (c *Client) Update(ctx context.Context, resource model.ResourceType, id int64, body any, out any) error {
	path := fmt.Sprintf("/%s/%d", resource, id)
	return c.do(ctx, http.MethodPut, string(resource), path, nil, body, out)
}

// Delete は DELETE /{resource}/{id} を呼び出す。
func (c *Client) Delete(ctx context.Context, resource model.ResourceType, id int64) error {
	path := fmt.Sprintf("/%s/%d", resource, id)
	return c.do(ctx, http.MethodDelete, string(resource), path, nil, nil, nil)
}

// LatestReport は GET /reports/user/{userID}/last を呼び出す。
func (c *Client) LatestReport(ctx context.Context, userID int64) (*Report, error) {
	var report Report
	path := fmt.Sprintf("/reports/user/%d/last", userID)
	if err := c.do(ctx, http.MethodGet, "reports", path, nil, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// do はリクエストを送信し、2xxの場合にレスポンスをoutへデコードする。
func (c *Client) do(ctx context.Context, method, resource, path string, query url.Values, body any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordRemoteRequest(method, resource, 0, time.Since(start))
		c.logger.Error("remote request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.metrics.RecordRemoteRequest(method, resource, resp.StatusCode, time.Since(start))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("remote API returned error status",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("request_id", requestID),
			slog.Int("http_status", resp.StatusCode),
		)
		return &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 200)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response JSON: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(" + strconv.Itoa(len(s)-n) + " more bytes)"
}
