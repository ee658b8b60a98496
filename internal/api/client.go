package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"zyvpn-miniapp/internal/logger"
)

const (
	initDataHeader  = "X-Telegram-Init-Data"
	requestIDHeader = "X-Request-ID"
	maxBodySize     = 4 << 20
)

// InitDataFunc возвращает актуальную подписанную строку init data пользователя
type InitDataFunc func() string

// Client - типизированный клиент к API сервиса.
// Повторов нет: любая ошибка сразу уходит вызывающему.
type Client struct {
	baseURL  string
	http     *http.Client
	initData InitDataFunc
}

func NewClient(baseURL string, httpClient *http.Client, initData InitDataFunc) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if initData == nil {
		initData = func() string { return "" }
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		initData: initData,
	}
}

// WithInitData возвращает копию клиента с другим источником init data (сессия пользователя)
func (c *Client) WithInitData(f InitDataFunc) *Client {
	cp := *c
	cp.initData = f
	return &cp
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	public bool
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", r.path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return fmt.Errorf("build %s: %w", r.path, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIDHeader, reqID)
	if !r.public {
		req.Header.Set(initDataHeader, c.initData())
	}

	endpoint := r.method + " " + r.path
	label := metricPath(r.method, r.path)
	start := time.Now()
	resp, err := c.http.Do(req)
	requestDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(label, "error").Inc()
		logger.Debug("api request failed", zap.String("endpoint", endpoint), zap.String("request_id", reqID), zap.Error(err))
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	requestsTotal.WithLabelValues(label, strconv.Itoa(resp.StatusCode)).Inc()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read %s: %w", endpoint, err)
	}
	logger.Debug("api request",
		zap.String("endpoint", endpoint),
		zap.String("request_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, request{method: http.MethodGet, path: path, query: query}, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, request{method: http.MethodPost, path: path, body: body}, out)
}

// metricPath схлопывает идентификаторы в пути, чтобы не плодить метки
func metricPath(method, path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = ":id"
			continue
		}
		if _, err := uuid.Parse(p); err == nil {
			parts[i] = ":id"
		}
	}
	return method + " " + strings.Join(parts, "/")
}

func pageQuery(limit, offset int) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return q
}

type successResp struct {
	Success bool `json:"success"`
}
