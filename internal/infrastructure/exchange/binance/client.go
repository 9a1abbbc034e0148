// Package binance adapts the Binance spot REST and websocket APIs to the
// engine's exchange interfaces.
package binance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"autotrader/internal/config"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// APIError is an error answer of the REST API.
type APIError struct {
	HTTPStatus int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance api error %d (http %d): %s", e.Code, e.HTTPStatus, e.Message)
}

var ErrMissingCredentials = errors.New("binance: api key and secret are required")

// Client is a signed REST client. Every call passes through the rate limiter.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *Signer
	limiter    *RateLimiter
	recvWindow time.Duration
	logger     *logrus.Entry
	now        func() time.Time
}

// NewClient creates a REST client from the exchange configuration.
func NewClient(cfg config.ExchangeConfig, logger *logrus.Logger) (*Client, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, ErrMissingCredentials
	}
	base, err := url.Parse(cfg.RESTURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid exchange rest url %q", cfg.RESTURL)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.RESTURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		signer:     NewSigner(cfg.APIKey, cfg.APISecret),
		limiter:    NewRateLimiter(cfg.RequestBurst, float64(cfg.RequestsPerSecond)),
		recvWindow: cfg.RecvWindow,
		logger:     logger.WithField("component", "binance_rest"),
		now:        time.Now,
	}, nil
}

// Close wipes the signing secret.
func (c *Client) Close() {
	c.signer.Wipe()
}

func (c *Client) get(ctx context.Context, path string, params url.Values, signed bool, out any) error {
	return c.do(ctx, http.MethodGet, path, params, signed, out)
}

func (c *Client) post(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodPost, path, params, true, out)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, signed bool, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if params == nil {
		params = url.Values{}
	}
	query := params.Encode()
	if signed {
		if c.recvWindow > 0 {
			params.Set("recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))
		}
		params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
		query = params.Encode()
		query += "&signature=" + c.signer.Sign(query)
	}

	endpoint := c.baseURL + path
	if query != "" {
		endpoint += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	req.Header.Set("X-MBX-APIKEY", c.signer.APIKey())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	c.logger.WithFields(logrus.Fields{
		"method":  method,
		"path":    path,
		"status":  resp.StatusCode,
		"took_ms": time.Since(start).Milliseconds(),
	}).Debug("exchange request")

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{HTTPStatus: resp.StatusCode}
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
