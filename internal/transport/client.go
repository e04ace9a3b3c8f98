package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/kdimtricp/paintestimator/internal/payload"
)

const DefaultTimeout = 120 * time.Second

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	baseURL string
	http    *resty.Client
	logger  *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		baseURL: baseURL,
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(cfg.Timeout).
			SetHeader("Accept", "application/json"),
		logger: logger,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Submit sends one POST and returns the decoded JSON body untouched.
func (c *Client) Submit(ctx context.Context, endpoint string, p payload.Payload) (interface{}, error) {
	req := c.http.R().SetContext(ctx)

	switch p.Kind {
	case payload.KindJSON:
		req.SetHeader("Content-Type", "application/json").SetBody([]byte(p.JSON))
	case payload.KindMultipart:
		fields := make([]*resty.MultipartField, 0, len(p.Files))
		for _, f := range p.Files {
			fields = append(fields, &resty.MultipartField{
				Param:       f.Field,
				FileName:    f.FileName,
				ContentType: f.ContentType,
				Reader:      bytes.NewReader(f.Data),
			})
		}
		values := url.Values{}
		for _, v := range p.Form {
			values.Add(v.Key, v.Value)
		}
		req.SetFormDataFromValues(values).SetMultipartFields(fields...)
	default:
		return nil, fmt.Errorf("unknown payload kind %d", p.Kind)
	}

	start := time.Now()
	resp, err := req.Post(endpoint)
	if err != nil {
		c.logger.Warn("estimator request failed",
			zap.String("endpoint", endpoint),
			zap.Error(err))
		return nil, &NetworkError{Endpoint: endpoint, Err: err}
	}

	c.logger.Debug("estimator responded",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("elapsed", time.Since(start)))

	body := decodeBody(resp.Body())

	if !resp.IsSuccess() {
		herr := &HTTPError{Status: resp.StatusCode(), Message: messageFromBody(resp.StatusCode(), body)}
		c.logger.Warn("estimator rejected request",
			zap.String("endpoint", endpoint),
			zap.Int("status", herr.Status),
			zap.ByteString("body", truncate(resp.Body(), 500)))
		return nil, herr
	}

	if body == nil && len(resp.Body()) > 0 {
		c.logger.Warn("estimator returned a non-JSON body",
			zap.String("endpoint", endpoint),
			zap.ByteString("body", truncate(resp.Body(), 200)))
	}

	return body, nil
}

type HealthStatus struct {
	Status       string          `json:"status"`
	Version      string          `json:"version"`
	Timestamp    string          `json:"timestamp"`
	ModelsLoaded map[string]bool `json:"models_loaded"`
}

// Health queries the backend's /health endpoint, which lives at the server
// root rather than under the versioned API prefix.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	healthURL, err := rootURL(c.baseURL, "/health")
	if err != nil {
		return nil, err
	}

	var status HealthStatus
	resp, err := c.http.R().SetContext(ctx).SetResult(&status).Get(healthURL)
	if err != nil {
		return nil, &NetworkError{Endpoint: healthURL, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &HTTPError{Status: resp.StatusCode(), Message: messageFromBody(resp.StatusCode(), decodeBody(resp.Body()))}
	}
	return &status, nil
}

func rootURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	u.Path = path
	u.RawQuery = ""
	return u.String(), nil
}

func decodeBody(raw []byte) interface{} {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var body interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	return body
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
