package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/Mavahu/opacity-go/wallet"
)

// maxErrorBody bounds how much of a failed response body is kept.
const maxErrorBody = 1024

// Attachment is a binary form part sent alongside a signed envelope.
type Attachment struct {
	Field string
	Data  []byte
}

// Client talks to the broker API. Every POST carries a signed envelope;
// presigned GETs are sent as-is. Transient failures (connection errors and
// 5xx responses) are retried by the underlying retryablehttp client.
type Client struct {
	baseURL   string
	userAgent string
	signer    wallet.Signer
	http      *retryablehttp.Client
	log       *logrus.Entry
	now       func() time.Time
}

var _ Broker = (*Client)(nil)

// NewClient creates a broker client. A nil logger uses logrus.StandardLogger.
func NewClient(cfg ClientConfig, signer wallet.Signer, logger *logrus.Logger) (*Client, error) {
	if signer == nil {
		return nil, fmt.Errorf("network: signer is nil")
	}
	base, err := normalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logger.WithField("component", "network")

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	if cfg.RetryWait > 0 {
		rc.RetryWaitMin = cfg.RetryWait
		rc.RetryWaitMax = 8 * cfg.RetryWait
	}
	if cfg.Timeout > 0 {
		rc.HTTPClient.Timeout = cfg.Timeout
	}
	rc.Logger = &retryLogger{log: log}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL:   base,
		userAgent: cfg.UserAgent,
		signer:    signer,
		http:      rc,
		log:       log,
		now:       time.Now,
	}, nil
}

// timestamp returns the current time in Unix milliseconds.
func (c *Client) timestamp() int64 {
	return c.now().UnixMilli()
}

// envelope marshals payload and signs it.
func (c *Client) envelope(payload any) (*wallet.Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("network: marshal request: %w", err)
	}
	env, err := c.signer.Sign(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}
	return env, nil
}

// post sends a signed JSON envelope to endpoint and decodes the response into out.
func (c *Client) post(ctx context.Context, endpoint string, payload, out any) error {
	env, err := c.envelope(payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("network: marshal envelope: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("network: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, endpoint, out)
}

// postForm sends the envelope fields as multipart form fields plus binary
// attachments, each attachment named after its field.
func (c *Client) postForm(ctx context.Context, endpoint string, payload any, attachments []Attachment, out any) error {
	env, err := c.envelope(payload)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := []struct{ name, value string }{
		{"requestBody", env.RequestBody},
		{"signature", env.Signature},
		{"publicKey", env.PublicKey},
		{"hash", env.Hash},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return fmt.Errorf("network: write form field %s: %w", f.name, err)
		}
	}
	for _, a := range attachments {
		part, err := mw.CreateFormFile(a.Field, a.Field)
		if err != nil {
			return fmt.Errorf("network: create form file %s: %w", a.Field, err)
		}
		if _, err := part.Write(a.Data); err != nil {
			return fmt.Errorf("network: write form file %s: %w", a.Field, err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("network: close form: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, buf.Bytes())
	if err != nil {
		return fmt.Errorf("network: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, endpoint, out)
}

// get fetches a presigned URL. rangeHeader is sent when non-empty.
func (c *Client) get(ctx context.Context, rawURL, rangeHeader string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("network: create request: %w", err)
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Endpoint: "GET " + redact(rawURL), Code: resp.StatusCode, Body: string(respBody)}
	}
	return resp, nil
}

func (c *Client) do(req *retryablehttp.Request, endpoint string, out any) error {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnectionFailed, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"status":   resp.StatusCode,
		"elapsed":  time.Since(start).Round(time.Millisecond),
	}).Debug("broker request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: decode response: %w", ErrInvalidResponse, endpoint, err)
	}
	return nil
}

// redact drops the query string of a presigned URL before it is logged.
func redact(rawURL string) string {
	u, _, _ := strings.Cut(rawURL, "?")
	return u
}
