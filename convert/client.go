// Package convert turns legacy binary documents into paginated documents by
// way of a remote conversion service.
package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/brunobiangulo/docview/raster"
	"github.com/brunobiangulo/docview/session"
)

const (
	DefaultTimeout = 60 * time.Second

	pdfContentType = "application/pdf"
	maxErrorBody   = 64 << 10
)

// Client uploads files to POST {baseURL}/convert.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

type Option func(*Client)

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithTimeout bounds each conversion request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Convert uploads data and returns the converted document bytes. Failures are
// *Error; cancellation of ctx yields session.ErrAborted.
func (c *Client) Convert(ctx context.Context, name string, data []byte) ([]byte, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("convert: building upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("convert: building upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("convert: building upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/convert", &body)
	if err != nil {
		return nil, fmt.Errorf("convert: creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", pdfContentType+", application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	slog.Debug("convert: response",
		"file", name, "status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
		"elapsed", time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeFailure(resp)
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	if err := validatePayload(resp.Header.Get("Content-Type"), out); err != nil {
		err.Status = resp.StatusCode
		return nil, err
	}
	return out, nil
}

// validatePayload rejects success responses that cannot be rendered.
func validatePayload(contentType string, data []byte) *Error {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || mt != pdfContentType {
		return &Error{Kind: KindMalformed, Message: fmt.Sprintf("unexpected content type %q", contentType)}
	}
	if len(data) == 0 {
		return &Error{Kind: KindMalformed, Message: "empty payload"}
	}
	if _, err := raster.Probe(data); err != nil {
		return &Error{Kind: KindMalformed, Message: "payload is not a readable document", Err: err}
	}
	return nil
}

func decodeFailure(resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var failure struct {
		Error       string `json:"error"`
		Unavailable bool   `json:"unavailable"`
	}
	if err := json.Unmarshal(body, &failure); err != nil {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return &Error{Kind: KindFailed, Status: resp.StatusCode, Message: msg}
	}

	kind := KindFailed
	if failure.Unavailable {
		kind = KindUnavailable
	}
	return &Error{Kind: kind, Status: resp.StatusCode, Message: failure.Error}
}

func classifyTransport(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return session.ErrAborted
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindUnreachable, Err: err}
}
