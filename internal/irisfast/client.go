package irisfast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// HeaderProvider allows injecting per-request headers
type HeaderProvider func() map[string]string

// APIError is a non-2xx answer from Iris.
type APIError struct {
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("iris %s: status=%d body=%s", e.Path, e.Status, e.Body)
}

// Retryable reports whether the status is a transient gateway failure.
func (e *APIError) Retryable() bool {
	switch e.Status {
	case fasthttp.StatusInternalServerError, fasthttp.StatusBadGateway,
		fasthttp.StatusServiceUnavailable, fasthttp.StatusGatewayTimeout:
		return true
	}
	return false
}

// Client talks to the Iris HTTP bridge (config, decrypt, reply).
type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider
	logger  *zap.Logger

	timeout  time.Duration
	attempts int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

// WithRetry sets the attempt budget of idempotent calls.
func WithRetry(max int) Option {
	return func(c *Client) { c.attempts = max }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &fasthttp.Client{
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxConnsPerHost: 64,
		},
		logger:   zap.NewNop(),
		timeout:  10 * time.Second,
		attempts: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call describes one endpoint invocation.
type call struct {
	method string
	path   string
	in     any
	out    any
	// idempotent calls are retried on transport errors and 5xx gateways
	idempotent bool
}

func (c *Client) GetConfig(ctx context.Context) (*Config, error) {
	var cfg Config
	err := c.do(ctx, call{method: fasthttp.MethodGet, path: "/config", out: &cfg, idempotent: true})
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Client) Decrypt(ctx context.Context, data string) (string, error) {
	var resp DecryptResponse
	err := c.do(ctx, call{
		method:     fasthttp.MethodPost,
		path:       "/decrypt",
		in:         DecryptRequest{Data: data},
		out:        &resp,
		idempotent: true,
	})
	if err != nil {
		return "", err
	}
	return resp.Decrypted, nil
}

// SendMessage posts a text reply. Replies are sent once: a timed out request
// may already have reached the room.
func (c *Client) SendMessage(ctx context.Context, room, message string) error {
	return c.reply(ctx, ReplyRequest{Type: "text", Room: room, Data: message})
}

// SendImage posts a base64 encoded PNG reply.
func (c *Client) SendImage(ctx context.Context, room, imageBase64 string) error {
	return c.reply(ctx, ImageReplyRequest{Type: "image", Room: room, Data: imageBase64})
}

func (c *Client) reply(ctx context.Context, req any) error {
	var room string
	switch r := req.(type) {
	case ReplyRequest:
		room = r.Room
	case ImageReplyRequest:
		room = r.Room
	}
	if strings.TrimSpace(room) == "" {
		return errors.New("reply: empty room")
	}
	return c.do(ctx, call{method: fasthttp.MethodPost, path: "/reply", in: req})
}

func (c *Client) do(ctx context.Context, cl call) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(cl.method)
	req.SetRequestURI(c.baseURL + cl.path)
	req.Header.SetContentType("application/json")
	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}
	if cl.in != nil {
		payload, err := json.Marshal(cl.in)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", cl.path, err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if cl.idempotent && c.attempts > 1 {
		attempts = c.attempts
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if werr := wait(ctx, backoffDuration(attempt-1)); werr != nil {
				return err
			}
			c.logger.Debug("iris_retry", zap.String("path", cl.path), zap.Int("attempt", attempt), zap.Error(err))
		}
		err = c.once(ctx, req, resp, cl)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return err
		}
	}
	return err
}

func (c *Client) once(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response, cl call) error {
	resp.Reset()
	if err := c.http.DoDeadline(req, resp, c.deadline(ctx)); err != nil {
		return fmt.Errorf("iris %s: %w", cl.path, err)
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return &APIError{Path: cl.path, Status: status, Body: truncate(string(resp.Body()), 512)}
	}
	if cl.out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), cl.out); err != nil {
		return fmt.Errorf("decode %s: %w", cl.path, err)
	}
	return nil
}

// deadline is the earlier of the context deadline and the client timeout.
func (c *Client) deadline(ctx context.Context) time.Time {
	own := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(own) {
		return dl
	}
	return own
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffDuration doubles from 100ms and caps at 3.2s.
func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
