// Package rest is the HTTP fallback transport to the user and product
// services. It speaks their public REST surface and maps status codes onto
// the clients outcome taxonomy: 200/201 is a value, 404 is ErrNotFound, 409
// is ErrAlreadyExists and anything else is a *clients.TransportError.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vrushab-bit/mini-shop/clients"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const DefaultTimeout = 5 * time.Second

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// New returns a client for the service rooted at baseURL. A nil httpClient
// gets an instrumented client with the given timeout.
func New(baseURL string, timeout time.Duration, httpClient *http.Client, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &clients.TransportError{Transport: clients.TransportHTTP, Op: op, Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &clients.TransportError{Transport: clients.TransportHTTP, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &clients.TransportError{Transport: clients.TransportHTTP, Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusNotFound:
		return clients.ErrNotFound
	case http.StatusConflict:
		return clients.ErrAlreadyExists
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("Unexpected response status",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
		)
		return &clients.TransportError{
			Transport: clients.TransportHTTP,
			Op:        op,
			Err:       fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &clients.TransportError{Transport: clients.TransportHTTP, Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func idPath(prefix string, id int64) string {
	return prefix + "/" + strconv.FormatInt(id, 10)
}
