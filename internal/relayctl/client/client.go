package client

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

	"github.com/gookit/goutil"

	"github.com/trevor-gituru/wireguard-relay-api/pkg/api"
	"github.com/trevor-gituru/wireguard-relay-api/pkg/logger"
)

// ErrDeviceNotFound reports a serial the relay has no record of
var ErrDeviceNotFound = errors.New("device not found")

// APIError carries the structured error envelope returned by the relay
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
	RetryAfter int // seconds, from the Retry-After header on 503 responses
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

// Is matches ErrDeviceNotFound so callers branch without inspecting codes
func (e *APIError) Is(target error) bool {
	return target == ErrDeviceNotFound && e.StatusCode == http.StatusNotFound
}

// Retryable reports whether a later attempt could succeed. Client-side
// rejections are permanent, server-side failures may clear.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

const defaultTimeout = 30 * time.Second

// Client talks to the relay registration API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger

	maxAttempts int
}

// NewClient creates an API client. A zero timeout selects the default.
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewDevelopment("client")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		logger:      log,
		maxAttempts: 3,
	}
}

// Register submits a device and returns the relay-side connection details.
// Transient failures are retried, honoring Retry-After on busy responses.
func (c *Client) Register(ctx context.Context, serial, publicKey string) (*api.RegisterResponse, error) {
	return withRetry(ctx, c, "register device", func() (*api.RegisterResponse, error) {
		return c.registerOnce(ctx, serial, publicKey)
	})
}

func (c *Client) registerOnce(ctx context.Context, serial, publicKey string) (*api.RegisterResponse, error) {
	resp, body, err := c.do(ctx, http.MethodPost, "/api/v1/devices", &api.RegisterRequest{
		Serial:    serial,
		PublicKey: publicKey,
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeAPIError(resp, body)
	}

	registration, err := decodeResponse[api.RegisterResponse](body)
	if err != nil {
		return nil, err
	}

	if registration.RelayPublicKey == "" || registration.Address == "" {
		return nil, fmt.Errorf("invalid response: missing required fields")
	}
	if registration.RelayPort == 0 {
		registration.RelayPort = 51820
	}

	c.logger.Info("device registered",
		"serial", registration.Serial,
		"address", registration.Address)
	return registration, nil
}

// Deregister removes a device from the relay. A warning in the response means
// the record is gone but the live peer entry may linger until a reconcile.
func (c *Client) Deregister(ctx context.Context, serial string) (*api.DeregisterResponse, error) {
	return withRetry(ctx, c, "deregister device", func() (*api.DeregisterResponse, error) {
		return c.deregisterOnce(ctx, serial)
	})
}

func (c *Client) deregisterOnce(ctx context.Context, serial string) (*api.DeregisterResponse, error) {
	resp, body, err := c.do(ctx, http.MethodDelete, "/api/v1/devices/"+url.PathEscape(serial), nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeAPIError(resp, body)
	}

	result, err := decodeResponse[api.DeregisterResponse](body)
	if err != nil {
		return nil, err
	}

	if result.Warning != "" {
		c.logger.Warn("device deregistered with warning",
			"serial", result.Serial, "warning", result.Warning)
	} else {
		c.logger.Info("device deregistered", "serial", result.Serial)
	}
	return result, nil
}

// GetDevice fetches a single device record by serial
func (c *Client) GetDevice(ctx context.Context, serial string) (*api.DeviceInfo, error) {
	resp, body, err := c.do(ctx, http.MethodGet, "/api/v1/devices/"+url.PathEscape(serial), nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeAPIError(resp, body)
	}
	return decodeResponse[api.DeviceInfo](body)
}

// ListDevices fetches all registered devices
func (c *Client) ListDevices(ctx context.Context) (*api.DeviceListResponse, error) {
	resp, body, err := c.do(ctx, http.MethodGet, "/api/v1/devices", nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeAPIError(resp, body)
	}
	return decodeResponse[api.DeviceListResponse](body)
}

// Reconcile asks the relay to align its interface with the registry
func (c *Client) Reconcile(ctx context.Context) (*api.ReconcileResponse, error) {
	resp, body, err := c.do(ctx, http.MethodPost, "/api/v1/reconcile", nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeAPIError(resp, body)
	}

	result, err := decodeResponse[api.ReconcileResponse](body)
	if err != nil {
		return nil, err
	}

	c.logger.Info("reconcile complete",
		"peers_added", result.PeersAdded,
		"peers_removed", result.PeersRemoved,
		"in_sync", result.InSync)
	return result, nil
}

// GetHealth fetches the relay health summary. A degraded relay still answers.
func (c *Client) GetHealth(ctx context.Context) (*api.HealthResponse, error) {
	resp, body, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeAPIError(resp, body)
	}

	health, err := decodeResponse[api.HealthResponse](body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetched relay health", "status", health.Status)
	return health, nil
}

// do executes one request and hands back the response with its body drained
func (c *Client) do(ctx context.Context, method, path string, payload any) (*http.Response, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("making API request", "method", method, "url", c.baseURL+path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp, body, nil
}

// decodeAPIError turns a non-200 response into an APIError
func (c *Client) decodeAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var envelope api.Response[any]
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		apiErr.RequestID = envelope.Error.RequestID
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("API returned unexpected status %d", resp.StatusCode)
	}

	if retryHeader := resp.Header.Get("Retry-After"); retryHeader != "" {
		if val, err := goutil.ToInt(retryHeader); err == nil {
			apiErr.RetryAfter = val
		}
	}

	return apiErr
}

// decodeResponse unwraps the standard envelope around a success payload
func decodeResponse[T any](body []byte) (*T, error) {
	var envelope api.Response[T]
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode API response: %w", err)
	}
	if !envelope.Success {
		return nil, fmt.Errorf("API returned success=false without error details")
	}

	data := envelope.Data
	return &data, nil
}

// withRetry runs op up to maxAttempts times. A server-suggested Retry-After
// wins over the exponential schedule, permanent rejections return at once.
func withRetry[T any](ctx context.Context, c *Client, label string, op func() (*T, error)) (*T, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		result, err := op()
		if err == nil {
			if attempt > 0 {
				c.logger.Info("succeeded after retry", "operation", label, "attempt", attempt+1)
			}
			return result, nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return nil, err
		}

		lastErr = err
		if attempt == c.maxAttempts-1 || ctx.Err() != nil {
			break
		}
		c.logger.Warn("request failed, will retry",
			"operation", label, "attempt", attempt+1, "error", err)

		// Exponential backoff 1s, 2s, 4s unless the server suggested a wait
		waitTime := time.Duration(1<<uint(attempt)) * time.Second
		if apiErr != nil && apiErr.RetryAfter > 0 {
			waitTime = time.Duration(apiErr.RetryAfter) * time.Second
		}

		select {
		case <-time.After(waitTime):
			c.logger.Debug("retrying after backoff", "wait_time", waitTime)
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}

	return nil, fmt.Errorf("%s failed after retries: %w", label, lastErr)
}
