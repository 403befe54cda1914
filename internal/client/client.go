// Package client provides an HTTP client for the listings backend API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/listing-dashboard/internal/model"
)

// Client errors.
var (
	ErrTransport  = errors.New("backend transport failure")
	ErrInvalidID  = errors.New("invalid listing ID")
	ErrEmptyBase  = errors.New("base URL cannot be empty")
	ErrBadBaseURL = errors.New("base URL must be an absolute http(s) URL")
)

// Prometheus metrics.
var (
	backendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_requests_total",
			Help: "Total number of requests sent to the listings backend",
		},
		[]string{"operation", "outcome"},
	)

	backendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_request_duration_seconds",
			Help:    "Listings backend request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// APIError is returned when the backend answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Messages   []string
}

func (e *APIError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Messages[0])
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// FirstMessage returns the first structured validation message carried by
// err, if any.
func FirstMessage(err error) (string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && len(apiErr.Messages) > 0 {
		return apiErr.Messages[0], true
	}
	return "", false
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. The client passed in is
// never modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets a per-request timeout regardless of option order. Zero
// keeps the http.Client's own setting.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRequestIDHeader forwards the request ID found in the context under key
// as the named header on every backend call.
func WithRequestIDHeader(header string, key any) Option {
	return func(c *Client) {
		c.requestIDHeader = header
		c.requestIDKey = key
	}
}

// Client talks to the listings backend. A single base URL serves both the
// read and the write paths.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger

	requestIDHeader string
	requestIDKey    any
}

// New creates a new Client for the backend rooted at baseURL.
func New(baseURL string, logger *zap.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, ErrEmptyBase
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrBadBaseURL
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}

	return c, nil
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// ListListings fetches the full listing collection.
func (c *Client) ListListings(ctx context.Context) ([]model.Listing, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint(""), nil)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}

	body, err := c.do(req, "list")
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}

	var listings []model.Listing
	if err := json.Unmarshal(body, &listings); err != nil {
		return nil, fmt.Errorf("list listings: decoding response: %w", err)
	}

	return listings, nil
}

// CreateListing submits a new listing with its images and returns the
// backend's confirmation message.
func (c *Client) CreateListing(
	ctx context.Context,
	fields model.ListingFields,
	images []model.ImageFile,
) (string, error) {
	payload, contentType, err := encodeMultipart(fields, images)
	if err != nil {
		return "", fmt.Errorf("create listing: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint(""), payload)
	if err != nil {
		return "", fmt.Errorf("create listing: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	c.logger.Info("creating listing",
		zap.String("title", fields.Title),
		zap.Int("images", len(images)),
	)

	body, err := c.do(req, "create")
	if err != nil {
		return "", fmt.Errorf("create listing: %w", err)
	}

	return decodeMessage(body), nil
}

// UpdateListing replaces the scalar fields of the listing with the given ID.
func (c *Client) UpdateListing(ctx context.Context, id string, fields model.ListingFields) (string, error) {
	if id == "" {
		return "", ErrInvalidID
	}

	payload, contentType, err := encodeMultipart(fields, nil)
	if err != nil {
		return "", fmt.Errorf("update listing: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, c.endpoint(id), payload)
	if err != nil {
		return "", fmt.Errorf("update listing: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	c.logger.Info("updating listing", zap.String("id", id))

	body, err := c.do(req, "update")
	if err != nil {
		return "", fmt.Errorf("update listing: %w", err)
	}

	return decodeMessage(body), nil
}

// DeleteListing removes the listing with the given ID.
func (c *Client) DeleteListing(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}

	req, err := c.newRequest(ctx, http.MethodDelete, c.endpoint(id), nil)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}

	c.logger.Info("deleting listing", zap.String("id", id))

	if _, err := c.do(req, "delete"); err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}

	return nil
}

// endpoint builds the collection URL, or the item URL when id is set.
func (c *Client) endpoint(id string) string {
	u := c.baseURL.JoinPath("api", "listings")
	if id != "" {
		u = u.JoinPath(id)
	}
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	if c.requestIDHeader != "" {
		if id, ok := ctx.Value(c.requestIDKey).(string); ok && id != "" {
			req.Header.Set(c.requestIDHeader, id)
		}
	}

	return req, nil
}

// do executes req, records metrics and returns the body of a 2xx response.
func (c *Client) do(req *http.Request, operation string) ([]byte, error) {
	start := time.Now()
	defer func() {
		backendRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	res, err := c.httpClient.Do(req)
	if err != nil {
		backendRequestsTotal.WithLabelValues(operation, "transport_error").Inc()
		c.logger.Warn("backend request failed",
			zap.String("operation", operation),
			zap.String("url", req.URL.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		backendRequestsTotal.WithLabelValues(operation, "transport_error").Inc()
		return nil, fmt.Errorf("%w: reading body: %w", ErrTransport, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		backendRequestsTotal.WithLabelValues(operation, "error").Inc()
		apiErr := &APIError{
			StatusCode: res.StatusCode,
			Messages:   decodeValidationMessages(body),
		}
		c.logger.Warn("backend returned error status",
			zap.String("operation", operation),
			zap.Int("status", res.StatusCode),
			zap.Strings("messages", apiErr.Messages),
		)
		return nil, apiErr
	}

	backendRequestsTotal.WithLabelValues(operation, "success").Inc()
	c.logger.Debug("backend request completed",
		zap.String("operation", operation),
		zap.Int("status", res.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	return body, nil
}

// encodeMultipart writes the scalar fields followed by one "images" part per
// file.
func encodeMultipart(fields model.ListingFields, images []model.ImageFile) (*bytes.Buffer, string, error) {
	buff := new(bytes.Buffer)
	mpw := multipart.NewWriter(buff)

	for _, pair := range fields.Pairs() {
		if err := mpw.WriteField(pair[0], pair[1]); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", pair[0], err)
		}
	}

	for i, img := range images {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(
			`form-data; name="images"; filename=%q`, imageName(img, i),
		))
		contentType := img.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)

		part, err := mpw.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("creating image part: %w", err)
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, "", fmt.Errorf("writing image part: %w", err)
		}
	}

	if err := mpw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}

	return buff, mpw.FormDataContentType(), nil
}

func imageName(img model.ImageFile, index int) string {
	if img.Name != "" {
		return img.Name
	}
	return fmt.Sprintf("image-%d", index+1)
}

func decodeMessage(body []byte) string {
	var resp model.MessageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	return resp.Message
}

func decodeValidationMessages(body []byte) []string {
	var resp model.ValidationErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil
	}

	messages := make([]string, 0, len(resp.Errors))
	for _, e := range resp.Errors {
		if e.Msg != "" {
			messages = append(messages, e.Msg)
		}
	}
	if len(messages) == 0 {
		return nil
	}
	return messages
}
