// Package reservations is the HTTP client for the reservation service: it
// fetches the weekly class grid and submits booking drafts.
package reservations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"ceramica-booking/internal/booking"
	"ceramica-booking/internal/logging"
)

const defaultTimeout = 15 * time.Second

var tracer = otel.Tracer("ceramica.internal.reservations")

var (
	// ErrNoAvailability means the service refused the slot for capacity.
	ErrNoAvailability = errors.New("no availability for the requested slot")
	ErrUnauthorized   = errors.New("not authorized")
	ErrTransport      = errors.New("reservation service unavailable")
)

// APIError carries a non-2xx answer from the service.
type APIError struct {
	StatusCode int
	Message    string
	kind       error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("reservations: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.kind }

// Client talks to the reservation service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(baseURL string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logging.OrNop(logger),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchClassGrid loads the weekly classes open for booking.
func (c *Client) FetchClassGrid(ctx context.Context) ([]booking.ClassSchedule, error) {
	ctx, span := tracer.Start(ctx, "reservations.class_grid")
	defer span.End()

	var classes []booking.ClassSchedule
	if err := c.doJSON(ctx, http.MethodGet, "/public/classes-grid", "", nil, &classes); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "class grid fetch failed")
		return nil, fmt.Errorf("fetch class grid: %w", err)
	}
	span.SetAttributes(attribute.Int("ceramica.classes", len(classes)))
	return classes, nil
}

// Submit posts a booking on behalf of the holder of token.
func (c *Client) Submit(ctx context.Context, token string, req booking.SubmitRequest) (*booking.BookingRecord, error) {
	ctx, span := tracer.Start(ctx, "reservations.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("ceramica.class_id", req.ClassEntity.ID),
		attribute.String("ceramica.booking_type", string(req.BookingType)),
	)

	var rec booking.BookingRecord
	if err := c.doJSON(ctx, http.MethodPost, "/bookings", token, req, &rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		return nil, fmt.Errorf("submit booking: %w", err)
	}
	normalizeRecord(&rec)
	span.SetAttributes(
		attribute.String("ceramica.booking_id", rec.ID),
		attribute.String("ceramica.status", string(rec.Status)),
	)
	return &rec, nil
}

// normalizeRecord fills what older service versions leave out: a record
// without status is still awaiting confirmation.
func normalizeRecord(rec *booking.BookingRecord) {
	if rec.Status == "" {
		rec.Status = booking.StatusPending
	}
	if rec.NotificationError != "" && rec.NotificationStatus == "" {
		rec.NotificationStatus = booking.NotificationFailed
	}
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("reservation service request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(payload)}
		switch resp.StatusCode {
		case http.StatusConflict, http.StatusUnprocessableEntity:
			apiErr.kind = ErrNoAvailability
		case http.StatusUnauthorized, http.StatusForbidden:
			apiErr.kind = ErrUnauthorized
		default:
			apiErr.kind = ErrTransport
		}
		c.logger.Info("reservation service rejected request",
			zap.String("path", path), zap.Int("status", resp.StatusCode), zap.String("message", apiErr.Message))
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrTransport, err)
	}
	return nil
}

func errorMessage(payload []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(payload))
}
