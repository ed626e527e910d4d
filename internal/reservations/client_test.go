package reservations

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ceramica-booking/internal/booking"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL+"/", zap.NewNop())
}

func sampleRequest() booking.SubmitRequest {
	return booking.SubmitRequest{
		ClassEntity: booking.ClassRef{ID: "c1"},
		BookingDate: "2026-10-19",
		StartTime:   "10:00",
		EndTime:     "12:00",
		BookingType: booking.Puntual,
		Notes:       "primera vez",
	}
}

func TestFetchClassGrid(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/public/classes-grid", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"c1","name":"Torno","instructor":"Ana","weekDay":"Lunes","startTime":"10:00","endTime":"13:00"}]`))
	})

	classes, err := client.FetchClassGrid(context.Background())
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, booking.ClassSchedule{ID: "c1", Name: "Torno", Instructor: "Ana", WeekDay: "Lunes", StartTime: "10:00", EndTime: "13:00"}, classes[0])
}

func TestFetchClassGridServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream failed", http.StatusBadGateway)
	})
	_, err := client.FetchClassGrid(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestSubmitSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/bookings", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{
			"classEntity":{"id":"c1"},
			"bookingDate":"2026-10-19",
			"startTime":"10:00",
			"endTime":"12:00",
			"bookingType":"PUNTUAL",
			"recurrenceEndDate":null,
			"notes":"primera vez"
		}`, string(body))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"b1","status":"confirmed","notificationStatus":"sent"}`))
	})

	rec, err := client.Submit(context.Background(), "tok-1", sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "b1", rec.ID)
	assert.Equal(t, booking.StatusConfirmed, rec.Status)
	assert.Equal(t, booking.NotificationSent, rec.NotificationStatus)
}

func TestSubmitNormalizesRecord(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"b2","notificationError":"smtp down"}`))
	})
	rec, err := client.Submit(context.Background(), "tok", sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, rec.Status)
	assert.Equal(t, booking.NotificationFailed, rec.NotificationStatus)
}

func TestSubmitErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		message string
	}{
		{"capacity conflict", http.StatusConflict, `{"error":"no availability"}`, ErrNoAvailability, "no availability"},
		{"unprocessable", http.StatusUnprocessableEntity, `{"message":"full"}`, ErrNoAvailability, "full"},
		{"unauthorized", http.StatusUnauthorized, `{"error":"authentication required"}`, ErrUnauthorized, "authentication required"},
		{"server error", http.StatusInternalServerError, `oops`, ErrTransport, "oops"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.Submit(context.Background(), "tok", sampleRequest())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.message, apiErr.Message)
		})
	}
}

func TestSubmitTransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	client := NewClient(url, nil)
	_, err := client.Submit(context.Background(), "tok", sampleRequest())
	assert.ErrorIs(t, err, ErrTransport)
}

func TestSubmitRecurrentPayload(t *testing.T) {
	var got map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"b3","status":"pending"}`))
	})
	end := "2026-10-31"
	req := sampleRequest()
	req.BookingType = booking.Recurrente
	req.RecurrenceEndDate = &end

	_, err := client.Submit(context.Background(), "tok", req)
	require.NoError(t, err)
	assert.Equal(t, "RECURRENTE", got["bookingType"])
	assert.Equal(t, "2026-10-31", got["recurrenceEndDate"])
}
