package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		db             Pinger
		expectedStatus int
		expectedBody   healthResponse
	}{
		{
			name:           "no database",
			expectedStatus: http.StatusOK,
			expectedBody:   healthResponse{Status: "ok"},
		},
		{
			name:           "database up",
			db:             pingerFunc(func(context.Context) error { return nil }),
			expectedStatus: http.StatusOK,
			expectedBody:   healthResponse{Status: "ok", Database: "ok"},
		},
		{
			name:           "database down",
			db:             pingerFunc(func(context.Context) error { return errors.New("refused") }),
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   healthResponse{Status: "degraded", Database: "unreachable"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rec := httptest.NewRecorder()
			HandleHealth(tt.db).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			var got healthResponse
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != tt.expectedBody {
				t.Fatalf("expected %+v, got %+v", tt.expectedBody, got)
			}
		})
	}
}
