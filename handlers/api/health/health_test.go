package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"overlay-server/core"
	"testing"
)

type stubStore struct {
	core.OverlayStore
	err error
}

func (s stubStore) List(ctx context.Context) ([]core.Overlay, error) {
	return nil, s.err
}

type fixedViewers int

func (v fixedViewers) Viewers() int { return int(v) }

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		database string
	}{
		{"connected", nil, http.StatusOK, "connected"},
		{"store down", fmt.Errorf("database is locked"), http.StatusServiceUnavailable, "disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleHealth(stubStore{err: tt.err}, fixedViewers(3))(rec, httptest.NewRequest(http.MethodGet, "/api/health", http.NoBody))

			if rec.Code != tt.status {
				t.Errorf("Status code mismatch: got %d, want %d", rec.Code, tt.status)
			}

			var response Response
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if response.Database != tt.database || response.Viewers != 3 {
				t.Errorf("response = %+v", response)
			}
		})
	}
}
