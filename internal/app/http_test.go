package app

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"leadify-meeting-orchestrator/internal/types"
)

func TestHTTPCommands(t *testing.T) {
	ta := newTestApp(t)
	srv := httptest.NewServer(ta.Handler(ta.registry))
	defer srv.Close()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantType   types.ErrorType
	}{
		{
			name:       "schedule",
			body:       `{"command":"schedule","lead":{"id":"L5001"},"actor":"web","details":{"date":"2099-05-01","time":"09:00","location":"Venue-B"}}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "malformed body",
			body:       `{"command":`,
			wantStatus: http.StatusBadRequest,
			wantType:   types.ErrorTypeValidationFailed,
		},
		{
			name:       "unknown field",
			body:       `{"command":"history","lead":{"id":"L5001"},"extra":true}`,
			wantStatus: http.StatusBadRequest,
			wantType:   types.ErrorTypeValidationFailed,
		},
		{
			name:       "missing meeting",
			body:       `{"command":"remind","meeting_id":"nope"}`,
			wantStatus: http.StatusNotFound,
			wantType:   types.ErrorTypeMeetingNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := http.Post(srv.URL+"/commands", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST /commands: %v", err)
			}
			defer res.Body.Close()

			if res.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.wantStatus)
			}
			var resp Response
			if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if tt.wantType == "" {
				if resp.Status != "ok" || resp.Result == nil || resp.Result.Meeting == nil {
					t.Fatalf("response = %+v", resp)
				}
				return
			}
			if resp.Error == nil || resp.Error.Type != tt.wantType {
				t.Errorf("error = %+v, want %s", resp.Error, tt.wantType)
			}
		})
	}
}

func TestHTTPHealthAndMetrics(t *testing.T) {
	ta := newTestApp(t)
	srv := httptest.NewServer(ta.Handler(ta.registry))
	defer srv.Close()

	res, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", res.StatusCode)
	}

	// produce at least one command sample
	post, err := http.Post(srv.URL+"/commands", "application/json", strings.NewReader(`{"command":"history","lead":{"id":"L5001"}}`))
	if err != nil {
		t.Fatalf("POST /commands: %v", err)
	}
	post.Body.Close()

	res, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(body), "leadify_meetings_command_duration_seconds") {
		t.Errorf("metrics output missing command histogram:\n%s", body)
	}

	res, err = http.Get(srv.URL + "/commands")
	if err != nil {
		t.Fatalf("GET /commands: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /commands status = %d, want 405", res.StatusCode)
	}
}
