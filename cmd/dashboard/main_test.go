package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/listing-dashboard/internal/config"
	"github.com/vyrodovalexey/listing-dashboard/internal/middleware"
	"github.com/vyrodovalexey/listing-dashboard/internal/model"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{"debug level", "debug"},
		{"info level", "info"},
		{"warn level", "warn"},
		{"error level", "error"},
		{"invalid level defaults to info", "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			logger, err := initLogger(tt.level)

			// Assert
			if err != nil {
				t.Fatalf("initLogger() error = %v", err)
			}
			if logger == nil {
				t.Error("initLogger() returned nil logger")
			}
		})
	}
}

// recordingAPI serves a fixed collection and records request IDs of deletes.
type recordingAPI struct {
	mu         sync.Mutex
	deleteIDs  []string
	requestIDs []string
}

func (a *recordingAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		_ = json.NewEncoder(w).Encode([]model.Listing{
			{ID: "a1", Title: "Teapot", Price: 15, Category: "Kitchen", Subcategory: "Tea"},
		})
	case http.MethodDelete:
		a.mu.Lock()
		a.deleteIDs = append(a.deleteIDs, strings.TrimPrefix(r.URL.Path, "/api/listings/"))
		a.requestIDs = append(a.requestIDs, r.Header.Get(middleware.RequestIDHeader))
		a.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		ServerPort:      0,
		LogLevel:        "info",
		ShutdownTimeout: 5 * time.Second,
		MetricsEnabled:  false,
		APIBaseURL:      baseURL,
		APITimeout:      2 * time.Second,
		MaxUploadBytes:  1 << 20,
		MaxFormSessions: 4,
	}
}

func TestNewApp(t *testing.T) {
	// Arrange
	api := &recordingAPI{}
	backend := httptest.NewServer(api)
	defer backend.Close()

	// Act
	srv, listings, err := newApp(testConfig(backend.URL), zap.NewNop())

	// Assert
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	if err := listings.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rr.Body.String(), "Teapot") {
		t.Error("dashboard should render the fetched listing")
	}
}

func TestNewApp_ForwardsRequestID(t *testing.T) {
	// Arrange
	api := &recordingAPI{}
	backend := httptest.NewServer(api)
	defer backend.Close()

	srv, listings, err := newApp(testConfig(backend.URL), zap.NewNop())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	if err := listings.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/listings/a1/delete", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")

	// Act
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	// Assert
	if rr.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusSeeOther)
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.deleteIDs) != 1 || api.deleteIDs[0] != "a1" {
		t.Fatalf("deleted = %v, want [a1]", api.deleteIDs)
	}
	if api.requestIDs[0] != "req-123" {
		t.Errorf("backend saw request ID %q, want req-123", api.requestIDs[0])
	}
}

func TestNewApp_InvalidBaseURL(t *testing.T) {
	_, _, err := newApp(testConfig("ftp://listings.example.com"), zap.NewNop())

	if err == nil {
		t.Fatal("newApp() expected error for unsupported scheme")
	}
}
