package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestResponseWriter_WriteHeader_OnlyOnce(t *testing.T) {
	// Arrange
	w := httptest.NewRecorder()
	rw := newResponseWriter(w)

	// Act
	rw.WriteHeader(http.StatusSeeOther)
	rw.WriteHeader(http.StatusBadRequest)

	// Assert
	if rw.statusCode != http.StatusSeeOther {
		t.Errorf("statusCode = %d, want %d", rw.statusCode, http.StatusSeeOther)
	}
	if w.Code != http.StatusSeeOther {
		t.Errorf("recorded code = %d, want %d", w.Code, http.StatusSeeOther)
	}
}

func TestResponseWriter_WriteImpliesOK(t *testing.T) {
	w := httptest.NewRecorder()
	rw := newResponseWriter(w)

	n, err := rw.Write([]byte("listing"))

	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != len("listing") {
		t.Errorf("Write() = %d bytes, want %d", n, len("listing"))
	}
	if !rw.written || rw.statusCode != http.StatusOK {
		t.Errorf("written = %v, statusCode = %d", rw.written, rw.statusCode)
	}
}

func TestResponseWriter_HijackNotSupported(t *testing.T) {
	rw := newResponseWriter(httptest.NewRecorder())

	_, _, err := rw.Hijack()

	if !errors.Is(err, http.ErrNotSupported) {
		t.Errorf("Hijack() error = %v, want %v", err, http.ErrNotSupported)
	}
}

func TestChain_Order(t *testing.T) {
	// Arrange
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	})

	// Act
	Chain(mark("outer"), mark("inner"))(handler).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	// Assert
	want := "outer,inner,handler"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("order = %s, want %s", got, want)
	}
}

func TestResponseWriter_CountsBytes(t *testing.T) {
	rw := newResponseWriter(httptest.NewRecorder())

	_, _ = rw.Write([]byte("<html>"))
	_, _ = rw.Write([]byte("</html>"))

	if rw.bytes != 13 {
		t.Errorf("bytes = %d, want 13", rw.bytes)
	}
}

func TestLogging_Levels(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantLevel zapcore.Level
	}{
		{"dashboard page", "/", zapcore.InfoLevel},
		{"form post", "/forms/abc", zapcore.InfoLevel},
		{"health probe", "/health", zapcore.DebugLevel},
		{"metrics scrape", "/metrics", zapcore.DebugLevel},
		{"stylesheet", "/static/app.css", zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			core, logs := observer.New(zapcore.DebugLevel)
			handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusAccepted)
			})
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)

			// Act
			Logging(zap.New(core))(handler).ServeHTTP(httptest.NewRecorder(), req)

			// Assert
			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("got %d log entries, want 1", len(entries))
			}
			if entries[0].Level != tt.wantLevel {
				t.Errorf("level = %s, want %s", entries[0].Level, tt.wantLevel)
			}
			if got := entries[0].ContextMap()["status"]; got != int64(http.StatusAccepted) {
				t.Errorf("status field = %v, want %d", got, http.StatusAccepted)
			}
		})
	}
}

func TestLogging_ServerErrorsLogAtWarn(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"backend failure on form", "/forms/abc", http.StatusBadGateway},
		{"failed readiness probe", "/ready", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			core, logs := observer.New(zapcore.DebugLevel)
			handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("failed"))
			})

			// Act
			Logging(zap.New(core))(handler).ServeHTTP(httptest.NewRecorder(),
				httptest.NewRequest(http.MethodPost, tt.path, nil))

			// Assert
			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("got %d log entries, want 1", len(entries))
			}
			if entries[0].Level != zapcore.WarnLevel {
				t.Errorf("level = %s, want %s", entries[0].Level, zapcore.WarnLevel)
			}
			if got := entries[0].ContextMap()["bytes"]; got != int64(len("failed")) {
				t.Errorf("bytes field = %v, want %d", got, len("failed"))
			}
		})
	}
}

func TestLogging_RouteField(t *testing.T) {
	// Arrange
	core, logs := observer.New(zapcore.DebugLevel)
	router := mux.NewRouter()
	router.Use(mux.MiddlewareFunc(Logging(zap.New(core))))
	router.HandleFunc("/listings/{id}/edit", func(http.ResponseWriter, *http.Request) {})

	// Act
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/listings/42/edit", nil))

	// Assert
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["route"] != "/listings/{id}/edit" || fields["path"] != "/listings/42/edit" {
		t.Errorf("route = %v, path = %v", fields["route"], fields["path"])
	}
}

func TestRecovery_RecoversPanic(t *testing.T) {
	// Arrange
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("template exploded")
	})
	rr := httptest.NewRecorder()

	// Act
	Recovery(zap.New(core))(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	// Assert
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Error("expected a panic recovered log entry")
	}
}

func TestRecovery_ResponseAlreadyStarted(t *testing.T) {
	// Arrange
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("partial"))
		panic("late failure")
	})
	rr := httptest.NewRecorder()

	// Act
	Recovery(zap.NewNop())(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	// Assert
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if body := rr.Body.String(); body != "partial" {
		t.Errorf("body = %q, want %q", body, "partial")
	}
}

func TestRecovery_ReraisesAbortHandler(t *testing.T) {
	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	})

	defer func() {
		if got := recover(); got != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler", got)
		}
	}()
	Recovery(zap.NewNop())(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	t.Error("ErrAbortHandler should propagate")
}

func TestRecovery_PassesThrough(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	rr := httptest.NewRecorder()

	Recovery(zap.NewNop())(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
	}{
		{"generated", ""},
		{"propagated", "req-42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			var fromCtx, fromHeader string
			handler := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				fromCtx = RequestIDFromContext(r.Context())
				fromHeader = r.Header.Get(RequestIDHeader)
			})
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rr := httptest.NewRecorder()

			// Act
			RequestID()(handler).ServeHTTP(rr, req)

			// Assert
			got := rr.Header().Get(RequestIDHeader)
			if got == "" {
				t.Fatal("response is missing the request ID header")
			}
			if tt.incoming != "" && got != tt.incoming {
				t.Errorf("request ID = %s, want %s", got, tt.incoming)
			}
			if fromCtx != got || fromHeader != got {
				t.Errorf("context = %q, header = %q, response = %q", fromCtx, fromHeader, got)
			}
		})
	}
}

func TestRequestID_ReplacesMalformedInbound(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
	}{
		{"header injection", "abc\r\nX-Evil: 1"},
		{"spaces", "req 42"},
		{"too long", strings.Repeat("a", 129)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header[RequestIDHeader] = []string{tt.incoming}
			rr := httptest.NewRecorder()

			// Act
			RequestID()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rr, req)

			// Assert
			got := rr.Header().Get(RequestIDHeader)
			if got == tt.incoming || !validRequestID.MatchString(got) {
				t.Errorf("request ID = %q, want a freshly generated one", got)
			}
		})
	}
}

func TestRequestID_Unique(t *testing.T) {
	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	wrapped := RequestID()(handler)
	seen := make(map[string]bool)

	for range 50 {
		rr := httptest.NewRecorder()
		wrapped.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		id := rr.Header().Get(RequestIDHeader)
		if seen[id] {
			t.Fatalf("duplicate request ID %s", id)
		}
		seen[id] = true
	}
}

func TestRequestIDFromContext_Missing(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("RequestIDFromContext() = %q, want empty", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	// Arrange
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rr := httptest.NewRecorder()

	// Act
	SecurityHeaders()(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	// Assert
	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "no-referrer",
		"Content-Security-Policy": ContentSecurityPolicy,
	}
	for header, value := range want {
		if got := rr.Header().Get(header); got != value {
			t.Errorf("%s = %q, want %q", header, got, value)
		}
	}
}

func TestNormalizeRequestPath(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"matched route uses template", "/listings/64f0c2/edit", "/listings/{id}/edit"},
		{"form session", "/forms/7d1e/cancel", "/forms/{session}/cancel"},
		{"unmatched route uses raw path", "/nope", "/nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			var got string
			capture := func(_ http.ResponseWriter, r *http.Request) {
				got = normalizeRequestPath(r)
			}
			router := mux.NewRouter()
			router.HandleFunc("/listings/{id}/edit", capture)
			router.HandleFunc("/forms/{session}/cancel", capture)
			router.NotFoundHandler = http.HandlerFunc(capture)

			// Act
			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.url, nil))

			// Assert
			if got != tt.want {
				t.Errorf("normalizeRequestPath() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMiddlewareChainIntegration(t *testing.T) {
	// Arrange
	logger := zap.NewNop()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RequestIDFromContext(r.Context()) == "" {
			t.Error("request ID should be set by middleware")
		}
		w.WriteHeader(http.StatusOK)
	})
	chain := Chain(
		Recovery(logger),
		RequestID(),
		Logging(logger),
		Metrics(),
		SecurityHeaders(),
	)
	rr := httptest.NewRecorder()

	// Act
	chain(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	// Assert
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Error("response should carry the request ID header")
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("response should carry security headers")
	}
}
