package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	appLogger "github.com/arklim/medportal-api/internal/infra/logger"
)

func TestRequestIDAndTraceIDPropagation(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zapcore.InfoLevel)
	router := gin.New()
	router.Use(EnrichContext(), RequestID(), Logger(zap.New(core)))

	var seenRequestID string
	router.GET("/healthz", func(c *gin.Context) {
		seenRequestID = appLogger.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-123")
	req.Header.Set(TraceIDHeader, "trace-abc")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if seenRequestID != "req-123" {
		t.Fatalf("expected request id in context, got %q", seenRequestID)
	}
	if rr.Header().Get(requestIDHeader) != "req-123" || rr.Header().Get(TraceIDHeader) != "trace-abc" {
		t.Fatalf("expected ids echoed, got %v", rr.Header())
	}

	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one access log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["route"] != "/healthz" || fields["trace_id"] != "trace-abc" || fields["request_id"] != "req-123" {
		t.Fatalf("unexpected access log fields %v", fields)
	}
}

func TestRequestIDGeneratedWhenMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(EnrichContext(), RequestID())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Header().Get(requestIDHeader) == "" || rr.Header().Get(TraceIDHeader) == "" {
		t.Fatalf("expected generated ids, got %v", rr.Header())
	}
}

func TestRequestIDReplacesMalformedHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, inbound := range []string{"two words", strings.Repeat("a", maxRequestIDLength+1), "tab\tid"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, inbound)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		got := rr.Header().Get(requestIDHeader)
		if got == inbound || got == "" {
			t.Fatalf("expected %q to be replaced, got %q", inbound, got)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(CORS([]string{"https://portal.example.com"}))
	router.GET("/users/me", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/users/me", nil)
	req.Header.Set("Origin", "https://portal.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://portal.example.com" {
		t.Fatalf("unexpected allow origin %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow origin for unknown origin, got %q", got)
	}
}
