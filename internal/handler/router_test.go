package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/adledger/internal/metrics"
	"github.com/hitoshi/adledger/internal/middleware"
)

type mockHealthChecker struct {
	pingFn func(ctx context.Context) error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func newTestRouter(t *testing.T, checker HealthChecker) (http.Handler, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	collector.RecordSaleCommitted("paid")

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:            rate.Limit(1),
		Burst:           2,
		CleanupInterval: time.Minute,
	}, logger)
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		HealthChecker: checker,
		Gatherer:      reg,
		RateLimiter:   rl,
		Logger:        logger,
	}), &buf
}

func TestHealth_OK(t *testing.T) {
	router, _ := newTestRouter(t, &mockHealthChecker{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestHealth_DatabaseDown_Returns503(t *testing.T) {
	checker := &mockHealthChecker{pingFn: func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("疎通確認にはタイムアウトを設定するべき")
		}
		return errors.New("connection refused")
	}}
	router, logs := newTestRouter(t, checker)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /health status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != middleware.CodeUnavailable {
		t.Errorf("code = %q, want %q", body.Code, middleware.CodeUnavailable)
	}
	if !strings.Contains(logs.String(), "connection refused") {
		t.Errorf("失敗の原因がログに残るべき: %s", logs.String())
	}
}

func TestMetrics_ExposesCollectorSeries(t *testing.T) {
	router, _ := newTestRouter(t, &mockHealthChecker{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "adledger_sales_committed_total") {
		t.Errorf("売上件数のメトリクスが含まれるべき:\n%s", w.Body.String())
	}
}

func TestTimePicker_ServesPage(t *testing.T) {
	router, _ := newTestRouter(t, &mockHealthChecker{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webapp/time", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("GET /webapp/time status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	if w.Header().Get("X-Frame-Options") != "" {
		t.Error("Telegram内で開くためフレーム表示を禁止しないべき")
	}
	if !strings.Contains(w.Header().Get("Content-Security-Policy"), "frame-ancestors") {
		t.Errorf("CSP = %q", w.Header().Get("Content-Security-Policy"))
	}
	page := w.Body.String()
	for _, want := range []string{"telegram-web-app.js", "sendData", "hours:", "minutes:"} {
		if !strings.Contains(page, want) {
			t.Errorf("ページに %q が含まれるべき", want)
		}
	}
}

func TestTimePicker_RateLimited(t *testing.T) {
	router, _ := newTestRouter(t, &mockHealthChecker{})

	var last int
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/webapp/time", nil)
		req.RemoteAddr = "198.51.100.9:1234"
		router.ServeHTTP(w, req)
		last = w.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("バーストを超えたら429になるべき: %d", last)
	}

	// ヘルスチェックは制限の対象外
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "198.51.100.9:1234"
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("GET /health status = %d, want 200", w.Code)
	}
}

func TestUnknownRoute_ReturnsJSON404(t *testing.T) {
	router, _ := newTestRouter(t, &mockHealthChecker{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sales", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != middleware.CodeNotFound {
		t.Errorf("code = %q, want %q", body.Code, middleware.CodeNotFound)
	}
}

func TestWrongMethod_Returns405(t *testing.T) {
	router, _ := newTestRouter(t, &mockHealthChecker{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health status = %d, want 405", w.Code)
	}
}

func TestTrustProxy_UsesForwardedAddress(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	router := NewRouter(&RouterDeps{
		HealthChecker: &mockHealthChecker{},
		Logger:        logger,
		TrustProxy:    true,
	})

	req := httptest.NewRequest(http.MethodGet, "/webapp/time", nil)
	req.Header.Set("X-Real-IP", "203.0.113.50")
	router.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), `"remote_ip":"203.0.113.50"`) {
		t.Errorf("プロキシ配下では転送元IPを記録するべき: %s", buf.String())
	}
}
