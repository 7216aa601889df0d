package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/agbru/fibsquares/internal/config"
	apperrors "github.com/agbru/fibsquares/internal/errors"
	"github.com/agbru/fibsquares/internal/fibonacci"
	"github.com/agbru/fibsquares/internal/logging"
)

func testConfig() config.AppConfig {
	return config.AppConfig{
		Port:       "0",
		Modulus:    config.DefaultModulus,
		Algo:       config.DefaultAlgo,
		MaxModulus: 1000,
	}
}

// newTestServer builds a server with a quiet logger and a generous rate
// limit that is stopped when the test ends.
func newTestServer(t *testing.T, factory fibonacci.CalculatorFactory, opts ...Option) *Server {
	t.Helper()
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 10000})
	t.Cleanup(rl.Stop)
	opts = append([]Option{WithLogger(logging.Nop()), WithRateLimiter(rl)}, opts...)
	return NewServer(factory, testConfig(), opts...)
}

func do(t *testing.T, srv *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
	return v
}

// TestHandleSumSquares verifies the sum of squares endpoint against the
// registered strategies.
func TestHandleSumSquares(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, fibonacci.NewDefaultFactory())

	tests := []struct {
		name   string
		query  string
		expect uint64
		algo   string
	}{
		{"default algo and modulus", "?n=6", 4, fibonacci.AlgoPisano},
		{"seven", "?n=7&algo=cached", 3, fibonacci.AlgoCached},
		{"explicit modulus", "?n=7&m=100&algo=doubling", 73, fibonacci.AlgoDoubling},
		{"huge index", "?n=1000000000000000000000000000000", 5, fibonacci.AlgoPisano},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := do(t, srv, http.MethodGet, "/sumsquares"+tt.query)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			resp := decode[Response](t, rec)
			if resp.Result == nil || *resp.Result != tt.expect {
				t.Errorf("result = %v, want %d", resp.Result, tt.expect)
			}
			if resp.Algorithm != tt.algo || resp.Operation != fibonacci.OperationSumSquaresMod {
				t.Errorf("unexpected response metadata: %+v", resp)
			}
		})
	}
}

func TestHandleFibModAndPeriod(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, fibonacci.NewDefaultFactory())

	rec := do(t, srv, http.MethodGet, "/fibmod?k=100&algo=doubling")
	resp := decode[Response](t, rec)
	if rec.Code != http.StatusOK || resp.Result == nil || *resp.Result != 5 {
		t.Errorf("/fibmod?k=100 = %d %s, want 5", rec.Code, rec.Body.String())
	}
	if resp.Index != "100" || resp.Modulus != 10 {
		t.Errorf("unexpected echo: %+v", resp)
	}

	rec = do(t, srv, http.MethodGet, "/period?m=100")
	period := decode[PeriodResponse](t, rec)
	if rec.Code != http.StatusOK || period.Period != 300 || period.Modulus != 100 {
		t.Errorf("/period?m=100 = %d %s, want 300", rec.Code, rec.Body.String())
	}
}

func TestValidationErrors(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, fibonacci.NewDefaultFactory())

	tests := []struct {
		name   string
		target string
		field  string
	}{
		{"missing n", "/sumsquares", "n"},
		{"negative n", "/sumsquares?n=-1", "n"},
		{"malformed n", "/sumsquares?n=abc", "n"},
		{"missing k", "/fibmod?m=10", "k"},
		{"zero modulus", "/sumsquares?n=5&m=0", "modulus"},
		{"modulus above the limit", "/sumsquares?n=5&m=1001", "modulus"},
		{"malformed modulus", "/period?m=ten", "modulus"},
		{"unknown algo", "/sumsquares?n=5&algo=matrix", "algo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := do(t, srv, http.MethodGet, tt.target)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
			resp := decode[ErrorResponse](t, rec)
			if resp.Field != tt.field {
				t.Errorf("field = %q, want %q", resp.Field, tt.field)
			}
			if resp.RequestID == "" || resp.RequestID != rec.Header().Get(RequestIDHeader) {
				t.Errorf("request id mismatch: body %q header %q", resp.RequestID, rec.Header().Get(RequestIDHeader))
			}
		})
	}
}

func TestCalculationFailure(t *testing.T) {
	t.Parallel()
	factory := fibonacci.NewTestFactory(map[string]fibonacci.Calculator{
		"pisano": &fibonacci.MockCalculator{NameValue: "Broken", Err: errors.New("boom")},
	})
	srv := newTestServer(t, factory)

	rec := do(t, srv, http.MethodGet, "/sumsquares?n=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decode[Response](t, rec)
	if resp.Result != nil || !strings.Contains(resp.Error, "boom") {
		t.Errorf("expected an error response, got %+v", resp)
	}
}

func TestCalculationTimeout(t *testing.T) {
	t.Parallel()
	slow := &fibonacci.MockCalculator{Fn: func(ctx context.Context, _, _ uint64) (uint64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}}
	factory := fibonacci.NewTestFactory(map[string]fibonacci.Calculator{"pisano": slow})
	timeouts := DefaultServerTimeouts()
	timeouts.RequestTimeout = 10 * time.Millisecond
	srv := newTestServer(t, factory, WithTimeouts(timeouts))

	rec := do(t, srv, http.MethodGet, "/sumsquares?n=5")
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", rec.Code)
	}
}

// TestDefaultAlgoAll checks that a server started with -algo all still
// answers requests that omit algo, using the reference scan.
func TestDefaultAlgoAll(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Algo = config.AlgoAll
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 10000})
	t.Cleanup(rl.Stop)
	srv := NewServer(fibonacci.NewDefaultFactory(), cfg, WithLogger(logging.Nop()), WithRateLimiter(rl))

	for target, want := range map[string]uint64{"/sumsquares?n=6": 4, "/fibmod?k=6": 8} {
		rec := do(t, srv, http.MethodGet, target)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, body %s", target, rec.Code, rec.Body.String())
		}
		resp := decode[Response](t, rec)
		if resp.Algorithm != fibonacci.AlgoPisano {
			t.Errorf("%s: algorithm = %q, want %q", target, resp.Algorithm, fibonacci.AlgoPisano)
		}
		if resp.Result == nil || *resp.Result != want {
			t.Errorf("%s: result = %v, want %d", target, resp.Result, want)
		}
	}

	rec := do(t, srv, http.MethodGet, "/sumsquares?n=6&algo=all")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("explicit algo=all: status = %d, want 400", rec.Code)
	}
}

func TestCalculationCanceled(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, fibonacci.NewDefaultFactory(), WithService(stubService{err: context.Canceled}))

	rec := do(t, srv, http.MethodGet, "/sumsquares?n=5")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

type stubService struct {
	err error
}

func (s stubService) SumSquares(context.Context, string, *big.Int, uint64) (uint64, error) {
	return 0, s.err
}
func (s stubService) FibonacciMod(context.Context, string, *big.Int, uint64) (uint64, error) {
	return 0, s.err
}
func (s stubService) Period(context.Context, uint64) (uint64, error) { return 0, s.err }
func (s stubService) ReduceIndex(context.Context, string, *big.Int, uint64) (uint64, error) {
	return 0, s.err
}

func TestWithService(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, fibonacci.NewDefaultFactory(),
		WithService(stubService{err: apperrors.NewValidationError("modulus", "rejected", nil)}))

	rec := do(t, srv, http.MethodGet, "/period?m=10")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	srv = newTestServer(t, fibonacci.NewDefaultFactory(), WithService(stubService{err: errors.New("disk on fire")}))
	rec = do(t, srv, http.MethodGet, "/period?m=10")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHandleAlgorithmsAndHealth(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, fibonacci.NewDefaultFactory())

	rec := do(t, srv, http.MethodGet, "/algorithms")
	algos := decode[map[string][]string](t, rec)
	if got := strings.Join(algos["algorithms"], ","); got != "cached,doubling,pisano" {
		t.Errorf("algorithms = %s", got)
	}

	rec = do(t, srv, http.MethodGet, "/health")
	health := decode[map[string]any](t, rec)
	if rec.Code != http.StatusOK || health["status"] != "healthy" {
		t.Errorf("health = %d %v", rec.Code, health)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, fibonacci.NewDefaultFactory())
	for _, path := range []string{"/sumsquares?n=1", "/fibmod?k=1", "/period", "/algorithms", "/health", "/metrics"} {
		if rec := do(t, srv, http.MethodPost, path); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s = %d, want 405", path, rec.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, fibonacci.NewDefaultFactory())
	do(t, srv, http.MethodGet, "/sumsquares?n=6")

	rec := do(t, srv, http.MethodGet, "/metrics")
	body := rec.Body.String()
	for _, name := range []string{"fibsquares_http_requests_total", "fibsquares_calculations_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("/metrics is missing %s", name)
		}
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, fibonacci.NewDefaultFactory())

	rec := do(t, srv, http.MethodGet, "/health")
	if id := rec.Header().Get(RequestIDHeader); len(id) != 36 {
		t.Errorf("generated request id %q is not a UUID", id)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "client-42")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "client-42" {
		t.Errorf("request id = %q, want client-42", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, fibonacci.NewDefaultFactory())

	rec := do(t, srv, http.MethodGet, "/health")
	for header, want := range map[string]string{
		"X-Content-Type-Options":      "nosniff",
		"X-Frame-Options":             "DENY",
		"Access-Control-Allow-Origin": "*",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}

	if rec := do(t, srv, http.MethodOptions, "/sumsquares"); rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
}

func TestRestrictedOrigins(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, fibonacci.NewDefaultFactory(), WithSecurityConfig(SecurityConfig{
		EnableCORS:     true,
		AllowedOrigins: []string{"https://example.org"},
		AllowedMethods: []string{"GET"},
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.test")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected CORS origin %q", got)
	}

	req.Header.Set("Origin", "https://example.org")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://example.org" {
		t.Errorf("CORS origin = %q", got)
	}
}

func TestRateLimiting(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 3})
	srv := newTestServer(t, fibonacci.NewDefaultFactory(), WithRateLimiter(rl))
	t.Cleanup(rl.Stop)

	limited := 0
	for range 6 {
		if do(t, srv, http.MethodGet, "/health").Code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited != 3 {
		t.Errorf("limited %d of 6 requests, want 3", limited)
	}
}

func TestGetClientIP(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		trusted bool
		want    string
	}{
		{"forwarded", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.1.1.1:80", true, "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": " 10.0.0.3 "}, "1.1.1.1:80", true, "10.0.0.3"},
		{"forwarded untrusted", map[string]string{"X-Forwarded-For": "10.0.0.1"}, "1.1.1.1:80", false, "1.1.1.1"},
		{"real ip untrusted", map[string]string{"X-Real-IP": "10.0.0.3"}, "1.1.1.1:80", false, "1.1.1.1"},
		{"trusted without headers", nil, "1.1.1.1:80", true, "1.1.1.1"},
		{"remote v4", nil, "192.168.1.1:8080", false, "192.168.1.1"},
		{"remote v6", nil, "[::1]:8080", false, "::1"},
		{"no port", nil, "192.168.1.1", false, "192.168.1.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req, tt.trusted); got != tt.want {
				t.Errorf("getClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestRateLimitIgnoresForwardedHeader checks that rotating X-Forwarded-For
// does not earn a fresh window unless proxy headers are trusted.
func TestRateLimitIgnoresForwardedHeader(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 2})
	srv := newTestServer(t, fibonacci.NewDefaultFactory(), WithRateLimiter(rl))
	t.Cleanup(rl.Stop)

	limited := 0
	for i := range 5 {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Forwarded-For", "10.0.0."+strconv.Itoa(i))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited != 3 {
		t.Errorf("limited %d of 5 requests, want 3", limited)
	}
}

func TestTrustProxyConfig(t *testing.T) {
	t.Parallel()
	for _, trusted := range []bool{false, true} {
		cfg := testConfig()
		cfg.TrustProxy = trusted
		srv := NewServer(fibonacci.NewDefaultFactory(), cfg, WithLogger(logging.Nop()))
		t.Cleanup(srv.rateLimiter.Stop)
		if srv.rateLimiter.trusted != trusted {
			t.Errorf("TrustProxy=%v: rate limiter trusted = %v", trusted, srv.rateLimiter.trusted)
		}
	}
}

// TestServeShutdown starts the server on a random port, issues a request
// and verifies that canceling the context stops it cleanly.
func TestServeShutdown(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, fibonacci.NewDefaultFactory())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/sumsquares?n=7")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `"result":3`) {
		t.Errorf("unexpected body %s", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStartInvalidPort(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Port = "not-a-port"
	srv := NewServer(fibonacci.NewDefaultFactory(), cfg, WithLogger(logging.Nop()))

	err := srv.Start(context.Background())
	var srvErr apperrors.ServerError
	if !errors.As(err, &srvErr) {
		t.Errorf("expected ServerError, got %v", err)
	}
}
