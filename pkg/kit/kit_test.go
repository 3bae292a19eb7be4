package kit

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestIPRateLimiter_SlidingWindow(t *testing.T) {
	l := NewIPRateLimiter(2, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	h := l.Middleware(okHandler())

	hit := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := hit("10.0.0.1:1234"); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, rec.Code)
		}
	}

	rec := hit("10.0.0.1:5678")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After 60, got %q", got)
	}

	if rec := hit("10.0.0.2:1234"); rec.Code != http.StatusNoContent {
		t.Fatalf("other client: expected 204, got %d", rec.Code)
	}

	now = now.Add(61 * time.Second)
	if rec := hit("10.0.0.1:1234"); rec.Code != http.StatusNoContent {
		t.Fatalf("after window: expected 204, got %d", rec.Code)
	}
}

func TestIPRateLimiter_ForgetsIdleClients(t *testing.T) {
	l := NewIPRateLimiter(5, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	h := l.Middleware(okHandler())

	hit := func(xff string) {
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		req.Header.Set("X-Forwarded-For", xff)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	for i := 0; i < 100; i++ {
		hit("198.51.100." + strconv.Itoa(i))
	}
	if got := len(l.hits); got != 100 {
		t.Fatalf("expected 100 tracked clients, got %d", got)
	}

	now = now.Add(61 * time.Second)
	hit("203.0.113.1")
	if got := len(l.hits); got != 1 {
		t.Fatalf("expected idle clients dropped, %d still tracked", got)
	}
}

func TestIPRateLimiter_Disabled(t *testing.T) {
	h := NewIPRateLimiter(0, time.Minute).Middleware(okHandler())

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
	}
}

func TestClientIP_ForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")

	if got := clientIP(req); got != "203.0.113.7" {
		t.Fatalf("expected first forwarded address, got %q", got)
	}
}

func TestMetricsAuth(t *testing.T) {
	cases := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"no token configured", "", "Bearer x", http.StatusForbidden},
		{"missing header", "secret", "", http.StatusForbidden},
		{"wrong token", "secret", "Bearer nope", http.StatusForbidden},
		{"wrong scheme", "secret", "Basic secret", http.StatusForbidden},
		{"ok", "secret", "Bearer secret", http.StatusNoContent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := MetricsAuth(tc.token)(okHandler())
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		ProductID int    `json:"product_id"`
		Note      string `json:"note"`
	}

	decode := func(raw string) (body, error) {
		var b body
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
		err := DecodeJSON(httptest.NewRecorder(), req, &b)
		return b, err
	}

	b, err := decode(`{"product_id":4}`)
	if err != nil || b.ProductID != 4 {
		t.Fatalf("expected product 4, got %+v err=%v", b, err)
	}

	if _, err := decode(`{"product_id":4,"extra":1}`); err == nil {
		t.Fatalf("expected unknown field error")
	}

	if _, err := decode(`{"product_id":4}{"product_id":5}`); !errors.Is(err, ErrExtraData) {
		t.Fatalf("expected ErrExtraData, got %v", err)
	}

	big := `{"product_id":1,"note":"` + string(bytes.Repeat([]byte("x"), MaxBodyBytes)) + `"}`
	if _, err := decode(big); err == nil {
		t.Fatalf("expected body size error")
	}
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=abc", nil)

	if n, err := QueryInt(req, "page", 1); err != nil || n != 3 {
		t.Fatalf("page: got %d err=%v", n, err)
	}
	if n, err := QueryInt(req, "missing", 7); err != nil || n != 7 {
		t.Fatalf("default: got %d err=%v", n, err)
	}
	if _, err := QueryInt(req, "limit", 1); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestParseLevel(t *testing.T) {
	if got := ParseLevel("debug"); got != zapcore.DebugLevel {
		t.Fatalf("expected debug, got %v", got)
	}
	if got := ParseLevel("loud"); got != zapcore.InfoLevel {
		t.Fatalf("expected info fallback, got %v", got)
	}
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"server error"`) {
		t.Fatalf("expected JSON error body, got %s", rec.Body)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	r := chi.NewRouter()
	r.Use(m.Middleware("storefront", RouteLabel))
	r.Get("/products/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, path := range []string{"/products/1", "/products/2", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.Requests.WithLabelValues("storefront", "GET", "/products/{id}", "404")); got != 2 {
		t.Fatalf("expected 2 requests on the route pattern, got %v", got)
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues("storefront", "GET", "unmatched", "404")); got != 1 {
		t.Fatalf("expected 1 unmatched request, got %v", got)
	}
	if got := testutil.ToFloat64(m.InFlight); got != 0 {
		t.Fatalf("expected no requests in flight, got %v", got)
	}

	m.ObserveMutation("cart", "add", ResultUnsaved)
	if got := testutil.ToFloat64(m.Mutations.WithLabelValues("cart", "add", ResultUnsaved)); got != 1 {
		t.Fatalf("expected 1 unsaved mutation, got %v", got)
	}

	var nilMetrics *Metrics
	nilMetrics.ObserveMutation("cart", "add", ResultOK)
}
