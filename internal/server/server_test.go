package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/idlink/internal/engine"
	"github.com/roach88/idlink/internal/ir"
	"github.com/roach88/idlink/internal/store"
	"github.com/roach88/idlink/internal/testutil"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), store.WithClock(testutil.NewDeterministicClock()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func setupTestServerWith(t *testing.T, st *store.Store, cfg *Config) *Server {
	t.Helper()
	eng := engine.New(st)
	srv, err := New(eng, zap.NewNop(), cfg)
	require.NoError(t, err)
	return srv
}

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	return setupTestServerWith(t, setupTestStore(t), &Config{
		Addr:       "127.0.0.1:0",
		RequestIDs: testutil.NewFixedRequestIDGenerator("req-fixed"),
	})
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) ir.ContactView {
	t.Helper()
	var resp ir.IdentifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Contact
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Error
}

func TestNew(t *testing.T) {
	st := setupTestStore(t)

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		srv, err := New(engine.New(st), zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, ":3000", srv.config.Addr)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := New(engine.New(st), nil, nil)
		assert.ErrorContains(t, err, "logger is required")
	})

	t.Run("returns error when service is nil", func(t *testing.T) {
		_, err := New(nil, zap.NewNop(), nil)
		assert.ErrorContains(t, err, "service cannot be nil")
	})
}

func TestHandleIdentify_FreshContact(t *testing.T) {
	srv := setupTestServer(t)

	rec := do(t, srv, http.MethodPost, "/identify", `{"email":"a@x.com"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"contact":{"primaryContactId":1,"emails":["a@x.com"],"phoneNumbers":[],"secondaryContactIds":[]}}`,
		rec.Body.String())
	assert.Equal(t, "req-fixed", rec.Header().Get("X-Request-ID"))
}

func TestHandleIdentify_NumericPhone(t *testing.T) {
	srv := setupTestServer(t)

	rec := do(t, srv, http.MethodPost, "/identify", `{"email":null,"phoneNumber":123456}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"123456"}, decodeView(t, rec).PhoneNumbers)

	// The string form matches the same contact.
	rec = do(t, srv, http.MethodPost, "/identify", `{"phoneNumber":"123456"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decodeView(t, rec).PrimaryContactID)
}

func TestHandleIdentify_MissingIdentifiers(t *testing.T) {
	srv := setupTestServer(t)

	bodies := []string{
		`{}`,
		`{"email":null,"phoneNumber":null}`,
		`{"email":"   "}`,
	}
	for _, body := range bodies {
		rec := do(t, srv, http.MethodPost, "/identify", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "Either email or phoneNumber must be provided", decodeError(t, rec), body)
	}

	// Empty body behaves like {}.
	rec := do(t, srv, http.MethodPost, "/identify", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Either email or phoneNumber must be provided", decodeError(t, rec))
}

func TestHandleIdentify_MalformedBody(t *testing.T) {
	srv := setupTestServer(t)

	for _, body := range []string{`{"email":`, `{"phoneNumber":true}`, `{"email":42}`} {
		rec := do(t, srv, http.MethodPost, "/identify", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "invalid request body", decodeError(t, rec), body)
	}
}

func TestHandleIdentify_MergeScenario(t *testing.T) {
	srv := setupTestServer(t)

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/identify", `{"email":"a"}`).Code)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/identify", `{"phoneNumber":"p"}`).Code)

	// Field order in the body does not change the survivor.
	rec := do(t, srv, http.MethodPost, "/identify", `{"phoneNumber":"p","email":"a"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"contact":{"primaryContactId":1,"emails":["a"],"phoneNumbers":["p"],"secondaryContactIds":[2]}}`,
		rec.Body.String())

	// Replaying is stable.
	again := do(t, srv, http.MethodPost, "/identify", `{"email":"a","phoneNumber":"p"}`)
	assert.JSONEq(t, rec.Body.String(), again.Body.String())
}

func TestHandleIdentify_StoreFailure(t *testing.T) {
	st := setupTestStore(t)
	srv := setupTestServerWith(t, st, nil)
	require.NoError(t, st.Close())

	rec := do(t, srv, http.MethodPost, "/identify", `{"email":"a"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decodeError(t, rec))
	assert.NotContains(t, rec.Body.String(), "closed")
}

func TestStoreFailure_LoggedOnce(t *testing.T) {
	st := setupTestStore(t)
	core, logs := observer.New(zapcore.ErrorLevel)
	logger := zap.New(core)
	srv, err := New(engine.New(st, engine.WithLogger(logger)), logger, &Config{
		RequestIDs: testutil.NewFixedRequestIDGenerator("req-fail"),
	})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	rec := do(t, srv, http.MethodPost, "/identify", `{"email":"a"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	rec = do(t, srv, http.MethodGet, "/contacts/1", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "identify failed", entries[0].Message)
	assert.Equal(t, "cluster failed", entries[1].Message)
	for _, entry := range entries {
		assert.Equal(t, "req-fail", entry.ContextMap()["request_id"])
	}
}

func TestHandleContact(t *testing.T) {
	srv := setupTestServer(t)
	do(t, srv, http.MethodPost, "/identify", `{"email":"a"}`)
	do(t, srv, http.MethodPost, "/identify", `{"email":"a","phoneNumber":"1"}`)

	for _, path := range []string{"/contacts/1", "/contacts/2"} {
		rec := do(t, srv, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		view := decodeView(t, rec)
		assert.Equal(t, int64(1), view.PrimaryContactID, path)
		assert.Equal(t, []int64{2}, view.SecondaryContactIDs, path)
	}

	rec := do(t, srv, http.MethodGet, "/contacts/99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Contact not found", decodeError(t, rec))

	rec = do(t, srv, http.MethodGet, "/contacts/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	srv := setupTestServer(t)
	do(t, srv, http.MethodPost, "/identify", `{"email":"a"}`)

	rec := do(t, srv, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, ir.ServiceVersion, resp.Version)
	require.NotNil(t, resp.Contacts)
	assert.Equal(t, 1, resp.Contacts.Active)
}

func TestHandleHealth_Unavailable(t *testing.T) {
	st := setupTestStore(t)
	srv := setupTestServerWith(t, st, nil)
	require.NoError(t, st.Close())

	rec := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := setupTestServer(t)
	do(t, srv, http.MethodPost, "/identify", `{"email":"a"}`)
	do(t, srv, http.MethodPost, "/identify", `{"email":"a","phoneNumber":"1"}`)
	do(t, srv, http.MethodPost, "/identify", `{}`)

	rec := do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `idlink_identify_requests_total{outcome="new_primary"} 1`)
	assert.Contains(t, body, `idlink_identify_requests_total{outcome="new_secondary"} 1`)
	assert.Contains(t, body, `idlink_identify_requests_total{outcome="invalid"} 1`)
	assert.Contains(t, body, `idlink_contacts_created_total{link_precedence="secondary"} 1`)
	assert.Contains(t, body, `idlink_http_request_duration_seconds_count{method="POST",route="/identify",status="200"} 2`)
}

func TestRateLimit(t *testing.T) {
	srv := setupTestServerWith(t, setupTestStore(t), &Config{
		RateLimit: RateLimitConfig{Requests: 2, Window: time.Hour},
	})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/identify", `{"email":"a"}`).Code)
	}

	rec := do(t, srv, http.MethodPost, "/identify", `{"email":"a"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests", decodeError(t, rec))
}

func TestRateLimit_IgnoresForwardedHeaders(t *testing.T) {
	srv := setupTestServerWith(t, setupTestStore(t), &Config{
		RateLimit: RateLimitConfig{Requests: 2, Window: time.Hour},
	})

	statuses := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/identify", strings.NewReader(`{"email":"a"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "10.0.0.1:4000"
		req.Header.Set(echo.HeaderXForwardedFor, fmt.Sprintf("1.2.3.%d", i))
		req.Header.Set(echo.HeaderXRealIP, fmt.Sprintf("5.6.7.%d", i))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	assert.Equal(t, []int{
		http.StatusOK, http.StatusOK,
		http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusTooManyRequests,
	}, statuses)

	other := httptest.NewRequest(http.MethodGet, "/health", nil)
	other.RemoteAddr = "10.0.0.2:4000"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestRateLimiter_ResetsHourly(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 24*time.Hour)
	rl.now = func() time.Time { return now }
	rl.lastCleanup = now

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))

	now = now.Add(limiterResetInterval + time.Second)
	assert.True(t, rl.Allow("10.0.0.1"))
}

func TestIdentifyOutcome(t *testing.T) {
	primary := ir.Contact{ID: 1, LinkPrecedence: ir.LinkPrimary}
	secondary := ir.Contact{ID: 2, LinkPrecedence: ir.LinkSecondary}

	tests := []struct {
		name    string
		outcome engine.Outcome
		want    string
	}{
		{"new primary", engine.Outcome{Created: &primary}, OutcomeNewPrimary},
		{"new secondary", engine.Outcome{Created: &secondary}, OutcomeNewSecondary},
		{"merge with new info", engine.Outcome{Created: &secondary, Demoted: []int64{3}}, OutcomeMerged},
		{"unchanged", engine.Outcome{}, OutcomeUnchanged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IdentifyOutcome(&engine.Result{Outcome: tt.outcome}))
		})
	}
}

func TestServeAndShutdown(t *testing.T) {
	srv := setupTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	resp, err := http.Post("http://"+ln.Addr().String()+"/identify", "application/json", strings.NewReader(`{"email":"a"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	err = <-done
	assert.True(t, errors.Is(err, http.ErrServerClosed), "got %v", err)
}
