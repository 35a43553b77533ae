package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureauth/secureauth/internal/account"
	"github.com/secureauth/secureauth/internal/config"
	"github.com/secureauth/secureauth/internal/logging"
	"github.com/secureauth/secureauth/internal/routes"
)

// countingRepository counts every read of an account row.
type countingRepository struct {
	account.Repository
	lookups atomic.Int32
}

func (r *countingRepository) Find(ctx context.Context, accountNumber string) (account.Account, error) {
	r.lookups.Add(1)
	return r.Repository.Find(ctx, accountNumber)
}

func (r *countingRepository) RecordAttempt(ctx context.Context, accountNumber string, at time.Time, attempt account.AttemptFunc) (account.Account, error) {
	r.lookups.Add(1)
	return r.Repository.RecordAttempt(ctx, accountNumber, at, attempt)
}

func testConfig() config.Config {
	return config.Config{
		AppName:            "SecureAuth",
		AppEnv:             "test",
		Port:               "0",
		JWTSecret:          "test-secret",
		TokenTTL:           time.Hour,
		IdempotencyTTL:     time.Minute,
		RegisterRateLimit:  10,
		LoginRateLimit:     10,
		RateLimitWindow:    time.Minute,
		LockoutThreshold:   5,
		LockoutWindow:      60 * time.Second,
		BcryptCost:         4,
		CORSAllowedOrigins: "*",
	}
}

func newTestServer(t *testing.T) (*Server, *countingRepository) {
	t.Helper()
	return newTestServerWith(t, testConfig())
}

func newTestServerWith(t *testing.T, cfg config.Config) (*Server, *countingRepository) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	repo := &countingRepository{Repository: account.NewMemoryRepository()}
	now := time.Date(2024, 3, 1, 9, 0, 15, 0, time.UTC)
	srv, err := New(routes.Deps{
		Cfg:    cfg,
		Cache:  cache,
		Logger: logging.Discard(),
		Repo:   repo,
		Clock:  func() time.Time { return now },
	})
	require.NoError(t, err)
	return srv, repo
}

func send(t *testing.T, app *fiber.App, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestEleventhLoginIsRateLimitedBeforeLookup(t *testing.T) {
	srv, repo := newTestServer(t)
	app := srv.App()
	creds := map[string]any{"account_number": "345678912345", "password": "Password1"}

	for i := 1; i <= 10; i++ {
		status, _ := send(t, app, fiber.MethodPost, "/login", creds)
		require.Equal(t, fiber.StatusUnauthorized, status, "request %d", i)
	}
	require.Equal(t, int32(10), repo.lookups.Load())

	status, body := send(t, app, fiber.MethodPost, "/login", creds)
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, int32(10), repo.lookups.Load(), "rate limited request must not reach the store")
}

func TestPublicEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	app := srv.App()

	status, body := send(t, app, fiber.MethodGet, "/test", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Backend is running!", body["status"])

	status, body = send(t, app, fiber.MethodGet, "/db_check", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "connected", body["database"])

	status, _ = send(t, app, fiber.MethodGet, "/healthz", nil)
	assert.Equal(t, fiber.StatusOK, status)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestRegisterLoginProfileFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	app := srv.App()

	status, body := send(t, app, fiber.MethodPost, "/register", map[string]any{
		"account_number":          "345678912345",
		"first_name":              "Jane",
		"last_name":               "Doe",
		"age":                     34,
		"gender":                  "F",
		"phone_number":            "(555) 123-4567",
		"address":                 "1 Main St",
		"bank_account_type":       "savings",
		"date_of_account_opening": "2020-05-17",
		"branch_code":             "BR001",
		"password":                "Password1",
	})
	require.Equal(t, fiber.StatusCreated, status, body)

	status, body = send(t, app, fiber.MethodPost, "/login",
		map[string]any{"account_number": "345678912345", "password": "Password1"})
	require.Equal(t, fiber.StatusOK, status, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	req := httptest.NewRequest(fiber.MethodGet, "/profile", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv, _ := newTestServer(t)
	status, body := send(t, srv.App(), fiber.MethodGet, "/profile", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])
}

func TestDefaultLimitsApplyToEveryRoute(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultRateLimits = []config.RateLimit{{Limit: 200, Window: 24 * time.Hour}, {Limit: 50, Window: time.Hour}}
	srv, _ := newTestServerWith(t, cfg)
	app := srv.App()

	for i := 1; i <= 50; i++ {
		status, _ := send(t, app, fiber.MethodGet, "/test", nil)
		require.Equal(t, fiber.StatusOK, status, "request %d", i)
	}

	status, body := send(t, app, fiber.MethodGet, "/test", nil)
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, false, body["success"])

	status, _ = send(t, app, fiber.MethodPost, "/login",
		map[string]any{"account_number": "345678912345", "password": "Password1"})
	assert.Equal(t, fiber.StatusTooManyRequests, status)

	status, _ = send(t, app, fiber.MethodGet, "/healthz", nil)
	assert.Equal(t, fiber.StatusOK, status, "health checks are exempt")
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	app := srv.App()

	for _, path := range []string{"/no/such/route", "/profile/extra/segments"} {
		status, body := send(t, app, fiber.MethodGet, path, nil)
		assert.Equal(t, fiber.StatusNotFound, status, path)
		assert.Equal(t, false, body["success"], path)
	}

	// A single segment matches PUT and DELETE /:account_number.
	status, _ := send(t, app, fiber.MethodGet, "/no-such-route", nil)
	assert.Equal(t, fiber.StatusMethodNotAllowed, status)
}

func TestNewRequiresDatabaseOutsideDev(t *testing.T) {
	_, err := New(routes.Deps{Cfg: testConfig(), Logger: logging.Discard()})
	assert.ErrorContains(t, err, "database is required")
}

func TestNewFallsBackToMemoryStoreInDev(t *testing.T) {
	cfg := testConfig()
	cfg.AppEnv = "development"
	srv, err := New(routes.Deps{Cfg: cfg, Logger: logging.Discard()})
	require.NoError(t, err)

	status, body := send(t, srv.App(), fiber.MethodGet, "/db_check", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "connected", body["database"])
}
