package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/harborside/authcore/config"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doRequest(t *testing.T, mw echo.MiddlewareFunc, handler echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set("X-Real-IP", "192.0.2.1")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	return rec, mw(handler)(c)
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func failHandler(c echo.Context) error {
	return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
}

func TestMiddleware_EnforcesLimit(t *testing.T) {
	mw := Middleware(&Config{
		Store:     NewMemoryStore(),
		Rate:      2,
		Period:    time.Minute,
		KeyPrefix: "login",
	})

	for i := 0; i < 2; i++ {
		_, err := doRequest(t, mw, okHandler)
		require.NoError(t, err)
	}

	_, err := doRequest(t, mw, okHandler)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Code)
}

func TestMiddleware_Defaults(t *testing.T) {
	cfg := &Config{}
	mw := Middleware(cfg)

	assert.NotNil(t, cfg.Store)
	assert.Equal(t, 10, cfg.Rate)
	assert.Equal(t, time.Minute, cfg.Period)
	assert.Equal(t, "default", cfg.KeyPrefix)
	assert.NotNil(t, cfg.KeyGenerator)
	assert.NotNil(t, cfg.OnLimitReached)

	_, err := doRequest(t, mw, okHandler)
	assert.NoError(t, err)
}

func TestMiddleware_Headers(t *testing.T) {
	mw := Middleware(&Config{
		Store:     NewMemoryStore(),
		Rate:      5,
		Period:    time.Minute,
		KeyPrefix: "login",
	})

	rec, err := doRequest(t, mw, okHandler)
	require.NoError(t, err)

	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
}

func TestMiddleware_CountFailures(t *testing.T) {
	mw := Middleware(&Config{
		Store:     NewMemoryStore(),
		Rate:      2,
		Period:    time.Minute,
		CountMode: config.CountFailures,
		KeyPrefix: "login",
	})

	t.Run("successes never consume the budget", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			_, err := doRequest(t, mw, okHandler)
			require.NoError(t, err)
		}
	})

	t.Run("failures do", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_, err := doRequest(t, mw, failHandler)
			require.Error(t, err)
			assert.Equal(t, http.StatusUnauthorized, err.(*echo.HTTPError).Code)
		}

		_, err := doRequest(t, mw, failHandler)
		require.Error(t, err)
		assert.Equal(t, http.StatusTooManyRequests, err.(*echo.HTTPError).Code)
	})
}

func TestMiddleware_ConcurrentFailuresEachConsumeOneUnit(t *testing.T) {
	store := NewMemoryStore()
	mw := Middleware(&Config{
		Store:     store,
		Rate:      100,
		Period:    time.Minute,
		CountMode: config.CountFailures,
		KeyPrefix: "login",
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
			req.Header.Set("X-Real-IP", "192.0.2.1")
			c := e.NewContext(req, httptest.NewRecorder())

			_ = mw(failHandler)(c)
		}()
	}
	wg.Wait()

	count, _, exists := store.Get("rate_limit:login:192.0.2.1")
	require.True(t, exists)
	assert.Equal(t, 10, count)
}

func TestMiddleware_CountSuccess(t *testing.T) {
	mw := Middleware(&Config{
		Store:     NewMemoryStore(),
		Rate:      1,
		Period:    time.Minute,
		CountMode: config.CountSuccess,
		KeyPrefix: "login",
	})

	_, err := doRequest(t, mw, okHandler)
	require.NoError(t, err)

	_, err = doRequest(t, mw, okHandler)
	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, err.(*echo.HTTPError).Code)
}

func TestMiddleware_PrefixesAreIndependentBuckets(t *testing.T) {
	store := NewMemoryStore()
	login := Middleware(&Config{Store: store, Rate: 1, Period: time.Minute, KeyPrefix: "login"})
	refresh := Middleware(&Config{Store: store, Rate: 1, Period: time.Minute, KeyPrefix: "refresh"})

	_, err := doRequest(t, login, okHandler)
	require.NoError(t, err)

	_, err = doRequest(t, login, okHandler)
	require.Error(t, err)

	// Exhausting the login bucket leaves the refresh bucket untouched.
	_, err = doRequest(t, refresh, okHandler)
	assert.NoError(t, err)
}

func TestMiddleware_CustomOnLimitReached(t *testing.T) {
	called := false
	mw := Middleware(&Config{
		Store:     NewMemoryStore(),
		Rate:      1,
		Period:    time.Minute,
		KeyPrefix: "login",
		OnLimitReached: func(c echo.Context) error {
			called = true
			return c.String(http.StatusTooManyRequests, "slow down")
		},
	})

	_, err := doRequest(t, mw, okHandler)
	require.NoError(t, err)

	rec, err := doRequest(t, mw, okHandler)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestIPKeyGenerator(t *testing.T) {
	e := echo.New()

	t.Run("uses the real ip", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-IP", "192.0.2.9")
		c := e.NewContext(req, httptest.NewRecorder())

		assert.Equal(t, "rate_limit:login:192.0.2.9", IPKeyGenerator("login")(c))
	})

	t.Run("falls back when the ip is unknown", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		c := e.NewContext(req, httptest.NewRecorder())

		assert.Contains(t, IPKeyGenerator("login")(c), "rate_limit:login:")
	})
}

func TestNewStore(t *testing.T) {
	for _, name := range []string{"memory", "unknown"} {
		store := NewStore(&config.RateLimitConfig{Store: name})
		require.NotNil(t, store)
		assert.IsType(t, &MemoryStore{}, store)
	}
}
