package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/congo-pay/phoneauth/internal/logging"
	"github.com/congo-pay/phoneauth/internal/session"
)

type fakeSessions map[string]int64

func (f fakeSessions) ResolveSession(_ context.Context, token string) (int64, error) {
	if id, ok := f[token]; ok {
		return id, nil
	}
	return 0, session.ErrNotFound
}

type fakeBearer map[string]int64

func (f fakeBearer) VerifyAccess(_ context.Context, token string) (int64, error) {
	if id, ok := f[token]; ok {
		return id, nil
	}
	return 0, errors.New("bad token")
}

func newGuardedApp() *fiber.App {
	policies := NewPolicies(IsAuthenticated, map[string]Policy{"thing.create": AllowAny})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	app.Use(Authenticate(fakeSessions{"abcdefghij": 7}, fakeBearer{"jwt-ok": 9}))
	whoami := func(c *fiber.Ctx) error {
		id, _ := AccountID(c)
		return c.JSON(fiber.Map{"account_id": id, "method": AuthMethod(c)})
	}
	app.Post("/things", policies.Guard("thing.create"), whoami)
	app.Get("/things", policies.Guard("thing.list"), whoami)
	return app
}

func do(t *testing.T, app *fiber.App, method string, headers map[string]string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, "/things", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestPoliciesFallback(t *testing.T) {
	p := NewPolicies(IsAuthenticated, map[string]Policy{"account.create": AllowAny})
	assert.Equal(t, AllowAny, p.For("account.create"))
	assert.Equal(t, IsAuthenticated, p.For("account.list"))
	assert.Equal(t, "is_authenticated", p.For("wallet.update").String())
}

func TestAuthenticateAndGuard(t *testing.T) {
	app := newGuardedApp()

	tests := []struct {
		name       string
		method     string
		headers    map[string]string
		wantStatus int
		wantID     int64
		wantMethod string
		wantError  string
	}{
		{name: "anonymous create allowed", method: http.MethodPost, wantStatus: http.StatusOK},
		{name: "anonymous list rejected", method: http.MethodGet, wantStatus: http.StatusUnauthorized,
			wantError: "Authentication credentials were not provided"},
		{name: "session header", method: http.MethodGet, headers: map[string]string{"session-token": "abcdefghij"},
			wantStatus: http.StatusOK, wantID: 7, wantMethod: MethodSession},
		{name: "unknown session header", method: http.MethodPost, headers: map[string]string{"session-token": "nope"},
			wantStatus: http.StatusUnauthorized, wantError: "Invalid session token"},
		{name: "bearer token", method: http.MethodGet, headers: map[string]string{"Authorization": "Bearer jwt-ok"},
			wantStatus: http.StatusOK, wantID: 9, wantMethod: MethodBearer},
		{name: "bad bearer token", method: http.MethodGet, headers: map[string]string{"Authorization": "Bearer forged"},
			wantStatus: http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, body := do(t, app, tc.method, tc.headers)
			require.Equal(t, tc.wantStatus, status, body)
			if tc.wantError != "" {
				assert.Equal(t, tc.wantError, gjson.Get(body, "error").String())
			}
			if tc.wantStatus == http.StatusOK {
				assert.Equal(t, tc.wantID, gjson.Get(body, "account_id").Int())
				assert.Equal(t, tc.wantMethod, gjson.Get(body, "method").String())
			}
		})
	}
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("pq: connection refused") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal server error", gjson.GetBytes(body, "error").String())
}
