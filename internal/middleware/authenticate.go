package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/phoneauth/internal/session"
)

const (
	// SessionTokenHeader carries the opaque session token issued by sign-in.
	SessionTokenHeader = "Session-Token"

	localAccountID  = "account_id"
	localAuthMethod = "auth_method"

	MethodSession = "session"
	MethodBearer  = "bearer"
)

// SessionResolver maps a session token to the owning account.
// Unknown tokens yield session.ErrNotFound.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (int64, error)
}

// BearerVerifier validates a framework access token and returns the account id.
type BearerVerifier interface {
	VerifyAccess(ctx context.Context, token string) (int64, error)
}

// Authenticate resolves the caller identity from the session-token header or,
// failing that, a bearer access token. Requests carrying neither proceed
// anonymously; a token that is present but invalid is rejected with 401.
func Authenticate(sessions SessionResolver, bearer BearerVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token := c.Get(SessionTokenHeader); token != "" && sessions != nil {
			id, err := sessions.ResolveSession(c.UserContext(), token)
			if err != nil {
				if errors.Is(err, session.ErrNotFound) {
					return fiber.NewError(http.StatusUnauthorized, "Invalid session token")
				}
				return err
			}
			c.Locals(localAccountID, id)
			c.Locals(localAuthMethod, MethodSession)
			return c.Next()
		}

		authz := c.Get(fiber.HeaderAuthorization)
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") && bearer != nil {
			tokenStr := strings.TrimSpace(authz[len("Bearer "):])
			id, err := bearer.VerifyAccess(c.UserContext(), tokenStr)
			if err != nil {
				return fiber.NewError(http.StatusUnauthorized, "Given token not valid for any token type")
			}
			c.Locals(localAccountID, id)
			c.Locals(localAuthMethod, MethodBearer)
		}
		return c.Next()
	}
}

// SetIdentity marks the request as authenticated as accountID. Sign-in uses it
// so downstream logging sees the identity that was just established.
func SetIdentity(c *fiber.Ctx, accountID int64, method string) {
	c.Locals(localAccountID, accountID)
	c.Locals(localAuthMethod, method)
}

// AccountID returns the authenticated account id, if any.
func AccountID(c *fiber.Ctx) (int64, bool) {
	id, ok := c.Locals(localAccountID).(int64)
	return id, ok && id != 0
}

// AuthMethod reports which credential authenticated the request.
func AuthMethod(c *fiber.Ctx) string {
	m, _ := c.Locals(localAuthMethod).(string)
	return m
}
