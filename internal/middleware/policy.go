package middleware

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Policy decides whether a caller may run an action.
type Policy int

const (
	IsAuthenticated Policy = iota
	AllowAny
)

func (p Policy) String() string {
	switch p {
	case AllowAny:
		return "allow_any"
	default:
		return "is_authenticated"
	}
}

// Policies is a per-action permission table with a fallback for actions that
// have no explicit entry.
type Policies struct {
	fallback Policy
	byAction map[string]Policy
}

// NewPolicies builds a table from fallback and per-action overrides.
func NewPolicies(fallback Policy, overrides map[string]Policy) Policies {
	byAction := make(map[string]Policy, len(overrides))
	for action, p := range overrides {
		byAction[action] = p
	}
	return Policies{fallback: fallback, byAction: byAction}
}

// For returns the policy applied to action.
func (p Policies) For(action string) Policy {
	if policy, ok := p.byAction[action]; ok {
		return policy
	}
	return p.fallback
}

// Guard enforces the policy for action before the handler runs. It expects
// Authenticate to have run earlier in the chain.
func (p Policies) Guard(action string) fiber.Handler {
	policy := p.For(action)
	return func(c *fiber.Ctx) error {
		if policy == AllowAny {
			return c.Next()
		}
		if _, ok := AccountID(c); !ok {
			return fiber.NewError(http.StatusUnauthorized, "Authentication credentials were not provided")
		}
		return c.Next()
	}
}
