package account

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/congo-pay/phoneauth/internal/middleware"
)

// SessionTokens reports the observable session token of an account, or
// NoSession when it has none.
type SessionTokens interface {
	ActiveToken(ctx context.Context, accountID int64) (string, error)
}

// Handler exposes account CRUD endpoints.
type Handler struct {
	service  *Service
	sessions SessionTokens
}

// NewHandler constructs an account HTTP handler. sessions may be nil.
func NewHandler(service *Service, sessions SessionTokens) *Handler {
	return &Handler{service: service, sessions: sessions}
}

type createRequest struct {
	Phone    string `json:"phone" form:"phone"`
	Name     string `json:"name" form:"name"`
	Password string `json:"password" form:"password"`
	PIN      string `json:"pin" form:"pin"`
}

type updateRequest struct {
	Phone       *string `json:"phone"`
	Name        *string `json:"name"`
	Password    *string `json:"password"`
	PIN         *string `json:"pin"`
	IsActive    *bool   `json:"is_active"`
	IsStaff     *bool   `json:"is_staff"`
	IsSuperuser *bool   `json:"is_superuser"`
}

// List returns all accounts ordered by id.
func (h *Handler) List(c *fiber.Ctx) error {
	accounts, err := h.service.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(lo.Map(accounts, func(a Account, _ int) View { return ToView(a) }))
}

// Create handles self-registration.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	acc, err := h.service.Register(c.UserContext(), NewAccount{Phone: req.Phone, Name: req.Name, Password: req.Password, PIN: req.PIN})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(ToView(acc))
}

// Get returns a single account.
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := ParseID(c.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "Not found")
	}
	acc, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	view := ToView(acc)
	if caller, ok := middleware.AccountID(c); ok && caller == id && h.sessions != nil {
		if view.SessionToken, err = h.sessions.ActiveToken(c.UserContext(), id); err != nil {
			return err
		}
	}
	return c.Status(http.StatusOK).JSON(view)
}

// Update applies a partial update; PUT and PATCH share it.
func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := ParseID(c.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "Not found")
	}
	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	roles := req.IsActive != nil || req.IsStaff != nil || req.IsSuperuser != nil
	if err := h.authorizeWrite(c, id, roles); err != nil {
		return err
	}
	acc, err := h.service.Update(c.UserContext(), id, Patch{
		Phone:       req.Phone,
		Name:        req.Name,
		Password:    req.Password,
		PIN:         req.PIN,
		IsActive:    req.IsActive,
		IsStaff:     req.IsStaff,
		IsSuperuser: req.IsSuperuser,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(ToView(acc))
}

// Delete removes an account together with its session and wallet.
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := ParseID(c.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "Not found")
	}
	if err := h.authorizeWrite(c, id, false); err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// authorizeWrite lets owners change their own account and staff change any
// account. Role flags can only be changed by a superuser.
func (h *Handler) authorizeWrite(c *fiber.Ctx, id int64, roles bool) error {
	callerID, ok := middleware.AccountID(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "Authentication credentials were not provided")
	}
	if callerID == id && !roles {
		return nil
	}
	caller, err := h.service.Get(c.UserContext(), callerID)
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(http.StatusUnauthorized, "Authentication credentials were not provided")
	}
	if err != nil {
		return err
	}
	if roles && !caller.IsSuperuser {
		return fiber.NewError(http.StatusForbidden, "You do not have permission to perform this action.")
	}
	if callerID != id && !caller.IsStaff && !caller.IsSuperuser {
		return fiber.NewError(http.StatusForbidden, "You do not have permission to perform this action.")
	}
	return nil
}

// ParseID parses a path identifier.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrNotFound
	}
	return id, nil
}

func writeError(c *fiber.Ctx, err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, ErrPhoneTaken):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": map[string]string{"phone": "phone_already_registered"},
		})
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "Not found")
	default:
		return err
	}
}
