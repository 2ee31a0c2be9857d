package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/phoneauth/internal/account"
	"github.com/congo-pay/phoneauth/internal/audit"
	"github.com/congo-pay/phoneauth/internal/middleware"
)

// Handler exposes sign-in, sign-out, PIN and framework token endpoints.
type Handler struct {
	gateway *Gateway
	tokens  *TokenService
}

func NewHandler(gateway *Gateway, tokens *TokenService) *Handler {
	return &Handler{gateway: gateway, tokens: tokens}
}

type credentialsRequest struct {
	Phone    string `json:"phone" form:"phone"`
	Password string `json:"password" form:"password"`
}

type signInResponse struct {
	SessionToken string       `json:"session_token"`
	User         account.View `json:"user"`
}

type pinRequest struct {
	PIN string `json:"pin"`
}

type refreshRequest struct {
	Refresh string `json:"refresh" form:"refresh"`
}

// messages maps gateway errors to their HTTP status and client message.
var messages = map[error]struct {
	status  int
	message string
}{
	ErrPhoneNotNumeric:    {http.StatusBadRequest, "Phone must be numeric"},
	ErrPasswordTooShort:   {http.StatusBadRequest, "Password must be at least 3 characters long"},
	ErrUserNotFound:       {http.StatusBadRequest, "User does not exist"},
	ErrInvalidPassword:    {http.StatusBadRequest, "Invalid password"},
	ErrAlreadyLoggedIn:    {http.StatusBadRequest, "User already logged in"},
	ErrSessionMissing:     {http.StatusUnauthorized, "Session token missing"},
	ErrInvalidSession:     {http.StatusUnauthorized, "Invalid session token"},
	ErrForbidden:          {http.StatusForbidden, "Unauthorized access"},
	ErrInvalidPINFormat:   {http.StatusBadRequest, "PIN must be a 4 or 6 digit number"},
	account.ErrPINNotSet:  {http.StatusBadRequest, "PIN not set"},
	account.ErrInvalidPIN: {http.StatusBadRequest, "Invalid PIN"},
	ErrInvalidCredentials: {http.StatusUnauthorized, "No active account found with the given credentials"},
	ErrInvalidToken:       {http.StatusUnauthorized, "Token is invalid or expired"},
}

func toHTTP(err error) error {
	for target, m := range messages {
		if errors.Is(err, target) {
			return fiber.NewError(m.status, m.message)
		}
	}
	return err
}

// SignIn authenticates phone and password (form or JSON) and opens a session.
func (h *Handler) SignIn(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPost {
		return fiber.NewError(http.StatusBadRequest, "Invalid request method")
	}
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.gateway.SignIn(c.UserContext(), req.Phone, req.Password)
	if err != nil {
		return toHTTP(err)
	}
	middleware.SetIdentity(c, res.Account.ID, middleware.MethodSession)
	return c.Status(http.StatusOK).JSON(signInResponse{SessionToken: res.Token, User: res.Account})
}

// SignOut clears the session of the account in the path.
func (h *Handler) SignOut(c *fiber.Ctx) error {
	id, err := account.ParseID(c.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "Invalid user ID")
	}
	if err := h.gateway.SignOut(c.UserContext(), id); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return fiber.NewError(http.StatusNotFound, "Invalid user ID")
		}
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": "Logout success"})
}

// AddPIN sets the step-up PIN of the session owner.
func (h *Handler) AddPIN(c *fiber.Ctx) error {
	id, pin, err := h.authorizedPIN(c, audit.KindPINSet)
	if err != nil {
		return err
	}
	if err := h.gateway.AddPIN(c.UserContext(), id, pin); err != nil {
		return toHTTP(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": "PIN set successfully"})
}

// VerifyPIN checks the step-up PIN of the session owner.
func (h *Handler) VerifyPIN(c *fiber.Ctx) error {
	id, pin, err := h.authorizedPIN(c, audit.KindPINVerify)
	if err != nil {
		return err
	}
	if err := h.gateway.VerifyPIN(c.UserContext(), id, pin); err != nil {
		return toHTTP(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": "PIN verified"})
}

// authorizedPIN runs the checks shared by the PIN endpoints in order:
// method, session header, ownership, then body.
func (h *Handler) authorizedPIN(c *fiber.Ctx, kind string) (int64, string, error) {
	if c.Method() != fiber.MethodPost {
		return 0, "", fiber.NewError(http.StatusMethodNotAllowed, "Only POST method allowed")
	}
	token := c.Get(middleware.SessionTokenHeader)
	// A malformed id resolves to 0, which no session owns.
	id, _ := account.ParseID(c.Params("id"))
	if err := h.gateway.Authorize(c.UserContext(), token, id, kind); err != nil {
		return 0, "", toHTTP(err)
	}

	var req pinRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return 0, "", fiber.NewError(http.StatusBadRequest, "Invalid JSON body")
	}
	return id, req.PIN, nil
}

// TokenLogin issues an access/refresh token pair.
func (h *Handler) TokenLogin(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Phone == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "phone and password are required")
	}
	pair, err := h.tokens.Login(c.UserContext(), req.Phone, req.Password)
	if err != nil {
		return toHTTP(err)
	}
	return c.Status(http.StatusOK).JSON(pair)
}

// TokenRefresh exchanges a refresh token for a new access token.
func (h *Handler) TokenRefresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Refresh == "" {
		return fiber.NewError(http.StatusBadRequest, "refresh is required")
	}
	access, err := h.tokens.Refresh(c.UserContext(), req.Refresh)
	if err != nil {
		return toHTTP(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"access": access})
}
