package wallet

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	User    int64            `json:"user"`
	Balance *decimal.Decimal `json:"balance"`
}

type updateRequest struct {
	Balance *decimal.Decimal `json:"balance"`
}

// List returns all wallets, or only the wallet of ?user=<id>.
func (h *Handler) List(c *fiber.Ctx) error {
	if raw := c.Query("user"); raw != "" {
		return h.listByOwner(c, raw)
	}
	wallets, err := h.service.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(lo.Map(wallets, func(w Wallet, _ int) View { return ToView(w) }))
}

func (h *Handler) listByOwner(c *fiber.Ctx, raw string) error {
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "user must be an integer")
	}
	w, err := h.service.GetByOwner(c.UserContext(), userID)
	if errors.Is(err, ErrNotFound) {
		return c.Status(http.StatusOK).JSON([]View{})
	}
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON([]View{ToView(w)})
}

// Create provisions a wallet for an account.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.User <= 0 {
		return fiber.NewError(http.StatusBadRequest, "user is required")
	}
	balance := decimal.Zero
	if req.Balance != nil {
		balance = *req.Balance
	}
	w, err := h.service.Create(c.UserContext(), CreateInput{UserID: req.User, Balance: balance})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(ToView(w))
}

// Get returns one wallet.
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	w, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(ToView(w))
}

// Update changes the balance; PUT and PATCH share it.
func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Balance == nil {
		w, err := h.service.Get(c.UserContext(), id)
		if err != nil {
			return mapError(err)
		}
		return c.Status(http.StatusOK).JSON(ToView(w))
	}
	w, err := h.service.SetBalance(c.UserContext(), id, *req.Balance)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(ToView(w))
}

// Delete removes a wallet.
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(http.StatusNotFound, "Not found")
	}
	return id, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "Not found")
	case errors.Is(err, ErrWalletExists), errors.Is(err, ErrUnknownUser), errors.Is(err, ErrNegativeBalance),
		errors.Is(err, ErrBalancePrecision), errors.Is(err, ErrBalanceTooLarge):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
