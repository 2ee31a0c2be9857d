package admin

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/phoneauth/internal/account"
)

// Handler exposes the superuser bootstrap endpoint.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type superuserRequest struct {
	Phone    string `json:"phone" form:"phone"`
	Name     string `json:"name" form:"name"`
	Password string `json:"password" form:"password"`
}

// CreateSuperuser handles POST /create-superuser.
func (h *Handler) CreateSuperuser(c *fiber.Ctx) error {
	var req superuserRequest
	if err := c.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return fiber.NewError(http.StatusBadRequest, "Invalid request body")
	}

	acc, err := h.service.CreateSuperuser(c.UserContext(), SuperuserInput{Phone: req.Phone, Name: req.Name, Password: req.Password})
	if err != nil {
		var verr *account.ValidationError
		switch {
		case errors.Is(err, ErrCredentialsRequired):
			return fiber.NewError(http.StatusBadRequest, "Phone and password required")
		case errors.Is(err, ErrPhoneNotNumeric):
			return fiber.NewError(http.StatusBadRequest, "Phone must be numeric")
		case errors.Is(err, ErrUserExists):
			return fiber.NewError(http.StatusConflict, "User already exists")
		case errors.As(err, &verr):
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "validation failed", "fields": verr.Fields})
		default:
			return err
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Superuser created", "user_id": acc.ID})
}
