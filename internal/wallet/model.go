package wallet

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound         = errors.New("wallet not found")
	ErrWalletExists     = errors.New("wallet already exists for user")
	ErrUnknownUser      = errors.New("user does not exist")
	ErrNegativeBalance  = errors.New("balance must not be negative")
	ErrBalancePrecision = errors.New("balance must have at most 2 decimal places")
	ErrBalanceTooLarge  = errors.New("balance must be less than 1000000000000")
)

// maxBalance is the exclusive bound of a NUMERIC(14,2) column.
var maxBalance = decimal.New(1, 12)

func validateBalance(b decimal.Decimal) error {
	switch {
	case b.IsNegative():
		return ErrNegativeBalance
	case !b.Equal(b.Round(2)):
		return ErrBalancePrecision
	case b.GreaterThanOrEqual(maxBalance):
		return ErrBalanceTooLarge
	}
	return nil
}

// Wallet holds the single balance of one account.
type Wallet struct {
	ID        int64
	UserID    int64
	Balance   decimal.Decimal
	UpdatedAt time.Time
}

// View is the wallet's public representation.
type View struct {
	ID        int64     `json:"id"`
	User      int64     `json:"user"`
	Balance   string    `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToView renders the balance with two decimal places.
func ToView(w Wallet) View {
	return View{ID: w.ID, User: w.UserID, Balance: w.Balance.StringFixed(2), UpdatedAt: w.UpdatedAt}
}
