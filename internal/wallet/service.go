package wallet

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/phoneauth/internal/account"
)

// Owners resolves the account a wallet belongs to.
type Owners interface {
	Get(ctx context.Context, id int64) (account.Account, error)
}

// Service exposes wallet operations.
type Service struct {
	repo   Repository
	owners Owners
}

// NewService builds a wallet service instance.
func NewService(repo Repository, owners Owners) *Service {
	return &Service{repo: repo, owners: owners}
}

// CreateInput captures data required to create a wallet.
type CreateInput struct {
	UserID  int64
	Balance decimal.Decimal
}

// Create provisions the wallet of an existing account.
func (s *Service) Create(ctx context.Context, input CreateInput) (Wallet, error) {
	if err := validateBalance(input.Balance); err != nil {
		return Wallet{}, err
	}
	if s.owners != nil {
		if _, err := s.owners.Get(ctx, input.UserID); err != nil {
			if errors.Is(err, account.ErrNotFound) {
				return Wallet{}, ErrUnknownUser
			}
			return Wallet{}, err
		}
	}
	return s.repo.Create(ctx, Wallet{UserID: input.UserID, Balance: input.Balance})
}

// Get retrieves a wallet by id.
func (s *Service) Get(ctx context.Context, id int64) (Wallet, error) {
	return s.repo.Get(ctx, id)
}

// GetByOwner retrieves the wallet of an account.
func (s *Service) GetByOwner(ctx context.Context, userID int64) (Wallet, error) {
	return s.repo.GetByUser(ctx, userID)
}

// List returns all wallets ordered by id.
func (s *Service) List(ctx context.Context) ([]Wallet, error) {
	return s.repo.List(ctx)
}

// SetBalance overwrites the balance of a wallet.
func (s *Service) SetBalance(ctx context.Context, id int64, balance decimal.Decimal) (Wallet, error) {
	if err := validateBalance(balance); err != nil {
		return Wallet{}, err
	}
	return s.repo.Update(ctx, Wallet{ID: id, Balance: balance})
}

// Delete removes a wallet.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Release deletes the wallet of an account being removed.
func (s *Service) Release(ctx context.Context, accountID int64) error {
	return s.repo.DeleteByUser(ctx, accountID)
}
