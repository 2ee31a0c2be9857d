// Package admin bootstraps privileged accounts.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/phoneauth/internal/account"
	"github.com/congo-pay/phoneauth/internal/audit"
	"github.com/congo-pay/phoneauth/internal/wallet"
)

var (
	ErrCredentialsRequired = errors.New("phone and password required")
	ErrPhoneNotNumeric     = errors.New("phone must be numeric")
	ErrUserExists          = errors.New("user already exists")
)

// Service creates superuser accounts together with their wallet.
type Service struct {
	accounts *account.Service
	wallets  *wallet.Service
	recorder audit.Recorder
}

func NewService(accounts *account.Service, wallets *wallet.Service, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{accounts: accounts, wallets: wallets, recorder: recorder}
}

// SuperuserInput carries the bootstrap request.
type SuperuserInput struct {
	Phone    string
	Name     string
	Password string
}

// CreateSuperuser provisions a staff and superuser account with a zero-balance
// wallet. If the wallet cannot be created the account is removed again.
func (s *Service) CreateSuperuser(ctx context.Context, in SuperuserInput) (account.Account, error) {
	phone := strings.TrimSpace(in.Phone)
	if phone == "" || in.Password == "" {
		return account.Account{}, ErrCredentialsRequired
	}
	if !account.IsNumeric(phone) {
		return account.Account{}, ErrPhoneNotNumeric
	}
	exists, err := s.accounts.PhoneExists(ctx, phone)
	if err != nil {
		return account.Account{}, err
	}
	if exists {
		return account.Account{}, ErrUserExists
	}

	acc, err := s.accounts.CreateSuperuser(ctx, account.NewAccount{Phone: phone, Name: in.Name, Password: in.Password})
	if err != nil {
		if errors.Is(err, account.ErrPhoneTaken) {
			return account.Account{}, ErrUserExists
		}
		return account.Account{}, err
	}

	if _, err := s.wallets.Create(ctx, wallet.CreateInput{UserID: acc.ID, Balance: decimal.Zero}); err != nil {
		if rbErr := s.accounts.Delete(ctx, acc.ID); rbErr != nil {
			return account.Account{}, fmt.Errorf("provision wallet: %w (rollback: %v)", err, rbErr)
		}
		return account.Account{}, fmt.Errorf("provision wallet: %w", err)
	}

	s.recorder.Record(ctx, audit.Event{Kind: audit.KindSuperuserCreated, AccountID: acc.ID, Phone: acc.Phone, Outcome: audit.OutcomeSuccess})
	return acc, nil
}
