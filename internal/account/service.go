package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/congo-pay/phoneauth/internal/audit"
)

// Dependent owns per-account resources that must be released before the
// account itself is deleted.
type Dependent interface {
	Release(ctx context.Context, accountID int64) error
}

// DependentFunc adapts a function to the Dependent interface.
type DependentFunc func(ctx context.Context, accountID int64) error

func (f DependentFunc) Release(ctx context.Context, accountID int64) error {
	return f(ctx, accountID)
}

// Service manages the account lifecycle.
type Service struct {
	repo       Repository
	hasher     *Hasher
	recorder   audit.Recorder
	dependents []Dependent
}

// NewService creates a new account service.
func NewService(repo Repository, hasher *Hasher, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{repo: repo, hasher: hasher, recorder: recorder}
}

// AddDependent registers a resource owner released on account deletion.
func (s *Service) AddDependent(d Dependent) {
	s.dependents = append(s.dependents, d)
}

// Register creates an ordinary, active account. Role flags cannot be set here.
func (s *Service) Register(ctx context.Context, in NewAccount) (Account, error) {
	if err := validateNew(in); err != nil {
		return Account{}, err
	}
	acc, err := s.build(in, defaultName)
	if err != nil {
		return Account{}, err
	}

	created, err := s.repo.Create(ctx, acc)
	if err != nil {
		return Account{}, err
	}
	s.recorder.Record(ctx, audit.Event{Kind: audit.KindRegister, AccountID: created.ID, Phone: created.Phone, Outcome: audit.OutcomeSuccess})
	return created, nil
}

// CreateSuperuser creates an account with staff and superuser flags set.
func (s *Service) CreateSuperuser(ctx context.Context, in NewAccount) (Account, error) {
	if err := validateNew(in); err != nil {
		return Account{}, err
	}
	acc, err := s.build(in, defaultSuperuserName)
	if err != nil {
		return Account{}, err
	}
	acc.IsStaff = true
	acc.IsSuperuser = true
	return s.repo.Create(ctx, acc)
}

func (s *Service) build(in NewAccount, fallbackName string) (Account, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Account{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = fallbackName
	}
	acc := Account{
		Phone:        in.Phone,
		Name:         name,
		PasswordHash: hash,
		IsActive:     true,
	}
	if in.PIN != "" {
		if acc.PINHash, err = s.hasher.Hash(in.PIN); err != nil {
			return Account{}, err
		}
	}
	return acc, nil
}

// Get retrieves an account by id.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.FindByID(ctx, id)
}

// GetByPhone retrieves an account by phone number.
func (s *Service) GetByPhone(ctx context.Context, phone string) (Account, error) {
	return s.repo.FindByPhone(ctx, phone)
}

// PhoneExists reports whether an account already uses phone.
func (s *Service) PhoneExists(ctx context.Context, phone string) (bool, error) {
	_, err := s.repo.FindByPhone(ctx, phone)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// List returns all accounts ordered by id.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

// Update applies a partial update. Secrets are re-hashed.
func (s *Service) Update(ctx context.Context, id int64, p Patch) (Account, error) {
	if err := validatePatch(p); err != nil {
		return Account{}, err
	}
	acc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Account{}, err
	}

	if p.Phone != nil {
		acc.Phone = *p.Phone
	}
	if p.Name != nil {
		acc.Name = strings.TrimSpace(*p.Name)
		if acc.Name == "" {
			acc.Name = defaultName
		}
	}
	if p.Password != nil {
		if acc.PasswordHash, err = s.hasher.Hash(*p.Password); err != nil {
			return Account{}, err
		}
	}
	if p.PIN != nil {
		if acc.PINHash, err = s.hasher.Hash(*p.PIN); err != nil {
			return Account{}, err
		}
	}
	if p.IsActive != nil {
		acc.IsActive = *p.IsActive
	}
	if p.IsStaff != nil {
		acc.IsStaff = *p.IsStaff
	}
	if p.IsSuperuser != nil {
		acc.IsSuperuser = *p.IsSuperuser
	}

	updated, err := s.repo.Update(ctx, acc)
	if err != nil {
		return Account{}, err
	}
	s.recorder.Record(ctx, audit.Event{Kind: audit.KindAccountUpdate, AccountID: id, Outcome: audit.OutcomeSuccess})
	return updated, nil
}

// Delete releases dependent resources and removes the account.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}
	for _, d := range s.dependents {
		if err := d.Release(ctx, id); err != nil {
			return fmt.Errorf("release account %d: %w", id, err)
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recorder.Record(ctx, audit.Event{Kind: audit.KindAccountDelete, AccountID: id, Outcome: audit.OutcomeSuccess})
	return nil
}

// CheckPassword reports whether password matches the account's hash.
func (s *Service) CheckPassword(acc Account, password string) bool {
	return s.hasher.Matches(acc.PasswordHash, password)
}

// SetPIN stores a hashed step-up PIN.
func (s *Service) SetPIN(ctx context.Context, id int64, pin string) error {
	if !ValidPIN(pin) {
		return &ValidationError{Fields: map[string]string{"pin": "pin_must_be_4_or_6_digits"}}
	}
	acc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if acc.PINHash, err = s.hasher.Hash(pin); err != nil {
		return err
	}
	_, err = s.repo.Update(ctx, acc)
	return err
}

// VerifyPIN checks pin against the stored hash.
func (s *Service) VerifyPIN(ctx context.Context, id int64, pin string) error {
	acc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !acc.HasPIN() {
		return ErrPINNotSet
	}
	if !s.hasher.Matches(acc.PINHash, pin) {
		return ErrInvalidPIN
	}
	return nil
}

// RecordLogin stamps the account's last login time.
func (s *Service) RecordLogin(ctx context.Context, id int64) (Account, error) {
	acc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Account{}, err
	}
	now := time.Now().UTC()
	acc.LastLogin = &now
	return s.repo.Update(ctx, acc)
}

// RevokeTokens bumps the token version so previously issued bearer tokens stop validating.
func (s *Service) RevokeTokens(ctx context.Context, id int64) error {
	acc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	acc.TokenVersion++
	_, err = s.repo.Update(ctx, acc)
	return err
}
