package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/congo-pay/phoneauth/internal/account"
	"github.com/congo-pay/phoneauth/internal/audit"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims carried by access and refresh tokens. Version must match the
// account's token version, which sign-out bumps.
type Claims struct {
	AccountID int64  `json:"uid"`
	Version   int    `json:"ver"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is returned by the framework login endpoint.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenConfig configures signing secrets and lifetimes.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenService issues and verifies HS256 bearer tokens.
type TokenService struct {
	accounts *account.Service
	cfg      TokenConfig
	recorder audit.Recorder
}

func NewTokenService(accounts *account.Service, cfg TokenConfig, recorder audit.Recorder) *TokenService {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &TokenService{accounts: accounts, cfg: cfg, recorder: recorder}
}

// Login validates phone and password and issues an access/refresh pair.
func (s *TokenService) Login(ctx context.Context, phone, password string) (TokenPair, error) {
	acc, err := s.accounts.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}
	if !acc.IsActive || !s.accounts.CheckPassword(acc, password) {
		s.recorder.Record(ctx, audit.Event{Kind: audit.KindTokenLogin, AccountID: acc.ID, Phone: acc.Phone, Outcome: audit.OutcomeDenied})
		return TokenPair{}, ErrInvalidCredentials
	}

	access, err := s.sign(acc, tokenTypeAccess, s.cfg.AccessSecret, s.cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(acc, tokenTypeRefresh, s.cfg.RefreshSecret, s.cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	if _, err := s.accounts.RecordLogin(ctx, acc.ID); err != nil {
		return TokenPair{}, err
	}
	s.recorder.Record(ctx, audit.Event{Kind: audit.KindTokenLogin, AccountID: acc.ID, Phone: acc.Phone, Outcome: audit.OutcomeSuccess})
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh returns a new access token for a valid, current refresh token.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	acc, err := s.verify(ctx, refreshToken, tokenTypeRefresh, s.cfg.RefreshSecret)
	if err != nil {
		return "", err
	}
	return s.sign(acc, tokenTypeAccess, s.cfg.AccessSecret, s.cfg.AccessTTL)
}

// VerifyAccess validates an access token and returns its account id.
func (s *TokenService) VerifyAccess(ctx context.Context, accessToken string) (int64, error) {
	acc, err := s.verify(ctx, accessToken, tokenTypeAccess, s.cfg.AccessSecret)
	if err != nil {
		return 0, err
	}
	return acc.ID, nil
}

func (s *TokenService) sign(acc account.Account, tokenType, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		AccountID: acc.ID,
		Version:   acc.TokenVersion,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (s *TokenService) verify(ctx context.Context, raw, tokenType, secret string) (account.Account, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.TokenType != tokenType {
		return account.Account{}, ErrInvalidToken
	}

	acc, err := s.accounts.Get(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return account.Account{}, ErrInvalidToken
		}
		return account.Account{}, err
	}
	if !acc.IsActive || acc.TokenVersion != claims.Version {
		return account.Account{}, ErrInvalidToken
	}
	return acc, nil
}
