package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/congo-pay/phoneauth/internal/account"
	"github.com/congo-pay/phoneauth/internal/audit"
	"github.com/congo-pay/phoneauth/internal/session"
)

const maxOpenAttempts = 3

// Gateway implements phone/password sign-in with a single active session per
// account, sign-out, session-token resolution and the step-up PIN.
type Gateway struct {
	accounts *account.Service
	sessions session.Store
	issuer   *session.Issuer
	recorder audit.Recorder
	ttl      time.Duration
	now      func() time.Time
}

// NewGateway wires the gateway. ttl of zero keeps sessions until sign-out.
func NewGateway(accounts *account.Service, sessions session.Store, issuer *session.Issuer, recorder audit.Recorder, ttl time.Duration) *Gateway {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Gateway{
		accounts: accounts,
		sessions: sessions,
		issuer:   issuer,
		recorder: recorder,
		ttl:      ttl,
		now:      time.Now,
	}
}

// SignInResult is returned on successful sign-in.
type SignInResult struct {
	Token   string
	Session session.Session
	Account account.View
}

// SignIn verifies phone and password and opens a session. If the account
// already has a session, that session is revoked and the attempt is refused
// with ErrAlreadyLoggedIn; an immediate retry then succeeds.
func (g *Gateway) SignIn(ctx context.Context, phone, password string) (SignInResult, error) {
	if !account.IsNumeric(phone) {
		return SignInResult{}, ErrPhoneNotNumeric
	}
	if !account.ValidPassword(password) {
		return SignInResult{}, ErrPasswordTooShort
	}

	acc, err := g.accounts.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return SignInResult{}, ErrUserNotFound
		}
		return SignInResult{}, err
	}
	if !g.accounts.CheckPassword(acc, password) {
		g.deny(ctx, audit.KindSignIn, acc, "invalid_password")
		return SignInResult{}, ErrInvalidPassword
	}

	if _, err := g.sessions.ByAccount(ctx, acc.ID); err == nil {
		return SignInResult{}, g.rejectActive(ctx, acc)
	} else if !errors.Is(err, session.ErrNotFound) {
		return SignInResult{}, err
	}

	var opened session.Session
	for attempt := 0; ; attempt++ {
		if attempt == maxOpenAttempts {
			return SignInResult{}, fmt.Errorf("open session for account %d: %w", acc.ID, session.ErrTokenCollision)
		}
		token, err := g.issuer.Generate()
		if err != nil {
			return SignInResult{}, err
		}
		candidate := session.New(token, acc.ID, g.now(), g.ttl)
		err = g.sessions.Open(ctx, candidate)
		if err == nil {
			opened = candidate
			break
		}
		switch {
		case errors.Is(err, session.ErrTokenCollision):
			continue
		case errors.Is(err, session.ErrActiveSession):
			// Lost a race with a concurrent sign-in for the same account.
			return SignInResult{}, g.rejectActive(ctx, acc)
		default:
			return SignInResult{}, err
		}
	}

	acc, err = g.accounts.RecordLogin(ctx, acc.ID)
	if err != nil {
		return SignInResult{}, err
	}
	g.recorder.Record(ctx, audit.Event{Kind: audit.KindSignIn, AccountID: acc.ID, Phone: acc.Phone, Outcome: audit.OutcomeSuccess})

	view := account.ToView(acc)
	view.SessionToken = opened.Token
	return SignInResult{Token: opened.Token, Session: opened, Account: view}, nil
}

func (g *Gateway) rejectActive(ctx context.Context, acc account.Account) error {
	if err := g.sessions.Revoke(ctx, acc.ID); err != nil {
		return err
	}
	g.deny(ctx, audit.KindSignIn, acc, "already_logged_in")
	return ErrAlreadyLoggedIn
}

// SignOut revokes the account's session, whatever its state, and invalidates
// previously issued bearer tokens.
func (g *Gateway) SignOut(ctx context.Context, accountID int64) error {
	acc, err := g.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if err := g.sessions.Revoke(ctx, acc.ID); err != nil {
		return err
	}
	if err := g.accounts.RevokeTokens(ctx, acc.ID); err != nil {
		return err
	}
	g.recorder.Record(ctx, audit.Event{Kind: audit.KindSignOut, AccountID: acc.ID, Outcome: audit.OutcomeSuccess})
	return nil
}

// ResolveSession returns the account bound to token. Unknown or expired
// tokens yield session.ErrNotFound.
func (g *Gateway) ResolveSession(ctx context.Context, token string) (int64, error) {
	s, err := g.sessions.ByToken(ctx, token)
	if err != nil {
		return 0, err
	}
	return s.AccountID, nil
}

// ActiveToken returns the account's session token or account.NoSession.
func (g *Gateway) ActiveToken(ctx context.Context, accountID int64) (string, error) {
	s, err := g.sessions.ByAccount(ctx, accountID)
	if errors.Is(err, session.ErrNotFound) {
		return account.NoSession, nil
	}
	if err != nil {
		return "", err
	}
	return s.Token, nil
}

// Authorize checks that token is a live session belonging to accountID.
// Denials are audited under kind.
func (g *Gateway) Authorize(ctx context.Context, token string, accountID int64, kind string) error {
	if token == "" {
		return ErrSessionMissing
	}
	owner, err := g.ResolveSession(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrInvalidSession
		}
		return err
	}
	if owner != accountID {
		g.recorder.Record(ctx, audit.Event{Kind: kind, AccountID: owner, Outcome: audit.OutcomeDenied, Reason: "foreign_account"})
		return ErrForbidden
	}
	return nil
}

// AddPIN stores the step-up PIN of an authorized account.
func (g *Gateway) AddPIN(ctx context.Context, accountID int64, pin string) error {
	if !account.ValidPIN(pin) {
		return ErrInvalidPINFormat
	}
	if err := g.accounts.SetPIN(ctx, accountID, pin); err != nil {
		return err
	}
	g.recorder.Record(ctx, audit.Event{Kind: audit.KindPINSet, AccountID: accountID, Outcome: audit.OutcomeSuccess})
	return nil
}

// VerifyPIN checks the step-up PIN of an authorized account.
func (g *Gateway) VerifyPIN(ctx context.Context, accountID int64, pin string) error {
	err := g.accounts.VerifyPIN(ctx, accountID, pin)
	outcome := audit.OutcomeSuccess
	if err != nil {
		outcome = audit.OutcomeDenied
	}
	g.recorder.Record(ctx, audit.Event{Kind: audit.KindPINVerify, AccountID: accountID, Outcome: outcome})
	return err
}

func (g *Gateway) deny(ctx context.Context, kind string, acc account.Account, reason string) {
	g.recorder.Record(ctx, audit.Event{Kind: kind, AccountID: acc.ID, Phone: acc.Phone, Outcome: audit.OutcomeDenied, Reason: reason})
}
