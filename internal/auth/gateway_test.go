package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/congo-pay/phoneauth/internal/account"
	"github.com/congo-pay/phoneauth/internal/audit"
	"github.com/congo-pay/phoneauth/internal/session"
)

type fixture struct {
	accounts *account.Service
	sessions session.Store
	gateway  *Gateway
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	accounts := account.NewService(account.NewMemoryRepository(), account.NewHasher(bcrypt.MinCost), nil)
	sessions := session.NewMemoryStore(nil)
	return fixture{
		accounts: accounts,
		sessions: sessions,
		gateway:  NewGateway(accounts, sessions, session.NewIssuer(), nil, 0),
	}
}

func (f fixture) register(t *testing.T, phone, password string) account.Account {
	t.Helper()
	acc, err := f.accounts.Register(context.Background(), account.NewAccount{Phone: phone, Password: password})
	require.NoError(t, err)
	return acc
}

func TestSignInValidationOrder(t *testing.T) {
	f := newFixture(t)
	f.register(t, "1234567890", "secret123")

	tests := []struct {
		name     string
		phone    string
		password string
		want     error
	}{
		{"empty phone", "", "secret123", ErrPhoneNotNumeric},
		{"letters in phone", "12ab", "x", ErrPhoneNotNumeric},
		{"padded phone", " 1234567890", "secret123", ErrPhoneNotNumeric},
		{"short password", "1234567890", "ab", ErrPasswordTooShort},
		{"unknown phone", "9999999999", "abc", ErrUserNotFound},
		{"wrong password", "1234567890", "secret124", ErrInvalidPassword},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.gateway.SignIn(context.Background(), tc.phone, tc.password)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	acc, err := f.accounts.GetByPhone(context.Background(), "1234567890")
	require.NoError(t, err)
	token, err := f.gateway.ActiveToken(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, account.NoSession, token)
	assert.Nil(t, acc.LastLogin)
}

func TestSignInSingleActiveSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.register(t, "1234567890", "secret123")

	first, err := f.gateway.SignIn(ctx, "1234567890", "secret123")
	require.NoError(t, err)
	assert.Len(t, first.Token, session.TokenLength)
	assert.Equal(t, first.Token, first.Account.SessionToken)
	assert.NotNil(t, first.Account.LastLogin)

	owner, err := f.gateway.ResolveSession(ctx, first.Token)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, owner)

	// The second attempt is refused and clears the existing session.
	_, err = f.gateway.SignIn(ctx, "1234567890", "secret123")
	require.ErrorIs(t, err, ErrAlreadyLoggedIn)
	token, err := f.gateway.ActiveToken(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, account.NoSession, token)
	_, err = f.gateway.ResolveSession(ctx, first.Token)
	assert.ErrorIs(t, err, session.ErrNotFound)

	third, err := f.gateway.SignIn(ctx, "1234567890", "secret123")
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, third.Token)
}

func TestSignOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.register(t, "1234567890", "secret123")

	res, err := f.gateway.SignIn(ctx, "1234567890", "secret123")
	require.NoError(t, err)

	require.NoError(t, f.gateway.SignOut(ctx, acc.ID))
	token, err := f.gateway.ActiveToken(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, account.NoSession, token)
	_, err = f.gateway.ResolveSession(ctx, res.Token)
	assert.ErrorIs(t, err, session.ErrNotFound)

	after, err := f.accounts.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, acc.TokenVersion+1, after.TokenVersion)

	// Signing out without a session is not an error.
	assert.NoError(t, f.gateway.SignOut(ctx, acc.ID))
	assert.ErrorIs(t, f.gateway.SignOut(ctx, 404), ErrUserNotFound)
}

func TestExpiredSessionAllowsNewSignIn(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	accounts := account.NewService(account.NewMemoryRepository(), account.NewHasher(bcrypt.MinCost), nil)
	g := NewGateway(accounts, session.NewMemoryStore(clock), session.NewIssuer(), nil, time.Hour)
	g.now = clock
	_, err := accounts.Register(ctx, account.NewAccount{Phone: "555", Password: "secret"})
	require.NoError(t, err)

	res, err := g.SignIn(ctx, "555", "secret")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = g.ResolveSession(ctx, res.Token)
	assert.ErrorIs(t, err, session.ErrNotFound)
	_, err = g.SignIn(ctx, "555", "secret")
	assert.NoError(t, err)
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "111", "secret")
	bob := f.register(t, "222", "secret")

	res, err := f.gateway.SignIn(ctx, "111", "secret")
	require.NoError(t, err)

	assert.ErrorIs(t, f.gateway.Authorize(ctx, "", alice.ID, audit.KindPINSet), ErrSessionMissing)
	assert.ErrorIs(t, f.gateway.Authorize(ctx, "zzzzzzzzzz", alice.ID, audit.KindPINSet), ErrInvalidSession)
	assert.ErrorIs(t, f.gateway.Authorize(ctx, res.Token, bob.ID, audit.KindPINSet), ErrForbidden)
	assert.NoError(t, f.gateway.Authorize(ctx, res.Token, alice.ID, audit.KindPINSet))
}

func TestAddAndVerifyPIN(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.register(t, "111", "secret")

	assert.ErrorIs(t, f.gateway.VerifyPIN(ctx, acc.ID, "1234"), account.ErrPINNotSet)

	for _, bad := range []string{"", "123", "12345", "12a4", "1234567"} {
		assert.ErrorIs(t, f.gateway.AddPIN(ctx, acc.ID, bad), ErrInvalidPINFormat, "pin %q", bad)
	}
	stored, err := f.accounts.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasPIN())

	require.NoError(t, f.gateway.AddPIN(ctx, acc.ID, "4321"))
	assert.NoError(t, f.gateway.VerifyPIN(ctx, acc.ID, "4321"))
	assert.ErrorIs(t, f.gateway.VerifyPIN(ctx, acc.ID, "1234"), account.ErrInvalidPIN)

	require.NoError(t, f.gateway.AddPIN(ctx, acc.ID, "654321"))
	assert.NoError(t, f.gateway.VerifyPIN(ctx, acc.ID, "654321"))
}

type recordingRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingRecorder) Record(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestAuthorizeAuditsCallerKind(t *testing.T) {
	ctx := context.Background()
	rec := &recordingRecorder{}
	accounts := account.NewService(account.NewMemoryRepository(), account.NewHasher(bcrypt.MinCost), nil)
	g := NewGateway(accounts, session.NewMemoryStore(nil), session.NewIssuer(), rec, 0)
	_, err := accounts.Register(ctx, account.NewAccount{Phone: "111", Password: "secret"})
	require.NoError(t, err)
	bob, err := accounts.Register(ctx, account.NewAccount{Phone: "222", Password: "secret"})
	require.NoError(t, err)
	res, err := g.SignIn(ctx, "111", "secret")
	require.NoError(t, err)

	rec.events = nil
	require.ErrorIs(t, g.Authorize(ctx, res.Token, bob.ID, audit.KindPINVerify), ErrForbidden)
	require.Len(t, rec.events, 1)
	assert.Equal(t, audit.KindPINVerify, rec.events[0].Kind)
	assert.Equal(t, audit.OutcomeDenied, rec.events[0].Outcome)
}

func newRedisFixture(t *testing.T) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	accounts := account.NewService(account.NewMemoryRepository(), account.NewHasher(bcrypt.MinCost), nil)
	sessions := session.NewRedisStore(client)
	return fixture{
		accounts: accounts,
		sessions: sessions,
		gateway:  NewGateway(accounts, sessions, session.NewIssuer(), nil, time.Hour),
	}
}

func TestRedisSignInAndSignOut(t *testing.T) {
	ctx := context.Background()
	f := newRedisFixture(t)
	acc := f.register(t, "1234567890", "secret123")

	first, err := f.gateway.SignIn(ctx, "1234567890", "secret123")
	require.NoError(t, err)
	owner, err := f.gateway.ResolveSession(ctx, first.Token)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, owner)

	_, err = f.gateway.SignIn(ctx, "1234567890", "secret123")
	require.ErrorIs(t, err, ErrAlreadyLoggedIn)
	_, err = f.gateway.ResolveSession(ctx, first.Token)
	assert.ErrorIs(t, err, session.ErrNotFound)

	second, err := f.gateway.SignIn(ctx, "1234567890", "secret123")
	require.NoError(t, err)
	require.NoError(t, f.gateway.SignOut(ctx, acc.ID))
	_, err = f.gateway.ResolveSession(ctx, second.Token)
	assert.ErrorIs(t, err, session.ErrNotFound)
	token, err := f.gateway.ActiveToken(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, account.NoSession, token)
}

func TestRedisConcurrentSignInLeavesOneRevocableSession(t *testing.T) {
	ctx := context.Background()
	f := newRedisFixture(t)
	acc := f.register(t, "1234567890", "secret123")

	const attempts = 12
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		issued []string
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.gateway.SignIn(ctx, "1234567890", "secret123")
			if err == nil {
				mu.Lock()
				issued = append(issued, res.Token)
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrAlreadyLoggedIn)
		}()
	}
	wg.Wait()

	live := 0
	for _, token := range issued {
		if _, err := f.gateway.ResolveSession(ctx, token); err == nil {
			live++
		}
	}
	assert.LessOrEqual(t, live, 1)

	require.NoError(t, f.gateway.SignOut(ctx, acc.ID))
	for _, token := range issued {
		_, err := f.gateway.ResolveSession(ctx, token)
		assert.ErrorIs(t, err, session.ErrNotFound, "token %s survived sign-out", token)
	}
}
