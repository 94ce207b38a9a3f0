package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/indie-arcade/internal/apperror"
	"github.com/sakif/indie-arcade/internal/auth"
)

// newTestAuthService returns an AuthService wired with the in-memory store.
func newTestAuthService(t *testing.T, store *fakeStore) (*AuthService, *auth.TokenService) {
	t.Helper()

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return NewAuthService(store, ts, testLogger()), ts
}

// =========================================================================
// EXTERNAL LOGIN STATE MACHINE
// =========================================================================

func TestCompleteExternalLogin_UnknownIdentityAwaitsUsername(t *testing.T) {
	store := newFakeStore()
	svc, ts := newTestAuthService(t, store)

	res, err := svc.CompleteExternalLogin(context.Background(), "google-sub-1")
	require.NoError(t, err)

	assert.True(t, res.NeedsUsername())
	assert.Empty(t, res.Token)
	assert.Nil(t, res.User)

	hash, err := ts.ValidatePending(res.PendingToken)
	require.NoError(t, err)
	assert.Equal(t, auth.HashIdentity("google-sub-1"), hash)
}

func TestCompleteExternalLogin_FullRegistration(t *testing.T) {
	store := newFakeStore()
	svc, ts := newTestAuthService(t, store)
	ctx := context.Background()

	first, err := svc.CompleteExternalLogin(ctx, "google-sub-1")
	require.NoError(t, err)
	hash, err := svc.ValidatePending(first.PendingToken)
	require.NoError(t, err)

	reg, err := svc.RegisterUsername(ctx, hash, "PixelPioneer")
	require.NoError(t, err)
	require.NotNil(t, reg.User)
	assert.False(t, reg.NeedsUsername())

	userID, err := ts.Validate(reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, userID)

	// The same Google account now logs straight in.
	again, err := svc.CompleteExternalLogin(ctx, "google-sub-1")
	require.NoError(t, err)
	assert.False(t, again.NeedsUsername())
	assert.Equal(t, reg.User.ID, again.User.ID)
}

func TestCompleteExternalLogin_EmptySubject(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeStore())

	_, err := svc.CompleteExternalLogin(context.Background(), "")
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}

func TestRegisterUsername_TakenRePrompts(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestAuthService(t, store)
	ctx := context.Background()

	original, err := svc.RegisterUsername(ctx, auth.HashIdentity("sub-a"), "Alice")
	require.NoError(t, err)

	_, err = svc.RegisterUsername(ctx, auth.HashIdentity("sub-b"), "Alice")
	assert.True(t, errors.Is(err, apperror.ErrConflict), "err = %v", err)

	// Lookup still returns the first account.
	got, err := store.FindByUsername(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, original.User.ID, got.ID)
	assert.Equal(t, auth.HashIdentity("sub-a"), got.IdentityHash)
}

func TestRegisterUsername_InvalidNames(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeStore())

	for _, name := range []string{"", "   ", "has space", "../etc", "a/b", "dot.name", "this-username-is-way-too-long-for-us"} {
		_, err := svc.RegisterUsername(context.Background(), auth.HashIdentity("sub"), name)
		assert.True(t, errors.Is(err, apperror.ErrValidation), "name %q: err = %v", name, err)
	}
}

func TestRegisterUsername_NoIdentity(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeStore())

	_, err := svc.RegisterUsername(context.Background(), "", "Alice")
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))
}

func TestValidatePending_RejectsSessionToken(t *testing.T) {
	svc, ts := newTestAuthService(t, newFakeStore())
	session, _ := ts.Generate(1)

	_, err := svc.ValidatePending(session)
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))
}

// =========================================================================
// LOCAL MODE
// =========================================================================

func TestLocalRegisterThenLogin(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestAuthService(t, store)
	ctx := context.Background()

	reg, err := svc.RegisterLocal(ctx, " RetroRaven ")
	require.NoError(t, err)
	assert.Equal(t, "RetroRaven", reg.User.Username)

	login, err := svc.LoginLocal(ctx, "RetroRaven")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)
	assert.NotEmpty(t, login.Token)

	_, err = svc.RegisterLocal(ctx, "RetroRaven")
	assert.True(t, errors.Is(err, apperror.ErrConflict))
}

func TestLoginLocal_Unknown(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeStore())

	_, err := svc.LoginLocal(context.Background(), "nobody")
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))
}

// =========================================================================
// SESSION LOOKUPS
// =========================================================================

func TestCurrentUser(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestAuthService(t, store)
	alice := store.mustUser(t, "Alice")

	got, err := svc.CurrentUser(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Username)

	_, err = svc.CurrentUser(context.Background(), 0)
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))

	_, err = svc.CurrentUser(context.Background(), 9999)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestValidateToken(t *testing.T) {
	svc, ts := newTestAuthService(t, newFakeStore())
	token, _ := ts.Generate(5)

	id, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)

	_, err = svc.ValidateToken("garbage")
	assert.Error(t, err)
}
