package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/indie-arcade/internal/apperror"
	"github.com/sakif/indie-arcade/internal/auth"
	"github.com/sakif/indie-arcade/internal/metrics"
	"github.com/sakif/indie-arcade/internal/model"
	"github.com/sakif/indie-arcade/internal/repository"
)

// AuthService drives the login and registration state machine:
//
//	Anonymous ──external login──▶ IdentityVerified(hash)
//	IdentityVerified ──hash known──▶ Authenticated(userID)
//	IdentityVerified ──hash unknown──▶ AwaitingUsername(hash)
//	AwaitingUsername ──unique username──▶ Authenticated(userID)
//	AwaitingUsername ──taken username──▶ AwaitingUsername (re-prompt)
//	any ──logout──▶ Anonymous
//
// Nothing about the state is stored server-side. Authenticated is a session
// token, AwaitingUsername is a pending token; see package auth.
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewAuthService(users repository.UserRepository, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// LoginResult is the outcome of a login step. Exactly one of Token and
// PendingToken is set.
type LoginResult struct {
	User         *model.User
	Token        string // session token (Authenticated)
	PendingToken string // registration token (AwaitingUsername)
}

// NeedsUsername reports whether the caller must pick a username next.
func (r *LoginResult) NeedsUsername() bool {
	return r.PendingToken != ""
}

type registrationInput struct {
	Username string `validate:"required,max=32,username"`
}

// CompleteExternalLogin handles a verified identity-provider subject id.
// A known identity is logged in; an unknown one gets a pending token.
func (s *AuthService) CompleteExternalLogin(ctx context.Context, externalID string) (*LoginResult, error) {
	if externalID == "" {
		return nil, apperror.ValidationFailed("subject", "identity provider returned no subject")
	}
	hash := auth.HashIdentity(externalID)

	user, err := s.users.FindByIdentityHash(ctx, hash)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/auth: looking up identity: %w", err)
		}

		pending, err := s.tokens.GeneratePending(hash)
		if err != nil {
			return nil, fmt.Errorf("service/auth: issuing pending token: %w", err)
		}
		s.logger.Info("new identity awaiting username")
		return &LoginResult{PendingToken: pending}, nil
	}

	return s.authenticated(user)
}

// ValidatePending checks a pending-registration token and returns its
// identity hash.
func (s *AuthService) ValidatePending(token string) (string, error) {
	hash, err := s.tokens.ValidatePending(token)
	if err != nil {
		return "", apperror.Unauthorized("registration session expired, log in again")
	}
	return hash, nil
}

// RegisterUsername creates the account for identityHash. A taken username
// returns apperror.ErrConflict and leaves the caller awaiting a username.
func (s *AuthService) RegisterUsername(ctx context.Context, identityHash, username string) (*LoginResult, error) {
	if identityHash == "" {
		return nil, apperror.Unauthorized("no verified identity")
	}

	username = strings.TrimSpace(username)
	if err := validateStruct(registrationInput{Username: username}); err != nil {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	user := &model.User{Username: username, IdentityHash: identityHash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
			s.logger.Info("username already taken", slog.String("username", username))
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user %q: %w", username, err)
	}

	metrics.RegistrationsTotal.WithLabelValues("created").Inc()
	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return s.authenticated(user)
}

// RegisterLocal creates an account from a username alone (local auth mode).
func (s *AuthService) RegisterLocal(ctx context.Context, username string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	return s.RegisterUsername(ctx, auth.HashIdentity(auth.LocalIdentity(username)), username)
}

// LoginLocal logs in an existing username (local auth mode).
func (s *AuthService) LoginLocal(ctx context.Context, username string) (*LoginResult, error) {
	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("invalid username")
		}
		return nil, fmt.Errorf("service/auth: looking up %q: %w", username, err)
	}
	return s.authenticated(user)
}

// CurrentUser returns the user for an authenticated session.
func (s *AuthService) CurrentUser(ctx context.Context, userID int64) (*model.User, error) {
	if userID <= 0 {
		return nil, apperror.Unauthorized("not logged in")
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %d: %w", userID, err)
	}
	return user, nil
}

// ValidateToken returns the user ID a session token encodes.
func (s *AuthService) ValidateToken(token string) (int64, error) {
	userID, err := s.tokens.Validate(token)
	if err != nil {
		return 0, fmt.Errorf("service/auth: %w", err)
	}
	return userID, nil
}

func (s *AuthService) authenticated(user *model.User) (*LoginResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}
	s.logger.Info("user authenticated",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return &LoginResult{User: user, Token: token}, nil
}
