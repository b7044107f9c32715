package services

import (
	"chat-relay/auth"
	"chat-relay/contract"
	chaterrors "chat-relay/errors"
	"context"
	"errors"
	"fmt"
	"log/slog"
)

type IAuthService interface {
	Register(ctx context.Context, username, password string) error
	Authenticate(ctx context.Context, username, password string) error
	SetOnline(ctx context.Context, username string, online bool) error
}

type AuthService struct {
	log    *slog.Logger
	store  contract.Store
	params auth.Params
}

func NewAuthService(log *slog.Logger, store contract.Store, params auth.Params) IAuthService {
	return &AuthService{log: log, store: store, params: params}
}

// Register validates the request, hashes the password and persists the account.
// Returns ErrInvalidName, ErrInvalidPassword or ErrUserAlreadyExists on refusal.
func (s *AuthService) Register(ctx context.Context, username, password string) error {
	if err := auth.ValidateRegister(auth.RegisterRequest{Username: username, Password: password}); err != nil {
		return err
	}

	// Hashing is the expensive part, skip it for names already taken.
	exists, err := s.store.UserExists(ctx, username)
	if err != nil {
		return err
	}
	if exists {
		return chaterrors.ErrUserAlreadyExists
	}

	credential, err := s.params.Hash(password)
	if err != nil {
		return fmt.Errorf("hashing failed: %w", err)
	}

	// The store still arbitrates concurrent registrations of the same name.
	return s.store.RegisterAccount(ctx, username, credential)
}

// Authenticate reports ErrInvalidCredentials for an unknown user or a wrong
// password alike so that usernames cannot be probed.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) error {
	credential, err := s.store.Credential(ctx, username)
	if err != nil {
		if errors.Is(err, chaterrors.ErrUserNotFound) {
			return chaterrors.ErrInvalidCredentials
		}
		return err
	}

	match, err := auth.ComparePassword(password, credential)
	if err != nil {
		s.log.Warn("Stored credential is unreadable", "username", username, "error", err)
		return chaterrors.ErrInvalidCredentials
	}
	if !match {
		return chaterrors.ErrInvalidCredentials
	}
	return nil
}

func (s *AuthService) SetOnline(ctx context.Context, username string, online bool) error {
	return s.store.SetOnline(ctx, username, online)
}
