package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/profitpilot/internal/domain/model"
	"github.com/ericfisherdev/profitpilot/internal/domain/port/driven"
)

// ErrMissingLogin is returned by Login when email or password is empty.
var ErrMissingLogin = errors.New("email and password are required")

// AuthService manages the bearer credential: it writes it on login and
// wipes it, together with the session record, on logout.
type AuthService struct {
	api     driven.AuthAPI
	secrets driven.SecretStore
	session *SessionController
	logger  *slog.Logger
}

// NewAuthService creates a new AuthService with the required dependencies.
func NewAuthService(api driven.AuthAPI, secrets driven.SecretStore, session *SessionController, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		api:     api,
		secrets: secrets,
		session: session,
		logger:  logger,
	}
}

// Login authenticates against the remote service and stores the returned
// token. Remote failures are returned as *model.TradingError.
func (s *AuthService) Login(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return ErrMissingLogin
	}

	token, err := s.api.Login(ctx, email, password)
	if err != nil {
		return err
	}

	if err := s.secrets.Set(ctx, driven.TokenKey, token); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}

	s.logger.Info("logged in", "email", email)
	return nil
}

// LoggedIn reports whether a credential is stored.
func (s *AuthService) LoggedIn(ctx context.Context) (bool, error) {
	token, err := s.secrets.Get(ctx, driven.TokenKey)
	if err != nil {
		return false, err
	}
	return token != "", nil
}

// Logout invalidates the stored token remotely, then clears the session
// record and every stored secret. An already expired token, or no token at
// all, still clears local state. Once the token is invalidated the secrets
// are cleared even if the session record cannot be. Logout holds the
// session's in-flight slot throughout: it is rejected with ErrBusy while a
// session operation runs, and no operation can start until it returns.
func (s *AuthService) Logout(ctx context.Context) error {
	var invalidated bool
	err := s.session.resetAfter(ctx, func(ctx context.Context) error {
		token, err := s.secrets.Get(ctx, driven.TokenKey)
		if err != nil {
			s.logger.Warn("read credential for logout failed, clearing local state", "error", err)
		}

		if token != "" {
			if err := s.api.Logout(ctx, token); err != nil && model.KindOf(err) != model.KindAuthExpired {
				return err
			}
		}
		invalidated = true
		return nil
	})
	if !invalidated {
		return err
	}

	// The token is dead on the server; drop it even if the record clear failed.
	if clearErr := s.secrets.Clear(ctx); clearErr != nil {
		err = errors.Join(err, fmt.Errorf("clear secrets: %w", clearErr))
	}
	if err != nil {
		return err
	}

	s.logger.Info("logged out")
	return nil
}
