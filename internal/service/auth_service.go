package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/comanda-app/comanda/internal/apperr"
	"github.com/comanda-app/comanda/internal/auth"
	"github.com/comanda-app/comanda/internal/models"
)

// AuthService issues tokens for staff accounts and table guests.
type AuthService struct {
	authenticator *auth.StaffAuthenticator
	tokens        *auth.JWTManager
}

// NewAuthService creates a new AuthService.
func NewAuthService(authenticator *auth.StaffAuthenticator, tokens *auth.JWTManager) *AuthService {
	return &AuthService{authenticator: authenticator, tokens: tokens}
}

// RegisterStaff creates a staff account and returns it with a fresh token.
func (s *AuthService) RegisterStaff(ctx context.Context, email, name string, role models.ActorRole, password string) (*models.Staff, string, error) {
	staff, err := s.authenticator.Register(ctx, email, name, role, password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrWeakPassword):
			return nil, "", apperr.New(apperr.CodeInvalidArgument, err.Error())
		case errors.Is(err, auth.ErrEmailExists):
			return nil, "", apperr.New(apperr.CodeConflict, err.Error())
		}
		return nil, "", err
	}

	token, err := s.tokens.Generate(staff.Actor(), "")
	if err != nil {
		return nil, "", err
	}
	slog.Info("staff registered", "staff_id", staff.ID, "role", staff.Role)
	return staff, token, nil
}

// LoginStaff verifies credentials and returns the account with a token.
func (s *AuthService) LoginStaff(ctx context.Context, email, password string) (*models.Staff, string, error) {
	staff, err := s.authenticator.Authenticate(ctx, email, password)
	if err != nil {
		return nil, "", apperr.New(apperr.CodeUnauthenticated, "invalid email or password")
	}

	token, err := s.tokens.Generate(staff.Actor(), "")
	if err != nil {
		return nil, "", err
	}
	return staff, token, nil
}

// GuestToken issues a session-scoped token for a diner without an account.
// The generated actor ID keeps guests distinguishable within the session.
func (s *AuthService) GuestToken(actor models.Actor, sessionID string) (string, error) {
	return s.tokens.Generate(actor, sessionID)
}
