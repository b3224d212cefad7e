package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/comanda-app/comanda/internal/models"
	"github.com/comanda-app/comanda/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrEmailExists        = errors.New("email already registered")
)

// StaffAuthenticator implements password-based authentication for staff
// accounts using bcrypt.
type StaffAuthenticator struct {
	storage storage.StaffStore
}

// NewStaffAuthenticator creates a new password-based authenticator.
func NewStaffAuthenticator(storage storage.StaffStore) *StaffAuthenticator {
	return &StaffAuthenticator{
		storage: storage,
	}
}

// ValidateCredential checks if the password meets minimum requirements.
func (a *StaffAuthenticator) ValidateCredential(credential string) error {
	if len(credential) < 8 {
		return ErrWeakPassword
	}
	return nil
}

// Register creates a new staff account with a hashed password.
func (a *StaffAuthenticator) Register(ctx context.Context, email, name string, role models.ActorRole, credential string) (*models.Staff, error) {
	if err := a.ValidateCredential(credential); err != nil {
		return nil, err
	}
	if !role.Staff() {
		return nil, fmt.Errorf("role %q is not a staff role", role)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	staff := &models.Staff{
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: string(hashedPassword),
	}
	if err := a.storage.CreateStaff(ctx, staff); err != nil {
		if errors.Is(err, storage.ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to create staff: %w", err)
	}

	return staff, nil
}

// Authenticate verifies the email and password, returning the staff
// account if valid.
func (a *StaffAuthenticator) Authenticate(ctx context.Context, email, credential string) (*models.Staff, error) {
	staff, err := a.storage.GetStaffByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(staff.PasswordHash), []byte(credential)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return staff, nil
}
