package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/comanda-app/comanda/internal/models"
	"github.com/comanda-app/comanda/internal/storage"
)

// CreateStaff persists a new staff account. The email column is unique.
func (s *SQLiteStore) CreateStaff(ctx context.Context, staff *models.Staff) error {
	if staff.ID == "" {
		staff.ID = uuid.New().String()
	}
	if staff.CreatedAt == 0 {
		staff.CreatedAt = time.Now().Unix()
	}

	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO staff (id, email, name, role, password_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		staff.ID, staff.Email, staff.Name, staff.Role, staff.PasswordHash, staff.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrEmailExists
		}
		return fmt.Errorf("failed to insert staff: %w", err)
	}
	return nil
}

// GetStaffByEmail retrieves a staff account by login email.
func (s *SQLiteStore) GetStaffByEmail(ctx context.Context, email string) (*models.Staff, error) {
	return s.getStaff(ctx, "email = ?", email)
}

// GetStaffByID retrieves a staff account by ID.
func (s *SQLiteStore) GetStaffByID(ctx context.Context, id string) (*models.Staff, error) {
	return s.getStaff(ctx, "id = ?", id)
}

func (s *SQLiteStore) getStaff(ctx context.Context, where string, arg any) (*models.Staff, error) {
	staff := &models.Staff{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, name, role, password_hash, created_at FROM staff WHERE "+where, arg,
	).Scan(&staff.ID, &staff.Email, &staff.Name, &staff.Role, &staff.PasswordHash, &staff.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get staff: %w", err)
	}
	return staff, nil
}
