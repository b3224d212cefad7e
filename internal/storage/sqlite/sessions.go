package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/comanda-app/comanda/internal/models"
	"github.com/comanda-app/comanda/internal/storage"
)

// CreateSession persists a new session with its members. The partial
// unique index on active sessions enforces one active session per table.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *models.TableSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.CreatedAt == 0 {
		session.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO sessions (id, table_id, status, created_at, closed_at) VALUES (?, ?, ?, ?, ?)",
		session.ID, session.TableID, session.Status, session.CreatedAt, session.ClosedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrActiveSessionExists
		}
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if err := insertMembers(ctx, tx, session); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID, including members.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*models.TableSession, error) {
	return s.getSession(ctx, "id = ?", sessionID)
}

// GetActiveSessionByTable retrieves a table's active session.
func (s *SQLiteStore) GetActiveSessionByTable(ctx context.Context, tableID string) (*models.TableSession, error) {
	return s.getSession(ctx, "table_id = ? AND status = 'active'", tableID)
}

func (s *SQLiteStore) getSession(ctx context.Context, where string, args ...any) (*models.TableSession, error) {
	session := &models.TableSession{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, table_id, status, created_at, closed_at FROM sessions WHERE "+where, args...,
	).Scan(&session.ID, &session.TableID, &session.Status, &session.CreatedAt, &session.ClosedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if err := s.loadMembers(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// UpdateSession replaces the session row and its members.
func (s *SQLiteStore) UpdateSession(ctx context.Context, session *models.TableSession) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE sessions SET table_id = ?, status = ?, closed_at = ? WHERE id = ?",
		session.TableID, session.Status, session.ClosedAt, session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM members WHERE session_id = ?", session.ID); err != nil {
		return fmt.Errorf("failed to clear members: %w", err)
	}
	if err := insertMembers(ctx, tx, session); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListActiveSessions returns every active session with members.
func (s *SQLiteStore) ListActiveSessions(ctx context.Context) ([]*models.TableSession, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, table_id, status, created_at, closed_at FROM sessions WHERE status = 'active' ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.TableSession
	for rows.Next() {
		session := &models.TableSession{}
		if err := rows.Scan(&session.ID, &session.TableID, &session.Status,
			&session.CreatedAt, &session.ClosedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	for _, session := range sessions {
		if err := s.loadMembers(ctx, session); err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

func (s *SQLiteStore) loadMembers(ctx context.Context, session *models.TableSession) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, actor_id, guest_name, role, status, joined_at, decided_at
		 FROM members WHERE session_id = ? ORDER BY position`, session.ID)
	if err != nil {
		return fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	session.Members = nil
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.ID, &m.ActorID, &m.GuestName, &m.Role, &m.Status,
			&m.JoinedAt, &m.DecidedAt); err != nil {
			return fmt.Errorf("failed to scan member: %w", err)
		}
		session.Members = append(session.Members, m)
	}
	return rows.Err()
}

func insertMembers(ctx context.Context, tx *sql.Tx, session *models.TableSession) error {
	for i := range session.Members {
		m := &session.Members[i]
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO members (id, session_id, actor_id, guest_name, role, status, joined_at, decided_at, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, session.ID, m.ActorID, m.GuestName, m.Role, m.Status, m.JoinedAt, m.DecidedAt, i,
		); err != nil {
			return fmt.Errorf("failed to insert member: %w", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
