package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/comanda-app/comanda/internal/apperr"
	"github.com/comanda-app/comanda/internal/fanout"
	"github.com/comanda-app/comanda/internal/models"
	"github.com/comanda-app/comanda/internal/registry"
	"github.com/comanda-app/comanda/internal/storage"
)

// SessionService manages table sessions and membership.
type SessionService struct {
	store       storage.Store
	broadcaster *fanout.Broadcaster
	locks       *keyedLocks
	now         func() time.Time
}

// NewSessionService creates a new SessionService with the given storage
// backend and event broadcaster.
func NewSessionService(store storage.Store, broadcaster *fanout.Broadcaster) *SessionService {
	return &SessionService{
		store:       store,
		broadcaster: broadcaster,
		locks:       newKeyedLocks(),
		now:         time.Now,
	}
}

// StartOrJoin handles a table scan. The first scanner of a free table
// starts a session as its approved owner; later scanners join the active
// session as pending members. Re-scanning is idempotent.
//
// The table lock only covers the create race; membership mutations run
// under the same per-session lock as decisions and closes.
func (s *SessionService) StartOrJoin(ctx context.Context, tableID string, actor models.Actor) (*models.TableSession, *models.Member, error) {
	unlock := s.locks.Lock("table:" + tableID)
	defer unlock()

	session, err := s.store.GetActiveSessionByTable(ctx, tableID)
	if errors.Is(err, storage.ErrNotFound) {
		session = registry.Start(tableID, actor, s.now())
		if err := s.store.CreateSession(ctx, session); err != nil {
			if errors.Is(err, storage.ErrActiveSessionExists) {
				// Lost the race to another instance; join instead.
				return s.joinExisting(ctx, tableID, actor)
			}
			return nil, nil, fmt.Errorf("failed to create session: %w", err)
		}
		sessionsStarted.Inc()
		slog.Info("session started", "session_id", session.ID, "table_id", tableID, "owner", actor.ID)
		return session, &session.Members[0], nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up table: %w", err)
	}

	return s.join(ctx, session.ID, actor)
}

func (s *SessionService) joinExisting(ctx context.Context, tableID string, actor models.Actor) (*models.TableSession, *models.Member, error) {
	session, err := s.store.GetActiveSessionByTable(ctx, tableID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up table: %w", err)
	}
	return s.join(ctx, session.ID, actor)
}

func (s *SessionService) join(ctx context.Context, sessionID string, actor models.Actor) (*models.TableSession, *models.Member, error) {
	unlock := s.locks.Lock("session:" + sessionID)
	defer unlock()

	// Re-read under the session lock: the table lookup raced with
	// decisions and closes, so its snapshot must not be written back.
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	member, created, err := registry.Join(session, actor, s.now())
	if err != nil {
		return nil, nil, err
	}
	if !created {
		return session, member, nil
	}
	if err := s.store.UpdateSession(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("failed to save membership: %w", err)
	}

	s.broadcaster.Publish(
		[]fanout.Group{fanout.SessionGroup(session.ID), fanout.GroupDashboard},
		fanout.Event{
			Type:      fanout.TypeMemberJoined,
			SessionID: session.ID,
			Payload: map[string]any{
				"member_id": member.ID,
				"actor_id":  member.ActorID,
				"name":      member.GuestName,
			},
		})
	slog.Info("member joined", "session_id", session.ID, "member_id", member.ID, "actor", actor.ID)
	return session, member, nil
}

// DecideMembership approves or rejects a pending member. Only the session
// owner decides.
func (s *SessionService) DecideMembership(ctx context.Context, sessionID, memberID string, approve bool, actor models.Actor) (*models.Member, error) {
	unlock := s.locks.Lock("session:" + sessionID)
	defer unlock()

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	member, err := registry.Decide(session, memberID, approve, actor.ID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save membership decision: %w", err)
	}

	eventType := fanout.TypeMemberApproved
	if !approve {
		eventType = fanout.TypeMemberRejected
	}
	s.broadcaster.Publish(
		[]fanout.Group{fanout.SessionGroup(session.ID), fanout.GroupDashboard},
		fanout.Event{
			Type:      eventType,
			SessionID: session.ID,
			Payload:   map[string]any{"member_id": member.ID, "actor_id": member.ActorID},
		})
	slog.Info("membership decided",
		"session_id", sessionID, "member_id", memberID, "approved", approve)
	return member, nil
}

// CloseSession ends a session. Pending members are rejected in the same
// operation and each rejection is broadcast before the close event.
func (s *SessionService) CloseSession(ctx context.Context, sessionID string, actor models.Actor) (*models.TableSession, error) {
	unlock := s.locks.Lock("session:" + sessionID)
	defer unlock()

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	rejected, err := registry.Close(session, actor, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to close session: %w", err)
	}

	groups := []fanout.Group{fanout.SessionGroup(session.ID), fanout.GroupDashboard}
	for _, m := range rejected {
		s.broadcaster.Publish(groups, fanout.Event{
			Type:      fanout.TypeMemberRejected,
			SessionID: session.ID,
			Payload:   map[string]any{"member_id": m.ID, "actor_id": m.ActorID},
		})
	}
	s.broadcaster.Publish(groups, fanout.Event{
		Type:      fanout.TypeSessionClosed,
		SessionID: session.ID,
	})
	slog.Info("session closed", "session_id", sessionID, "by", actor.ID, "rejected_pending", len(rejected))
	return session, nil
}

// GetSession returns a session visible to the actor: staff see any
// session, diners only sessions they are a member of.
func (s *SessionService) GetSession(ctx context.Context, sessionID string, actor models.Actor) (*models.TableSession, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.Staff() && !isMember(session, actor.ID) {
		return nil, apperr.New(apperr.CodeForbidden, "not a member of this session")
	}
	return session, nil
}

func (s *SessionService) getSession(ctx context.Context, sessionID string) (*models.TableSession, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.New(apperr.CodeNotFound, "session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

func isMember(session *models.TableSession, actorID string) bool {
	for i := range session.Members {
		if session.Members[i].ActorID == actorID && session.Members[i].Status != models.MemberLeft {
			return true
		}
	}
	return false
}
