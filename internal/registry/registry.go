// Package registry implements table-session membership rules.
//
// A session has exactly one approved owner (whoever scanned the table
// first); later scanners join as pending members and cannot act on orders
// until the owner approves them. All functions mutate the session in place
// and must run under the caller's per-session lock.
package registry

import (
	"time"

	"github.com/comanda-app/comanda/internal/apperr"
	"github.com/comanda-app/comanda/internal/models"
	"github.com/google/uuid"
)

// Start creates a new active session for a table with actor as the
// auto-approved owner. The caller guarantees no active session exists for
// the table (single-active-session is enforced at the storage layer).
func Start(tableID string, actor models.Actor, now time.Time) *models.TableSession {
	return &models.TableSession{
		ID:        uuid.New().String(),
		TableID:   tableID,
		Status:    models.SessionActive,
		CreatedAt: now.Unix(),
		Members: []models.Member{{
			ID:        uuid.New().String(),
			ActorID:   actor.ID,
			GuestName: guestName(actor),
			Role:      models.RoleOwner,
			Status:    models.MemberApproved,
			JoinedAt:  now.Unix(),
			DecidedAt: now.Unix(),
		}},
	}
}

// Join adds actor as a pending member. Idempotent: re-joining with an
// existing pending or approved membership returns the existing record.
// Returns the membership and whether it was newly created.
func Join(s *models.TableSession, actor models.Actor, now time.Time) (*models.Member, bool, error) {
	if s.Status != models.SessionActive {
		return nil, false, apperr.New(apperr.CodeSessionClosed, "session is closed")
	}
	for i := range s.Members {
		m := &s.Members[i]
		if m.ActorID == actor.ID && m.Status != models.MemberLeft {
			return m, false, nil
		}
	}
	s.Members = append(s.Members, models.Member{
		ID:        uuid.New().String(),
		ActorID:   actor.ID,
		GuestName: guestName(actor),
		Role:      models.RoleParticipant,
		Status:    models.MemberPending,
		JoinedAt:  now.Unix(),
	})
	return &s.Members[len(s.Members)-1], true, nil
}

// Decide approves or rejects a pending member. Only the session owner may
// decide; rejection moves the member to left with a timestamp.
func Decide(s *models.TableSession, memberID string, approve bool, decidingActorID string, now time.Time) (*models.Member, error) {
	if s.Status != models.SessionActive {
		return nil, apperr.New(apperr.CodeSessionClosed, "session is closed")
	}
	owner := Owner(s)
	if owner == nil || owner.ActorID != decidingActorID {
		return nil, apperr.New(apperr.CodeForbidden, "only the session owner decides membership")
	}

	for i := range s.Members {
		m := &s.Members[i]
		if m.ID != memberID {
			continue
		}
		if m.Status != models.MemberPending {
			return nil, apperr.WithMetadata(apperr.CodeConflict,
				"membership already decided",
				map[string]string{"member_id": m.ID, "status": string(m.Status)})
		}
		if approve {
			m.Status = models.MemberApproved
		} else {
			m.Status = models.MemberLeft
		}
		m.DecidedAt = now.Unix()
		return m, nil
	}
	return nil, apperr.New(apperr.CodeNotFound, "member not found")
}

// Close ends the session. Only the owner or restaurant staff may close.
// Remaining pending members are auto-rejected in the same operation so the
// caller can notify them; see the returned slice.
func Close(s *models.TableSession, actor models.Actor, now time.Time) ([]models.Member, error) {
	if s.Status != models.SessionActive {
		return nil, apperr.New(apperr.CodeSessionClosed, "session is already closed")
	}
	owner := Owner(s)
	isOwner := owner != nil && owner.ActorID == actor.ID
	if !isOwner && !actor.Role.Staff() {
		return nil, apperr.New(apperr.CodeForbidden, "only the session owner or staff may close the session")
	}

	var rejected []models.Member
	for i := range s.Members {
		m := &s.Members[i]
		if m.Status == models.MemberPending {
			m.Status = models.MemberLeft
			m.DecidedAt = now.Unix()
			rejected = append(rejected, *m)
		}
	}
	s.Status = models.SessionClosed
	s.ClosedAt = now.Unix()
	return rejected, nil
}

// Owner returns the approved owner, or nil if there is none.
func Owner(s *models.TableSession) *models.Member {
	for i := range s.Members {
		m := &s.Members[i]
		if m.Role == models.RoleOwner && m.Status == models.MemberApproved {
			return m
		}
	}
	return nil
}

// ApprovedMember returns the approved membership for an actor, or nil.
// Pending and left members cannot act on orders.
func ApprovedMember(s *models.TableSession, actorID string) *models.Member {
	for i := range s.Members {
		m := &s.Members[i]
		if m.ActorID == actorID && m.Status == models.MemberApproved {
			return m
		}
	}
	return nil
}

func guestName(actor models.Actor) string {
	if actor.Role == models.ActorGuest {
		return actor.Name
	}
	return ""
}
