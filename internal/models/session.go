package models

// SessionStatus is the lifecycle state of a table session.
type SessionStatus string

const (
	// SessionActive means the table is occupied by this session's group.
	SessionActive SessionStatus = "active"
	// SessionClosed means the session ended and the table is free for a
	// new session.
	SessionClosed SessionStatus = "closed"
)

// MemberRole distinguishes the single session owner from participants.
type MemberRole string

const (
	// RoleOwner is held by exactly one approved member per session,
	// normally whoever scanned the table first.
	RoleOwner MemberRole = "owner"
	// RoleParticipant is every other diner at the table.
	RoleParticipant MemberRole = "participant"
)

// MembershipStatus tracks a member's admission state.
type MembershipStatus string

const (
	// MemberPending awaits the owner's approval; pending members cannot
	// act on orders.
	MemberPending MembershipStatus = "pending"
	// MemberApproved may place and modify orders.
	MemberApproved MembershipStatus = "approved"
	// MemberLeft was rejected or left; the record is kept with a timestamp.
	MemberLeft MembershipStatus = "left"
)

// TableSession is one coordinated group of diners occupying a table.
// At most one session per table is active at any time.
type TableSession struct {
	// ID is the unique identifier for the session (UUID format).
	ID string

	// TableID references the physical table.
	TableID string

	// Status is active or closed.
	Status SessionStatus

	// Members is the roster, in join order.
	Members []Member

	// CreatedAt and ClosedAt are Unix timestamps (ClosedAt zero while active).
	CreatedAt int64
	ClosedAt  int64
}

// Member is one diner's membership record in a session.
type Member struct {
	// ID is the unique identifier for the membership (UUID format).
	ID string

	// ActorID references the user account, or is a generated guest ID when
	// GuestName is set.
	ActorID string

	// GuestName is set for diners without an account.
	GuestName string

	// Role is owner or participant.
	Role MemberRole

	// Status is pending, approved or left.
	Status MembershipStatus

	// JoinedAt is when the member first scanned the table; DecidedAt is
	// when the owner approved or rejected them (zero while pending).
	JoinedAt  int64
	DecidedAt int64
}

// Actor is a verified identity performing an action. Identity and role
// arrive from the auth layer; the core trusts them and enforces
// authorization on role and ownership fields only.
type Actor struct {
	ID   string
	Name string
	Role ActorRole
}

// ActorRole is the coarse role attached to a verified identity.
type ActorRole string

const (
	ActorCustomer ActorRole = "customer"
	ActorGuest    ActorRole = "guest"
	ActorWaiter   ActorRole = "waiter"
	ActorKitchen  ActorRole = "kitchen"
	ActorManager  ActorRole = "manager"
)

// Staff reports whether the role belongs to restaurant staff.
func (r ActorRole) Staff() bool {
	return r == ActorWaiter || r == ActorKitchen || r == ActorManager
}
