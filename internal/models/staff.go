package models

// Staff is a restaurant staff account. Staff authenticate with email and
// password and act with the waiter, kitchen or manager role.
type Staff struct {
	// ID is the unique identifier for the account (UUID format).
	ID string

	// Email is the login identifier (unique).
	Email string

	// Name is the display name.
	Name string

	// Role is waiter, kitchen or manager.
	Role ActorRole

	// PasswordHash is the bcrypt hash of the password.
	PasswordHash string

	// CreatedAt is the Unix timestamp when the account was created.
	CreatedAt int64
}

// Actor converts the staff record to an acting identity.
func (s *Staff) Actor() Actor {
	return Actor{ID: s.ID, Name: s.Name, Role: s.Role}
}
