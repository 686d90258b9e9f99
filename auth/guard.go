// Package auth resolves who is calling and decides what they may change.
package auth

// Identity is the caller resolved from a session. The zero value is anonymous.
type Identity struct {
	UserID uint
}

// Anonymous is the identity of a caller without a valid session.
var Anonymous = Identity{}

// Authenticated returns the identity of a logged-in user.
func Authenticated(userID uint) Identity {
	return Identity{UserID: userID}
}

// IsAnonymous reports whether no user is attached.
func (i Identity) IsAnonymous() bool {
	return i.UserID == 0
}

// Action is an operation on a post or comment.
type Action int

const (
	ActionRead Action = iota
	ActionUpdate
	ActionDelete
)

// Decision is the outcome of Authorize.
type Decision int

const (
	Denied Decision = iota
	Allowed
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "denied"
}

// Authorize decides whether actor may perform action on a resource owned by ownerID.
// Reads are open to everyone; mutations belong to the owner alone.
func Authorize(action Action, actor Identity, ownerID uint) Decision {
	if action == ActionRead {
		return Allowed
	}
	if actor.IsAnonymous() || ownerID == 0 || actor.UserID != ownerID {
		return Denied
	}
	return Allowed
}

// CanMutate is checked before any mutating store call; anonymous callers can own nothing.
func CanMutate(actor Identity) Decision {
	if actor.IsAnonymous() {
		return Denied
	}
	return Allowed
}
