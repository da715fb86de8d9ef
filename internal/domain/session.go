package domain

// Session is an immutable snapshot of the client session state: who is signed
// in, whether an operation is in flight, and the message of the last failure.
type Session struct {
	User    *User  // Authenticated account, nil when signed out
	Loading bool   // Whether a session operation is in flight
	Err     string // Message of the last failed operation, empty when clean
}

// Authenticated reports whether the snapshot carries a signed-in user.
func (s Session) Authenticated() bool {
	return s.User != nil
}
