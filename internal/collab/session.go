package collab

// Session is the caller's opaque identity proof. The gateway forwards it to
// collaborators as an access_token cookie and never parses or mutates it.
type Session string

// IsZero reports whether no session was supplied.
func (s Session) IsZero() bool {
	return s == ""
}

// Cookie renders the session as the forwarded cookie header value.
func (s Session) Cookie() string {
	return "access_token=" + string(s) + ";"
}
