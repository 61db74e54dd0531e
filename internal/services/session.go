package services

import (
	"context"

	"github.com/esgportal/apiserver/types"
)

// Session is the authenticated caller, resolved once per request and
// carried in the request context.
type Session struct {
	UserID   int64
	Username string
	IsStaff  bool
}

func SessionFor(user types.User) Session {
	return Session{UserID: user.ID, Username: user.Username, IsStaff: user.IsStaff}
}

type sessionKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}
