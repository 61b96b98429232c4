package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// OperatorFromContext returns the authenticated operator id and role.
func OperatorFromContext(ctx context.Context) (id int64, role string, ok bool) {
	sess := SessionFromContext(ctx)
	if sess == nil || sess.UserID <= 0 {
		return 0, "", false
	}
	return sess.UserID, sess.Role, true
}
