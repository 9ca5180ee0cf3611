package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxAccountID
	ctxRole
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID    string
	AccountID string
	Role      string
}

func WithIdentity(ctx context.Context, userID, accountID, role string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxAccountID, accountID)
	ctx = context.WithValue(ctx, ctxRole, role)
	return ctx
}

func UserID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxUserID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("user_id not in context")
}

func AccountID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxAccountID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("account_id not in context")
}

func Role(ctx context.Context) (string, error) {
	v := ctx.Value(ctxRole)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("role not in context")
}

// IdentityFrom returns whatever identity fields are present; missing ones are empty.
func IdentityFrom(ctx context.Context) Identity {
	uid, _ := UserID(ctx)
	aid, _ := AccountID(ctx)
	role, _ := Role(ctx)
	return Identity{UserID: uid, AccountID: aid, Role: role}
}
