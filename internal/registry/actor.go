package registry

import (
	"context"

	"voicegate/internal/auth"
)

// actorFrom and roleFrom read the authenticated identity for audit trails.
// Webhook and system callers have no identity; empty strings are fine there.
func actorFrom(ctx context.Context) string {
	uid, err := auth.UserID(ctx)
	if err != nil {
		return ""
	}
	return uid
}

func roleFrom(ctx context.Context) string {
	role, err := auth.Role(ctx)
	if err != nil {
		return ""
	}
	return role
}
