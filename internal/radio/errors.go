// Package radio holds the application services behind the HTTP surface:
// chat, song requests and polls. Authorization of admin-only operations
// happens here, next to the data access, not in the handlers.
package radio

import (
	"context"
	"errors"
	"fmt"
	"identityradio/backend/internal/models"
	"identityradio/backend/internal/storage"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = storage.ErrNotFound
	ErrAlreadyVoted      = errors.New("already voted in this poll")
	ErrInvalidTransition = models.ErrInvalidTransition
)

// AdminChecker resolves an admin session token. It fails closed.
type AdminChecker interface {
	IsAdmin(ctx context.Context, token string) (userID string, ok bool)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func requireAdmin(ctx context.Context, admins AdminChecker, token string) (string, error) {
	if admins == nil {
		return "", ErrForbidden
	}
	userID, ok := admins.IsAdmin(ctx, token)
	if !ok {
		return "", fmt.Errorf("%w: admin privileges required", ErrForbidden)
	}
	return userID, nil
}
