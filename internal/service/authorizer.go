package service

import (
	"context"
	"errors"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// Authorizer answers whether a user currently holds a role
type Authorizer interface {
	// HasRole is false for unknown and inactive users; an error means the
	// answer could not be determined.
	HasRole(ctx context.Context, userID int64, role domain.Role) (bool, error)
}

type roleAuthorizer struct {
	users repository.UserRepository
}

// NewAuthorizer creates an Authorizer backed by the users table
func NewAuthorizer(users repository.UserRepository) Authorizer {
	return &roleAuthorizer{users: users}
}

func (a *roleAuthorizer) HasRole(ctx context.Context, userID int64, role domain.Role) (bool, error) {
	if userID <= 0 {
		return false, nil
	}

	current, err := a.users.FindActiveRole(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}

	return current == role, nil
}
