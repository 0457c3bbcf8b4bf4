package usecase

import (
	"errors"
	"fmt"
	"strings"

	"leadwire-backend/internal/auth/repository"
)

// ErrIdentityNotFound means the external identity maps to no known user.
var ErrIdentityNotFound = errors.New("no user for identity")

// Resolver maps whatever external identity representation a caller holds
// (internal id, or the user's email address) onto the internal user id.
// Both the credential store and the sync state store resolve through this
// one capability so they share a single lookup policy.
//
// Errors other than ErrIdentityNotFound mean the lookup itself failed and
// the identity may or may not exist.
type Resolver interface {
	Resolve(external string) (string, error)
}

type identityResolver struct {
	users repository.UserRepository
}

func NewIdentityResolver(users repository.UserRepository) Resolver {
	return &identityResolver{users: users}
}

func (r *identityResolver) Resolve(external string) (string, error) {
	external = strings.TrimSpace(external)
	if external == "" {
		return "", ErrIdentityNotFound
	}

	if strings.Contains(external, "@") {
		user, err := r.users.FindByEmail(strings.ToLower(external))
		if err != nil {
			return "", fmt.Errorf("identity lookup: %w", err)
		}
		if user == nil {
			return "", ErrIdentityNotFound
		}
		return user.ID, nil
	}

	user, err := r.users.FindByID(external)
	if err != nil {
		return "", fmt.Errorf("identity lookup: %w", err)
	}
	if user == nil {
		return "", ErrIdentityNotFound
	}
	return user.ID, nil
}
