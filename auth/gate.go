package auth

import (
	"chat-rooms/contract"
	"chat-rooms/domain/chat"
	"chat-rooms/errors"
	"context"
	"fmt"
	"strconv"
	"strings"
)

// IdentityGate resolves a bearer credential into the identity of a user that still exists.
// Every rejection wraps ErrUnauthenticated.
type IdentityGate struct {
	issuer *TokenIssuer
	users  contract.IUserRepository
}

func NewIdentityGate(issuer *TokenIssuer, users contract.IUserRepository) *IdentityGate {
	return &IdentityGate{issuer: issuer, users: users}
}

func (g *IdentityGate) Authenticate(ctx context.Context, credential string) (chat.Identity, error) {
	credential = strings.TrimSpace(strings.TrimPrefix(credential, "Bearer "))
	if credential == "" {
		return chat.Identity{}, fmt.Errorf("%w: missing credential", errors.ErrUnauthenticated)
	}

	claims, err := g.issuer.Validate(credential)
	if err != nil {
		return chat.Identity{}, fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}

	user, err := g.users.GetUserByUsername(ctx, claims.Username)
	if err != nil {
		return chat.Identity{}, fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}
	// A user deleted then registered again under the same name gets a new id
	if claims.Subject != strconv.FormatInt(int64(user.ID), 10) {
		return chat.Identity{}, fmt.Errorf("%w: subject mismatch", errors.ErrUnauthenticated)
	}
	return user.Identity(), nil
}

// Authorizer decides who may delete a message: its author or an elevated role.
type Authorizer struct{}

func (Authorizer) CanDelete(identity chat.Identity, message chat.Message) bool {
	return identity.Role.Elevated() || message.AuthorID == identity.ID
}
