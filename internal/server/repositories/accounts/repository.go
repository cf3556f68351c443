// Package accounts declares the credential store contract and its
// PostgreSQL implementation.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/vidkeeper/internal/server/models"
)

// Repository gives typed access to account records.
//
// Lookups return common.ErrorNotFound when nothing matches. Create returns
// common.ErrorAlreadyExists when the username or email is already taken;
// the store's unique constraints are the authoritative duplicate guard.
type Repository interface {
	// FindOne returns the account whose username equals username OR whose
	// email equals email. Empty arguments never match. When the two
	// arguments match different accounts, the username match wins.
	FindOne(ctx context.Context, username, email string) (*models.Account, error)

	FindByID(ctx context.Context, id string) (*models.Account, error)

	Create(ctx context.Context, account *models.NewAccount) (*models.Account, error)

	// UpdateRefreshToken overwrites the stored refresh token. An empty
	// token clears it.
	UpdateRefreshToken(ctx context.Context, id string, token string) error

	// RotateRefreshToken replaces the stored refresh token only while it
	// still equals current. It returns common.ErrorNotFound when no
	// account holds current, i.e. the token was already rotated or cleared.
	RotateRefreshToken(ctx context.Context, id, current, next string) error
}
