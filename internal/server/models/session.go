package models

import "time"

// TokenPair bundles a short-lived access token and a long-lived refresh
// token. Only the refresh token is mirrored onto the Account.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Identity is the set of account fields embedded into session tokens.
type Identity struct {
	AccountID string
	Username  string
	Email     string
	FullName  string
}

// Identity returns the token-bearing fields of the account.
func (a *Account) Identity() Identity {
	return Identity{AccountID: a.ID, Username: a.Username, Email: a.Email, FullName: a.FullName}
}
