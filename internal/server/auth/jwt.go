// Package auth issues and verifies session tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/common"
	"github.com/dmitrijs2005/vidkeeper/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the account identity inside a signed token.
// The account id is the registered subject.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"typ"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	FullName  string `json:"fullName,omitempty"`
}

// Token types carried in the typ claim.
const (
	AccessToken  = "access"
	RefreshToken = "refresh"
)

// Identity returns the account identity encoded in the claims.
func (c *Claims) Identity() models.Identity {
	return models.Identity{AccountID: c.Subject, Username: c.Username, Email: c.Email, FullName: c.FullName}
}

// IssuerConfig holds the two independent secrets and lifetimes.
type IssuerConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Issuer builds access/refresh token pairs. It has no state beyond its
// configuration.
type Issuer struct {
	cfg IssuerConfig
}

func NewIssuer(cfg IssuerConfig) *Issuer {
	return &Issuer{cfg: cfg}
}

// AccessSecret is the key Verify needs for access tokens.
func (i *Issuer) AccessSecret() []byte { return i.cfg.AccessSecret }

// RefreshSecret is the key Verify needs for refresh tokens.
func (i *Issuer) RefreshSecret() []byte { return i.cfg.RefreshSecret }

// VerifyAccess verifies an access token. A refresh token is rejected even
// when both secrets are equal.
func (i *Issuer) VerifyAccess(token string) (*Claims, error) {
	return verifyType(token, i.cfg.AccessSecret, AccessToken)
}

// VerifyRefresh verifies a refresh token.
func (i *Issuer) VerifyRefresh(token string) (*Claims, error) {
	return verifyType(token, i.cfg.RefreshSecret, RefreshToken)
}

func verifyType(token string, secret []byte, typ string) (*Claims, error) {
	claims, err := Verify(token, secret)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != typ {
		return nil, fmt.Errorf("%w: %s token expected", common.ErrInvalidToken, typ)
	}
	return claims, nil
}

// IssuePair signs an access token with the full identity and a refresh
// token carrying only the account id. sessionID becomes the jti of both
// tokens, so pairs issued within the same second still differ. Either
// signing failure fails the whole call.
func (i *Issuer) IssuePair(id models.Identity, now time.Time, sessionID string) (*models.TokenPair, error) {
	accessExp := now.Add(i.cfg.AccessTTL)
	access, err := GenerateToken(Claims{
		RegisteredClaims: registered(id.AccountID, sessionID, now, accessExp),
		TokenType:        AccessToken,
		Username:         id.Username,
		Email:            id.Email,
		FullName:         id.FullName,
	}, i.cfg.AccessSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: access token: %v", common.ErrIntegrity, err)
	}

	refreshExp := now.Add(i.cfg.RefreshTTL)
	refresh, err := GenerateToken(Claims{
		RegisteredClaims: registered(id.AccountID, sessionID, now, refreshExp),
		TokenType:        RefreshToken,
	}, i.cfg.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: refresh token: %v", common.ErrIntegrity, err)
	}

	return &models.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func registered(subject, id string, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        id,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

// GenerateToken signs claims with HS256.
func GenerateToken(claims Claims, secretKey []byte) (string, error) {
	if len(secretKey) == 0 {
		return "", errors.New("empty signing key")
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretKey)
}

// Verify checks signature and expiry. Expired tokens yield
// common.ErrTokenExpired; anything else that fails yields
// common.ErrInvalidToken.
func Verify(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
