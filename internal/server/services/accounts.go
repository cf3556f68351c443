// Package services contains server-side business logic. This file implements
// AccountService, which registers accounts, authenticates them, and issues,
// rotates, and revokes session token pairs.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/common"
	"github.com/dmitrijs2005/vidkeeper/internal/dbx"
	"github.com/dmitrijs2005/vidkeeper/internal/filex"
	"github.com/dmitrijs2005/vidkeeper/internal/logging"
	"github.com/dmitrijs2005/vidkeeper/internal/server/auth"
	"github.com/dmitrijs2005/vidkeeper/internal/server/config"
	"github.com/dmitrijs2005/vidkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/vidkeeper/internal/server/models"
	"github.com/dmitrijs2005/vidkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Uploader turns a local file into a durable public URL.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// RegisterInput is the registration form. AvatarPath and CoverImagePath
// are request-scoped temporary files; the service removes them before
// Register returns, whatever the outcome.
type RegisterInput struct {
	FullName       string
	Email          string
	Username       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

// LoginInput identifies the account by username or email.
type LoginInput struct {
	Email    string
	Username string
	Password string
}

// Session is the result of a successful login or refresh.
type Session struct {
	Account *models.PublicAccount
	Tokens  *models.TokenPair
}

// AccountService orchestrates the account store, the uploader and the
// token issuer.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	uploader    Uploader
	issuer      *auth.Issuer
	logger      logging.Logger
	metrics     metrics.Recorder
	now         func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewAccountService constructs an AccountService. Token secrets and
// lifetimes come from cfg.
func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, uploader Uploader, cfg *config.Config, logger logging.Logger, rec metrics.Recorder) *AccountService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &AccountService{
		db:          db,
		repomanager: m,
		uploader:    uploader,
		issuer: auth.NewIssuer(auth.IssuerConfig{
			AccessSecret:  []byte(cfg.AccessTokenSecret),
			RefreshSecret: []byte(cfg.RefreshTokenSecret),
			AccessTTL:     cfg.AccessTokenValidityDuration,
			RefreshTTL:    cfg.RefreshTokenValidityDuration,
		}),
		logger:  logger.With("module", "account_service"),
		metrics: rec,
		now:     time.Now,
	}
}

var (
	errTokenGeneration  = common.NewError(common.ErrIntegrity, "something went wrong while generating refresh and access tokens")
	errStore            = common.NewError(common.ErrStore, "internal error")
	errRefreshTokenUsed = common.NewError(common.ErrorUnauthorized, "refresh token is expired or used")
)

// Register validates the form, uploads the avatar (and the cover image when
// given), creates the account and returns its sanitized view.
//
// The username/email pre-check only short-circuits the common case; the
// store's unique constraints decide races between concurrent registrations.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (account *models.PublicAccount, err error) {
	defer s.discard(ctx, in.AvatarPath, in.CoverImagePath)
	defer func() { s.metrics.Registration(outcome(err)) }()

	fullName := strings.TrimSpace(in.FullName)
	username := normalize(in.Username)
	email := normalize(in.Email)

	if fullName == "" || username == "" || email == "" || strings.TrimSpace(in.Password) == "" {
		return nil, common.NewError(common.ErrValidation, "all fields are required")
	}
	if len(in.Password) > auth.MaxPasswordBytes {
		return nil, common.NewError(common.ErrValidation, "password is too long")
	}

	_, err = s.repomanager.Accounts(s.db).FindOne(ctx, username, email)
	switch {
	case err == nil:
		return nil, common.NewError(common.ErrConflict, "account with username or email already exists")
	case !errors.Is(err, common.ErrorNotFound):
		s.logger.Error(ctx, "account lookup failed", "error", err)
		return nil, errStore
	}

	if in.AvatarPath == "" {
		return nil, common.NewError(common.ErrValidation, "avatar required")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		s.logger.Error(ctx, "password hashing failed", "error", err)
		return nil, common.NewError(common.ErrIntegrity, "something went wrong while registering the account")
	}

	avatarURL, coverURL, err := s.uploadAssets(ctx, in.AvatarPath, in.CoverImagePath)
	if err != nil {
		return nil, err
	}

	var created *models.Account
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		a, err := repo.Create(ctx, &models.NewAccount{
			Username:      username,
			Email:         email,
			FullName:      fullName,
			PasswordHash:  hash,
			AvatarURL:     avatarURL,
			CoverImageURL: coverURL,
		})
		if err != nil {
			return err
		}

		created, err = repo.FindByID(ctx, a.ID)
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, common.ErrorAlreadyExists):
		return nil, common.NewError(common.ErrConflict, "account with username or email already exists")
	case errors.Is(err, common.ErrorNotFound):
		s.logger.Error(ctx, "created account is not readable", "username", username)
		return nil, common.NewError(common.ErrIntegrity, "something went wrong while registering the account")
	default:
		s.logger.Error(ctx, "account creation failed", "error", err)
		return nil, errStore
	}

	s.logger.Info(ctx, "account registered", "account_id", created.ID, "username", created.Username)
	return created.Public(), nil
}

// uploadAssets uploads the avatar and the optional cover image in parallel.
// Only the avatar is required; a failed cover upload leaves its URL empty.
func (s *AccountService) uploadAssets(ctx context.Context, avatarPath, coverPath string) (string, string, error) {
	var avatarURL, coverURL string

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		url, err := s.uploader.Upload(gctx, avatarPath)
		if err == nil && url == "" {
			err = errors.New("empty url")
		}
		s.metrics.Upload("avatar", outcome(err))
		if err != nil {
			return err
		}
		avatarURL = url
		return nil
	})

	if coverPath != "" {
		g.Go(func() error {
			url, err := s.uploader.Upload(gctx, coverPath)
			s.metrics.Upload("cover_image", outcome(err))
			if err != nil {
				s.logger.Warn(gctx, "cover image upload failed", "error", err)
				return nil
			}
			coverURL = url
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Error(ctx, "avatar upload failed", "error", err)
		return "", "", common.NewError(common.ErrUpload, "avatar upload failed")
	}

	return avatarURL, coverURL, nil
}

// discard removes request temp files. Failures are logged only.
func (s *AccountService) discard(ctx context.Context, paths ...string) {
	for _, p := range paths {
		if err := filex.Remove(p); err != nil {
			s.logger.Warn(ctx, "temp file cleanup failed", "path", p, "error", err)
		}
	}
}

// Authenticate checks the credentials and starts a new session, replacing
// any refresh token stored for the account.
func (s *AccountService) Authenticate(ctx context.Context, in LoginInput) (session *Session, err error) {
	defer func() { s.metrics.Login(outcome(err)) }()

	username := normalize(in.Username)
	email := normalize(in.Email)

	if username == "" && email == "" {
		return nil, common.NewError(common.ErrValidation, "username or email is required")
	}
	if in.Password == "" {
		return nil, common.NewError(common.ErrValidation, "password is required")
	}

	account, err := s.repomanager.Accounts(s.db).FindOne(ctx, username, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// keep the response time close to the wrong-password path
			auth.VerifyPassword(s.timingHash(), in.Password)
			return nil, common.NewError(common.ErrorNotFound, "account does not exist")
		}
		s.logger.Error(ctx, "account lookup failed", "error", err)
		return nil, errStore
	}

	if !auth.VerifyPassword(account.PasswordHash, in.Password) {
		return nil, common.NewError(common.ErrorUnauthorized, "invalid credentials")
	}

	return s.startSession(ctx, account)
}

// RefreshSession exchanges the account's current refresh token for a new
// pair. The stored token is swapped only if it still equals the presented
// one, so each refresh token can be used once.
func (s *AccountService) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, common.NewError(common.ErrorUnauthorized, "unauthorized request")
	}

	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, common.NewError(common.ErrorUnauthorized, "refresh token expired")
		}
		return nil, common.NewError(common.ErrorUnauthorized, "invalid refresh token")
	}

	account, err := s.repomanager.Accounts(s.db).FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewError(common.ErrorUnauthorized, "invalid refresh token")
		}
		s.logger.Error(ctx, "account lookup failed", "error", err)
		return nil, errStore
	}

	if account.RefreshToken == "" ||
		subtle.ConstantTimeCompare([]byte(account.RefreshToken), []byte(refreshToken)) != 1 {
		return nil, errRefreshTokenUsed
	}

	pair, err := s.issuer.IssuePair(account.Identity(), s.now(), uuid.NewString())
	if err != nil {
		s.logger.Error(ctx, "token signing failed", "account_id", account.ID, "error", err)
		return nil, errTokenGeneration
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Accounts(tx).RotateRefreshToken(ctx, account.ID, refreshToken, pair.RefreshToken)
	})
	switch {
	case err == nil:
	case errors.Is(err, common.ErrorNotFound):
		s.logger.Warn(ctx, "refresh token reused", "account_id", account.ID)
		return nil, errRefreshTokenUsed
	default:
		s.logger.Error(ctx, "refresh token rotation failed", "account_id", account.ID, "error", err)
		return nil, errTokenGeneration
	}

	s.logger.Info(ctx, "session refreshed", "account_id", account.ID)
	return &Session{Account: account.Public(), Tokens: pair}, nil
}

// Terminate clears the stored refresh token. Repeating it is harmless.
func (s *AccountService) Terminate(ctx context.Context, accountID string) error {
	err := s.repomanager.Accounts(s.db).UpdateRefreshToken(ctx, accountID, "")
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.NewError(common.ErrorNotFound, "account does not exist")
		}
		s.logger.Error(ctx, "refresh token reset failed", "account_id", accountID, "error", err)
		return errStore
	}

	s.logger.Info(ctx, "session terminated", "account_id", accountID)
	return nil
}

// CurrentAccount returns the sanitized account for an authenticated id.
func (s *AccountService) CurrentAccount(ctx context.Context, accountID string) (*models.PublicAccount, error) {
	account, err := s.repomanager.Accounts(s.db).FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewError(common.ErrorNotFound, "account does not exist")
		}
		s.logger.Error(ctx, "account lookup failed", "error", err)
		return nil, errStore
	}
	return account.Public(), nil
}

// VerifyAccessToken resolves an access token to the identity it carries.
// The error is common.ErrTokenExpired or wraps common.ErrInvalidToken.
func (s *AccountService) VerifyAccessToken(token string) (*models.Identity, error) {
	claims, err := s.issuer.VerifyAccess(token)
	if err != nil {
		return nil, err
	}
	id := claims.Identity()
	return &id, nil
}

// --- helpers below ---

func (s *AccountService) startSession(ctx context.Context, account *models.Account) (*Session, error) {
	pair, err := s.issuer.IssuePair(account.Identity(), s.now(), uuid.NewString())
	if err != nil {
		s.logger.Error(ctx, "token signing failed", "account_id", account.ID, "error", err)
		return nil, errTokenGeneration
	}

	if err := s.repomanager.Accounts(s.db).UpdateRefreshToken(ctx, account.ID, pair.RefreshToken); err != nil {
		s.logger.Error(ctx, "refresh token persistence failed", "account_id", account.ID, "error", err)
		return nil, errTokenGeneration
	}

	s.logger.Info(ctx, "session started", "account_id", account.ID)
	return &Session{Account: account.Public(), Tokens: pair}, nil
}

func (s *AccountService) timingHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = auth.HashPassword("dummy-password-for-timing-only")
	})
	return s.dummyHash
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, common.ErrValidation):
		return "invalid"
	case errors.Is(err, common.ErrConflict):
		return "conflict"
	case errors.Is(err, common.ErrorNotFound), errors.Is(err, common.ErrorUnauthorized):
		return "rejected"
	default:
		return metrics.OutcomeFailure
	}
}
