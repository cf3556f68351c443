package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vidkeeper/internal/common"
	"github.com/dmitrijs2005/vidkeeper/internal/dbx"
	"github.com/dmitrijs2005/vidkeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the SQLSTATE raised by the username/email constraints.
const uniqueViolation = "23505"

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectAccount = `SELECT id, username, email, full_name, password_hash, avatar_url,
		cover_image_url, refresh_token, created_at, updated_at
		FROM accounts`

func scanAccount(row *sql.Row) (*models.Account, error) {
	a := &models.Account{}
	var refreshToken sql.NullString

	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.FullName, &a.PasswordHash, &a.AvatarURL,
		&a.CoverImageURL, &refreshToken, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	a.RefreshToken = refreshToken.String
	return a, nil
}

func (r *PostgresRepository) FindOne(ctx context.Context, username, email string) (*models.Account, error) {
	if username == "" && email == "" {
		return nil, common.ErrorNotFound
	}

	query := selectAccount + `
		WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
		ORDER BY (username = $1) DESC
		LIMIT 1
		`

	return scanAccount(r.db.QueryRowContext(ctx, query, username, email))
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	query := selectAccount + `
		WHERE id = $1
		`

	return scanAccount(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.NewAccount) (*models.Account, error) {
	query :=
		`INSERT INTO accounts (username, email, full_name, password_hash, avatar_url, cover_image_url)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at
		 `

	a := &models.Account{
		Username:      account.Username,
		Email:         account.Email,
		FullName:      account.FullName,
		PasswordHash:  account.PasswordHash,
		AvatarURL:     account.AvatarURL,
		CoverImageURL: account.CoverImageURL,
	}

	err := r.db.QueryRowContext(ctx, query,
		account.Username, account.Email, account.FullName, account.PasswordHash,
		account.AvatarURL, account.CoverImageURL).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s", common.ErrorAlreadyExists, pgErr.ConstraintName)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return a, nil
}

func (r *PostgresRepository) UpdateRefreshToken(ctx context.Context, id string, token string) error {
	query :=
		`UPDATE accounts SET refresh_token = NULLIF($2, ''), updated_at = now()
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, token)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

func (r *PostgresRepository) RotateRefreshToken(ctx context.Context, id, current, next string) error {
	query :=
		`UPDATE accounts SET refresh_token = $3, updated_at = now()
		 WHERE id = $1 AND refresh_token = $2
		 `

	res, err := r.db.ExecContext(ctx, query, id, current, next)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}
