package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/conduit/internal/common"
	"github.com/dmitrijs2005/conduit/internal/dbx"
	"github.com/dmitrijs2005/conduit/internal/server/models"
)

const accountColumns = `id, email, username, bio, image, password_hash, created_at, updated_at`

var constraintFields = map[string]string{
	"users_email_key":    "email",
	"users_username_key": "username",
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	query :=
		`INSERT INTO users (email, username, bio, image, password_hash)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING ` + accountColumns

	row := r.db.QueryRowContext(ctx, query, a.Email, a.Username, a.Bio, a.Image, a.PasswordHash)
	created, err := scanAccount(row)
	if err != nil {
		return nil, r.writeError(err)
	}
	return created, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM users WHERE username = $1`, username)
}

// Update applies patch in a single statement; nil fields keep the stored
// value through COALESCE.
func (r *PostgresRepository) Update(ctx context.Context, id string, patch models.AccountPatch) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}

	query :=
		`UPDATE users SET
		   email = COALESCE($2, email),
		   username = COALESCE($3, username),
		   password_hash = COALESCE($4, password_hash),
		   bio = COALESCE($5, bio),
		   image = COALESCE($6, image),
		   updated_at = now()
		 WHERE id = $1
		 RETURNING ` + accountColumns

	row := r.db.QueryRowContext(ctx, query, id, patch.Email, patch.Username, patch.PasswordHash, patch.Bio, patch.Image)
	updated, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, r.writeError(err)
	}
	return updated, nil
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg any) (*models.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) writeError(err error) error {
	if constraint, ok := dbx.UniqueViolation(err); ok {
		if field, known := constraintFields[constraint]; known {
			return &UniqueViolationError{Field: field}
		}
	}
	return fmt.Errorf("db error: %w", err)
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var (
		a          models.Account
		bio, image sql.NullString
	)
	if err := row.Scan(&a.ID, &a.Email, &a.Username, &bio, &image, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if bio.Valid {
		a.Bio = &bio.String
	}
	if image.Valid {
		a.Image = &image.String
	}
	return &a, nil
}
