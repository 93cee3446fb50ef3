package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/apikit/internal/common"
	"github.com/dmitrijs2005/apikit/internal/dbx"
	"github.com/dmitrijs2005/apikit/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const userColumns = `id, email, password, first_name, last_name, is_staff, is_active, is_superuser,
		 bio, profile_picture, phone_number, email_verified, last_login, date_joined, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*models.User, error) {
	u := &models.User{}
	var lastLogin sql.NullTime
	err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.IsStaff, &u.IsActive, &u.IsSuperuser, &u.Bio, &u.ProfilePicture, &u.PhoneNumber,
		&u.EmailVerified, &lastLogin, &u.DateJoined, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (email, password, first_name, last_name, is_staff, is_active, is_superuser,
		 bio, phone_number, email_verified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, date_joined, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.IsStaff, user.IsActive, user.IsSuperuser,
		user.Bio, user.PhoneNumber, user.EmailVerified).
		Scan(&user.ID, &user.DateJoined, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + `
		 FROM users
		 WHERE id = $1
		 `
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + `
		 FROM users
		 WHERE LOWER(email) = LOWER($1)
		 `
	return r.getOne(ctx, query, email)
}

// whereClause renders the filter as a WHERE clause with positional args
// starting at $1.
func whereClause(f models.UserFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}

	if f.OnlyID != "" {
		add("id = ?", f.OnlyID)
	}
	if f.CreatedAfter != nil {
		add("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		add("created_at <= ?", *f.CreatedBefore)
	}
	if f.UpdatedAfter != nil {
		add("updated_at >= ?", *f.UpdatedAfter)
	}
	if f.UpdatedBefore != nil {
		add("updated_at <= ?", *f.UpdatedBefore)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *PostgresRepository) List(ctx context.Context, filter models.UserFilter, limit, offset int) ([]*models.User, error) {
	where, args := whereClause(filter)
	n := len(args)
	query := `SELECT ` + userColumns + ` FROM users` + where +
		` ORDER BY created_at DESC, id LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) Count(ctx context.Context, filter models.UserFilter) (int, error) {
	where, args := whereClause(filter)
	query := `SELECT COUNT(*) FROM users` + where

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	query :=
		`UPDATE users SET
		 first_name = COALESCE($2, first_name),
		 last_name = COALESCE($3, last_name),
		 bio = COALESCE($4, bio),
		 profile_picture = COALESCE($5, profile_picture),
		 phone_number = COALESCE($6, phone_number),
		 updated_at = NOW()
		 WHERE id = $1
		 RETURNING ` + userColumns + `
		 `
	return r.getOne(ctx, query, id, upd.FirstName, upd.LastName, upd.Bio, upd.ProfilePicture, upd.PhoneNumber)
}

// execOne runs a single-row UPDATE and maps "no row touched" to ErrorNotFound.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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

func (r *PostgresRepository) SetPassword(ctx context.Context, id string, passwordHash string) error {
	query :=
		`UPDATE users SET password = $2, updated_at = NOW()
		 WHERE id = $1
		 `
	return r.execOne(ctx, query, id, passwordHash)
}

func (r *PostgresRepository) SetEmailVerified(ctx context.Context, id string) error {
	query :=
		`UPDATE users SET email_verified = TRUE, updated_at = NOW()
		 WHERE id = $1
		 `
	return r.execOne(ctx, query, id)
}

func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	query :=
		`UPDATE users SET is_active = FALSE, updated_at = NOW()
		 WHERE id = $1
		 `
	return r.execOne(ctx, query, id)
}

// UpdateLastLogin does not touch updated_at.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	query :=
		`UPDATE users SET last_login = $2
		 WHERE id = $1
		 `
	return r.execOne(ctx, query, id, at)
}
