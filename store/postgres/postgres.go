// Package postgres is the production UserStore. Uniqueness of emails and
// provider bindings is enforced by database constraints, so concurrent
// registrations for the same address race safely: one insert wins, the
// other surfaces ErrDuplicateEmail.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vendo-labs/vauth"
)

const uniqueViolation = "23505"

// Store implements vauth.UserStore on PostgreSQL via sqlx.
type Store struct {
	db *sqlx.DB
}

// New wraps an open sqlx handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type userRow struct {
	ID              string         `db:"id"`
	Email           string         `db:"email"`
	PasswordHash    sql.NullString `db:"password_hash"`
	FirstName       string         `db:"first_name"`
	LastName        string         `db:"last_name"`
	PictureURL      sql.NullString `db:"picture_url"`
	Role            string         `db:"role"`
	IsActive        bool           `db:"is_active"`
	IsEmailVerified bool           `db:"is_email_verified"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r *userRow) toUser() *vauth.User {
	return &vauth.User{
		ID:              r.ID,
		Email:           r.Email,
		PasswordHash:    r.PasswordHash.String,
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		PictureURL:      r.PictureURL.String,
		Role:            vauth.Role(r.Role),
		IsActive:        r.IsActive,
		IsEmailVerified: r.IsEmailVerified,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type accountRow struct {
	ID                string    `db:"id"`
	UserID            string    `db:"user_id"`
	Provider          string    `db:"provider"`
	ProviderAccountID string    `db:"provider_account_id"`
	CreatedAt         time.Time `db:"created_at"`
}

func (r *accountRow) toAccount() *vauth.Account {
	return &vauth.Account{
		ID:                r.ID,
		UserID:            r.UserID,
		Provider:          vauth.Provider(r.Provider),
		ProviderAccountID: r.ProviderAccountID,
		CreatedAt:         r.CreatedAt,
	}
}

type prefsRow struct {
	UserID           string         `db:"user_id"`
	TwoFactorEnabled bool           `db:"two_factor_enabled"`
	TwoFactorSecret  sql.NullString `db:"two_factor_secret"`
}

func (r *prefsRow) toPreferences() *vauth.Preferences {
	return &vauth.Preferences{
		UserID:           r.UserID,
		TwoFactorEnabled: r.TwoFactorEnabled,
		TwoFactorSecret:  r.TwoFactorSecret.String,
	}
}

const userColumns = `id, email, password_hash, first_name, last_name, picture_url,
	role, is_active, is_email_verified, created_at, updated_at`

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*vauth.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, normalize(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, vauth.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", vauth.ErrStoreUnavailable, err)
	}
	return row.toUser(), nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*vauth.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, vauth.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", vauth.ErrStoreUnavailable, err)
	}
	return row.toUser(), nil
}

func (s *Store) Create(ctx context.Context, input vauth.CreateUserInput) (*vauth.User, error) {
	role := input.Role
	if role == "" {
		role = vauth.RoleUser
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vauth.ErrStoreUnavailable, err)
	}
	defer tx.Rollback() //nolint:errcheck

	var row userRow
	err = tx.GetContext(ctx, &row, `
		INSERT INTO users (email, password_hash, first_name, last_name, picture_url, role, is_email_verified)
		VALUES ($1, NULLIF($2, ''), $3, $4, NULLIF($5, ''), $6, $7)
		RETURNING `+userColumns,
		normalize(input.Email), input.PasswordHash, input.FirstName, input.LastName,
		input.PictureURL, string(role), input.IsEmailVerified)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, vauth.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("%w: %v", vauth.ErrStoreUnavailable, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (user_id, provider, provider_account_id)
		VALUES ($1, $2, $3)`,
		row.ID, string(input.Provider), input.ProviderAccountID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, vauth.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("%w: %v", vauth.ErrStoreUnavailable, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_preferences (user_id) VALUES ($1)`, row.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vauth.ErrStoreUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", vauth.ErrStoreUnavailable, err)
	}
	return row.toUser(), nil
}

func (s *Store) Update(ctx context.Context, id string, patch vauth.UserPatch) (*vauth.User, error) {
	sets := []string{"updated_at = now()"}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.PasswordHash != nil {
		add("password_hash", sql.NullString{String: *patch.PasswordHash, Valid: *patch.PasswordHash != ""})
	}
	if patch.FirstName != nil {
		add("first_name", *patch.FirstName)
	}
	if patch.LastName != nil {
		add("last_name", *patch.LastName)
	}
	if patch.PictureURL != nil {
		add("picture_url", sql.NullString{String: *patch.PictureURL, Valid: *patch.PictureURL != ""})
	}
	if patch.Role != nil {
		add("role", string(*patch.Role))
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	if patch.IsEmailVerified != nil {
		add("is_email_verified", *patch.IsEmailVerified)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	var row userRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, vauth.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", vauth.ErrStoreUnavailable, err)
	}
	return row.toUser(), nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", vauth.ErrStoreUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", vauth.ErrStoreUnavailable, err)
	}
	if affected == 0 {
		return vauth.ErrUserNotFound
	}
	return nil
}

func (s *Store) GetAccountByProvider(ctx context.Context, provider vauth.Provider, providerAccountID string) (*vauth.Account, error) {
	var row accountRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, provider, provider_account_id, created_at
		FROM accounts WHERE provider = $1 AND provider_account_id = $2`,
		string(provider), providerAccountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, vauth.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", vauth.ErrStoreUnavailable, err)
	}
	return row.toAccount(), nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*vauth.Account, error) {
	var row accountRow
	err := s.db.GetContext(ctx, &row, `
		SELECT a.id, a.user_id, a.provider, a.provider_account_id, a.created_at
		FROM accounts a JOIN users u ON u.id = a.user_id
		WHERE u.email = $1
		ORDER BY a.created_at ASC
		LIMIT 1`, normalize(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, vauth.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", vauth.ErrStoreUnavailable, err)
	}
	return row.toAccount(), nil
}

func (s *Store) GetPreferences(ctx context.Context, userID string) (*vauth.Preferences, error) {
	var row prefsRow
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, two_factor_enabled, two_factor_secret
		FROM user_preferences WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, vauth.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", vauth.ErrStoreUnavailable, err)
	}
	return row.toPreferences(), nil
}

func (s *Store) UpdatePreferences(ctx context.Context, userID string, patch vauth.PreferencesPatch) (*vauth.Preferences, error) {
	sets := []string{}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.TwoFactorEnabled != nil {
		add("two_factor_enabled", *patch.TwoFactorEnabled)
	}
	if patch.TwoFactorSecret != nil {
		add("two_factor_secret", sql.NullString{String: *patch.TwoFactorSecret, Valid: *patch.TwoFactorSecret != ""})
	}
	if len(sets) == 0 {
		return s.GetPreferences(ctx, userID)
	}

	args = append(args, userID)
	query := fmt.Sprintf(`
		UPDATE user_preferences SET %s WHERE user_id = $%d
		RETURNING user_id, two_factor_enabled, two_factor_secret`,
		strings.Join(sets, ", "), len(args))

	var row prefsRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, vauth.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", vauth.ErrStoreUnavailable, err)
	}
	return row.toPreferences(), nil
}

var _ vauth.UserStore = (*Store)(nil)
