package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// PostgresRepository stores records in the refresh_tokens table. Rotation
// runs in a transaction that locks the old row.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, user_id, token, issued_at, expires_at, revoked, replaced_by`

func (r *PostgresRepository) Create(ctx context.Context, userID int64, ttl time.Duration, now time.Time) (*models.RefreshToken, error) {
	return insertToken(ctx, r.db, userID, ttl, now)
}

func (r *PostgresRepository) FindByValue(ctx context.Context, value string) (*models.RefreshToken, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM refresh_tokens
		WHERE token = $1
	`
	t, err := scanToken(r.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, value string) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE token = $1
	`
	n, err := execCount(ctx, r.db, query, value)
	return n > 0, err
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID int64) (int, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE user_id = $1 AND revoked = FALSE
	`
	return execCount(ctx, r.db, query, userID)
}

func (r *PostgresRepository) MarkReplaced(ctx context.Context, value string, newID int64) (bool, error) {
	return markReplacedTx(ctx, r.db, value, newID)
}

func (r *PostgresRepository) Rotate(ctx context.Context, value string, ttl time.Duration, now time.Time) (*models.RefreshToken, error) {
	var next *models.RefreshToken

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query := `
			SELECT ` + selectColumns + `
			FROM refresh_tokens
			WHERE token = $1
			FOR UPDATE
		`
		old, err := scanToken(tx.QueryRowContext(ctx, query, value))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrorNotFound
			}
			return fmt.Errorf("db error: %w", err)
		}
		if old.IsReplaced() {
			return common.ErrRefreshTokenReused
		}
		if !old.IsValid(now) {
			return common.ErrRefreshTokenInvalid
		}

		next, err = insertToken(ctx, tx, old.UserID, ttl, now)
		if err != nil {
			return err
		}

		ok, err := markReplacedTx(ctx, tx, value, next.ID)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrRefreshTokenReused
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (r *PostgresRepository) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at < $1
	`
	return execCount(ctx, r.db, query, now)
}

// insertToken retries with a new value when the generated one already
// exists. ON CONFLICT keeps a surrounding transaction usable.
func insertToken(ctx context.Context, db dbx.DBTX, userID int64, ttl time.Duration, now time.Time) (*models.RefreshToken, error) {
	query := `
		INSERT INTO refresh_tokens (user_id, token, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO NOTHING
		RETURNING id
	`
	expires := now.Add(ttl)

	for i := 0; i < maxValueAttempts; i++ {
		value, err := newValue()
		if err != nil {
			return nil, err
		}

		var id int64
		err = db.QueryRowContext(ctx, query, userID, value, now, expires).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}

		return &models.RefreshToken{
			ID:        id,
			UserID:    userID,
			Value:     value,
			IssuedAt:  now,
			ExpiresAt: expires,
		}, nil
	}
	return nil, errValueExhausted
}

func markReplacedTx(ctx context.Context, db dbx.DBTX, value string, newID int64) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET replaced_by = $2, revoked = TRUE
		WHERE token = $1 AND replaced_by IS NULL
	`
	n, err := execCount(ctx, db, query, value, newID)
	return n > 0, err
}

func execCount(ctx context.Context, db dbx.DBTX, query string, args ...any) (int, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return int(n), nil
}

func scanToken(row *sql.Row) (*models.RefreshToken, error) {
	var (
		t          models.RefreshToken
		replacedBy sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Value, &t.IssuedAt, &t.ExpiresAt, &t.Revoked, &replacedBy); err != nil {
		return nil, err
	}
	if replacedBy.Valid {
		id := replacedBy.Int64
		t.ReplacedBy = &id
	}
	return &t, nil
}
