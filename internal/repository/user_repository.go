package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/pool-booking/internal/database"
	"github.com/iliyamo/pool-booking/internal/model"
)

type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// NormalizeEmail lower-cases and trims an address the way it is stored.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Create inserts a user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, email, role string) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (email, role) VALUES (?, ?)",
		NormalizeEmail(email), role)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return getUserByEmail(ctx, r.db, email)
}

// GetByEmailTx is GetByEmail inside the caller's transaction.
func (r *UserRepo) GetByEmailTx(ctx context.Context, tx *sql.Tx, email string) (model.User, error) {
	return getUserByEmail(ctx, tx, email)
}

// LockTx takes a write lock on the user's row until tx ends, so booking
// transactions of the same user run one after another.  A no-op UPDATE is
// used because SQLite has no SELECT ... FOR UPDATE; MySQL reports zero
// changed rows for it, so the count is not checked.
func (r *UserRepo) LockTx(ctx context.Context, tx *sql.Tx, userID uint64) error {
	_, err := tx.ExecContext(ctx, "UPDATE users SET id = id WHERE id = ?", userID)
	return err
}

func getUserByEmail(ctx context.Context, q querier, email string) (model.User, error) {
	var (
		u       model.User
		created dbTime
	)
	err := q.QueryRowContext(ctx,
		"SELECT id, email, role, created_at FROM users WHERE email = ? LIMIT 1",
		NormalizeEmail(email)).Scan(&u.ID, &u.Email, &u.Role, &created)
	if err != nil {
		return model.User{}, noRows(err)
	}
	u.CreatedAt = created.Time
	return u, nil
}
