package postgres

import (
	"context"

	"github.com/NordCoder/KUSeek/internal/domain/user"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var _ user.Repo = (*UserRepo)(nil)

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const (
	userColumns = `id, external_uid, email, password_hash, verified, role, created_at, updated_at`

	qUserInsert = `
INSERT INTO users (id, external_uid, email, password_hash, verified, role)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
RETURNING created_at, updated_at;`

	qUserByID = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1;`

	qUserByEmail = `
SELECT ` + userColumns + `
FROM users
WHERE email = $1;`

	qUserByExternalUID = `
SELECT ` + userColumns + `
FROM users
WHERE external_uid = $1;`
)

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := r.db.execQueryer(ctx).QueryRow(ctx, qUserInsert,
		u.ID, u.ExternalUID, u.Email, u.PasswordHash, u.Verified, string(u.Role),
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	return mapErr("user insert", err)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return r.getOne(ctx, qUserByID, id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getOne(ctx, qUserByEmail, email)
}

func (r *UserRepo) GetByExternalUID(ctx context.Context, uid string) (*user.User, error) {
	return r.getOne(ctx, qUserByExternalUID, uid)
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := scanUser(r.db.execQueryer(ctx).QueryRow(ctx, q, arg), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func scanUser(row pgx.Row, out *user.User) error {
	var (
		hash *string
		role string
	)
	if err := row.Scan(&out.ID, &out.ExternalUID, &out.Email, &hash, &out.Verified, &role, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return mapErr("scan user", err)
	}
	if hash != nil {
		out.PasswordHash = *hash
	}
	out.Role = user.Role(role)
	return nil
}
