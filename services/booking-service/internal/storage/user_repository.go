package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// UserRepository is the user directory. Authentication happens upstream; this
// only resolves already-verified identities.
type UserRepository struct {
	pool *db.Pool
}

func NewUserRepository(pool *db.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.User, bool, error) {
	return r.findOne(ctx, `
		SELECT id, name, email, provider
		FROM users
		WHERE id = $1
	`, id)
}

func (r *UserRepository) FindProviderByID(ctx context.Context, id string) (model.User, bool, error) {
	return r.findOne(ctx, `
		SELECT id, name, email, provider
		FROM users
		WHERE id = $1 AND provider = TRUE
	`, id)
}

func (r *UserRepository) findOne(ctx context.Context, query string, id string) (model.User, bool, error) {
	var user model.User
	err := r.pool.QueryRow(ctx, query, id).Scan(&user.ID, &user.Name, &user.Email, &user.Provider)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, err
	}
	return user, true, nil
}
