package repository

import (
	"context"
	"fmt"

	"chirp/pkg/models"
	"chirp/pkg/storage"
)

const (
	KeyUsers       = "users"
	KeyCurrentUser = "currentUser"
)

type AuthRepository interface {
	Users(ctx context.Context) ([]models.User, error)
	SaveUsers(ctx context.Context, users []models.User) error
	CurrentUser(ctx context.Context) (models.User, bool, error)
	SetCurrentUser(ctx context.Context, user models.User) error
	ClearCurrentUser(ctx context.Context) error
}

type authRepository struct {
	kv storage.KV
}

func NewAuthRepository(kv storage.KV) AuthRepository {
	return &authRepository{kv: kv}
}

func (r *authRepository) Users(ctx context.Context) ([]models.User, error) {
	var users []models.User
	ok, err := getJSON(ctx, r.kv, KeyUsers, &users)
	if err != nil || !ok {
		return []models.User{}, err
	}
	return users, nil
}

func (r *authRepository) SaveUsers(ctx context.Context, users []models.User) error {
	return setJSON(ctx, r.kv, KeyUsers, users)
}

func (r *authRepository) CurrentUser(ctx context.Context) (models.User, bool, error) {
	var user models.User
	ok, err := getJSON(ctx, r.kv, KeyCurrentUser, &user)
	return user, ok, err
}

// SetCurrentUser stores the public snapshot; the hash never lands in currentUser.
func (r *authRepository) SetCurrentUser(ctx context.Context, user models.User) error {
	return setJSON(ctx, r.kv, KeyCurrentUser, user.Public())
}

func (r *authRepository) ClearCurrentUser(ctx context.Context) error {
	if err := r.kv.Remove(ctx, KeyCurrentUser); err != nil {
		return fmt.Errorf("remove %s: %w", KeyCurrentUser, err)
	}
	return nil
}
