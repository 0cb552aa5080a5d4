package repository

import (
	"context"
	"testing"
	"time"

	"chirp/pkg/models"
	"chirp/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_LoadSave(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	repo := NewPostRepository(kv)

	posts, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.NotNil(t, posts)

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	want := []models.Post{
		{ID: 2, Content: "newer", Timestamp: ts, Author: models.Author{ID: "u1", Username: "bob"}},
		{ID: 1, Content: "older", Timestamp: ts},
	}
	require.NoError(t, repo.Save(ctx, want))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	raw, err := kv.Get(ctx, KeyPosts)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"timestamp":"2026-01-02T03:04:05Z"`)
}

func TestPostRepository_KeepsMembershipSets(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	repo := NewPostRepository(kv)

	quoted := models.Post{ID: 1, Content: "orig", Engagement: models.Engagement{Retweets: 1, RetweetedBy: []string{"u3"}}}
	want := []models.Post{{
		ID:         2,
		Content:    "q",
		Engagement: models.Engagement{Likes: 2, LikedBy: []string{"u1", "u2"}},
		QuotedPost: &quoted,
		Replies: []models.Reply{
			{ID: 3, ParentID: 2, Content: "r", Engagement: models.Engagement{Likes: 1, LikedBy: []string{"u9"}}},
		},
		ReplyCount: 1,
	}}
	require.NoError(t, repo.Save(ctx, want))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	raw, err := kv.Get(ctx, KeyPosts)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"likedBy":["u1","u2"]`)
	assert.Contains(t, string(raw), `"retweetedBy":["u3"]`)
	assert.NotContains(t, string(raw), `"liked"`)
}

func TestPostRepository_CorruptDocument(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(ctx, KeyPosts, []byte(`{not json`)))

	posts, err := NewPostRepository(kv).Load(ctx)
	assert.Error(t, err)
	assert.Empty(t, posts)
}

func TestPostRepository_SaveFailure(t *testing.T) {
	kv := storage.NewMemory()
	kv.FailWrites(true)

	err := NewPostRepository(kv).Save(context.Background(), []models.Post{{ID: 1}})
	assert.ErrorIs(t, err, storage.ErrWriteFailed)
}

func TestAuthRepository_CurrentUser(t *testing.T) {
	ctx := context.Background()
	repo := NewAuthRepository(storage.NewMemory())

	_, ok, err := repo.CurrentUser(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	u := models.User{ID: "u1", Username: "bob", Email: "bob@x.io", PasswordHash: "secret-hash"}
	require.NoError(t, repo.SetCurrentUser(ctx, u))

	got, ok, err := repo.CurrentUser(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "bob", got.Username)
	assert.Empty(t, got.PasswordHash)

	require.NoError(t, repo.ClearCurrentUser(ctx))
	_, ok, err = repo.CurrentUser(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthRepository_Users(t *testing.T) {
	ctx := context.Background()
	repo := NewAuthRepository(storage.NewMemory())

	users, err := repo.Users(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	require.NoError(t, repo.SaveUsers(ctx, []models.User{{ID: "a", PasswordHash: "h"}}))
	users, err = repo.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "h", users[0].PasswordHash)
}
