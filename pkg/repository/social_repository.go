package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chirp/pkg/models"
	"chirp/pkg/storage"
)

const KeyPosts = "posts"

// PostRepository loads and saves the whole post collection as one document,
// most recent first.
type PostRepository interface {
	Load(ctx context.Context) ([]models.Post, error)
	Save(ctx context.Context, posts []models.Post) error
}

type postRepository struct {
	kv storage.KV
}

func NewPostRepository(kv storage.KV) PostRepository {
	return &postRepository{kv: kv}
}

func (r *postRepository) Load(ctx context.Context) ([]models.Post, error) {
	var records []postRecord
	ok, err := getJSON(ctx, r.kv, KeyPosts, &records)
	if err != nil || !ok {
		return []models.Post{}, err
	}

	posts := make([]models.Post, len(records))
	for i, rec := range records {
		posts[i] = rec.model()
	}
	return posts, nil
}

func (r *postRepository) Save(ctx context.Context, posts []models.Post) error {
	records := make([]postRecord, len(posts))
	for i, p := range posts {
		records[i] = toPostRecord(p)
	}
	return setJSON(ctx, r.kv, KeyPosts, records)
}

func getJSON(ctx context.Context, kv storage.KV, key string, dest any) (bool, error) {
	raw, err := kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func setJSON(ctx context.Context, kv storage.KV, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
