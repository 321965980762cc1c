package favorites

import (
	"context"
	"fmt"

	"github.com/DeafMist/manga-pulse/internal/models"
)

// LocalKey is the local store key of the guest list.
const LocalKey = "saved"

// KV is the subset of the local key-value store LocalStore needs.
type KV interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any) error
}

// LocalStore keeps the guest list under LocalKey.
type LocalStore struct {
	kv KV
}

// NewLocalStore wraps kv.
func NewLocalStore(kv KV) *LocalStore {
	return &LocalStore{kv: kv}
}

// Load returns the saved list; a missing key is an empty list.
func (s *LocalStore) Load(ctx context.Context) ([]models.NewsRecord, error) {
	var list []models.NewsRecord
	if _, err := s.kv.GetJSON(ctx, LocalKey, &list); err != nil {
		return nil, fmt.Errorf("read %s: %w", LocalKey, err)
	}
	if list == nil {
		list = []models.NewsRecord{}
	}
	return list, nil
}

// Save replaces the saved list.
func (s *LocalStore) Save(ctx context.Context, list []models.NewsRecord) error {
	if list == nil {
		list = []models.NewsRecord{}
	}
	return s.kv.SetJSON(ctx, LocalKey, list)
}

// Documents is the remote per-user document API.
type Documents interface {
	GetFavorites(ctx context.Context, userID string) ([]models.NewsRecord, error)
	PutFavorites(ctx context.Context, userID string, favorites []models.NewsRecord) error
}

// RemoteStore keeps one user's list in their remote document.
type RemoteStore struct {
	docs   Documents
	userID string
}

// NewRemoteStore binds docs to userID.
func NewRemoteStore(docs Documents, userID string) *RemoteStore {
	return &RemoteStore{docs: docs, userID: userID}
}

// Remote returns the per-user store factory NewManager expects.
func Remote(docs Documents) func(userID string) Store {
	return func(userID string) Store {
		return NewRemoteStore(docs, userID)
	}
}

// Load fetches the user's list. A missing document is an empty list.
func (s *RemoteStore) Load(ctx context.Context) ([]models.NewsRecord, error) {
	list, err := s.docs.GetFavorites(ctx, s.userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.NewsRecord{}
	}
	return list, nil
}

// Save replaces the user's whole list.
func (s *RemoteStore) Save(ctx context.Context, list []models.NewsRecord) error {
	return s.docs.PutFavorites(ctx, s.userID, list)
}
