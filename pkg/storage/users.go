package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"jobradar/pkg/models"
)

// GetOrCreateUser loads the user record, creating an empty one on first use.
func (s *Store) GetOrCreateUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where(models.User{ID: userID}).
		Attrs(models.User{Bookmarks: []string{}}).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, fmt.Errorf("loading user %s: %w", userID, err)
	}
	return &user, nil
}

// AddBookmark saves a job on the user's bookmark list. Bookmarking the same
// job twice is a no-op; bookmarking an unknown job is ErrNotFound.
func (s *Store) AddBookmark(ctx context.Context, userID, jobID string) (*models.User, error) {
	if _, err := s.GetByID(ctx, jobID); err != nil {
		return nil, err
	}

	user, err := s.GetOrCreateUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.HasBookmark(jobID) {
		return user, nil
	}

	user.Bookmarks = append(user.Bookmarks, jobID)
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, fmt.Errorf("saving bookmark for user %s: %w", userID, err)
	}
	return user, nil
}

// RemoveBookmark drops a job from the user's bookmark list. Removing a job
// that is not bookmarked is a no-op.
func (s *Store) RemoveBookmark(ctx context.Context, userID, jobID string) (*models.User, error) {
	user, err := s.GetOrCreateUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	kept := user.Bookmarks[:0]
	for _, id := range user.Bookmarks {
		if id != jobID {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(user.Bookmarks) {
		return user, nil
	}

	user.Bookmarks = kept
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, fmt.Errorf("removing bookmark for user %s: %w", userID, err)
	}
	return user, nil
}

// ListBookmarks resolves the user's bookmarks to postings, preserving the
// order they were saved in. Ids that no longer resolve are silently dropped.
func (s *Store) ListBookmarks(ctx context.Context, userID string) ([]models.Job, error) {
	user, err := s.GetOrCreateUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	jobs, err := s.GetByIDs(ctx, user.Bookmarks)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Job, len(jobs))
	for _, job := range jobs {
		byID[job.ID] = job
	}

	ordered := make([]models.Job, 0, len(user.Bookmarks))
	for _, id := range user.Bookmarks {
		if job, ok := byID[id]; ok {
			ordered = append(ordered, job)
		}
	}
	return ordered, nil
}

// CreateSavedSearch stores a named filter for the user.
func (s *Store) CreateSavedSearch(ctx context.Context, userID, name string, filter models.JobFilter) (*models.SavedSearch, error) {
	if _, err := s.GetOrCreateUser(ctx, userID); err != nil {
		return nil, err
	}

	search := &models.SavedSearch{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Filter:    filter,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(search).Error; err != nil {
		return nil, fmt.Errorf("creating saved search for user %s: %w", userID, err)
	}
	return search, nil
}

// ListSavedSearches returns the user's saved searches, newest first.
func (s *Store) ListSavedSearches(ctx context.Context, userID string) ([]models.SavedSearch, error) {
	var searches []models.SavedSearch
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&searches).Error
	if err != nil {
		return nil, fmt.Errorf("listing saved searches for user %s: %w", userID, err)
	}
	return searches, nil
}

// DeleteSavedSearch removes one saved search; deleting someone else's search
// or a missing id is ErrNotFound.
func (s *Store) DeleteSavedSearch(ctx context.Context, userID, searchID string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", searchID, userID).
		Delete(&models.SavedSearch{})
	if res.Error != nil {
		return fmt.Errorf("deleting saved search %s: %w", searchID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
