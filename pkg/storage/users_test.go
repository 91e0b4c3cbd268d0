package storage

import (
	"context"
	"testing"

	"jobradar/pkg/models"
)

func seedJob(t *testing.T, store *Store, source, externalID string) models.Job {
	t.Helper()
	job := testJob(source, externalID, "Go Engineer")
	if _, _, err := store.UpsertJobs(context.Background(), []models.Job{job}); err != nil {
		t.Fatalf("seeding job: %v", err)
	}
	return job
}

func TestAddBookmark(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	job := seedJob(t, store, "remotive", "1")

	user, err := store.AddBookmark(ctx, "alice", job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(user.Bookmarks) != 1 || user.Bookmarks[0] != job.ID {
		t.Errorf("unexpected bookmarks: %v", user.Bookmarks)
	}

	// Bookmarking again is a no-op.
	user, err = store.AddBookmark(ctx, "alice", job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(user.Bookmarks) != 1 {
		t.Errorf("duplicate bookmark added: %v", user.Bookmarks)
	}
}

func TestAddBookmarkUnknownJob(t *testing.T) {
	store := newTestStore(t)

	_, err := store.AddBookmark(context.Background(), "alice", "missing_1")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveBookmark(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	job := seedJob(t, store, "remotive", "1")

	if _, err := store.AddBookmark(ctx, "alice", job.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	user, err := store.RemoveBookmark(ctx, "alice", job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(user.Bookmarks) != 0 {
		t.Errorf("bookmark not removed: %v", user.Bookmarks)
	}

	// Removing a job that is not bookmarked is a no-op.
	if _, err := store.RemoveBookmark(ctx, "alice", "never_seen"); err != nil {
		t.Errorf("unexpected error on no-op removal: %v", err)
	}
}

func TestListBookmarksPreservesOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := seedJob(t, store, "remotive", "1")
	second := seedJob(t, store, "usajobs", "2")

	if _, err := store.AddBookmark(ctx, "alice", second.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := store.AddBookmark(ctx, "alice", first.ID); err != nil {
		t.Fatal(err)
	}

	jobs, err := store.ListBookmarks(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 bookmarks, got %d", len(jobs))
	}
	if jobs[0].ID != second.ID || jobs[1].ID != first.ID {
		t.Errorf("bookmark order not preserved: %s, %s", jobs[0].ID, jobs[1].ID)
	}
}

func TestSavedSearchLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	remote := true
	search, err := store.CreateSavedSearch(ctx, "alice", "remote go roles", models.JobFilter{
		Keywords: []string{"golang"},
		Remote:   &remote,
		VisaOnly: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if search.ID == "" {
		t.Fatal("expected generated search id")
	}

	searches, err := store.ListSavedSearches(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(searches) != 1 {
		t.Fatalf("expected 1 saved search, got %d", len(searches))
	}
	got := searches[0]
	if got.Name != "remote go roles" {
		t.Errorf("unexpected name %q", got.Name)
	}
	if len(got.Filter.Keywords) != 1 || got.Filter.Keywords[0] != "golang" {
		t.Errorf("filter not persisted: %+v", got.Filter)
	}
	if !got.Filter.VisaOnly {
		t.Error("visa flag not persisted")
	}

	if err := store.DeleteSavedSearch(ctx, "alice", search.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.DeleteSavedSearch(ctx, "alice", search.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestDeleteSavedSearchOwnership(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	search, err := store.CreateSavedSearch(ctx, "alice", "mine", models.JobFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.DeleteSavedSearch(ctx, "bob", search.ID); err != ErrNotFound {
		t.Errorf("deleting another user's search should be ErrNotFound, got %v", err)
	}
}
