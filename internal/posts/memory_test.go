package posts

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

// exerciseStore runs the Store contract against any implementation.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	first, err := store.Create(ctx, Fields{Title: "First", Content: "Hello", AuthorID: "a1"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second, err := store.Create(ctx, Fields{Title: "Second", Content: "World", AuthorID: "a2"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if first.ID == uuid.Nil || first.ID == second.ID {
		t.Fatalf("Expected distinct non-nil IDs, got %s and %s", first.ID, second.ID)
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != first.ID || all[1].ID != second.ID {
		t.Fatalf("Expected both posts in creation order, got %+v", all)
	}

	got, err := store.GetOne(ctx, first.ID)
	if err != nil || got.Title != "First" || got.AuthorID != "a1" {
		t.Fatalf("GetOne returned %+v, %v", got, err)
	}

	updated, err := store.Update(ctx, first.ID, Fields{Title: "First (edited)", Content: "Hello again", AuthorID: "a1"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Title != "First (edited)" || !updated.CreatedAt.Equal(got.CreatedAt) || updated.UpdatedAt.Before(got.UpdatedAt) {
		t.Errorf("Unexpected update result %+v", updated)
	}

	if err := store.Delete(ctx, second.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.GetOne(ctx, second.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, second.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
	if _, err := store.Update(ctx, uuid.New(), Fields{Title: "x", Content: "y", AuthorID: "z"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound updating a missing post, got %v", err)
	}

	all, _ = store.GetAll(ctx)
	if len(all) != 1 || all[0].ID != first.ID {
		t.Errorf("Expected only the first post to remain, got %+v", all)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	p, _ := store.Create(ctx, Fields{Title: "T", Content: "C", AuthorID: "A"})

	p.Title = "mutated"
	got, _ := store.GetOne(ctx, p.ID)
	if got.Title != "T" {
		t.Errorf("Expected stored post to be unaffected, got %q", got.Title)
	}
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Create(ctx, Fields{Title: "T", Content: "C", AuthorID: "A"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestMemoryStoreConcurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := store.Create(ctx, Fields{Title: "T", Content: "C", AuthorID: "A"})
			if err != nil {
				t.Error(err)
				return
			}
			_, _ = store.GetAll(ctx)
			_, _ = store.Update(ctx, p.ID, Fields{Title: "U", Content: "C", AuthorID: "A"})
		}()
	}
	wg.Wait()

	all, _ := store.GetAll(ctx)
	if len(all) != 50 {
		t.Errorf("Expected 50 posts, got %d", len(all))
	}
}
