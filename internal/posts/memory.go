package posts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps posts in process memory in insertion order.
type MemoryStore struct {
	mu    sync.RWMutex
	posts map[uuid.UUID]*Post
	order []uuid.UUID
	now   func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		posts: make(map[uuid.UUID]*Post),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// GetAll implements Store.
func (s *MemoryStore) GetAll(ctx context.Context) ([]Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Post, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.posts[id])
	}
	return out, nil
}

// GetOne implements Store.
func (s *MemoryStore) GetOne(ctx context.Context, id uuid.UUID) (*Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, fields Fields) (*Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.now()
	p := &Post{
		ID:        uuid.New(),
		Title:     fields.Title,
		Content:   fields.Content,
		AuthorID:  fields.AuthorID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.posts[p.ID] = p
	s.order = append(s.order, p.ID)
	s.mu.Unlock()

	cp := *p
	return &cp, nil
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, id uuid.UUID, fields Fields) (*Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.Title = fields.Title
	p.Content = fields.Content
	p.AuthorID = fields.AuthorID
	p.UpdatedAt = s.now()

	cp := *p
	return &cp, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return ErrNotFound
	}
	delete(s.posts, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
