// Package posts implements the /posts resource: a blog post store with in-memory and
// PostgreSQL implementations and the HTTP handlers on top of it.
package posts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Domain errors for the posts system.
var (
	// ErrNotFound indicates the requested post does not exist.
	ErrNotFound = errors.New("post not found")
)

// Post is a stored blog post.
type Post struct {
	ID        uuid.UUID `json:"postID"`
	Title     string    `json:"postTitle"`
	Content   string    `json:"postContent"`
	AuthorID  string    `json:"postAuthorID"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Fields are the writable fields of a post.
type Fields struct {
	Title    string `json:"postTitle" validate:"required,max=200"`
	Content  string `json:"postContent" validate:"required,max=50000"`
	AuthorID string `json:"postAuthorID" validate:"required,max=128"`
}

// Store persists posts. Implementations are safe for concurrent use.
type Store interface {
	// GetAll returns every post, oldest first.
	GetAll(ctx context.Context) ([]Post, error)

	// GetOne returns the post with id or ErrNotFound.
	GetOne(ctx context.Context, id uuid.UUID) (*Post, error)

	// Create stores a new post.
	Create(ctx context.Context, fields Fields) (*Post, error)

	// Update replaces the fields of the post with id or returns ErrNotFound.
	Update(ctx context.Context, id uuid.UUID, fields Fields) (*Post, error)

	// Delete removes the post with id or returns ErrNotFound.
	Delete(ctx context.Context, id uuid.UUID) error
}
