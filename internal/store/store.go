package store

import (
	"context"

	"github.com/attestream/indexer/internal/store/schema"
)

// PostQueryFilter defines filters for querying posts
type PostQueryFilter struct {
	// Author filters by the authoring user's address (empty = all)
	Author string
	// IncludeRevoked includes revoked posts in the result when true
	IncludeRevoked bool
	// Limit is the maximum number of posts to return
	Limit int
	// Offset is the number of posts to skip
	Offset uint64
}

// PostWithCounts bundles a post with its live like count
type PostWithCounts struct {
	Post      *schema.Post
	LikeCount uint64
}

// Store defines the interface for read-model database operations
type Store interface {
	// EnsureUsers creates user rows for the given addresses if absent (first-write-wins)
	EnsureUsers(ctx context.Context, ids ...string) error
	// GetUser retrieves a user by address, nil if absent
	GetUser(ctx context.Context, id string) (*schema.User, error)
	// SetUserName updates a user's display name
	SetUserName(ctx context.Context, id string, name string) error

	// CreatePost inserts a post if no row with the same id exists
	CreatePost(ctx context.Context, post *schema.Post) error
	// GetPost retrieves a post by attestation uid, nil if absent
	GetPost(ctx context.Context, id string) (*schema.Post, error)
	// GetPostWithCounts retrieves a post with its live like count, nil if absent
	GetPostWithCounts(ctx context.Context, id string) (*PostWithCounts, error)
	// GetPostsByFilter retrieves posts matching the filter with the total count
	GetPostsByFilter(ctx context.Context, filter PostQueryFilter) ([]*schema.Post, uint64, error)
	// UpdatePostPreview sets the link preview fields of a post
	UpdatePostPreview(ctx context.Context, id string, title, description, imageURL *string) error
	// RevokePost marks a post revoked as of the given time (no-op when absent)
	RevokePost(ctx context.Context, id string, revokedAt int64) error

	// CreateLike inserts a like if no row with the same id exists
	CreateLike(ctx context.Context, like *schema.Like) error
	// RevokeLike marks a like revoked as of the given time (no-op when absent)
	RevokeLike(ctx context.Context, id string, revokedAt int64) error

	// CreateFollow inserts a follow if no row with the same id exists
	CreateFollow(ctx context.Context, follow *schema.Follow) error
	// RevokeFollow marks a follow revoked as of the given time (no-op when absent)
	RevokeFollow(ctx context.Context, id string, revokedAt int64) error
}
