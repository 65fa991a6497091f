package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/attestream/indexer/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// If any of the pool settings are 0, reasonable defaults are used:
//   - MaxOpenConns: 20 (if 0)
//   - MaxIdleConns: 5 (if 0)
//   - ConnMaxLifetime: 5 minutes (if 0)
//   - ConnMaxIdleTime: 10 minutes (if 0)
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// EnsureUsers creates user rows for the given addresses if absent (first-write-wins)
func (s *pgStore) EnsureUsers(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	users := make([]schema.User, 0, len(ids))
	for _, id := range ids {
		users = append(users, schema.User{ID: id})
	}

	// ON CONFLICT DO NOTHING keeps the earliest row intact, including
	// any name already set by a username attestation
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&users).Error
	if err != nil {
		return fmt.Errorf("failed to ensure users: %w", err)
	}

	return nil
}

// GetUser retrieves a user by address
func (s *pgStore) GetUser(ctx context.Context, id string) (*schema.User, error) {
	var user schema.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// SetUserName updates a user's display name
func (s *pgStore) SetUserName(ctx context.Context, id string, name string) error {
	err := s.db.WithContext(ctx).
		Model(&schema.User{}).
		Where("id = ?", id).
		Update("name", name).Error
	if err != nil {
		return fmt.Errorf("failed to set user name: %w", err)
	}
	return nil
}

// CreatePost inserts a post if no row with the same id exists
func (s *pgStore) CreatePost(ctx context.Context, post *schema.Post) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(post).Error
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// GetPost retrieves a post by attestation uid
func (s *pgStore) GetPost(ctx context.Context, id string) (*schema.Post, error) {
	var post schema.Post
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &post, nil
}

// GetPostWithCounts retrieves a post with its live like count
func (s *pgStore) GetPostWithCounts(ctx context.Context, id string) (*PostWithCounts, error) {
	post, err := s.GetPost(ctx, id)
	if err != nil || post == nil {
		return nil, err
	}

	var likeCount int64
	err = s.db.WithContext(ctx).
		Model(&schema.Like{}).
		Where("post_id = ? AND revoked_at = 0", id).
		Count(&likeCount).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count likes: %w", err)
	}

	return &PostWithCounts{
		Post:      post,
		LikeCount: uint64(likeCount), //nolint:gosec,G115
	}, nil
}

// GetPostsByFilter retrieves posts matching the filter
func (s *pgStore) GetPostsByFilter(ctx context.Context, filter PostQueryFilter) ([]*schema.Post, uint64, error) {
	query := s.db.WithContext(ctx).Model(&schema.Post{})

	if filter.Author != "" {
		query = query.Where("user_id = ?", filter.Author)
	}
	if !filter.IncludeRevoked {
		query = query.Where("revoked_at = 0")
	}

	// Count total before pagination
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	query = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Offset(int(filter.Offset)) //nolint:gosec,G115

	var posts []*schema.Post
	if err := query.Find(&posts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get posts: %w", err)
	}

	return posts, uint64(total), nil //nolint:gosec,G115
}

// UpdatePostPreview sets the link preview fields of a post
func (s *pgStore) UpdatePostPreview(ctx context.Context, id string, title, description, imageURL *string) error {
	err := s.db.WithContext(ctx).
		Model(&schema.Post{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"preview_title":       title,
			"preview_description": description,
			"preview_image_url":   imageURL,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update post preview: %w", err)
	}
	return nil
}

// RevokePost marks a post revoked as of the given time
func (s *pgStore) RevokePost(ctx context.Context, id string, revokedAt int64) error {
	err := s.db.WithContext(ctx).
		Model(&schema.Post{}).
		Where("id = ?", id).
		Update("revoked_at", revokedAt).Error
	if err != nil {
		return fmt.Errorf("failed to revoke post: %w", err)
	}
	return nil
}

// CreateLike inserts a like if no row with the same id exists
func (s *pgStore) CreateLike(ctx context.Context, like *schema.Like) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(like).Error
	if err != nil {
		return fmt.Errorf("failed to create like: %w", err)
	}
	return nil
}

// RevokeLike marks a like revoked as of the given time
func (s *pgStore) RevokeLike(ctx context.Context, id string, revokedAt int64) error {
	err := s.db.WithContext(ctx).
		Model(&schema.Like{}).
		Where("id = ?", id).
		Update("revoked_at", revokedAt).Error
	if err != nil {
		return fmt.Errorf("failed to revoke like: %w", err)
	}
	return nil
}

// CreateFollow inserts a follow if no row with the same id exists
func (s *pgStore) CreateFollow(ctx context.Context, follow *schema.Follow) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(follow).Error
	if err != nil {
		return fmt.Errorf("failed to create follow: %w", err)
	}
	return nil
}

// RevokeFollow marks a follow revoked as of the given time
func (s *pgStore) RevokeFollow(ctx context.Context, id string, revokedAt int64) error {
	err := s.db.WithContext(ctx).
		Model(&schema.Follow{}).
		Where("id = ?", id).
		Update("revoked_at", revokedAt).Error
	if err != nil {
		return fmt.Errorf("failed to revoke follow: %w", err)
	}
	return nil
}
