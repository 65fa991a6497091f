package rest

import (
	"github.com/attestream/indexer/internal/store"
	"github.com/attestream/indexer/internal/store/schema"
)

// PreviewDTO carries link preview fields of a post
type PreviewDTO struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
}

// PostDTO is the API representation of a post
type PostDTO struct {
	ID          string      `json:"id"`
	Author      string      `json:"author"`
	Recipient   *string     `json:"recipient,omitempty"`
	Content     string      `json:"content"`
	ParentID    *string     `json:"parent_id,omitempty"`
	CreatedAt   int64       `json:"created_at"`
	RevokedAt   int64       `json:"revoked_at"`
	TxHash      string      `json:"tx_hash"`
	BlockNumber uint64      `json:"block_number"`
	LikeCount   *uint64     `json:"like_count,omitempty"`
	Preview     *PreviewDTO `json:"preview,omitempty"`
}

// UserDTO is the API representation of a user
type UserDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

// ListDTO wraps a paginated collection
type ListDTO[T any] struct {
	Items  []T    `json:"items"`
	Total  uint64 `json:"total"`
	Limit  int    `json:"limit"`
	Offset uint64 `json:"offset"`
}

// IndexRunDTO reports the outcome of an on-demand index run
type IndexRunDTO struct {
	AttestationsApplied int `json:"attestations_applied"`
	RevocationsApplied  int `json:"revocations_applied"`
}

func toPostDTO(post *schema.Post) PostDTO {
	dto := PostDTO{
		ID:          post.ID,
		Author:      post.UserID,
		Recipient:   post.RecipientID,
		Content:     post.Content,
		ParentID:    post.ParentID,
		CreatedAt:   post.CreatedAt,
		RevokedAt:   post.RevokedAt,
		TxHash:      post.TxHash,
		BlockNumber: post.BlockNumber,
	}

	if post.PreviewTitle != nil || post.PreviewDescription != nil || post.PreviewImageURL != nil {
		dto.Preview = &PreviewDTO{
			Title:       post.PreviewTitle,
			Description: post.PreviewDescription,
			ImageURL:    post.PreviewImageURL,
		}
	}

	return dto
}

func toPostWithCountsDTO(result *store.PostWithCounts) PostDTO {
	dto := toPostDTO(result.Post)
	dto.LikeCount = &result.LikeCount
	return dto
}

func toUserDTO(user *schema.User) UserDTO {
	return UserDTO{
		ID:        user.ID,
		Name:      user.Name,
		CreatedAt: user.CreatedAt.Unix(),
	}
}
