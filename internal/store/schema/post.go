package schema

// Post represents the posts table - one row per post attestation
type Post struct {
	// ID is the attestation uid (0x-prefixed hex)
	ID string `gorm:"column:id;primaryKey;type:text"`
	// UserID is the attester address that authored the post
	UserID string `gorm:"column:user_id;not null;type:text;index"`
	// RecipientID is the recipient address of the attestation, if any
	RecipientID *string `gorm:"column:recipient_id;type:text"`
	// Content is the decoded post body
	Content string `gorm:"column:content;not null;type:text"`
	// ParentID links to the parent post when the attestation's refId
	// resolved to a post we already hold; nil for top-level posts and
	// for dangling references
	ParentID *string `gorm:"column:parent_id;type:text;index"`
	// CreatedAt is the attestation time (unix seconds)
	CreatedAt int64 `gorm:"column:created_at;not null"`
	// RevokedAt is the revocation time (unix seconds), 0 while the post is live
	RevokedAt int64 `gorm:"column:revoked_at;not null;default:0"`
	// TxHash is the transaction that emitted the attestation event
	TxHash string `gorm:"column:tx_hash;not null;type:text"`
	// BlockNumber is the block the attestation event was included in
	BlockNumber uint64 `gorm:"column:block_number;not null"`

	// Link preview fields, populated asynchronously when the content
	// carries an extractable URL
	PreviewTitle       *string `gorm:"column:preview_title;type:text"`
	PreviewDescription *string `gorm:"column:preview_description;type:text"`
	PreviewImageURL    *string `gorm:"column:preview_image_url;type:text"`

	// Associations
	Likes []Like `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Post model
func (Post) TableName() string {
	return "posts"
}
