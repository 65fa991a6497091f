package schema

// Like represents the likes table - one row per like attestation that
// targeted a post we hold
type Like struct {
	// ID is the attestation uid (0x-prefixed hex)
	ID string `gorm:"column:id;primaryKey;type:text"`
	// UserID is the attester address that liked the post
	UserID string `gorm:"column:user_id;not null;type:text;index"`
	// PostID is the liked post's attestation uid
	PostID string `gorm:"column:post_id;not null;type:text;index"`
	// CreatedAt is the attestation time (unix seconds)
	CreatedAt int64 `gorm:"column:created_at;not null"`
	// RevokedAt is the revocation time (unix seconds), 0 while the like is live
	RevokedAt int64 `gorm:"column:revoked_at;not null;default:0"`
}

// TableName specifies the table name for the Like model
func (Like) TableName() string {
	return "likes"
}
