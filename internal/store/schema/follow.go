package schema

// Follow represents the follows table - one row per follow attestation
type Follow struct {
	// ID is the attestation uid (0x-prefixed hex)
	ID string `gorm:"column:id;primaryKey;type:text"`
	// FollowerID is the attester address that initiated the follow
	FollowerID string `gorm:"column:follower_id;not null;type:text;index"`
	// FollowingID is the recipient address being followed
	FollowingID string `gorm:"column:following_id;not null;type:text;index"`
	// CreatedAt is the attestation time (unix seconds)
	CreatedAt int64 `gorm:"column:created_at;not null"`
	// RevokedAt is the revocation time (unix seconds), 0 while the follow is live
	RevokedAt int64 `gorm:"column:revoked_at;not null;default:0"`
}

// TableName specifies the table name for the Follow model
func (Follow) TableName() string {
	return "follows"
}
