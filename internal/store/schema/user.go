package schema

import (
	"time"
)

// User represents the users table - one row per address that has ever
// authored or received an attestation
type User struct {
	// ID is the lowercase hex address of the user
	ID string `gorm:"column:id;primaryKey;type:text"`
	// Name is the display name set via a username attestation (empty until set)
	Name string `gorm:"column:name;not null;default:'';type:text"`
	// CreatedAt is the timestamp when this row was first created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`

	// Associations
	Posts   []Post   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Likes   []Like   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Follows []Follow `gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}
