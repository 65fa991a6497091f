package schema

import (
	"time"
)

// Checkpoint represents the checkpoints table - one row per logical
// event stream recording the last fully-projected block
type Checkpoint struct {
	// StreamName identifies the logical stream
	StreamName string `gorm:"column:stream_name;primaryKey;type:text"`
	// LastBlock is the highest block whose events have been durably projected
	LastBlock uint64 `gorm:"column:last_block;not null;default:0"`
	// UpdatedAt is the timestamp of the last advance
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now()"`
}

// TableName specifies the table name for the Checkpoint model
func (Checkpoint) TableName() string {
	return "checkpoints"
}
