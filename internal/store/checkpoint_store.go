package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/attestream/indexer/internal/domain"
	"github.com/attestream/indexer/internal/store/schema"
)

// CheckpointStore defines the interface for durable per-stream checkpoints
type CheckpointStore interface {
	// GetCheckpoint retrieves the last fully-projected block for a stream
	GetCheckpoint(ctx context.Context, stream domain.Stream) (uint64, error)
	// AdvanceCheckpoint moves the checkpoint forward; it never regresses
	AdvanceCheckpoint(ctx context.Context, stream domain.Stream, blockNumber uint64) error
}

type checkpointStore struct {
	db *gorm.DB
}

// NewCheckpointStore creates a new checkpoint store
func NewCheckpointStore(db *gorm.DB) CheckpointStore {
	return &checkpointStore{db: db}
}

// GetCheckpoint retrieves the last fully-projected block for a stream
func (s *checkpointStore) GetCheckpoint(ctx context.Context, stream domain.Stream) (uint64, error) {
	var checkpoint schema.Checkpoint
	err := s.db.WithContext(ctx).Where("stream_name = ?", string(stream)).First(&checkpoint).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil // Return 0 if no checkpoint exists
		}
		return 0, fmt.Errorf("failed to get checkpoint: %w", err)
	}

	return checkpoint.LastBlock, nil
}

// AdvanceCheckpoint moves the checkpoint forward. The poller and the
// live tail can both advance the same stream, so the upsert takes the
// greater of the stored and incoming block to keep last_block monotonic.
func (s *checkpointStore) AdvanceCheckpoint(ctx context.Context, stream domain.Stream, blockNumber uint64) error {
	checkpoint := schema.Checkpoint{
		StreamName: string(stream),
		LastBlock:  blockNumber,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "stream_name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_block": gorm.Expr("GREATEST(checkpoints.last_block, EXCLUDED.last_block)"),
			"updated_at": gorm.Expr("now()"),
		}),
	}).Create(&checkpoint).Error
	if err != nil {
		return fmt.Errorf("failed to advance checkpoint: %w", err)
	}

	return nil
}
