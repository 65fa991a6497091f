package live

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/attestream/indexer/internal/domain"
	"github.com/attestream/indexer/internal/logger"
	"github.com/attestream/indexer/internal/projection"
	"github.com/attestream/indexer/internal/providers/eas"
	"github.com/attestream/indexer/internal/resolver"
	"github.com/attestream/indexer/internal/store"
)

// Tail consumes the registry's live log subscription and projects each
// event as a single-element batch, advancing the matching stream's
// checkpoint afterwards. It runs alongside the poller; both paths are
// idempotent and the checkpoint never regresses, so the overlap is safe.
type Tail interface {
	// Run blocks consuming events until ctx is cancelled or the
	// subscription fails.
	Run(ctx context.Context) error
}

type tail struct {
	eas         eas.Client
	resolver    resolver.Resolver
	projection  projection.Projection
	checkpoints store.CheckpointStore
	schemas     domain.SchemaSet
}

// NewTail creates a live tail subscriber
func NewTail(
	easClient eas.Client,
	r resolver.Resolver,
	p projection.Projection,
	checkpoints store.CheckpointStore,
	schemas domain.SchemaSet,
) Tail {
	return &tail{
		eas:         easClient,
		resolver:    r,
		projection:  p,
		checkpoints: checkpoints,
		schemas:     schemas,
	}
}

func (t *tail) Run(ctx context.Context) error {
	schemaUIDs := []common.Hash{t.schemas.Post, t.schemas.Like, t.schemas.Follow, t.schemas.Username}

	logs := make(chan types.Log)
	sub, err := t.eas.SubscribeLogs(ctx, schemaUIDs, logs)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrSubscriptionFailed, err)
	}
	defer func() {
		logger.InfoCtx(ctx, "Unsubscribing from registry logs")
		sub.Unsubscribe()
	}()

	logger.InfoCtx(ctx, "Live tail started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("subscription error: %w", err)
		case vLog := <-logs:
			if err := t.handleLog(ctx, vLog); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				logger.ErrorCtx(ctx, err,
					zap.String("tx_hash", vLog.TxHash.Hex()),
					zap.Uint64("block_number", vLog.BlockNumber))
			}
		}
	}
}

// handleLog projects one delivered log as a single-element batch
func (t *tail) handleLog(ctx context.Context, vLog types.Log) error {
	event, err := t.eas.ParseLog(vLog)
	if err != nil {
		return fmt.Errorf("failed to parse log: %w", err)
	}

	attestation, err := t.resolver.Resolve(ctx, event.UID)
	if err != nil {
		return fmt.Errorf("failed to resolve attestation %s: %w", event.UID.Hex(), err)
	}

	attestation.TxHash = event.TxHash
	attestation.BlockNumber = event.BlockNumber
	attestation.LogIndex = event.LogIndex

	var stream domain.Stream
	switch event.Kind {
	case domain.EventAttested:
		stream = domain.StreamAttestations
		err = t.projection.Apply(ctx, attestation)
	case domain.EventRevoked:
		stream = domain.StreamRevocations
		err = t.projection.Revoke(ctx, event.SchemaUID, event.UID, attestation.RevocationTime)
	default:
		return fmt.Errorf("unknown event kind %q", event.Kind)
	}
	if err != nil {
		return fmt.Errorf("failed to project event %s: %w", event.UID.Hex(), err)
	}

	// Monotonic advance: a poll cycle may already be past this block
	if err := t.checkpoints.AdvanceCheckpoint(ctx, stream, event.BlockNumber); err != nil {
		return err
	}

	logger.DebugCtx(ctx, "Live event projected",
		zap.String("uid", event.UID.Hex()),
		zap.String("kind", string(event.Kind)),
		zap.Uint64("block_number", event.BlockNumber))

	return nil
}
