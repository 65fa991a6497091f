package poller

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/attestream/indexer/internal/block"
	"github.com/attestream/indexer/internal/domain"
	"github.com/attestream/indexer/internal/logger"
	"github.com/attestream/indexer/internal/projection"
	"github.com/attestream/indexer/internal/providers/eas"
	"github.com/attestream/indexer/internal/resolver"
	"github.com/attestream/indexer/internal/store"
)

const defaultParallelism = 5

// Config holds configuration for the Poller
type Config struct {
	// Parallelism caps concurrent attestation resolutions per batch
	Parallelism int

	// StartBlock is where a stream without a checkpoint begins
	StartBlock uint64
}

// Poller drains one stream's backlog of registry events since its
// checkpoint. Only one poll cycle runs at a time across both streams;
// a cycle requested while another is in flight reports ErrPollerBusy.
type Poller interface {
	// RunOnce processes all events in (checkpoint, head] for the stream
	// and returns the number of events applied.
	RunOnce(ctx context.Context, stream domain.Stream) (int, error)
}

type poller struct {
	eas         eas.Client
	head        block.BlockHeadProvider
	resolver    resolver.Resolver
	projection  projection.Projection
	checkpoints store.CheckpointStore
	schemas     domain.SchemaSet
	config      Config

	busy atomic.Bool
}

// NewPoller creates a Poller
func NewPoller(
	easClient eas.Client,
	head block.BlockHeadProvider,
	r resolver.Resolver,
	p projection.Projection,
	checkpoints store.CheckpointStore,
	schemas domain.SchemaSet,
	config Config,
) Poller {
	if config.Parallelism <= 0 {
		config.Parallelism = defaultParallelism
	}
	if config.StartBlock == 0 {
		config.StartBlock = domain.DEFAULT_DEPLOYMENT_BLOCK
	}

	return &poller{
		eas:         easClient,
		head:        head,
		resolver:    r,
		projection:  p,
		checkpoints: checkpoints,
		schemas:     schemas,
		config:      config,
	}
}

func (p *poller) schemaUIDs() []common.Hash {
	return []common.Hash{p.schemas.Post, p.schemas.Like, p.schemas.Follow, p.schemas.Username}
}

func (p *poller) RunOnce(ctx context.Context, stream domain.Stream) (int, error) {
	if !p.busy.CompareAndSwap(false, true) {
		return 0, domain.ErrPollerBusy
	}
	defer p.busy.Store(false)

	checkpoint, err := p.checkpoints.GetCheckpoint(ctx, stream)
	if err != nil {
		return 0, err
	}
	if checkpoint == 0 {
		checkpoint = p.config.StartBlock
	}

	head, err := p.head.GetLatestBlock(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get chain head: %w", err)
	}
	if head <= checkpoint {
		return 0, nil
	}

	fromBlock := checkpoint + 1

	var events []domain.LogEvent
	switch stream {
	case domain.StreamAttestations:
		events, err = p.eas.FilterAttested(ctx, fromBlock, head, p.schemaUIDs())
	case domain.StreamRevocations:
		events, err = p.eas.FilterRevoked(ctx, fromBlock, head, p.schemaUIDs())
	default:
		return 0, fmt.Errorf("unknown stream %q", stream)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query logs: %w", err)
	}

	// Empty range leaves the checkpoint untouched
	if len(events) == 0 {
		logger.DebugCtx(ctx, "No new events",
			zap.String("stream", string(stream)),
			zap.Uint64("from_block", fromBlock),
			zap.Uint64("to_block", head))
		return 0, nil
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})

	resolved := p.resolveBatch(ctx, events)

	// Apply strictly in event order so intra-batch references (a post
	// created before a like targeting it) land correctly
	applied := 0
	for i, event := range events {
		attestation := resolved[i]
		if attestation == nil {
			continue
		}

		switch event.Kind {
		case domain.EventAttested:
			err = p.projection.Apply(ctx, attestation)
		case domain.EventRevoked:
			err = p.projection.Revoke(ctx, event.SchemaUID, event.UID, attestation.RevocationTime)
		}
		if err != nil {
			return applied, fmt.Errorf("failed to project event %s: %w", event.UID.Hex(), err)
		}
		applied++
	}

	// Advance to the highest block observed in the batch. The events are
	// sorted, so that is the last one's block.
	lastBlock := events[len(events)-1].BlockNumber
	if err := p.checkpoints.AdvanceCheckpoint(ctx, stream, lastBlock); err != nil {
		return applied, err
	}

	logger.InfoCtx(ctx, "Poll cycle complete",
		zap.String("stream", string(stream)),
		zap.Int("events", len(events)),
		zap.Int("applied", applied),
		zap.Uint64("checkpoint", lastBlock))

	return applied, nil
}

// resolveBatch fans out attestation resolution with bounded parallelism.
// The result slice is positionally aligned with the input; events whose
// resolution failed hold nil and are skipped by the caller.
func (p *poller) resolveBatch(ctx context.Context, events []domain.LogEvent) []*domain.Attestation {
	resolved := make([]*domain.Attestation, len(events))

	pool := pond.NewPool(p.config.Parallelism, pond.WithContext(ctx))
	for i, event := range events {
		pool.Submit(func() {
			attestation, err := p.resolver.Resolve(ctx, event.UID)
			if err != nil {
				// Per-event failure: log with replay context and move on
				logger.ErrorCtx(ctx, err,
					zap.String("uid", event.UID.Hex()),
					zap.String("tx_hash", event.TxHash),
					zap.Uint64("block_number", event.BlockNumber))
				return
			}

			attestation.TxHash = event.TxHash
			attestation.BlockNumber = event.BlockNumber
			attestation.LogIndex = event.LogIndex
			resolved[i] = attestation
		})
	}
	pool.StopAndWait()

	return resolved
}
