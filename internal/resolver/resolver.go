package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/attestream/indexer/internal/domain"
	"github.com/attestream/indexer/internal/logger"
)

const (
	defaultRetryInterval = 500 * time.Millisecond
	defaultMaxAttempts   = 20
)

// AttestationGetter fetches a full attestation record from the registry
type AttestationGetter interface {
	GetAttestation(ctx context.Context, uid common.Hash) (*domain.Attestation, error)
}

// Config holds configuration for the Resolver
type Config struct {
	// RetryInterval is the fixed delay between resolution attempts
	RetryInterval time.Duration

	// MaxAttempts is the total number of attempts before giving up
	MaxAttempts int
}

// Resolver turns an attestation UID seen in a log event into the full
// attestation record. The registry may briefly return an empty record
// for a UID the node has not caught up with yet, so resolution retries
// on a fixed interval until the record is populated or the attempt
// limit runs out.
type Resolver interface {
	// Resolve fetches the attestation for the given UID, retrying while
	// the registry returns an empty record. It returns
	// domain.ErrResolutionTimeout once the attempt limit is exhausted.
	Resolve(ctx context.Context, uid common.Hash) (*domain.Attestation, error)
}

type resolver struct {
	getter AttestationGetter
	config Config
}

// NewResolver creates a Resolver backed by the given registry client
func NewResolver(getter AttestationGetter, config Config) Resolver {
	if config.RetryInterval <= 0 {
		config.RetryInterval = defaultRetryInterval
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaultMaxAttempts
	}

	return &resolver{
		getter: getter,
		config: config,
	}
}

func (r *resolver) Resolve(ctx context.Context, uid common.Hash) (*domain.Attestation, error) {
	var attestation *domain.Attestation

	operation := func() error {
		a, err := r.getter.GetAttestation(ctx, uid)
		if err != nil {
			return err
		}

		// An all-zero UID means the registry has no record yet
		if a.UID == (common.Hash{}) {
			return fmt.Errorf("attestation %s not yet visible", uid.Hex())
		}

		attestation = a
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(r.config.RetryInterval),
			uint64(r.config.MaxAttempts-1),
		),
		ctx,
	)

	err := backoff.RetryNotify(operation, b, func(err error, d time.Duration) {
		logger.DebugCtx(ctx, "Retrying attestation resolution",
			zap.String("uid", uid.Hex()),
			zap.Duration("next_attempt_in", d),
			zap.Error(err))
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrResolutionTimeout, uid.Hex())
	}

	return attestation, nil
}
