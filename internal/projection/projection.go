package projection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/attestream/indexer/internal/decoder"
	"github.com/attestream/indexer/internal/domain"
	"github.com/attestream/indexer/internal/logger"
	"github.com/attestream/indexer/internal/store"
	"github.com/attestream/indexer/internal/store/schema"
)

// PreviewEnqueuer accepts best-effort link preview work for a post.
// Enqueue never blocks and never reports failure to the caller.
type PreviewEnqueuer interface {
	Enqueue(postID string, content string)
}

// Projection routes resolved attestations to the read model. It owns all
// writes to users, posts, likes and follows.
type Projection interface {
	// Apply projects a creation attestation into the read model. Decode
	// failures, unknown schemas and referential gaps are logged and
	// swallowed; only storage failures propagate.
	Apply(ctx context.Context, attestation *domain.Attestation) error

	// Revoke marks the entity projected from uid as revoked. It routes by
	// schema to the right table and is an idempotent no-op when no row
	// matches.
	Revoke(ctx context.Context, schemaUID common.Hash, uid common.Hash, revocationTime uint64) error
}

type projection struct {
	store   store.Store
	decoder decoder.Decoder
	schemas domain.SchemaSet
	preview PreviewEnqueuer
}

// NewProjection creates a Projection. preview may be nil, in which case
// the link-preview side effect is skipped.
func NewProjection(s store.Store, d decoder.Decoder, schemas domain.SchemaSet, preview PreviewEnqueuer) Projection {
	return &projection{
		store:   s,
		decoder: d,
		schemas: schemas,
		preview: preview,
	}
}

// addressID normalizes an address into the user id format
func addressID(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func (p *projection) Apply(ctx context.Context, attestation *domain.Attestation) error {
	decoded, err := p.decoder.Decode(attestation)
	if err != nil {
		if errors.Is(err, domain.ErrDecode) {
			logger.WarnCtx(ctx, "Skipping undecodable attestation",
				zap.String("uid", attestation.UID.Hex()),
				zap.String("schema_uid", attestation.SchemaUID.Hex()),
				zap.Error(err))
			return nil
		}
		return err
	}

	switch d := decoded.(type) {
	case domain.PostDecoded:
		return p.applyPost(ctx, attestation, d)
	case domain.LikeDecoded:
		return p.applyLike(ctx, attestation)
	case domain.FollowDecoded:
		return p.applyFollow(ctx, attestation)
	case domain.UsernameDecoded:
		return p.applyUsername(ctx, attestation, d)
	case domain.UnknownDecoded:
		logger.DebugCtx(ctx, "Skipping attestation against unknown schema",
			zap.String("uid", attestation.UID.Hex()),
			zap.String("schema_uid", d.SchemaUID.Hex()))
		return nil
	default:
		return fmt.Errorf("unhandled decoded variant %T", decoded)
	}
}

func (p *projection) applyPost(ctx context.Context, attestation *domain.Attestation, d domain.PostDecoded) error {
	author := addressID(attestation.Attester)

	users := []string{author}
	var recipient *string
	if attestation.Recipient != (common.Address{}) {
		r := addressID(attestation.Recipient)
		recipient = &r
		if r != author {
			users = append(users, r)
		}
	}

	if err := p.store.EnsureUsers(ctx, users...); err != nil {
		return err
	}

	// Best-effort parent link: refs to posts we do not hold resolve to nil
	var parentID *string
	if attestation.RefUID != (common.Hash{}) {
		parent, err := p.store.GetPost(ctx, attestation.RefUID.Hex())
		if err != nil {
			return err
		}
		if parent != nil {
			parentID = &parent.ID
		} else {
			logger.DebugCtx(ctx, "Dropping dangling parent reference",
				zap.String("uid", attestation.UID.Hex()),
				zap.String("ref_uid", attestation.RefUID.Hex()))
		}
	}

	post := &schema.Post{
		ID:          attestation.UID.Hex(),
		UserID:      author,
		RecipientID: recipient,
		Content:     d.Content,
		ParentID:    parentID,
		CreatedAt:   int64(attestation.Time), //nolint:gosec,G115
		TxHash:      attestation.TxHash,
		BlockNumber: attestation.BlockNumber,
	}

	if err := p.store.CreatePost(ctx, post); err != nil {
		return err
	}

	if p.preview != nil {
		p.preview.Enqueue(post.ID, d.Content)
	}

	return nil
}

func (p *projection) applyLike(ctx context.Context, attestation *domain.Attestation) error {
	// The liked post is carried by the attestation's reference uid
	if attestation.RefUID == (common.Hash{}) {
		logger.WarnCtx(ctx, "Dropping like without target reference",
			zap.String("uid", attestation.UID.Hex()))
		return nil
	}

	target, err := p.store.GetPost(ctx, attestation.RefUID.Hex())
	if err != nil {
		return err
	}
	if target == nil {
		// Best-effort: likes on posts we never saw are dropped, not retried
		logger.DebugCtx(ctx, "Dropping like on unknown post",
			zap.String("uid", attestation.UID.Hex()),
			zap.String("post_uid", attestation.RefUID.Hex()))
		return nil
	}

	author := addressID(attestation.Attester)
	if err := p.store.EnsureUsers(ctx, author); err != nil {
		return err
	}

	return p.store.CreateLike(ctx, &schema.Like{
		ID:        attestation.UID.Hex(),
		UserID:    author,
		PostID:    target.ID,
		CreatedAt: int64(attestation.Time), //nolint:gosec,G115
	})
}

func (p *projection) applyFollow(ctx context.Context, attestation *domain.Attestation) error {
	if attestation.Recipient == (common.Address{}) {
		logger.WarnCtx(ctx, "Dropping follow without followed party",
			zap.String("uid", attestation.UID.Hex()))
		return nil
	}

	follower := addressID(attestation.Attester)
	following := addressID(attestation.Recipient)

	if err := p.store.EnsureUsers(ctx, follower, following); err != nil {
		return err
	}

	return p.store.CreateFollow(ctx, &schema.Follow{
		ID:          attestation.UID.Hex(),
		FollowerID:  follower,
		FollowingID: following,
		CreatedAt:   int64(attestation.Time), //nolint:gosec,G115
	})
}

func (p *projection) applyUsername(ctx context.Context, attestation *domain.Attestation, d domain.UsernameDecoded) error {
	author := addressID(attestation.Attester)

	if err := p.store.EnsureUsers(ctx, author); err != nil {
		return err
	}

	return p.store.SetUserName(ctx, author, d.Name)
}

func (p *projection) Revoke(ctx context.Context, schemaUID common.Hash, uid common.Hash, revocationTime uint64) error {
	id := uid.Hex()
	revokedAt := int64(revocationTime) //nolint:gosec,G115

	switch schemaUID {
	case p.schemas.Post:
		return p.store.RevokePost(ctx, id, revokedAt)
	case p.schemas.Like:
		return p.store.RevokeLike(ctx, id, revokedAt)
	case p.schemas.Follow:
		return p.store.RevokeFollow(ctx, id, revokedAt)
	default:
		// Username and unknown schemas have nothing to revoke
		logger.DebugCtx(ctx, "Skipping revocation for unhandled schema",
			zap.String("uid", id),
			zap.String("schema_uid", schemaUID.Hex()))
		return nil
	}
}
