package rest

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/attestream/indexer/internal/domain"
	"github.com/attestream/indexer/internal/poller"
	"github.com/attestream/indexer/internal/store"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// GetPost retrieves a single post by its attestation uid
	// GET /api/v1/posts/:id
	GetPost(c *gin.Context)

	// ListPosts retrieves posts with optional filters
	// GET /api/v1/posts?author=<address>&include_revoked=<bool>&limit=<limit>&offset=<offset>
	ListPosts(c *gin.Context)

	// GetUser retrieves a user by address
	// GET /api/v1/users/:id
	GetUser(c *gin.Context)

	// GetUserPosts retrieves a user's posts
	// GET /api/v1/users/:id/posts?limit=<limit>&offset=<offset>
	GetUserPosts(c *gin.Context)

	// TriggerIndexRun runs one poll cycle for both streams sequentially
	// POST /api/v1/index/run
	TriggerIndexRun(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	store  store.Store
	poller poller.Poller
}

// NewHandler creates a new REST API handler. poller may be nil on the
// read-only binary; the trigger route is simply not registered there.
func NewHandler(s store.Store, p poller.Poller) Handler {
	return &handler{
		store:  s,
		poller: p,
	}
}

// parsePagination extracts limit/offset query parameters with defaults
func parsePagination(c *gin.Context) (int, uint64, error) {
	limit := defaultPageLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
		limit = parsed
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	var offset uint64
	if raw := c.Query("offset"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
		offset = parsed
	}

	return limit, offset, nil
}

// GetPost retrieves a single post by its attestation uid
func (h *handler) GetPost(c *gin.Context) {
	id := strings.ToLower(c.Param("id"))
	if id == "" {
		respondBadRequest(c, "Post id is required")
		return
	}

	result, err := h.store.GetPostWithCounts(c.Request.Context(), id)
	if err != nil {
		respondInternalError(c, err, "Failed to get post", zap.String("id", id))
		return
	}
	if result == nil {
		respondNotFound(c, "Post not found")
		return
	}

	c.JSON(http.StatusOK, toPostWithCountsDTO(result))
}

// ListPosts retrieves posts with optional filters
func (h *handler) ListPosts(c *gin.Context) {
	limit, offset, err := parsePagination(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	filter := store.PostQueryFilter{
		Author:         strings.ToLower(c.Query("author")),
		IncludeRevoked: c.Query("include_revoked") == "true",
		Limit:          limit,
		Offset:         offset,
	}

	posts, total, err := h.store.GetPostsByFilter(c.Request.Context(), filter)
	if err != nil {
		respondInternalError(c, err, "Failed to list posts")
		return
	}

	items := make([]PostDTO, 0, len(posts))
	for _, post := range posts {
		items = append(items, toPostDTO(post))
	}

	c.JSON(http.StatusOK, ListDTO[PostDTO]{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetUser retrieves a user by address
func (h *handler) GetUser(c *gin.Context) {
	id := strings.ToLower(c.Param("id"))
	if id == "" {
		respondBadRequest(c, "User id is required")
		return
	}

	user, err := h.store.GetUser(c.Request.Context(), id)
	if err != nil {
		respondInternalError(c, err, "Failed to get user", zap.String("id", id))
		return
	}
	if user == nil {
		respondNotFound(c, "User not found")
		return
	}

	c.JSON(http.StatusOK, toUserDTO(user))
}

// GetUserPosts retrieves a user's posts
func (h *handler) GetUserPosts(c *gin.Context) {
	id := strings.ToLower(c.Param("id"))
	if id == "" {
		respondBadRequest(c, "User id is required")
		return
	}

	limit, offset, err := parsePagination(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	user, err := h.store.GetUser(c.Request.Context(), id)
	if err != nil {
		respondInternalError(c, err, "Failed to get user", zap.String("id", id))
		return
	}
	if user == nil {
		respondNotFound(c, "User not found")
		return
	}

	posts, total, err := h.store.GetPostsByFilter(c.Request.Context(), store.PostQueryFilter{
		Author: id,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondInternalError(c, err, "Failed to list posts", zap.String("id", id))
		return
	}

	items := make([]PostDTO, 0, len(posts))
	for _, post := range posts {
		items = append(items, toPostDTO(post))
	}

	c.JSON(http.StatusOK, ListDTO[PostDTO]{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// TriggerIndexRun runs one poll cycle for both streams sequentially
func (h *handler) TriggerIndexRun(c *gin.Context) {
	if h.poller == nil {
		respondNotFound(c, "Indexing is not available on this instance")
		return
	}

	ctx := c.Request.Context()

	attested, err := h.poller.RunOnce(ctx, domain.StreamAttestations)
	if err != nil {
		if errors.Is(err, domain.ErrPollerBusy) {
			respondConflict(c, "A poll cycle is already running")
			return
		}
		respondInternalError(c, err, "Attestation poll cycle failed")
		return
	}

	revoked, err := h.poller.RunOnce(ctx, domain.StreamRevocations)
	if err != nil {
		if errors.Is(err, domain.ErrPollerBusy) {
			respondConflict(c, "A poll cycle is already running")
			return
		}
		respondInternalError(c, err, "Revocation poll cycle failed")
		return
	}

	c.JSON(http.StatusOK, IndexRunDTO{
		AttestationsApplied: attested,
		RevocationsApplied:  revoked,
	})
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
