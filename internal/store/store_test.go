package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestream/indexer/internal/domain"
	"github.com/attestream/indexer/internal/store/schema"
)

// =============================================================================
// Test Data Builders
// =============================================================================

func buildTestPost(id, author string) *schema.Post {
	return &schema.Post{
		ID:          id,
		UserID:      author,
		Content:     fmt.Sprintf("post %s", id),
		CreatedAt:   1700000000,
		TxHash:      fmt.Sprintf("0xtx%s", id),
		BlockNumber: 1000,
	}
}

// RunStoreTests runs the shared store test suite against an implementation
func RunStoreTests(t *testing.T, initDB func(t *testing.T) (Store, CheckpointStore)) {
	t.Run("EnsureUsers", func(t *testing.T) { testEnsureUsers(t, initDB) })
	t.Run("SetUserName", func(t *testing.T) { testSetUserName(t, initDB) })
	t.Run("CreatePost", func(t *testing.T) { testCreatePost(t, initDB) })
	t.Run("GetPostsByFilter", func(t *testing.T) { testGetPostsByFilter(t, initDB) })
	t.Run("GetPostWithCounts", func(t *testing.T) { testGetPostWithCounts(t, initDB) })
	t.Run("UpdatePostPreview", func(t *testing.T) { testUpdatePostPreview(t, initDB) })
	t.Run("Revocation", func(t *testing.T) { testRevocation(t, initDB) })
	t.Run("CreateLike", func(t *testing.T) { testCreateLike(t, initDB) })
	t.Run("CreateFollow", func(t *testing.T) { testCreateFollow(t, initDB) })
	t.Run("Checkpoints", func(t *testing.T) { testCheckpoints(t, initDB) })
}

func testEnsureUsers(t *testing.T, initDB func(t *testing.T) (Store, CheckpointStore)) {
	store, _ := initDB(t)
	ctx := context.Background()

	t.Run("creates absent users", func(t *testing.T) {
		err := store.EnsureUsers(ctx, "0xaaa", "0xbbb")
		require.NoError(t, err)

		user, err := store.GetUser(ctx, "0xaaa")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "0xaaa", user.ID)
		assert.Equal(t, "", user.Name)
	})

	t.Run("existing rows are left intact", func(t *testing.T) {
		require.NoError(t, store.SetUserName(ctx, "0xaaa", "alice"))

		err := store.EnsureUsers(ctx, "0xaaa")
		require.NoError(t, err)

		user, err := store.GetUser(ctx, "0xaaa")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "alice", user.Name)
	})

	t.Run("empty input is a no-op", func(t *testing.T) {
		require.NoError(t, store.EnsureUsers(ctx))
	})
}

func testSetUserName(t *testing.T, initDB func(t *testing.T) (Store, CheckpointStore)) {
	store, _ := initDB(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureUsers(ctx, "0xccc"))

	require.NoError(t, store.SetUserName(ctx, "0xccc", "carol"))
	user, err := store.GetUser(ctx, "0xccc")
	require.NoError(t, err)
	assert.Equal(t, "carol", user.Name)

	// Last write wins
	require.NoError(t, store.SetUserName(ctx, "0xccc", "caroline"))
	user, err = store.GetUser(ctx, "0xccc")
	require.NoError(t, err)
	assert.Equal(t, "caroline", user.Name)
}

func testCreatePost(t *testing.T, initDB func(t *testing.T) (Store, CheckpointStore)) {
	store, _ := initDB(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureUsers(ctx, "0xauthor"))

	t.Run("inserts a new post", func(t *testing.T) {
		post := buildTestPost("0xp1", "0xauthor")
		require.NoError(t, store.CreatePost(ctx, post))

		got, err := store.GetPost(ctx, "0xp1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, post.Content, got.Content)
		assert.Equal(t, int64(0), got.RevokedAt)
	})

	t.Run("re-insert with same id is a no-op", func(t *testing.T) {
		dup := buildTestPost("0xp1", "0xauthor")
		dup.Content = "mutated content"
		require.NoError(t, store.CreatePost(ctx, dup))

		got, err := store.GetPost(ctx, "0xp1")
		require.NoError(t, err)
		assert.Equal(t, "post 0xp1", got.Content)
	})

	t.Run("absent post returns nil", func(t *testing.T) {
		got, err := store.GetPost(ctx, "0xmissing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func testGetPostsByFilter(t *testing.T, initDB func(t *testing.T) (Store, CheckpointStore)) {
	store, _ := initDB(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureUsers(ctx, "0xalice", "0xbob"))

	for i := 0; i < 5; i++ {
		post := buildTestPost(fmt.Sprintf("0xpa%d", i), "0xalice")
		post.CreatedAt = int64(1700000000 + i)
		require.NoError(t, store.CreatePost(ctx, post))
	}
	bobPost := buildTestPost("0xpb0", "0xbob")
	require.NoError(t, store.CreatePost(ctx, bobPost))

	t.Run("filters by author", func(t *testing.T) {
		posts, total, err := store.GetPostsByFilter(ctx, PostQueryFilter{Author: "0xalice", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, uint64(5), total)
		assert.Len(t, posts, 5)
	})

	t.Run("orders newest first and paginates", func(t *testing.T) {
		posts, total, err := store.GetPostsByFilter(ctx, PostQueryFilter{Author: "0xalice", Limit: 2, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, uint64(5), total)
		require.Len(t, posts, 2)
		assert.Equal(t, "0xpa3", posts[0].ID)
		assert.Equal(t, "0xpa2", posts[1].ID)
	})

	t.Run("excludes revoked posts by default", func(t *testing.T) {
		require.NoError(t, store.RevokePost(ctx, "0xpa0", 1700009999))

		posts, total, err := store.GetPostsByFilter(ctx, PostQueryFilter{Author: "0xalice", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, uint64(4), total)
		for _, p := range posts {
			assert.NotEqual(t, "0xpa0", p.ID)
		}

		_, total, err = store.GetPostsByFilter(ctx, PostQueryFilter{Author: "0xalice", IncludeRevoked: true, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, uint64(5), total)
	})
}

func testGetPostWithCounts(t *testing.T, initDB func(t *testing.T) (Store, CheckpointStore)) {
	store, _ := initDB(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureUsers(ctx, "0xauthor", "0xfan1", "0xfan2"))
	require.NoError(t, store.CreatePost(ctx, buildTestPost("0xpc1", "0xauthor")))

	require.NoError(t, store.CreateLike(ctx, &schema.Like{ID: "0xl1", UserID: "0xfan1", PostID: "0xpc1", CreatedAt: 1700000001}))
	require.NoError(t, store.CreateLike(ctx, &schema.Like{ID: "0xl2", UserID: "0xfan2", PostID: "0xpc1", CreatedAt: 1700000002}))

	result, err := store.GetPostWithCounts(ctx, "0xpc1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, uint64(2), result.LikeCount)

	// Revoked likes no longer count
	require.NoError(t, store.RevokeLike(ctx, "0xl2", 1700000010))
	result, err = store.GetPostWithCounts(ctx, "0xpc1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.LikeCount)

	// Absent post
	result, err = store.GetPostWithCounts(ctx, "0xmissing")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func testUpdatePostPreview(t *testing.T, initDB func(t *testing.T) (Store, CheckpointStore)) {
	store, _ := initDB(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureUsers(ctx, "0xauthor"))
	require.NoError(t, store.CreatePost(ctx, buildTestPost("0xpv1", "0xauthor")))

	title := "Example Title"
	description := "Example description"
	imageURL := "https://example.com/image.png"
	require.NoError(t, store.UpdatePostPreview(ctx, "0xpv1", &title, &description, &imageURL))

	got, err := store.GetPost(ctx, "0xpv1")
	require.NoError(t, err)
	require.NotNil(t, got.PreviewTitle)
	assert.Equal(t, title, *got.PreviewTitle)
	require.NotNil(t, got.PreviewImageURL)
	assert.Equal(t, imageURL, *got.PreviewImageURL)
}

func testRevocation(t *testing.T, initDB func(t *testing.T) (Store, CheckpointStore)) {
	store, _ := initDB(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureUsers(ctx, "0xauthor"))
	require.NoError(t, store.CreatePost(ctx, buildTestPost("0xpr1", "0xauthor")))

	t.Run("revokes an existing post", func(t *testing.T) {
		require.NoError(t, store.RevokePost(ctx, "0xpr1", 1700000100))

		got, err := store.GetPost(ctx, "0xpr1")
		require.NoError(t, err)
		assert.Equal(t, int64(1700000100), got.RevokedAt)
	})

	t.Run("re-revocation is last-write-wins", func(t *testing.T) {
		require.NoError(t, store.RevokePost(ctx, "0xpr1", 1700000200))

		got, err := store.GetPost(ctx, "0xpr1")
		require.NoError(t, err)
		assert.Equal(t, int64(1700000200), got.RevokedAt)
	})

	t.Run("revoking a nonexistent id is a no-op", func(t *testing.T) {
		require.NoError(t, store.RevokePost(ctx, "0xnothing", 1700000300))
		require.NoError(t, store.RevokeLike(ctx, "0xnothing", 1700000300))
		require.NoError(t, store.RevokeFollow(ctx, "0xnothing", 1700000300))
	})
}

func testCreateLike(t *testing.T, initDB func(t *testing.T) (Store, CheckpointStore)) {
	store, _ := initDB(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureUsers(ctx, "0xauthor", "0xfan"))
	require.NoError(t, store.CreatePost(ctx, buildTestPost("0xpl1", "0xauthor")))

	like := &schema.Like{ID: "0xlk1", UserID: "0xfan", PostID: "0xpl1", CreatedAt: 1700000001}
	require.NoError(t, store.CreateLike(ctx, like))

	// Duplicate insert keeps the original
	dup := &schema.Like{ID: "0xlk1", UserID: "0xfan", PostID: "0xpl1", CreatedAt: 1799999999}
	require.NoError(t, store.CreateLike(ctx, dup))

	result, err := store.GetPostWithCounts(ctx, "0xpl1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.LikeCount)
}

func testCreateFollow(t *testing.T, initDB func(t *testing.T) (Store, CheckpointStore)) {
	store, _ := initDB(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureUsers(ctx, "0xalice", "0xbob"))

	follow := &schema.Follow{ID: "0xf1", FollowerID: "0xalice", FollowingID: "0xbob", CreatedAt: 1700000001}
	require.NoError(t, store.CreateFollow(ctx, follow))
	require.NoError(t, store.CreateFollow(ctx, follow))

	require.NoError(t, store.RevokeFollow(ctx, "0xf1", 1700000100))
}

func testCheckpoints(t *testing.T, initDB func(t *testing.T) (Store, CheckpointStore)) {
	_, checkpoints := initDB(t)
	ctx := context.Background()

	t.Run("absent stream returns zero", func(t *testing.T) {
		block, err := checkpoints.GetCheckpoint(ctx, domain.StreamAttestations)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), block)
	})

	t.Run("advance and read back", func(t *testing.T) {
		require.NoError(t, checkpoints.AdvanceCheckpoint(ctx, domain.StreamAttestations, 1000))

		block, err := checkpoints.GetCheckpoint(ctx, domain.StreamAttestations)
		require.NoError(t, err)
		assert.Equal(t, uint64(1000), block)
	})

	t.Run("never regresses", func(t *testing.T) {
		require.NoError(t, checkpoints.AdvanceCheckpoint(ctx, domain.StreamAttestations, 900))

		block, err := checkpoints.GetCheckpoint(ctx, domain.StreamAttestations)
		require.NoError(t, err)
		assert.Equal(t, uint64(1000), block)

		require.NoError(t, checkpoints.AdvanceCheckpoint(ctx, domain.StreamAttestations, 1100))
		block, err = checkpoints.GetCheckpoint(ctx, domain.StreamAttestations)
		require.NoError(t, err)
		assert.Equal(t, uint64(1100), block)
	})

	t.Run("streams are independent", func(t *testing.T) {
		require.NoError(t, checkpoints.AdvanceCheckpoint(ctx, domain.StreamRevocations, 500))

		block, err := checkpoints.GetCheckpoint(ctx, domain.StreamRevocations)
		require.NoError(t, err)
		assert.Equal(t, uint64(500), block)
	})
}
