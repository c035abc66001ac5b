package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/models"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/sharing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

func newToken(t *testing.T) string {
	t.Helper()
	token, err := sharing.RandomTokens{}.Generate()
	require.NoError(t, err)
	return token
}

func newLink(t *testing.T, owner string, issuedAt time.Time) models.ShareLink {
	return models.ShareLink{
		Token:       newToken(t),
		FileRef:     owner + "/file.bin",
		FileID:      "file-1",
		FileName:    "file.bin",
		FileSize:    42,
		OwnerID:     owner,
		OwnerEmail:  owner + "@example.com",
		IssuedAt:    issuedAt,
		ExpiresAt:   issuedAt.Add(time.Hour),
		ExpiryType:  models.ExpiryPredefined,
		AccessLevel: models.AccessDownload,
		IsActive:    true,
	}
}

// runLinkStoreSuite checks the behaviour every LinkStore backend must share.
func runLinkStoreSuite(t *testing.T, newStore func(t *testing.T) sharing.LinkStore) {
	ctx := context.Background()

	t.Run("insert and get round trip", func(t *testing.T) {
		store := newStore(t)
		owner := newToken(t)
		link := newLink(t, owner, base)
		require.NoError(t, store.Insert(ctx, link))

		got, err := store.Get(ctx, link.Token)
		require.NoError(t, err)
		assert.Equal(t, link.Token, got.Token)
		assert.Equal(t, link.FileRef, got.FileRef)
		assert.Equal(t, link.FileName, got.FileName)
		assert.Equal(t, link.FileSize, got.FileSize)
		assert.Equal(t, link.OwnerEmail, got.OwnerEmail)
		assert.True(t, link.ExpiresAt.Equal(got.ExpiresAt))
		assert.True(t, link.IssuedAt.Equal(got.IssuedAt))
		assert.Equal(t, link.AccessLevel, got.AccessLevel)
		assert.Equal(t, link.ExpiryType, got.ExpiryType)
		assert.True(t, got.IsActive)
		assert.Zero(t, got.DownloadCount)
	})

	t.Run("duplicate token is a collision", func(t *testing.T) {
		store := newStore(t)
		link := newLink(t, newToken(t), base)
		require.NoError(t, store.Insert(ctx, link))
		assert.ErrorIs(t, store.Insert(ctx, link), sharing.ErrTokenCollision)
	})

	t.Run("unknown token", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Get(ctx, newToken(t))
		assert.ErrorIs(t, err, sharing.ErrLinkNotFound)

		_, err = store.IncrementDownloads(ctx, newToken(t))
		assert.ErrorIs(t, err, sharing.ErrLinkNotFound)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		const n = 50
		store := newStore(t)
		link := newLink(t, newToken(t), base)
		require.NoError(t, store.Insert(ctx, link))

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.IncrementDownloads(ctx, link.Token)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := store.Get(ctx, link.Token)
		require.NoError(t, err)
		assert.Equal(t, int64(n), got.DownloadCount)

		count, err := store.IncrementDownloads(ctx, link.Token)
		require.NoError(t, err)
		assert.Equal(t, int64(n+1), count)
	})

	t.Run("deactivate checks owner", func(t *testing.T) {
		store := newStore(t)
		owner := newToken(t)
		link := newLink(t, owner, base)
		require.NoError(t, store.Insert(ctx, link))

		assert.ErrorIs(t, store.Deactivate(ctx, link.Token, "intruder"), sharing.ErrLinkNotFound)
		assert.ErrorIs(t, store.Deactivate(ctx, newToken(t), owner), sharing.ErrLinkNotFound)

		require.NoError(t, store.Deactivate(ctx, link.Token, owner))
		require.NoError(t, store.Deactivate(ctx, link.Token, owner), "deactivation is idempotent")

		got, err := store.Get(ctx, link.Token)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
	})

	t.Run("list by owner newest first", func(t *testing.T) {
		store := newStore(t)
		owner := newToken(t)
		older := newLink(t, owner, base)
		newer := newLink(t, owner, base.Add(time.Minute))
		other := newLink(t, newToken(t), base)
		for _, l := range []models.ShareLink{older, newer, other} {
			require.NoError(t, store.Insert(ctx, l))
		}

		links, err := store.ListByOwner(ctx, owner)
		require.NoError(t, err)
		require.Len(t, links, 2)
		assert.Equal(t, newer.Token, links[0].Token)
		assert.Equal(t, older.Token, links[1].Token)
	})

	t.Run("deactivate all for owner", func(t *testing.T) {
		store := newStore(t)
		owner := newToken(t)
		a := newLink(t, owner, base)
		b := newLink(t, owner, base.Add(time.Second))
		other := newLink(t, newToken(t), base)
		for _, l := range []models.ShareLink{a, b, other} {
			require.NoError(t, store.Insert(ctx, l))
		}
		require.NoError(t, store.Deactivate(ctx, a.Token, owner))

		n, err := store.DeactivateAllForOwner(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := store.Get(ctx, b.Token)
		require.NoError(t, err)
		assert.False(t, got.IsActive)

		got, err = store.Get(ctx, other.Token)
		require.NoError(t, err)
		assert.True(t, got.IsActive)
	})
}

func TestMemoryLinkStore(t *testing.T) {
	runLinkStoreSuite(t, func(*testing.T) sharing.LinkStore { return NewMemoryLinkStore() })
}

func TestLocalLinkStore(t *testing.T) {
	runLinkStoreSuite(t, func(t *testing.T) sharing.LinkStore {
		store, err := OpenLocalLinkStore(filepath.Join(t.TempDir(), "links.json"))
		require.NoError(t, err)
		return store
	})
}

func TestBadgerLinkStore(t *testing.T) {
	runLinkStoreSuite(t, func(t *testing.T) sharing.LinkStore {
		store, err := OpenBadgerLinkStore("")
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestShardedLinkStore(t *testing.T) {
	runLinkStoreSuite(t, func(*testing.T) sharing.LinkStore {
		store, err := NewShardedLinkStore(NewMemoryLinkStore(), NewMemoryLinkStore(), NewMemoryLinkStore())
		if err != nil {
			panic(err)
		}
		return store
	})
}

// Runs against a real server only when REDIS_ADDR is set.
func TestRedisLinkStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client, err := NewRedisClient(context.Background(), addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	runLinkStoreSuite(t, func(*testing.T) sharing.LinkStore { return NewRedisLinkStore(client) })
}

func TestLocalLinkStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "links.json")

	store, err := OpenLocalLinkStore(path)
	require.NoError(t, err)
	link := newLink(t, "owner-1", base)
	require.NoError(t, store.Insert(ctx, link))
	_, err = store.IncrementDownloads(ctx, link.Token)
	require.NoError(t, err)

	reopened, err := OpenLocalLinkStore(path)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, link.Token)
	require.NoError(t, err)
	assert.Equal(t, link.FileRef, got.FileRef, "locator survives the round trip through disk")
	assert.Equal(t, int64(1), got.DownloadCount)
}

func TestOpenLocalLinkStoreCreatesMissingDirectory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "share_links.json")

	store, err := OpenLocalLinkStore(path)
	require.NoError(t, err)

	link := newLink(t, "owner-1", base)
	require.NoError(t, store.Insert(ctx, link))

	_, err = os.Stat(path)
	assert.NoError(t, err, "first insert writes the link file")
}

func TestOpenLocalLinkStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := OpenLocalLinkStore(path)
	assert.Error(t, err)
}
