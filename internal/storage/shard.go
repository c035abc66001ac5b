package storage

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/logger"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/models"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/sharing"
	"github.com/rs/zerolog"
)

// ResolveShard maps a key onto one of shardCount shards.
func ResolveShard(key string, shardCount int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(shardCount))
}

// ShardedLinkStore spreads links over several stores by token hash. Owner
// queries fan out to every shard.
type ShardedLinkStore struct {
	shards  []sharing.LinkStore
	closers []io.Closer
	log     zerolog.Logger
}

func NewShardedLinkStore(shards ...sharing.LinkStore) (*ShardedLinkStore, error) {
	if len(shards) == 0 {
		return nil, fmt.Errorf("sharded link store needs at least one shard")
	}
	return &ShardedLinkStore{shards: shards, log: logger.With("postgres")}, nil
}

// shardOpener opens one shard and returns what must be closed with it.
type shardOpener func(ctx context.Context, connection string) (sharing.LinkStore, io.Closer, error)

// ConnectPostgresShards opens one pool per connection string and migrates each.
func ConnectPostgresShards(ctx context.Context, connections []string) (*ShardedLinkStore, error) {
	return connectShards(ctx, connections, openPostgresShard)
}

func openPostgresShard(ctx context.Context, connection string) (sharing.LinkStore, io.Closer, error) {
	db, err := Connect(ctx, connection)
	if err != nil {
		return nil, nil, err
	}
	store := NewPostgresLinkStore(db)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, db, nil
}

func connectShards(ctx context.Context, connections []string, open shardOpener) (*ShardedLinkStore, error) {
	shards := make([]sharing.LinkStore, 0, len(connections))
	closers := make([]io.Closer, 0, len(connections))
	for i, conn := range connections {
		store, closer, err := open(ctx, conn)
		if err != nil {
			_ = closeAll(closers)
			return nil, fmt.Errorf("failed to open shard %d: %w", i, err)
		}
		shards = append(shards, store)
		closers = append(closers, closer)
	}

	sharded, err := NewShardedLinkStore(shards...)
	if err != nil {
		return nil, err
	}
	sharded.closers = closers
	return sharded, nil
}

// Close releases every shard pool opened by ConnectPostgresShards.
func (s *ShardedLinkStore) Close() error {
	return closeAll(s.closers)
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *ShardedLinkStore) shardFor(token string) sharing.LinkStore {
	shard := ResolveShard(token, len(s.shards))
	s.log.Debug().Int("shard", shard).Msg("resolved link shard")
	return s.shards[shard]
}

func (s *ShardedLinkStore) Insert(ctx context.Context, link models.ShareLink) error {
	return s.shardFor(link.Token).Insert(ctx, link)
}

func (s *ShardedLinkStore) Get(ctx context.Context, token string) (models.ShareLink, error) {
	return s.shardFor(token).Get(ctx, token)
}

func (s *ShardedLinkStore) IncrementDownloads(ctx context.Context, token string) (int64, error) {
	return s.shardFor(token).IncrementDownloads(ctx, token)
}

func (s *ShardedLinkStore) Deactivate(ctx context.Context, token, ownerID string) error {
	return s.shardFor(token).Deactivate(ctx, token, ownerID)
}

func (s *ShardedLinkStore) ListByOwner(ctx context.Context, ownerID string) ([]models.ShareLink, error) {
	var all []models.ShareLink
	for i, shard := range s.shards {
		links, err := shard.ListByOwner(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("shard %d: %w", i, err)
		}
		all = append(all, links...)
	}
	sortByIssuedDesc(all)
	return all, nil
}

func (s *ShardedLinkStore) DeactivateAllForOwner(ctx context.Context, ownerID string) (int, error) {
	total := 0
	for i, shard := range s.shards {
		n, err := shard.DeactivateAllForOwner(ctx, ownerID)
		if err != nil {
			return total, fmt.Errorf("shard %d: %w", i, err)
		}
		total += n
	}
	return total, nil
}
