package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/logger"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/models"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/sharing"
	"github.com/redis/go-redis/v9"
)

// incrementScript bumps the counter only when the link hash exists, so a
// missing token is never materialized as a bare counter.
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
return redis.call('HINCRBY', KEYS[1], 'download_count', 1)
`)

// deactivateScript returns 0 for a missing or foreign link, 1 when it switched
// the link off and 2 when it was already inactive.
var deactivateScript = redis.NewScript(`
local owner = redis.call('HGET', KEYS[1], 'owner_id')
if not owner or owner ~= ARGV[1] then
  return 0
end
if redis.call('HGET', KEYS[1], 'is_active') == '0' then
  return 2
end
redis.call('HSET', KEYS[1], 'is_active', '0')
return 1
`)

// RedisLinkStore keeps each link in a hash and indexes tokens per owner in a set.
type RedisLinkStore struct {
	client *redis.Client
}

// NewRedisClient connects and pings, like the other backends.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log := logger.With("redis")
	log.Info().Str("addr", addr).Msg("connected to Redis")
	return client, nil
}

func NewRedisLinkStore(client *redis.Client) *RedisLinkStore {
	return &RedisLinkStore{client: client}
}

func linkKey(token string) string    { return "sharelink:" + token }
func ownerKey(ownerID string) string { return "sharelinks:owner:" + ownerID }

func (r *RedisLinkStore) Insert(ctx context.Context, link models.ShareLink) error {
	key := linkKey(link.Token)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return sharing.ErrTokenCollision
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, linkFields(link))
			pipe.SAdd(ctx, ownerKey(link.OwnerID), link.Token)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, sharing.ErrTokenCollision), errors.Is(err, redis.TxFailedErr):
		return sharing.ErrTokenCollision
	default:
		return fmt.Errorf("failed to insert share link: %w", err)
	}
}

func (r *RedisLinkStore) Get(ctx context.Context, token string) (models.ShareLink, error) {
	fields, err := r.client.HGetAll(ctx, linkKey(token)).Result()
	if err != nil {
		return models.ShareLink{}, fmt.Errorf("failed to get share link: %w", err)
	}
	if len(fields) == 0 {
		return models.ShareLink{}, sharing.ErrLinkNotFound
	}
	return parseLinkFields(fields)
}

func (r *RedisLinkStore) IncrementDownloads(ctx context.Context, token string) (int64, error) {
	count, err := incrementScript.Run(ctx, r.client, []string{linkKey(token)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to increment download count: %w", err)
	}
	if count < 0 {
		return 0, sharing.ErrLinkNotFound
	}
	return count, nil
}

func (r *RedisLinkStore) Deactivate(ctx context.Context, token, ownerID string) error {
	res, err := deactivateScript.Run(ctx, r.client, []string{linkKey(token)}, ownerID).Int()
	if err != nil {
		return fmt.Errorf("failed to deactivate share link: %w", err)
	}
	if res == 0 {
		return sharing.ErrLinkNotFound
	}
	return nil
}

func (r *RedisLinkStore) ListByOwner(ctx context.Context, ownerID string) ([]models.ShareLink, error) {
	tokens, err := r.client.SMembers(ctx, ownerKey(ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list share links: %w", err)
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(tokens))
	for i, token := range tokens {
		cmds[i] = pipe.HGetAll(ctx, linkKey(token))
	}
	if len(tokens) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to load share links: %w", err)
		}
	}

	links := make([]models.ShareLink, 0, len(tokens))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		link, err := parseLinkFields(fields)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	sortByIssuedDesc(links)
	return links, nil
}

func (r *RedisLinkStore) DeactivateAllForOwner(ctx context.Context, ownerID string) (int, error) {
	tokens, err := r.client.SMembers(ctx, ownerKey(ownerID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list share links: %w", err)
	}

	changed := 0
	for _, token := range tokens {
		res, err := deactivateScript.Run(ctx, r.client, []string{linkKey(token)}, ownerID).Int()
		if err != nil {
			return changed, fmt.Errorf("failed to deactivate share link: %w", err)
		}
		if res == 1 {
			changed++
		}
	}
	return changed, nil
}

func linkFields(l models.ShareLink) map[string]any {
	return map[string]any{
		"token":          l.Token,
		"file_ref":       l.FileRef,
		"file_id":        l.FileID,
		"file_name":      l.FileName,
		"file_size":      l.FileSize,
		"owner_id":       l.OwnerID,
		"owner_email":    l.OwnerEmail,
		"issued_at":      l.IssuedAt.UTC().Format(time.RFC3339Nano),
		"expires_at":     l.ExpiresAt.UTC().Format(time.RFC3339Nano),
		"expiry_type":    string(l.ExpiryType),
		"access_level":   string(l.AccessLevel),
		"is_active":      boolField(l.IsActive),
		"download_count": l.DownloadCount,
	}
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseLinkFields(f map[string]string) (models.ShareLink, error) {
	issuedAt, err := time.Parse(time.RFC3339Nano, f["issued_at"])
	if err != nil {
		return models.ShareLink{}, fmt.Errorf("bad issued_at on link: %w", err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, f["expires_at"])
	if err != nil {
		return models.ShareLink{}, fmt.Errorf("bad expires_at on link: %w", err)
	}
	size, _ := strconv.ParseInt(f["file_size"], 10, 64)
	count, _ := strconv.ParseInt(f["download_count"], 10, 64)

	return models.ShareLink{
		Token:         f["token"],
		FileRef:       f["file_ref"],
		FileID:        f["file_id"],
		FileName:      f["file_name"],
		FileSize:      size,
		OwnerID:       f["owner_id"],
		OwnerEmail:    f["owner_email"],
		IssuedAt:      issuedAt,
		ExpiresAt:     expiresAt,
		ExpiryType:    models.ExpiryType(f["expiry_type"]),
		AccessLevel:   models.AccessLevel(f["access_level"]),
		IsActive:      f["is_active"] == "1",
		DownloadCount: count,
	}, nil
}
