package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/File-Sharing-BondBridg/Link-Service/internal/models"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/sharing"
	"github.com/dgraph-io/badger/v4"
)

// maxTxnRetries bounds the optimistic retry loop on write conflicts.
const maxTxnRetries = 128

// BadgerLinkStore is an embedded link store. Links live under "link/<token>";
// "owner/<owner>/<token>" keys index them per owner.
type BadgerLinkStore struct {
	db *badger.DB
}

// OpenBadgerLinkStore opens the database at path, or an in-memory one when
// path is empty.
func OpenBadgerLinkStore(path string) (*BadgerLinkStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerLinkStore{db: db}, nil
}

func (b *BadgerLinkStore) Close() error {
	return b.db.Close()
}

func badgerLinkKey(token string) []byte { return []byte("link/" + token) }

func badgerOwnerPrefix(ownerID string) []byte { return []byte("owner/" + ownerID + "/") }

func (b *BadgerLinkStore) Insert(_ context.Context, link models.ShareLink) error {
	data, err := json.Marshal(toRecord(link))
	if err != nil {
		return fmt.Errorf("failed to marshal share link: %w", err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(badgerLinkKey(link.Token))
		if err == nil {
			return sharing.ErrTokenCollision
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(badgerLinkKey(link.Token), data); err != nil {
			return err
		}
		return txn.Set(append(badgerOwnerPrefix(link.OwnerID), link.Token...), nil)
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, sharing.ErrTokenCollision), errors.Is(err, badger.ErrConflict):
		return sharing.ErrTokenCollision
	default:
		return fmt.Errorf("failed to insert share link: %w", err)
	}
}

func (b *BadgerLinkStore) Get(_ context.Context, token string) (models.ShareLink, error) {
	var rec linkRecord
	err := b.db.View(func(txn *badger.Txn) error {
		return readRecord(txn, token, &rec)
	})
	if err != nil {
		return models.ShareLink{}, err
	}
	return rec.link(), nil
}

// IncrementDownloads is a read-modify-write inside a transaction; badger
// rejects the commit if another transaction changed the link meanwhile, and
// the loop tries again.
func (b *BadgerLinkStore) IncrementDownloads(ctx context.Context, token string) (int64, error) {
	var count int64
	err := b.retry(ctx, func(txn *badger.Txn) error {
		var rec linkRecord
		if err := readRecord(txn, token, &rec); err != nil {
			return err
		}
		rec.DownloadCount++
		count = rec.DownloadCount
		return writeRecord(txn, rec)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (b *BadgerLinkStore) Deactivate(ctx context.Context, token, ownerID string) error {
	return b.retry(ctx, func(txn *badger.Txn) error {
		var rec linkRecord
		if err := readRecord(txn, token, &rec); err != nil {
			return err
		}
		if rec.OwnerID != ownerID {
			return sharing.ErrLinkNotFound
		}
		if !rec.IsActive {
			return nil
		}
		rec.IsActive = false
		return writeRecord(txn, rec)
	})
}

func (b *BadgerLinkStore) ListByOwner(_ context.Context, ownerID string) ([]models.ShareLink, error) {
	var links []models.ShareLink
	err := b.db.View(func(txn *badger.Txn) error {
		for _, token := range ownerTokens(txn, ownerID) {
			var rec linkRecord
			if err := readRecord(txn, token, &rec); err != nil {
				if errors.Is(err, sharing.ErrLinkNotFound) {
					continue
				}
				return err
			}
			links = append(links, rec.link())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByIssuedDesc(links)
	return links, nil
}

func (b *BadgerLinkStore) DeactivateAllForOwner(ctx context.Context, ownerID string) (int, error) {
	var changed int
	err := b.retry(ctx, func(txn *badger.Txn) error {
		changed = 0
		for _, token := range ownerTokens(txn, ownerID) {
			var rec linkRecord
			if err := readRecord(txn, token, &rec); err != nil {
				if errors.Is(err, sharing.ErrLinkNotFound) {
					continue
				}
				return err
			}
			if !rec.IsActive {
				continue
			}
			rec.IsActive = false
			if err := writeRecord(txn, rec); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	return changed, err
}

func (b *BadgerLinkStore) retry(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := b.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("gave up after %d conflicting transactions: %w", maxTxnRetries, badger.ErrConflict)
}

func ownerTokens(txn *badger.Txn, ownerID string) []string {
	prefix := badgerOwnerPrefix(ownerID)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	var tokens []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		tokens = append(tokens, string(it.Item().Key()[len(prefix):]))
	}
	return tokens
}

func readRecord(txn *badger.Txn, token string, rec *linkRecord) error {
	item, err := txn.Get(badgerLinkKey(token))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return sharing.ErrLinkNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, rec)
	})
}

func writeRecord(txn *badger.Txn, rec linkRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return txn.Set(badgerLinkKey(rec.Token), data)
}

func sortByIssuedDesc(links []models.ShareLink) {
	sort.Slice(links, func(i, j int) bool {
		return links[i].IssuedAt.After(links[j].IssuedAt)
	})
}
