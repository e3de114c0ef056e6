// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/shelfgate/shelfgate/internal/config"
)

// Key prefixes for BadgerDB storage.
const (
	collectionKeyPrefix = "collection:"
	memberKeyPrefix     = "member:"
	memberIdxKeyPrefix  = "member_idx:"
)

// BadgerStore implements Reader backed by BadgerDB, plus the write
// surface used by the admin API.
type BadgerStore struct {
	db *badger.DB
}

// Open opens (or creates) the catalog database described by cfg.
func Open(cfg *config.CatalogConfig) (*BadgerStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

// NewBadgerStore wraps an already-open BadgerDB handle.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func collectionKey(id string) []byte {
	return []byte(collectionKeyPrefix + id)
}

func memberKey(collectionID, sourceID string) []byte {
	return []byte(memberKeyPrefix + collectionID + ":" + sourceID)
}

func memberIdxKey(sourceID string) []byte {
	return []byte(memberIdxKeyPrefix + sourceID)
}

// ListCollections returns all stored collections.
func (s *BadgerStore) ListCollections(ctx context.Context) ([]Collection, error) {
	var collections []Collection

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(collectionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var col Collection
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &col)
			})
			if err != nil {
				return fmt.Errorf("unmarshal collection: %w", err)
			}
			collections = append(collections, col)
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	return collections, nil
}

// GetCollection returns one collection by ID.
func (s *BadgerStore) GetCollection(ctx context.Context, id string) (*Collection, error) {
	var col Collection

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(collectionKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrCollectionNotFound
		}
		if err != nil {
			return fmt.Errorf("get collection: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &col)
		})
	})

	if err != nil {
		return nil, err
	}

	return &col, nil
}

// UpsertCollection creates or replaces a collection definition.
// Existing membership is untouched.
func (s *BadgerStore) UpsertCollection(ctx context.Context, col Collection) error {
	col.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(&col)
	if err != nil {
		return fmt.Errorf("marshal collection: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(collectionKey(col.ID), data)
	})
}

// SetEnabled toggles whether a collection surfaces as a virtual view.
func (s *BadgerStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	col, err := s.GetCollection(ctx, id)
	if err != nil {
		return err
	}

	col.Enabled = enabled
	col.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(col)
	if err != nil {
		return fmt.Errorf("marshal collection: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(collectionKey(id), data)
	})
}

// DeleteCollection removes a collection and all of its members.
func (s *BadgerStore) DeleteCollection(ctx context.Context, id string) error {
	sourceIDs, err := s.memberSourceIDs(id)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(collectionKey(id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete collection: %w", err)
		}

		for _, sourceID := range sourceIDs {
			if err := txn.Delete(memberKey(id, sourceID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("delete member: %w", err)
			}
			if err := txn.Delete(memberIdxKey(sourceID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("delete member index: %w", err)
			}
		}
		return nil
	})
}

// ListMembers returns the membership of a collection.
func (s *BadgerStore) ListMembers(ctx context.Context, collectionID string) ([]Member, error) {
	var members []Member

	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(collectionKey(collectionID)); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrCollectionNotFound
		} else if err != nil {
			return fmt.Errorf("get collection: %w", err)
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(memberKeyPrefix + collectionID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m Member
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			})
			if err != nil {
				return fmt.Errorf("unmarshal member: %w", err)
			}
			members = append(members, m)
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, ErrCollectionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("list members: %w", err)
	}

	return members, nil
}

// GetMember looks up a member by source ID via the secondary index.
func (s *BadgerStore) GetMember(ctx context.Context, sourceID string) (*Member, error) {
	var member Member

	err := s.db.View(func(txn *badger.Txn) error {
		idxItem, err := txn.Get(memberIdxKey(sourceID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrMemberNotFound
		}
		if err != nil {
			return fmt.Errorf("get member index: %w", err)
		}

		var collectionID string
		if err := idxItem.Value(func(val []byte) error {
			collectionID = string(val)
			return nil
		}); err != nil {
			return err
		}

		item, err := txn.Get(memberKey(collectionID, sourceID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrMemberNotFound
		}
		if err != nil {
			return fmt.Errorf("get member: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &member)
		})
	})

	if err != nil {
		return nil, err
	}

	return &member, nil
}

// ReplaceMembers atomically swaps the membership of a collection.
func (s *BadgerStore) ReplaceMembers(ctx context.Context, collectionID string, members []Member) error {
	if _, err := s.GetCollection(ctx, collectionID); err != nil {
		return err
	}

	oldIDs, err := s.memberSourceIDs(collectionID)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for _, sourceID := range oldIDs {
			if err := txn.Delete(memberKey(collectionID, sourceID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("delete member: %w", err)
			}
			if err := txn.Delete(memberIdxKey(sourceID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("delete member index: %w", err)
			}
		}

		for i := range members {
			m := members[i]
			m.CollectionID = collectionID

			data, err := json.Marshal(&m)
			if err != nil {
				return fmt.Errorf("marshal member: %w", err)
			}
			if err := txn.Set(memberKey(collectionID, m.SourceID), data); err != nil {
				return fmt.Errorf("set member: %w", err)
			}
			if err := txn.Set(memberIdxKey(m.SourceID), []byte(collectionID)); err != nil {
				return fmt.Errorf("set member index: %w", err)
			}
		}
		return nil
	})
}

// MemberCount returns the number of members in a collection without
// loading their values.
func (s *BadgerStore) MemberCount(ctx context.Context, collectionID string) (int, error) {
	count := 0

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(memberKeyPrefix + collectionID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})

	return count, err
}

func (s *BadgerStore) memberSourceIDs(collectionID string) ([]string, error) {
	var ids []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(memberKeyPrefix + collectionID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m Member
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			})
			if err != nil {
				return err
			}
			ids = append(ids, m.SourceID)
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("scan members: %w", err)
	}

	return ids, nil
}
