// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/awslabs/argot-sast/analysis/config"
	"github.com/awslabs/argot-sast/analysis/facts"
	"github.com/dgraph-io/badger/v4"
)

const snapshotKeyPrefix = "snapshot/"

// SnapshotCache persists loaded snapshots in a badger database, keyed by the stamp of the store they were loaded
// from.
type SnapshotCache struct {
	db *badger.DB
}

type badgerLogger struct {
	logger *config.LogGroup
}

func (l *badgerLogger) Errorf(format string, args ...interface{})   { l.logger.Errorf(format, args...) }
func (l *badgerLogger) Warningf(format string, args ...interface{}) { l.logger.Warnf(format, args...) }
func (l *badgerLogger) Infof(format string, args ...interface{})    { l.logger.Debugf(format, args...) }
func (l *badgerLogger) Debugf(format string, args ...interface{})   { l.logger.Tracef(format, args...) }

// OpenSnapshotCache opens the cache in dir, creating the directory if needed. An empty dir opens an in-memory cache.
func OpenSnapshotCache(dir string, logger *config.LogGroup) (*SnapshotCache, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create snapshot cache directory %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(&badgerLogger{logger: logger})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot cache: %w", err)
	}
	return &SnapshotCache{db: db}, nil
}

// Get returns the snapshot stored under stamp, or false if there is none.
func (c *SnapshotCache) Get(stamp string) (*facts.Snapshot, bool, error) {
	var snapshot *facts.Snapshot
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapshotKeyPrefix + stamp))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			snapshot = &facts.Snapshot{}
			return json.Unmarshal(val, snapshot)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached snapshot: %w", err)
	}
	return snapshot, true, nil
}

// Put stores the snapshot under stamp. Snapshots stored under other stamps are removed.
func (c *SnapshotCache) Put(stamp string, snapshot *facts.Snapshot) error {
	b, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := c.db.DropPrefix([]byte(snapshotKeyPrefix)); err != nil {
		return fmt.Errorf("clear snapshot cache: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(snapshotKeyPrefix+stamp), b)
	})
}

// Close closes the badger database
func (c *SnapshotCache) Close() error {
	return c.db.Close()
}

// CachedStore is a Store that serves snapshots from a SnapshotCache when the stamp of the underlying store has not
// changed since the snapshot was cached.
type CachedStore struct {
	Store
	cache  *SnapshotCache
	logger *config.LogGroup
}

// NewCachedStore wraps s with the cache
func NewCachedStore(s Store, cache *SnapshotCache, logger *config.LogGroup) *CachedStore {
	return &CachedStore{Store: s, cache: cache, logger: logger}
}

// Load returns the cached snapshot for the current stamp of the store, or loads it from the store and caches it.
// Errors of the cache are logged and never fail the load.
func (s *CachedStore) Load(ctx context.Context) (*facts.Snapshot, error) {
	stamp, err := s.Store.Stamp()
	if err != nil || stamp == "" {
		return s.Store.Load(ctx)
	}
	cached, ok, err := s.cache.Get(stamp)
	if err != nil {
		s.logger.Warnf("Ignoring snapshot cache: %v", err)
	} else if ok {
		s.logger.Infof("Using cached fact snapshot (%s)", cached)
		return cached, nil
	}
	snapshot, err := s.Store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Put(stamp, snapshot); err != nil {
		s.logger.Warnf("Could not cache fact snapshot: %v", err)
	}
	return snapshot, nil
}

// Close closes the cache and the underlying store
func (s *CachedStore) Close() error {
	return errors.Join(s.cache.Close(), s.Store.Close())
}
