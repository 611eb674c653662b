/*
Copyright 2026, Cossack Labs Limited

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package banlist

import (
	"context"
	"encoding/json"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bannedBucket = []byte("banned_users")

// BoltStore keeps banned users in bbolt file
type BoltStore struct {
	db *bolt.DB
}

const boltOpenTimeout = time.Second

// OpenBoltStore opens or creates bbolt file
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, os.FileMode(0600), &bolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return nil, err
	}
	return NewBoltStore(db), nil
}

// NewBoltStore wraps opened database
func NewBoltStore(db *bolt.DB) *BoltStore {
	return &BoltStore{db: db}
}

// Ban saves entry, ban of already banned user overwrites previous entry
func (store *BoltStore) Ban(ctx context.Context, conn Connection, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.BannedAt.IsZero() {
		entry.BannedAt = time.Now().UTC()
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return store.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bannedBucket)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(Key(entry.Database, entry.Username)), value)
	})
}

// IsBanned returns true if user was banned
func (store *BoltStore) IsBanned(ctx context.Context, conn Connection, username, database string) (bool, error) {
	if !canBeBanned(username, database) {
		return false, nil
	}
	banned := false
	err := store.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bannedBucket)
		if bucket == nil {
			return nil
		}
		banned = bucket.Get([]byte(Key(database, username))) != nil
		return nil
	})
	return banned, err
}

// Entry returns saved entry of user
func (store *BoltStore) Entry(username, database string) (*Entry, bool, error) {
	var entry *Entry
	err := store.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bannedBucket)
		if bucket == nil {
			return nil
		}
		value := bucket.Get([]byte(Key(database, username)))
		if value == nil {
			return nil
		}
		entry = &Entry{}
		return json.Unmarshal(value, entry)
	})
	return entry, entry != nil, err
}

// Close closes bbolt file
func (store *BoltStore) Close() error {
	return store.db.Close()
}
