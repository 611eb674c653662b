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
	"sync"
	"time"
)

// MemoryStore keeps banned users in process memory, bans are lost on restart
type MemoryStore struct {
	mutex   sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore returns empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Ban saves entry
func (store *MemoryStore) Ban(ctx context.Context, conn Connection, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.BannedAt.IsZero() {
		entry.BannedAt = time.Now().UTC()
	}
	store.mutex.Lock()
	store.entries[Key(entry.Database, entry.Username)] = entry
	store.mutex.Unlock()
	return nil
}

// IsBanned returns true if user was banned
func (store *MemoryStore) IsBanned(ctx context.Context, conn Connection, username, database string) (bool, error) {
	if !canBeBanned(username, database) {
		return false, nil
	}
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	_, ok := store.entries[Key(database, username)]
	return ok, nil
}
