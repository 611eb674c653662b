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
	"time"

	"github.com/go-redis/redis/v7"
)

// RedisKeyPrefix prepended to Key in RedisStore
const RedisKeyPrefix = "sqlfirewall/banned/"

const noExpiration = 0

// NewRedisClient return new redis client checked with ping
func NewRedisClient(hostport, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     hostport,
		Password: password,
		DB:       db,
	})
	if _, err := client.Ping().Result(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// RedisStore keeps banned users in Redis
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore returns store using client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// RedisKey returns key of user
func RedisKey(database, username string) string {
	return RedisKeyPrefix + Key(database, username)
}

// Ban saves entry as JSON value
func (store *RedisStore) Ban(ctx context.Context, conn Connection, entry Entry) error {
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
	return store.client.WithContext(ctx).Set(RedisKey(entry.Database, entry.Username), value, noExpiration).Err()
}

// IsBanned returns true if key of user exists
func (store *RedisStore) IsBanned(ctx context.Context, conn Connection, username, database string) (bool, error) {
	if !canBeBanned(username, database) {
		return false, nil
	}
	count, err := store.client.WithContext(ctx).Exists(RedisKey(database, username)).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Close closes client
func (store *RedisStore) Close() error {
	return store.client.Close()
}
