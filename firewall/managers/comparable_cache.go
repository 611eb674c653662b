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

package managers

import (
	"sync"

	"github.com/cossacklabs/sqlfirewall/sqltext"
	"github.com/golang/groupcache/lru"
)

// DefaultComparableCacheSize number of statements which comparable form is kept in memory
const DefaultComparableCacheSize = 1024

// comparableCache keeps comparable form of recently seen statements
type comparableCache struct {
	lru   *lru.Cache
	mutex sync.Mutex
}

// newComparableCache returns cache of size, zero or negative size disables caching
func newComparableCache(size int) *comparableCache {
	if size <= 0 {
		return &comparableCache{}
	}
	return &comparableCache{lru: lru.New(size)}
}

// Get returns comparable form of sql computing it on cache miss. Errors aren't cached.
func (cache *comparableCache) Get(sql string) (string, error) {
	if cache.lru == nil {
		return sqltext.GetComparable(sql)
	}
	cache.mutex.Lock()
	value, ok := cache.lru.Get(sql)
	cache.mutex.Unlock()
	if ok {
		return value.(string), nil
	}
	comparable, err := sqltext.GetComparable(sql)
	if err != nil {
		return "", err
	}
	cache.mutex.Lock()
	cache.lru.Add(sql, comparable)
	cache.mutex.Unlock()
	return comparable, nil
}

// Len returns number of cached statements
func (cache *comparableCache) Len() int {
	if cache.lru == nil {
		return 0
	}
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	return cache.lru.Len()
}
