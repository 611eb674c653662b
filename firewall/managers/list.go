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
	"context"

	"github.com/cossacklabs/sqlfirewall/firewall"
	"github.com/cossacklabs/sqlfirewall/rules"
	log "github.com/sirupsen/logrus"
)

// DenyOnBlacklistManager refuses statements listed in blacklist file of database
type DenyOnBlacklistManager struct {
	DefaultManager
	store  *rules.Store
	cache  *comparableCache
	logger *log.Entry
}

// NewDenyOnBlacklistManager returns manager using blacklist files from store
func NewDenyOnBlacklistManager(store *rules.Store, cacheSize int) *DenyOnBlacklistManager {
	return &DenyOnBlacklistManager{
		store:  store,
		cache:  newComparableCache(cacheSize),
		logger: newLogger(DenyOnBlacklistManagerName),
	}
}

// Name returns manager name
func (*DenyOnBlacklistManager) Name() string { return DenyOnBlacklistManagerName }

// AllowStatementExecution refuses statement if its comparable form is in blacklist.
// Statement with odd number of quotes can't be equal to any valid rule and is allowed here.
func (manager *DenyOnBlacklistManager) AllowStatementExecution(ctx context.Context, event *firewall.SQLEvent, conn firewall.Connection) (bool, error) {
	stmt := event.Statement()
	if stmt == nil {
		return true, nil
	}
	comparable, err := manager.cache.Get(stmt.SQL())
	if err != nil {
		// rules are validated on load, so malformed statement isn't in the list
		if _, loadErr := manager.store.Get(event.Database()); loadErr != nil {
			return false, loadErr
		}
		return true, nil
	}
	listed, err := manager.store.ContainsComparable(event.Database(), comparable)
	if err != nil {
		return false, err
	}
	if listed {
		logRefused(ctx, manager.logger, event, "statement in blacklist")
		return false, nil
	}
	return true, nil
}

// DenyExceptOnWhitelistManager allows only statements listed in whitelist file of database.
// Empty list refuses everything, absent file is an error.
type DenyExceptOnWhitelistManager struct {
	DefaultManager
	store  *rules.Store
	cache  *comparableCache
	logger *log.Entry
}

// NewDenyExceptOnWhitelistManager returns manager using whitelist files from store
func NewDenyExceptOnWhitelistManager(store *rules.Store, cacheSize int) *DenyExceptOnWhitelistManager {
	return &DenyExceptOnWhitelistManager{
		store:  store,
		cache:  newComparableCache(cacheSize),
		logger: newLogger(DenyExceptOnWhitelistManagerName),
	}
}

// Name returns manager name
func (*DenyExceptOnWhitelistManager) Name() string { return DenyExceptOnWhitelistManagerName }

// AllowStatementExecution allows statement only if its comparable form is in whitelist
func (manager *DenyExceptOnWhitelistManager) AllowStatementExecution(ctx context.Context, event *firewall.SQLEvent, conn firewall.Connection) (bool, error) {
	set, err := manager.store.Get(event.Database())
	if err != nil {
		return false, err
	}
	stmt := event.Statement()
	if stmt == nil || set.Len() == 0 {
		logRefused(ctx, manager.logger, event, "empty whitelist")
		return false, nil
	}
	comparable, err := manager.cache.Get(stmt.SQL())
	if err != nil {
		logRefused(ctx, manager.logger, event, "malformed statement")
		return false, nil
	}
	if !set.Contains(comparable) {
		logRefused(ctx, manager.logger, event, "statement not in whitelist")
		return false, nil
	}
	return true, nil
}
