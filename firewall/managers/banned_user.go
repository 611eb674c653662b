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

	"github.com/cossacklabs/sqlfirewall/banlist"
	"github.com/cossacklabs/sqlfirewall/firewall"
	log "github.com/sirupsen/logrus"
)

// DenyBannedUserManager refuses every request of users in ban list
type DenyBannedUserManager struct {
	DefaultManager
	store  banlist.Store
	logger *log.Entry
}

// NewDenyBannedUserManager returns manager using store
func NewDenyBannedUserManager(store banlist.Store) *DenyBannedUserManager {
	return &DenyBannedUserManager{store: store, logger: newLogger(DenyBannedUserManagerName)}
}

// Name returns manager name
func (*DenyBannedUserManager) Name() string { return DenyBannedUserManagerName }

func (manager *DenyBannedUserManager) allowed(ctx context.Context, username, database string, conn firewall.Connection) (bool, error) {
	var banConn banlist.Connection
	if conn != nil {
		banConn = conn
	}
	banned, err := manager.store.IsBanned(ctx, banConn, username, database)
	if err != nil {
		return false, err
	}
	if banned {
		requestLogger(ctx, manager.logger, nil).WithField("username", username).WithField("database", database).
			Debugln("Request of banned user refused")
	}
	return !banned, nil
}

// AllowStatementExecution implements firewall.Manager
func (manager *DenyBannedUserManager) AllowStatementExecution(ctx context.Context, event *firewall.SQLEvent, conn firewall.Connection) (bool, error) {
	return manager.allowed(ctx, event.Username(), event.Database(), conn)
}

// AllowRawStatementClass implements firewall.Manager
func (manager *DenyBannedUserManager) AllowRawStatementClass(ctx context.Context, username, database string, conn firewall.Connection) (bool, error) {
	return manager.allowed(ctx, username, database, conn)
}

// AllowMetadataQuery implements firewall.Manager
func (manager *DenyBannedUserManager) AllowMetadataQuery(ctx context.Context, username, database string, conn firewall.Connection) (bool, error) {
	return manager.allowed(ctx, username, database, conn)
}
