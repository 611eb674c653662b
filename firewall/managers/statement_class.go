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
	log "github.com/sirupsen/logrus"
)

// DenyDatabaseWriteManager refuses data modification, DDL, DCL and transaction control statements
type DenyDatabaseWriteManager struct {
	DefaultManager
	logger *log.Entry
}

// NewDenyDatabaseWriteManager returns new manager
func NewDenyDatabaseWriteManager() *DenyDatabaseWriteManager {
	return &DenyDatabaseWriteManager{logger: newLogger(DenyDatabaseWriteManagerName)}
}

// Name returns manager name
func (*DenyDatabaseWriteManager) Name() string { return DenyDatabaseWriteManagerName }

// AllowStatementExecution implements firewall.Manager
func (manager *DenyDatabaseWriteManager) AllowStatementExecution(ctx context.Context, event *firewall.SQLEvent, conn firewall.Connection) (bool, error) {
	stmt := event.Statement()
	if stmt == nil {
		return true, nil
	}
	if stmt.IsWrite() || stmt.IsDDL() || stmt.IsDCL() || stmt.IsTCL() {
		logRefused(ctx, manager.logger, event, "database write")
		return false, nil
	}
	return true, nil
}

// DenyDclManager refuses GRANT and REVOKE statements
type DenyDclManager struct {
	DefaultManager
	logger *log.Entry
}

// NewDenyDclManager returns new manager
func NewDenyDclManager() *DenyDclManager {
	return &DenyDclManager{logger: newLogger(DenyDclManagerName)}
}

// Name returns manager name
func (*DenyDclManager) Name() string { return DenyDclManagerName }

// AllowStatementExecution implements firewall.Manager
func (manager *DenyDclManager) AllowStatementExecution(ctx context.Context, event *firewall.SQLEvent, conn firewall.Connection) (bool, error) {
	if stmt := event.Statement(); stmt != nil && stmt.IsDCL() {
		logRefused(ctx, manager.logger, event, "DCL")
		return false, nil
	}
	return true, nil
}

// DenyDdlManager refuses schema modification statements
type DenyDdlManager struct {
	DefaultManager
	logger *log.Entry
}

// NewDenyDdlManager returns new manager
func NewDenyDdlManager() *DenyDdlManager {
	return &DenyDdlManager{logger: newLogger(DenyDdlManagerName)}
}

// Name returns manager name
func (*DenyDdlManager) Name() string { return DenyDdlManagerName }

// AllowStatementExecution implements firewall.Manager
func (manager *DenyDdlManager) AllowStatementExecution(ctx context.Context, event *firewall.SQLEvent, conn firewall.Connection) (bool, error) {
	if stmt := event.Statement(); stmt != nil && stmt.IsDDL() {
		logRefused(ctx, manager.logger, event, "DDL")
		return false, nil
	}
	return true, nil
}

// DenyRawStatementManager allows only parameterized statements
type DenyRawStatementManager struct {
	DefaultManager
}

// NewDenyRawStatementManager returns new manager
func NewDenyRawStatementManager() *DenyRawStatementManager {
	return &DenyRawStatementManager{}
}

// Name returns manager name
func (*DenyRawStatementManager) Name() string { return DenyRawStatementManagerName }

// AllowRawStatementClass refuses non-parameterized statements
func (*DenyRawStatementManager) AllowRawStatementClass(ctx context.Context, username, database string, conn firewall.Connection) (bool, error) {
	return false, nil
}

// DenyMetadataQueryManager refuses metadata inspection
type DenyMetadataQueryManager struct {
	DefaultManager
}

// NewDenyMetadataQueryManager returns new manager
func NewDenyMetadataQueryManager() *DenyMetadataQueryManager {
	return &DenyMetadataQueryManager{}
}

// Name returns manager name
func (*DenyMetadataQueryManager) Name() string { return DenyMetadataQueryManagerName }

// AllowMetadataQuery refuses metadata queries
func (*DenyMetadataQueryManager) AllowMetadataQuery(ctx context.Context, username, database string, conn firewall.Connection) (bool, error) {
	return false, nil
}
