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
	"strings"

	"github.com/cossacklabs/sqlfirewall/firewall"
	"github.com/cossacklabs/sqlfirewall/rules"
	log "github.com/sirupsen/logrus"
)

// CSVRulesManager checks DML statements against per user and per table permissions of CSV file.
// Other statement classes are left to other managers.
type CSVRulesManager struct {
	DefaultManager
	store  *rules.CSVStore
	logger *log.Entry
}

// NewCSVRulesManager returns manager using store
func NewCSVRulesManager(store *rules.CSVStore) *CSVRulesManager {
	return &CSVRulesManager{store: store, logger: newLogger(CSVRulesManagerName)}
}

// Name returns manager name
func (*CSVRulesManager) Name() string { return CSVRulesManagerName }

// AllowStatementExecution implements firewall.Manager
func (manager *CSVRulesManager) AllowStatementExecution(ctx context.Context, event *firewall.SQLEvent, conn firewall.Connection) (bool, error) {
	stmt := event.Statement()
	if stmt == nil || !stmt.IsDML() {
		return true, nil
	}
	table := ""
	if tables := stmt.Tables(); len(tables) > 0 {
		table = tables[0]
	}
	var queryer rules.Queryer
	if conn != nil {
		queryer = conn
	}
	allowed, err := manager.store.Allowed(ctx, queryer, event.Database(), event.Username(), table, strings.ToLower(stmt.Type()))
	if err != nil {
		return false, err
	}
	if !allowed {
		logRefused(ctx, manager.logger, event, "no csv rule grants "+strings.ToLower(stmt.Type())+" on "+table)
	}
	return allowed, nil
}
