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

package triggers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cossacklabs/sqlfirewall/firewall"
	"github.com/cossacklabs/sqlfirewall/utils"
	"github.com/google/uuid"
)

// DefaultAuditTableName used when configuration doesn't set table
const DefaultAuditTableName = "sqlfirewall_audit"

// AuditTableTrigger inserts row about refused statement into audit table with parameterized query
type AuditTableTrigger struct {
	table       string
	insertQuery string
	now         func() time.Time
}

// NewAuditTableTrigger returns trigger for table and placeholder style. Table must be plain or schema-qualified identifier.
func NewAuditTableTrigger(table string, style utils.PlaceholderStyle) (*AuditTableTrigger, error) {
	if table == "" {
		table = DefaultAuditTableName
	}
	if err := utils.ValidateIdentifier(table); err != nil {
		return nil, err
	}
	return &AuditTableTrigger{
		table: table,
		insertQuery: fmt.Sprintf("INSERT INTO %s (event_id, username, database_name, ip_address, statement, manager, created_at) VALUES (%s)",
			table, strings.Join(style.Placeholders(7), ", ")),
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Name returns trigger name
func (*AuditTableTrigger) Name() string { return AuditTableTriggerName }

// InsertQuery returns query used to insert rows
func (trigger *AuditTableTrigger) InsertQuery() string {
	return trigger.insertQuery
}

// CreateTableQuery returns statement creating audit table
func (trigger *AuditTableTrigger) CreateTableQuery() string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (event_id VARCHAR(36) PRIMARY KEY, username VARCHAR(255) NOT NULL, "+
		"database_name VARCHAR(255) NOT NULL, ip_address VARCHAR(64) NOT NULL, statement TEXT, manager VARCHAR(255), "+
		"created_at TIMESTAMP NOT NULL)", trigger.table)
}

// OnRefused implements firewall.Trigger
func (trigger *AuditTableTrigger) OnRefused(ctx context.Context, event *firewall.SQLEvent, manager firewall.Manager, conn firewall.Connection) error {
	if conn == nil {
		return ErrNoConnection
	}
	_, err := conn.ExecContext(ctx, trigger.insertQuery,
		uuid.New().String(), event.Username(), event.Database(), event.IPAddress(), event.SQL(), firewall.NameOf(manager), trigger.now())
	return err
}
