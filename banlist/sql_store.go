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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cossacklabs/sqlfirewall/utils"
)

// DefaultTableName of SQLStore
const DefaultTableName = "sqlfirewall_banned_user"

// ErrNoConnection returned by SQLStore when called without connection
var ErrNoConnection = errors.New("sql ban list requires database connection")

// SQLStore keeps banned users in table of protected database
type SQLStore struct {
	table       string
	style       utils.PlaceholderStyle
	insertQuery string
	selectQuery string
}

// NewSQLStore returns store using table with placeholders of style. Empty table means DefaultTableName.
func NewSQLStore(table string, style utils.PlaceholderStyle) (*SQLStore, error) {
	if table == "" {
		table = DefaultTableName
	}
	if err := utils.ValidateIdentifier(table); err != nil {
		return nil, err
	}
	insertPlaceholders := style.Placeholders(5)
	selectPlaceholders := style.Placeholders(2)
	return &SQLStore{
		table: table,
		style: style,
		insertQuery: fmt.Sprintf("INSERT INTO %s (username, database_name, ip_address, reason, banned_at) VALUES (%s)",
			table, strings.Join(insertPlaceholders, ", ")),
		selectQuery: fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE username = %s AND database_name = %s",
			table, selectPlaceholders[0], selectPlaceholders[1]),
	}, nil
}

// CreateTableQuery returns statement creating ban table
func (store *SQLStore) CreateTableQuery() string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (username VARCHAR(255) NOT NULL, database_name VARCHAR(255) NOT NULL, "+
		"ip_address VARCHAR(64) NOT NULL, reason TEXT, banned_at TIMESTAMP NOT NULL)", store.table)
}

// Ban inserts entry into table
func (store *SQLStore) Ban(ctx context.Context, conn Connection, entry Entry) error {
	if conn == nil {
		return ErrNoConnection
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.BannedAt.IsZero() {
		entry.BannedAt = time.Now().UTC()
	}
	_, err := conn.ExecContext(ctx, store.insertQuery, entry.Username, entry.Database, entry.IPAddress, entry.Reason, entry.BannedAt)
	return err
}

// IsBanned returns true if table has row of user
func (store *SQLStore) IsBanned(ctx context.Context, conn Connection, username, database string) (bool, error) {
	if conn == nil {
		return false, ErrNoConnection
	}
	rows, err := conn.QueryContext(ctx, store.selectQuery, username, database)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return false, err
		}
	}
	return count > 0, rows.Err()
}
