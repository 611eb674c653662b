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

// Package banlist stores users refused on every request after a ban trigger fired.
// Backends: sql table in protected database, bbolt file and Redis.
package banlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cossacklabs/sqlfirewall/rules"
)

// Connection is database handle used by SQLStore
type Connection interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Entry describes one banned user of database
type Entry struct {
	Username  string    `json:"username"`
	Database  string    `json:"database"`
	IPAddress string    `json:"ip_address"`
	Reason    string    `json:"reason"`
	BannedAt  time.Time `json:"banned_at"`
}

// ErrInvalidEntry returned when entry has no username or database
var ErrInvalidEntry = errors.New("ban entry without username or database")

// Validate checks required fields
func (entry Entry) Validate() error {
	return validateUser(entry.Username, entry.Database)
}

// validateUser rejects database names with separator of Key so keys of different pairs never collide
func validateUser(username, database string) error {
	if username == "" || database == "" {
		return ErrInvalidEntry
	}
	if err := rules.ValidateDatabaseName(database); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return nil
}

// canBeBanned returns false for pairs rejected by Validate, such pairs are never stored
func canBeBanned(username, database string) bool {
	return validateUser(username, database) == nil
}

// Store keeps banned users. conn is used only by stores kept in protected database and may be nil for others.
type Store interface {
	Ban(ctx context.Context, conn Connection, entry Entry) error
	IsBanned(ctx context.Context, conn Connection, username, database string) (bool, error)
}

// Key returns key of user in key-value stores
func Key(database, username string) string {
	return database + "/" + username
}
