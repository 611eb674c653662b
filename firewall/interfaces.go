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

// Package firewall combines policy managers into chain evaluated with logical AND and runs
// triggers when a statement is refused.
package firewall

import (
	"context"
	"database/sql"
	"fmt"
)

// Connection is database handle used by managers and triggers. Satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Connection interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Manager decides whether request may proceed. Error means manager can't evaluate and request must not proceed.
type Manager interface {
	AllowStatementExecution(ctx context.Context, event *SQLEvent, conn Connection) (bool, error)
	// AllowRawStatementClass governs whether non-parameterized statements are allowed at all
	AllowRawStatementClass(ctx context.Context, username, database string, conn Connection) (bool, error)
	AllowMetadataQuery(ctx context.Context, username, database string, conn Connection) (bool, error)
}

// RefusalListener is optional Manager hook called by the chain when this manager refused the statement
type RefusalListener interface {
	OnStatementRefused(ctx context.Context, event *SQLEvent, conn Connection) error
}

// Named is implemented by managers and triggers that have name for logs and decisions
type Named interface {
	Name() string
}

// Waiter is implemented by managers running background checks
type Waiter interface {
	Wait()
}

// Trigger reacts on refused statement
type Trigger interface {
	OnRefused(ctx context.Context, event *SQLEvent, manager Manager, conn Connection) error
}

// ConnectionPool provides connections for background work that outlives request
type ConnectionPool interface {
	Acquire(ctx context.Context) (Connection, error)
	Release(conn Connection) error
}

// NameOf returns name of manager or trigger
func NameOf(value interface{}) string {
	if named, ok := value.(Named); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", value)
}

// SQLConnectionPool acquires dedicated connections from *sql.DB
type SQLConnectionPool struct {
	DB *sql.DB
}

// Acquire returns new *sql.Conn
func (pool SQLConnectionPool) Acquire(ctx context.Context) (Connection, error) {
	return pool.DB.Conn(ctx)
}

// Release closes connection returned by Acquire
func (pool SQLConnectionPool) Release(conn Connection) error {
	if closer, ok := conn.(*sql.Conn); ok {
		return closer.Close()
	}
	return nil
}
