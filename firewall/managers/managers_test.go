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
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cossacklabs/sqlfirewall/banlist"
	"github.com/cossacklabs/sqlfirewall/firewall"
	"github.com/cossacklabs/sqlfirewall/injection"
	"github.com/cossacklabs/sqlfirewall/injection/remote"
	"github.com/cossacklabs/sqlfirewall/logging"
	"github.com/cossacklabs/sqlfirewall/rules"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDatabase = "shop"

func newEvent(t *testing.T, sql string) *firewall.SQLEvent {
	t.Helper()
	event, err := firewall.NewSQLEvent("alice", testDatabase, "10.0.0.1", sql, false, nil, false)
	require.NoError(t, err)
	return event
}

func newPreparedEvent(t *testing.T, sql string, params ...interface{}) *firewall.SQLEvent {
	t.Helper()
	event, err := firewall.NewSQLEvent("alice", testDatabase, "10.0.0.1", sql, true, params, false)
	require.NoError(t, err)
	return event
}

func writeFile(t *testing.T, path, content string, modTime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func TestStatementClassManagers(t *testing.T) {
	ctx := context.Background()
	testcases := []struct {
		sql             string
		write, dcl, ddl bool
	}{
		{"SELECT * FROM t", false, false, false},
		{"INSERT INTO t VALUES (1)", true, false, false},
		{"update t set a = 1", true, false, false},
		{"DELETE FROM t", true, false, false},
		{"CREATE TABLE t (id int)", true, false, true},
		{"TRUNCATE t", true, false, true},
		{"GRANT ALL ON t TO bob", true, true, false},
		{"REVOKE ALL ON t FROM bob", true, true, false},
		{"COMMIT", true, false, false},
		{"SHOW TABLES", false, false, false},
	}
	write := NewDenyDatabaseWriteManager()
	dcl := NewDenyDclManager()
	ddl := NewDenyDdlManager()
	for _, tcase := range testcases {
		event := newEvent(t, tcase.sql)
		allowed, err := write.AllowStatementExecution(ctx, event, nil)
		require.NoError(t, err)
		assert.Equal(t, !tcase.write, allowed, "write: %s", tcase.sql)
		allowed, err = dcl.AllowStatementExecution(ctx, event, nil)
		require.NoError(t, err)
		assert.Equal(t, !tcase.dcl, allowed, "dcl: %s", tcase.sql)
		allowed, err = ddl.AllowStatementExecution(ctx, event, nil)
		require.NoError(t, err)
		assert.Equal(t, !tcase.ddl, allowed, "ddl: %s", tcase.sql)
	}
}

func TestManagersLogWithRequestLogger(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	ctx := logging.SetLoggerToContext(context.Background(), logger.WithField("request_id", "42"))

	allowed, err := NewDenyDdlManager().AllowStatementExecution(ctx, newEvent(t, "DROP TABLE accounts"), nil)
	require.NoError(t, err)
	assert.False(t, allowed)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.DebugLevel, entry.Level)
	assert.Equal(t, "42", entry.Data["request_id"])
	assert.Equal(t, DenyDdlManagerName, entry.Data["manager"])
	assert.Equal(t, logging.EventCodeErrorFirewallQueryIsNotAllowed, entry.Data[logging.FieldKeyEventCode])

	// without request logger manager adds fields of event itself
	fallback := requestLogger(context.Background(), newLogger(DenyDdlManagerName), newEvent(t, "DROP TABLE accounts"))
	assert.Equal(t, "alice", fallback.Data["username"])
	assert.Equal(t, DenyDdlManagerName, fallback.Data["manager"])
	assert.Equal(t, DenyDdlManagerName, requestLogger(context.Background(), newLogger(DenyDdlManagerName), nil).Data["manager"])
}

func TestRawStatementAndMetadataManagers(t *testing.T) {
	ctx := context.Background()
	allowed, err := NewDenyRawStatementManager().AllowRawStatementClass(ctx, "alice", testDatabase, nil)
	require.NoError(t, err)
	assert.False(t, allowed)
	allowed, err = NewDenyRawStatementManager().AllowMetadataQuery(ctx, "alice", testDatabase, nil)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = NewDenyMetadataQueryManager().AllowMetadataQuery(ctx, "alice", testDatabase, nil)
	require.NoError(t, err)
	assert.False(t, allowed)
	allowed, err = NewDenyMetadataQueryManager().AllowStatementExecution(ctx, newEvent(t, "DROP TABLE t"), nil)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestChainWithBuiltInManagersIsOrderIndependent(t *testing.T) {
	ctx := context.Background()
	for _, managers := range [][]firewall.Manager{
		{DefaultManager{}, NewDenyDdlManager()},
		{NewDenyDdlManager(), DefaultManager{}},
	} {
		chain := firewall.New(managers, nil)
		decision, err := chain.Evaluate(ctx, newEvent(t, "CREATE TABLE t (id int)"), nil)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, DenyDdlManagerName, decision.RefusedBy)
		decision, err = chain.Evaluate(ctx, newEvent(t, "SELECT * FROM t"), nil)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	}
}

func TestDenyOnBlacklistManager(t *testing.T) {
	dir := t.TempDir()
	store := rules.NewStore(dir, rules.Blacklist)
	path, err := store.Path(testDatabase)
	require.NoError(t, err)
	modTime := time.Now().Add(-time.Hour)
	writeFile(t, path, "DELETE FROM customer\n", modTime)
	manager := NewDenyOnBlacklistManager(store, DefaultComparableCacheSize)
	chain := firewall.New([]firewall.Manager{manager}, nil)
	ctx := context.Background()

	decision, err := chain.Evaluate(ctx, newEvent(t, "delete   from    customer"), nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, DenyOnBlacklistManagerName, decision.RefusedBy)

	decision, err = chain.Evaluate(ctx, newEvent(t, "DELETE FROM orders"), nil)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	writeFile(t, path, "DELETE FROM orders\n", modTime.Add(time.Minute))
	decision, err = chain.Evaluate(ctx, newEvent(t, "delete   from    customer"), nil)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	decision, err = chain.Evaluate(ctx, newEvent(t, "DELETE FROM orders;"), nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	// malformed statement is never in the list
	allowed, err := manager.AllowStatementExecution(ctx, newEvent(t, "DELETE FROM orders WHERE a = 'x"), nil)
	require.NoError(t, err)
	assert.True(t, allowed)

	require.NoError(t, os.Remove(path))
	_, err = chain.Evaluate(ctx, newEvent(t, "DELETE FROM orders"), nil)
	assert.True(t, errors.Is(err, rules.ErrRulesFileNotFound))
	_, err = manager.AllowStatementExecution(ctx, newEvent(t, "DELETE FROM orders WHERE a = 'x"), nil)
	assert.True(t, errors.Is(err, rules.ErrRulesFileNotFound))
}

func TestDenyExceptOnWhitelistManager(t *testing.T) {
	dir := t.TempDir()
	store := rules.NewStore(dir, rules.Whitelist)
	manager := NewDenyExceptOnWhitelistManager(store, 0)
	ctx := context.Background()

	_, err := manager.AllowStatementExecution(ctx, newEvent(t, "SELECT * FROM t"), nil)
	assert.True(t, errors.Is(err, rules.ErrRulesFileNotFound))

	path, err := store.Path(testDatabase)
	require.NoError(t, err)
	writeFile(t, path, "\n\n", time.Now().Add(-time.Hour))
	allowed, err := manager.AllowStatementExecution(ctx, newEvent(t, "SELECT * FROM t"), nil)
	require.NoError(t, err)
	assert.False(t, allowed)

	writeFile(t, path, "SELECT * FROM t WHERE name = 'Bob'\n", time.Now())
	allowed, err = manager.AllowStatementExecution(ctx, newEvent(t, "select *  from T where NAME = 'Bob'"), nil)
	require.NoError(t, err)
	assert.True(t, allowed)
	allowed, err = manager.AllowStatementExecution(ctx, newEvent(t, "select * from t where name = 'bob'"), nil)
	require.NoError(t, err)
	assert.False(t, allowed)
	allowed, err = manager.AllowStatementExecution(ctx, newEvent(t, "select * from t where name = 'Bob"), nil)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCSVRulesManager(t *testing.T) {
	dir := t.TempDir()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery(rules.PostgreSQLTablesQuery).WithArgs(testDatabase).
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("orders").AddRow("customer"))

	store := rules.NewCSVStore(dir, rules.NewPostgreSQLTableLister())
	path, err := store.Path(testDatabase)
	require.NoError(t, err)
	writeFile(t, path, "username;table;delete;insert;select;update;optional comments\nalice;orders;no;yes;yes;no\npublic;customer;no;no;yes;no\n", time.Now())
	manager := NewCSVRulesManager(store)
	ctx := context.Background()

	testcases := []struct {
		sql     string
		allowed bool
	}{
		{"SELECT * FROM orders", true},
		{"INSERT INTO orders (id) VALUES (1)", true},
		{"DELETE FROM public.orders", false},
		{"SELECT * FROM customer, orders", true},
		{"UPDATE customer SET a = 1", false},
		{"SELECT 1", false},
		{"CREATE TABLE x (id int)", true},
	}
	for _, tcase := range testcases {
		allowed, err := manager.AllowStatementExecution(ctx, newEvent(t, tcase.sql), db)
		require.NoError(t, err)
		assert.Equal(t, tcase.allowed, allowed, tcase.sql)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEndToEndTautologyRefusal(t *testing.T) {
	manager := NewDenySqlInjectionManager(injection.NewAnalyzer(injection.DefaultOptions()))
	event := newPreparedEvent(t, "SELECT * FROM accounts WHERE id = ? OR 1=1", "5")

	verdict := manager.Analyze(event)
	assert.True(t, verdict.WithEqualValuesAroundEqual)
	assert.Equal(t, injection.AnomalyEqualValuesAroundEqual, verdict.AnomalyDetected)

	chain := firewall.New([]firewall.Manager{DefaultManager{}, manager}, nil)
	allowed, err := chain.AllowStatementExecution(context.Background(), event, nil)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = chain.AllowStatementExecution(context.Background(), newPreparedEvent(t, "SELECT * FROM accounts WHERE id = ?", "5"), nil)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestDenyBannedUserManager(t *testing.T) {
	store := banlist.NewMemoryStore()
	manager := NewDenyBannedUserManager(store)
	ctx := context.Background()
	allowed, err := manager.AllowStatementExecution(ctx, newEvent(t, "SELECT 1"), nil)
	require.NoError(t, err)
	assert.True(t, allowed)

	require.NoError(t, store.Ban(ctx, nil, banlist.Entry{Username: "alice", Database: testDatabase}))
	allowed, err = manager.AllowStatementExecution(ctx, newEvent(t, "SELECT 1"), nil)
	require.NoError(t, err)
	assert.False(t, allowed)
	allowed, err = manager.AllowRawStatementClass(ctx, "alice", testDatabase, nil)
	require.NoError(t, err)
	assert.False(t, allowed)
	allowed, err = manager.AllowMetadataQuery(ctx, "alice", testDatabase, nil)
	require.NoError(t, err)
	assert.False(t, allowed)
	allowed, err = manager.AllowMetadataQuery(ctx, "bob", testDatabase, nil)
	require.NoError(t, err)
	assert.True(t, allowed)
}

type stubDetector struct {
	mutex  sync.Mutex
	result remote.Result
	err    error
	calls  int
}

func (detector *stubDetector) Detect(ctx context.Context, request remote.Request) (remote.Result, error) {
	detector.mutex.Lock()
	defer detector.mutex.Unlock()
	detector.calls++
	return detector.result, detector.err
}

type stubPool struct {
	mutex    sync.Mutex
	acquired int
	released int
	err      error
}

func (pool *stubPool) Acquire(ctx context.Context) (firewall.Connection, error) {
	pool.mutex.Lock()
	defer pool.mutex.Unlock()
	if pool.err != nil {
		return nil, pool.err
	}
	pool.acquired++
	db, _, err := sqlmock.New()
	if err != nil {
		return nil, err
	}
	return db, nil
}

func (pool *stubPool) Release(conn firewall.Connection) error {
	pool.mutex.Lock()
	defer pool.mutex.Unlock()
	pool.released++
	return errors.New("release error is only logged")
}

type recordingTrigger struct {
	mutex sync.Mutex
	calls int
	conns []firewall.Connection
	err   error
}

func (trigger *recordingTrigger) OnRefused(ctx context.Context, event *firewall.SQLEvent, manager firewall.Manager, conn firewall.Connection) error {
	trigger.mutex.Lock()
	defer trigger.mutex.Unlock()
	trigger.calls++
	trigger.conns = append(trigger.conns, conn)
	return trigger.err
}

func TestInjectionServiceManagerSync(t *testing.T) {
	ctx := context.Background()
	detector := &stubDetector{result: remote.Result{Malicious: true}}
	manager := NewInjectionServiceManager(detector)
	assert.False(t, manager.IsAsync())
	allowed, err := manager.AllowStatementExecution(ctx, newEvent(t, "SELECT 1"), nil)
	require.NoError(t, err)
	assert.False(t, allowed)

	// unavailable service fails open
	detector.err = errors.New("connection refused")
	allowed, err = manager.AllowStatementExecution(ctx, newEvent(t, "SELECT 1"), nil)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestInjectionServiceManagerAsync(t *testing.T) {
	ctx := context.Background()
	detector := &stubDetector{result: remote.Result{Malicious: true}}
	pool := &stubPool{}
	trigger := &recordingTrigger{err: errors.New("trigger failure is only logged")}
	manager := NewAsyncInjectionServiceManager(detector, pool, firewall.NewDispatcher(trigger))
	chain := firewall.New([]firewall.Manager{manager}, nil)

	for i := 0; i < 3; i++ {
		decision, err := chain.Evaluate(ctx, newEvent(t, "SELECT * FROM t WHERE 1=1"), nil)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	}
	chain.Wait()
	assert.Equal(t, 3, detector.calls)
	assert.Equal(t, 3, trigger.calls)
	assert.Equal(t, 3, pool.acquired)
	assert.Equal(t, 3, pool.released)
	for _, conn := range trigger.conns {
		assert.NotNil(t, conn)
	}

	// clean statement and failed service don't run triggers
	detector.result = remote.Result{}
	_, err := manager.AllowStatementExecution(ctx, newEvent(t, "SELECT 1"), nil)
	require.NoError(t, err)
	manager.Wait()
	detector.err = errors.New("timeout")
	_, err = manager.AllowStatementExecution(ctx, newEvent(t, "SELECT 1"), nil)
	require.NoError(t, err)
	manager.Wait()
	assert.Equal(t, 3, trigger.calls)
	assert.Equal(t, 3, pool.acquired)
}

func TestInjectionServiceManagerAsyncWithoutConnection(t *testing.T) {
	detector := &stubDetector{result: remote.Result{Malicious: true}}
	pool := &stubPool{err: errors.New("pool exhausted")}
	trigger := &recordingTrigger{}
	manager := NewAsyncInjectionServiceManager(detector, pool, firewall.NewDispatcher(trigger))
	allowed, err := manager.AllowStatementExecution(context.Background(), newEvent(t, "SELECT 1"), nil)
	require.NoError(t, err)
	assert.True(t, allowed)
	manager.Wait()
	assert.Equal(t, 1, trigger.calls)
	assert.Nil(t, trigger.conns[0])
	assert.Equal(t, 0, pool.released)
}

func TestComparableCache(t *testing.T) {
	cache := newComparableCache(2)
	comparable, err := cache.Get("SELECT  *  FROM T")
	require.NoError(t, err)
	assert.Equal(t, "select * from t", comparable)
	_, err = cache.Get("select 'a")
	assert.Error(t, err)
	assert.Equal(t, 1, cache.Len())
	cache.Get("select 1")
	cache.Get("select 2")
	assert.Equal(t, 2, cache.Len())

	disabled := newComparableCache(0)
	comparable, err = disabled.Get("SELECT 'A'")
	require.NoError(t, err)
	assert.Equal(t, "select 'A'", comparable)
	assert.Equal(t, 0, disabled.Len())
}

func TestManagerNames(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "rules")
	managers := map[string]firewall.Manager{
		DefaultManagerName:               DefaultManager{},
		DenyDatabaseWriteManagerName:     NewDenyDatabaseWriteManager(),
		DenyDclManagerName:               NewDenyDclManager(),
		DenyDdlManagerName:               NewDenyDdlManager(),
		DenyOnBlacklistManagerName:       NewDenyOnBlacklistManager(rules.NewStore(dir, rules.Blacklist), 1),
		DenyExceptOnWhitelistManagerName: NewDenyExceptOnWhitelistManager(rules.NewStore(dir, rules.Whitelist), 1),
		DenyRawStatementManagerName:      NewDenyRawStatementManager(),
		DenyMetadataQueryManagerName:     NewDenyMetadataQueryManager(),
		CSVRulesManagerName:              NewCSVRulesManager(rules.NewCSVStore(dir, nil)),
		DenySqlInjectionManagerName:      NewDenySqlInjectionManager(injection.NewAnalyzer(injection.DefaultOptions())),
		DenyBannedUserManagerName:        NewDenyBannedUserManager(banlist.NewMemoryStore()),
		InjectionServiceManagerName:      NewInjectionServiceManager(&stubDetector{}),
	}
	for name, manager := range managers {
		assert.Equal(t, name, firewall.NameOf(manager))
	}
}
