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

package firewall

import (
	"context"
	"errors"
	"testing"

	"github.com/cossacklabs/sqlfirewall/logging"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type allowAllManager struct{}

func (allowAllManager) AllowStatementExecution(context.Context, *SQLEvent, Connection) (bool, error) {
	return true, nil
}
func (allowAllManager) AllowRawStatementClass(context.Context, string, string, Connection) (bool, error) {
	return true, nil
}
func (allowAllManager) AllowMetadataQuery(context.Context, string, string, Connection) (bool, error) {
	return true, nil
}

type denyDDLManager struct {
	allowAllManager
	refused []*SQLEvent
}

func (*denyDDLManager) Name() string { return "deny-ddl" }

func (*denyDDLManager) AllowStatementExecution(_ context.Context, event *SQLEvent, _ Connection) (bool, error) {
	return !event.Statement().IsDDL(), nil
}

func (manager *denyDDLManager) OnStatementRefused(_ context.Context, event *SQLEvent, _ Connection) error {
	manager.refused = append(manager.refused, event)
	return nil
}

type stubManager struct {
	allowAllManager
	statementErr error
	denyRaw      bool
	denyMetadata bool
	calls        int
}

func (manager *stubManager) AllowStatementExecution(context.Context, *SQLEvent, Connection) (bool, error) {
	manager.calls++
	if manager.statementErr != nil {
		return false, manager.statementErr
	}
	return true, nil
}

func (manager *stubManager) AllowRawStatementClass(context.Context, string, string, Connection) (bool, error) {
	return !manager.denyRaw, nil
}

func (manager *stubManager) AllowMetadataQuery(context.Context, string, string, Connection) (bool, error) {
	return !manager.denyMetadata, nil
}

type loggerCapturingManager struct {
	allowAllManager
	logger *log.Entry
	found  bool
}

func (manager *loggerCapturingManager) AllowStatementExecution(ctx context.Context, _ *SQLEvent, _ Connection) (bool, error) {
	manager.logger, manager.found = logging.GetLoggerFromContextOk(ctx)
	return false, nil
}

type countingTrigger struct {
	calls    int
	err      error
	managers []Manager
}

func (trigger *countingTrigger) OnRefused(_ context.Context, _ *SQLEvent, manager Manager, _ Connection) error {
	trigger.calls++
	trigger.managers = append(trigger.managers, manager)
	return trigger.err
}

func mustEvent(t *testing.T, sql string, prepared bool, params ...interface{}) *SQLEvent {
	t.Helper()
	event, err := NewSQLEvent("user", "shop", "127.0.0.1", sql, prepared, params, false)
	require.NoError(t, err)
	return event
}

func TestChainAndSemanticsIsOrderIndependent(t *testing.T) {
	ctx := context.Background()
	createEvent := mustEvent(t, "CREATE TABLE t (id int)", false)
	selectEvent := mustEvent(t, "SELECT * FROM t", false)
	chains := [][]Manager{
		{allowAllManager{}, &denyDDLManager{}},
		{&denyDDLManager{}, allowAllManager{}},
	}
	for _, managers := range chains {
		chain := New(managers, nil)
		allowed, err := chain.AllowStatementExecution(ctx, createEvent, nil)
		require.NoError(t, err)
		assert.False(t, allowed)
		allowed, err = chain.AllowStatementExecution(ctx, selectEvent, nil)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestEmptyChainAllowsEverything(t *testing.T) {
	ctx := context.Background()
	chain := New(nil, nil)
	decision, err := chain.Evaluate(ctx, mustEvent(t, "DROP TABLE t", false), nil)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	allowed, err := chain.AllowMetadataQuery(ctx, "user", "shop", nil)
	require.NoError(t, err)
	assert.True(t, allowed)
	allowed, err = chain.AllowRawStatementClass(ctx, "user", "shop", nil)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestEvaluateRefusalRunsHookAndTriggersOnce(t *testing.T) {
	denyDDL := &denyDDLManager{}
	second := &denyDDLManager{}
	trigger := &countingTrigger{}
	chain := New([]Manager{allowAllManager{}, denyDDL, second}, NewDispatcher(trigger))
	event := mustEvent(t, "DROP TABLE t", false)

	decision, err := chain.Evaluate(context.Background(), event, nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, OperationStatementExecution, decision.Operation)
	assert.Equal(t, "deny-ddl", decision.RefusedBy)
	assert.NoError(t, decision.TriggerError)
	assert.Equal(t, []*SQLEvent{event}, denyDDL.refused)
	assert.Empty(t, second.refused)
	assert.Equal(t, 1, trigger.calls)
	assert.Equal(t, []Manager{denyDDL}, trigger.managers)
}

func TestEvaluateTransactionControlIsAllowed(t *testing.T) {
	manager := &stubManager{denyRaw: true, statementErr: errors.New("must not be called")}
	chain := New([]Manager{manager}, nil)
	for _, sql := range []string{
		"COMMIT", "rollback;", "BEGIN", "SAVEPOINT a", "begin work", "ROLLBACK TO SAVEPOINT a",
		"RELEASE SAVEPOINT a", "START TRANSACTION ISOLATION LEVEL SERIALIZABLE, READ ONLY",
	} {
		decision, err := chain.Evaluate(context.Background(), mustEvent(t, sql, false), nil)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, OperationTransactionControl, decision.Operation)
	}
	assert.Equal(t, 0, manager.calls)
}

func TestEvaluateTransactionPrefixGoesThroughManagers(t *testing.T) {
	manager := &stubManager{denyRaw: true}
	chain := New([]Manager{manager}, nil)
	for _, sql := range []string{
		"BEGIN DELETE FROM accounts; END",
		"START TRANSACTION; GRANT ALL ON accounts TO mallory",
		"COMMIT; DROP TABLE users",
		"SAVEPOINT a; DELETE FROM accounts",
		"ROLLBACK TO 'a'",
		"START TRANSACTION /* x */ READ WRITE",
	} {
		decision, err := chain.Evaluate(context.Background(), mustEvent(t, sql, false), nil)
		require.NoError(t, err)
		assert.False(t, decision.Allowed, sql)
		assert.Equal(t, OperationRawStatementClass, decision.Operation, sql)
	}

	// prepared statements skip raw class check and reach statement execution
	prepared := &stubManager{statementErr: errors.New("checked")}
	chain = New([]Manager{prepared}, nil)
	_, err := chain.Evaluate(context.Background(), mustEvent(t, "BEGIN DELETE FROM accounts; END", true), nil)
	assert.Error(t, err)
	assert.Equal(t, 1, prepared.calls)
}

func TestEvaluatePutsRequestLoggerToContext(t *testing.T) {
	manager := &loggerCapturingManager{}
	decision, err := New([]Manager{manager}, nil).Evaluate(context.Background(), mustEvent(t, "SELECT 1", true), nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	require.True(t, manager.found)
	assert.Equal(t, "user", manager.logger.Data["username"])
	assert.Equal(t, "shop", manager.logger.Data["database"])
	assert.Equal(t, "127.0.0.1", manager.logger.Data["ip_address"])
}

func TestEvaluateRawStatementClass(t *testing.T) {
	manager := &stubManager{denyRaw: true}
	trigger := &countingTrigger{}
	chain := New([]Manager{manager}, NewDispatcher(trigger))

	decision, err := chain.Evaluate(context.Background(), mustEvent(t, "SELECT 1", false), nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, OperationRawStatementClass, decision.Operation)
	assert.Equal(t, 0, manager.calls)
	assert.Equal(t, 1, trigger.calls)

	// prepared statements skip raw statement class check
	decision, err = chain.Evaluate(context.Background(), mustEvent(t, "SELECT ?", true, 1), nil)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 1, manager.calls)
}

func TestEvaluateMetadataQuery(t *testing.T) {
	manager := &stubManager{denyMetadata: true}
	trigger := &countingTrigger{}
	chain := New([]Manager{manager}, NewDispatcher(trigger))
	event, err := NewSQLEvent("user", "shop", "127.0.0.1", "", false, nil, true)
	require.NoError(t, err)

	decision, err := chain.Evaluate(context.Background(), event, nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, OperationMetadataQuery, decision.Operation)
	assert.Equal(t, 0, manager.calls)
	assert.Equal(t, 1, trigger.calls)
}

func TestEvaluateManagerErrorIsFatal(t *testing.T) {
	testErr := errors.New("rules file unreadable")
	failing := &stubManager{statementErr: testErr}
	next := &stubManager{}
	trigger := &countingTrigger{}
	chain := New([]Manager{failing, next}, NewDispatcher(trigger))

	decision, err := chain.Evaluate(context.Background(), mustEvent(t, "SELECT ?", true, 1), nil)
	assert.True(t, errors.Is(err, testErr))
	assert.False(t, decision.Allowed)
	assert.Equal(t, 0, next.calls)
	assert.Equal(t, 0, trigger.calls)

	_, err = chain.AllowStatementExecution(context.Background(), mustEvent(t, "SELECT 1", false), nil)
	assert.True(t, errors.Is(err, testErr))
}

func TestDispatcherRunsAllTriggers(t *testing.T) {
	firstErr := errors.New("first")
	thirdErr := errors.New("third")
	first := &countingTrigger{err: firstErr}
	second := &countingTrigger{}
	third := &countingTrigger{err: thirdErr}
	dispatcher := NewDispatcher(first, second, third)

	err := dispatcher.Dispatch(context.Background(), mustEvent(t, "DROP TABLE t", false), allowAllManager{}, nil)
	require.Error(t, err)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 1, third.calls)
	assert.True(t, errors.Is(err, firstErr))
	assert.True(t, errors.Is(err, thirdErr))
	merr, ok := err.(*multierror.Error)
	require.True(t, ok)
	assert.Len(t, merr.Errors, 2)
	assert.Len(t, dispatcher.Triggers(), 3)

	assert.NoError(t, NewDispatcher().Dispatch(context.Background(), mustEvent(t, "DROP TABLE t", false), allowAllManager{}, nil))
}

func TestEvaluateTriggerFailureKeepsRefusal(t *testing.T) {
	triggerErr := errors.New("audit table unavailable")
	failing := &countingTrigger{err: triggerErr}
	next := &countingTrigger{}
	chain := New([]Manager{&denyDDLManager{}}, NewDispatcher(failing, next))

	decision, err := chain.Evaluate(context.Background(), mustEvent(t, "DROP TABLE t", false), nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.True(t, errors.Is(decision.TriggerError, triggerErr))
	assert.Equal(t, 1, next.calls)
}

func TestNameOf(t *testing.T) {
	assert.Equal(t, "deny-ddl", NameOf(&denyDDLManager{}))
	assert.Equal(t, "firewall.allowAllManager", NameOf(allowAllManager{}))
}
