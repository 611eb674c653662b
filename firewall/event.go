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
	"errors"
	"fmt"

	"github.com/cossacklabs/sqlfirewall/statement"
	"github.com/cossacklabs/sqlfirewall/utils"
	log "github.com/sirupsen/logrus"
)

// LogQueryLength max length of query in log entries
const LogQueryLength = 100

// Errors returned by NewSQLEvent
var (
	ErrEventFieldMissing    = errors.New("sql event field missing")
	ErrUnexpectedParameters = errors.New("parameter values passed for non-prepared statement")
)

// SQLEvent describes one inbound statement with its origin. Values are immutable after construction.
type SQLEvent struct {
	username        string
	database        string
	ipAddress       string
	sql             string
	prepared        bool
	parameterValues []interface{}
	metadataQuery   bool
	statement       *statement.Statement
}

// NewSQLEvent validates and returns new event. sql may be empty only for metadata queries.
func NewSQLEvent(username, database, ipAddress, sql string, isPreparedStatement bool, parameterValues []interface{}, isMetadataQuery bool) (*SQLEvent, error) {
	required := []struct{ name, value string }{
		{"username", username},
		{"database", database},
		{"ipAddress", ipAddress},
	}
	for _, field := range required {
		if field.value == "" {
			return nil, fmt.Errorf("%w: %s", ErrEventFieldMissing, field.name)
		}
	}
	if !isPreparedStatement && len(parameterValues) > 0 {
		return nil, ErrUnexpectedParameters
	}
	event := &SQLEvent{
		username:        username,
		database:        database,
		ipAddress:       ipAddress,
		sql:             sql,
		prepared:        isPreparedStatement,
		parameterValues: append([]interface{}{}, parameterValues...),
		metadataQuery:   isMetadataQuery,
	}
	parsed, err := statement.New(sql, parameterValues)
	if err != nil {
		if !isMetadataQuery {
			return nil, fmt.Errorf("%w: sql", ErrEventFieldMissing)
		}
	} else {
		event.statement = parsed
	}
	return event, nil
}

// Username of client
func (event *SQLEvent) Username() string { return event.username }

// Database name
func (event *SQLEvent) Database() string { return event.database }

// IPAddress of client
func (event *SQLEvent) IPAddress() string { return event.ipAddress }

// SQL returns statement text as received
func (event *SQLEvent) SQL() string { return event.sql }

// IsPreparedStatement returns true for parameterized statements
func (event *SQLEvent) IsPreparedStatement() bool { return event.prepared }

// IsMetadataQuery returns true for metadata inspection requests
func (event *SQLEvent) IsMetadataQuery() bool { return event.metadataQuery }

// ParameterValues returns copy of bound parameter values
func (event *SQLEvent) ParameterValues() []interface{} {
	return append([]interface{}{}, event.parameterValues...)
}

// Statement returns classified statement, nil for metadata query without sql
func (event *SQLEvent) Statement() *statement.Statement {
	return event.statement
}

// IsTCL returns true if event carries exactly one transaction control statement and nothing else
func (event *SQLEvent) IsTCL() bool {
	return event.statement != nil && event.statement.IsTransactionControl()
}

// LogFields returns fields describing event in log entries. Parameter values are never logged.
func (event *SQLEvent) LogFields() log.Fields {
	fields := log.Fields{
		"username":   event.username,
		"database":   event.database,
		"ip_address": event.ipAddress,
		"prepared":   event.prepared,
	}
	if event.metadataQuery {
		fields["metadata_query"] = true
	}
	if event.sql != "" {
		fields["query"] = utils.TrimStringToN(event.sql, LogQueryLength)
	}
	return fields
}
