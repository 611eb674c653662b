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

// Package statement classifies SQL statements: statement type, referenced table, DML/DDL/DCL/TCL
// category and access to bound parameter values. Classification is shallow and doesn't validate
// the statement grammar.
package statement

import (
	"errors"
	"fmt"
	"strings"
)

// Statement types recognized by classifier
const (
	Select    = "SELECT"
	Insert    = "INSERT"
	Update    = "UPDATE"
	Delete    = "DELETE"
	Create    = "CREATE"
	Alter     = "ALTER"
	Drop      = "DROP"
	Truncate  = "TRUNCATE"
	Comment   = "COMMENT"
	Rename    = "RENAME"
	Grant     = "GRANT"
	Revoke    = "REVOKE"
	Commit    = "COMMIT"
	Rollback  = "ROLLBACK"
	Savepoint = "SAVEPOINT"
	Release   = "RELEASE"
	Begin     = "BEGIN"
	Start     = "START"
)

var (
	dmlTypes = []string{Delete, Insert, Select, Update}
	ddlTypes = []string{Create, Alter, Drop, Truncate, Comment, Rename}
	dclTypes = []string{Grant, Revoke}
	tclTypes = []string{Commit, Rollback, Savepoint, Release, Begin, Start}
)

// Errors returned by classifier
var (
	ErrEmptyStatement           = errors.New("sql statement is empty")
	ErrParameterIndexOutOfRange = errors.New("parameter index out of range")
)

// Statement is immutable classification of one sql statement
type Statement struct {
	sql             string
	statementType   string
	tables          []string
	parameterValues []interface{}
}

// New classifies sql. Trailing semicolons and surrounding blanks are removed from sql first.
func New(sql string, parameterValues []interface{}) (*Statement, error) {
	sql = TrimStatement(sql)
	if sql == "" {
		return nil, ErrEmptyStatement
	}
	statement := &Statement{
		sql:             sql,
		statementType:   typeOf(sql),
		parameterValues: append([]interface{}(nil), parameterValues...),
	}
	if table := TableNameFromDML(sql); table != "" {
		statement.tables = []string{table}
	}
	return statement, nil
}

// TrimStatement removes surrounding blanks and trailing semicolons
func TrimStatement(sql string) string {
	sql = strings.TrimSpace(sql)
	for strings.HasSuffix(sql, ";") {
		sql = strings.TrimSpace(strings.TrimSuffix(sql, ";"))
	}
	return sql
}

func flattenBlanks(sql string) string {
	return strings.NewReplacer("\t", " ", "\r", " ", "\n", " ").Replace(sql)
}

func typeOf(sql string) string {
	flattened := strings.TrimSpace(flattenBlanks(sql))
	if index := strings.Index(flattened, " "); index >= 0 {
		return flattened[:index]
	}
	return flattened
}

// SQL returns trimmed sql
func (statement *Statement) SQL() string {
	return statement.sql
}

// Type returns first word of statement as it is written
func (statement *Statement) Type() string {
	return statement.statementType
}

// IsType compares statement type case-insensitively
func (statement *Statement) IsType(statementType string) bool {
	return strings.EqualFold(statement.statementType, statementType)
}

func (statement *Statement) isOneOf(types []string) bool {
	for _, statementType := range types {
		if statement.IsType(statementType) {
			return true
		}
	}
	return false
}

// Tables returns lower-cased table names referenced by statement
func (statement *Statement) Tables() []string {
	return append([]string(nil), statement.tables...)
}

// IsSelect returns true for SELECT statements
func (statement *Statement) IsSelect() bool { return statement.IsType(Select) }

// IsInsert returns true for INSERT statements
func (statement *Statement) IsInsert() bool { return statement.IsType(Insert) }

// IsUpdate returns true for UPDATE statements
func (statement *Statement) IsUpdate() bool { return statement.IsType(Update) }

// IsDelete returns true for DELETE statements
func (statement *Statement) IsDelete() bool { return statement.IsType(Delete) }

// IsDML returns true for DELETE, INSERT, SELECT, UPDATE
func (statement *Statement) IsDML() bool { return statement.isOneOf(dmlTypes) }

// IsDDL returns true for CREATE, ALTER, DROP, TRUNCATE, COMMENT, RENAME
func (statement *Statement) IsDDL() bool { return statement.isOneOf(ddlTypes) }

// IsDCL returns true for GRANT, REVOKE
func (statement *Statement) IsDCL() bool { return statement.isOneOf(dclTypes) }

// IsTCL returns true for transaction control statements
func (statement *Statement) IsTCL() bool { return statement.isOneOf(tclTypes) }

// IsWrite returns true for DML statements which modify data
func (statement *Statement) IsWrite() bool {
	return statement.IsDelete() || statement.IsInsert() || statement.IsUpdate()
}

// ParameterCount returns number of bound values
func (statement *Statement) ParameterCount() int {
	return len(statement.parameterValues)
}

// Parameter returns value with zero-based index
func (statement *Statement) Parameter(index int) (interface{}, error) {
	if index < 0 || index >= len(statement.parameterValues) {
		return nil, fmt.Errorf("%w: %d of %d", ErrParameterIndexOutOfRange, index, len(statement.parameterValues))
	}
	return statement.parameterValues[index], nil
}

// FirstParameter returns first bound value
func (statement *Statement) FirstParameter() (interface{}, error) {
	return statement.Parameter(0)
}

// LastParameter returns last bound value
func (statement *Statement) LastParameter() (interface{}, error) {
	return statement.Parameter(len(statement.parameterValues) - 1)
}
