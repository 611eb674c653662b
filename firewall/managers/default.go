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

// Package managers contains built-in firewall policies. Every policy embeds DefaultManager
// and overrides only the decisions its rule is about.
package managers

import (
	"context"

	"github.com/cossacklabs/sqlfirewall/firewall"
	"github.com/cossacklabs/sqlfirewall/logging"
	log "github.com/sirupsen/logrus"
)

// Names of built-in managers used in configuration
const (
	DefaultManagerName               = "default"
	DenyDatabaseWriteManagerName     = "deny_database_write"
	DenyDclManagerName               = "deny_dcl"
	DenyDdlManagerName               = "deny_ddl"
	DenyOnBlacklistManagerName       = "deny_on_blacklist"
	DenyExceptOnWhitelistManagerName = "deny_except_on_whitelist"
	DenyRawStatementManagerName      = "deny_raw_statement"
	DenyMetadataQueryManagerName     = "deny_metadata_query"
	CSVRulesManagerName              = "csv_rules"
	DenySqlInjectionManagerName      = "deny_sql_injection"
	DenyBannedUserManagerName        = "deny_banned_user"
	InjectionServiceManagerName      = "injection_service"
)

// DefaultManager allows everything
type DefaultManager struct{}

// Name returns manager name
func (DefaultManager) Name() string { return DefaultManagerName }

// AllowStatementExecution allows every statement
func (DefaultManager) AllowStatementExecution(ctx context.Context, event *firewall.SQLEvent, conn firewall.Connection) (bool, error) {
	return true, nil
}

// AllowRawStatementClass allows non-parameterized statements
func (DefaultManager) AllowRawStatementClass(ctx context.Context, username, database string, conn firewall.Connection) (bool, error) {
	return true, nil
}

// AllowMetadataQuery allows metadata queries
func (DefaultManager) AllowMetadataQuery(ctx context.Context, username, database string, conn firewall.Connection) (bool, error) {
	return true, nil
}

func newLogger(name string) *log.Entry {
	return log.WithField("manager", name)
}

// requestLogger returns logger of request put into ctx by firewall labeled as logger of manager.
// Without it logger of manager gets fields of event.
func requestLogger(ctx context.Context, logger *log.Entry, event *firewall.SQLEvent) *log.Entry {
	if entry, ok := logging.GetLoggerFromContextOk(ctx); ok {
		return entry.WithFields(logger.Data)
	}
	if event == nil {
		return logger
	}
	return logger.WithFields(event.LogFields())
}

func logRefused(ctx context.Context, logger *log.Entry, event *firewall.SQLEvent, reason string) {
	requestLogger(ctx, logger, event).WithField(logging.FieldKeyEventCode, logging.EventCodeErrorFirewallQueryIsNotAllowed).
		Debugf("Statement refused: %s", reason)
}
