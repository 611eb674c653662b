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

// Package triggers contains built-in reactions on refused statements.
package triggers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cossacklabs/sqlfirewall/firewall"
	"github.com/cossacklabs/sqlfirewall/logging"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// Names of built-in triggers used in configuration
const (
	NoopTriggerName       = "noop"
	LogTriggerName        = "log"
	AuditTableTriggerName = "audit_table"
	BanUserTriggerName    = "ban_user"
	AlertTriggerName      = "alert"
)

// ErrNoConnection returned by triggers which need database connection
var ErrNoConnection = errors.New("trigger requires database connection")

// NoopTrigger does nothing
type NoopTrigger struct{}

// Name returns trigger name
func (NoopTrigger) Name() string { return NoopTriggerName }

// OnRefused implements firewall.Trigger
func (NoopTrigger) OnRefused(ctx context.Context, event *firewall.SQLEvent, manager firewall.Manager, conn firewall.Connection) error {
	return nil
}

// requestLogger returns logger of request put into ctx by firewall with fields of logger.
// Without it logger gets fields of event.
func requestLogger(ctx context.Context, logger *log.Entry, event *firewall.SQLEvent) *log.Entry {
	if entry, ok := logging.GetLoggerFromContextOk(ctx); ok {
		return entry.WithFields(logger.Data)
	}
	return logger.WithFields(event.LogFields())
}

// LogTrigger writes JSON entry about every refused statement
type LogTrigger struct {
	logger *log.Logger
	closer io.Closer
}

// NewLogTrigger returns trigger writing to writer
func NewLogTrigger(writer io.Writer) *LogTrigger {
	logger := log.New()
	logger.SetOutput(writer)
	formatter := logging.JSONFormatter()
	formatter.SetServiceName(LogTriggerName + "-trigger")
	logger.SetFormatter(formatter)
	logger.SetLevel(log.InfoLevel)
	return &LogTrigger{logger: logger}
}

// NewFileLogTrigger returns trigger appending entries to file
func NewFileLogTrigger(path string) (*LogTrigger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}
	trigger := NewLogTrigger(file)
	trigger.closer = file
	return trigger, nil
}

// Name returns trigger name
func (*LogTrigger) Name() string { return LogTriggerName }

// OnRefused implements firewall.Trigger
func (trigger *LogTrigger) OnRefused(ctx context.Context, event *firewall.SQLEvent, manager firewall.Manager, conn firewall.Connection) error {
	trigger.logger.WithFields(event.LogFields()).
		WithField("manager", firewall.NameOf(manager)).
		WithField(logging.FieldKeyEventCode, logging.EventCodeErrorFirewallQueryIsNotAllowed).
		Warningln("Statement refused")
	return nil
}

// Close closes file opened by NewFileLogTrigger
func (trigger *LogTrigger) Close() error {
	if trigger.closer == nil {
		return nil
	}
	return trigger.closer.Close()
}

// AlertBell written by AlertTrigger on every refusal
const AlertBell = "\a"

// AlertTrigger rings terminal bell, logs warning and increments alerts metric
type AlertTrigger struct {
	writer io.Writer
	mutex  sync.Mutex
	logger *log.Entry
}

// NewAlertTrigger returns trigger writing bell to writer, nil writer means stderr
func NewAlertTrigger(writer io.Writer) *AlertTrigger {
	if writer == nil {
		writer = os.Stderr
	}
	return &AlertTrigger{writer: writer, logger: log.WithField("trigger", AlertTriggerName)}
}

// Name returns trigger name
func (*AlertTrigger) Name() string { return AlertTriggerName }

// OnRefused implements firewall.Trigger
func (trigger *AlertTrigger) OnRefused(ctx context.Context, event *firewall.SQLEvent, manager firewall.Manager, conn firewall.Connection) error {
	firewall.AlertsCounter.With(prometheus.Labels{firewall.DatabaseLabel: event.Database()}).Inc()
	requestLogger(ctx, trigger.logger, event).WithField("manager", firewall.NameOf(manager)).
		WithField(logging.FieldKeyEventCode, logging.EventCodeErrorFirewallAlert).
		Warningf("Alert: statement refused at %s", time.Now().UTC().Format(time.RFC3339))
	trigger.mutex.Lock()
	defer trigger.mutex.Unlock()
	if _, err := io.WriteString(trigger.writer, AlertBell); err != nil {
		return fmt.Errorf("can't write alert: %w", err)
	}
	return nil
}
