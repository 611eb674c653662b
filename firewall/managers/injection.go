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

	"github.com/cossacklabs/sqlfirewall/firewall"
	"github.com/cossacklabs/sqlfirewall/injection"
	"github.com/cossacklabs/sqlfirewall/logging"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// DenySqlInjectionManager refuses statements where analyzer found an anomaly
type DenySqlInjectionManager struct {
	DefaultManager
	analyzer *injection.Analyzer
	logger   *log.Entry
}

// NewDenySqlInjectionManager returns manager using analyzer
func NewDenySqlInjectionManager(analyzer *injection.Analyzer) *DenySqlInjectionManager {
	return &DenySqlInjectionManager{analyzer: analyzer, logger: newLogger(DenySqlInjectionManagerName)}
}

// Name returns manager name
func (*DenySqlInjectionManager) Name() string { return DenySqlInjectionManagerName }

// Analyze returns verdict for event sql
func (manager *DenySqlInjectionManager) Analyze(event *firewall.SQLEvent) injection.Verdict {
	return manager.analyzer.Analyze(event.SQL())
}

// AllowStatementExecution implements firewall.Manager
func (manager *DenySqlInjectionManager) AllowStatementExecution(ctx context.Context, event *firewall.SQLEvent, conn firewall.Connection) (bool, error) {
	if event.Statement() == nil {
		return true, nil
	}
	verdict := manager.Analyze(event)
	if !verdict.IsAnomaly() {
		return true, nil
	}
	firewall.InjectionDetectionsCounter.With(prometheus.Labels{firewall.AnomalyLabel: string(verdict.AnomalyDetected)}).Inc()
	logger := requestLogger(ctx, manager.logger, event).WithField(logging.FieldKeyEventCode, logging.EventCodeErrorFirewallInjectionDetected).
		WithField("anomaly", verdict.AnomalyDetected)
	if verdict.KeywordDetected != "" {
		logger = logger.WithField("keyword", verdict.KeywordDetected)
	}
	logger.Warningln("SQL injection detected")
	return false, nil
}
