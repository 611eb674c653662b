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
	"sync"

	"github.com/cossacklabs/sqlfirewall/firewall"
	"github.com/cossacklabs/sqlfirewall/injection/remote"
	"github.com/cossacklabs/sqlfirewall/logging"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// remoteAnomaly label of detections by remote service in metrics
const remoteAnomaly = "RemoteService"

// InjectionServiceManager asks external service whether statement is an injection.
// Errors of the service are logged and the statement is allowed. In async mode statement is
// allowed immediately and triggers run in background when the service reports an injection.
type InjectionServiceManager struct {
	DefaultManager
	detector   remote.Detector
	async      bool
	pool       firewall.ConnectionPool
	dispatcher *firewall.Dispatcher
	wg         sync.WaitGroup
	logger     *log.Entry
}

// NewInjectionServiceManager returns synchronous manager
func NewInjectionServiceManager(detector remote.Detector) *InjectionServiceManager {
	return &InjectionServiceManager{detector: detector, logger: newLogger(InjectionServiceManagerName)}
}

// NewAsyncInjectionServiceManager returns manager checking statements in background. Connections for
// triggers are taken from pool, nil pool means triggers get no connection.
func NewAsyncInjectionServiceManager(detector remote.Detector, pool firewall.ConnectionPool, dispatcher *firewall.Dispatcher) *InjectionServiceManager {
	manager := NewInjectionServiceManager(detector)
	manager.async = true
	manager.pool = pool
	manager.dispatcher = dispatcher
	if manager.dispatcher == nil {
		manager.dispatcher = firewall.NewDispatcher()
	}
	return manager
}

// Name returns manager name
func (*InjectionServiceManager) Name() string { return InjectionServiceManagerName }

// IsAsync returns true if statements are checked in background
func (manager *InjectionServiceManager) IsAsync() bool {
	return manager.async
}

func newDetectionRequest(event *firewall.SQLEvent) remote.Request {
	return remote.Request{
		Query:     event.SQL(),
		Username:  event.Username(),
		Database:  event.Database(),
		IPAddress: event.IPAddress(),
	}
}

// detect returns true when the service recognized injection, service errors are logged and treated as clean
func (manager *InjectionServiceManager) detect(ctx context.Context, event *firewall.SQLEvent) bool {
	result, err := manager.detector.Detect(ctx, newDetectionRequest(event))
	if err != nil {
		requestLogger(ctx, manager.logger, event).WithError(err).
			WithField(logging.FieldKeyEventCode, logging.EventCodeErrorFirewallRemoteDetectorError).
			Warningln("Injection detection service unavailable, statement allowed")
		return false
	}
	if result.Malicious {
		firewall.InjectionDetectionsCounter.With(prometheus.Labels{firewall.AnomalyLabel: remoteAnomaly}).Inc()
		requestLogger(ctx, manager.logger, event).WithField("score", result.Score).WithField("reason", result.Reason).
			WithField(logging.FieldKeyEventCode, logging.EventCodeErrorFirewallInjectionDetected).Warningln("SQL injection detected by service")
	}
	return result.Malicious
}

// AllowStatementExecution implements firewall.Manager
func (manager *InjectionServiceManager) AllowStatementExecution(ctx context.Context, event *firewall.SQLEvent, conn firewall.Connection) (bool, error) {
	if event.Statement() == nil {
		return true, nil
	}
	if !manager.async {
		return !manager.detect(ctx, event), nil
	}
	manager.wg.Add(1)
	go func() {
		defer manager.wg.Done()
		manager.checkInBackground(context.WithoutCancel(ctx), event)
	}()
	return true, nil
}

func (manager *InjectionServiceManager) checkInBackground(ctx context.Context, event *firewall.SQLEvent) {
	if !manager.detect(ctx, event) {
		return
	}
	var conn firewall.Connection
	if manager.pool != nil {
		acquired, err := manager.pool.Acquire(ctx)
		if err != nil {
			manager.logger.WithError(err).WithField(logging.FieldKeyEventCode, logging.EventCodeErrorFirewallConnectionAcquireError).
				Errorln("Can't acquire connection for triggers")
		} else {
			conn = acquired
			defer func() {
				if err := manager.pool.Release(acquired); err != nil {
					manager.logger.WithError(err).WithField(logging.FieldKeyEventCode, logging.EventCodeErrorCantCloseConnectionDB).
						Errorln("Can't release connection")
				}
			}()
		}
	}
	if err := manager.dispatcher.Dispatch(ctx, event, manager, conn); err != nil {
		manager.logger.WithError(err).WithField(logging.FieldKeyEventCode, logging.EventCodeErrorFirewallBackgroundError).
			Errorln("Triggers failed after background injection check")
	}
}

// Wait blocks until all background checks finish
func (manager *InjectionServiceManager) Wait() {
	manager.wg.Wait()
}
