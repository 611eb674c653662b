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
	"fmt"
	"time"

	"github.com/cossacklabs/sqlfirewall/logging"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// ServiceName to use in logs
const ServiceName = "sqlfirewall"

// Operation is kind of check performed by chain
type Operation string

// Operations checked by chain
const (
	OperationTransactionControl = Operation("transaction_control")
	OperationMetadataQuery      = Operation("metadata_query")
	OperationRawStatementClass  = Operation("raw_statement_class")
	OperationStatementExecution = Operation("statement_execution")
)

// Decision is result of Evaluate
type Decision struct {
	Allowed bool
	// Operation is the last checked operation, the refused one when Allowed is false
	Operation Operation
	// RefusedBy is name of refusing manager
	RefusedBy string
	// TriggerError holds failures of refusal hook and triggers. They never change decision.
	TriggerError error
}

// Firewall is ordered chain of managers with triggers run on refusal
type Firewall struct {
	managers   []Manager
	dispatcher *Dispatcher
	logger     *log.Entry
}

// New returns chain of managers. Empty chain allows everything. nil dispatcher runs no triggers.
func New(managers []Manager, dispatcher *Dispatcher) *Firewall {
	if dispatcher == nil {
		dispatcher = NewDispatcher()
	}
	return &Firewall{
		managers:   append([]Manager{}, managers...),
		dispatcher: dispatcher,
		logger:     log.WithField("service", ServiceName),
	}
}

// Managers returns configured managers
func (firewall *Firewall) Managers() []Manager {
	return append([]Manager{}, firewall.managers...)
}

// Dispatcher returns trigger dispatcher of chain
func (firewall *Firewall) Dispatcher() *Dispatcher {
	return firewall.dispatcher
}

type managerCheck func(manager Manager) (bool, error)

// check applies logical AND over managers and stops on first refusal or error
func (firewall *Firewall) check(operation Operation, callback managerCheck) (bool, Manager, error) {
	for _, manager := range firewall.managers {
		allowed, err := callback(manager)
		if err != nil {
			decisionsCounter.With(prometheus.Labels{OperationLabel: string(operation), ResultLabel: ResultError}).Inc()
			firewall.logger.WithError(err).WithField("manager", NameOf(manager)).WithField("operation", operation).
				WithField(logging.FieldKeyEventCode, logging.EventCodeErrorFirewallManagerError).Errorln("Manager can't evaluate request")
			return false, manager, fmt.Errorf("%s: %w", NameOf(manager), err)
		}
		if !allowed {
			decisionsCounter.With(prometheus.Labels{OperationLabel: string(operation), ResultLabel: ResultRefused}).Inc()
			return false, manager, nil
		}
	}
	decisionsCounter.With(prometheus.Labels{OperationLabel: string(operation), ResultLabel: ResultAllowed}).Inc()
	return true, nil, nil
}

// AllowStatementExecution returns true if every manager allows statement
func (firewall *Firewall) AllowStatementExecution(ctx context.Context, event *SQLEvent, conn Connection) (bool, error) {
	allowed, _, err := firewall.check(OperationStatementExecution, func(manager Manager) (bool, error) {
		return manager.AllowStatementExecution(ctx, event, conn)
	})
	return allowed, err
}

// AllowRawStatementClass returns true if every manager allows non-parameterized statements
func (firewall *Firewall) AllowRawStatementClass(ctx context.Context, username, database string, conn Connection) (bool, error) {
	allowed, _, err := firewall.check(OperationRawStatementClass, func(manager Manager) (bool, error) {
		return manager.AllowRawStatementClass(ctx, username, database, conn)
	})
	return allowed, err
}

// AllowMetadataQuery returns true if every manager allows metadata queries
func (firewall *Firewall) AllowMetadataQuery(ctx context.Context, username, database string, conn Connection) (bool, error) {
	allowed, _, err := firewall.check(OperationMetadataQuery, func(manager Manager) (bool, error) {
		return manager.AllowMetadataQuery(ctx, username, database, conn)
	})
	return allowed, err
}

// Evaluate runs full request path: transaction control statements are allowed, metadata queries
// are checked with AllowMetadataQuery, non-prepared statements must pass AllowRawStatementClass
// and then every statement must pass AllowStatementExecution. On refusal the refusing manager's
// hook runs and then triggers are dispatched once.
func (firewall *Firewall) Evaluate(ctx context.Context, event *SQLEvent, conn Connection) (Decision, error) {
	startTime := time.Now()
	defer func() {
		evaluationDuration.Observe(time.Since(startTime).Seconds())
	}()
	logger := firewall.logger.WithFields(event.LogFields())
	if logging.IsDebugLevel(logger) {
		logger = logger.WithField("query", event.SQL())
	}
	ctx = logging.SetLoggerToContext(ctx, logger)

	if event.IsTCL() {
		logger.Debugln("Transaction control statement allowed")
		return Decision{Allowed: true, Operation: OperationTransactionControl}, nil
	}
	var operation Operation
	var allowed bool
	var refusedBy Manager
	var err error
	if event.IsMetadataQuery() {
		operation = OperationMetadataQuery
		allowed, refusedBy, err = firewall.check(operation, func(manager Manager) (bool, error) {
			return manager.AllowMetadataQuery(ctx, event.Username(), event.Database(), conn)
		})
	} else {
		allowed = true
		if !event.IsPreparedStatement() {
			operation = OperationRawStatementClass
			allowed, refusedBy, err = firewall.check(operation, func(manager Manager) (bool, error) {
				return manager.AllowRawStatementClass(ctx, event.Username(), event.Database(), conn)
			})
		}
		if allowed && err == nil {
			operation = OperationStatementExecution
			allowed, refusedBy, err = firewall.check(operation, func(manager Manager) (bool, error) {
				return manager.AllowStatementExecution(ctx, event, conn)
			})
		}
	}
	if err != nil {
		return Decision{Operation: operation, RefusedBy: NameOf(refusedBy)}, err
	}
	if allowed {
		logger.Debugln("Allowed query")
		return Decision{Allowed: true, Operation: operation}, nil
	}

	decision := Decision{Operation: operation, RefusedBy: NameOf(refusedBy)}
	logger.WithField(logging.FieldKeyEventCode, logging.EventCodeErrorFirewallQueryIsNotAllowed).
		WithField("manager", decision.RefusedBy).WithField("operation", operation).Errorln("Denied query")
	decision.TriggerError = firewall.refuse(ctx, event, refusedBy, conn)
	return decision, nil
}

func (firewall *Firewall) refuse(ctx context.Context, event *SQLEvent, manager Manager, conn Connection) error {
	var result *multierror.Error
	if listener, ok := manager.(RefusalListener); ok {
		if err := listener.OnStatementRefused(ctx, event, conn); err != nil {
			logging.GetLoggerFromContext(ctx).WithError(err).WithField("manager", NameOf(manager)).
				WithField(logging.FieldKeyEventCode, logging.EventCodeErrorFirewallManagerError).Errorln("Refusal hook failed")
			result = multierror.Append(result, err)
		}
	}
	if err := firewall.dispatcher.Dispatch(ctx, event, manager, conn); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Wait blocks until background checks of managers finish
func (firewall *Firewall) Wait() {
	for _, manager := range firewall.managers {
		if waiter, ok := manager.(Waiter); ok {
			waiter.Wait()
		}
	}
}
