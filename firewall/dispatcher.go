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

	"github.com/cossacklabs/sqlfirewall/logging"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// Dispatcher runs configured triggers on refusal
type Dispatcher struct {
	triggers []Trigger
	logger   *log.Entry
}

// NewDispatcher returns dispatcher running triggers in given order
func NewDispatcher(triggers ...Trigger) *Dispatcher {
	return &Dispatcher{
		triggers: append([]Trigger{}, triggers...),
		logger:   log.WithField("service", "trigger-dispatcher"),
	}
}

// Triggers returns configured triggers
func (dispatcher *Dispatcher) Triggers() []Trigger {
	return append([]Trigger{}, dispatcher.triggers...)
}

// Dispatch runs every trigger. Failed trigger doesn't prevent next ones, all failures are returned together.
func (dispatcher *Dispatcher) Dispatch(ctx context.Context, event *SQLEvent, manager Manager, conn Connection) error {
	var result *multierror.Error
	for _, trigger := range dispatcher.triggers {
		if err := trigger.OnRefused(ctx, event, manager, conn); err != nil {
			name := NameOf(trigger)
			triggerErrorsCounter.With(prometheus.Labels{TriggerLabel: name}).Inc()
			dispatcher.logger.WithError(err).WithFields(event.LogFields()).WithField("trigger", name).
				WithField(logging.FieldKeyEventCode, logging.EventCodeErrorFirewallTriggerError).Errorln("Trigger failed")
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
