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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Labels of firewall metrics
const (
	OperationLabel = "operation"
	ResultLabel    = "result"
	TriggerLabel   = "trigger"
	DatabaseLabel  = "database"
	AnomalyLabel   = "anomaly"
)

// Values of ResultLabel
const (
	ResultAllowed = "allowed"
	ResultRefused = "refused"
	ResultError   = "error"
)

var (
	decisionsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlfirewall_decisions_total",
			Help: "Number of firewall decisions by operation and result",
		}, []string{OperationLabel, ResultLabel})

	evaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlfirewall_evaluation_seconds",
			Help:    "Time of statement evaluation by manager chain",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		})

	triggerErrorsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlfirewall_trigger_errors_total",
			Help: "Number of failed trigger calls",
		}, []string{TriggerLabel})

	// AlertsCounter counts alerts raised on refused statements
	AlertsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlfirewall_alerts_total",
			Help: "Number of alerts raised on refused statements",
		}, []string{DatabaseLabel})

	// InjectionDetectionsCounter counts statements recognized as injections
	InjectionDetectionsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlfirewall_injection_detections_total",
			Help: "Number of statements recognized as sql injections",
		}, []string{AnomalyLabel})
)

var registerMetricsOnce = sync.Once{}

// RegisterMetrics registers firewall metrics in default prometheus registry
func RegisterMetrics() {
	registerMetricsOnce.Do(func() {
		prometheus.MustRegister(decisionsCounter)
		prometheus.MustRegister(evaluationDuration)
		prometheus.MustRegister(triggerErrorsCounter)
		prometheus.MustRegister(AlertsCounter)
		prometheus.MustRegister(InjectionDetectionsCounter)
	})
}
