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

package cmd

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cossacklabs/sqlfirewall/logging"
	"github.com/cossacklabs/sqlfirewall/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// DefaultNetworkTimeout read/write timeout of metrics http server
const DefaultNetworkTimeout = time.Second * 5

// RunPrometheusHTTPHandler runs in goroutine http server listening address and exporting prometheus metrics
func RunPrometheusHTTPHandler(address string) (net.Listener, *http.Server, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Handler: mux, ReadTimeout: DefaultNetworkTimeout, WriteTimeout: DefaultNetworkTimeout}
	go func() {
		log.WithField("address", listener.Addr().String()).Infoln("Start prometheus http handler")
		err := server.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			log.WithField(logging.FieldKeyEventCode, logging.EventCodeErrorPrometheusHTTPHandler).WithError(err).
				Errorln("Error from HTTP server that process prometheus metrics")
		}
	}()
	return listener, server, nil
}

// serviceNameToLabelFormat convert service name to lower case and replace '-' with '_'
// ex. sqlfirewall-check will be changed to sqlfirewall_check
func serviceNameToLabelFormat(serviceName string) string {
	return strings.ToLower(strings.ReplaceAll(serviceName, "-", "_"))
}

// Labels of build info metric
const (
	BuildInfoVersionLabel = "version"
)

var (
	buildInfoCounter      *prometheus.CounterVec
	registerBuildInfoLock = sync.Once{}
)

// RegisterBuildInfoMetrics registers build info metric and increments it with current version once
func RegisterBuildInfoMetrics(serviceName string) {
	registerBuildInfoLock.Do(func() {
		buildInfoCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_build_info", serviceNameToLabelFormat(serviceName)),
				Help: "Version of service",
			}, []string{BuildInfoVersionLabel})
		prometheus.MustRegister(buildInfoCounter)
		version, err := utils.GetParsedVersion()
		if err != nil {
			panic(err)
		}
		buildInfoCounter.With(prometheus.Labels{BuildInfoVersionLabel: version.String()}).Inc()
	})
}
