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

// Package remote is a client of external sql injection detection service.
// Requests are JSON documents posted to configured URL, the service answers with a verdict.
// Calls go through circuit breaker so unavailable service doesn't slow down every request.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// Default settings of HTTPDetector
const (
	DefaultTimeout        = 2 * time.Second
	DefaultMaxFailures    = 5
	DefaultBreakerTimeout = 30 * time.Second
	maxResponseSize       = 1 << 20
)

// Errors returned by HTTPDetector
var (
	ErrEmptyURL         = errors.New("injection detection service url is empty")
	ErrUnexpectedStatus = errors.New("unexpected status of injection detection service")
)

// Request describes checked statement
type Request struct {
	Query     string `json:"query"`
	Username  string `json:"username"`
	Database  string `json:"database"`
	IPAddress string `json:"ip_address"`
}

// Result is verdict of service
type Result struct {
	Malicious bool    `json:"malicious"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
}

// Detector checks statement with external service
type Detector interface {
	Detect(ctx context.Context, request Request) (Result, error)
}

// Options of HTTPDetector
type Options struct {
	URL            string        `yaml:"url"`
	APIKey         string        `yaml:"api_key"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxFailures    uint32        `yaml:"max_failures"`
	BreakerTimeout time.Duration `yaml:"breaker_timeout"`
}

// HTTPDetector posts requests to service over HTTP
type HTTPDetector struct {
	url     string
	apiKey  string
	client  *http.Client
	breaker CircuitBreaker
}

// NewHTTPDetector returns detector, zero options are replaced with defaults
func NewHTTPDetector(options Options) (*HTTPDetector, error) {
	if options.URL == "" {
		return nil, ErrEmptyURL
	}
	if options.Timeout == 0 {
		options.Timeout = DefaultTimeout
	}
	if options.MaxFailures == 0 {
		options.MaxFailures = DefaultMaxFailures
	}
	if options.BreakerTimeout == 0 {
		options.BreakerTimeout = DefaultBreakerTimeout
	}
	return &HTTPDetector{
		url:     options.URL,
		apiKey:  options.APIKey,
		client:  &http.Client{Transport: cleanhttp.DefaultPooledTransport(), Timeout: options.Timeout},
		breaker: NewCircuitBreaker("injection-detector", options.BreakerTimeout, options.MaxFailures),
	}, nil
}

// Detect implements Detector
func (detector *HTTPDetector) Detect(ctx context.Context, request Request) (Result, error) {
	var result Result
	err := detector.breaker.Execute(func() error {
		var err error
		result, err = detector.post(ctx, request)
		return err
	})
	return result, err
}

func (detector *HTTPDetector) post(ctx context.Context, request Request) (Result, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return Result{}, err
	}
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, detector.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	if detector.apiKey != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+detector.apiKey)
	}
	response, err := detector.client.Do(httpRequest)
	if err != nil {
		return Result{}, err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(response.Body, maxResponseSize))
		return Result{}, fmt.Errorf("%w: %d", ErrUnexpectedStatus, response.StatusCode)
	}
	var result Result
	if err := json.NewDecoder(io.LimitReader(response.Body, maxResponseSize)).Decode(&result); err != nil {
		return Result{}, err
	}
	return result, nil
}
