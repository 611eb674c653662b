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

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func demoLogEntry(logger *log.Logger) *log.Entry {
	entry := logger.WithFields(log.Fields{
		"a-field": "value A",
		"z-field": "value Z",
	})
	entry.Time, _ = time.Parse(time.RFC3339, "1986-10-04T23:59:59Z")
	entry.Level = log.ErrorLevel
	entry.Message = "test error please ignore"
	return entry
}

func TestJSONFormatterAddsFields(t *testing.T) {
	formatter := JSONFormatter()
	formatter.SetServiceName("test-service")
	entry := demoLogEntry(log.New())

	output, err := formatter.Format(entry)
	require.NoError(t, err)

	fields := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(output, &fields))
	assert.Equal(t, "test-service", fields[FieldKeyService])
	assert.Equal(t, ProductName, fields[FieldKeyProduct])
	assert.Equal(t, "528854399.000", fields[FieldKeyUnixTime])
	assert.Equal(t, "test error please ignore", fields["msg"])
	assert.Equal(t, "error", fields["level"])
	assert.Equal(t, "value A", fields["a-field"])
	// formatter must not change source entry
	assert.Len(t, entry.Data, 2)
}

func TestJSONFormatterEntryFieldsWin(t *testing.T) {
	formatter := JSONFormatter()
	formatter.SetServiceName("test-service")
	entry := demoLogEntry(log.New()).WithField(FieldKeyService, "manager")
	entry.Message = "message"

	output, err := formatter.Format(entry)
	require.NoError(t, err)
	fields := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(output, &fields))
	assert.Equal(t, "manager", fields[FieldKeyService])
}

func TestPlaintextFormatter(t *testing.T) {
	logger := log.New()
	buffer := &bytes.Buffer{}
	logger.SetOutput(buffer)
	formatter := NewFormatter("PLAINTEXT")
	formatter.SetServiceName("ignored")
	logger.SetFormatter(formatter)
	logger.WithField(FieldKeyEventCode, EventCodeErrorFirewallQueryIsNotAllowed).Warningln("refused")

	assert.Contains(t, buffer.String(), "code=560")
	assert.Contains(t, buffer.String(), "msg=refused")
	assert.NotContains(t, buffer.String(), "ignored")
}

func TestNewFormatter(t *testing.T) {
	_, ok := NewFormatter("json").(*StructuredJSONFormatter)
	assert.True(t, ok)
	_, ok = NewFormatter("unknown").(*PlaintextFormatter)
	assert.True(t, ok)
}

func TestLogLevels(t *testing.T) {
	defer log.SetLevel(log.GetLevel())
	for _, level := range []int{LogDebug, LogVerbose, LogDiscard} {
		SetLogLevel(level)
		assert.Equal(t, level, GetLogLevel())
	}
	assert.Panics(t, func() { SetLogLevel(100) })
}

func TestLoggerContext(t *testing.T) {
	ctx := context.Background()
	_, ok := GetLoggerFromContextOk(ctx)
	assert.False(t, ok)
	assert.NotNil(t, GetLoggerFromContext(ctx))

	logger := log.WithField("service", "test")
	ctx = SetLoggerToContext(ctx, logger)
	assert.Equal(t, logger, GetLoggerFromContext(ctx))
}
