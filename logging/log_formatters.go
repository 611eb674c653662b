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
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Keys of fields added by formatters
const (
	FieldKeyEventCode = "code"
	FieldKeyProduct   = "product"
	FieldKeyUnixTime  = "unixTime"
	FieldKeyService   = "service"
)

// ProductName used as value of FieldKeyProduct
const ProductName = "sqlfirewall"

// JSONFieldMap renames default logrus keys in JSON output
var JSONFieldMap = logrus.FieldMap{
	logrus.FieldKeyTime:  "timestamp",
	logrus.FieldKeyMsg:   "msg",
	logrus.FieldKeyLevel: "level",
}

// PlaintextFormatter is logrus.TextFormatter with fixed settings
type PlaintextFormatter struct {
	logrus.TextFormatter
}

// SetServiceName does nothing, plaintext output has no service label
func (f *PlaintextFormatter) SetServiceName(serviceName string) {}

// TextFormatter returns a default logrus.TextFormatter with specific settings
func TextFormatter() *PlaintextFormatter {
	return &PlaintextFormatter{logrus.TextFormatter{
		FullTimestamp:    true,
		TimestampFormat:  time.RFC3339,
		QuoteEmptyFields: true,
	}}
}

// StructuredJSONFormatter formats entries with logrus.JSONFormatter and adds the product,
// service and unix time fields when they are missing in the entry data.
type StructuredJSONFormatter struct {
	formatter *logrus.JSONFormatter
	mutex     sync.RWMutex
	fields    logrus.Fields
}

// JSONFormatter returns a StructuredJSONFormatter
func JSONFormatter() *StructuredJSONFormatter {
	return &StructuredJSONFormatter{
		formatter: &logrus.JSONFormatter{
			FieldMap:        JSONFieldMap,
			TimestampFormat: time.RFC3339,
		},
		fields: logrus.Fields{FieldKeyProduct: ProductName},
	}
}

// SetServiceName sets value of FieldKeyService
func (f *StructuredJSONFormatter) SetServiceName(serviceName string) {
	f.mutex.Lock()
	f.fields[FieldKeyService] = serviceName
	f.mutex.Unlock()
}

// Format formats an entry. The given entry is copied and not changed during formatting.
func (f *StructuredJSONFormatter) Format(e *logrus.Entry) ([]byte, error) {
	f.mutex.RLock()
	ne := copyEntry(e, f.fields)
	f.mutex.RUnlock()
	ne.Data[FieldKeyUnixTime] = unixTimeWithMilliseconds(e)
	dataBytes, err := f.formatter.Format(ne)
	releaseEntry(ne)
	return dataBytes, err
}

// Using a pool to re-use old entries when formatting messages.
var entryPool = sync.Pool{
	New: func() interface{} {
		return &logrus.Entry{}
	},
}

// copyEntry copies the entry `e` to a new entry and then adds all the fields in `fields` that are missing in the new entry data.
func copyEntry(e *logrus.Entry, fields logrus.Fields) *logrus.Entry {
	ne := entryPool.Get().(*logrus.Entry)
	ne.Logger = e.Logger
	ne.Message = e.Message
	ne.Level = e.Level
	ne.Time = e.Time
	ne.Caller = e.Caller
	ne.Context = e.Context
	ne.Buffer = nil
	ne.Data = make(logrus.Fields, len(fields)+len(e.Data)+1)
	for k, v := range fields {
		ne.Data[k] = v
	}
	for k, v := range e.Data {
		ne.Data[k] = v
	}
	return ne
}

// releaseEntry puts the given entry back to `entryPool`. It must be called if copyEntry is called.
func releaseEntry(e *logrus.Entry) {
	entryPool.Put(e)
}

func unixTimeWithMilliseconds(e *logrus.Entry) string {
	millis := e.Time.UnixNano() / int64(time.Millisecond)
	return fmt.Sprintf("%.3f", float64(millis)/1000.0)
}
