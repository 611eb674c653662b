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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLEventValidation(t *testing.T) {
	testcases := []struct {
		username, database, ip, sql string
		prepared, metadata          bool
		params                      []interface{}
		err                         error
	}{
		{"", "db", "ip", "select 1", false, false, nil, ErrEventFieldMissing},
		{"user", "", "ip", "select 1", false, false, nil, ErrEventFieldMissing},
		{"user", "db", "", "select 1", false, false, nil, ErrEventFieldMissing},
		{"user", "db", "ip", "", false, false, nil, ErrEventFieldMissing},
		{"user", "db", "ip", "  ;", true, false, nil, ErrEventFieldMissing},
		{"user", "db", "ip", "select 1", false, false, []interface{}{1}, ErrUnexpectedParameters},
		{"user", "db", "ip", "", false, true, nil, nil},
		{"user", "db", "ip", "select ?", true, false, []interface{}{1}, nil},
	}
	for i, tcase := range testcases {
		_, err := NewSQLEvent(tcase.username, tcase.database, tcase.ip, tcase.sql, tcase.prepared, tcase.params, tcase.metadata)
		if tcase.err == nil {
			assert.NoError(t, err, i)
		} else {
			assert.True(t, errors.Is(err, tcase.err), "%d: %v", i, err)
		}
	}
}

func TestSQLEventIsImmutable(t *testing.T) {
	params := []interface{}{"5"}
	event, err := NewSQLEvent("user", "shop", "10.0.0.1", "SELECT * FROM accounts WHERE id = ?", true, params, false)
	require.NoError(t, err)
	params[0] = "changed"
	assert.Equal(t, []interface{}{"5"}, event.ParameterValues())

	values := event.ParameterValues()
	values[0] = "changed"
	assert.Equal(t, []interface{}{"5"}, event.ParameterValues())

	assert.Equal(t, "user", event.Username())
	assert.Equal(t, "shop", event.Database())
	assert.Equal(t, "10.0.0.1", event.IPAddress())
	assert.True(t, event.IsPreparedStatement())
	assert.False(t, event.IsMetadataQuery())
	assert.True(t, event.Statement().IsSelect())
	assert.Equal(t, []string{"accounts"}, event.Statement().Tables())
	assert.False(t, event.IsTCL())

	fields := event.LogFields()
	assert.Equal(t, "SELECT * FROM accounts WHERE id = ?", fields["query"])
	assert.NotContains(t, fields, "parameters")
}

func TestMetadataEventWithoutStatement(t *testing.T) {
	event, err := NewSQLEvent("user", "shop", "10.0.0.1", "", false, nil, true)
	require.NoError(t, err)
	assert.Nil(t, event.Statement())
	assert.False(t, event.IsTCL())
	assert.Equal(t, true, event.LogFields()["metadata_query"])
}
