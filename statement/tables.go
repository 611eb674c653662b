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

package statement

import (
	"strings"
)

var tableQuotesReplacer = strings.NewReplacer("\"", "", "'", "", "`", "", "[", "", "]", "")

// TableNameFromDML returns lower-cased table name used by INSERT (after INTO), SELECT and DELETE
// (after FROM) or UPDATE (after verb). Only the first table is returned; schema qualifier and
// quotes are removed. Returns empty string for other statements or when table can't be found.
func TableNameFromDML(sql string) string {
	flattened := flattenBlanks(TrimStatement(sql))
	statementType := typeOf(flattened)
	var rest string
	switch {
	case strings.EqualFold(statementType, Insert):
		rest = substringAfterFold(flattened, " INTO ")
	case strings.EqualFold(statementType, Select), strings.EqualFold(statementType, Delete):
		// "FROM a, b" lists tables which shouldn't be glued into one token
		rest = substringAfterFold(strings.Replace(flattened, ",", " ", -1), " FROM ")
	case strings.EqualFold(statementType, Update):
		rest = strings.TrimSpace(flattened)[len(statementType):]
	default:
		return ""
	}
	return cleanTableName(firstToken(rest))
}

// substringAfterFold returns text after first case-insensitive occurrence of separator
func substringAfterFold(text, separator string) string {
	index := strings.Index(toUpperASCII(text), separator)
	if index < 0 {
		return ""
	}
	return text[index+len(separator):]
}

// toUpperASCII keeps byte offsets of text unchanged
func toUpperASCII(text string) string {
	upper := []byte(text)
	for i, c := range upper {
		if c >= 'a' && c <= 'z' {
			upper[i] = c - ('a' - 'A')
		}
	}
	return string(upper)
}

func firstToken(text string) string {
	text = strings.TrimSpace(text)
	if index := strings.IndexAny(text, " ("); index >= 0 {
		text = text[:index]
	}
	return text
}

func cleanTableName(table string) string {
	table = strings.TrimSpace(table)
	if index := strings.LastIndex(table, "."); index >= 0 {
		table = table[index+1:]
	}
	return strings.ToLower(tableQuotesReplacer.Replace(table))
}
