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

package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// PlaceholderStyle of bound parameters in sql queries
type PlaceholderStyle string

// Supported placeholder styles
const (
	// DollarPlaceholder used by PostgreSQL drivers: $1, $2
	DollarPlaceholder PlaceholderStyle = "dollar"
	// QuestionPlaceholder used by MySQL drivers: ?, ?
	QuestionPlaceholder PlaceholderStyle = "question"
)

// Errors of sql helpers
var (
	ErrUnknownPlaceholderStyle = errors.New("unknown placeholder style")
	ErrInvalidIdentifier       = errors.New("invalid sql identifier")
)

var identifierRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ParsePlaceholderStyle returns style by name. Empty name and driver names are accepted too.
func ParsePlaceholderStyle(name string) (PlaceholderStyle, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", string(DollarPlaceholder), "postgresql", "postgres", "pgx":
		return DollarPlaceholder, nil
	case string(QuestionPlaceholder), "mysql":
		return QuestionPlaceholder, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownPlaceholderStyle, name)
}

// Placeholders returns n placeholders of style
func (style PlaceholderStyle) Placeholders(n int) []string {
	result := make([]string, n)
	for i := range result {
		if style == QuestionPlaceholder {
			result[i] = "?"
		} else {
			result[i] = fmt.Sprintf("$%d", i+1)
		}
	}
	return result
}

// ValidateIdentifier checks that name is plain or schema-qualified identifier safe to put into query text
func ValidateIdentifier(name string) error {
	if !identifierRegexp.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}
