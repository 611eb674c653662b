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

// Package sqltext contains quote-aware lexical helpers used by the firewall: splitting SQL text on
// single-quoted literals, comment detection and removal, and whitespace normalization that makes
// textually different but equivalent statements compare equal.
//
// All functions are pure and safe for concurrent use.
package sqltext

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	singleQuote  = "'"
	escapedQuote = "''"
	// escapedQuoteSentinel replaces doubled quotes while splitting; it lives in the Unicode private use area
	escapedQuoteSentinel = "\uE000"
)

// Errors returned by tokenizer functions
var (
	ErrOddQuotesNumber  = errors.New("sql contains an odd number of single quotes")
	ErrReservedSequence = errors.New("sql contains reserved escape sequence")
)

// CountSingleQuotes returns number of ' characters in sql
func CountSingleQuotes(sql string) int {
	return strings.Count(sql, singleQuote)
}

// HasOddQuotesNumber returns true if sql can't be split into balanced literals
func HasOddQuotesNumber(sql string) bool {
	return CountSingleQuotes(sql)%2 != 0
}

// SplitOnSingleQuotes splits sql on single quotes. Even indexed tokens are outside of literals,
// odd indexed tokens are literal contents. Escaped quotes ('') are kept inside tokens as a private
// sentinel which GetNormalized restores.
func SplitOnSingleQuotes(sql string) ([]string, error) {
	if HasOddQuotesNumber(sql) {
		return nil, ErrOddQuotesNumber
	}
	if strings.Contains(sql, escapedQuoteSentinel) {
		return nil, ErrReservedSequence
	}
	escaped := strings.Replace(sql, escapedQuote, escapedQuoteSentinel, -1)
	return strings.Split(escaped, singleQuote), nil
}

// RestoreEscapedQuotes replaces sentinels left by SplitOnSingleQuotes with ''
func RestoreEscapedQuotes(token string) string {
	return strings.Replace(token, escapedQuoteSentinel, escapedQuote, -1)
}

// NormalizeWhitespace collapses every run of blank characters into one space and trims the result
func NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// GetNormalized collapses whitespace outside of literals and keeps literal contents untouched.
func GetNormalized(sql string) (string, error) {
	segments, err := SplitOnSingleQuotes(sql)
	if err != nil {
		return "", err
	}
	return joinSegments(segments, false), nil
}

// GetComparable returns normalized sql with everything outside of literals lower-cased. Two
// statements which differ only in keyword/identifier case or in blanks have the same comparable form.
func GetComparable(sql string) (string, error) {
	segments, err := SplitOnSingleQuotes(sql)
	if err != nil {
		return "", err
	}
	return joinSegments(segments, true), nil
}

func joinSegments(segments []string, foldCase bool) string {
	var builder strings.Builder
	last := len(segments) - 1
	for i, segment := range segments {
		if i%2 == 1 {
			builder.WriteString(singleQuote)
			builder.WriteString(segment)
			builder.WriteString(singleQuote)
			continue
		}
		normalized := NormalizeWhitespace(segment)
		if foldCase {
			normalized = strings.ToLower(normalized)
		}
		if normalized == "" {
			// blanks between two literals are reduced to one separator
			if i > 0 && i < last && segment != "" {
				builder.WriteByte(' ')
			}
			continue
		}
		if i > 0 && startsWithBlank(segment) {
			builder.WriteByte(' ')
		}
		builder.WriteString(normalized)
		if i < last && endsWithBlank(segment) {
			builder.WriteByte(' ')
		}
	}
	return RestoreEscapedQuotes(builder.String())
}

func startsWithBlank(text string) bool {
	r, _ := utf8.DecodeRuneInString(text)
	return unicode.IsSpace(r)
}

func endsWithBlank(text string) bool {
	r, _ := utf8.DecodeLastRuneInString(text)
	return unicode.IsSpace(r)
}
