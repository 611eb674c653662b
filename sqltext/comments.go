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

package sqltext

import (
	"strings"
)

const (
	lineCommentStart  = "--"
	blockCommentStart = "/*"
	blockCommentEnd   = "*/"
)

// RemoveComments strips "--" line comments and "/* */" block comments located outside of literals.
// Every removed block comment is replaced with one space so that neighbour tokens are not glued
// together. Line breaks that terminate line comments are kept. Second value reports whether
// anything was removed.
func RemoveComments(sql string) (string, bool) {
	var builder strings.Builder
	builder.Grow(len(sql))
	inLiteral := false
	modified := false
	for i := 0; i < len(sql); {
		c := sql[i]
		if c == '\'' {
			inLiteral = !inLiteral
			builder.WriteByte(c)
			i++
			continue
		}
		if !inLiteral {
			rest := sql[i:]
			if strings.HasPrefix(rest, lineCommentStart) {
				modified = true
				end := strings.IndexAny(rest, "\r\n")
				if end < 0 {
					break
				}
				i += end
				continue
			}
			if strings.HasPrefix(rest, blockCommentStart) {
				modified = true
				builder.WriteByte(' ')
				end := strings.Index(rest[len(blockCommentStart):], blockCommentEnd)
				if end < 0 {
					// unterminated comment hides the rest of the statement
					break
				}
				i += len(blockCommentStart) + end + len(blockCommentEnd)
				continue
			}
		}
		builder.WriteByte(c)
		i++
	}
	return builder.String(), modified
}

// ContainsNestedComments reports sql where one "/*" is followed by more than one "*/". A single
// quote located before the second "*/" means the terminator belongs to a literal and the segment
// is accepted.
func ContainsNestedComments(sql string) bool {
	for _, segment := range strings.Split(sql, blockCommentStart) {
		first := strings.Index(segment, blockCommentEnd)
		if first < 0 {
			continue
		}
		offset := first + len(blockCommentEnd)
		second := strings.Index(segment[offset:], blockCommentEnd)
		if second < 0 {
			continue
		}
		second += offset
		if quote := strings.Index(segment, singleQuote); quote >= 0 && quote < second {
			continue
		}
		return true
	}
	return false
}

// ContainsLineBreaks returns true if trimmed sql spans more than one line
func ContainsLineBreaks(sql string) bool {
	return strings.ContainsAny(strings.TrimSpace(sql), "\r\n")
}
