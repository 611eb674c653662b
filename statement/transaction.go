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

import "strings"

// Optional words of transaction control statements
const (
	Work        = "WORK"
	Transaction = "TRANSACTION"
	To          = "TO"
)

// transactionModeWords may follow START TRANSACTION and BEGIN, like ISOLATION LEVEL READ COMMITTED
var transactionModeWords = map[string]bool{
	"ISOLATION": true, "LEVEL": true, "SERIALIZABLE": true, "REPEATABLE": true, "READ": true,
	"COMMITTED": true, "UNCOMMITTED": true, "WRITE": true, "ONLY": true, "NOT": true,
	"DEFERRABLE": true, "WITH": true, "CONSISTENT": true, "SNAPSHOT": true,
}

// IsTransactionControl returns true when the whole statement is one transaction control command:
//
//	COMMIT|ROLLBACK [WORK|TRANSACTION]
//	ROLLBACK [WORK|TRANSACTION] TO [SAVEPOINT] <name>
//	BEGIN [WORK|TRANSACTION] [<transaction modes>]
//	START TRANSACTION [<transaction modes>]
//	SAVEPOINT <name>
//	RELEASE [SAVEPOINT] <name>
//
// Any other text, including a TCL command followed by other statements, returns false.
func (statement *Statement) IsTransactionControl() bool {
	words := strings.Fields(flattenBlanks(statement.sql))
	if len(words) == 0 {
		return false
	}
	first := strings.ToUpper(words[0])
	withModes := first == Begin || first == Start
	for i, word := range words {
		if withModes && i > 1 {
			word = strings.TrimSuffix(word, ",")
		}
		if !isPlainWord(word) {
			return false
		}
		words[i] = strings.ToUpper(word)
	}
	rest := words[1:]
	switch first {
	case Commit:
		return len(skipOptional(rest, Work, Transaction)) == 0
	case Rollback:
		rest = skipOptional(rest, Work, Transaction)
		if len(rest) == 0 {
			return true
		}
		if rest[0] != To {
			return false
		}
		return len(skipOptional(rest[1:], Savepoint)) == 1
	case Begin:
		return onlyTransactionModes(skipOptional(rest, Work, Transaction))
	case Start:
		return len(rest) > 0 && rest[0] == Transaction && onlyTransactionModes(rest[1:])
	case Savepoint:
		return len(rest) == 1
	case Release:
		return len(skipOptional(rest, Savepoint)) == 1
	}
	return false
}

// skipOptional drops first word if it is one of optional
func skipOptional(words []string, optional ...string) []string {
	if len(words) == 0 {
		return words
	}
	for _, word := range optional {
		if words[0] == word {
			return words[1:]
		}
	}
	return words
}

func onlyTransactionModes(words []string) bool {
	for _, word := range words {
		if !transactionModeWords[word] {
			return false
		}
	}
	return true
}

// isPlainWord accepts unquoted identifiers and keywords: letters, digits, underscore, not starting with digit
func isPlainWord(word string) bool {
	if word == "" {
		return false
	}
	for i := 0; i < len(word); i++ {
		c := word[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
