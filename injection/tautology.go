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

package injection

import (
	"bufio"
	"os"
	"strings"
)

const equalSign = "="

// HasEqualValuesAroundEqual detects tautologies like 1=1 or 'a' = 'a'. Blanks adjacent to "=" are
// collapsed, then for every "=" the last word on its left is compared with the first word on its
// right (case-sensitive). Only the single adjacent word is compared, so a.b = a.b matches while
// (a) = a doesn't.
func HasEqualValuesAroundEqual(sql string) bool {
	collapsed := sql
	for strings.Contains(collapsed, "= ") || strings.Contains(collapsed, " =") {
		collapsed = strings.Replace(collapsed, "= ", equalSign, -1)
		collapsed = strings.Replace(collapsed, " =", equalSign, -1)
	}
	tokens := strings.Split(collapsed, equalSign)
	for i := 0; i+1 < len(tokens); i++ {
		left := lastWord(tokens[i])
		if left == "" {
			continue
		}
		if left == firstWord(tokens[i+1]) {
			return true
		}
	}
	return false
}

func lastWord(token string) string {
	return token[strings.LastIndex(token, " ")+1:]
}

func firstWord(token string) string {
	if index := strings.Index(token, " "); index >= 0 {
		return token[:index]
	}
	return token
}

// ForbiddenKeywordsFromFile reads keywords, one per line. Empty lines and lines started with # are skipped.
func ForbiddenKeywordsFromFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var keywords []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keywords = append(keywords, line)
	}
	return keywords, scanner.Err()
}
