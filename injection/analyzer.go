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

// Package injection implements heuristic detection of SQL injection attempts. Analyzer runs an
// ordered list of checks over one statement; the first check that finds an anomaly stops the
// analysis, except the "no spaces" check which only marks the statement and lets analysis go on.
//
// Checks order:
//  1. statement without spaces
//  2. nested comments
//  3. line breaks
//  4. comments (comments are always removed from the working copy)
//  5. odd number of single quotes
//  6. equal values around "=" (1=1, 'a'='a')
//  7. outside of literals: comments, separators, tabs, double quotes, forbidden keywords
package injection

import (
	"strings"

	"github.com/cossacklabs/sqlfirewall/sqltext"
)

// Options configures which checks Analyzer performs
type Options struct {
	DetectNoSpaces               bool     `yaml:"detect_no_spaces"`
	DetectLineBreaks             bool     `yaml:"detect_line_breaks"`
	DetectComments               bool     `yaml:"detect_comments"`
	DetectSeparators             bool     `yaml:"detect_separators"`
	DetectTabs                   bool     `yaml:"detect_tabs"`
	DetectDoubleQuotes           bool     `yaml:"detect_double_quotes"`
	DetectEqualValuesAroundEqual bool     `yaml:"detect_equal_values_around_equal"`
	ForbiddenKeywords            []string `yaml:"forbidden_keywords"`
}

// DefaultOptions enables every check without forbidden keywords
func DefaultOptions() Options {
	return Options{
		DetectNoSpaces:               true,
		DetectLineBreaks:             true,
		DetectComments:               true,
		DetectSeparators:             true,
		DetectTabs:                   true,
		DetectDoubleQuotes:           true,
		DetectEqualValuesAroundEqual: true,
	}
}

// Analyzer checks sql statements against configured heuristics. It keeps no state between calls.
type Analyzer struct {
	options  Options
	keywords []string
}

// NewAnalyzer creates Analyzer. Keywords are trimmed and lower-cased, empty ones are skipped.
func NewAnalyzer(options Options) *Analyzer {
	keywords := make([]string, 0, len(options.ForbiddenKeywords))
	for _, keyword := range options.ForbiddenKeywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword != "" {
			keywords = append(keywords, keyword)
		}
	}
	options.ForbiddenKeywords = append([]string(nil), keywords...)
	return &Analyzer{options: options, keywords: keywords}
}

// Options returns copy of analyzer options
func (analyzer *Analyzer) Options() Options {
	options := analyzer.options
	options.ForbiddenKeywords = append([]string(nil), analyzer.keywords...)
	return options
}

func (analyzer *Analyzer) enabled() bool {
	options := analyzer.options
	return options.DetectNoSpaces || options.DetectLineBreaks || options.DetectComments ||
		options.DetectSeparators || options.DetectTabs || options.DetectDoubleQuotes ||
		options.DetectEqualValuesAroundEqual || len(analyzer.keywords) > 0
}

// analysis holds working copy of sql which checks may rewrite for the following ones
type analysis struct {
	sql     string
	verdict Verdict
}

// check returns true when analysis should stop
type check func(analyzer *Analyzer, state *analysis) bool

var checks = []check{
	checkNoSpaces,
	checkNestedComments,
	checkLineBreaks,
	checkComments,
	checkOddQuotesNumber,
	checkEqualValuesAroundEqual,
	checkUnquotedSegments,
}

// Analyze runs all checks over sql and returns verdict
func (analyzer *Analyzer) Analyze(sql string) Verdict {
	if !analyzer.enabled() {
		return Verdict{}
	}
	state := &analysis{sql: sql}
	for _, run := range checks {
		if run(analyzer, state) {
			break
		}
	}
	return state.verdict
}

func checkNoSpaces(analyzer *Analyzer, state *analysis) bool {
	if analyzer.options.DetectNoSpaces && !strings.Contains(strings.TrimSpace(state.sql), " ") {
		state.verdict.flag(AnomalyNoSpaces)
	}
	return false
}

func checkNestedComments(analyzer *Analyzer, state *analysis) bool {
	if sqltext.ContainsNestedComments(state.sql) {
		state.verdict.flag(AnomalyNestedComments)
		return true
	}
	return false
}

func checkLineBreaks(analyzer *Analyzer, state *analysis) bool {
	if analyzer.options.DetectLineBreaks && sqltext.ContainsLineBreaks(state.sql) {
		state.verdict.flag(AnomalyLineBreaks)
		return true
	}
	return false
}

func checkComments(analyzer *Analyzer, state *analysis) bool {
	cleaned, modified := sqltext.RemoveComments(state.sql)
	state.sql = cleaned
	if modified && analyzer.options.DetectComments {
		state.verdict.flag(AnomalyComments)
		return true
	}
	return false
}

func checkOddQuotesNumber(analyzer *Analyzer, state *analysis) bool {
	if sqltext.HasOddQuotesNumber(state.sql) {
		state.verdict.flag(AnomalyOddQuotesNumber)
		return true
	}
	return false
}

func checkEqualValuesAroundEqual(analyzer *Analyzer, state *analysis) bool {
	if analyzer.options.DetectEqualValuesAroundEqual && HasEqualValuesAroundEqual(state.sql) {
		state.verdict.flag(AnomalyEqualValuesAroundEqual)
		return true
	}
	return false
}

func checkUnquotedSegments(analyzer *Analyzer, state *analysis) bool {
	segments, err := sqltext.SplitOnSingleQuotes(state.sql)
	if err != nil {
		// reserved sequence inside sql, it can't be tokenized safely
		state.verdict.flag(AnomalyReservedSequence)
		return true
	}
	options := analyzer.options
	for i := 0; i < len(segments); i += 2 {
		segment := segments[i]
		if options.DetectComments && (strings.Contains(segment, "--") || strings.Contains(segment, "#")) {
			state.verdict.flag(AnomalyComments)
			return true
		}
		if options.DetectSeparators && strings.Contains(segment, ";") {
			state.verdict.flag(AnomalySeparators)
			return true
		}
		if options.DetectTabs && strings.Contains(segment, "\t") {
			state.verdict.flag(AnomalyTabs)
			return true
		}
		if options.DetectDoubleQuotes && strings.Contains(segment, "\"") {
			state.verdict.flag(AnomalyDoubleQuotes)
			return true
		}
		if keyword, found := analyzer.findForbiddenKeyword(segment, i == len(segments)-1); found {
			state.verdict.flag(AnomalyForbiddenKeywords)
			state.verdict.KeywordDetected = keyword
			return true
		}
	}
	return false
}

// findForbiddenKeyword looks for keywords in unquoted segment. Only the last segment, the one after
// the last quote, is cut at a trailing comment.
func (analyzer *Analyzer) findForbiddenKeyword(segment string, last bool) (string, bool) {
	if len(analyzer.keywords) == 0 {
		return "", false
	}
	if last {
		segment = truncateAtComment(segment)
	}
	segment = strings.ToLower(segment)
	for _, keyword := range analyzer.keywords {
		if strings.Contains(segment, keyword) {
			return keyword, true
		}
	}
	return "", false
}

// truncateAtComment drops text after the first "#" or "--"
func truncateAtComment(segment string) string {
	cut := len(segment)
	if index := strings.Index(segment, "#"); index >= 0 && index < cut {
		cut = index
	}
	if index := strings.Index(segment, "--"); index >= 0 && index < cut {
		cut = index
	}
	return segment[:cut]
}
