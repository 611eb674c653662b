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

// AnomalyType names the first anomaly found in analysed sql
type AnomalyType string

// Anomaly labels reported in Verdict.AnomalyDetected
const (
	AnomalyNone                   AnomalyType = ""
	AnomalyNoSpaces               AnomalyType = "SqlWithNoSpaces"
	AnomalyNestedComments         AnomalyType = "SqlWithNestedComments"
	AnomalyLineBreaks             AnomalyType = "SqlWithLineBreaks"
	AnomalyComments               AnomalyType = "SqlWithComments"
	AnomalyOddQuotesNumber        AnomalyType = "SqlWithOddQuotesNumber"
	AnomalyEqualValuesAroundEqual AnomalyType = "SqlWithEqualValuesAroundEqual"
	AnomalySeparators             AnomalyType = "SqlWithSeparators"
	AnomalyTabs                   AnomalyType = "SqlWithTabs"
	AnomalyDoubleQuotes           AnomalyType = "SqlWithDoubleQuotes"
	AnomalyForbiddenKeywords      AnomalyType = "SqlWithForbiddenKeywords"
	AnomalyReservedSequence       AnomalyType = "SqlWithReservedSequence"
)

// Verdict is the result of one Analyze call
type Verdict struct {
	WithLineBreaks             bool
	WithComments               bool
	WithSeparators             bool
	WithTabs                   bool
	WithDoubleQuotes           bool
	WithNoSpaces               bool
	WithOddQuotesNumber        bool
	WithNestedComments         bool
	WithForbiddenKeywords      bool
	WithEqualValuesAroundEqual bool
	WithReservedSequence       bool

	AnomalyDetected AnomalyType
	KeywordDetected string
}

// IsAnomaly returns true if any anomaly was found
func (verdict *Verdict) IsAnomaly() bool {
	return verdict.AnomalyDetected != AnomalyNone
}

func (verdict *Verdict) flag(anomaly AnomalyType) {
	switch anomaly {
	case AnomalyNoSpaces:
		verdict.WithNoSpaces = true
	case AnomalyNestedComments:
		verdict.WithNestedComments = true
	case AnomalyLineBreaks:
		verdict.WithLineBreaks = true
	case AnomalyComments:
		verdict.WithComments = true
	case AnomalyOddQuotesNumber:
		verdict.WithOddQuotesNumber = true
	case AnomalyEqualValuesAroundEqual:
		verdict.WithEqualValuesAroundEqual = true
	case AnomalySeparators:
		verdict.WithSeparators = true
	case AnomalyTabs:
		verdict.WithTabs = true
	case AnomalyDoubleQuotes:
		verdict.WithDoubleQuotes = true
	case AnomalyForbiddenKeywords:
		verdict.WithForbiddenKeywords = true
	case AnomalyReservedSequence:
		verdict.WithReservedSequence = true
	}
	if verdict.AnomalyDetected == AnomalyNone {
		verdict.AnomalyDetected = anomaly
	}
}
