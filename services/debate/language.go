// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package debate

import (
	"regexp"
	"strings"
)

// LanguageClassifier decides whether a reply is in the conversation's
// target language. Implementations must be deterministic and safe for
// concurrent use.
type LanguageClassifier interface {
	IsTargetLanguage(text string) bool
}

var (
	spanishMarks = regexp.MustCompile(`[áéíóúñ¡¿]`)
	wordPattern  = regexp.MustCompile(`[\p{L}']+`)

	spanishStopWords = map[string]struct{}{
		"el": {}, "la": {}, "los": {}, "las": {}, "que": {}, "de": {},
		"y": {}, "en": {}, "por": {}, "para": {}, "con": {},
	}
	englishStopWords = map[string]struct{}{
		"the": {}, "and": {}, "of": {}, "to": {}, "in": {}, "for": {},
		"with": {}, "on": {},
	}
)

// HeuristicEnglishClassifier is the default English detector.
//
// # Description
//
// Text containing any accented Spanish vowel, ñ, or inverted punctuation is
// rejected outright. Otherwise whole-word occurrences of a small Spanish
// stop-word list and a small English stop-word list are counted, and the
// text is accepted when the English count is not lower.
//
// # Limitations
//
// Text with no stop-words from either list is accepted. Short unaccented
// Spanish can therefore pass.
//
// # Thread Safety
//
// Stateless; safe for concurrent use.
type HeuristicEnglishClassifier struct{}

// IsTargetLanguage implements LanguageClassifier.
func (HeuristicEnglishClassifier) IsTargetLanguage(text string) bool {
	lower := strings.ToLower(text)
	if spanishMarks.MatchString(lower) {
		return false
	}
	es, en := stopWordCounts(lower)
	return en >= es
}

func stopWordCounts(lower string) (es, en int) {
	for _, w := range wordPattern.FindAllString(lower, -1) {
		if _, ok := spanishStopWords[w]; ok {
			es++
		}
		if _, ok := englishStopWords[w]; ok {
			en++
		}
	}
	return es, en
}

var _ LanguageClassifier = HeuristicEnglishClassifier{}
