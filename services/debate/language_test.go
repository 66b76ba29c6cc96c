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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeuristicEnglishClassifier(t *testing.T) {
	c := HeuristicEnglishClassifier{}
	tests := []struct {
		text string
		want bool
	}{
		{"The evidence for the claim is strong and consistent.", true},
		{"La Tierra es plana y eso es todo.", false},
		{"¿Por qué no?", false},
		{"Estoy de acuerdo contigo, señor.", false},
		{"los datos de la NASA que", false},
		{"Tesla rocks", true},
		{"", true},
		// Tie goes to English.
		{"the de", true},
		// Substrings do not count: "there" is not "the", "lado" is not "la".
		{"there lado", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.IsTargetLanguage(tt.text), "%q", tt.text)
	}
}
