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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = "word"
	}
	return strings.Join(w, " ")
}

func TestNormalize_RewritesOppositeMarker(t *testing.T) {
	for _, s := range []Stance{StancePro, StanceContra} {
		body := "Renewables are cheaper than coal in most markets."
		raw := MarkerTag(s.Opposite()) + " " + body

		got := Normalizer{}.Normalize(raw, "energy", s, false)

		m, rest := ParseMarker(got.Text)
		assert.Equal(t, MarkerValid, m.State)
		assert.Equal(t, string(s), m.Value)
		assert.Equal(t, body, rest)
		assert.Equal(t, []Correction{CorrectionMarkerRewritten}, got.Corrections)
	}
}

func TestNormalize_KeepsMatchingMarker(t *testing.T) {
	got := Normalizer{}.Normalize("[[STANCE:pro]]   Solid point.", "t", StancePro, false)
	assert.Equal(t, "[[STANCE:pro]] Solid point.", got.Text)
	assert.Equal(t, "Solid point.", got.Content)
	assert.Empty(t, got.Corrections)
}

func TestNormalize_InvalidMarkerKeepsOriginalText(t *testing.T) {
	got := Normalizer{}.Normalize("[[STANCE:st]] hello there", "t", StanceContra, false)
	assert.Equal(t, "[[STANCE:contra]] [[STANCE:st]] hello there", got.Text)
	assert.Equal(t, []Correction{CorrectionMarkerAdded}, got.Corrections)
}

func TestNormalize_AbsentMarker(t *testing.T) {
	got := Normalizer{}.Normalize("  plain reply ", "t", StancePro, false)
	assert.Equal(t, "[[STANCE:pro]] plain reply", got.Text)
	assert.Equal(t, "plain reply", got.Content)
}

func TestNormalize_LengthCap(t *testing.T) {
	raw := "[[STANCE:pro]] " + words(400)
	got := Normalizer{}.Normalize(raw, "t", StancePro, false)
	assert.Equal(t, MaxReplyWords, WordCount(got.Text))
	assert.Contains(t, got.Corrections, CorrectionTruncated)
	assert.True(t, strings.HasPrefix(got.Text, "[[STANCE:pro]] word"))

	short := Normalizer{}.Normalize("[[STANCE:pro]] "+words(MaxReplyWords-1), "t", StancePro, false)
	assert.Equal(t, MaxReplyWords, WordCount(short.Text))
	assert.NotContains(t, short.Corrections, CorrectionTruncated)
}

func TestNormalize_LengthCapPreservesSpacing(t *testing.T) {
	got := Normalizer{MaxWords: 4}.Normalize("[[STANCE:pro]] one\ntwo  three four five", "t", StancePro, false)
	assert.Equal(t, "[[STANCE:pro]] one\ntwo  three", got.Text)
}

func TestNormalize_FirstTurnBanner(t *testing.T) {
	got := Normalizer{}.Normalize("Counterpoint follows.", "The Earth is flat", StancePro, true)

	lines := strings.SplitN(got.Text, "\n", 2)
	require.Len(t, lines, 2)
	assert.Equal(t, "[[STANCE:pro]] Fixed stance: pro | Fixed topic: The Earth is flat", lines[0])
	assert.Equal(t, "Counterpoint follows.", lines[1])
	assert.Equal(t, "Counterpoint follows.", got.Content)
	assert.Contains(t, got.Corrections, CorrectionBannerInserted)

	again := Normalizer{}.Normalize(got.Text, "The Earth is flat", StancePro, true)
	assert.Equal(t, got.Text, again.Text, "normalizing twice must not add a second banner")
	assert.NotContains(t, again.Corrections, CorrectionBannerInserted)
}

func TestNormalize_BannerCountsTowardsCap(t *testing.T) {
	got := Normalizer{}.Normalize(words(MaxReplyWords), "t", StanceContra, true)
	assert.LessOrEqual(t, WordCount(got.Text), MaxReplyWords)
	assert.Contains(t, strings.ToLower(got.Text), "fixed stance: contra | fixed topic: t")
	assert.Contains(t, got.Corrections, CorrectionTruncated)
}

func TestNormalize_LongTopicKeepsStance(t *testing.T) {
	topic := words(MaxReplyWords)
	got := Normalizer{}.Normalize("Counterpoint follows.", topic, StanceContra, true)

	assert.Equal(t, MaxReplyWords, WordCount(got.Text))
	assert.True(t, strings.HasPrefix(got.Text, "[[STANCE:contra]] Fixed stance: contra | Fixed topic: "))
	assert.Contains(t, got.Corrections, CorrectionTruncated)
}

func TestNormalize_NoBannerAfterFirstTurn(t *testing.T) {
	got := Normalizer{}.Normalize("reply", "topic", StancePro, false)
	assert.NotContains(t, got.Text, "Fixed topic")
}

func TestTruncateWords(t *testing.T) {
	out, ok := truncateWords("a b c   ", 3)
	assert.False(t, ok)
	assert.Equal(t, "a b c   ", out)

	out, ok = truncateWords("a b c d", 3)
	assert.True(t, ok)
	assert.Equal(t, "a b c", out)
}
