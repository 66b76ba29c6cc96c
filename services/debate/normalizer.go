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
	"unicode"
)

// MaxReplyWords caps every stored bot turn, tag and banner included.
const MaxReplyWords = 180

// Correction names one repair the Normalizer applied.
type Correction string

const (
	CorrectionMarkerAdded     Correction = "marker_added"
	CorrectionMarkerRewritten Correction = "marker_rewritten"
	CorrectionTruncated       Correction = "truncated"
	CorrectionBannerInserted  Correction = "banner_inserted"
)

// Normalized is a marker-compliant, length-capped reply.
type Normalized struct {
	// Text is what gets stored as the bot turn.
	Text string
	// Content is the model-authored part of Text: no tag and no banner.
	// Language classification runs on this.
	Content string
	// Corrections lists the repairs applied, in order.
	Corrections []Correction
}

// Normalizer repairs raw model replies.
//
// # Description
//
// Normalize runs three steps: marker correction, length capping and, on the
// first bot turn, banner insertion. It never changes wording beyond
// truncation and never performs language checks.
//
// # Thread Safety
//
// A Normalizer has no mutable state and is safe for concurrent use.
type Normalizer struct {
	// MaxWords overrides MaxReplyWords when positive.
	MaxWords int
}

func (n Normalizer) maxWords() int {
	if n.MaxWords > 0 {
		return n.MaxWords
	}
	return MaxReplyWords
}

// Normalize applies the compliance steps for one reply.
//
// # Inputs
//
//   - raw: Model output, possibly empty, possibly mis-tagged.
//   - topic, stance: The conversation's fixed parameters.
//   - firstTurn: True when the conversation has no history yet.
//
// # Outputs
//
//   - Normalized: Text starts with the tag for stance, is at most the word
//     cap, and contains Banner(topic, stance) on the first turn unless the
//     cap cut it.
func (n Normalizer) Normalize(raw string, topic string, stance Stance, firstTurn bool) Normalized {
	var out Normalized

	marker, body := ParseMarker(raw)
	switch {
	case marker.State == MarkerValid && Stance(marker.Value) == stance:
		body = strings.TrimSpace(body)
	case marker.State == MarkerValid:
		out.Corrections = append(out.Corrections, CorrectionMarkerRewritten)
		body = strings.TrimSpace(body)
	default:
		// Absent or malformed tags keep the whole original text as body.
		out.Corrections = append(out.Corrections, CorrectionMarkerAdded)
		body = strings.TrimSpace(raw)
	}
	out.Content = body

	text := Stamp(body, stance)
	if cut, ok := truncateWords(text, n.maxWords()); ok {
		text = cut
		out.Corrections = append(out.Corrections, CorrectionTruncated)
		_, out.Content = ParseMarker(text)
	}

	if firstTurn {
		banner := Banner(topic, stance)
		if !strings.Contains(strings.ToLower(text), strings.ToLower(banner)) {
			_, rest := ParseMarker(text)
			text = MarkerTag(stance) + " " + banner
			if rest != "" {
				text += "\n" + rest
			}
			out.Corrections = append(out.Corrections, CorrectionBannerInserted)
			if cut, ok := truncateWords(text, n.maxWords()); ok {
				text = cut
				if !hasCorrection(out.Corrections, CorrectionTruncated) {
					out.Corrections = append(out.Corrections, CorrectionTruncated)
				}
				out.Content = contentAfterBanner(text, banner)
			}
		}
	}

	out.Text = text
	return out
}

// contentAfterBanner returns what follows the banner line in a stamped text.
func contentAfterBanner(text, banner string) string {
	_, rest := ParseMarker(text)
	if strings.HasPrefix(rest, banner) {
		return strings.TrimSpace(strings.TrimPrefix(rest, banner))
	}
	// The cap cut into the banner itself.
	return ""
}

func hasCorrection(cs []Correction, c Correction) bool {
	for _, have := range cs {
		if have == c {
			return true
		}
	}
	return false
}

// truncateWords keeps the first max whitespace-delimited tokens of s,
// preserving the original spacing between them. ok is false when s is
// already within the cap, in which case s is not touched.
func truncateWords(s string, max int) (string, bool) {
	if WordCount(s) <= max {
		return s, false
	}
	count := 0
	inWord := false
	for i, r := range s {
		if unicode.IsSpace(r) {
			if inWord && count == max {
				return s[:i], true
			}
			inWord = false
			continue
		}
		if !inWord {
			inWord = true
			count++
		}
	}
	return s, false
}

// WordCount counts whitespace-delimited tokens.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
