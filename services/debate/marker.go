// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package debate implements the debate opponent core: the stance marker
// protocol, reply normalization, the bounded retry protocol against a model
// provider, and the per-conversation session lifecycle.
//
// # Invariants
//
// Every bot turn that reaches a Store is marker-compliant, classified as
// English, and at most MaxReplyWords whitespace-delimited tokens long. The
// first bot turn of a conversation also carries the topic/stance banner.
// These are enforced before persistence, never on read.
package debate

import (
	"fmt"
	"regexp"
	"strings"
)

// Stance is the fixed debate side a conversation's bot argues.
type Stance string

const (
	StancePro    Stance = "pro"
	StanceContra Stance = "contra"
)

// DefaultStance is used when a new conversation does not request one.
const DefaultStance = StancePro

// ParseStance accepts "pro" or "contra" in any case, with surrounding
// whitespace. Anything else wraps ErrInvalidStance.
func ParseStance(s string) (Stance, error) {
	switch Stance(strings.ToLower(strings.TrimSpace(s))) {
	case StancePro:
		return StancePro, nil
	case StanceContra:
		return StanceContra, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStance, s)
	}
}

// Valid reports whether s is one of the two known stances.
func (s Stance) Valid() bool {
	return s == StancePro || s == StanceContra
}

// Opposite returns the other stance.
func (s Stance) Opposite() Stance {
	if s == StancePro {
		return StanceContra
	}
	return StancePro
}

// MarkerState describes what ParseMarker found at the start of a reply.
type MarkerState int

const (
	// MarkerAbsent means no well-formed tag starts the text.
	MarkerAbsent MarkerState = iota
	// MarkerValid means a tag declaring pro or contra was found.
	MarkerValid
	// MarkerInvalid means a tag was found but its value is not a stance,
	// e.g. [[STANCE:st]].
	MarkerInvalid
)

// Marker is the result of parsing a leading stance tag.
type Marker struct {
	State MarkerState
	// Value is the declared value, lower-cased. Empty when absent.
	Value string
}

// Stance returns the declared stance when the marker is valid.
func (m Marker) Stance() (Stance, bool) {
	if m.State != MarkerValid {
		return "", false
	}
	return Stance(m.Value), true
}

var markerPattern = regexp.MustCompile(`(?i)^\s*\[\[\s*STANCE\s*:\s*([^\]]*?)\s*\]\]\s*`)

// ParseMarker locates a leading [[STANCE:<value>]] tag.
//
// # Description
//
// The tag name and value are matched case-insensitively and whitespace is
// allowed around the colon and the value. When a tag is found, body is the
// text after the tag and any whitespace following it. When no tag is found,
// body is text unchanged.
//
// # Examples
//
//	ParseMarker("[[STANCE:Pro]]  hello") // {MarkerValid, "pro"}, "hello"
//	ParseMarker("[[STANCE:st]] hello")   // {MarkerInvalid, "st"}, "hello"
//	ParseMarker("hello")                 // {MarkerAbsent, ""}, "hello"
func ParseMarker(text string) (Marker, string) {
	loc := markerPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return Marker{State: MarkerAbsent}, text
	}
	value := strings.ToLower(text[loc[2]:loc[3]])
	body := text[loc[1]:]
	if Stance(value).Valid() {
		return Marker{State: MarkerValid, Value: value}, body
	}
	return Marker{State: MarkerInvalid, Value: value}, body
}

// MarkerTag renders the tag for s.
func MarkerTag(s Stance) string {
	return "[[STANCE:" + string(s) + "]]"
}

// Stamp prepends the tag for s to body.
//
// Stamping text that already starts with the tag for s returns it unchanged,
// so the tag never appears twice.
func Stamp(body string, s Stance) string {
	if m, _ := ParseMarker(body); m.State == MarkerValid && Stance(m.Value) == s {
		return body
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return MarkerTag(s)
	}
	return MarkerTag(s) + " " + body
}
