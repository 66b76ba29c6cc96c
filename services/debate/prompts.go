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

import "fmt"

// StandingInstructions is the system prompt sent with every model call of a
// conversation.
func StandingInstructions(topic string, stance Stance) string {
	return fmt.Sprintf(
		"You are a debate bot. The topic is: '%s'. You MUST argue the '%s' side consistently and persuasively. "+
			"Always answer in English, whatever language the user writes in. "+
			"Begin every reply with the exact tag %s followed by a space. "+
			"Be civil, avoid insults, use evidence, analogies and questions. "+
			"Keep each reply under %d words. Stay strictly on topic.",
		topic, stance, MarkerTag(stance), MaxReplyWords)
}

// RetryMessage is the user message of the single corrective attempt: the
// original message followed by an explicit English-only instruction.
func RetryMessage(message string, stance Stance) string {
	return fmt.Sprintf(
		"%s\n\nIMPORTANT: Answer only in English. Begin your reply with %s and keep it under %d words.",
		message, MarkerTag(stance), MaxReplyWords)
}

// FallbackReply is the fixed English reply used when both attempts fail the
// language check.
func FallbackReply(stance Stance) string {
	return fmt.Sprintf(
		"%s I maintain my %s position on this topic. What is your strongest objection to it?",
		MarkerTag(stance), stance)
}

// Banner is the informational line shown on the first bot turn. The stance
// comes first so a long topic cannot push it past the word cap.
func Banner(topic string, stance Stance) string {
	return fmt.Sprintf("Fixed stance: %s | Fixed topic: %s", stance, topic)
}
