// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command orchestrator runs the debate orchestrator.
//
// # Usage
//
//	# Serve with defaults (dummy provider, in-memory store, port 12210)
//	orchestrator serve
//
//	# Serve from a config file, environment overrides on top
//	DEBATE_PROVIDERS_OPENAI_API_KEY=sk-... orchestrator serve --config debate.yaml
//
//	# Apply SQLite migrations without serving
//	orchestrator migrate --config debate.yaml
//
//	# Print the effective configuration with secrets masked
//	orchestrator config
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
