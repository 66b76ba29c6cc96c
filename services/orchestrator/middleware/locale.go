// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// localeKey is the Gin context key for the request locale.
const localeKey = "debate_error_locale"

var supportedLocales = map[string]struct{}{"es": {}, "en": {}}

// Locale selects the language of error details for each request.
//
// # Description
//
// The "lang" query parameter wins, then the first supported language in
// Accept-Language, then defaultLocale. Only "es" and "en" are recognized;
// region suffixes are ignored ("en-GB" is "en").
//
// # Inputs
//
//   - defaultLocale: The process-wide setting, used when the request names
//     no supported language.
func Locale(defaultLocale string) gin.HandlerFunc {
	def := baseLanguage(defaultLocale)
	if _, ok := supportedLocales[def]; !ok {
		def = "es"
	}
	return func(c *gin.Context) {
		c.Set(localeKey, resolveLocale(c.Query("lang"), c.GetHeader("Accept-Language"), def))
		c.Next()
	}
}

// GetLocale returns the request locale, or "es" outside the middleware.
func GetLocale(c *gin.Context) string {
	if v, ok := c.Get(localeKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return "es"
}

func resolveLocale(query, acceptLanguage, def string) string {
	if lang := baseLanguage(query); lang != "" {
		if _, ok := supportedLocales[lang]; ok {
			return lang
		}
	}
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag, _, _ := strings.Cut(part, ";")
		if lang := baseLanguage(tag); lang != "" {
			if _, ok := supportedLocales[lang]; ok {
				return lang
			}
		}
	}
	return def
}

func baseLanguage(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	base, _, _ := strings.Cut(tag, "-")
	base, _, _ = strings.Cut(base, "_")
	return base
}
