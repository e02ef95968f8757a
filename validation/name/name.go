// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package name

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxLength is the longest identifier accepted.
const MaxLength = 64

var (
	identifierRegex = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)
	separatorRegex  = regexp.MustCompile(`[^a-z0-9]+`)
)

// Validate checks that s is a kebab-case identifier. kind names the thing
// being validated ("plugin", "skill") and is used in error messages.
func Validate(kind, s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s name cannot be empty", kind)
	}
	if strings.Contains(s, "\x00") {
		return fmt.Errorf("%s name cannot contain null bytes", kind)
	}
	if len(s) > MaxLength {
		return fmt.Errorf("%s name exceeds maximum length of %d characters: %q", kind, MaxLength, s)
	}
	if s != strings.ToLower(s) {
		return fmt.Errorf("%s name must be lowercase: %q", kind, s)
	}
	if !identifierRegex.MatchString(s) {
		return fmt.Errorf("%s name must be kebab-case (lowercase letters, digits and single dashes, starting with a letter): %q", kind, s)
	}
	return nil
}

// ValidatePlugin validates a plugin name.
func ValidatePlugin(s string) error {
	return Validate("plugin", s)
}

// ValidateSkill validates a skill name.
func ValidateSkill(s string) error {
	return Validate("skill", s)
}

// Normalize converts s into a kebab-case identifier, or returns "" when
// nothing usable remains.
func Normalize(s string) string {
	out := separatorRegex.ReplaceAllString(strings.ToLower(s), "-")
	out = strings.Trim(out, "-")
	out = strings.TrimLeft(out, "0123456789-")
	if len(out) > MaxLength {
		out = strings.TrimRight(out[:MaxLength], "-")
	}
	return out
}
