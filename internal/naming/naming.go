// Package naming provides the on-disk naming conventions for virtual disk
// images inside a repository directory.
//
// Filenames are derived from the user-supplied label. The rules are
// deterministic so that the same label in the same directory always
// allocates the same next name.
package naming

import (
	"fmt"
	"strconv"
	"strings"
)

// UnknownLabel is used when a disk is created without a label.
const UnknownLabel = "unknown"

// Sanitize maps a label onto the filename alphabet [A-Za-z0-9-_+].
// Any other character becomes "_". An empty label becomes UnknownLabel.
//
// Example: "a/b c" → "a_b_c"
func Sanitize(label string) string {
	if label == "" {
		return UnknownLabel
	}

	var b strings.Builder
	b.Grow(len(label))
	for _, r := range label {
		if isAllowed(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func isAllowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_' || r == '+':
		return true
	}
	return false
}

// Allocate returns a filename for label that does not collide with any
// name in existing.
//
// If the sanitized label is unused it is returned as-is. Otherwise the
// sanitized label is treated as a stem and the result is
// {stem}.{n}, where n is one greater than the largest numeric suffix
// among existing names of the form {stem}.{suffix}. Non-numeric suffixes
// count as 0.
//
// Example: label "report" with existing ["report", "report.3"] → "report.4"
//
// Uniqueness only holds when calls for the same directory are serialized.
func Allocate(label string, existing []string) string {
	stem := Sanitize(label)

	taken := false
	for _, name := range existing {
		if name == stem {
			taken = true
			break
		}
	}
	if !taken {
		return stem
	}

	prefix := stem + "."
	highest := 0
	for _, name := range existing {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(name, prefix))
		if err != nil {
			n = 0
		}
		if n > highest {
			highest = n
		}
	}

	return fmt.Sprintf("%s%d", prefix, highest+1)
}
