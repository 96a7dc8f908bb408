package script

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// ErrSuspiciousContent is returned when caller-supplied text contains
// patterns commonly associated with prompt injection.
var ErrSuspiciousContent = errors.New("content contains suspicious patterns")

var (
	multiSpaceRe   = regexp.MustCompile(`[ \t]+`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)

	// suspiciousPatterns are phrases that indicate an attempt to break out of
	// the data section of a prompt. A heuristic layer; false positives are
	// acceptable because the caller controls the objective text.
	suspiciousPatterns = []string{
		"ignore previous instructions",
		"ignore all previous",
		"disregard previous",
		"forget all previous",
		"new instructions:",
		"system:",
		"<objective>",
		"</objective>",
		"<test_plan>",
		"</test_plan>",
		"<requirements>",
		"</requirements>",
	}
)

// SanitizeText prepares caller-supplied free text for embedding in a prompt:
// trims whitespace, strips control characters (keeping newlines and tabs),
// and normalizes runs of whitespace.
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var b strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	text = b.String()

	text = multiNewlineRe.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(multiSpaceRe.ReplaceAllString(line, " "))
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// CheckSuspicious scans a named field for injection patterns and excessive
// control characters.
func CheckSuspicious(value, fieldName string) error {
	valueLower := strings.ToLower(value)
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(valueLower, pattern) {
			return fmt.Errorf("%w: %s contains %q", ErrSuspiciousContent, fieldName, pattern)
		}
	}

	if hasExcessiveControlCharacters(value) {
		return fmt.Errorf("%w: %s contains excessive control characters", ErrSuspiciousContent, fieldName)
	}

	return nil
}

// hasExcessiveControlCharacters flags strings where control characters
// (excluding common formatting) exceed roughly 5% of the content.
func hasExcessiveControlCharacters(s string) bool {
	if len(s) == 0 {
		return false
	}

	controlCount := 0
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			controlCount++
		}
	}

	threshold := len(s) / 20
	if threshold < 5 {
		threshold = 5
	}

	return controlCount > threshold
}
