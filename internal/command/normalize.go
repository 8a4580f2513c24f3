package command

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Limits shared by every entry point.
const (
	MinNameLen            = 2
	MaxNameLen            = 25
	MinDescriptionChars   = 5
	MaxDescriptionChars   = 400
	MaxExamples           = 5
	DefaultExampleSummary = "Ejemplo de uso"
)

var (
	// whitespaceRegex matches one or more whitespace characters
	whitespaceRegex = regexp.MustCompile(`\s+`)

	// invalidNameChars matches anything that cannot appear in a command name
	invalidNameChars = regexp.MustCompile(`[^a-z0-9_-]`)

	numericName = regexp.MustCompile(`^\d+$`)

	// trailingCitation matches citation markers like " [12, 34]" at the end
	trailingCitation = regexp.MustCompile(`\s*\[[\d,\s-]+\]\s*$`)

	// semicolonTail matches everything from the first semicolon
	semicolonTail = regexp.MustCompile(`;.*$`)
)

// Normalize trims, lowercases and collapses internal whitespace.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// NormalizeName lowercases a raw command token and drops invalid characters.
func NormalizeName(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	return invalidNameChars.ReplaceAllString(name, "")
}

// ValidName reports whether a normalized name can be stored.
func ValidName(name string) bool {
	if len(name) < MinNameLen || len(name) > MaxNameLen {
		return false
	}
	if numericName.MatchString(name) {
		return false
	}
	return !invalidNameChars.MatchString(name)
}

// CleanDescription strips a trailing citation marker and any
// semicolon-delimited tail from parsed description text.
func CleanDescription(raw string) string {
	d := strings.TrimSpace(raw)
	d = trailingCitation.ReplaceAllString(d, "")
	d = semicolonTail.ReplaceAllString(d, "")
	return strings.TrimSpace(d)
}

// Truncate cuts s to at most MaxDescriptionChars runes.
func Truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxDescriptionChars {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxDescriptionChars])
}

// CountChars returns the character count as runes (not bytes).
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}

// CapExamples returns at most MaxExamples examples, filling empty
// descriptions with the default summary and dropping empty code.
func CapExamples(examples []Example) []Example {
	out := make([]Example, 0, min(len(examples), MaxExamples))
	for _, ex := range examples {
		code := strings.TrimSpace(ex.Code)
		if code == "" {
			continue
		}
		desc := strings.TrimSpace(ex.Description)
		if desc == "" {
			desc = DefaultExampleSummary
		}
		out = append(out, Example{Code: code, Description: desc})
		if len(out) == MaxExamples {
			break
		}
	}
	return out
}
