package extract

import (
	"regexp"
	"strings"

	"github.com/hpungsan/lsearch/internal/command"
)

var (
	// markedExample matches "- Ejemplo: `code` - description" bullets
	markedExample = regexp.MustCompile("[-•]\\s*[Ee]jemplos?:\\s*`([^`]+)`\\s*[-–:]?\\s*([^\\n]*)")

	// indentedExample matches indented lines that start with backticked code
	indentedExample = regexp.MustCompile("(?m)^\\s+`([^`]+)`\\s*[-–]?\\s*([^\\n]+)")

	leadingSeparators = regexp.MustCompile(`^[-–:\s]+`)
)

// Examples extracts code examples from one command's block of text.
// Marked "Ejemplo:" bullets come first, then indented backtick lines whose
// code was not already seen.
func Examples(block string) []command.Example {
	var examples []command.Example
	seen := make(map[string]bool)

	for _, m := range markedExample.FindAllStringSubmatch(block, -1) {
		code := strings.TrimSpace(m[1])
		desc := leadingSeparators.ReplaceAllString(strings.TrimSpace(m[2]), "")
		if code == "" {
			continue
		}
		seen[code] = true
		examples = append(examples, command.Example{Code: code, Description: desc})
	}

	for _, m := range indentedExample.FindAllStringSubmatch(block, -1) {
		code := strings.TrimSpace(m[1])
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		examples = append(examples, command.Example{Code: code, Description: strings.TrimSpace(m[2])})
	}

	return command.CapExamples(examples)
}
