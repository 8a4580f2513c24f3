package extract

import (
	"regexp"
	"strings"

	"github.com/hpungsan/lsearch/internal/command"
)

// candidate is one raw match before normalization.
type candidate struct {
	name        string
	description string
	examples    []command.Example
}

// strategy extracts candidates from a whole document.
type strategy func(text string) []candidate

var (
	// "* **cmd** (alias): description" optionally followed by Ejemplo bullets
	boldBulletBlock = regexp.MustCompile(
		"\\*\\s*\\*\\*([a-zA-Z0-9_/-]+)(?:\\s*\\([^)]*\\))?\\*\\*[:\\s]*([^\\n*]+)" +
			"(?:\\n(?:[ \\t]*[-•]\\s*[Ee]jemplos?:\\s*`([^`]+)`\\s*[-–:]?\\s*([^\\n]*)\\n?)*)?")

	boldColon      = regexp.MustCompile(`\*\*([a-zA-Z0-9_-]+)\*\*:\s*([^*\n\[]+)`)
	numberedBold   = regexp.MustCompile(`(?m)^\d+\.\s*\*\*([a-zA-Z0-9_-]+)\*\*[:\s]*([^*\n\[]+)`)
	plainBullet    = regexp.MustCompile(`(?m)^[\*\-]\s+([a-zA-Z0-9_-]+):[:\s]*([^*\n\[]+)`)
	backtickInline = regexp.MustCompile("`([a-zA-Z0-9_-]+)`\\s*[-–:]\\s*([^`\\n\\[]+)")
)

// blockSeparator starts the next bold bullet in a notebook answer.
const blockSeparator = "\n* **"

// strategies run from most to least structured. Earlier strategies win.
var strategies = []strategy{
	boldBulletBlocks,
	pairsFrom(boldColon),
	pairsFrom(numberedBold),
	plainBullets,
	pairsFrom(backtickInline),
}

// boldBulletBlocks captures commands together with the examples listed
// beneath them, up to the next bold bullet.
func boldBulletBlocks(text string) []candidate {
	var out []candidate
	for _, loc := range boldBulletBlock.FindAllStringSubmatchIndex(text, -1) {
		start := loc[0]
		end := len(text)
		if next := strings.Index(text[start+1:], blockSeparator); next >= 0 {
			end = start + 1 + next
		}
		out = append(out, candidate{
			name:        text[loc[2]:loc[3]],
			description: text[loc[4]:loc[5]],
			examples:    Examples(text[start:end]),
		})
	}
	return out
}

func pairsFrom(re *regexp.Regexp) strategy {
	return func(text string) []candidate {
		var out []candidate
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			out = append(out, candidate{name: m[1], description: m[2]})
		}
		return out
	}
}

func plainBullets(text string) []candidate {
	var out []candidate
	for _, c := range pairsFrom(plainBullet)(text) {
		if strings.ContainsAny(c.name, " \t") {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ParseCommands converts a loosely structured answer into command records.
// Each command appears once, carrying the data of the first strategy that
// matched it. Output follows strategy order, then match order.
func ParseCommands(text string) []command.Command {
	acc := newAccumulator()
	for _, s := range strategies {
		for _, c := range s(text) {
			acc.add(c)
		}
	}
	return acc.commands
}

// accumulator deduplicates candidates by normalized name, first writer wins.
type accumulator struct {
	seen     map[string]bool
	commands []command.Command
}

func newAccumulator() *accumulator {
	return &accumulator{seen: make(map[string]bool), commands: []command.Command{}}
}

func (a *accumulator) add(c candidate) bool {
	name := command.NormalizeName(c.name)
	desc := command.CleanDescription(c.description)

	if !command.ValidName(name) || command.CountChars(desc) < command.MinDescriptionChars || a.seen[name] {
		return false
	}
	a.seen[name] = true

	examples := c.examples
	if examples == nil {
		examples = []command.Example{}
	}
	signal := name + " " + desc
	a.commands = append(a.commands, command.Command{
		Command:     name,
		Description: command.Truncate(desc),
		Category:    Classify(signal),
		Examples:    examples,
		Tags:        ParsedTags.Tags(signal),
	})
	return true
}
