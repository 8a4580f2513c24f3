package extract

import (
	"bufio"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hpungsan/lsearch/internal/command"
)

// Format names an upload document format.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
	FormatHTML Format = "html"
)

// ParseFormat maps a user-supplied hint to a Format, defaulting to text.
func ParseFormat(s string) Format {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON
	case FormatHTML:
		return FormatHTML
	default:
		return FormatText
	}
}

// DetectFormat resolves the effective format of an upload.
// File extensions override the hint, and content that looks like a JSON
// array or object is always parsed as JSON.
func DetectFormat(content, filename string, hint Format) Format {
	format := hint
	if format == "" {
		format = FormatText
	}

	name := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(name, ".json"):
		format = FormatJSON
	case strings.HasSuffix(name, ".html"), strings.HasSuffix(name, ".htm"):
		format = FormatHTML
	}

	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		format = FormatJSON
	}
	return format
}

// ParseDocument parses a user-supplied document into command records.
// Malformed JSON fails the whole document. Text lines that do not look
// like "command - description" are skipped.
func ParseDocument(content string, format Format) ([]command.Command, error) {
	switch format {
	case FormatJSON:
		return parseJSONDocument(content)
	case FormatHTML:
		return parseHTMLDocument(content)
	default:
		return parseTextDocument(content), nil
	}
}

// textLine matches "command - description" and "command: description".
var textLine = regexp.MustCompile(`^([a-zA-Z0-9_-]+)\s*[-:]\s*(.+)`)

func parseTextDocument(content string) []command.Command {
	commands := []command.Command{}
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if c, ok := parseTextLine(scanner.Text()); ok {
			commands = append(commands, c)
		}
	}
	return commands
}

func parseTextLine(line string) (command.Command, bool) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return command.Command{}, false
	}
	m := textLine.FindStringSubmatch(line)
	if m == nil {
		return command.Command{}, false
	}
	name := strings.ToLower(strings.TrimSpace(m[1]))
	desc, ok := uploadDescription(m[2])
	if !command.ValidName(name) || !ok {
		return command.Command{}, false
	}
	signal := name + " " + desc
	return command.Command{
		Command:     name,
		Description: desc,
		Category:    Classify(signal),
		Examples:    []command.Example{},
		Tags:        UploadTags.Tags(signal),
	}, true
}

// RepairJSON applies the two tolerated fixes to near-valid JSON: a
// trailing period is dropped and an unterminated array is closed.
func RepairJSON(content string) string {
	s := strings.TrimSpace(content)
	s = strings.TrimSuffix(s, ".")
	if strings.HasPrefix(s, "[") && !strings.HasSuffix(s, "]") {
		s += "]"
	}
	return s
}

// uploadDescription cleans a description and rejects ones too short to keep.
func uploadDescription(raw string) (string, bool) {
	desc := command.CleanDescription(raw)
	if command.CountChars(desc) < command.MinDescriptionChars {
		return "", false
	}
	return command.Truncate(desc), true
}

// jsonItem is one uploaded object. Fields are read leniently: a field of
// an unexpected type is ignored instead of failing the document.
type jsonItem map[string]json.RawMessage

func parseJSONDocument(content string) ([]command.Command, error) {
	repaired := RepairJSON(content)

	var raws []json.RawMessage
	if strings.HasPrefix(repaired, "[") {
		if err := json.Unmarshal([]byte(repaired), &raws); err != nil {
			return nil, fmt.Errorf("parse json document: %w", err)
		}
	} else {
		var one json.RawMessage
		if err := json.Unmarshal([]byte(repaired), &one); err != nil {
			return nil, fmt.Errorf("parse json document: %w", err)
		}
		raws = []json.RawMessage{one}
	}

	commands := []command.Command{}
	for _, raw := range raws {
		var item jsonItem
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		if c, ok := item.toCommand(); ok {
			commands = append(commands, c)
		}
	}
	return commands, nil
}

func (it jsonItem) toCommand() (command.Command, bool) {
	raw := it.str("command", "comando", "herramienta")
	if raw == "" {
		return command.Command{}, false
	}
	name := command.NormalizeName(raw)
	desc, ok := uploadDescription(it.str("description", "descripcion"))
	if !command.ValidName(name) || !ok {
		return command.Command{}, false
	}

	signal := name + " " + desc
	category, ok := command.ParseCategory(it.str("category", "categoria"))
	if !ok {
		category = Classify(signal)
	}

	tags := it.list("tags", "etiquetas")
	if len(tags) == 0 {
		tags = UploadTags.Tags(signal)
	}

	return command.Command{
		Command:     name,
		Description: desc,
		Category:    category,
		Examples:    it.examples("examples", "ejemplos"),
		Tags:        tags,
	}, true
}

// str returns the first non-empty string value among keys.
func (it jsonItem) str(keys ...string) string {
	for _, key := range keys {
		var v string
		if err := json.Unmarshal(it[key], &v); err == nil {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// list returns the first non-empty string list among keys. A bare string
// is split on commas; non-string array entries are skipped.
func (it jsonItem) list(keys ...string) []string {
	for _, key := range keys {
		raw, ok := it[key]
		if !ok {
			continue
		}
		var values []string
		var single string
		var mixed []json.RawMessage
		switch {
		case json.Unmarshal(raw, &single) == nil:
			values = strings.Split(single, ",")
		case json.Unmarshal(raw, &mixed) == nil:
			for _, m := range mixed {
				var v string
				if json.Unmarshal(m, &v) == nil {
					values = append(values, v)
				}
			}
		}
		out := make([]string, 0, len(values))
		for _, v := range values {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// examples accepts an array of {code, description} objects or bare
// strings, or a single object or string, under the first key present.
func (it jsonItem) examples(keys ...string) []command.Example {
	for _, key := range keys {
		raw, ok := it[key]
		if !ok {
			continue
		}
		var entries []json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			entries = []json.RawMessage{raw}
		}
		if examples := decodeExamples(entries); len(examples) > 0 {
			return examples
		}
	}
	return []command.Example{}
}

// decodeExamples accepts both {code, description} objects and bare strings.
func decodeExamples(raw []json.RawMessage) []command.Example {
	examples := make([]command.Example, 0, len(raw))
	for _, r := range raw {
		var code string
		if err := json.Unmarshal(r, &code); err == nil {
			examples = append(examples, command.Example{Code: code})
			continue
		}
		var obj jsonItem
		if err := json.Unmarshal(r, &obj); err == nil {
			examples = append(examples, command.Example{
				Code:        obj.str("code", "codigo"),
				Description: obj.str("description", "descripcion"),
			})
		}
	}
	return command.CapExamples(examples)
}

// parseHTMLDocument reads list items, paragraphs, definition lists and
// table rows, feeding each through the text line parser.
func parseHTMLDocument(content string) ([]command.Command, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html document: %w", err)
	}

	var lines []string
	doc.Find("li, p, dt, tr").Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "dt":
			dd := s.NextFiltered("dd")
			if dd.Length() > 0 {
				lines = append(lines, collapseText(s.Text())+" - "+collapseText(dd.Text()))
			}
		case "tr":
			cells := s.Find("td")
			if cells.Length() >= 2 {
				lines = append(lines, collapseText(cells.Eq(0).Text())+" - "+collapseText(cells.Eq(1).Text()))
			}
		default:
			lines = append(lines, collapseText(s.Text()))
		}
	})

	commands := []command.Command{}
	for _, line := range lines {
		if c, ok := parseTextLine(line); ok {
			commands = append(commands, c)
		}
	}
	return commands, nil
}

func collapseText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
