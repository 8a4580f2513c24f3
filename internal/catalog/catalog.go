// Package catalog holds the static command tables shipped with lsearch:
// the fallback catalog used when a sync yields nothing, the curated seed
// list, and the canonical examples table.
package catalog

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hpungsan/lsearch/internal/command"
	"github.com/hpungsan/lsearch/internal/extract"
)

//go:embed data/*.yaml
var dataFS embed.FS

// fallbackDescription is used for fallback entries without examples.
const fallbackDescription = "Herramienta de sistema"

// Entry is a command name with its canonical examples.
type Entry struct {
	Command  string
	Examples []command.Example
}

// Catalog is an immutable set of static tables. Accessors return copies.
type Catalog struct {
	fallback []Entry
	examples []Entry
	seed     []command.Command
}

// New builds a Catalog from in-memory tables.
func New(fallback, examples []Entry, seed []command.Command) *Catalog {
	return &Catalog{
		fallback: cloneEntries(fallback),
		examples: cloneEntries(examples),
		seed:     cloneCommands(seed),
	}
}

// Load parses the embedded YAML tables.
func Load() (*Catalog, error) {
	fallback, err := loadEntries("data/fallback.yaml")
	if err != nil {
		return nil, err
	}
	examples, err := loadEntries("data/examples.yaml")
	if err != nil {
		return nil, err
	}
	seed, err := loadSeed("data/seed.yaml")
	if err != nil {
		return nil, err
	}
	return &Catalog{fallback: fallback, examples: examples, seed: seed}, nil
}

// Fallback returns the fallback table in file order.
func (c *Catalog) Fallback() []Entry {
	return cloneEntries(c.fallback)
}

// ExampleTable returns the canonical examples table in file order.
func (c *Catalog) ExampleTable() []Entry {
	return cloneEntries(c.examples)
}

// Seed returns the curated seed commands.
func (c *Catalog) Seed() []command.Command {
	return cloneCommands(c.seed)
}

// FallbackCommands converts the fallback table into records.
// The first example's description doubles as the command description, and
// category and tags are inferred from the name plus every example description.
func (c *Catalog) FallbackCommands() []command.Command {
	out := make([]command.Command, 0, len(c.fallback))
	for _, e := range c.fallback {
		desc := fallbackDescription
		if len(e.Examples) > 0 && e.Examples[0].Description != "" {
			desc = e.Examples[0].Description
		}

		parts := []string{e.Command, desc}
		for _, ex := range e.Examples {
			parts = append(parts, ex.Description)
		}
		signal := strings.Join(parts, " ")

		out = append(out, command.Command{
			Command:     e.Command,
			Description: command.Truncate(desc),
			Category:    extract.Classify(signal),
			Examples:    command.CapExamples(e.Examples),
			Tags:        extract.ParsedTags.Tags(signal),
		})
	}
	return out
}

// loadEntries reads a mapping of command name to example list, keeping
// the order the entries appear in the file.
func loadEntries(name string) ([]Entry, error) {
	data, err := dataFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse %s: expected a mapping at the top level", name)
	}

	entries := make([]Entry, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		var examples []command.Example
		if err := root.Content[i+1].Decode(&examples); err != nil {
			return nil, fmt.Errorf("parse %s: entry %q: %w", name, key, err)
		}
		if !command.ValidName(key) {
			return nil, fmt.Errorf("parse %s: invalid command name %q", name, key)
		}
		entries = append(entries, Entry{Command: key, Examples: examples})
	}
	return entries, nil
}

// seedRecord is the on-disk shape of a seed entry.
type seedRecord struct {
	Command     string            `yaml:"command"`
	Description string            `yaml:"description"`
	Category    string            `yaml:"category"`
	Subcategory string            `yaml:"subcategory"`
	Examples    []command.Example `yaml:"examples"`
	Tags        []string          `yaml:"tags"`
}

func loadSeed(name string) ([]command.Command, error) {
	data, err := dataFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	var records []seedRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	out := make([]command.Command, 0, len(records))
	for _, r := range records {
		if !command.ValidName(r.Command) {
			return nil, fmt.Errorf("parse %s: invalid command name %q", name, r.Command)
		}
		category, ok := command.ParseCategory(r.Category)
		if !ok {
			return nil, fmt.Errorf("parse %s: %s: unknown category %q", name, r.Command, r.Category)
		}
		c := command.Command{
			Command:     r.Command,
			Description: command.Truncate(r.Description),
			Category:    category,
			Examples:    command.CapExamples(r.Examples),
			Tags:        r.Tags,
		}
		if r.Subcategory != "" {
			sub := r.Subcategory
			c.Subcategory = &sub
		}
		if c.Tags == nil {
			c.Tags = []string{}
		}
		out = append(out, c)
	}
	return out, nil
}

func cloneEntries(in []Entry) []Entry {
	out := make([]Entry, len(in))
	for i, e := range in {
		out[i] = Entry{Command: e.Command, Examples: append([]command.Example(nil), e.Examples...)}
	}
	return out
}

func cloneCommands(in []command.Command) []command.Command {
	out := make([]command.Command, len(in))
	for i, c := range in {
		c.Examples = append([]command.Example(nil), c.Examples...)
		c.Tags = append([]string(nil), c.Tags...)
		out[i] = c
	}
	return out
}
