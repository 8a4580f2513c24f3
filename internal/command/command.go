package command

// Category is the fixed set of catalog categories.
type Category string

const (
	Networking  Category = "networking"
	Security    Category = "security"
	Files       Category = "files"
	System      Category = "system"
	Process     Category = "process"
	Text        Category = "text"
	Permissions Category = "permissions"
	Packages    Category = "packages"
	Monitoring  Category = "monitoring"
	Disk        Category = "disk"
	Users       Category = "users"
	Scripting   Category = "scripting"
)

// DefaultCategory is used whenever text cannot be classified.
const DefaultCategory = System

// Categories lists every valid category in display order.
var Categories = []Category{
	Networking, Security, Files, System, Process, Text,
	Permissions, Packages, Monitoring, Disk, Users, Scripting,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory returns the category named by s, or DefaultCategory and false.
func ParseCategory(s string) (Category, bool) {
	c := Category(Normalize(s))
	if c.Valid() {
		return c, true
	}
	return DefaultCategory, false
}

// Example is a literal shell invocation with a short explanation.
type Example struct {
	Code        string `json:"code" yaml:"code"`
	Description string `json:"description" yaml:"description"`
}

// Command is a single catalog entry. Command is the natural key.
type Command struct {
	// ID is a ULID assigned on first insert
	ID string `json:"id"`

	// Command is the normalized command name: [a-z0-9_-], 2-25 chars
	Command string `json:"command"`

	Description string   `json:"description"`
	Category    Category `json:"category"`

	// Subcategory is optional; only the seed list sets it
	Subcategory *string `json:"subcategory,omitempty"`

	// Examples holds at most MaxExamples entries (stored as JSON)
	Examples []Example `json:"examples"`

	// Tags are drawn from a fixed vocabulary (stored as JSON)
	Tags []string `json:"tags"`

	// SourceNotebookID records which notebook a synced entry came from
	SourceNotebookID *string `json:"source_notebook_id,omitempty"`

	// CreatedAt and UpdatedAt are Unix timestamps
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// Patch is an update payload. Nil fields are left unchanged.
type Patch struct {
	Description      *string
	Category         *Category
	Subcategory      *string
	Tags             *[]string
	Examples         *[]Example
	SourceNotebookID *string
	UpdatedAt        int64
}

// PatchFrom builds the write payload for c.
// Examples are only included when c has at least one, so that a partial
// record never wipes examples already stored for the same command.
func PatchFrom(c Command, updatedAt int64) Patch {
	desc := c.Description
	cat := c.Category
	if !cat.Valid() {
		cat = DefaultCategory
	}
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}

	p := Patch{
		Description:      &desc,
		Category:         &cat,
		Subcategory:      c.Subcategory,
		Tags:             &tags,
		SourceNotebookID: c.SourceNotebookID,
		UpdatedAt:        updatedAt,
	}
	if len(c.Examples) > 0 {
		examples := c.Examples
		p.Examples = &examples
	}
	return p
}

// Filter selects commands from a store. Zero fields match everything.
type Filter struct {
	// Query is a case-insensitive substring of command or description
	Query    string
	Category Category
	Tag      string

	// Limit caps results; 0 means no limit
	Limit int
}
