package ops

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpungsan/lsearch/internal/command"
	"github.com/hpungsan/lsearch/internal/errors"
)

// PutInput contains parameters for the Put operation.
type PutInput struct {
	Command     string  `json:"command"`     // required
	Description string  `json:"description"` // required
	Category    string  `json:"category"`    // required
	Subcategory *string `json:"subcategory,omitempty"`

	// Examples replace the stored list only when at least one survives
	// cleaning; an absent or empty list keeps what is stored
	Examples []command.Example `json:"examples,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
}

// Put creates or replaces a single command and returns the stored record.
func Put(ctx context.Context, store Store, input PutInput) (*command.Command, error) {
	if strings.TrimSpace(input.Command) == "" ||
		strings.TrimSpace(input.Description) == "" ||
		strings.TrimSpace(input.Category) == "" {
		return nil, errors.NewInvalidRequest("missing required fields: command, description, category")
	}

	name := command.NormalizeName(input.Command)
	if !command.ValidName(name) {
		return nil, errors.NewInvalidRequest(fmt.Sprintf(
			"invalid command name %q: use %d-%d characters from [a-z0-9_-], not only digits",
			input.Command, command.MinNameLen, command.MaxNameLen))
	}

	cat, ok := command.ParseCategory(input.Category)
	if !ok {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown category: %s", input.Category))
	}

	desc := command.Truncate(strings.TrimSpace(input.Description))
	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}
	patch := command.Patch{
		Description: &desc,
		Category:    &cat,
		Subcategory: cleanOptionalString(input.Subcategory),
		Tags:        &tags,
		UpdatedAt:   nowUnix(),
	}
	if examples := command.CapExamples(input.Examples); len(examples) > 0 {
		patch.Examples = &examples
	}

	if err := store.Upsert(ctx, name, patch); err != nil {
		return nil, err
	}
	return store.GetByCommand(ctx, name)
}

// cleanOptionalString trims s and returns nil if it is empty.
func cleanOptionalString(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
