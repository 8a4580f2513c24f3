package ops

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hpungsan/lsearch/internal/command"
	"github.com/hpungsan/lsearch/internal/errors"
)

// MaxQueryLength bounds the search text.
const MaxQueryLength = 200

// SearchSource names the backing store in search responses.
const SearchSource = "sqlite"

// SearchInput contains parameters for the Search operation.
type SearchInput struct {
	Query    string // optional substring of command or description
	Category string // optional filter
	Tag      string // optional filter
	Limit    int    // 0 means every match; capped at MaxSearchLimit
}

// SearchOutput contains the result of the Search operation.
type SearchOutput struct {
	Commands []command.Command `json:"commands"`
	Count    int               `json:"count"`
	Source   string            `json:"source"`

	// Truncated is set when the limit cut off further matches
	Truncated bool `json:"truncated"`
}

// Search lists commands ordered by name, optionally filtered.
func Search(ctx context.Context, store Store, input SearchInput) (*SearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("query exceeds maximum length of %d characters", MaxQueryLength))
	}

	filter := command.Filter{
		Query: query,
		Tag:   strings.TrimSpace(input.Tag),
		Limit: input.Limit,
	}
	if strings.TrimSpace(input.Category) != "" {
		cat, ok := command.ParseCategory(input.Category)
		if !ok {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown category: %s", input.Category))
		}
		filter.Category = cat
	}
	if filter.Limit < 0 {
		return nil, errors.NewInvalidRequest("limit must not be negative")
	}
	if filter.Limit > MaxSearchLimit {
		filter.Limit = MaxSearchLimit
	}

	limit := filter.Limit
	if limit > 0 {
		// one extra row tells whether the limit cut anything off
		filter.Limit = limit + 1
	}
	commands, err := store.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	truncated := limit > 0 && len(commands) > limit
	if truncated {
		commands = commands[:limit]
	}
	return &SearchOutput{
		Commands:  commands,
		Count:     len(commands),
		Source:    SearchSource,
		Truncated: truncated,
	}, nil
}

// Get fetches one command by name. The name is normalized first.
func Get(ctx context.Context, store Store, name string) (*command.Command, error) {
	norm := command.NormalizeName(name)
	if norm == "" {
		return nil, errors.NewInvalidRequest("command is required")
	}
	return store.GetByCommand(ctx, norm)
}
