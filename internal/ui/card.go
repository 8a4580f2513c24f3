package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/hpungsan/lsearch/internal/command"
)

// DefaultTermWidth is used when the terminal width is unknown.
const DefaultTermWidth = 80

// Markdown formats c as a markdown card. The web detail page renders the
// same text with goldmark.
func Markdown(c command.Command) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", c.Command)
	if c.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", c.Description)
	}

	fmt.Fprintf(&b, "**Category:** %s", c.Category)
	if c.Subcategory != nil && *c.Subcategory != "" {
		fmt.Fprintf(&b, " / %s", *c.Subcategory)
	}
	b.WriteString("\n\n")

	if len(c.Tags) > 0 {
		tags := make([]string, 0, len(c.Tags))
		for _, tag := range c.Tags {
			tags = append(tags, "`"+tag+"`")
		}
		fmt.Fprintf(&b, "**Tags:** %s\n\n", strings.Join(tags, " "))
	}

	if len(c.Examples) > 0 {
		b.WriteString("## Examples\n\n")
		for _, ex := range c.Examples {
			fmt.Fprintf(&b, "%s\n\n```sh\n%s\n```\n\n", ex.Description, ex.Code)
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// RenderCard renders c for a terminal. Without color the output is plain
// text suitable for pipes.
func RenderCard(c command.Command, width int, color bool) (string, error) {
	if width <= 0 {
		width = DefaultTermWidth
	}

	style := "notty"
	if color {
		style = "dark"
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}

	rendered, err := r.Render(Markdown(c))
	if err != nil {
		return "", err
	}

	// glamour adds trailing newlines; keep exactly one.
	return strings.TrimRight(rendered, "\n") + "\n", nil
}

// ListLine formats one search result: name, category badge, description.
func ListLine(c command.Command, nameWidth int) string {
	name := Name.Render(fmt.Sprintf("%-*s", nameWidth, c.Command))
	return fmt.Sprintf("%s %s %s", name, Badge(c.Category), Muted.Render(c.Description))
}

// NameWidth returns the widest command name in cmds.
func NameWidth(cmds []command.Command) int {
	w := 0
	for _, c := range cmds {
		if len(c.Command) > w {
			w = len(c.Command)
		}
	}
	return w
}
