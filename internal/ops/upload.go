package ops

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hpungsan/lsearch/internal/command"
	"github.com/hpungsan/lsearch/internal/errors"
	"github.com/hpungsan/lsearch/internal/extract"
)

// UploadInput contains parameters for the Upload operation.
type UploadInput struct {
	Content  string // required
	Filename string // optional; a .json or .html name selects the format
	Format   string // optional hint: json, text or html (default: text)
}

// UploadOutput contains the result of the Upload operation.
type UploadOutput struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Format  extract.Format `json:"format"`
	Stats   Stats          `json:"stats"`
	Errors  []string       `json:"errors"`
}

// Upload parses a document and upserts every command it yields, one at a
// time. A document that yields nothing, malformed JSON included, is a
// NO_COMMANDS error.
func Upload(ctx context.Context, store Store, logger *slog.Logger, input UploadInput) (*UploadOutput, error) {
	logger = orDiscard(logger)

	if strings.TrimSpace(input.Content) == "" {
		return nil, errors.NewInvalidRequest("no content provided")
	}

	format := extract.DetectFormat(input.Content, input.Filename, extract.ParseFormat(input.Format))
	logger.Info("processing document", "format", format, "chars", command.CountChars(input.Content))

	commands, err := extract.ParseDocument(input.Content, format)
	if err != nil {
		logger.Warn("document parse failed", "format", format, "error", err)
		commands = nil
	}
	if len(commands) == 0 {
		return nil, errors.NewNoCommands(string(format))
	}
	logger.Info("commands found", "count", len(commands))

	var errs []string
	inserted := 0
	now := nowUnix()
	for _, c := range commands {
		if err := store.Upsert(ctx, c.Command, command.PatchFrom(c, now)); err != nil {
			logger.Warn("command upsert failed", "command", c.Command, "error", err)
			errs = append(errs, recordError(c.Command, err))
			continue
		}
		inserted++
	}

	return &UploadOutput{
		Success: inserted > 0,
		Message: fmt.Sprintf("Processed %d of %d commands", inserted, len(commands)),
		Format:  format,
		Stats: Stats{
			Inserted: inserted,
			Total:    len(commands),
			Errors:   len(errs),
		},
		Errors: firstErrors(errs),
	}, nil
}
