package ops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/hpungsan/lsearch/internal/command"
	"github.com/hpungsan/lsearch/internal/errors"
)

// MaxImportBytes bounds the size of an import file.
const MaxImportBytes = 32 << 20

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string // required
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError describes one record that was not imported.
type ImportError struct {
	Index   int    `json:"index"`
	Command string `json:"command,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Import reads an export file, or a bare JSON array of commands, and
// upserts every valid record. Invalid records are skipped and reported.
func Import(ctx context.Context, store Store, logger *slog.Logger, input ImportInput) (*ImportOutput, error) {
	logger = orDiscard(logger)
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}

	file, err := openNoFollow(input.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxImportBytes+1))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read import file: %w", err))
	}
	if len(data) > MaxImportBytes {
		return nil, errors.NewPayloadTooLarge(MaxImportBytes)
	}

	records, err := decodeImport(data)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid import file: %v", err))
	}

	out := &ImportOutput{Errors: []ImportError{}}
	now := nowUnix()
	for i, rec := range records {
		c, ierr := validateImported(rec)
		if ierr != nil {
			ierr.Index = i
			out.Errors = append(out.Errors, *ierr)
			out.Skipped++
			continue
		}
		if err := store.Upsert(ctx, c.Command, command.PatchFrom(c, now)); err != nil {
			out.Errors = append(out.Errors, ImportError{
				Index:   i,
				Command: c.Command,
				Code:    "WRITE_FAILED",
				Message: err.Error(),
			})
			out.Skipped++
			continue
		}
		out.Imported++
	}

	logger.Info("import finished", "path", input.Path, "imported", out.Imported, "skipped", out.Skipped)
	return out, nil
}

// decodeImport accepts either an ExportFile object or a JSON array.
func decodeImport(data []byte) ([]command.Command, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []command.Command
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	var file ExportFile
	if err := json.Unmarshal(trimmed, &file); err != nil {
		return nil, err
	}
	if !file.LsearchExport {
		return nil, fmt.Errorf("missing _lsearch_export marker")
	}
	return file.Commands, nil
}

func validateImported(c command.Command) (command.Command, *ImportError) {
	name := command.NormalizeName(c.Command)
	if !command.ValidName(name) {
		return c, &ImportError{
			Command: c.Command,
			Code:    "INVALID_RECORD",
			Message: "invalid command name",
		}
	}

	cat, ok := command.ParseCategory(string(c.Category))
	if !ok && c.Category != "" {
		return c, &ImportError{
			Command: name,
			Code:    "INVALID_RECORD",
			Message: fmt.Sprintf("unknown category: %s", c.Category),
		}
	}

	c.Command = name
	c.Category = cat
	c.Description = command.Truncate(c.Description)
	c.Examples = command.CapExamples(c.Examples)
	return c, nil
}
