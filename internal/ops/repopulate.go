package ops

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hpungsan/lsearch/internal/catalog"
	"github.com/hpungsan/lsearch/internal/command"
)

// RepopulateOutput contains the result of the RepopulateExamples operation.
type RepopulateOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message"`

	// UpdatedCount counts table entries that matched a stored command
	UpdatedCount    int      `json:"updated_count"`
	UpdatedCommands []string `json:"updated_commands"`

	// MissingCommands are table entries with no stored row
	MissingCommands []string `json:"missing_commands"`

	ErrorsCount  int      `json:"errors_count"`
	ErrorsSample []string `json:"errors_sample"`
}

type repopulateResult struct {
	name    string
	matched bool
	err     error
}

// RepopulateExamples overwrites the examples of every stored command listed
// in the catalog's examples table. All updates are issued at once and the
// summary is built after every one has finished; commands that are not
// stored are left alone.
func RepopulateExamples(ctx context.Context, store Store, cat *catalog.Catalog, logger *slog.Logger) (*RepopulateOutput, error) {
	logger = orDiscard(logger)
	table := cat.ExampleTable()
	now := nowUnix()

	results := make([]repopulateResult, len(table))
	var wg sync.WaitGroup
	for i, entry := range table {
		wg.Add(1)
		go func(i int, entry catalog.Entry) {
			defer wg.Done()
			examples := command.CapExamples(entry.Examples)
			n, err := store.UpdateByCommand(ctx, entry.Command, command.Patch{
				Examples:  &examples,
				UpdatedAt: now,
			})
			results[i] = repopulateResult{name: entry.Command, matched: n > 0, err: err}
		}(i, entry)
	}
	wg.Wait()

	out := &RepopulateOutput{
		Success:         true,
		Message:         fmt.Sprintf("Sent example updates for %d commands", len(table)),
		UpdatedCommands: []string{},
		MissingCommands: []string{},
	}
	var errs []string
	for _, r := range results {
		switch {
		case r.err != nil:
			errs = append(errs, recordError(r.name, r.err))
		case r.matched:
			out.UpdatedCommands = append(out.UpdatedCommands, r.name)
		default:
			out.MissingCommands = append(out.MissingCommands, r.name)
		}
	}
	out.UpdatedCount = len(out.UpdatedCommands)
	out.ErrorsCount = len(errs)
	out.ErrorsSample = firstErrors(errs)

	logger.Info("examples repopulated",
		"updated", out.UpdatedCount,
		"missing", len(out.MissingCommands),
		"errors", out.ErrorsCount)
	return out, nil
}
