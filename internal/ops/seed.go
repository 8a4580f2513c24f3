package ops

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hpungsan/lsearch/internal/catalog"
	"github.com/hpungsan/lsearch/internal/command"
)

// SeedOutput contains the result of the Seed operation.
type SeedOutput struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Stats   Stats    `json:"stats"`
	Errors  []string `json:"errors"`
}

// SeedStatus describes the seed list without writing it.
type SeedStatus struct {
	Message      string `json:"message"`
	CommandCount int    `json:"commandCount"`
	Stored       int    `json:"stored"`
}

// Seed upserts the curated seed list, one command at a time.
func Seed(ctx context.Context, store Store, cat *catalog.Catalog, logger *slog.Logger) (*SeedOutput, error) {
	logger = orDiscard(logger)
	seed := cat.Seed()

	var errs []string
	inserted := 0
	now := nowUnix()
	for _, c := range seed {
		if err := store.Upsert(ctx, c.Command, command.PatchFrom(c, now)); err != nil {
			logger.Warn("seed upsert failed", "command", c.Command, "error", err)
			errs = append(errs, recordError(c.Command, err))
			continue
		}
		inserted++
	}
	logger.Info("seed finished", "inserted", inserted, "errors", len(errs))

	return &SeedOutput{
		Success: len(errs) < len(seed),
		Message: fmt.Sprintf("Seeded %d commands", inserted),
		Stats: Stats{
			Inserted: inserted,
			Total:    len(seed),
			Errors:   len(errs),
		},
		Errors: firstErrors(errs),
	}, nil
}

// GetSeedStatus reports the size of the seed list and of the store.
func GetSeedStatus(ctx context.Context, store Store, cat *catalog.Catalog) (*SeedStatus, error) {
	stored, err := store.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &SeedStatus{
		Message:      "Use POST to seed the database",
		CommandCount: len(cat.Seed()),
		Stored:       stored,
	}, nil
}
