package ops

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hpungsan/lsearch/internal/command"
)

// Display limits
const (
	// MaxDisplayErrors caps the per-record errors echoed back to callers
	MaxDisplayErrors = 5

	// MaxRawTextChars caps the raw notebook answer returned by a test query
	MaxRawTextChars = 2000

	DefaultSearchLimit = 100
	MaxSearchLimit     = 500
)

// Store is the persistence surface the operations need. *db.Store
// implements it; tests substitute fakes to inject failures.
type Store interface {
	Query(ctx context.Context, f command.Filter) ([]command.Command, error)
	GetByCommand(ctx context.Context, name string) (*command.Command, error)
	Count(ctx context.Context) (int, error)

	// UpdateByCommand returns the number of rows matched
	UpdateByCommand(ctx context.Context, name string, p command.Patch) (int64, error)
	Upsert(ctx context.Context, name string, p command.Patch) error
}

// Stats summarizes a batch write.
type Stats struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Total    int `json:"total"`
	Errors   int `json:"errors"`
}

// recordError formats a per-record failure.
func recordError(name string, err error) string {
	return fmt.Sprintf("%s: %v", name, err)
}

// firstErrors returns at most MaxDisplayErrors entries, never nil.
func firstErrors(errs []string) []string {
	if len(errs) > MaxDisplayErrors {
		errs = errs[:MaxDisplayErrors]
	}
	return append([]string{}, errs...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return discardLogger()
	}
	return logger
}

func nowUnix() int64 {
	return time.Now().Unix()
}
