package ops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"

	"github.com/hpungsan/lsearch/internal/command"
	"github.com/hpungsan/lsearch/internal/errors"
)

// ExportSchemaVersion is written into every export file.
const ExportSchemaVersion = "1.0"

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path string // optional, default: <Dir>/commands-<timestamp>.json
	Dir  string // directory for the default path
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportFile is the on-disk export document.
type ExportFile struct {
	LsearchExport bool              `json:"_lsearch_export"`
	SchemaVersion string            `json:"schema_version"`
	ExportedAt    int64             `json:"exported_at"`
	Commands      []command.Command `json:"commands"`
}

// Export writes every stored command to a JSON file. The file is replaced
// atomically, so a failed export leaves any previous file intact.
func Export(ctx context.Context, store Store, input ExportInput) (*ExportOutput, error) {
	now := time.Now()

	path := input.Path
	if path == "" {
		if input.Dir == "" {
			return nil, errors.NewInvalidRequest("export path is required")
		}
		path = filepath.Join(input.Dir, fmt.Sprintf("commands-%s.json", now.Format("2006-01-02T150405")))
	}

	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest("cannot write to symlink")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	commands, err := store.Query(ctx, command.Filter{})
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(ExportFile{
		LsearchExport: true,
		SchemaVersion: ExportSchemaVersion,
		ExportedAt:    now.Unix(),
		Commands:      commands,
	}, "", "  ")
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	data = append(data, '\n')

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to write export: %w", err))
	}
	if err := os.Chmod(path, 0600); err != nil {
		return nil, errors.NewInternal(err)
	}

	return &ExportOutput{
		Path:       path,
		Count:      len(commands),
		ExportedAt: now.Unix(),
	}, nil
}
