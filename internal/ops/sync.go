package ops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/hpungsan/lsearch/internal/catalog"
	"github.com/hpungsan/lsearch/internal/command"
	"github.com/hpungsan/lsearch/internal/config"
	"github.com/hpungsan/lsearch/internal/errors"
	"github.com/hpungsan/lsearch/internal/extract"
	"github.com/hpungsan/lsearch/internal/notebook"
)

// Questions sent to the notebook.
const (
	SyncQuestion    = "List all commands and tools mentioned in the sources. For each one, provide the name and a brief description. Return as a list."
	DefaultQuestion = "List commands"
	TestQuestion    = "List 5 Linux commands"
)

// Sync outcome messages.
const (
	FallbackWarning = "Warning: Used local backup commands because NotebookLM returned no data."
	FallbackFailed  = "No data from NotebookLM and fallback failed."
)

// Querier asks a notebook one question. *notebook.Client implements it.
type Querier interface {
	Query(ctx context.Context, notebookID, question string) (*notebook.Answer, error)
}

// SyncOptions tunes a Syncer.
type SyncOptions struct {
	NotebookID string

	// MinAnswerChars is the shortest answer parsed without falling back
	MinAnswerChars int

	// DebugDumpPath receives the raw answer of every sync when set
	DebugDumpPath string
}

// SyncOptionsFrom reads the sync settings from cfg.
func SyncOptionsFrom(cfg *config.Config) SyncOptions {
	return SyncOptions{
		NotebookID:     cfg.NotebookID,
		MinAnswerChars: cfg.MinAnswerChars,
		DebugDumpPath:  cfg.DebugDumpPath,
	}
}

// SyncResult is the summarized outcome of a sync.
type SyncResult struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	Stats        Stats    `json:"stats"`
	Errors       []string `json:"errors"`
	Warnings     []string `json:"warnings,omitempty"`
	FallbackUsed bool     `json:"fallback_used"`
}

// TestResult is the outcome of a parser dry run against the notebook.
type TestResult struct {
	RawText string            `json:"rawText"`
	Parsed  []command.Command `json:"parsed"`
	Count   int               `json:"count"`
}

// Syncer pulls commands from a notebook into the store.
type Syncer struct {
	notebook Querier
	store    Store
	catalog  *catalog.Catalog
	opts     SyncOptions
	logger   *slog.Logger
	now      func() time.Time
}

// NewSyncer wires a Syncer. cat supplies the fallback catalog.
func NewSyncer(nb Querier, store Store, cat *catalog.Catalog, opts SyncOptions, logger *slog.Logger) *Syncer {
	if cat == nil {
		cat = catalog.New(nil, nil, nil)
	}
	return &Syncer{
		notebook: nb,
		store:    store,
		catalog:  cat,
		opts:     opts,
		logger:   orDiscard(logger),
		now:      time.Now,
	}
}

// NotebookID returns the notebook this Syncer queries.
func (s *Syncer) NotebookID() string {
	return s.opts.NotebookID
}

// Sync asks the notebook for its commands and writes them to the store.
// A notebook failure yields a failed result with zero counts; per-record
// write failures are collected and never stop the batch.
func (s *Syncer) Sync(ctx context.Context) *SyncResult {
	logger := s.logger.With("notebook_id", s.opts.NotebookID)
	logger.Info("sync started")

	answer, err := s.notebook.Query(ctx, s.opts.NotebookID, SyncQuestion)
	if err != nil {
		logger.Error("notebook query failed", "error", err)
		return failedSync(err.Error())
	}
	s.dump(answer)

	raw := answer.Text
	commands := extract.ParseCommands(raw)
	logger.Info("notebook answered", "chars", command.CountChars(raw), "parsed", len(commands))

	result := &SyncResult{Errors: []string{}}
	if s.needsFallback(raw, commands) {
		commands = s.withFallback(commands)
		if len(commands) == 0 {
			logger.Error("fallback catalog is empty")
			return failedSync(FallbackFailed)
		}
		result.FallbackUsed = true
		result.Warnings = append(result.Warnings, FallbackWarning)
		logger.Warn("using fallback catalog", "commands", len(commands))
	}

	source := s.opts.NotebookID
	for _, c := range commands {
		c.SourceNotebookID = &source
		matched, err := s.write(ctx, c)
		if err != nil {
			logger.Warn("command write failed", "command", c.Command, "error", err)
			result.Errors = append(result.Errors, recordError(c.Command, err))
			continue
		}
		if matched {
			result.Stats.Updated++
		} else {
			result.Stats.Inserted++
		}
	}

	result.Stats.Total = len(commands)
	result.Stats.Errors = len(result.Errors)
	result.Success = result.Stats.Inserted > 0 || result.Stats.Updated > 0
	result.Message = syncMessage(result.Stats)

	logger.Info("sync finished",
		"inserted", result.Stats.Inserted,
		"updated", result.Stats.Updated,
		"errors", result.Stats.Errors,
		"fallback", result.FallbackUsed)
	return result
}

// Query forwards a free-form question to the notebook.
func (s *Syncer) Query(ctx context.Context, question string) (*notebook.Answer, error) {
	if strings.TrimSpace(question) == "" {
		question = DefaultQuestion
	}
	answer, err := s.notebook.Query(ctx, s.opts.NotebookID, question)
	if err != nil {
		return nil, errors.NewNotebookFailed(err)
	}
	return answer, nil
}

// Test runs a small fixed query through the parser without writing anything.
func (s *Syncer) Test(ctx context.Context) (*TestResult, error) {
	answer, err := s.notebook.Query(ctx, s.opts.NotebookID, TestQuestion)
	if err != nil {
		return nil, errors.NewNotebookFailed(err)
	}
	parsed := extract.ParseCommands(answer.Text)
	return &TestResult{
		RawText: truncateRunes(answer.Text, MaxRawTextChars),
		Parsed:  parsed,
		Count:   len(parsed),
	}, nil
}

func (s *Syncer) needsFallback(raw string, parsed []command.Command) bool {
	return raw == "" || command.CountChars(raw) < s.opts.MinAnswerChars || len(parsed) == 0
}

// withFallback appends fallback records for commands not already parsed.
func (s *Syncer) withFallback(parsed []command.Command) []command.Command {
	seen := make(map[string]bool, len(parsed))
	for _, c := range parsed {
		seen[c.Command] = true
	}
	out := append([]command.Command{}, parsed...)
	for _, c := range s.catalog.FallbackCommands() {
		if seen[c.Command] {
			continue
		}
		seen[c.Command] = true
		out = append(out, c)
	}
	return out
}

// write applies c with an update by key followed by an upsert with the
// same payload. It reports whether the update matched an existing row.
func (s *Syncer) write(ctx context.Context, c command.Command) (bool, error) {
	patch := command.PatchFrom(c, s.now().Unix())

	n, err := s.store.UpdateByCommand(ctx, c.Command, patch)
	if err != nil {
		return false, err
	}
	// The upsert still runs when the update matched nothing.
	if err := s.store.Upsert(ctx, c.Command, patch); err != nil {
		return false, err
	}
	return n > 0, nil
}

// dump writes the raw answer to the debug path. Failures are only logged.
func (s *Syncer) dump(answer *notebook.Answer) {
	if s.opts.DebugDumpPath == "" {
		return
	}

	var full bytes.Buffer
	if err := json.Indent(&full, answer.Result, "", "  "); err != nil {
		full.Reset()
		full.Write(answer.Result)
	}

	content := fmt.Sprintf("TIMESTAMP: %s\nRAW LENGTH: %d\n\n%s\n\nFULL JSON:\n%s\n",
		s.now().UTC().Format(time.RFC3339),
		command.CountChars(answer.Text),
		answer.Text,
		full.String())

	if err := atomic.WriteFile(s.opts.DebugDumpPath, strings.NewReader(content)); err != nil {
		s.logger.Warn("debug dump failed", "path", s.opts.DebugDumpPath, "error", err)
	}
}

func failedSync(msg string) *SyncResult {
	return &SyncResult{
		Success: false,
		Message: syncMessage(Stats{}),
		Errors:  []string{msg},
		Stats:   Stats{Errors: 1},
	}
}

func syncMessage(st Stats) string {
	return fmt.Sprintf("Synced: %d new, %d updated", st.Inserted, st.Updated)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
