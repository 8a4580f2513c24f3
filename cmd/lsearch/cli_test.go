package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/lsearch/internal/catalog"
	"github.com/hpungsan/lsearch/internal/command"
	"github.com/hpungsan/lsearch/internal/config"
	"github.com/hpungsan/lsearch/internal/db"
	"github.com/hpungsan/lsearch/internal/notebook"
	"github.com/hpungsan/lsearch/internal/ops"
)

// stubNotebook answers every question with the same text.
type stubNotebook struct {
	answer string
}

func (s *stubNotebook) Query(ctx context.Context, notebookID, question string) (*notebook.Answer, error) {
	result, _ := json.Marshal(map[string]any{
		"structuredContent": map[string]string{"answer": s.answer},
	})
	return &notebook.Answer{Text: s.answer, Result: result}, nil
}

// setupTestEnv creates a temporary database and an app environment around it.
func setupTestEnv(t *testing.T) *appEnv {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	store := db.NewStore(database)

	cat := catalog.New(
		[]catalog.Entry{{Command: "htop", Examples: []command.Example{{Code: "htop", Description: "Monitor de procesos"}}}},
		nil,
		[]command.Command{
			{Command: "ssh", Description: "Secure shell", Category: command.Networking, Tags: []string{"remote"}},
			{Command: "tar", Description: "Archive files", Category: command.Files, Tags: []string{}},
		},
	)

	nb := &stubNotebook{answer: "Tools:\n\n* **nmap**: Escaneo de puertos y servicios\n* **grep**: Busca patrones de texto\n"}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	noColor := false

	return &appEnv{
		store:   store,
		syncer:  ops.NewSyncer(nb, store, cat, ops.SyncOptions{NotebookID: "nb-cli", MinAnswerChars: 10}, logger),
		catalog: cat,
		cfg:     config.DefaultConfig(),
		baseDir: tmpDir,
		logger:  logger,
		level:   new(slog.LevelVar),
		color:   &noColor,
	}
}

// runCLI runs the app with args and returns what it wrote.
func runCLI(t *testing.T, env *appEnv, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newCLIApp(env)
	app.Writer = &out
	err := app.Run(append([]string{"lsearch"}, args...))
	return out.String(), err
}

func decodeOutput(t *testing.T, out string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("failed to parse output %q: %v", out, err)
	}
}

// TestCLISeed tests seed status and seeding.
func TestCLISeed(t *testing.T) {
	env := setupTestEnv(t)

	out, err := runCLI(t, env, "seed", "--status")
	if err != nil {
		t.Fatalf("seed --status failed: %v", err)
	}
	var status ops.SeedStatus
	decodeOutput(t, out, &status)
	if status.CommandCount != 2 || status.Stored != 0 {
		t.Errorf("expected 2 seed commands and 0 stored, got %+v", status)
	}

	out, err = runCLI(t, env, "seed")
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	var seeded ops.SeedOutput
	decodeOutput(t, out, &seeded)
	if seeded.Stats.Inserted != 2 {
		t.Errorf("expected 2 inserted, got %d", seeded.Stats.Inserted)
	}
}

// TestCLISearch tests text and JSON search output.
func TestCLISearch(t *testing.T) {
	env := setupTestEnv(t)
	if _, err := runCLI(t, env, "seed"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	t.Run("json", func(t *testing.T) {
		out, err := runCLI(t, env, "search", "--json", "shell")
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		var result ops.SearchOutput
		decodeOutput(t, out, &result)
		if result.Count != 1 || result.Commands[0].Command != "ssh" {
			t.Errorf("expected only ssh, got %+v", result.Commands)
		}
	})

	t.Run("category filter", func(t *testing.T) {
		out, err := runCLI(t, env, "search", "--json", "--category", "files")
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		var result ops.SearchOutput
		decodeOutput(t, out, &result)
		if result.Count != 1 || result.Commands[0].Command != "tar" {
			t.Errorf("expected only tar, got %+v", result.Commands)
		}
	})

	t.Run("text lists every match", func(t *testing.T) {
		out, err := runCLI(t, env, "search")
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if !strings.Contains(out, "ssh") || !strings.Contains(out, "tar") {
			t.Errorf("expected ssh and tar in output, got %q", out)
		}
		if strings.Contains(out, "\x1b[") {
			t.Errorf("expected plain output, got %q", out)
		}
	})

	t.Run("no matches", func(t *testing.T) {
		out, err := runCLI(t, env, "search", "zzz")
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if !strings.Contains(out, "No commands found.") {
			t.Errorf("expected empty message, got %q", out)
		}
	})

	t.Run("unknown category", func(t *testing.T) {
		if _, err := runCLI(t, env, "search", "--category", "bogus"); err == nil {
			t.Error("expected error, got nil")
		}
	})
}

// TestCLIShow tests rendering a single command.
func TestCLIShow(t *testing.T) {
	env := setupTestEnv(t)
	if _, err := runCLI(t, env, "seed"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	out, err := runCLI(t, env, "show", "--json", "ssh")
	if err != nil {
		t.Fatalf("show --json failed: %v", err)
	}
	var c command.Command
	decodeOutput(t, out, &c)
	if c.Command != "ssh" || c.Category != command.Networking {
		t.Errorf("unexpected command: %+v", c)
	}

	out, err = runCLI(t, env, "show", "ssh")
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if !strings.Contains(out, "ssh") || !strings.Contains(out, "Secure shell") {
		t.Errorf("expected card for ssh, got %q", out)
	}

	if _, err := runCLI(t, env, "show", "nonexistent"); err == nil {
		t.Error("expected error for missing command, got nil")
	}
	if _, err := runCLI(t, env, "show"); err == nil {
		t.Error("expected error without a name, got nil")
	}
}

// TestCLIUpload tests importing a document from a file.
func TestCLIUpload(t *testing.T) {
	env := setupTestEnv(t)
	path := filepath.Join(t.TempDir(), "tools.json")
	doc := `[{"comando": "dig", "descripcion": "Consultas DNS"}, {"command": "nmap", "description": "Port scanner"}]`
	if err := os.WriteFile(path, []byte(doc), 0600); err != nil {
		t.Fatalf("failed to write document: %v", err)
	}

	out, err := runCLI(t, env, "upload", path)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	var result ops.UploadOutput
	decodeOutput(t, out, &result)
	if !result.Success || result.Stats.Inserted != 2 {
		t.Errorf("expected 2 inserted, got %+v", result)
	}

	if _, err := runCLI(t, env, "upload", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

// TestCLIExportImport tests the export/import round trip through files.
func TestCLIExportImport(t *testing.T) {
	env := setupTestEnv(t)
	if _, err := runCLI(t, env, "seed"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	exportPath := filepath.Join(t.TempDir(), "export.json")
	out, err := runCLI(t, env, "export", "--path", exportPath)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	var exported ops.ExportOutput
	decodeOutput(t, out, &exported)
	if exported.Count != 2 {
		t.Errorf("expected 2 exported, got %d", exported.Count)
	}

	other := setupTestEnv(t)
	out, err = runCLI(t, other, "import", exportPath)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	var imported ops.ImportOutput
	decodeOutput(t, out, &imported)
	if imported.Imported != 2 {
		t.Errorf("expected 2 imported, got %+v", imported)
	}

	t.Run("default directory under base dir", func(t *testing.T) {
		out, err := runCLI(t, env, "export")
		if err != nil {
			t.Fatalf("export failed: %v", err)
		}
		var result ops.ExportOutput
		decodeOutput(t, out, &result)
		if filepath.Dir(result.Path) != filepath.Join(env.baseDir, "exports") {
			t.Errorf("expected export under base dir, got %s", result.Path)
		}
	})
}

// TestCLISync tests a sync against a stub notebook.
func TestCLISync(t *testing.T) {
	env := setupTestEnv(t)

	out, err := runCLI(t, env, "sync")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	var result ops.SyncResult
	decodeOutput(t, out, &result)
	if !result.Success || result.Stats.Inserted != 2 {
		t.Errorf("expected 2 inserted, got %+v", result)
	}
}

// TestCLINotebook tests the raw notebook subcommands.
func TestCLINotebook(t *testing.T) {
	env := setupTestEnv(t)

	out, err := runCLI(t, env, "notebook", "test")
	if err != nil {
		t.Fatalf("notebook test failed: %v", err)
	}
	var result ops.TestResult
	decodeOutput(t, out, &result)
	if result.Count != 2 {
		t.Errorf("expected 2 parsed commands, got %d", result.Count)
	}

	out, err = runCLI(t, env, "notebook", "query", "which", "tools?")
	if err != nil {
		t.Fatalf("notebook query failed: %v", err)
	}
	var answer map[string]any
	decodeOutput(t, out, &answer)
	if answer["success"] != true || answer["result"] == nil {
		t.Errorf("unexpected query output: %v", answer)
	}
}

// TestCLIVerbose tests that --verbose raises the log level.
func TestCLIVerbose(t *testing.T) {
	env := setupTestEnv(t)
	if _, err := runCLI(t, env, "--verbose", "seed", "--status"); err != nil {
		t.Fatalf("seed --status failed: %v", err)
	}
	if env.level.Level() != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", env.level.Level())
	}
}

// TestStripANSI tests removal of SGR sequences.
func TestStripANSI(t *testing.T) {
	got := stripANSI("\x1b[1;34mnmap\x1b[0m  scanner")
	if got != "nmap  scanner" {
		t.Errorf("expected plain text, got %q", got)
	}
}

// TestIsCLIMode tests the isCLIMode function.
func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"lsearch"}, expected: false},
		{name: "serve command", args: []string{"lsearch", "serve"}, expected: true},
		{name: "search command", args: []string{"lsearch", "search"}, expected: true},
		{name: "notebook command", args: []string{"lsearch", "notebook"}, expected: true},
		{name: "help flag", args: []string{"lsearch", "--help"}, expected: true},
		{name: "version flag", args: []string{"lsearch", "--version"}, expected: true},
		{name: "verbose flag", args: []string{"lsearch", "--verbose"}, expected: true},
		{name: "unknown arg defaults to MCP", args: []string{"lsearch", "--unknown"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isCLIMode(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestIsHelpOrVersion tests the isHelpOrVersion function.
func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"lsearch"}, expected: false},
		{name: "help flag", args: []string{"lsearch", "--help"}, expected: true},
		{name: "short help flag", args: []string{"lsearch", "-h"}, expected: true},
		{name: "short version flag", args: []string{"lsearch", "-v"}, expected: true},
		{name: "help subcommand", args: []string{"lsearch", "help"}, expected: true},
		{name: "search command is not help", args: []string{"lsearch", "search"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isHelpOrVersion(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestReadStdinWithLimit tests the readStdin function respects size limits.
func TestReadStdinWithLimit(t *testing.T) {
	pipeStdin := func(t *testing.T, content string) {
		t.Helper()
		r, w, err := os.Pipe()
		if err != nil {
			t.Fatalf("Failed to create pipe: %v", err)
		}
		go func() {
			_, _ = w.WriteString(content)
			w.Close()
		}()
		oldStdin := os.Stdin
		os.Stdin = r
		t.Cleanup(func() { os.Stdin = oldStdin })
	}

	t.Run("within limit", func(t *testing.T) {
		pipeStdin(t, "nmap - scanner")
		result, err := readStdin(1000)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != "nmap - scanner" {
			t.Errorf("expected content, got %q", result)
		}
	})

	t.Run("exceeds limit", func(t *testing.T) {
		pipeStdin(t, strings.Repeat("x", 100))
		if _, err := readStdin(50); err == nil {
			t.Error("expected error for oversized input")
		}
	})
}
