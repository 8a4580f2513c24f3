package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/hpungsan/lsearch/internal/catalog"
	"github.com/hpungsan/lsearch/internal/config"
	"github.com/hpungsan/lsearch/internal/db"
	"github.com/hpungsan/lsearch/internal/mcp"
	"github.com/hpungsan/lsearch/internal/notebook"
	"github.com/hpungsan/lsearch/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"serve": true, "sync": true, "upload": true, "seed": true,
	"repopulate": true, "search": true, "show": true,
	"export": true, "import": true, "notebook": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "--verbose" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal reports whether fd is an interactive terminal.
func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89B4FA"))
	fmt.Println(title.Render(`
   _                          _
  | |___  ___  __ _ _ _ __ __| |_
  | (_-< / -_)/ _' | '_/ _/ _|  ' \
  |_/__/ \___|\__,_|_| \__\__|_||_|`))
	fmt.Println(`
  Linux & cybersecurity command catalog

  Usage: lsearch <command> [options]
         lsearch --help

  MCP server mode requires piped input.`)
}

// newLogger builds the process logger. Output goes to stderr so MCP
// stdout stays clean.
func newLogger(level *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal(os.Stdin) {
		printBanner()
		return
	}

	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fail("%v", err)
		}
		return
	}

	level := new(slog.LevelVar)
	logger := newLogger(level)

	baseDir, err := config.DefaultBaseDir()
	if err != nil {
		fail("%v", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = baseDir
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fail("failed to load config: %v", err)
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fail("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	cat, err := catalog.Load()
	if err != nil {
		fail("failed to load catalog: %v", err)
	}

	store := db.NewStore(database)
	client := notebook.NewClient(notebook.ExecLauncher{
		Path:   cfg.MCPServerPath,
		Args:   cfg.MCPServerArgs,
		Stderr: os.Stderr,
	}, notebook.Options{
		Timeout:   cfg.NotebookTimeout(),
		CallDelay: cfg.CallDelay(),
		Version:   Version,
		Logger:    logger,
	})
	syncer := ops.NewSyncer(client, store, cat, ops.SyncOptionsFrom(cfg), logger)

	env := &appEnv{
		store:   store,
		syncer:  syncer,
		catalog: cat,
		cfg:     cfg,
		baseDir: baseDir,
		logger:  logger,
		level:   level,
	}

	if isCLIMode() {
		app := newCLIApp(env)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal(os.Stdin) {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'lsearch --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	deps := mcp.Deps{Store: store, Syncer: syncer, Logger: logger}
	if err := mcp.Run(deps, cfg, Version); err != nil {
		fail("%v", err)
	}
}
