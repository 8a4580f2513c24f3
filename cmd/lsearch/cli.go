package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/lsearch/internal/catalog"
	"github.com/hpungsan/lsearch/internal/config"
	"github.com/hpungsan/lsearch/internal/errors"
	"github.com/hpungsan/lsearch/internal/ops"
	"github.com/hpungsan/lsearch/internal/ui"
	"github.com/hpungsan/lsearch/internal/web"
)

// maxStdinBytes caps documents piped to upload.
const maxStdinBytes = 10 << 20

// appEnv carries the collaborators shared by every subcommand.
type appEnv struct {
	store   ops.Store
	syncer  *ops.Syncer
	catalog *catalog.Catalog
	cfg     *config.Config
	baseDir string
	logger  *slog.Logger
	level   *slog.LevelVar

	// color forces styled terminal output; nil means detect from stdout
	color *bool
}

func (e *appEnv) useColor() bool {
	if e.color != nil {
		return *e.color
	}
	return isTerminal(os.Stdout)
}

// newCLIApp creates the CLI application with all commands.
// env may be nil when only help or version output is needed.
func newCLIApp(env *appEnv) *cli.App {
	app := &cli.App{
		Name:    "lsearch",
		Usage:   "Linux & cybersecurity command catalog",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Usage: "Enable debug logging"},
		},
		Before: func(c *cli.Context) error {
			if env != nil && env.level != nil && c.Bool("verbose") {
				env.level.Set(slog.LevelDebug)
			}
			return nil
		},
		Commands: []*cli.Command{
			serveCmd(env),
			syncCmd(env),
			uploadCmd(env),
			seedCmd(env),
			repopulateCmd(env),
			searchCmd(env),
			showCmd(env),
			exportCmd(env),
			importCmd(env),
			notebookCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd creates the serve command.
func serveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web UI and JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Listen address (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (default from config)"},
		},
		Action: func(c *cli.Context) error {
			cfg := *env.cfg
			if c.IsSet("bind") {
				cfg.Bind = c.String("bind")
			}
			if c.IsSet("port") {
				cfg.Port = c.Int("port")
			}

			h, err := web.NewHandlers(web.Deps{
				Store:   env.store,
				Syncer:  env.syncer,
				Catalog: env.catalog,
				Config:  &cfg,
				Logger:  env.logger,
				Version: Version,
			})
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(web.NewServer(h, cfg.Addr()), env.logger)
		},
	}
}

// syncCmd creates the sync command.
func syncCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Pull commands from the configured notebook into the catalog",
		Action: func(c *cli.Context) error {
			result := env.syncer.Sync(c.Context)
			if err := outputJSON(c.App.Writer, result); err != nil {
				return err
			}
			if !result.Success {
				return cli.Exit("sync failed", 1)
			}
			return nil
		},
	}
}

// uploadCmd creates the upload command.
func uploadCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Import commands from a JSON, text or HTML document (file argument or stdin)",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Format hint: json|text|html"},
		},
		Action: func(c *cli.Context) error {
			input := ops.UploadInput{Format: c.String("format")}

			switch {
			case c.NArg() > 0:
				path := c.Args().First()
				data, err := readFileLimited(path, maxStdinBytes)
				if err != nil {
					return outputError(err)
				}
				input.Content = data
				input.Filename = path
			case stdinHasData():
				data, err := readStdin(maxStdinBytes)
				if err != nil {
					return outputError(err)
				}
				input.Content = data
			default:
				return outputError(errors.NewInvalidRequest("pass a file or pipe the document via stdin"))
			}

			output, err := ops.Upload(c.Context, env.store, env.logger, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// seedCmd creates the seed command.
func seedCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Load the curated seed commands",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "status", Usage: "Only report seed and store sizes"},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("status") {
				status, err := ops.GetSeedStatus(c.Context, env.store, env.catalog)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c.App.Writer, status)
			}

			output, err := ops.Seed(c.Context, env.store, env.catalog, env.logger)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// repopulateCmd creates the repopulate command.
func repopulateCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "repopulate",
		Usage: "Replace stored examples with the canonical examples table",
		Action: func(c *cli.Context) error {
			output, err := ops.RepopulateExamples(c.Context, env.store, env.catalog, env.logger)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// searchCmd creates the search command.
func searchCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search commands by name or description",
		ArgsUsage: "[query]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Filter by category"},
			&cli.StringFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Filter by tag"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultSearchLimit, Usage: "Maximum results"},
			&cli.BoolFlag{Name: "json", Usage: "Output JSON"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Search(c.Context, env.store, ops.SearchInput{
				Query:    strings.Join(c.Args().Slice(), " "),
				Category: c.String("category"),
				Tag:      c.String("tag"),
				Limit:    c.Int("limit"),
			})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("json") {
				return outputJSON(c.App.Writer, output)
			}

			if output.Count == 0 {
				_, err := fmt.Fprintln(c.App.Writer, "No commands found.")
				return err
			}
			width := ui.NameWidth(output.Commands)
			for _, cmd := range output.Commands {
				line := ui.ListLine(cmd, width)
				if !env.useColor() {
					line = stripANSI(line)
				}
				if _, err := fmt.Fprintln(c.App.Writer, line); err != nil {
					return err
				}
			}
			if output.Truncated {
				fmt.Fprintf(c.App.ErrWriter, "showing first %d matches, use --limit for more\n", output.Count)
			}
			return nil
		},
	}
}

// showCmd creates the show command.
func showCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one command as a rendered card",
		ArgsUsage: "<command>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Output JSON"},
			&cli.IntFlag{Name: "width", Aliases: []string{"w"}, Value: ui.DefaultTermWidth, Usage: "Word wrap width"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("command name is required"))
			}

			cmd, err := ops.Get(c.Context, env.store, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			if c.Bool("json") {
				return outputJSON(c.App.Writer, cmd)
			}

			card, err := ui.RenderCard(*cmd, c.Int("width"), env.useColor())
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			_, err = fmt.Fprint(c.App.Writer, card)
			return err
		},
	}
}

// exportCmd creates the export command.
func exportCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export the catalog to a JSON file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Output file path"},
			&cli.StringFlag{Name: "dir", Usage: "Output directory (file name is generated); default <base>/exports"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ExportInput{
				Path: c.String("path"),
				Dir:  c.String("dir"),
			}
			if input.Path == "" && input.Dir == "" {
				input.Dir = filepath.Join(env.baseDir, "exports")
			}

			output, err := ops.Export(c.Context, env.store, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// importCmd creates the import command.
func importCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import commands from an export file",
		ArgsUsage: "<path>",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("path is required"))
			}

			output, err := ops.Import(c.Context, env.store, env.logger, ops.ImportInput{Path: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// notebookCmd creates the notebook command group.
func notebookCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "notebook",
		Usage: "Talk to the notebook tool directly",
		Subcommands: []*cli.Command{
			{
				Name:      "query",
				Usage:     "Ask the notebook a question and print the raw tool result",
				ArgsUsage: "[question]",
				Action: func(c *cli.Context) error {
					answer, err := env.syncer.Query(c.Context, strings.Join(c.Args().Slice(), " "))
					if err != nil {
						return outputError(err)
					}
					result := answer.Result
					if len(result) == 0 {
						result = json.RawMessage("null")
					}
					return outputJSON(c.App.Writer, map[string]any{
						"success": true,
						"result":  result,
					})
				},
			},
			{
				Name:  "test",
				Usage: "Run a small query through the parser without writing anything",
				Action: func(c *cli.Context) error {
					result, err := env.syncer.Test(c.Context)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, result)
				},
			},
		},
	}
}

// Helper functions

// outputJSON marshals v to w as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var lErr *errors.LsearchError
	if stderrors.As(err, &lErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", lErr.Code, lErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	return !isTerminal(os.Stdin)
}

// readStdin reads stdin, failing when it exceeds maxBytes.
func readStdin(maxBytes int64) (string, error) {
	return readLimited(os.Stdin, maxBytes)
}

func readFileLimited(path string, maxBytes int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewFileNotFound(path)
		}
		return "", errors.NewInternal(err)
	}
	defer f.Close()
	return readLimited(f, maxBytes)
}

func readLimited(r io.Reader, maxBytes int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > maxBytes {
		return "", errors.NewPayloadTooLarge(maxBytes)
	}
	return strings.TrimSpace(string(data)), nil
}

// stripANSI removes SGR escape sequences from styled output.
func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case inEscape:
			if ch == 'm' {
				inEscape = false
			}
		case ch == 0x1b && i+1 < len(s) && s[i+1] == '[':
			inEscape = true
			i++
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}
