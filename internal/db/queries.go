package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/lsearch/internal/command"
	"github.com/hpungsan/lsearch/internal/errors"
)

const selectColumns = `
	SELECT id, command, description, category, subcategory,
		examples_json, tags_json, source_notebook_id, created_at, updated_at
	FROM commands
`

// Store reads and writes command records keyed by command name.
type Store struct {
	db *sql.DB
}

// NewStore wraps an initialized database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Query returns commands matching f, ordered by command name.
func (s *Store) Query(ctx context.Context, f command.Filter) ([]command.Command, error) {
	var (
		where []string
		args  []any
	)

	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		where = append(where, `(lower(command) LIKE ? ESCAPE '\' OR lower(description) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(f.Category))
	}
	if tag := strings.TrimSpace(f.Tag); tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(commands.tags_json) WHERE json_each.value = ?)")
		args = append(args, tag)
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY command"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	commands := []command.Command{}
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		commands = append(commands, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return commands, nil
}

// GetByCommand retrieves one command by its name.
func (s *Store) GetByCommand(ctx context.Context, name string) (*command.Command, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE command = ?", name)
	c, err := scanCommand(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(name)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return c, nil
}

// Count returns the number of stored commands.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM commands").Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// UpdateByCommand applies the non-nil fields of p to an existing row.
// Returns the number of rows matched; a missing row is not an error.
func (s *Store) UpdateByCommand(ctx context.Context, name string, p command.Patch) (int64, error) {
	cols, args, err := patchColumns(p)
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	sets := make([]string, 0, len(cols))
	for _, col := range cols {
		sets = append(sets, col+" = ?")
	}
	args = append(args, name)

	query := "UPDATE commands SET " + strings.Join(sets, ", ") + " WHERE command = ?"
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// Upsert inserts a row for name or, when it exists, applies the non-nil
// fields of p. Columns absent from p keep their stored values.
func (s *Store) Upsert(ctx context.Context, name string, p command.Patch) error {
	cols, args, err := patchColumns(p)
	if err != nil {
		return errors.NewInternal(err)
	}

	id, err := newID()
	if err != nil {
		return errors.NewInternal(err)
	}

	insertCols := append([]string{"id", "command", "created_at"}, cols...)
	insertArgs := append([]any{id, name, updatedAt(p)}, args...)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(insertCols)), ", ")
	sets := make([]string, 0, len(cols))
	for _, col := range cols {
		sets = append(sets, col+" = excluded."+col)
	}

	query := "INSERT INTO commands (" + strings.Join(insertCols, ", ") + ") VALUES (" + placeholders + ")" +
		" ON CONFLICT(command) DO UPDATE SET " + strings.Join(sets, ", ")

	if _, err := s.db.ExecContext(ctx, query, insertArgs...); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// All returns every stored command ordered by name.
func (s *Store) All(ctx context.Context) ([]command.Command, error) {
	return s.Query(ctx, command.Filter{})
}

// patchColumns lists the columns and values written by p. updated_at is
// always included.
func patchColumns(p command.Patch) ([]string, []any, error) {
	var (
		cols []string
		args []any
	)

	if p.Description != nil {
		cols = append(cols, "description")
		args = append(args, *p.Description)
	}
	if p.Category != nil {
		cols = append(cols, "category")
		args = append(args, string(*p.Category))
	}
	if p.Subcategory != nil {
		cols = append(cols, "subcategory")
		args = append(args, *p.Subcategory)
	}
	if p.Tags != nil {
		data, err := json.Marshal(nonNilTags(*p.Tags))
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, "tags_json")
		args = append(args, string(data))
	}
	if p.Examples != nil {
		examples := *p.Examples
		if examples == nil {
			examples = []command.Example{}
		}
		data, err := json.Marshal(examples)
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, "examples_json")
		args = append(args, string(data))
	}
	if p.SourceNotebookID != nil {
		cols = append(cols, "source_notebook_id")
		args = append(args, *p.SourceNotebookID)
	}

	cols = append(cols, "updated_at")
	args = append(args, updatedAt(p))

	return cols, args, nil
}

func updatedAt(p command.Patch) int64 {
	if p.UpdatedAt != 0 {
		return p.UpdatedAt
	}
	return time.Now().Unix()
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// newID generates a new ULID.
func newID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanCommand scans a single row into a Command struct.
func scanCommand(row rowScanner) (*command.Command, error) {
	var (
		c            command.Command
		category     string
		subcategory  sql.NullString
		examplesJSON sql.NullString
		tagsJSON     sql.NullString
		sourceID     sql.NullString
	)

	err := row.Scan(
		&c.ID, &c.Command, &c.Description, &category, &subcategory,
		&examplesJSON, &tagsJSON, &sourceID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Category = command.Category(category)
	c.Subcategory = fromNullString(subcategory)
	c.SourceNotebookID = fromNullString(sourceID)

	c.Examples = []command.Example{}
	if examplesJSON.Valid && examplesJSON.String != "" {
		if err := json.Unmarshal([]byte(examplesJSON.String), &c.Examples); err != nil {
			return nil, err
		}
	}
	c.Tags = []string{}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &c.Tags); err != nil {
			return nil, err
		}
	}

	return &c, nil
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
