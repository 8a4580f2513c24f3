package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/lsearch/internal/command"
	"github.com/hpungsan/lsearch/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func stringPtr(s string) *string {
	return &s
}

func categoryPtr(c command.Category) *command.Category {
	return &c
}

func examplesPtr(ex ...command.Example) *[]command.Example {
	return &ex
}

func tagsPtr(tags ...string) *[]string {
	return &tags
}

func TestUpsert_InsertsAndGets(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Upsert(ctx, "nmap", command.Patch{
		Description:      stringPtr("Escáner de red"),
		Category:         categoryPtr(command.Security),
		Subcategory:      stringPtr("scanning"),
		Tags:             tagsPtr("scan", "network"),
		Examples:         examplesPtr(command.Example{Code: "nmap -sV host", Description: "versiones"}),
		SourceNotebookID: stringPtr("nb-1"),
		UpdatedAt:        1000,
	})
	require.NoError(t, err)

	got, err := store.GetByCommand(ctx, "nmap")
	require.NoError(t, err)

	assert.Len(t, got.ID, 26)
	assert.Equal(t, "nmap", got.Command)
	assert.Equal(t, "Escáner de red", got.Description)
	assert.Equal(t, command.Security, got.Category)
	require.NotNil(t, got.Subcategory)
	assert.Equal(t, "scanning", *got.Subcategory)
	assert.Equal(t, []string{"scan", "network"}, got.Tags)
	assert.Equal(t, []command.Example{{Code: "nmap -sV host", Description: "versiones"}}, got.Examples)
	require.NotNil(t, got.SourceNotebookID)
	assert.Equal(t, "nb-1", *got.SourceNotebookID)
	assert.Equal(t, int64(1000), got.CreatedAt)
	assert.Equal(t, int64(1000), got.UpdatedAt)
}

func TestUpsert_InsertDefaults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "pwd", command.Patch{}))

	got, err := store.GetByCommand(ctx, "pwd")
	require.NoError(t, err)
	assert.Equal(t, command.System, got.Category)
	assert.Empty(t, got.Examples)
	assert.NotNil(t, got.Examples)
	assert.Empty(t, got.Tags)
	assert.Nil(t, got.Subcategory)
	assert.NotZero(t, got.UpdatedAt)
}

func TestUpsert_ConflictKeepsIDAndCreatedAt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "ls", command.Patch{Description: stringPtr("first"), UpdatedAt: 100}))
	first, err := store.GetByCommand(ctx, "ls")
	require.NoError(t, err)

	require.NoError(t, store.Upsert(ctx, "ls", command.Patch{Description: stringPtr("second"), UpdatedAt: 200}))
	second, err := store.GetByCommand(ctx, "ls")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(100), second.CreatedAt)
	assert.Equal(t, int64(200), second.UpdatedAt)
	assert.Equal(t, "second", second.Description)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPatch_PreservesExamplesWhenOmitted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "grep", command.Patch{
		Description: stringPtr("Busca patrones"),
		Examples: examplesPtr(
			command.Example{Code: "grep -r x .", Description: "recursivo"},
			command.Example{Code: "grep -i x f", Description: "sin mayúsculas"},
			command.Example{Code: "grep -v x f", Description: "invertir"},
		),
	}))

	incoming := command.PatchFrom(command.Command{
		Command:     "grep",
		Description: "Busca texto con expresiones regulares",
		Category:    command.Text,
		Examples:    []command.Example{},
	}, 500)
	require.Nil(t, incoming.Examples)

	n, err := store.UpdateByCommand(ctx, "grep", incoming)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, store.Upsert(ctx, "grep", incoming))

	got, err := store.GetByCommand(ctx, "grep")
	require.NoError(t, err)
	assert.Len(t, got.Examples, 3)
	assert.Equal(t, "Busca texto con expresiones regulares", got.Description)
	assert.Equal(t, command.Text, got.Category)
}

func TestPatch_ReplacesExamplesWhenPresent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "tar", command.Patch{
		Examples: examplesPtr(
			command.Example{Code: "tar -x", Description: "a"},
			command.Example{Code: "tar -c", Description: "b"},
		),
	}))
	_, err := store.UpdateByCommand(ctx, "tar", command.Patch{
		Examples: examplesPtr(command.Example{Code: "tar -tzf x.tgz", Description: "listar"}),
	})
	require.NoError(t, err)

	got, err := store.GetByCommand(ctx, "tar")
	require.NoError(t, err)
	assert.Equal(t, []command.Example{{Code: "tar -tzf x.tgz", Description: "listar"}}, got.Examples)
}

func TestUpdateByCommand_MissingRow(t *testing.T) {
	store := newTestStore(t)

	n, err := store.UpdateByCommand(context.Background(), "ghost", command.Patch{Description: stringPtr("nada")})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestGetByCommand_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetByCommand(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestQuery_Filters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seed := []struct {
		name string
		desc string
		cat  command.Category
		tags []string
	}{
		{"ssh", "Secure shell client", command.Networking, []string{"ssh", "network"}},
		{"nmap", "Network scanner", command.Security, []string{"scan", "network"}},
		{"grep", "Search text 100% literal", command.Text, []string{"text"}},
		{"awk", "Pattern scanning language", command.Text, nil},
	}
	for _, s := range seed {
		p := command.Patch{Description: stringPtr(s.desc), Category: categoryPtr(s.cat)}
		if s.tags != nil {
			p.Tags = tagsPtr(s.tags...)
		}
		require.NoError(t, store.Upsert(ctx, s.name, p))
	}

	tests := []struct {
		name   string
		filter command.Filter
		want   []string
	}{
		{name: "all ordered by name", filter: command.Filter{}, want: []string{"awk", "grep", "nmap", "ssh"}},
		{name: "query matches description case-insensitively", filter: command.Filter{Query: "NETWORK"}, want: []string{"nmap"}},
		{name: "query matches command", filter: command.Filter{Query: "ss"}, want: []string{"ssh"}},
		{name: "category", filter: command.Filter{Category: command.Text}, want: []string{"awk", "grep"}},
		{name: "tag", filter: command.Filter{Tag: "network"}, want: []string{"nmap", "ssh"}},
		{name: "combined", filter: command.Filter{Query: "scan", Category: command.Text}, want: []string{"awk"}},
		{name: "percent is literal", filter: command.Filter{Query: "100%"}, want: []string{"grep"}},
		{name: "underscore is literal", filter: command.Filter{Query: "_"}, want: []string{}},
		{name: "limit", filter: command.Filter{Limit: 2}, want: []string{"awk", "grep"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Query(ctx, tt.filter)
			require.NoError(t, err)
			names := make([]string, 0, len(got))
			for _, c := range got {
				names = append(names, c.Command)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}
