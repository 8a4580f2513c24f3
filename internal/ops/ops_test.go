package ops

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/lsearch/internal/catalog"
	"github.com/hpungsan/lsearch/internal/command"
	"github.com/hpungsan/lsearch/internal/db"
	"github.com/hpungsan/lsearch/internal/notebook"
)

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return db.NewStore(database)
}

func stringPtr(s string) *string {
	return &s
}

// failingStore wraps a real store and fails writes for chosen commands.
type failingStore struct {
	*db.Store
	failUpdate map[string]error
	failUpsert map[string]error
	failAll    error

	mu      sync.Mutex
	upserts []string
}

func (s *failingStore) UpdateByCommand(ctx context.Context, name string, p command.Patch) (int64, error) {
	if s.failAll != nil {
		return 0, s.failAll
	}
	if err := s.failUpdate[name]; err != nil {
		return 0, err
	}
	return s.Store.UpdateByCommand(ctx, name, p)
}

func (s *failingStore) Upsert(ctx context.Context, name string, p command.Patch) error {
	s.mu.Lock()
	s.upserts = append(s.upserts, name)
	s.mu.Unlock()

	if s.failAll != nil {
		return s.failAll
	}
	if err := s.failUpsert[name]; err != nil {
		return err
	}
	return s.Store.Upsert(ctx, name, p)
}

// fakeNotebook answers every question with the same text.
type fakeNotebook struct {
	answer string
	err    error

	questions []string
	ids       []string
}

func (f *fakeNotebook) Query(ctx context.Context, notebookID, question string) (*notebook.Answer, error) {
	f.questions = append(f.questions, question)
	f.ids = append(f.ids, notebookID)
	if f.err != nil {
		return nil, f.err
	}
	result, _ := json.Marshal(map[string]any{
		"content":           []any{},
		"structuredContent": map[string]string{"answer": f.answer},
	})
	return &notebook.Answer{Text: f.answer, Result: result}, nil
}

func testCatalog() *catalog.Catalog {
	return catalog.New(
		[]catalog.Entry{
			{Command: "ls", Examples: []command.Example{
				{Code: "ls -la", Description: "Listar todos los archivos"},
				{Code: "ls -lh", Description: "Tamaños legibles"},
			}},
			{Command: "nmap", Examples: []command.Example{
				{Code: "nmap -sV host", Description: "Escanear puertos y versiones"},
			}},
			{Command: "htop", Examples: []command.Example{
				{Code: "htop", Description: "Monitor interactivo de procesos"},
			}},
		},
		[]catalog.Entry{
			{Command: "ls", Examples: []command.Example{
				{Code: "ls -la", Description: "Todo"},
				{Code: "ls -lh", Description: "Legible"},
			}},
			{Command: "grep", Examples: []command.Example{
				{Code: "grep -r x .", Description: "Recursivo"},
				{Code: "grep -i x f", Description: "Sin mayúsculas"},
			}},
			{Command: "ghost", Examples: []command.Example{
				{Code: "ghost --run", Description: "No existe"},
			}},
		},
		[]command.Command{
			{
				Command:     "ssh",
				Description: "Secure Shell - remote login",
				Category:    command.Networking,
				Subcategory: stringPtr("remote"),
				Examples:    []command.Example{{Code: "ssh user@host", Description: "Connect to remote host"}},
				Tags:        []string{"remote", "secure"},
			},
			{
				Command:     "tar",
				Description: "Archive utility",
				Category:    command.Files,
				Subcategory: stringPtr("compression"),
				Examples:    []command.Example{{Code: "tar -xzvf a.tgz", Description: "Extract archive"}},
				Tags:        []string{"archive"},
			},
		},
	)
}
