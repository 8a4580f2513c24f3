package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tailscale/hujson"
)

// Environment variables that override file configuration.
const (
	EnvNotebookID    = "NOTEBOOKLM_NOTEBOOK_ID"
	EnvMCPServerPath = "MCP_SERVER_PATH"
	EnvDBDir         = "LSEARCH_DB_DIR"
)

// DefaultNotebookID is the notebook queried when none is configured.
const DefaultNotebookID = "03df5b37-f1ea-40d5-b9c2-79a20a047a43"

// Config holds application configuration.
type Config struct {
	// NotebookID identifies the notebook that sync queries
	NotebookID string `json:"notebook_id,omitempty"`

	// MCPServerPath is the notebook tool executable, launched per query over stdio
	MCPServerPath string `json:"mcp_server_path,omitempty"`

	// MCPServerArgs are extra arguments passed to MCPServerPath
	MCPServerArgs []string `json:"mcp_server_args,omitempty"`

	// NotebookTimeoutSeconds bounds a whole notebook query, handshake included
	NotebookTimeoutSeconds int `json:"notebook_timeout_seconds,omitempty"`

	// CallDelayMillis is the pause between the initialized notification and the tool call
	CallDelayMillis int `json:"call_delay_millis,omitempty"`

	// MinAnswerChars is the shortest answer sync will parse before using the fallback catalog
	MinAnswerChars int `json:"min_answer_chars,omitempty"`

	// DebugDumpPath, when set, receives the raw notebook answer of each sync
	DebugDumpPath string `json:"debug_dump_path,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited). Only set if you experience contention.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// Bind and Port configure the HTTP server
	Bind string `json:"bind,omitempty"`
	Port int    `json:"port,omitempty"`

	// UploadMaxBytes caps the size of an uploaded document
	UploadMaxBytes int64 `json:"upload_max_bytes,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		NotebookID:             DefaultNotebookID,
		MCPServerPath:          "notebooklm-mcp",
		NotebookTimeoutSeconds: 90,
		CallDelayMillis:        200,
		MinAnswerChars:         50,
		Bind:                   "127.0.0.1",
		Port:                   3000,
		UploadMaxBytes:         5 << 20,
	}
}

// NotebookTimeout returns the notebook query timeout as a duration.
func (c *Config) NotebookTimeout() time.Duration {
	return time.Duration(c.NotebookTimeoutSeconds) * time.Second
}

// CallDelay returns the handshake call delay as a duration.
func (c *Config) CallDelay() time.Duration {
	return time.Duration(c.CallDelayMillis) * time.Millisecond
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// DefaultBaseDir returns LSEARCH_DB_DIR if set, else ~/.lsearch.
func DefaultBaseDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(EnvDBDir)); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".lsearch"), nil
}

// Load loads configuration from baseDir/config.json and applies
// environment overrides. Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.lsearch.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return ApplyEnv(cfg, os.Getenv), nil
}

// LoadWithRepo loads configuration from both global (~/.lsearch) and repo (.lsearch) directories.
// Repo config is found by walking upward from startDir to find the nearest .lsearch/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Environment overrides are applied last.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return ApplyEnv(Merge(Merge(DefaultConfig(), global), repo), os.Getenv), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .lsearch/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".lsearch", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ApplyEnv overrides notebook settings from the environment.
func ApplyEnv(cfg *Config, getenv func(string) string) *Config {
	if v := strings.TrimSpace(getenv(EnvNotebookID)); v != "" {
		cfg.NotebookID = v
	}
	if v := strings.TrimSpace(getenv(EnvMCPServerPath)); v != "" {
		cfg.MCPServerPath = v
	}
	return cfg
}

// loadFileRaw loads configuration from a specific file path.
// The file may contain comments and trailing commas.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(standardized, cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated,
// except MCPServerArgs where order is significant and overlay replaces base.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.NotebookID = firstString(overlay.NotebookID, base.NotebookID)
	result.MCPServerPath = firstString(overlay.MCPServerPath, base.MCPServerPath)
	result.DebugDumpPath = firstString(overlay.DebugDumpPath, base.DebugDumpPath)
	result.Bind = firstString(overlay.Bind, base.Bind)

	result.NotebookTimeoutSeconds = firstInt(overlay.NotebookTimeoutSeconds, base.NotebookTimeoutSeconds)
	result.CallDelayMillis = firstInt(overlay.CallDelayMillis, base.CallDelayMillis)
	result.MinAnswerChars = firstInt(overlay.MinAnswerChars, base.MinAnswerChars)
	result.DBMaxOpenConns = firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.Port = firstInt(overlay.Port, base.Port)

	result.UploadMaxBytes = overlay.UploadMaxBytes
	if result.UploadMaxBytes == 0 {
		result.UploadMaxBytes = base.UploadMaxBytes
	}

	result.MCPServerArgs = base.MCPServerArgs
	if len(overlay.MCPServerArgs) > 0 {
		result.MCPServerArgs = overlay.MCPServerArgs
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

func firstInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
