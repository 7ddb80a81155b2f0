package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// FileStore keeps all windows in a single JSON file so that independent
// invocations on the same machine back off together.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore at path. If path is empty, the default
// state location is used.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		p, err := DefaultStatePath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &FileStore{path: path}, nil
}

// Path returns the state file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the state file. A missing file is an empty state.
func (s *FileStore) Load(_ context.Context) (map[string]Window, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Window{}, nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	var records map[string]record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing state file: %w", err)
	}
	windows := make(map[string]Window, len(records))
	for model, r := range records {
		windows[model] = fromRecord(model, r)
	}
	return windows, nil
}

// Save writes the state file, replacing it atomically so readers never see a
// partial write.
func (s *FileStore) Save(_ context.Context, windows map[string]Window) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	records := make(map[string]record, len(windows))
	for model, w := range windows {
		records[model] = toRecord(w)
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tpm-*.json")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

// DefaultStatePath returns the platform-appropriate state file location
// under the user cache directory.
func DefaultStatePath() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "diffsum", "tpm.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "diffsum", "tpm.json"), nil
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "diffsum", "tpm.json"), nil
		}
		return filepath.Join(home, "AppData", "Local", "diffsum", "tpm.json"), nil
	default:
		return filepath.Join(home, ".cache", "diffsum", "tpm.json"), nil
	}
}
