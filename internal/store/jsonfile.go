package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/soyeahso/shaperelay/internal/activation"
)

// JSONFile stores the activation set as a JSON array of strings.
type JSONFile struct {
	path string
}

// NewJSONFile returns a backend reading and writing path.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Path returns the file location.
func (f *JSONFile) Path() string { return f.path }

// Load reads the file. A missing file is an empty set; content that is not
// a JSON array of strings wraps activation.ErrMalformed.
func (f *JSONFile) Load(_ context.Context) ([]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", activation.ErrMalformed, f.path, err)
	}
	return ids, nil
}

// Save writes ids sorted, two-space indented, via a temp file and rename
// so readers never see a partial file.
func (f *JSONFile) Save(_ context.Context, ids []string) error {
	sorted := slices.Clone(ids)
	if sorted == nil {
		sorted = []string{}
	}
	slices.Sort(sorted)

	data, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding active channels: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".active_channels-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing %s: %w", f.path, err)
	}
	return nil
}
