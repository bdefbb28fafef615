package examples

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/valpere/restyle/internal"
)

// PersistenceError reports a failed read or write of the examples file.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("examples %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// storedExample mirrors the on-disk record. Pointers distinguish a missing
// field from an empty one.
type storedExample struct {
	Original    *string `json:"original"`
	Transformed *string `json:"transformed"`
	Tone        *string `json:"tone"`
	Complexity  *string `json:"complexity"`
	ContentType *string `json:"content_type"`
}

func (r storedExample) toExample(i int) (internal.TransformationExample, error) {
	fields := []struct {
		name string
		val  *string
	}{
		{"original", r.Original},
		{"transformed", r.Transformed},
		{"tone", r.Tone},
		{"complexity", r.Complexity},
		{"content_type", r.ContentType},
	}
	for _, f := range fields {
		if f.val == nil {
			return internal.TransformationExample{}, fmt.Errorf("entry %d: missing field %q", i, f.name)
		}
	}
	return internal.TransformationExample{
		Original:    *r.Original,
		Transformed: *r.Transformed,
		Tone:        *r.Tone,
		Complexity:  *r.Complexity,
		ContentType: *r.ContentType,
	}, nil
}

// Save writes the examples (not their vectors) to path as a JSON array. The
// file is replaced atomically: a failed save leaves any previous file intact.
func (s *Store) Save(path string) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	data, err := json.MarshalIndent(s.Examples(), "", "  ")
	if err != nil {
		return &PersistenceError{Op: "save", Path: path, Err: err}
	}
	if err := writeFileAtomic(path, data); err != nil {
		return &PersistenceError{Op: "save", Path: path, Err: err}
	}
	return nil
}

// Load appends the examples stored at path, recomputing their embeddings in
// file order. A missing file is not an error. If any embedding fails nothing
// is added.
func (s *Store) Load(ctx context.Context, path string) error {
	loaded, err := ReadFile(path)
	if err != nil {
		return err
	}
	if len(loaded) == 0 {
		return nil
	}

	batch := make([]entry, 0, len(loaded))
	for i, ex := range loaded {
		if err := ctx.Err(); err != nil {
			return err
		}
		vec, err := s.embed(ctx, ex.Original)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		batch = append(batch, entry{example: ex, vector: vec})
	}

	s.mu.Lock()
	s.entries = append(s.entries, batch...)
	s.mu.Unlock()
	return nil
}

// ReadFile parses an examples file without computing embeddings. A missing
// file yields no examples and no error. Unknown fields are ignored.
func ReadFile(path string) ([]internal.TransformationExample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &PersistenceError{Op: "load", Path: path, Err: err}
	}

	var raw []storedExample
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &PersistenceError{Op: "load", Path: path, Err: err}
	}

	out := make([]internal.TransformationExample, 0, len(raw))
	for i, r := range raw {
		ex, err := r.toExample(i)
		if err != nil {
			return nil, &PersistenceError{Op: "load", Path: path, Err: err}
		}
		out = append(out, ex)
	}
	return out, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}
