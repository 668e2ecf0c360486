package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps each artifact in its own file inside one directory.
// Files are replaced atomically: written to a temp file in the same
// directory, synced, then renamed over the final name.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir. The directory is created
// on first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

// Location returns the artifact directory.
func (s *FileStore) Location() string { return s.dir }

// Exists reports whether all artifact files are present. A partial set
// counts as absent.
func (s *FileStore) Exists(ctx context.Context) bool {
	for _, name := range ArtifactNames {
		info, err := os.Stat(s.path(name))
		if err != nil || !info.Mode().IsRegular() {
			return false
		}
	}
	return true
}

// Save writes every artifact of a. ctx is consulted only before the first
// file is replaced; after that the set is always written in full.
func (s *FileStore) Save(ctx context.Context, a *Artifacts) error {
	if err := ctx.Err(); err != nil {
		return ioFailure("save", err)
	}
	payloads, err := encodeArtifacts(a)
	if err != nil {
		return ioFailure("save", err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return ioFailure("save", err)
	}

	for _, name := range ArtifactNames {
		if err := writeFileAtomic(s.path(name), payloads[name]); err != nil {
			return ioFailure("save", fmt.Errorf("%s: %w", name, err))
		}
	}
	return nil
}

// Load reads and cross-checks all artifact files.
func (s *FileStore) Load(ctx context.Context) (*Artifacts, error) {
	payloads := make(map[string][]byte, len(ArtifactNames))
	for _, name := range ArtifactNames {
		data, err := os.ReadFile(s.path(name))
		if err != nil {
			return nil, ioFailure("load", err)
		}
		payloads[name] = data
	}
	return decodeArtifacts(payloads)
}

// Close is a no-op for files.
func (s *FileStore) Close() error { return nil }

// writeFileAtomic replaces path with data so readers see either the old or
// the new content, never a torn file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
