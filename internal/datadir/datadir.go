// Package datadir locates the per-user faqbot directory. It may hold a
// faqbot.json used when the working directory has none, and a .env file
// with secrets such as RELOAD_TOKEN.
package datadir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	DefaultDirName = ".faqbot"
	EnvVar         = "FAQBOT_DATA_DIR"
	ConfigFileName = "faqbot.json"
)

// DataDir is a resolved, not necessarily existing, directory.
type DataDir struct {
	root string
}

// New resolves the directory from FAQBOT_DATA_DIR, then fallback, then
// ~/.faqbot. Nothing is created on disk.
func New(fallback string) (*DataDir, error) {
	for _, candidate := range []string{os.Getenv(EnvVar), fallback} {
		if candidate != "" {
			return &DataDir{root: candidate}, nil
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("datadir: no home directory: %w", err)
	}
	return &DataDir{root: filepath.Join(home, DefaultDirName)}, nil
}

func (d *DataDir) Root() string { return d.root }

func (d *DataDir) FilePath(name string) string { return filepath.Join(d.root, name) }

func (d *DataDir) ConfigPath() string { return d.FilePath(ConfigFileName) }

// Resolve anchors a relative path (a corpus or artifact dir named in a
// data-dir config) at the data directory. Absolute paths pass through.
func (d *DataDir) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return d.FilePath(path)
}

// EnsureDirs creates the directory, owner-only.
func (d *DataDir) EnsureDirs() error {
	if err := os.MkdirAll(d.root, 0700); err != nil {
		return fmt.Errorf("datadir: create %s: %w", d.root, err)
	}
	return nil
}
