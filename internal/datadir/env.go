package datadir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// EnvFileEnvVar names a single .env file that replaces the search below.
const EnvFileEnvVar = "FAQBOT_ENV_FILE"

// LoadEnv applies .env files to the process environment with godotenv.
// Variables already set are kept, so the shell beats every file and an
// earlier file beats a later one. Files are searched in ./.env, then
// {dataRoot}/.env, then {dir}/.env for each extra dir.
func LoadEnv(dataRoot string, dirs ...string) error {
	files := FindEnvFiles(dataRoot, dirs...)
	if len(files) == 0 {
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("datadir: load %v: %w", files, err)
	}
	return nil
}

// FindEnvFiles lists the existing regular files LoadEnv would apply.
func FindEnvFiles(dataRoot string, dirs ...string) []string {
	var candidates []string
	if override := os.Getenv(EnvFileEnvVar); override != "" {
		candidates = []string{override}
	} else {
		if cwd, err := os.Getwd(); err == nil {
			dirs = append([]string{cwd, dataRoot}, dirs...)
		} else {
			dirs = append([]string{dataRoot}, dirs...)
		}
		for _, dir := range dirs {
			if dir != "" {
				candidates = append(candidates, filepath.Join(dir, ".env"))
			}
		}
		candidates = dedupPaths(candidates)
	}

	var found []string
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			found = append(found, path)
		}
	}
	return found
}

// dedupPaths keeps the first spelling of each cleaned path.
func dedupPaths(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := paths[:0:0]
	for _, p := range paths {
		key := filepath.Clean(p)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}
