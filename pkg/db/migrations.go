package db

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
)

const migrationsLogPrefix = "db:migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migration is one schema version. Files are named <version>.up.sql and
// <version>.down.sql; a bare <version>.sql is treated as up-only.
type Migration struct {
	Version string
	Up      string
	Down    string
}

// LoadMigrations reads migrations from dir, or from the set compiled into the
// binary when dir is empty. The result is ordered by version.
func LoadMigrations(dir string) ([]Migration, error) {
	if dir == "" {
		return loadMigrations(embeddedMigrations, "migrations", "embedded")
	}
	return loadMigrations(os.DirFS(dir), ".", dir)
}

func loadMigrations(fsys fs.FS, root, source string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read migrations from %s: %w", migrationsLogPrefix, source, err)
	}

	byVersion := make(map[string]*Migration)
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		version, down := migrationVersion(e.Name())
		data, err := fs.ReadFile(fsys, path.Join(root, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("%s - failed to read %s: %w", migrationsLogPrefix, e.Name(), err)
		}
		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version}
			byVersion[version] = m
		}
		if down {
			m.Down = string(data)
		} else {
			m.Up = string(data)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			return nil, fmt.Errorf("%s - migration %s has no up script", migrationsLogPrefix, m.Version)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })

	slog.Debug(fmt.Sprintf("%s - Loaded %d migrations from %s", migrationsLogPrefix, len(out), source))
	return out, nil
}

func migrationVersion(name string) (version string, down bool) {
	base := strings.TrimSuffix(name, ".sql")
	switch {
	case strings.HasSuffix(base, ".down"):
		return strings.TrimSuffix(base, ".down"), true
	case strings.HasSuffix(base, ".up"):
		return strings.TrimSuffix(base, ".up"), false
	}
	return base, false
}
