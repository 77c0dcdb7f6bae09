// Package migrations exposes the embedded verification schema per SQL
// dialect. Every version ships as an up/down pair for each dialect.
package migrations

import (
	"context"
	"io/fs"
	"sort"
	"strings"

	verification "github.com/goliatone/go-verification"
	"github.com/goliatone/go-verification/core"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const rootDir = "data/sql/migrations"

// SourceLabel identifies the verification schema to migration runners that
// track several sources.
const SourceLabel = "go-verification"

var dialectDirs = map[string]string{
	DialectPostgres: rootDir,
	DialectSQLite:   rootDir + "/sqlite",
}

// Dialects lists the supported dialects in a stable order.
func Dialects() []string {
	out := make([]string, 0, len(dialectDirs))
	for dialect := range dialectDirs {
		out = append(out, dialect)
	}
	sort.Strings(out)
	return out
}

// ForDialect returns the migrations for dialect from the embedded schema.
func ForDialect(dialect string) (fs.FS, error) {
	return forDialect(verification.GetMigrationsFS(), dialect)
}

func forDialect(root fs.FS, dialect string) (fs.FS, error) {
	dialect = strings.ToLower(strings.TrimSpace(dialect))
	dir, ok := dialectDirs[dialect]
	if !ok {
		return nil, core.NewConfigurationError("migrations: unsupported dialect " + dialect)
	}
	sub, err := fs.Sub(root, dir)
	if err != nil {
		return nil, core.WrapError(err, core.KindConfiguration, "migrations: open "+dir)
	}
	if _, err := Versions(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Versions returns the migration versions in fsys, failing when a version
// lacks its up or down file.
func Versions(fsys fs.FS) ([]string, error) {
	ups, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, core.WrapError(err, core.KindConfiguration, "migrations: list up files")
	}
	if len(ups) == 0 {
		return nil, core.NewConfigurationError("migrations: no *.up.sql files")
	}
	downs, err := fs.Glob(fsys, "*.down.sql")
	if err != nil {
		return nil, core.WrapError(err, core.KindConfiguration, "migrations: list down files")
	}
	hasDown := make(map[string]bool, len(downs))
	for _, name := range downs {
		hasDown[strings.TrimSuffix(name, ".down.sql")] = true
	}
	versions := make([]string, 0, len(ups))
	for _, name := range ups {
		version := strings.TrimSuffix(name, ".up.sql")
		if !hasDown[version] {
			return nil, core.NewConfigurationError("migrations: " + version + " has no down migration")
		}
		delete(hasDown, version)
		versions = append(versions, version)
	}
	for version := range hasDown {
		return nil, core.NewConfigurationError("migrations: " + version + " has no up migration")
	}
	sort.Strings(versions)
	return versions, nil
}

// RegisterFunc receives the migrations of one dialect.
type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

// Register hands the migrations of each requested dialect to registerFn.
// No dialects means all of them.
func Register(ctx context.Context, registerFn RegisterFunc, dialects ...string) error {
	if registerFn == nil {
		return core.NewConfigurationError("migrations: register function is required")
	}
	if len(dialects) == 0 {
		dialects = Dialects()
	}
	seen := map[string]bool{}
	for _, dialect := range dialects {
		dialect = strings.ToLower(strings.TrimSpace(dialect))
		if seen[dialect] {
			continue
		}
		seen[dialect] = true
		fsys, err := ForDialect(dialect)
		if err != nil {
			return err
		}
		if err := registerFn(ctx, dialect, SourceLabel, fsys); err != nil {
			return core.WrapError(err, core.KindPersistence, "migrations: register "+dialect)
		}
	}
	return nil
}
