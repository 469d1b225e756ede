// Package migrations exposes the embedded schema migration tree and a
// registration helper that feeds each dialect's filesystem into the
// persistence layer.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	receiver "github.com/hastexo/webhook-receiver"
)

// Dialects the receiver ships migrations for. Postgres files live at the
// root of the embedded tree, sqlite variants under sqlite/.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const embeddedRoot = "data/sql/migrations"

type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// RegisterFunc receives one dialect's migration filesystem. The persistence
// client's RegisterSQLMigrations is the usual target.
type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Filesystems       []FilesystemSpec
}

type Option func(*Registration)

func WithDialectSourceLabel(label string) Option {
	return func(r *Registration) {
		if label = strings.TrimSpace(label); label != "" {
			r.SourceLabel = label
		}
	}
}

// WithValidationTargets restricts registration to the named dialects.
// Integration tests use this to register only the sqlite tree.
func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		cleaned := normalize(targets)
		if len(cleaned) > 0 {
			r.ValidationTargets = cleaned
		}
	}
}

// WithFilesystems swaps the embedded tree for explicit per-dialect sources.
func WithFilesystems(filesystems ...FilesystemSpec) Option {
	return func(r *Registration) {
		kept := filesystems[:0:0]
		for _, spec := range filesystems {
			spec.Dialect = strings.ToLower(strings.TrimSpace(spec.Dialect))
			if spec.Dialect == "" || spec.FS == nil {
				continue
			}
			kept = append(kept, spec)
		}
		if len(kept) > 0 {
			r.Filesystems = kept
		}
	}
}

// Filesystems resolves the per-dialect migration filesystems from the
// embedded tree, or from an explicit override when one is provided.
func Filesystems(sources ...fs.FS) ([]FilesystemSpec, error) {
	var root fs.FS = receiver.GetMigrationsFS()
	if len(sources) > 0 && sources[0] != nil {
		root = sources[0]
	}

	postgresFS, err := fs.Sub(root, embeddedRoot)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", embeddedRoot, err)
	}
	sqliteFS, err := fs.Sub(postgresFS, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s/sqlite: %w", embeddedRoot, err)
	}

	filesystems := []FilesystemSpec{
		{Dialect: DialectPostgres, Path: embeddedRoot, FS: postgresFS},
		{Dialect: DialectSQLite, Path: embeddedRoot + "/sqlite", FS: sqliteFS},
	}
	for _, spec := range filesystems {
		matches, globErr := fs.Glob(spec.FS, "*.up.sql")
		if globErr != nil {
			return nil, fmt.Errorf("migrations: glob %s: %w", spec.Path, globErr)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("migrations: %s has no *.up.sql files", spec.Path)
		}
	}
	return filesystems, nil
}

// Register feeds each selected dialect's filesystem to registerFn. By
// default both dialects register under the "webhook-receiver" label.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       "webhook-receiver",
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}
	filesystems, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = filesystems

	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	selected := map[string]bool{}
	for _, dialect := range normalize(reg.ValidationTargets) {
		selected[dialect] = true
	}
	registered := 0
	for _, spec := range reg.Filesystems {
		if !selected[spec.Dialect] {
			continue
		}
		if err := registerFn(ctx, spec.Dialect, reg.SourceLabel, spec.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", spec.Dialect, spec.Path, err)
		}
		registered++
	}
	if registered == 0 {
		return reg, fmt.Errorf("migrations: no filesystem matched targets %v", reg.ValidationTargets)
	}
	return reg, nil
}

func normalize(values []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	return out
}
