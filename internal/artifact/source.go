package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned by a Source when the named artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// Source reads serialized artifacts by logical name.
type Source interface {
	Read(ctx context.Context, name string) ([]byte, error)
	Describe() string
}

// DirSource reads artifacts from a directory on the local filesystem.
type DirSource struct {
	Root string
}

func (s DirSource) Read(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(name)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return data, err
}

func (s DirSource) Describe() string { return "dir:" + s.Root }

// querier is the subset of pgxpool.Pool used by PGSource.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGSource reads artifacts stored as bytea rows in Postgres.
type PGSource struct {
	db    querier
	table string
}

const defaultArtifactTable = "model_artifacts"

// NewPGSource reads from table (name text primary key, content bytea). An
// empty table uses model_artifacts.
func NewPGSource(db querier, table string) *PGSource {
	if table == "" {
		table = defaultArtifactTable
	}
	return &PGSource{db: db, table: table}
}

func (s *PGSource) Read(ctx context.Context, name string) ([]byte, error) {
	query := fmt.Sprintf("SELECT content FROM %s WHERE name = $1", pgx.Identifier{s.table}.Sanitize())

	var content []byte
	err := s.db.QueryRow(ctx, query, name).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("query artifact %s: %w", name, err)
	}
	return content, nil
}

func (s *PGSource) Describe() string { return "postgres:" + s.table }
