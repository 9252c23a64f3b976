package packaged

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kailas-cloud/geosuggest/internal/domain/layer"
	"github.com/kailas-cloud/geosuggest/internal/repository/memory"
)

const (
	colFID  = "fid"
	colGeom = "geom"

	contentsDDL = `CREATE TABLE IF NOT EXISTS gpkg_contents (
	table_name  TEXT PRIMARY KEY,
	data_type   TEXT NOT NULL DEFAULT 'features',
	identifier  TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT ''
)`
)

// Store is a GeoPackage-style SQLite file of feature tables listed in gpkg_contents.
// Geometry is stored as JSON text in the geom column.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Open opens or creates the package at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening package: %w", err)
	}
	if _, err := db.Exec(contentsDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating contents table: %w", err)
	}
	return &Store{db: db, path: path, logger: logger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the file is readable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Name is the package name used as the group name: the file base without extension.
func (s *Store) Name() string {
	base := filepath.Base(s.path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadTree returns one group holding every feature table of the package.
func (s *Store) LoadTree(ctx context.Context) ([]layer.Node, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT table_name, identifier, description FROM gpkg_contents
		 WHERE data_type = 'features' ORDER BY identifier`)
	if err != nil {
		return nil, fmt.Errorf("listing contents: %w", err)
	}
	defer rows.Close()

	var srcs []*Source
	for rows.Next() {
		src := &Source{store: s}
		if err := rows.Scan(&src.table, &src.name, &src.title); err != nil {
			return nil, fmt.Errorf("scanning contents: %w", err)
		}
		srcs = append(srcs, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating contents: %w", err)
	}

	children := make([]layer.Node, 0, len(srcs))
	for _, src := range srcs {
		cols, err := s.columns(ctx, src.table)
		if err != nil {
			s.logger.Warn("Skipping unreadable table", zap.String("table", src.table), zap.Error(err))
			continue
		}
		src.fields = cols
		children = append(children, src)
	}
	s.logger.Info("Loaded packaged layers", zap.String("package", s.Name()), zap.Int("layers", len(children)))
	return []layer.Node{layer.NewGroup(s.Name(), children...)}, nil
}

// columns lists attribute columns of table, excluding fid and geom.
func (s *Store) columns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(table)+")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		if strings.EqualFold(name, colFID) || strings.EqualFold(name, colGeom) {
			continue
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("no attribute columns")
	}
	return out, nil
}

// Import writes every layer of ds as a feature table, replacing existing tables.
// Services are flattened; layer names must be unique across the dataset.
func (s *Store) Import(ctx context.Context, ds memory.Dataset) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning import: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	total := 0
	for _, svc := range ds.Services {
		for _, l := range svc.Layers {
			n, err := importLayer(ctx, tx, l)
			if err != nil {
				return 0, fmt.Errorf("import %s: %w", l.Name, err)
			}
			total += n
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing import: %w", err)
	}
	return total, nil
}

func importLayer(ctx context.Context, tx *sql.Tx, l memory.LayerData) (int, error) {
	if len(l.Fields) == 0 {
		return 0, errors.New("layer without fields")
	}
	table := l.Table
	if table == "" {
		table = l.Name
	}

	cols := make([]string, 0, len(l.Fields)+2)
	defs := make([]string, 0, len(l.Fields)+2)
	cols = append(cols, colFID, colGeom)
	defs = append(defs, colFID+" TEXT PRIMARY KEY", colGeom+" TEXT")
	for _, f := range l.Fields {
		if strings.EqualFold(f, colFID) || strings.EqualFold(f, colGeom) {
			return 0, fmt.Errorf("reserved column name %q", f)
		}
		cols = append(cols, f)
		defs = append(defs, quoteIdent(f)+" TEXT")
	}

	stmts := []string{
		"DROP TABLE IF EXISTS " + quoteIdent(table),
		"CREATE TABLE " + quoteIdent(table) + " (" + strings.Join(defs, ", ") + ")",
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return 0, err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO gpkg_contents (table_name, data_type, identifier, description)
		 VALUES (?, 'features', ?, ?)`, table, l.Name, l.Title); err != nil {
		return 0, err
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	ins, err := tx.PrepareContext(ctx, "INSERT INTO "+quoteIdent(table)+
		" ("+strings.Join(quoted, ", ")+") VALUES (?"+strings.Repeat(", ?", len(cols)-1)+")")
	if err != nil {
		return 0, err
	}
	defer ins.Close()

	for _, fd := range l.Features {
		args := make([]any, len(cols))
		args[0] = fd.ID
		if fd.Geometry != nil {
			g, err := json.Marshal(fd.Geometry)
			if err != nil {
				return 0, fmt.Errorf("marshal geometry %s: %w", fd.ID, err)
			}
			args[1] = string(g)
		}
		for i, f := range l.Fields {
			if v, ok := fd.Attributes[f]; ok {
				args[i+2] = v
			}
		}
		if _, err := ins.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("insert %s: %w", fd.ID, err)
		}
	}
	return len(l.Features), nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
