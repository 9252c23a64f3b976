package packaged

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/geosuggest/internal/domain"
	"github.com/kailas-cloud/geosuggest/internal/domain/feature"
	"github.com/kailas-cloud/geosuggest/internal/domain/geo"
	"github.com/kailas-cloud/geosuggest/internal/domain/layer"
)

var _ layer.Source = (*Source)(nil)

// likeEscaper escapes LIKE wildcards; queries declare ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Source is one feature table of a package.
// Contains matching uses LIKE, which folds ASCII case only.
type Source struct {
	store  *Store
	name   string
	title  string
	table  string
	fields []string
}

// Name returns the layer identifier.
func (s *Source) Name() string { return s.name }

// CatalogTitle returns the table description.
func (s *Source) CatalogTitle() string { return s.title }

// TableName returns the SQLite table name.
func (s *Source) TableName() string { return s.table }

// Fields returns the attribute columns.
func (s *Source) Fields() []string { return slices.Clone(s.fields) }

// Query runs a filtered, paged SELECT in fid order.
func (s *Source) Query(ctx context.Context, q layer.Query) (layer.Page, error) {
	out := s.fields
	if len(q.OutFields) > 0 {
		out = make([]string, 0, len(q.OutFields))
		for _, f := range q.OutFields {
			col, ok := s.column(f)
			if !ok {
				return layer.Page{}, domain.NewLayerError(s.name, f, domain.ErrFieldNotFound)
			}
			out = append(out, col)
		}
	}

	sel := make([]string, 0, len(out)+2)
	sel = append(sel, colFID)
	if q.ReturnGeometry {
		sel = append(sel, colGeom)
	}
	for _, c := range out {
		sel = append(sel, quoteIdent(c))
	}

	var (
		b    strings.Builder
		args []any
	)
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(sel, ", "), quoteIdent(s.table))
	if q.Value != "" {
		col, ok := s.column(q.Field)
		if !ok {
			return layer.Page{}, domain.NewLayerError(s.name, q.Field, domain.ErrFieldNotFound)
		}
		if q.Match == layer.Exact {
			fmt.Fprintf(&b, " WHERE %s = ? COLLATE NOCASE", quoteIdent(col))
			args = append(args, q.Value)
		} else {
			fmt.Fprintf(&b, ` WHERE %s LIKE ? ESCAPE '\'`, quoteIdent(col))
			args = append(args, "%"+likeEscaper.Replace(q.Value)+"%")
		}
	}
	b.WriteString(" ORDER BY fid")
	if q.Limit > 0 {
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, q.Limit+1, q.Offset)
	} else if q.Offset > 0 {
		b.WriteString(" LIMIT -1 OFFSET ?")
		args = append(args, q.Offset)
	}

	rows, err := s.store.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return layer.Page{}, s.unavailable(ctx, err)
	}
	defer rows.Close()

	var features []*feature.Feature
	for rows.Next() {
		f, err := scanFeature(rows, out, q.ReturnGeometry)
		if err != nil {
			return layer.Page{}, s.unavailable(ctx, err)
		}
		features = append(features, f)
	}
	if err := rows.Err(); err != nil {
		return layer.Page{}, s.unavailable(ctx, err)
	}

	more := false
	if q.Limit > 0 && len(features) > q.Limit {
		features = features[:q.Limit]
		more = true
	}
	return layer.Page{Features: features, More: more}, nil
}

func scanFeature(rows *sql.Rows, cols []string, withGeom bool) (*feature.Feature, error) {
	var (
		fid  string
		geom sql.NullString
	)
	vals := make([]sql.NullString, len(cols))
	dest := make([]any, 0, len(cols)+2)
	dest = append(dest, &fid)
	if withGeom {
		dest = append(dest, &geom)
	}
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	attrs := make(map[string]string, len(cols))
	for i, c := range cols {
		if vals[i].Valid {
			attrs[c] = vals[i].String
		}
	}
	var g *geo.Geometry
	if geom.Valid && geom.String != "" {
		g = &geo.Geometry{}
		if err := json.Unmarshal([]byte(geom.String), g); err != nil {
			return nil, fmt.Errorf("feature %s: parse geometry: %w", fid, err)
		}
	}
	return feature.New(fid, attrs, g), nil
}

func (s *Source) column(name string) (string, bool) {
	for _, c := range s.fields {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}

func (s *Source) unavailable(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.Classify(ctxErr)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.Classify(err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrDataSourceUnavailable, s.name, err)
}
