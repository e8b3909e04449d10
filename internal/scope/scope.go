// Package scope implements options.Scope over a SQL table with squirrel.
package scope

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"math/bits"
	"regexp"
	"sort"

	"PagedAPI/internal/logger"
	"PagedAPI/internal/options"

	"github.com/Masterminds/squirrel"
)

// DB is the part of *sql.DB a scope needs.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// SQL is an immutable query over one table. Every narrowing call returns a copy.
type SQL struct {
	db      DB
	table   string
	columns []string
	where   []squirrel.Sqlizer
	orderBy []string
	limit   uint64
	offset  uint64
}

var _ options.Scope = (*SQL)(nil)

// New selects columns (all when none given) from table.
func New(db DB, table string, columns ...string) *SQL {
	return &SQL{db: db, table: table, columns: columns}
}

func (s *SQL) Table() string { return s.table }

func (s *SQL) clone() *SQL {
	c := *s
	c.where = append([]squirrel.Sqlizer(nil), s.where...)
	c.orderBy = append([]string(nil), s.orderBy...)
	return &c
}

// Where adds one predicate per condition: lists become IN, ranges become bounds,
// nested maps address "parent.child" columns.
func (s *SQL) Where(conds options.Conditions) options.Scope {
	next := s.clone()
	keys := make([]string, 0, len(conds))
	for k := range conds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, column := range keys {
		next.where = append(next.where, predicates(column, conds[column])...)
	}
	return next
}

func predicates(column string, v options.Value) []squirrel.Sqlizer {
	if !identifier.MatchString(column) {
		logger.Warn("scope_column_rejected", map[string]any{"column": column})
		return nil
	}
	switch v.Kind() {
	case options.KindList:
		return []squirrel.Sqlizer{squirrel.Eq{column: v.Items()}}
	case options.KindString:
		return []squirrel.Sqlizer{squirrel.Eq{column: v.Str()}}
	case options.KindRange:
		r := v.Range()
		var out []squirrel.Sqlizer
		if r.From != "" {
			out = append(out, squirrel.GtOrEq{column: r.From})
		}
		if r.To != "" {
			if r.Exclusive {
				out = append(out, squirrel.Lt{column: r.To})
			} else {
				out = append(out, squirrel.LtOrEq{column: r.To})
			}
		}
		return out
	case options.KindMap:
		entries := v.Entries()
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []squirrel.Sqlizer
		for _, k := range keys {
			out = append(out, predicates(column+"."+k, entries[k])...)
		}
		return out
	}
	return nil
}

// OrderBy replaces any previous ordering.
func (s *SQL) OrderBy(sorting options.Sorting) options.Scope {
	next := s.clone()
	next.orderBy = next.orderBy[:0]
	for _, f := range sorting {
		if !identifier.MatchString(f.Attribute) {
			logger.Warn("scope_column_rejected", map[string]any{"column": f.Attribute})
			continue
		}
		dir := "ASC"
		if f.Direction == options.Descending {
			dir = "DESC"
		}
		next.orderBy = append(next.orderBy, f.Attribute+" "+dir)
	}
	return next
}

// OrderByColumn orders by a trusted column name, ascending.
func (s *SQL) OrderByColumn(column string) *SQL {
	next := s.clone()
	next.orderBy = []string{column + " ASC"}
	return next
}

func (s *SQL) Page(page, pageSize int) options.Scope {
	next := s.clone()
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		next.limit, next.offset = 0, 0
		return next
	}
	next.limit = uint64(pageSize)
	// saturate at the largest bigint; such an offset simply matches no rows
	hi, lo := bits.Mul64(uint64(page-1), uint64(pageSize))
	if hi != 0 || lo > math.MaxInt64 {
		lo = math.MaxInt64
	}
	next.offset = lo
	return next
}

func (s *SQL) builder(columns ...string) squirrel.SelectBuilder {
	sb := squirrel.Select(columns...).From(s.table).PlaceholderFormat(squirrel.Dollar)
	for _, w := range s.where {
		sb = sb.Where(w)
	}
	return sb
}

// ToSql renders the SELECT the scope would run.
func (s *SQL) ToSql() (string, []any, error) {
	columns := s.columns
	if len(columns) == 0 {
		columns = []string{"*"}
	}
	sb := s.builder(columns...)
	if len(s.orderBy) > 0 {
		sb = sb.OrderBy(s.orderBy...)
	}
	if s.limit > 0 {
		sb = sb.Limit(s.limit)
	}
	if s.offset > 0 {
		sb = sb.Offset(s.offset)
	}
	return sb.ToSql()
}

// Count ignores ordering and paging.
func (s *SQL) Count(ctx context.Context) (int, error) {
	sqlStr, args, err := s.builder("COUNT(*)").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	logger.Debug("sql", map[string]any{"table": s.table, "sql": sqlStr, "args": args})

	var n int
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQL) Records(ctx context.Context) ([]options.Record, error) {
	sqlStr, args, err := s.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	logger.Debug("sql", map[string]any{"table": s.table, "sql": sqlStr, "args": args})

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]options.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := make([]options.Record, 0, 16)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(options.Record, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				rec[col] = string(b)
			} else {
				rec[col] = vals[i]
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
