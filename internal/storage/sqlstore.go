package storage

import (
	"context"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"

	"cms-records/internal/dbexec"
	"cms-records/internal/sqlutil"
)

// moveOffset is the sort distance applied when placing a row next to a
// sibling; half the bottom-insert gap so moved rows land between neighbors.
const moveOffset = 64

// SQLStore implements Store against a MySQL-compatible database.
type SQLStore struct {
	exec dbexec.QueryExecutor
}

// NewSQLStore creates a store over the given executor.
func NewSQLStore(exec dbexec.QueryExecutor) *SQLStore {
	return &SQLStore{exec: exec}
}

func quotedEq(filter Filter) sq.Eq {
	eq := sq.Eq{}
	for col, val := range filter {
		eq[sqlutil.QuoteIdentifier(col)] = val
	}
	return eq
}

func (s *SQLStore) Insert(ctx context.Context, table string, values map[string]any) (int64, error) {
	names := make([]string, 0, len(values))
	for col := range values {
		names = append(names, col)
	}
	sort.Strings(names)

	columns := make([]string, 0, len(names))
	args := make([]any, 0, len(names))
	for _, col := range names {
		columns = append(columns, sqlutil.QuoteIdentifier(col))
		args = append(args, values[col])
	}

	query, sqlArgs, err := sq.Insert(sqlutil.QuoteIdentifier(table)).
		Columns(columns...).
		Values(args...).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return 0, err
	}

	result, err := s.exec.ExecContext(ctx, query, sqlArgs...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLStore) Update(ctx context.Context, table string, rowID int64, values map[string]any) error {
	if len(values) == 0 {
		return fmt.Errorf("update set cannot be empty")
	}

	setMap := make(map[string]any, len(values))
	for col, val := range values {
		setMap[sqlutil.QuoteIdentifier(col)] = val
	}

	query, args, err := sq.Update(sqlutil.QuoteIdentifier(table)).
		SetMap(setMap).
		Where(sq.Eq{sqlutil.QuoteIdentifier(ColID): rowID}).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return err
	}

	_, err = s.exec.ExecContext(ctx, query, args...)
	return err
}

// Delete sets the deleted flag rather than removing the row; publish and
// garbage collection deal with physical removal.
func (s *SQLStore) Delete(ctx context.Context, table string, rowID int64) error {
	query, args, err := sq.Update(sqlutil.QuoteIdentifier(table)).
		Set(sqlutil.QuoteIdentifier(ColDeleted), 1).
		Where(sq.Eq{sqlutil.QuoteIdentifier(ColID): rowID}).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return err
	}

	result, err := s.exec.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) SelectOne(ctx context.Context, table string, filter Filter) (Row, error) {
	rows, err := s.selectRows(ctx, table, filter, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

func (s *SQLStore) SelectMany(ctx context.Context, table string, filter Filter) ([]Row, error) {
	return s.selectRows(ctx, table, filter, 0)
}

func (s *SQLStore) selectRows(ctx context.Context, table string, filter Filter, limit uint64) ([]Row, error) {
	builder := sq.Select("*").
		From(sqlutil.QuoteIdentifier(table)).
		PlaceholderFormat(sq.Question)
	if len(filter) > 0 {
		builder = builder.Where(quotedEq(filter))
	}
	if limit > 0 {
		builder = builder.Limit(limit)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanRows(rows)
}

func scanRows(rows dbexec.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(columns))
		dests := make([]any, len(columns))
		for i := range values {
			dests[i] = &values[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, err
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *SQLStore) MaxValue(ctx context.Context, table, column string, filter Filter) (int64, error) {
	builder := sq.Select("COALESCE(MAX(" + sqlutil.QuoteIdentifier(column) + "), 0)").
		From(sqlutil.QuoteIdentifier(table)).
		PlaceholderFormat(sq.Question)
	if len(filter) > 0 {
		builder = builder.Where(quotedEq(filter))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, err
	}

	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var max int64
	if rows.Next() {
		if err := rows.Scan(&max); err != nil {
			return 0, err
		}
	}
	return max, rows.Err()
}

func (s *SQLStore) Move(ctx context.Context, table string, rowID, targetID int64, dir MoveDirection) error {
	target, err := s.SelectOne(ctx, table, Filter{ColID: targetID})
	if err != nil {
		return fmt.Errorf("move target %d: %w", targetID, err)
	}

	sort := target.Int(ColSort)
	if dir == MoveAfter {
		sort += moveOffset
	} else {
		sort -= moveOffset
	}

	return s.Update(ctx, table, rowID, map[string]any{ColSort: sort})
}

func (s *SQLStore) DeriveTranslation(ctx context.Context, table string, rowID, liveID, localeID int64, parentField string) (int64, error) {
	source, err := s.SelectOne(ctx, table, Filter{ColID: rowID})
	if err != nil {
		return 0, err
	}
	if parentField == "" {
		parentField = ColTranslationParent
	}

	values := make(map[string]any, len(source))
	for col, val := range source {
		if col == ColID {
			continue
		}
		values[col] = val
	}
	values[ColLocale] = localeID
	values[parentField] = liveID

	return s.Insert(ctx, table, values)
}
