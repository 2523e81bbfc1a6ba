package storage

import (
	"context"
	"sort"
	"sync"
)

// MemStore is an in-memory Store used by engine and synchronizer tests.
// Semantics mirror SQLStore: equality filters, soft delete, move by sort
// offset, translation derivation by row copy.
type MemStore struct {
	mu     sync.Mutex
	tables map[string]map[int64]Row
	nextID map[string]int64
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		tables: map[string]map[int64]Row{},
		nextID: map[string]int64{},
	}
}

// Seed inserts a row with an explicit id, for test fixtures.
func (m *MemStore) Seed(table string, id int64, values Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tableLocked(table)
	row := make(Row, len(values)+1)
	for k, v := range values {
		row[k] = v
	}
	row[ColID] = id
	rows[id] = row
	if id >= m.nextID[table] {
		m.nextID[table] = id + 1
	}
}

// Get returns a copy of a stored row for assertions.
func (m *MemStore) Get(table string, id int64) (Row, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.tableLocked(table)[id]
	if !ok {
		return nil, false
	}
	return copyRow(row), true
}

func (m *MemStore) tableLocked(table string) map[int64]Row {
	rows, ok := m.tables[table]
	if !ok {
		rows = map[int64]Row{}
		m.tables[table] = rows
		m.nextID[table] = 1
	}
	return rows
}

func copyRow(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func matches(row Row, filter Filter) bool {
	for col, want := range filter {
		have, ok := row[col]
		if !ok {
			if want == nil {
				continue
			}
			// Unset bookkeeping columns compare as zero.
			if n, isInt := normalizeInt(want); isInt && n == 0 {
				continue
			}
			return false
		}
		if wantN, ok1 := normalizeInt(want); ok1 {
			if haveN, ok2 := normalizeInt(have); ok2 {
				if wantN == haveN {
					continue
				}
				return false
			}
		}
		if have != want {
			return false
		}
	}
	return true
}

func normalizeInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case DraftState:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func (m *MemStore) Insert(_ context.Context, table string, values map[string]any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tableLocked(table)
	id := m.nextID[table]
	m.nextID[table] = id + 1

	row := make(Row, len(values)+1)
	for k, v := range values {
		row[k] = v
	}
	row[ColID] = id
	rows[id] = row
	return id, nil
}

func (m *MemStore) Update(_ context.Context, table string, rowID int64, values map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.tableLocked(table)[rowID]
	if !ok {
		return ErrNotFound
	}
	for k, v := range values {
		row[k] = v
	}
	return nil
}

func (m *MemStore) Delete(_ context.Context, table string, rowID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.tableLocked(table)[rowID]
	if !ok {
		return ErrNotFound
	}
	row[ColDeleted] = int64(1)
	return nil
}

func (m *MemStore) SelectOne(_ context.Context, table string, filter Filter) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.sortedIDsLocked(table) {
		row := m.tables[table][id]
		if matches(row, filter) {
			return copyRow(row), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemStore) SelectMany(_ context.Context, table string, filter Filter) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Row
	for _, id := range m.sortedIDsLocked(table) {
		row := m.tables[table][id]
		if matches(row, filter) {
			out = append(out, copyRow(row))
		}
	}
	return out, nil
}

func (m *MemStore) sortedIDsLocked(table string) []int64 {
	rows := m.tableLocked(table)
	ids := make([]int64, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *MemStore) MaxValue(_ context.Context, table, column string, filter Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max int64
	for _, row := range m.tableLocked(table) {
		if !matches(row, filter) {
			continue
		}
		if v := row.Int(column); v > max {
			max = v
		}
	}
	return max, nil
}

func (m *MemStore) Move(ctx context.Context, table string, rowID, targetID int64, dir MoveDirection) error {
	target, err := m.SelectOne(ctx, table, Filter{ColID: targetID})
	if err != nil {
		return err
	}
	sortVal := target.Int(ColSort)
	if dir == MoveAfter {
		sortVal += moveOffset
	} else {
		sortVal -= moveOffset
	}
	return m.Update(ctx, table, rowID, map[string]any{ColSort: sortVal})
}

func (m *MemStore) DeriveTranslation(ctx context.Context, table string, rowID, liveID, localeID int64, parentField string) (int64, error) {
	source, err := m.SelectOne(ctx, table, Filter{ColID: rowID})
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
	return m.Insert(ctx, table, values)
}
