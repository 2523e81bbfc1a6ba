package storage

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-records/internal/dbexec"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLStore(dbexec.NewStandardExecutor(db)), mock
}

func TestSQLStore_Insert(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `content` (`container_id`,`header`) VALUES (?,?)")).
		WithArgs(int64(10), "Hi").
		WillReturnResult(sqlmock.NewResult(42, 1))

	id, err := store.Insert(context.Background(), "content", map[string]any{
		"header":     "Hi",
		ColContainer: int64(10),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_Update(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `content` SET `header` = ? WHERE `id` = ?")).
		WithArgs("Updated", int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Update(context.Background(), "content", 42, map[string]any{"header": "Updated"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_UpdateEmptySet(t *testing.T) {
	store, _ := newMockStore(t)
	err := store.Update(context.Background(), "content", 42, nil)
	assert.Error(t, err)
}

func TestSQLStore_DeleteIsSoft(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `content` SET `deleted` = ? WHERE `id` = ?")).
		WithArgs(1, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Delete(context.Background(), "content", 42)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_DeleteMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `content` SET `deleted` = ? WHERE `id` = ?")).
		WithArgs(1, int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Delete(context.Background(), "content", 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStore_SelectOne(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `content` WHERE `id` = ? LIMIT 1")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "header", "draft_origin_id"}).
			AddRow(int64(42), []byte("Hi"), int64(0)))

	row, err := store.SelectOne(context.Background(), "content", Filter{ColID: int64(42)})
	require.NoError(t, err)
	assert.Equal(t, int64(42), row.Int(ColID))
	assert.Equal(t, "Hi", row.String("header"), "byte slices scan to strings")
	assert.Equal(t, int64(0), row.Int(ColDraftOrigin))
}

func TestSQLStore_SelectOneNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `content` WHERE `id` = ? LIMIT 1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.SelectOne(context.Background(), "content", Filter{ColID: int64(7)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStore_MaxValue(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(`sorting`), 0) FROM `content` WHERE `container_id` = ?")).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(int64(256)))

	max, err := store.MaxValue(context.Background(), "content", ColSort, Filter{ColContainer: int64(10)})
	require.NoError(t, err)
	assert.Equal(t, int64(256), max)
}

func TestSQLStore_MoveAfter(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `content` WHERE `id` = ? LIMIT 1")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sorting"}).AddRow(int64(5), int64(128)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `content` SET `sorting` = ? WHERE `id` = ?")).
		WithArgs(int64(128+moveOffset), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Move(context.Background(), "content", 42, 5, MoveAfter)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_DeriveTranslation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `content` WHERE `id` = ? LIMIT 1")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "header", "locale_id", "translation_parent_id"}).
			AddRow(int64(42), []byte("Hi"), int64(0), int64(0)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `content` (`header`,`locale_id`,`translation_parent_id`) VALUES (?,?,?)")).
		WithArgs("Hi", int64(2), int64(42)).
		WillReturnResult(sqlmock.NewResult(77, 1))

	id, err := store.DeriveTranslation(context.Background(), "content", 42, 42, 2, "")
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}
