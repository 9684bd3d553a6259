package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Row — строка таблицы в виде JSON-объекта (результат to_jsonb).
// Ключи — имена колонок, значения — string, float64, bool или nil.
type Row map[string]any

// ID возвращает значение колонки id как строку.
func (r Row) ID() string {
	s, _ := r["id"].(string)
	return s
}

// String возвращает строковое значение колонки или "".
func (r Row) String(col string) string {
	s, _ := r[col].(string)
	return s
}

// Filter — условия выборки Select.
type Filter struct {
	// Eq — равенство колонок (nil означает IS NULL)
	Eq map[string]any
	// OrderBy — колонка сортировки (пусто — без сортировки)
	OrderBy string
	// Desc — сортировка по убыванию
	Desc bool
	// Limit — ограничение количества строк (0 — без ограничения)
	Limit int
}

// TableStore — обобщённый доступ к таблицам хранилища:
// выборка по фильтру и мутации insert/update/delete/upsert по id.
// Имена таблиц и колонок экранируются через pgx.Identifier,
// значения передаются только параметрами.
type TableStore interface {
	// Select возвращает строки таблицы по фильтру. Пустая выборка — пустой срез.
	Select(ctx context.Context, table string, f Filter) ([]Row, error)
	// Get возвращает строку по id. Если не найдена — ErrNotFound.
	Get(ctx context.Context, table, id string) (Row, error)
	// Insert вставляет строку и возвращает её вместе с колонками по умолчанию.
	Insert(ctx context.Context, table string, row Row) (Row, error)
	// Update обновляет строку по id. Если не найдена — ErrNotFound.
	Update(ctx context.Context, table, id string, row Row) (Row, error)
	// UpdateWhere обновляет все строки, удовлетворяющие eq, и возвращает их количество.
	UpdateWhere(ctx context.Context, table string, eq map[string]any, row Row) (int64, error)
	// Upsert вставляет строку или обновляет существующую по conflictColumn.
	Upsert(ctx context.Context, table, conflictColumn string, row Row) (Row, error)
	// Delete удаляет строку по id. Если не найдена — ErrNotFound.
	Delete(ctx context.Context, table, id string) error
	// Count возвращает количество строк, удовлетворяющих eq.
	Count(ctx context.Context, table string, eq map[string]any) (int64, error)
	// Increment атомарно увеличивает целочисленную колонку на 1.
	Increment(ctx context.Context, table, id, column string) (Row, error)
}

type tableStore struct {
	db DBTX
}

// NewTableStore создаёт обобщённое хранилище таблиц поверх db.
func NewTableStore(db DBTX) TableStore {
	return &tableStore{db: db}
}

func (s *tableStore) Select(ctx context.Context, table string, f Filter) (rows []Row, err error) {
	defer observe(table, "select", time.Now(), &err)

	where, args := buildWhere(f.Eq, 1)
	query := fmt.Sprintf("SELECT to_jsonb(t) FROM %s AS t%s", ident(table), where)
	if f.OrderBy != "" {
		query += " ORDER BY t." + ident(f.OrderBy)
		if f.Desc {
			query += " DESC"
		}
	}
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	pgRows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки из %s: %w", table, err)
	}
	defer pgRows.Close()

	rows = make([]Row, 0)
	for pgRows.Next() {
		var m map[string]any
		if err := pgRows.Scan(&m); err != nil {
			return nil, fmt.Errorf("ошибка сканирования %s: %w", table, err)
		}
		rows = append(rows, Row(m))
	}
	if err := pgRows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка выборки из %s: %w", table, err)
	}
	return rows, nil
}

func (s *tableStore) Get(ctx context.Context, table, id string) (row Row, err error) {
	defer observe(table, "get", time.Now(), &err)

	query := fmt.Sprintf("SELECT to_jsonb(t) FROM %s AS t WHERE t.id = $1", ident(table))
	return s.queryRow(ctx, table, query, id)
}

func (s *tableStore) Insert(ctx context.Context, table string, row Row) (result Row, err error) {
	defer observe(table, "insert", time.Now(), &err)

	query, args := buildInsert(table, row)
	query += " RETURNING to_jsonb(t)"
	return s.queryRow(ctx, table, query, args...)
}

func (s *tableStore) Update(ctx context.Context, table, id string, row Row) (result Row, err error) {
	defer observe(table, "update", time.Now(), &err)

	set, args := buildSet(row, 1)
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s AS t SET %s WHERE t.id = $%d RETURNING to_jsonb(t)",
		ident(table), set, len(args))
	return s.queryRow(ctx, table, query, args...)
}

func (s *tableStore) UpdateWhere(ctx context.Context, table string, eq map[string]any, row Row) (n int64, err error) {
	defer observe(table, "update", time.Now(), &err)

	set, args := buildSet(row, 1)
	where, whereArgs := buildWhere(eq, len(args)+1)
	args = append(args, whereArgs...)
	query := fmt.Sprintf("UPDATE %s AS t SET %s%s", ident(table), set, where)

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, wrapWriteError(table, err)
	}
	return tag.RowsAffected(), nil
}

func (s *tableStore) Upsert(ctx context.Context, table, conflictColumn string, row Row) (result Row, err error) {
	defer observe(table, "upsert", time.Now(), &err)

	query, args := buildInsert(table, row)

	updates := make([]string, 0, len(row)+1)
	for _, col := range sortedKeys(row) {
		if col == conflictColumn {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", ident(col), ident(col)))
	}
	if _, ok := row["updated_at"]; !ok {
		updates = append(updates, `"updated_at" = NOW()`)
	}
	query += fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s RETURNING to_jsonb(t)",
		ident(conflictColumn), strings.Join(updates, ", "))
	return s.queryRow(ctx, table, query, args...)
}

func (s *tableStore) Delete(ctx context.Context, table, id string) (err error) {
	defer observe(table, "delete", time.Now(), &err)

	query := fmt.Sprintf("DELETE FROM %s AS t WHERE t.id = $1", ident(table))
	tag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return wrapWriteError(table, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s[%s]: %w", table, id, ErrNotFound)
	}
	return nil
}

func (s *tableStore) Count(ctx context.Context, table string, eq map[string]any) (n int64, err error) {
	defer observe(table, "count", time.Now(), &err)

	where, args := buildWhere(eq, 1)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s AS t%s", ident(table), where)
	if err := s.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта %s: %w", table, err)
	}
	return n, nil
}

func (s *tableStore) Increment(ctx context.Context, table, id, column string) (row Row, err error) {
	defer observe(table, "increment", time.Now(), &err)

	col := ident(column)
	query := fmt.Sprintf("UPDATE %s AS t SET %s = t.%s + 1 WHERE t.id = $1 RETURNING to_jsonb(t)",
		ident(table), col, col)
	return s.queryRow(ctx, table, query, id)
}

// queryRow выполняет запрос, возвращающий одну строку to_jsonb(t).
func (s *tableStore) queryRow(ctx context.Context, table, query string, args ...any) (Row, error) {
	var m map[string]any
	if err := s.db.QueryRow(ctx, query, args...).Scan(&m); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", table, ErrNotFound)
		}
		return nil, wrapWriteError(table, err)
	}
	return Row(m), nil
}

// --- Построение SQL ---

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// buildWhere возвращает " WHERE ..." (или "") и аргументы, нумерация с argStart.
func buildWhere(eq map[string]any, argStart int) (string, []any) {
	if len(eq) == 0 {
		return "", nil
	}
	conds := make([]string, 0, len(eq))
	args := make([]any, 0, len(eq))
	for _, col := range sortedKeys(eq) {
		v := eq[col]
		if v == nil {
			conds = append(conds, fmt.Sprintf("t.%s IS NULL", ident(col)))
			continue
		}
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("t.%s = $%d", ident(col), argStart+len(args)-1))
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// buildSet возвращает список присваиваний для UPDATE. Колонка id не изменяется,
// updated_at выставляется в NOW(), если не передана явно.
func buildSet(row Row, argStart int) (string, []any) {
	sets := make([]string, 0, len(row)+1)
	args := make([]any, 0, len(row))
	for _, col := range sortedKeys(row) {
		if col == "id" {
			continue
		}
		args = append(args, row[col])
		sets = append(sets, fmt.Sprintf("%s = $%d", ident(col), argStart+len(args)-1))
	}
	if _, ok := row["updated_at"]; !ok {
		sets = append(sets, `"updated_at" = NOW()`)
	}
	return strings.Join(sets, ", "), args
}

func buildInsert(table string, row Row) (string, []any) {
	if len(row) == 0 {
		return fmt.Sprintf("INSERT INTO %s AS t DEFAULT VALUES", ident(table)), nil
	}
	cols := make([]string, 0, len(row))
	placeholders := make([]string, 0, len(row))
	args := make([]any, 0, len(row))
	for _, col := range sortedKeys(row) {
		args = append(args, row[col])
		cols = append(cols, ident(col))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	return fmt.Sprintf("INSERT INTO %s AS t (%s) VALUES (%s)",
		ident(table), strings.Join(cols, ", "), strings.Join(placeholders, ", ")), args
}

func wrapWriteError(table string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w: %w", table, ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", table, err)
}

// observe записывает метрики операции. Отсутствие строки ошибкой хранилища не считается.
func observe(table, operation string, start time.Time, err *error) {
	storeOperationDuration.WithLabelValues(table, operation).Observe(time.Since(start).Seconds())
	if *err != nil && !errors.Is(*err, ErrNotFound) {
		storeOperationErrors.WithLabelValues(table, operation).Inc()
	}
}
