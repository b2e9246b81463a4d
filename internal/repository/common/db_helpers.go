package common

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Querier: чтение, общее для *sqlx.DB и *sqlx.Tx.
type Querier interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// GetOne читает одну строку. sql.ErrNoRows превращается в notFoundErr.
func GetOne[T any](ctx context.Context, q Querier, notFoundErr error, query string, args ...interface{}) (*T, error) {
	var row T
	err := q.GetContext(ctx, &row, query, args...)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, notFoundErr
	case err != nil:
		return nil, err
	}
	return &row, nil
}

// GetByID читает строку таблицы по первичному ключу.
func GetByID[T any](ctx context.Context, q Querier, table string, id interface{}, notFoundErr error) (*T, error) {
	row, err := GetOne[T](ctx, q, notFoundErr, "SELECT * FROM "+table+" WHERE id = $1", id)
	if err != nil && !errors.Is(err, notFoundErr) {
		return nil, fmt.Errorf("%s: get by id %w", table, err)
	}
	return row, err
}

// RowBatch копит дочерние строки задания и пишет их многострочным INSERT внутри транзакции.
type RowBatch struct {
	tx      *sqlx.Tx
	prefix  string
	columns int
	limit   int
	rows    int
	args    []interface{}
}

// NewRowBatch готовит вставку в table по списку колонок. limit: строк на один запрос.
func NewRowBatch(tx *sqlx.Tx, table string, columns []string, limit int) *RowBatch {
	if limit <= 0 {
		limit = 100
	}
	return &RowBatch{
		tx:      tx,
		prefix:  "INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ")",
		columns: len(columns),
		limit:   limit,
		args:    make([]interface{}, 0, limit*len(columns)),
	}
}

// Add добавляет строку и сбрасывает пачку, когда она заполнена.
func (b *RowBatch) Add(ctx context.Context, values ...interface{}) error {
	if len(values) != b.columns {
		return fmt.Errorf("row batch: want %d values, got %d", b.columns, len(values))
	}
	b.args = append(b.args, values...)
	b.rows++
	if b.rows < b.limit {
		return nil
	}
	return b.Flush(ctx)
}

// Flush пишет накопленные строки. Пустая пачка ничего не делает.
func (b *RowBatch) Flush(ctx context.Context) error {
	if b.rows == 0 {
		return nil
	}
	query := b.prefix + " VALUES " + Placeholders(b.rows, b.columns)
	if _, err := b.tx.ExecContext(ctx, query, b.args...); err != nil {
		return fmt.Errorf("row batch: %w", err)
	}
	b.args = b.args[:0]
	b.rows = 0
	return nil
}

// Placeholders строит список вида ($1, $2), ($3, $4).
func Placeholders(rows, fields int) string {
	groups := make([]string, rows)
	n := 1
	for i := range groups {
		cells := make([]string, fields)
		for j := range cells {
			cells[j] = fmt.Sprintf("$%d", n)
			n++
		}
		groups[i] = "(" + strings.Join(cells, ", ") + ")"
	}
	return strings.Join(groups, ", ")
}

// WithTransaction выполняет fn в транзакции: ошибка или паника откатывают её, иначе commit.
func WithTransaction(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
