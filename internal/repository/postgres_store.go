package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Schema - таблица записей бота
const Schema = `
CREATE TABLE IF NOT EXISTS vcat_records (
	product_id TEXT NOT NULL,
	kind       TEXT NOT NULL,
	sort_key   TEXT NOT NULL,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (product_id, kind, sort_key)
)`

// PostgresStore - RecordStore поверх таблицы vcat_records
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore создает новый экземпляр хранилища
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema создает таблицу, если ее нет
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Get возвращает запись по ключу или ErrRecordNotFound
func (s *PostgresStore) Get(ctx context.Context, productID string, kind Kind, sortKey string) (*Record, error) {
	query := `
		SELECT payload
		FROM vcat_records
		WHERE product_id = $1 AND kind = $2 AND sort_key = $3`

	rec := &Record{ProductID: productID, Kind: kind, SortKey: sortKey}
	err := s.db.QueryRowContext(ctx, query, productID, string(kind), sortKey).Scan(&rec.Payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

const upsertQuery = `
	INSERT INTO vcat_records (product_id, kind, sort_key, payload, updated_at)
	VALUES ($1, $2, $3, $4, NOW())
	ON CONFLICT (product_id, kind, sort_key)
	DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`

// Put создает или перезаписывает запись
func (s *PostgresStore) Put(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, upsertQuery, rec.ProductID, string(rec.Kind), rec.SortKey, rec.Payload)
	return err
}

// PutBatch записывает все записи в одной транзакции
func (s *PostgresStore) PutBatch(ctx context.Context, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx, rec.ProductID, string(rec.Kind), rec.SortKey, rec.Payload); err != nil {
			return fmt.Errorf("put %s/%s/%s: %w", rec.ProductID, rec.Kind, rec.SortKey, err)
		}
	}

	return tx.Commit()
}

// Delete удаляет запись; отсутствие записи не ошибка
func (s *PostgresStore) Delete(ctx context.Context, productID string, kind Kind, sortKey string) error {
	query := `DELETE FROM vcat_records WHERE product_id = $1 AND kind = $2 AND sort_key = $3`
	_, err := s.db.ExecContext(ctx, query, productID, string(kind), sortKey)
	return err
}

// QueryRange возвращает записи с ключом в [from, to]
func (s *PostgresStore) QueryRange(ctx context.Context, productID string, kind Kind, from, to string, opts QueryOptions) ([]Record, error) {
	query := `
		SELECT sort_key, payload
		FROM vcat_records
		WHERE product_id = $1 AND kind = $2 AND sort_key BETWEEN $3 AND $4` + orderClause(opts)

	return s.query(ctx, productID, kind, query, productID, string(kind), from, to)
}

// QueryPrefix возвращает записи, ключ которых начинается с prefix
func (s *PostgresStore) QueryPrefix(ctx context.Context, productID string, kind Kind, prefix string, opts QueryOptions) ([]Record, error) {
	query := `
		SELECT sort_key, payload
		FROM vcat_records
		WHERE product_id = $1 AND kind = $2 AND sort_key LIKE $3 ESCAPE '\'` + orderClause(opts)

	return s.query(ctx, productID, kind, query, productID, string(kind), escapeLike(prefix)+"%")
}

func (s *PostgresStore) query(ctx context.Context, productID string, kind Kind, query string, args ...interface{}) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec := Record{ProductID: productID, Kind: kind}
		if err := rows.Scan(&rec.SortKey, &rec.Payload); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

func orderClause(opts QueryOptions) string {
	clause := " ORDER BY sort_key ASC"
	if opts.Descending {
		clause = " ORDER BY sort_key DESC"
	}
	if opts.Limit > 0 {
		clause += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	return clause
}

// escapeLike экранирует спецсимволы LIKE
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
