package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// runner は*sql.DBと*sql.Txの共通部分。
type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Executor は方言非依存のクエリ実行エントリポイント。
// クエリは正準プレースホルダ `?` で記述し、実行時に方言のプレースホルダへ
// 書き換える。行は列名→値のマッピングに正規化して返す。
type Executor struct {
	run     runner
	dialect Dialect
	metrics QueryRecorder
}

// Exec は行を返さないクエリを実行し、影響行数を返す。
func (e *Executor) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	defer e.observe("exec", time.Now())
	res, err := e.run.ExecContext(ctx, rewritePlaceholders(query, e.dialect), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// GetMap は1行を取得して列名→値のマッピングとして返す。
// 行が存在しない場合はnilを返す（エラーにしない）。
func (e *Executor) GetMap(ctx context.Context, query string, args ...any) (*RowMap, error) {
	defer e.observe("get", time.Now())
	rows, err := e.run.QueryContext(ctx, rewritePlaceholders(query, e.dialect), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	row, err := scanRowMap(rows)
	if err != nil {
		return nil, err
	}
	return row, rows.Err()
}

// SelectMaps は全行を取得して列名→値のマッピングのスライスとして返す。
// 行が存在しない場合は空スライスを返す。
func (e *Executor) SelectMaps(ctx context.Context, query string, args ...any) ([]*RowMap, error) {
	defer e.observe("select", time.Now())
	rows, err := e.run.QueryContext(ctx, rewritePlaceholders(query, e.dialect), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []*RowMap{}
	for rows.Next() {
		row, err := scanRowMap(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// GetInt は単一の整数値（COUNT(*)等）を取得する。
func (e *Executor) GetInt(ctx context.Context, query string, args ...any) (int64, error) {
	defer e.observe("get", time.Now())
	var v int64
	err := e.run.QueryRowContext(ctx, rewritePlaceholders(query, e.dialect), args...).Scan(&v)
	if err != nil {
		return 0, err
	}
	return v, nil
}

// InsertID はINSERTを実行し、採番された主キーを返す。
// RETURNING句が使える方言では `RETURNING id` を付加し、そうでない方言では
// ドライバの報告するlast-inserted-idを読む。呼び出し側のクエリは
// RETURNING句を含めないこと。
func (e *Executor) InsertID(ctx context.Context, query string, args ...any) (int64, error) {
	defer e.observe("insert", time.Now())
	q := rewritePlaceholders(query, e.dialect)

	if e.dialect.SupportsReturning() {
		var id int64
		if err := e.run.QueryRowContext(ctx, q+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	res, err := e.run.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

func (e *Executor) observe(op string, start time.Time) {
	if e.metrics != nil {
		e.metrics.RecordQuery(op, time.Since(start).Seconds())
	}
}

// scanRowMap は現在行をRowMapへ読み取る。
func scanRowMap(rows *sql.Rows) (*RowMap, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	values := make(map[string]any, len(cols))
	for i, col := range cols {
		v := raw[i]
		// ドライバが返す[]byteは文字列に正規化する
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		values[col] = v
	}
	return &RowMap{Columns: cols, values: values}, nil
}
