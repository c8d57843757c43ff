package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// QueryRecorder はクエリ実行メトリクスの記録インターフェース。
// metricsパッケージが実装する。nilの場合は記録しない。
type QueryRecorder interface {
	RecordQuery(op string, seconds float64)
}

// DB は単一の論理データベースハンドル。
// 方言は起動時に1回解決し、リポジトリへ明示的に注入する（プロセス全体の
// 可変シングルトンは持たない）。
type DB struct {
	Executor
	conn    *sql.DB
	dialect Dialect
}

// Open は接続記述子を解析してデータベースハンドルを開く。
// 記述子が空の場合はローカルのSQLiteファイルにフォールバックする。
// sql.Openは接続を試行しないため、実際の接続確認にはPing()を使用すること。
func Open(databaseURL string) (*DB, error) {
	dialect, dsn, err := ParseDatabaseURL(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database dialect: %w", err)
	}

	if dialect.Kind() == KindSQLite {
		// 外部キー制約を有効化し、書き込み競合にはビジータイムアウトで対処する
		dsn = "file:" + dsn + "?_time_format=sqlite" +
			"&_pragma=" + url.QueryEscape("foreign_keys(1)") +
			"&_pragma=" + url.QueryEscape("busy_timeout(5000)")
	}

	conn, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect.Kind() == KindSQLite {
		// SQLiteは単一書き込みのため接続を1本に絞り、ロック競合を回避する
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(10)
	}

	db := &DB{conn: conn, dialect: dialect}
	db.Executor = Executor{run: conn, dialect: dialect}
	return db, nil
}

// Dialect は解決済みの方言ケーパビリティセットを返す。
func (db *DB) Dialect() Dialect { return db.dialect }

// Ping は接続確認を行う。
func (db *DB) Ping() error { return db.conn.Ping() }

// PingContext はコンテキスト付きで接続確認を行う。
func (db *DB) PingContext(ctx context.Context) error { return db.conn.PingContext(ctx) }

// Close は接続を閉じる。
func (db *DB) Close() error { return db.conn.Close() }

// SetRecorder はクエリメトリクスの記録先を設定する。
func (db *DB) SetRecorder(rec QueryRecorder) {
	db.Executor.metrics = rec
}

// Tx はトランザクションスコープのエグゼキュータ。
type Tx struct {
	Executor
	tx *sql.Tx
}

// WithTx はトランザクションスコープで操作を実行する。
// fnがエラーなしで完了した場合のみコミットし、エラーまたはpanicの場合は
// ロールバックする。接続はすべての経路で解放される。
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// fnがpanicした場合もロールバックさせる
	defer sqlTx.Rollback()

	tx := &Tx{tx: sqlTx}
	tx.Executor = Executor{run: sqlTx, dialect: db.dialect, metrics: db.Executor.metrics}

	if err := fn(tx); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
