// Package database はSQLiteとPostgreSQLの2方言を抽象化したデータアクセス層を提供する。
package database

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Kind はデータベースバックエンドの種別を表す。
type Kind string

const (
	// KindSQLite は組み込みファイルデータベース（ゼロコンフィグのデフォルト）。
	KindSQLite Kind = "sqlite"
	// KindPostgres はクライアント/サーバー型データベース。
	KindPostgres Kind = "postgres"
)

// DefaultSQLitePath はDATABASE_URL未指定時に使用するローカルファイルパス。
const DefaultSQLitePath = "yoyakuba.db"

// Dialect は方言ごとの差異を吸収するケーパビリティセット。
// 起動時に1回解決し、以降のクエリ実行で方言分岐を行わないようにする。
type Dialect interface {
	// Kind はバックエンド種別を返す。
	Kind() Kind
	// DriverName はdatabase/sqlに登録されたドライバ名を返す。
	DriverName() string
	// Placeholder はi番目（1始まり）のパラメータプレースホルダを返す。
	Placeholder(i int) string
	// SupportsReturning はINSERT ... RETURNING id が使用可能かを返す。
	// falseの場合は採番値をドライバのLastInsertIdから取得する。
	SupportsReturning() bool
	// SupportsRowLock はSELECT ... FOR UPDATE による行ロックが使用可能かを返す。
	// SQLiteはこの構文を持たないが、単一コネクションで書き込みが直列化される。
	SupportsRowLock() bool

	// DDLの方言差: 自動採番主キー、真偽値・浮動小数点数の型、真偽値リテラル。
	AutoIncrementPK() string
	BooleanType() string
	FloatType() string
	BooleanLiteral(b bool) string

	// エラー正規化。ドライバ固有エラーをドメインエラーへ分類するために使う。
	IsAlreadyExists(err error) bool
	IsUniqueViolation(err error) bool
	IsForeignKeyViolation(err error) bool
}

// ParseDatabaseURL は接続記述子を解析し、方言とドライバ用DSNを返す。
// 空文字列の場合はローカルのSQLiteファイルにフォールバックする。
// PostgreSQLのURLが不正な場合は起動時に失敗させる（初回クエリまで遅延させない）。
func ParseDatabaseURL(raw string) (Dialect, string, error) {
	switch {
	case raw == "":
		return sqliteDialect{}, DefaultSQLitePath, nil

	case strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://"):
		u, err := url.Parse(raw)
		if err != nil {
			return nil, "", fmt.Errorf("invalid postgres url: %w", err)
		}
		if u.Hostname() == "" {
			return nil, "", fmt.Errorf("invalid postgres url: missing host")
		}
		if port := u.Port(); port != "" {
			if _, err := strconv.Atoi(port); err != nil {
				return nil, "", fmt.Errorf("invalid postgres url: bad port %q", port)
			}
		}
		// lib/pq はURL形式のDSNをそのまま受け付ける
		return postgresDialect{}, raw, nil

	case strings.HasPrefix(raw, "sqlite:///"):
		path := strings.TrimPrefix(raw, "sqlite:///")
		if path == "" {
			path = DefaultSQLitePath
		}
		return sqliteDialect{}, path, nil

	default:
		// 未対応のスキームはファイルパスと誤認しないよう起動時に失敗させる
		if i := strings.Index(raw, "://"); i >= 0 {
			return nil, "", fmt.Errorf("unsupported database scheme %q", raw[:i])
		}
		// スキームなしはSQLiteのファイルパスとして扱う
		return sqliteDialect{}, raw, nil
	}
}

// sqliteDialect は組み込みバックエンド（modernc.org/sqlite）のケーパビリティセット。
type sqliteDialect struct{}

func (sqliteDialect) Kind() Kind              { return KindSQLite }
func (sqliteDialect) DriverName() string      { return "sqlite" }
func (sqliteDialect) Placeholder(i int) string { return "?" }
func (sqliteDialect) SupportsReturning() bool { return false }
func (sqliteDialect) SupportsRowLock() bool   { return false }
func (sqliteDialect) AutoIncrementPK() string { return "INTEGER PRIMARY KEY AUTOINCREMENT" }
func (sqliteDialect) BooleanType() string     { return "INTEGER" }
func (sqliteDialect) FloatType() string       { return "REAL" }

func (sqliteDialect) BooleanLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (sqliteDialect) IsAlreadyExists(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}

func (sqliteDialect) IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (sqliteDialect) IsForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// postgresDialect はクライアント/サーバーバックエンド（lib/pq）のケーパビリティセット。
type postgresDialect struct{}

func (postgresDialect) Kind() Kind              { return KindPostgres }
func (postgresDialect) DriverName() string      { return "postgres" }
func (postgresDialect) Placeholder(i int) string { return "$" + strconv.Itoa(i) }
func (postgresDialect) SupportsReturning() bool { return true }
func (postgresDialect) SupportsRowLock() bool   { return true }
func (postgresDialect) AutoIncrementPK() string { return "BIGSERIAL PRIMARY KEY" }
func (postgresDialect) BooleanType() string     { return "BOOLEAN" }
func (postgresDialect) FloatType() string       { return "DOUBLE PRECISION" }

func (postgresDialect) BooleanLiteral(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (postgresDialect) IsAlreadyExists(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 42P07=duplicate_table, 42P06=duplicate_schema, 42701=duplicate_column, 42710=duplicate_object
		switch pqErr.Code {
		case "42P07", "42P06", "42701", "42710":
			return true
		}
	}
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}

func (postgresDialect) IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (postgresDialect) IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

// rewritePlaceholders は正準プレースホルダ `?` を方言のプレースホルダに書き換える。
// クエリはアプリケーションが定義した定数のみを想定しており、文字列リテラル中の
// `?` は考慮しない（パラメータは常にバインド経由で渡すため発生しない）。
func rewritePlaceholders(query string, d Dialect) string {
	if d.Kind() == KindSQLite {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteString(d.Placeholder(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
