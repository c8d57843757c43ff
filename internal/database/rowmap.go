package database

import (
	"time"
)

// RowMap は1行分の列名→値のマッピング。Columnsで結果セットの列順を保持する。
// 方言ごとの表現差（SQLiteの0/1真偽値、テキスト形式のタイムスタンプ）は
// 型付きアクセサで正規化する。
type RowMap struct {
	Columns []string
	values  map[string]any
}

// sqliteのタイムスタンプ表現の候補。先頭から順に解釈を試みる。
var timeFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Has は列が存在するかを返す。
func (r *RowMap) Has(col string) bool {
	_, ok := r.values[col]
	return ok
}

// Get は列の生の値を返す。列が存在しない、またはNULLの場合はnil。
func (r *RowMap) Get(col string) any {
	return r.values[col]
}

// String は列を文字列として返す。NULLの場合は空文字列。
func (r *RowMap) String(col string) string {
	switch v := r.values[col].(type) {
	case string:
		return v
	}
	return ""
}

// Int64 は列を整数として返す。NULLの場合は0。
func (r *RowMap) Int64(col string) int64 {
	switch v := r.values[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Int は列をintとして返す。NULLの場合は0。
func (r *RowMap) Int(col string) int {
	return int(r.Int64(col))
}

// Float64 は列を浮動小数点数として返す。NULLの場合は0.0。
func (r *RowMap) Float64(col string) float64 {
	switch v := r.values[col].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

// Bool は列を真偽値として返す。
// PostgreSQLのネイティブ真偽値とSQLiteの0/1整数の両方を受け付ける。
func (r *RowMap) Bool(col string) bool {
	switch v := r.values[col].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case string:
		return v == "1" || v == "t" || v == "true"
	}
	return false
}

// Time は列をUTCのtime.Timeとして返す。
// PostgreSQLのネイティブタイムスタンプとSQLiteのテキスト表現の両方を受け付ける。
// 解釈できない場合はゼロ値。
func (r *RowMap) Time(col string) time.Time {
	switch v := r.values[col].(type) {
	case time.Time:
		return v.UTC()
	case string:
		for _, layout := range timeFormats {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}
