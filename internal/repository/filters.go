package repository

import (
	"strings"

	"github.com/hitoshi/yoyakuba/internal/model"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// ClampPagination はページ番号とページサイズを有効範囲へ丸める。
// 不正な値はエラーにせず、page < 1 は 1 に、per_page <= 0 は既定値に、
// 上限超過は上限に丸める。
func ClampPagination(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

// UserFilter はユーザー一覧（管理者用）の絞り込み条件。
type UserFilter struct {
	Role     model.Role
	IsActive *bool
	Query    string
	Page     int
	PerPage  int
}

// BookingFilter は予約一覧（管理者用）の絞り込み条件。
type BookingFilter struct {
	Status  model.BookingStatus
	Page    int
	PerPage int
}

// SearchFilter はプロバイダー検索の条件。ゼロ値のフィールドは条件に含めない。
type SearchFilter struct {
	Query          string
	Role           model.Role
	Specialization string
	City           string
	State          string
	MinRating      float64
	MinFee         float64
	MaxFee         float64
	VerifiedOnly   bool
	SortBy         string
	SortOrder      string
	Page           int
	PerPage        int
}

// whereBuilder はWHERE句の条件と引数を蓄積する。
// COUNTクエリとページ取得クエリが同一のWHERE句を共有するために使う。
type whereBuilder struct {
	conds []string
	args  []any
}

func (w *whereBuilder) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// clause は " WHERE ..." を返す。条件がない場合は空文字列。
func (w *whereBuilder) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// likePattern は部分一致検索用のLIKEパターンを作る。大文字小文字は区別しない。
func likePattern(s string) string {
	return "%" + strings.ToLower(s) + "%"
}

// joinSets はUPDATE文のSET句を組み立てる。
func joinSets(sets []string) string {
	return strings.Join(sets, ", ")
}
