package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/yoyakuba/internal/database"
	"github.com/hitoshi/yoyakuba/internal/model"
)

// providerUpdatableColumns は部分更新で変更を許可するカラムの一覧。
// ratingとtotal_reviewsは集計値であり、レビュー登録時のトランザクション以外では
// 更新させない。
var providerUpdatableColumns = []string{
	"specialization", "experience_years", "license_number", "qualification",
	"bio", "consultation_fee", "hourly_rate", "is_verified", "is_active",
}

// searchSortColumns は検索ソートキーとソート対象カラムの対応。
// 未知のキーはratingと同じ扱いにする。ORDER BY句はこの表の値と
// 固定のASC/DESCのみから組み立て、利用者の入力をそのまま埋め込まない。
var searchSortColumns = map[string]string{
	"rating":     "p.rating",
	"fee":        "p.consultation_fee",
	"experience": "p.experience_years",
}

// searchOrderClause はソートキーと方向からORDER BY句の中身を組み立てる。
// 方向は明示的に "asc" を指定した場合のみ昇順、それ以外は降順とする。
func searchOrderClause(sortBy, sortOrder string) string {
	col, ok := searchSortColumns[sortBy]
	if !ok {
		col = searchSortColumns["rating"]
	}
	dir := " DESC"
	if strings.EqualFold(sortOrder, "asc") {
		dir = " ASC"
	}
	return col + dir
}

type providerRepo struct {
	db *database.DB
}

// NewProviderRepo はプロバイダーリポジトリを生成する。
func NewProviderRepo(db *database.DB) ProviderRepository {
	return &providerRepo{db: db}
}

func (r *providerRepo) Create(ctx context.Context, p *model.Provider) (int64, error) {
	now := time.Now().UTC()
	id, err := r.db.InsertID(ctx,
		`INSERT INTO providers (user_id, specialization, experience_years, license_number, qualification, bio, consultation_fee, hourly_rate, rating, total_reviews, is_verified, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Specialization, p.ExperienceYears, p.LicenseNumber,
		p.Qualification, p.Bio, p.ConsultationFee, p.HourlyRate,
		0.0, 0, p.IsVerified, p.IsActive, now, now,
	)
	if err != nil {
		return 0, normalizeError(r.db.Dialect(), "failed to create provider", err)
	}
	return id, nil
}

func (r *providerRepo) FindByID(ctx context.Context, id int64) (*model.Provider, error) {
	return r.findOne(ctx, `SELECT * FROM providers WHERE id = ?`, id)
}

func (r *providerRepo) FindByUserID(ctx context.Context, userID int64) (*model.Provider, error) {
	return r.findOne(ctx, `SELECT * FROM providers WHERE user_id = ?`, userID)
}

func (r *providerRepo) findOne(ctx context.Context, query string, args ...any) (*model.Provider, error) {
	row, err := r.db.GetMap(ctx, query, args...)
	if err != nil {
		return nil, normalizeError(r.db.Dialect(), "failed to find provider", err)
	}
	if row == nil {
		return nil, nil
	}
	return providerFromRow(row), nil
}

func (r *providerRepo) Update(ctx context.Context, id int64, fields map[string]any) error {
	sets := []string{}
	args := []any{}
	for _, col := range providerUpdatableColumns {
		if v, ok := fields[col]; ok {
			sets = append(sets, col+" = ?")
			args = append(args, v)
		}
	}
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	n, err := r.db.Exec(ctx, "UPDATE providers SET "+joinSets(sets)+" WHERE id = ?", args...)
	if err != nil {
		return normalizeError(r.db.Dialect(), "failed to update provider", err)
	}
	if n == 0 {
		return fmt.Errorf("failed to update provider: %w", model.ErrNotFound)
	}
	return nil
}

// searchColumns はプロフィールと公開ユーザー情報の結合結果の列。
// 両テーブルで名前が重複する列はユーザー側にu_プレフィックスを付ける。
const searchColumns = `p.id, p.user_id, p.specialization, p.experience_years,
	p.license_number, p.qualification, p.bio, p.consultation_fee, p.hourly_rate,
	p.rating, p.total_reviews, p.is_verified, p.is_active, p.created_at, p.updated_at,
	u.username AS u_username, u.email AS u_email, u.full_name AS u_full_name,
	u.phone AS u_phone, u.address AS u_address, u.city AS u_city,
	u.state AS u_state, u.pincode AS u_pincode`

func (r *providerRepo) Search(ctx context.Context, f SearchFilter) ([]*model.ProviderWithUser, int64, error) {
	from := " FROM providers p JOIN users u ON u.id = p.user_id"

	w := &whereBuilder{}
	w.add("p.is_active = ?", true)
	w.add("u.is_active = ?", true)
	if f.Role != "" {
		w.add("u.role = ?", string(f.Role))
	}
	if f.Specialization != "" {
		w.add("LOWER(p.specialization) LIKE ?", likePattern(f.Specialization))
	}
	if f.City != "" {
		w.add("LOWER(u.city) LIKE ?", likePattern(f.City))
	}
	if f.State != "" {
		w.add("LOWER(u.state) LIKE ?", likePattern(f.State))
	}
	if f.VerifiedOnly {
		w.add("p.is_verified = ?", true)
	}
	if f.MinRating > 0 {
		w.add("p.rating >= ?", f.MinRating)
	}
	if f.MinFee > 0 {
		w.add("p.consultation_fee >= ?", f.MinFee)
	}
	if f.MaxFee > 0 {
		w.add("p.consultation_fee <= ?", f.MaxFee)
	}
	if f.Query != "" {
		p := likePattern(f.Query)
		w.add(`(LOWER(u.full_name) LIKE ? OR LOWER(u.username) LIKE ? OR LOWER(p.specialization) LIKE ?
			OR LOWER(p.bio) LIKE ? OR LOWER(u.city) LIKE ? OR LOWER(u.state) LIKE ?)`,
			p, p, p, p, p, p)
	}

	// COUNTとページ取得は同一のWHERE句と引数を共有する
	total, err := r.db.GetInt(ctx, "SELECT COUNT(*)"+from+w.clause(), w.args...)
	if err != nil {
		return nil, 0, normalizeError(r.db.Dialect(), "failed to count providers", err)
	}

	order := searchOrderClause(f.SortBy, f.SortOrder)

	page, perPage := ClampPagination(f.Page, f.PerPage)
	args := append(append([]any{}, w.args...), perPage, (page-1)*perPage)
	rows, err := r.db.SelectMaps(ctx,
		"SELECT "+searchColumns+from+w.clause()+" ORDER BY "+order+", p.id ASC LIMIT ? OFFSET ?",
		args...)
	if err != nil {
		return nil, 0, normalizeError(r.db.Dialect(), "failed to search providers", err)
	}

	results := make([]*model.ProviderWithUser, 0, len(rows))
	for _, row := range rows {
		results = append(results, &model.ProviderWithUser{
			Provider: *providerFromRow(row),
			User: model.PublicUser{
				ID:       row.Int64("user_id"),
				Username: row.String("u_username"),
				Email:    row.String("u_email"),
				FullName: row.String("u_full_name"),
				Phone:    row.String("u_phone"),
				Address:  row.String("u_address"),
				City:     row.String("u_city"),
				State:    row.String("u_state"),
				Pincode:  row.String("u_pincode"),
			},
		})
	}
	return results, total, nil
}

func (r *providerRepo) Specializations(ctx context.Context) ([]string, error) {
	rows, err := r.db.SelectMaps(ctx,
		`SELECT DISTINCT specialization FROM providers
		 WHERE is_active = ? AND specialization IS NOT NULL AND specialization <> ''
		 ORDER BY specialization`, true)
	if err != nil {
		return nil, normalizeError(r.db.Dialect(), "failed to list specializations", err)
	}

	specs := make([]string, 0, len(rows))
	for _, row := range rows {
		specs = append(specs, row.String("specialization"))
	}
	return specs, nil
}

func (r *providerRepo) Stats(ctx context.Context) (*model.ProviderStats, error) {
	row, err := r.db.GetMap(ctx,
		`SELECT COUNT(*) AS total_providers,
		        COALESCE(SUM(CASE WHEN is_verified THEN 1 ELSE 0 END), 0) AS verified_providers,
		        COALESCE(AVG(CASE WHEN total_reviews > 0 THEN rating END), 0) AS average_rating
		 FROM providers WHERE is_active = ?`, true)
	if err != nil {
		return nil, normalizeError(r.db.Dialect(), "failed to get provider stats", err)
	}
	if row == nil {
		return &model.ProviderStats{}, nil
	}
	return &model.ProviderStats{
		TotalProviders:    row.Int("total_providers"),
		VerifiedProviders: row.Int("verified_providers"),
		AverageRating:     row.Float64("average_rating"),
	}, nil
}

func providerFromRow(row *database.RowMap) *model.Provider {
	return &model.Provider{
		ID:              row.Int64("id"),
		UserID:          row.Int64("user_id"),
		Specialization:  row.String("specialization"),
		ExperienceYears: row.Int("experience_years"),
		LicenseNumber:   row.String("license_number"),
		Qualification:   row.String("qualification"),
		Bio:             row.String("bio"),
		ConsultationFee: row.Float64("consultation_fee"),
		HourlyRate:      row.Float64("hourly_rate"),
		Rating:          row.Float64("rating"),
		TotalReviews:    row.Int("total_reviews"),
		IsVerified:      row.Bool("is_verified"),
		IsActive:        row.Bool("is_active"),
		CreatedAt:       row.Time("created_at"),
		UpdatedAt:       row.Time("updated_at"),
	}
}
