package repository

import (
	"context"
	"time"

	"github.com/hitoshi/yoyakuba/internal/database"
	"github.com/hitoshi/yoyakuba/internal/model"
)

type reviewRepo struct {
	db *database.DB
}

// NewReviewRepo はレビューリポジトリを生成する。
func NewReviewRepo(db *database.DB) ReviewRepository {
	return &reviewRepo{db: db}
}

// Create はレビュー行の登録とプロバイダー集計値の再計算を
// 同一トランザクションで行う。集計はアプリ側で読み戻して計算するのではなく、
// レビューテーブルからの副問い合わせで更新するため、並行する登録があっても
// 最後にコミットした値はその時点の全レビューを反映する。
// 行ロックをサポートするバックエンドでは、同一プロバイダーへの並行登録で
// 副問い合わせが古いスナップショットを見ないよう、先にプロバイダー行を
// ロックして集計の再計算を直列化する（SQLiteは単一コネクションで直列化済み）。
func (r *reviewRepo) Create(ctx context.Context, rv *model.Review) (int64, error) {
	var id int64
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		if r.db.Dialect().SupportsRowLock() {
			if _, err := tx.GetMap(ctx,
				`SELECT id FROM providers WHERE id = ? FOR UPDATE`, rv.ProviderID,
			); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		newID, err := tx.InsertID(ctx,
			`INSERT INTO reviews (booking_id, provider_id, client_id, rating, comment, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rv.BookingID, rv.ProviderID, rv.ClientID, rv.Rating, rv.Comment, now,
		)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE providers
			 SET rating = (SELECT AVG(rating) FROM reviews WHERE provider_id = ?),
			     total_reviews = (SELECT COUNT(*) FROM reviews WHERE provider_id = ?),
			     updated_at = ?
			 WHERE id = ?`,
			rv.ProviderID, rv.ProviderID, now, rv.ProviderID,
		); err != nil {
			return err
		}

		id = newID
		return nil
	})
	if err != nil {
		return 0, normalizeError(r.db.Dialect(), "failed to create review", err)
	}
	return id, nil
}

func (r *reviewRepo) FindByBookingID(ctx context.Context, bookingID int64) (*model.Review, error) {
	row, err := r.db.GetMap(ctx, `SELECT * FROM reviews WHERE booking_id = ?`, bookingID)
	if err != nil {
		return nil, normalizeError(r.db.Dialect(), "failed to find review", err)
	}
	if row == nil {
		return nil, nil
	}
	return reviewFromRow(row), nil
}

func (r *reviewRepo) ListByProvider(ctx context.Context, providerID int64, limit int) ([]*model.Review, error) {
	query := `SELECT * FROM reviews WHERE provider_id = ? ORDER BY created_at DESC, id DESC`
	args := []any{providerID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.SelectMaps(ctx, query, args...)
	if err != nil {
		return nil, normalizeError(r.db.Dialect(), "failed to list reviews", err)
	}

	reviews := make([]*model.Review, 0, len(rows))
	for _, row := range rows {
		reviews = append(reviews, reviewFromRow(row))
	}
	return reviews, nil
}

func reviewFromRow(row *database.RowMap) *model.Review {
	return &model.Review{
		ID:         row.Int64("id"),
		BookingID:  row.Int64("booking_id"),
		ProviderID: row.Int64("provider_id"),
		ClientID:   row.Int64("client_id"),
		Rating:     row.Int("rating"),
		Comment:    row.String("comment"),
		CreatedAt:  row.Time("created_at"),
	}
}
