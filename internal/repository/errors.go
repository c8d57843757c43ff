package repository

import (
	"fmt"

	"github.com/hitoshi/yoyakuba/internal/database"
	"github.com/hitoshi/yoyakuba/internal/model"
)

// normalizeError はドライバ固有の制約違反エラーをドメインのセンチネルへ正規化する。
// 制約違反以外のエラーは文脈を付けてそのまま返す（ログ用途。APIレスポンスには載せない）。
func normalizeError(d database.Dialect, op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case d.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, model.ErrDuplicate)
	case d.IsForeignKeyViolation(err):
		return fmt.Errorf("%s: %w", op, model.ErrForeignKey)
	}
	return fmt.Errorf("%s: %w", op, err)
}
