// Package repository はデータ永続化のインターフェースと実装を定義する。
// 各リポジトリはSQLエグゼキュータの上に構築され、方言を意識しない。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/yoyakuba/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成し、採番されたIDを返す。
	// Password（平文）はハッシュ化してから格納する。
	Create(ctx context.Context, u *model.User, password string) (int64, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByGoogleID はGoogleアカウントIDでユーザーを検索する。見つからない場合はnilを返す。
	FindByGoogleID(ctx context.Context, googleID string) (*model.User, error)

	// LinkGoogleID はユーザーにGoogleアカウントIDを紐付ける。
	LinkGoogleID(ctx context.Context, userID int64, googleID string) error

	// Update は許可フィールドのみの部分更新を行う。
	// fieldsに含まれないカラムは変更しない。"password"が含まれる場合は
	// ハッシュ化してpassword_hashへ格納する（平文は保存しない）。
	Update(ctx context.Context, id int64, fields map[string]any) error

	// List はフィルタ条件付きでユーザー一覧と総件数を返す。
	List(ctx context.Context, f UserFilter) ([]*model.User, int64, error)
}

// ProviderRepository はプロバイダープロフィールの永続化インターフェース。
type ProviderRepository interface {
	// Create はプロバイダープロフィールを作成し、採番されたIDを返す。
	Create(ctx context.Context, p *model.Provider) (int64, error)

	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Provider, error)

	// FindByUserID はユーザーIDでプロフィールを検索する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID int64) (*model.Provider, error)

	// Update は許可フィールドのみの部分更新を行う。
	Update(ctx context.Context, id int64, fields map[string]any) error

	// Search は検索条件に合致するプロバイダーの現在ページと総件数を返す。
	// COUNTとページ取得は同一のWHERE句から構築する。
	Search(ctx context.Context, f SearchFilter) ([]*model.ProviderWithUser, int64, error)

	// Specializations は登録済みの専門分野一覧を返す。
	Specializations(ctx context.Context) ([]string, error)

	// Stats はアクティブなプロバイダーの統計情報を返す。
	Stats(ctx context.Context) (*model.ProviderStats, error)
}

// BookingRepository は予約データの永続化インターフェース。
type BookingRepository interface {
	// Create は予約を作成し、採番されたIDを返す。
	Create(ctx context.Context, b *model.Booking) (int64, error)

	// FindByID は指定IDの予約を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Booking, error)

	// ListByClient はクライアントの予約一覧を予約日時の降順で返す。
	ListByClient(ctx context.Context, clientID int64) ([]*model.Booking, error)

	// ListByProvider はプロバイダーの予約一覧を予約日時の降順で返す。
	ListByProvider(ctx context.Context, providerID int64) ([]*model.Booking, error)

	// List はステータスフィルタ付きで予約一覧と総件数を返す（管理者用）。
	List(ctx context.Context, f BookingFilter) ([]*model.Booking, int64, error)

	// Update は許可フィールドのみの部分更新を行う。
	Update(ctx context.Context, id int64, fields map[string]any) error
}

// ReviewRepository はレビューデータの永続化インターフェース。
type ReviewRepository interface {
	// Create はレビューを登録し、同一トランザクション内でプロバイダーの
	// 集計値（rating、total_reviews）を再計算して書き戻す。
	// レビュー行と集計更新は両方コミットされるか両方ロールバックされる。
	Create(ctx context.Context, r *model.Review) (int64, error)

	// FindByBookingID は予約IDでレビューを検索する。見つからない場合はnilを返す。
	FindByBookingID(ctx context.Context, bookingID int64) (*model.Review, error)

	// ListByProvider はプロバイダーのレビュー一覧を新しい順に返す。
	// limitが0以下の場合は全件を返す。
	ListByProvider(ctx context.Context, providerID int64, limit int) ([]*model.Review, error)
}

// MessageRepository はメッセージデータの永続化インターフェース。
type MessageRepository interface {
	// Create はメッセージを作成し、採番されたIDを返す。
	Create(ctx context.Context, m *model.Message) (int64, error)

	// FindByID は指定IDのメッセージを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Message, error)

	// ListByUser はユーザーが送信または受信したメッセージを古い順に返す。
	// bookingIDが0より大きい場合はその予約に絞り込む。
	ListByUser(ctx context.Context, userID, bookingID int64) ([]*model.Message, error)

	// MarkRead は受信者本人のメッセージを既読にする。
	// 対象行がない場合（受信者不一致を含む）はfalseを返す。
	MarkRead(ctx context.Context, messageID, receiverID int64) (bool, error)
}

// OTPRepository はワンタイムパスコードの永続化インターフェース。
type OTPRepository interface {
	// Create は新しいコードを発行する。同一ユーザーの未使用コードの無効化と
	// 新規コードの登録を同一トランザクションで行う。
	Create(ctx context.Context, o *model.OTP) (int64, error)

	// FindValid は未使用かつ有効期限内のコードを検索する。見つからない場合はnilを返す。
	FindValid(ctx context.Context, userID int64, code string, now time.Time) (*model.OTP, error)

	// MarkUsed はコードを使用済みにする。
	MarkUsed(ctx context.Context, id int64) error

	// DeleteExpired は期限切れのコードを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
