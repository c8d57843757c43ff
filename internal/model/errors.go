package model

import (
	"errors"
	"fmt"
)

// リポジトリ層が返すドメインエラー。
// ドライバ固有のエラー文字列はリポジトリの外に漏らさず、これらに正規化する。
var (
	// ErrDuplicate はユニーク制約違反（username/email重複、予約への二重レビュー等）を表す。
	ErrDuplicate = errors.New("duplicate entry")
	// ErrNotFound は対象行が存在しないことを表す。
	ErrNotFound = errors.New("not found")
	// ErrForeignKey は参照先の行が存在しないことを表す。
	ErrForeignKey = errors.New("referenced row not found")
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, booking, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeInvalidRole       = "INVALID_ROLE"
	ErrCodeDuplicateUser     = "DUPLICATE_USER"
	ErrCodeInvalidCredential = "INVALID_CREDENTIALS"
	ErrCodeAccountInactive   = "ACCOUNT_INACTIVE"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeProviderNotFound  = "PROVIDER_NOT_FOUND"
	ErrCodeBookingNotFound   = "BOOKING_NOT_FOUND"
	ErrCodeMessageNotFound   = "MESSAGE_NOT_FOUND"
	ErrCodeAccessDenied      = "ACCESS_DENIED"
	ErrCodeInvalidStatus     = "INVALID_STATUS"
	ErrCodeInvalidTransition = "INVALID_STATUS_TRANSITION"
	ErrCodeReviewNotAllowed  = "REVIEW_NOT_ALLOWED"
	ErrCodeDuplicateReview   = "DUPLICATE_REVIEW"
	ErrCodeInvalidOTP        = "INVALID_OTP"
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidRoleError は不正な役割指定エラーを生成する。
func NewInvalidRoleError(role string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("無効な役割です: %s", role),
		Category: "validation",
		Action:   "client またはプロバイダー役割のいずれかを指定してください。",
	}
}

// NewDuplicateUserError はユーザー名/メールアドレス重複エラーを生成する。
func NewDuplicateUserError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUser,
		Message:  fmt.Sprintf("この%sは既に使用されています。", field),
		Category: "validation",
		Action:   "別の値を指定してください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredential,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewAccountInactiveError は無効化済みアカウントエラーを生成する。
func NewAccountInactiveError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountInactive,
		Message:  "このアカウントは無効化されています。",
		Category: "auth",
		Action:   "管理者にお問い合わせください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewProviderNotFoundError はプロバイダー未検出エラーを生成する。
func NewProviderNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeProviderNotFound,
		Message:  "指定されたプロバイダーが見つかりません。",
		Category: "booking",
		Action:   "プロバイダーIDを確認してください。",
	}
}

// NewBookingNotFoundError は予約未検出エラーを生成する。
func NewBookingNotFoundError(bookingID int64) *APIError {
	return &APIError{
		Code:     ErrCodeBookingNotFound,
		Message:  fmt.Sprintf("指定された予約が見つかりません: %d", bookingID),
		Category: "booking",
		Action:   "予約IDを確認してください。",
	}
}

// NewMessageNotFoundError はメッセージ未検出エラーを生成する。
func NewMessageNotFoundError(messageID int64) *APIError {
	return &APIError{
		Code:     ErrCodeMessageNotFound,
		Message:  fmt.Sprintf("指定されたメッセージが見つかりません: %d", messageID),
		Category: "validation",
		Action:   "メッセージIDを確認してください。",
	}
}

// NewAccessDeniedError はアクセス権限エラーを生成する。
func NewAccessDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccessDenied,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "自分に権限のあるリソースに対して操作してください。",
	}
}

// NewInvalidStatusError は不正な予約ステータスエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効な予約ステータスです: %s", status),
		Category: "validation",
		Action:   "pending、confirmed、completed、cancelled のいずれかを指定してください。",
	}
}

// NewInvalidTransitionError は許可されない状態遷移エラーを生成する。
func NewInvalidTransitionError(from, to BookingStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("予約ステータスを %s から %s へ変更することはできません。", from, to),
		Category: "booking",
		Action:   "完了・キャンセル済みの予約のステータスは変更できません。",
	}
}

// NewReviewNotAllowedError はレビュー不可エラーを生成する。
func NewReviewNotAllowedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeReviewNotAllowed,
		Message:  fmt.Sprintf("この予約にはレビューを投稿できません: %s", reason),
		Category: "booking",
		Action:   "完了済みの自分の予約に対してのみレビューを投稿できます。",
	}
}

// NewDuplicateReviewError はレビュー重複エラーを生成する。
func NewDuplicateReviewError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateReview,
		Message:  "この予約には既にレビューが投稿されています。",
		Category: "booking",
		Action:   "レビューは予約ごとに1件のみ投稿できます。",
	}
}

// NewInvalidOTPError は無効なワンタイムパスコードエラーを生成する。
func NewInvalidOTPError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidOTP,
		Message:  "ワンタイムパスコードが無効か、有効期限が切れています。",
		Category: "auth",
		Action:   "新しいコードを発行して再度お試しください。",
	}
}
