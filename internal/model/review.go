package model

import "time"

// Review は完了済み予約に対する評価を表す。
// 1つの予約につき1件のみ（reviews.booking_idのユニーク制約で担保する）。
type Review struct {
	ID         int64     `json:"id"`
	BookingID  int64     `json:"booking_id"`
	ProviderID int64     `json:"provider_id"`
	ClientID   int64     `json:"client_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Message はユーザー間のメッセージを表す。予約に紐付く場合もある。
type Message struct {
	ID         int64     `json:"id"`
	BookingID  int64     `json:"booking_id,omitempty"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	Subject    string    `json:"subject,omitempty"`
	Content    string    `json:"content"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

// OTP はログイン時の二要素認証用ワンタイムパスコードを表す。
// 新しいコードの発行時に、同一ユーザーの未使用コードは無効化される。
type OTP struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Code      string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	IsUsed    bool      `json:"is_used"`
	CreatedAt time.Time `json:"created_at"`
}
