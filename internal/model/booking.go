package model

import "time"

// BookingStatus は予約のライフサイクル状態を表す。
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// IsValid は既知のステータスかどうかを返す。
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

// IsTerminal は終端状態（以降の遷移を許可しない状態）かどうかを返す。
func (s BookingStatus) IsTerminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

// CanTransitionTo は前方向のみの状態遷移を判定する。
//
//	pending   → confirmed, cancelled
//	confirmed → completed, cancelled
//	completed / cancelled → 遷移不可
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case BookingPending:
		return next == BookingConfirmed || next == BookingCancelled
	case BookingConfirmed:
		return next == BookingCompleted || next == BookingCancelled
	}
	return false
}

// Booking はクライアントとプロバイダー間の予約を表す。
type Booking struct {
	ID                int64         `json:"id"`
	ClientID          int64         `json:"client_id"`
	ProviderID        int64         `json:"provider_id"`
	ProviderProfileID int64         `json:"provider_profile_id"`
	ServiceType       string        `json:"service_type,omitempty"`
	BookingDate       time.Time     `json:"booking_date"`
	DurationMinutes   int           `json:"duration_minutes"`
	Fee               float64       `json:"fee"`
	Status            BookingStatus `json:"status"`
	Description       string        `json:"description,omitempty"`
	MeetingLink       string        `json:"meeting_link,omitempty"`
	Location          string        `json:"location,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}
