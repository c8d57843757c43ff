// Package message はユーザー間メッセージのドメインロジックを提供する。
package message

import (
	"context"
	"fmt"

	"github.com/hitoshi/yoyakuba/internal/model"
	"github.com/hitoshi/yoyakuba/internal/repository"
	"github.com/hitoshi/yoyakuba/internal/security"
)

// SendRequest はメッセージ送信の入力。
// BookingIDが0より大きい場合はその予約のスレッドに紐付ける。
type SendRequest struct {
	ReceiverID int64
	BookingID  int64
	Subject    string
	Content    string
}

// Service はメッセージ管理のサービス層。
type Service struct {
	messages  repository.MessageRepository
	bookings  repository.BookingRepository
	users     repository.UserRepository
	sanitizer security.ContentSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	messages repository.MessageRepository,
	bookings repository.BookingRepository,
	users repository.UserRepository,
	sanitizer security.ContentSanitizerService,
) *Service {
	return &Service{
		messages:  messages,
		bookings:  bookings,
		users:     users,
		sanitizer: sanitizer,
	}
}

// Send はメッセージを送信する。
// 予約に紐付ける場合、送信者と受信者の両方がその予約の当事者である必要がある。
func (s *Service) Send(ctx context.Context, senderID int64, req SendRequest) (*model.Message, error) {
	content := s.sanitizer.Sanitize(req.Content)
	if content == "" {
		return nil, model.NewValidationError("メッセージ本文を入力してください。")
	}
	if req.ReceiverID <= 0 {
		return nil, model.NewValidationError("受信者を指定してください。")
	}
	if req.ReceiverID == senderID {
		return nil, model.NewValidationError("自分自身にメッセージを送ることはできません。")
	}

	receiver, err := s.users.FindByID(ctx, req.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("受信者の取得に失敗しました: %w", err)
	}
	if receiver == nil || !receiver.IsActive {
		return nil, model.NewUserNotFoundError()
	}

	if req.BookingID > 0 {
		b, err := s.bookings.FindByID(ctx, req.BookingID)
		if err != nil {
			return nil, fmt.Errorf("予約の取得に失敗しました: %w", err)
		}
		if b == nil {
			return nil, model.NewBookingNotFoundError(req.BookingID)
		}
		if b.ClientID != senderID && b.ProviderID != senderID {
			return nil, model.NewAccessDeniedError()
		}
		if b.ClientID != req.ReceiverID && b.ProviderID != req.ReceiverID {
			return nil, model.NewValidationError("受信者はこの予約の当事者ではありません。")
		}
	}

	m := &model.Message{
		BookingID:  req.BookingID,
		SenderID:   senderID,
		ReceiverID: req.ReceiverID,
		Subject:    s.sanitizer.Sanitize(req.Subject),
		Content:    content,
	}

	id, err := s.messages.Create(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("メッセージの送信に失敗しました: %w", err)
	}
	return s.messages.FindByID(ctx, id)
}

// List はユーザーが送信または受信したメッセージを古い順に返す。
// bookingIDが0より大きい場合はその予約のスレッドに絞り込む。
func (s *Service) List(ctx context.Context, userID, bookingID int64) ([]*model.Message, error) {
	messages, err := s.messages.ListByUser(ctx, userID, bookingID)
	if err != nil {
		return nil, fmt.Errorf("メッセージ一覧の取得に失敗しました: %w", err)
	}
	return messages, nil
}

// MarkRead はメッセージを既読にする。受信者本人のみ実行できる。
func (s *Service) MarkRead(ctx context.Context, messageID, userID int64) (*model.Message, error) {
	m, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("メッセージの取得に失敗しました: %w", err)
	}
	if m == nil {
		return nil, model.NewMessageNotFoundError(messageID)
	}

	ok, err := s.messages.MarkRead(ctx, messageID, userID)
	if err != nil {
		return nil, fmt.Errorf("既読処理に失敗しました: %w", err)
	}
	if !ok {
		return nil, model.NewAccessDeniedError()
	}

	m.IsRead = true
	return m, nil
}
