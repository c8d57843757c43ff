// Package booking は予約のライフサイクル管理とレビュー投稿のドメインロジックを提供する。
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/yoyakuba/internal/model"
	"github.com/hitoshi/yoyakuba/internal/repository"
	"github.com/hitoshi/yoyakuba/internal/security"
)

// defaultDurationMinutes は予約時間が未指定の場合の既定値。
const defaultDurationMinutes = 60

// Actor は操作主体（認証済みユーザー）を表す。
type Actor struct {
	ID   int64
	Role model.Role
}

// IsAdmin は管理者かどうかを返す。
func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}

// CreateRequest は予約作成の入力。ProviderIDはプロバイダーのユーザーID。
// 料金はプロバイダープロフィールの相談料金から確定する。
type CreateRequest struct {
	ProviderID      int64
	ServiceType     string
	BookingDate     time.Time
	DurationMinutes int
	Description     string
	MeetingLink     string
	Location        string
}

// StatusUpdate は予約更新の入力。nilのフィールドは変更しない。
type StatusUpdate struct {
	Status      model.BookingStatus
	MeetingLink *string
	Location    *string
	BookingDate *time.Time
}

// Service は予約管理のサービス層。
type Service struct {
	bookings  repository.BookingRepository
	providers repository.ProviderRepository
	users     repository.UserRepository
	reviews   repository.ReviewRepository
	sanitizer security.ContentSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	bookings repository.BookingRepository,
	providers repository.ProviderRepository,
	users repository.UserRepository,
	reviews repository.ReviewRepository,
	sanitizer security.ContentSanitizerService,
) *Service {
	return &Service{
		bookings:  bookings,
		providers: providers,
		users:     users,
		reviews:   reviews,
		sanitizer: sanitizer,
	}
}

// Create は新しい予約をpending状態で作成する。クライアント役割のみ実行できる。
// 料金は申込時点のプロバイダーの相談料金で確定する。
func (s *Service) Create(ctx context.Context, actor Actor, req CreateRequest) (*model.Booking, error) {
	if actor.Role != model.RoleClient {
		return nil, model.NewAccessDeniedError()
	}
	if req.ProviderID <= 0 {
		return nil, model.NewValidationError("プロバイダーIDを指定してください。")
	}
	if req.ServiceType == "" {
		return nil, model.NewValidationError("サービス種別を指定してください。")
	}
	if req.BookingDate.IsZero() {
		return nil, model.NewValidationError("予約日時を指定してください。")
	}

	providerUser, err := s.users.FindByID(ctx, req.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("プロバイダーの取得に失敗しました: %w", err)
	}
	if providerUser == nil || !providerUser.Role.IsProviderRole() {
		return nil, model.NewProviderNotFoundError()
	}

	profile, err := s.providers.FindByUserID(ctx, providerUser.ID)
	if err != nil {
		return nil, fmt.Errorf("プロバイダープロフィールの取得に失敗しました: %w", err)
	}
	if profile == nil {
		return nil, model.NewProviderNotFoundError()
	}
	if !providerUser.IsActive || !profile.IsActive {
		return nil, model.NewValidationError("このプロバイダーは現在予約を受け付けていません。")
	}

	duration := req.DurationMinutes
	if duration <= 0 {
		duration = defaultDurationMinutes
	}

	b := &model.Booking{
		ClientID:          actor.ID,
		ProviderID:        providerUser.ID,
		ProviderProfileID: profile.ID,
		ServiceType:       s.sanitizer.Sanitize(req.ServiceType),
		BookingDate:       req.BookingDate,
		DurationMinutes:   duration,
		Fee:               profile.ConsultationFee,
		Status:            model.BookingPending,
		Description:       s.sanitizer.Sanitize(req.Description),
		MeetingLink:       req.MeetingLink,
		Location:          s.sanitizer.Sanitize(req.Location),
	}

	id, err := s.bookings.Create(ctx, b)
	if err != nil {
		if errors.Is(err, model.ErrForeignKey) {
			return nil, model.NewProviderNotFoundError()
		}
		return nil, fmt.Errorf("予約の作成に失敗しました: %w", err)
	}
	return s.bookings.FindByID(ctx, id)
}

// Get は予約を取得する。当事者（クライアント・プロバイダー）と管理者のみ参照できる。
func (s *Service) Get(ctx context.Context, actor Actor, bookingID int64) (*model.Booking, error) {
	b, err := s.find(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && b.ClientID != actor.ID && b.ProviderID != actor.ID {
		return nil, model.NewAccessDeniedError()
	}
	return b, nil
}

// ListForUser は操作主体の役割に応じた予約一覧を返す。
// クライアントは自分が申し込んだ予約、プロバイダーは自分宛の予約。
func (s *Service) ListForUser(ctx context.Context, actor Actor) ([]*model.Booking, error) {
	var (
		bookings []*model.Booking
		err      error
	)
	switch {
	case actor.Role == model.RoleClient:
		bookings, err = s.bookings.ListByClient(ctx, actor.ID)
	case actor.Role.IsProviderRole():
		bookings, err = s.bookings.ListByProvider(ctx, actor.ID)
	default:
		return nil, model.NewAccessDeniedError()
	}
	if err != nil {
		return nil, fmt.Errorf("予約一覧の取得に失敗しました: %w", err)
	}
	return bookings, nil
}

// ListAll は全予約の一覧を返す（管理者用）。
func (s *Service) ListAll(ctx context.Context, f repository.BookingFilter) ([]*model.Booking, int64, error) {
	bookings, total, err := s.bookings.List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("予約一覧の取得に失敗しました: %w", err)
	}
	return bookings, total, nil
}

// UpdateStatus は予約のステータスと関連フィールドを更新する。
// プロバイダー本人と管理者のみ実行できる。状態遷移は前方向のみを許可し、
// 完了・キャンセル済みの予約は変更できない。
// オンライン会議リンクも場所も無い予約を確定する場合は会議リンクを生成する。
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, bookingID int64, upd StatusUpdate) (*model.Booking, error) {
	b, err := s.find(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && b.ProviderID != actor.ID {
		return nil, model.NewAccessDeniedError()
	}

	fields := map[string]any{}
	if upd.Status != "" {
		if !upd.Status.IsValid() {
			return nil, model.NewInvalidStatusError(string(upd.Status))
		}
		if upd.Status != b.Status {
			if !b.Status.CanTransitionTo(upd.Status) {
				return nil, model.NewInvalidTransitionError(b.Status, upd.Status)
			}
			fields["status"] = string(upd.Status)
		}
	}
	if upd.MeetingLink != nil {
		fields["meeting_link"] = *upd.MeetingLink
	}
	if upd.Location != nil {
		fields["location"] = s.sanitizer.Sanitize(*upd.Location)
	}
	if upd.BookingDate != nil {
		fields["booking_date"] = *upd.BookingDate
	}

	if upd.Status == model.BookingConfirmed && b.MeetingLink == "" && b.Location == "" &&
		upd.MeetingLink == nil && upd.Location == nil {
		fields["meeting_link"] = generateMeetingLink()
	}

	if len(fields) > 0 {
		if err := s.bookings.Update(ctx, bookingID, fields); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return nil, model.NewBookingNotFoundError(bookingID)
			}
			return nil, fmt.Errorf("予約の更新に失敗しました: %w", err)
		}
	}
	return s.bookings.FindByID(ctx, bookingID)
}

// CreateReview は完了済み予約に対するレビューを登録する。
// 予約のクライアント本人のみ投稿でき、1つの予約につき1件まで。
// レビュー行の挿入とプロバイダーの集計値更新は同一トランザクションで行われる。
func (s *Service) CreateReview(ctx context.Context, actor Actor, bookingID int64, rating int, comment string) (*model.Review, error) {
	b, err := s.find(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.ClientID != actor.ID {
		return nil, model.NewAccessDeniedError()
	}
	if b.Status != model.BookingCompleted {
		return nil, model.NewReviewNotAllowedError("予約が完了していません。")
	}
	if rating < 1 || rating > 5 {
		return nil, model.NewValidationError("評価は1から5の整数で指定してください。")
	}

	review := &model.Review{
		BookingID:  bookingID,
		ProviderID: b.ProviderProfileID,
		ClientID:   actor.ID,
		Rating:     rating,
		Comment:    s.sanitizer.Sanitize(comment),
	}

	id, err := s.reviews.Create(ctx, review)
	if err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return nil, model.NewDuplicateReviewError()
		}
		return nil, fmt.Errorf("レビューの登録に失敗しました: %w", err)
	}
	review.ID = id
	return review, nil
}

func (s *Service) find(ctx context.Context, bookingID int64) (*model.Booking, error) {
	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("予約の取得に失敗しました: %w", err)
	}
	if b == nil {
		return nil, model.NewBookingNotFoundError(bookingID)
	}
	return b, nil
}

// generateMeetingLink はオンライン相談用の会議室リンクを生成する。
func generateMeetingLink() string {
	return "https://meet.yoyakuba.example/" + uuid.NewString()
}
