package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/yoyakuba/internal/booking"
	"github.com/hitoshi/yoyakuba/internal/metrics"
	"github.com/hitoshi/yoyakuba/internal/middleware"
	"github.com/hitoshi/yoyakuba/internal/model"
)

// BookingServiceInterface は予約ハンドラーが必要とするサービスインターフェース。
type BookingServiceInterface interface {
	// Create は新しい予約をpending状態で作成する。
	Create(ctx context.Context, actor booking.Actor, req booking.CreateRequest) (*model.Booking, error)
	// Get は予約を取得する。当事者と管理者のみ参照できる。
	Get(ctx context.Context, actor booking.Actor, bookingID int64) (*model.Booking, error)
	// ListForUser は操作主体の役割に応じた予約一覧を返す。
	ListForUser(ctx context.Context, actor booking.Actor) ([]*model.Booking, error)
	// UpdateStatus は予約のステータスと関連フィールドを更新する。
	UpdateStatus(ctx context.Context, actor booking.Actor, bookingID int64, upd booking.StatusUpdate) (*model.Booking, error)
	// CreateReview は完了済み予約に対するレビューを登録する。
	CreateReview(ctx context.Context, actor booking.Actor, bookingID int64, rating int, comment string) (*model.Review, error)
}

// BookingHandler は予約管理のHTTPハンドラー。
type BookingHandler struct {
	service BookingServiceInterface
	metrics metrics.BusinessCollector
}

// NewBookingHandler はBookingHandlerを生成する。collectorはnilでもよい（メトリクス無効）。
func NewBookingHandler(service BookingServiceInterface, collector metrics.BusinessCollector) *BookingHandler {
	return &BookingHandler{
		service: service,
		metrics: collector,
	}
}

// createBookingRequest は予約作成リクエストのボディ。
// ProviderIDはプロバイダーのユーザーID。料金はサーバー側で確定するため受け取らない。
type createBookingRequest struct {
	ProviderID      int64     `json:"provider_id"`
	ServiceType     string    `json:"service_type"`
	BookingDate     time.Time `json:"booking_date"`
	DurationMinutes int       `json:"duration_minutes"`
	Description     string    `json:"description"`
	MeetingLink     string    `json:"meeting_link"`
	Location        string    `json:"location"`
}

// updateBookingStatusRequest は予約更新リクエストのボディ。
// 省略されたフィールドは変更しない。
type updateBookingStatusRequest struct {
	Status      string     `json:"status"`
	MeetingLink *string    `json:"meeting_link"`
	Location    *string    `json:"location"`
	BookingDate *time.Time `json:"booking_date"`
}

// createReviewRequest はレビュー投稿リクエストのボディ。
type createReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// actorFromContext はリクエストコンテキストから操作主体を取り出す。
func actorFromContext(r *http.Request) (booking.Actor, bool) {
	user, err := middleware.AuthUserFromContext(r.Context())
	if err != nil {
		return booking.Actor{}, false
	}
	return booking.Actor{ID: user.ID, Role: user.Role}, true
}

// Create は予約作成を処理する。
// POST /api/bookings
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	b, err := h.service.Create(r.Context(), actor, booking.CreateRequest{
		ProviderID:      req.ProviderID,
		ServiceType:     req.ServiceType,
		BookingDate:     req.BookingDate,
		DurationMinutes: req.DurationMinutes,
		Description:     req.Description,
		MeetingLink:     req.MeetingLink,
		Location:        req.Location,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordBookingCreated()
	}
	writeJSON(w, http.StatusCreated, b)
}

// List は自分に関係する予約一覧を返す。
// GET /api/bookings
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	bookings, err := h.service.ListForUser(r.Context(), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]*model.Booking{"bookings": bookings})
}

// Get は予約詳細を取得する。
// GET /api/bookings/{id}
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	bookingID, err := idParam(r, "id")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("予約IDは数値で指定してください。"))
		return
	}

	b, err := h.service.Get(r.Context(), actor, bookingID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

// UpdateStatus は予約ステータスを更新する。
// PUT /api/bookings/{id}/status
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	bookingID, err := idParam(r, "id")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("予約IDは数値で指定してください。"))
		return
	}

	var req updateBookingStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	b, err := h.service.UpdateStatus(r.Context(), actor, bookingID, booking.StatusUpdate{
		Status:      model.BookingStatus(req.Status),
		MeetingLink: req.MeetingLink,
		Location:    req.Location,
		BookingDate: req.BookingDate,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil && req.Status != "" {
		h.metrics.RecordBookingStatusChange(req.Status)
	}
	writeJSON(w, http.StatusOK, b)
}

// CreateReview は完了済み予約へのレビュー投稿を処理する。
// POST /api/bookings/{id}/review
func (h *BookingHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	bookingID, err := idParam(r, "id")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("予約IDは数値で指定してください。"))
		return
	}

	var req createReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	review, err := h.service.CreateReview(r.Context(), actor, bookingID, req.Rating, req.Comment)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, review)
}
