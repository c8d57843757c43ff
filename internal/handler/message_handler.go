package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/yoyakuba/internal/message"
	"github.com/hitoshi/yoyakuba/internal/middleware"
	"github.com/hitoshi/yoyakuba/internal/model"
)

// MessageServiceInterface はメッセージハンドラーが必要とするサービスインターフェース。
type MessageServiceInterface interface {
	// Send はメッセージを送信する。
	Send(ctx context.Context, senderID int64, req message.SendRequest) (*model.Message, error)
	// List はユーザーが送信または受信したメッセージを古い順に返す。
	List(ctx context.Context, userID, bookingID int64) ([]*model.Message, error)
	// MarkRead はメッセージを既読にする。受信者本人のみ実行できる。
	MarkRead(ctx context.Context, messageID, userID int64) (*model.Message, error)
}

// MessageHandler はユーザー間メッセージのHTTPハンドラー。
type MessageHandler struct {
	service MessageServiceInterface
}

// NewMessageHandler はMessageHandlerを生成する。
func NewMessageHandler(service MessageServiceInterface) *MessageHandler {
	return &MessageHandler{service: service}
}

// sendMessageRequest はメッセージ送信リクエストのボディ。
type sendMessageRequest struct {
	ReceiverID int64  `json:"receiver_id"`
	BookingID  int64  `json:"booking_id"`
	Subject    string `json:"subject"`
	Content    string `json:"content"`
}

// Send はメッセージ送信を処理する。
// POST /api/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.AuthUserFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	m, err := h.service.Send(r.Context(), user.ID, message.SendRequest{
		ReceiverID: req.ReceiverID,
		BookingID:  req.BookingID,
		Subject:    req.Subject,
		Content:    req.Content,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

// List は自分が送信または受信したメッセージ一覧を返す。
// GET /api/messages?booking_id=N
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.AuthUserFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	messages, err := h.service.List(r.Context(), user.ID, queryInt64(r, "booking_id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]*model.Message{"messages": messages})
}

// MarkRead はメッセージの既読処理を行う。
// PUT /api/messages/{id}/read
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.AuthUserFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	messageID, err := idParam(r, "id")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("メッセージIDは数値で指定してください。"))
		return
	}

	m, err := h.service.MarkRead(r.Context(), messageID, user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, m)
}
