package repository

import (
	"context"
	"time"

	"github.com/hitoshi/yoyakuba/internal/database"
	"github.com/hitoshi/yoyakuba/internal/model"
)

type messageRepo struct {
	db *database.DB
}

// NewMessageRepo はメッセージリポジトリを生成する。
func NewMessageRepo(db *database.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) Create(ctx context.Context, m *model.Message) (int64, error) {
	// booking_idは任意。未指定（0）はNULLで格納する。
	var bookingID any
	if m.BookingID > 0 {
		bookingID = m.BookingID
	}

	id, err := r.db.InsertID(ctx,
		`INSERT INTO messages (booking_id, sender_id, receiver_id, subject, content, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		bookingID, m.SenderID, m.ReceiverID, m.Subject, m.Content, false, time.Now().UTC(),
	)
	if err != nil {
		return 0, normalizeError(r.db.Dialect(), "failed to create message", err)
	}
	return id, nil
}

func (r *messageRepo) FindByID(ctx context.Context, id int64) (*model.Message, error) {
	row, err := r.db.GetMap(ctx, `SELECT * FROM messages WHERE id = ?`, id)
	if err != nil {
		return nil, normalizeError(r.db.Dialect(), "failed to find message", err)
	}
	if row == nil {
		return nil, nil
	}
	return messageFromRow(row), nil
}

func (r *messageRepo) ListByUser(ctx context.Context, userID, bookingID int64) ([]*model.Message, error) {
	w := &whereBuilder{}
	w.add("(sender_id = ? OR receiver_id = ?)", userID, userID)
	if bookingID > 0 {
		w.add("booking_id = ?", bookingID)
	}

	rows, err := r.db.SelectMaps(ctx,
		"SELECT * FROM messages"+w.clause()+" ORDER BY created_at ASC, id ASC", w.args...)
	if err != nil {
		return nil, normalizeError(r.db.Dialect(), "failed to list messages", err)
	}

	messages := make([]*model.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, messageFromRow(row))
	}
	return messages, nil
}

func (r *messageRepo) MarkRead(ctx context.Context, messageID, receiverID int64) (bool, error) {
	n, err := r.db.Exec(ctx,
		`UPDATE messages SET is_read = ? WHERE id = ? AND receiver_id = ?`,
		true, messageID, receiverID)
	if err != nil {
		return false, normalizeError(r.db.Dialect(), "failed to mark message read", err)
	}
	return n > 0, nil
}

func messageFromRow(row *database.RowMap) *model.Message {
	return &model.Message{
		ID:         row.Int64("id"),
		BookingID:  row.Int64("booking_id"),
		SenderID:   row.Int64("sender_id"),
		ReceiverID: row.Int64("receiver_id"),
		Subject:    row.String("subject"),
		Content:    row.String("content"),
		IsRead:     row.Bool("is_read"),
		CreatedAt:  row.Time("created_at"),
	}
}
