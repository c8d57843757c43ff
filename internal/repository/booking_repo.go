package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/yoyakuba/internal/database"
	"github.com/hitoshi/yoyakuba/internal/model"
)

// bookingUpdatableColumns は部分更新で変更を許可するカラムの一覧。
// 状態遷移の妥当性検証はサービス層の責務で、リポジトリは格納のみを行う。
var bookingUpdatableColumns = []string{
	"service_type", "booking_date", "duration_minutes", "fee",
	"status", "description", "meeting_link", "location",
}

type bookingRepo struct {
	db *database.DB
}

// NewBookingRepo は予約リポジトリを生成する。
func NewBookingRepo(db *database.DB) BookingRepository {
	return &bookingRepo{db: db}
}

func (r *bookingRepo) Create(ctx context.Context, b *model.Booking) (int64, error) {
	now := time.Now().UTC()
	id, err := r.db.InsertID(ctx,
		`INSERT INTO bookings (client_id, provider_id, provider_profile_id, service_type, booking_date, duration_minutes, fee, status, description, meeting_link, location, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ClientID, b.ProviderID, b.ProviderProfileID, b.ServiceType,
		b.BookingDate.UTC(), b.DurationMinutes, b.Fee, string(b.Status),
		b.Description, b.MeetingLink, b.Location, now, now,
	)
	if err != nil {
		return 0, normalizeError(r.db.Dialect(), "failed to create booking", err)
	}
	return id, nil
}

func (r *bookingRepo) FindByID(ctx context.Context, id int64) (*model.Booking, error) {
	row, err := r.db.GetMap(ctx, `SELECT * FROM bookings WHERE id = ?`, id)
	if err != nil {
		return nil, normalizeError(r.db.Dialect(), "failed to find booking", err)
	}
	if row == nil {
		return nil, nil
	}
	return bookingFromRow(row), nil
}

func (r *bookingRepo) ListByClient(ctx context.Context, clientID int64) ([]*model.Booking, error) {
	return r.list(ctx, `SELECT * FROM bookings WHERE client_id = ? ORDER BY booking_date DESC, id DESC`, clientID)
}

func (r *bookingRepo) ListByProvider(ctx context.Context, providerID int64) ([]*model.Booking, error) {
	return r.list(ctx, `SELECT * FROM bookings WHERE provider_id = ? ORDER BY booking_date DESC, id DESC`, providerID)
}

func (r *bookingRepo) list(ctx context.Context, query string, args ...any) ([]*model.Booking, error) {
	rows, err := r.db.SelectMaps(ctx, query, args...)
	if err != nil {
		return nil, normalizeError(r.db.Dialect(), "failed to list bookings", err)
	}

	bookings := make([]*model.Booking, 0, len(rows))
	for _, row := range rows {
		bookings = append(bookings, bookingFromRow(row))
	}
	return bookings, nil
}

func (r *bookingRepo) List(ctx context.Context, f BookingFilter) ([]*model.Booking, int64, error) {
	w := &whereBuilder{}
	if f.Status != "" {
		w.add("status = ?", string(f.Status))
	}

	total, err := r.db.GetInt(ctx, "SELECT COUNT(*) FROM bookings"+w.clause(), w.args...)
	if err != nil {
		return nil, 0, normalizeError(r.db.Dialect(), "failed to count bookings", err)
	}

	page, perPage := ClampPagination(f.Page, f.PerPage)
	args := append(append([]any{}, w.args...), perPage, (page-1)*perPage)
	rows, err := r.db.SelectMaps(ctx,
		"SELECT * FROM bookings"+w.clause()+" ORDER BY booking_date DESC, id DESC LIMIT ? OFFSET ?",
		args...)
	if err != nil {
		return nil, 0, normalizeError(r.db.Dialect(), "failed to list bookings", err)
	}

	bookings := make([]*model.Booking, 0, len(rows))
	for _, row := range rows {
		bookings = append(bookings, bookingFromRow(row))
	}
	return bookings, total, nil
}

func (r *bookingRepo) Update(ctx context.Context, id int64, fields map[string]any) error {
	sets := []string{}
	args := []any{}
	for _, col := range bookingUpdatableColumns {
		if v, ok := fields[col]; ok {
			// タイムスタンプは常にUTCで束縛する（テキスト格納の方言で辞書順比較を保つ）
			if t, isTime := v.(time.Time); isTime {
				v = t.UTC()
			}
			sets = append(sets, col+" = ?")
			args = append(args, v)
		}
	}
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	n, err := r.db.Exec(ctx, "UPDATE bookings SET "+joinSets(sets)+" WHERE id = ?", args...)
	if err != nil {
		return normalizeError(r.db.Dialect(), "failed to update booking", err)
	}
	if n == 0 {
		return fmt.Errorf("failed to update booking: %w", model.ErrNotFound)
	}
	return nil
}

func bookingFromRow(row *database.RowMap) *model.Booking {
	return &model.Booking{
		ID:                row.Int64("id"),
		ClientID:          row.Int64("client_id"),
		ProviderID:        row.Int64("provider_id"),
		ProviderProfileID: row.Int64("provider_profile_id"),
		ServiceType:       row.String("service_type"),
		BookingDate:       row.Time("booking_date"),
		DurationMinutes:   row.Int("duration_minutes"),
		Fee:               row.Float64("fee"),
		Status:            model.BookingStatus(row.String("status")),
		Description:       row.String("description"),
		MeetingLink:       row.String("meeting_link"),
		Location:          row.String("location"),
		CreatedAt:         row.Time("created_at"),
		UpdatedAt:         row.Time("updated_at"),
	}
}
