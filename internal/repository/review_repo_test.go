package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/hitoshi/yoyakuba/internal/model"
)

// レビュー登録で集計値が再計算されることを検証: [4, 5, 3] に 5 を追加すると
// total_reviews=4、rating=4.25 になる。
func TestReviewRepo_Create_UpdatesAggregate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	clientID := env.createUser(t, "client", model.RoleClient)
	providerUserID, profileID := env.createProvider(t, "tanaka", model.Provider{})

	for i, rating := range []int{4, 5, 3, 5} {
		bookingID := env.createBooking(t, clientID, providerUserID, profileID, model.BookingCompleted)
		if _, err := env.reviews.Create(ctx, &model.Review{
			BookingID:  bookingID,
			ProviderID: profileID,
			ClientID:   clientID,
			Rating:     rating,
			Comment:    fmt.Sprintf("review %d", i),
		}); err != nil {
			t.Fatalf("review %d failed: %v", i, err)
		}
	}

	p, err := env.providers.FindByID(ctx, profileID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if p.TotalReviews != 4 {
		t.Errorf("total_reviews = %d, want 4", p.TotalReviews)
	}
	if math.Abs(p.Rating-4.25) > 1e-9 {
		t.Errorf("rating = %f, want 4.25", p.Rating)
	}
}

// 同一予約への2件目のレビューはErrDuplicateになり、集計値も変化しないことを検証
// （レビュー行の挿入失敗で集計更新もロールバックされる）
func TestReviewRepo_Create_DuplicateBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	clientID := env.createUser(t, "client", model.RoleClient)
	providerUserID, profileID := env.createProvider(t, "tanaka", model.Provider{})
	bookingID := env.createBooking(t, clientID, providerUserID, profileID, model.BookingCompleted)

	if _, err := env.reviews.Create(ctx, &model.Review{
		BookingID: bookingID, ProviderID: profileID, ClientID: clientID, Rating: 5,
	}); err != nil {
		t.Fatalf("first review failed: %v", err)
	}

	_, err := env.reviews.Create(ctx, &model.Review{
		BookingID: bookingID, ProviderID: profileID, ClientID: clientID, Rating: 1,
	})
	if !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("error = %v, want ErrDuplicate", err)
	}

	p, err := env.providers.FindByID(ctx, profileID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if p.TotalReviews != 1 || p.Rating != 5 {
		t.Errorf("aggregate changed by failed insert: total=%d rating=%f", p.TotalReviews, p.Rating)
	}
}

// 並行登録: 複数ゴルーチンから同時にレビューを登録しても
// 集計更新が失われないことを検証（副問い合わせによる再計算のため）
func TestReviewRepo_Create_Concurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	providerUserID, profileID := env.createProvider(t, "tanaka", model.Provider{})

	const n = 8
	bookingIDs := make([]int64, n)
	for i := 0; i < n; i++ {
		clientID := env.createUser(t, fmt.Sprintf("client%d", i), model.RoleClient)
		bookingIDs[i] = env.createBooking(t, clientID, providerUserID, profileID, model.BookingCompleted)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.reviews.Create(ctx, &model.Review{
				BookingID:  bookingIDs[i],
				ProviderID: profileID,
				ClientID:   1,
				Rating:     4,
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent review %d failed: %v", i, err)
		}
	}

	p, err := env.providers.FindByID(ctx, profileID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if p.TotalReviews != n {
		t.Errorf("total_reviews = %d, want %d (no lost update)", p.TotalReviews, n)
	}
	if p.Rating != 4 {
		t.Errorf("rating = %f, want 4", p.Rating)
	}
}

// 予約IDでの取得と、件数制限付きの一覧を検証
func TestReviewRepo_FindAndList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	clientID := env.createUser(t, "client", model.RoleClient)
	providerUserID, profileID := env.createProvider(t, "tanaka", model.Provider{})

	var lastBookingID int64
	for i := 0; i < 3; i++ {
		lastBookingID = env.createBooking(t, clientID, providerUserID, profileID, model.BookingCompleted)
		if _, err := env.reviews.Create(ctx, &model.Review{
			BookingID: lastBookingID, ProviderID: profileID, ClientID: clientID, Rating: 5,
		}); err != nil {
			t.Fatalf("review failed: %v", err)
		}
	}

	rv, err := env.reviews.FindByBookingID(ctx, lastBookingID)
	if err != nil || rv == nil || rv.BookingID != lastBookingID {
		t.Errorf("FindByBookingID = %+v, %v", rv, err)
	}

	none, err := env.reviews.FindByBookingID(ctx, 9999)
	if err != nil || none != nil {
		t.Errorf("FindByBookingID for missing review = %+v, %v", none, err)
	}

	limited, err := env.reviews.ListByProvider(ctx, profileID, 2)
	if err != nil {
		t.Fatalf("ListByProvider failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited list len = %d, want 2", len(limited))
	}

	all, err := env.reviews.ListByProvider(ctx, profileID, 0)
	if err != nil {
		t.Fatalf("ListByProvider failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("full list len = %d, want 3", len(all))
	}
}
