package database

import (
	"context"
	"strings"
	"testing"
)

// スキーマ初期化の冪等性: 再実行してもエラーにならず既存データも変化しないことを検証
func TestInitSchema_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	insertTestUser(t, db, "alice", "alice@example.com")

	// 初期化済みのストアに対して再実行
	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("second InitSchema failed: %v", err)
	}

	row, err := db.GetMap(ctx, `SELECT username, email FROM users WHERE username = ?`, "alice")
	if err != nil {
		t.Fatalf("GetMap failed: %v", err)
	}
	if row == nil {
		t.Fatal("existing row lost after re-initialization")
	}
	if row.String("email") != "alice@example.com" {
		t.Errorf("email = %q, want unchanged value", row.String("email"))
	}
}

// 全テーブルが作成されることを検証
func TestInitSchema_CreatesAllTables(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, table := range []string{"users", "providers", "bookings", "reviews", "messages", "otps"} {
		if _, err := db.GetInt(ctx, `SELECT COUNT(*) FROM `+table); err != nil {
			t.Errorf("table %s not created: %v", table, err)
		}
	}
}

// reviews.booking_idのユニーク制約が効いていることを検証（予約ごとに1レビュー）
func TestInitSchema_ReviewBookingUnique(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	clientID := insertTestUser(t, db, "client", "client@example.com")
	providerUserID := insertTestUser(t, db, "provider", "provider@example.com")

	profileID, err := db.InsertID(ctx,
		`INSERT INTO providers (user_id) VALUES (?)`, providerUserID)
	if err != nil {
		t.Fatalf("failed to insert provider: %v", err)
	}

	bookingID, err := db.InsertID(ctx,
		`INSERT INTO bookings (client_id, provider_id, provider_profile_id, booking_date, fee, status)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP, ?, ?)`,
		clientID, providerUserID, profileID, 100.0, "completed")
	if err != nil {
		t.Fatalf("failed to insert booking: %v", err)
	}

	insert := `INSERT INTO reviews (booking_id, provider_id, client_id, rating) VALUES (?, ?, ?, ?)`
	if _, err := db.InsertID(ctx, insert, bookingID, profileID, clientID, 5); err != nil {
		t.Fatalf("first review insert failed: %v", err)
	}
	_, err = db.InsertID(ctx, insert, bookingID, profileID, clientID, 4)
	if err == nil {
		t.Fatal("second review for same booking should violate unique constraint")
	}
	if !db.Dialect().IsUniqueViolation(err) {
		t.Errorf("error not classified as unique violation: %v", err)
	}
}

// DDLレンダリング: 方言トークンが正しく展開されることを検証
func TestRenderDDL(t *testing.T) {
	stmt := `CREATE TABLE t (id {{PK}}, flag {{BOOL}} DEFAULT {{FALSE}}, amount {{FLOAT}})`

	sqlite := renderDDL(stmt, sqliteDialect{})
	if !strings.Contains(sqlite, "INTEGER PRIMARY KEY AUTOINCREMENT") {
		t.Errorf("sqlite DDL missing autoincrement pk: %s", sqlite)
	}
	if !strings.Contains(sqlite, "flag INTEGER DEFAULT 0") {
		t.Errorf("sqlite DDL should spell booleans as INTEGER 0/1: %s", sqlite)
	}
	if !strings.Contains(sqlite, "amount REAL") {
		t.Errorf("sqlite DDL should use REAL: %s", sqlite)
	}

	pg := renderDDL(stmt, postgresDialect{})
	if !strings.Contains(pg, "BIGSERIAL PRIMARY KEY") {
		t.Errorf("postgres DDL missing bigserial pk: %s", pg)
	}
	if !strings.Contains(pg, "flag BOOLEAN DEFAULT FALSE") {
		t.Errorf("postgres DDL should spell booleans natively: %s", pg)
	}
	if !strings.Contains(pg, "amount DOUBLE PRECISION") {
		t.Errorf("postgres DDL should use DOUBLE PRECISION: %s", pg)
	}

	if strings.Contains(sqlite, "{{") || strings.Contains(pg, "{{") {
		t.Error("rendered DDL must not contain unexpanded tokens")
	}
}
