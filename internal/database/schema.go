package database

import (
	"context"
	"fmt"
	"strings"
)

// schemaStatements は方言非依存のスキーマ定義。
// {{PK}}、{{BOOL}}、{{FLOAT}}、{{TRUE}}、{{FALSE}} を方言の綴りに展開してから実行する。
// 各ステートメントは冪等（IF NOT EXISTS）だが、同時初期化の競合で発生する
// "already exists" エラーも許容する。
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id {{PK}},
		username VARCHAR(80) UNIQUE NOT NULL,
		email VARCHAR(120) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'client',
		full_name VARCHAR(200) NOT NULL,
		phone VARCHAR(20),
		address TEXT,
		city VARCHAR(100),
		state VARCHAR(100),
		pincode VARCHAR(10),
		is_verified {{BOOL}} NOT NULL DEFAULT {{FALSE}},
		is_active {{BOOL}} NOT NULL DEFAULT {{TRUE}},
		google_id VARCHAR(255) UNIQUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)`,
	`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,

	`CREATE TABLE IF NOT EXISTS providers (
		id {{PK}},
		user_id INTEGER UNIQUE NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		specialization VARCHAR(200),
		experience_years INTEGER NOT NULL DEFAULT 0,
		license_number VARCHAR(100),
		qualification TEXT,
		bio TEXT,
		consultation_fee {{FLOAT}} NOT NULL DEFAULT 0,
		hourly_rate {{FLOAT}} NOT NULL DEFAULT 0,
		rating {{FLOAT}} NOT NULL DEFAULT 0,
		total_reviews INTEGER NOT NULL DEFAULT 0,
		is_verified {{BOOL}} NOT NULL DEFAULT {{FALSE}},
		is_active {{BOOL}} NOT NULL DEFAULT {{TRUE}},
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_providers_user_id ON providers(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_providers_rating ON providers(rating)`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id {{PK}},
		client_id INTEGER NOT NULL REFERENCES users(id),
		provider_id INTEGER NOT NULL REFERENCES users(id),
		provider_profile_id INTEGER NOT NULL REFERENCES providers(id),
		service_type VARCHAR(100),
		booking_date TIMESTAMP NOT NULL,
		duration_minutes INTEGER NOT NULL DEFAULT 60,
		fee {{FLOAT}} NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		description TEXT,
		meeting_link VARCHAR(500),
		location VARCHAR(500),
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_bookings_client_id ON bookings(client_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_provider_id ON bookings(provider_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,

	`CREATE TABLE IF NOT EXISTS reviews (
		id {{PK}},
		booking_id INTEGER UNIQUE NOT NULL REFERENCES bookings(id),
		provider_id INTEGER NOT NULL REFERENCES providers(id),
		client_id INTEGER NOT NULL REFERENCES users(id),
		rating INTEGER NOT NULL,
		comment TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_reviews_provider_id ON reviews(provider_id)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id {{PK}},
		booking_id INTEGER REFERENCES bookings(id),
		sender_id INTEGER NOT NULL REFERENCES users(id),
		receiver_id INTEGER NOT NULL REFERENCES users(id),
		subject VARCHAR(200),
		content TEXT NOT NULL,
		is_read {{BOOL}} NOT NULL DEFAULT {{FALSE}},
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_messages_sender_id ON messages(sender_id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_receiver_id ON messages(receiver_id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_booking_id ON messages(booking_id)`,

	`CREATE TABLE IF NOT EXISTS otps (
		id {{PK}},
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		otp_code VARCHAR(6) NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		is_used {{BOOL}} NOT NULL DEFAULT {{FALSE}},
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_otps_user_id ON otps(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_otps_expires_at ON otps(expires_at)`,
}

// renderDDL は方言非依存のDDLトークンを方言の綴りに展開する。
func renderDDL(stmt string, d Dialect) string {
	r := strings.NewReplacer(
		"{{PK}}", d.AutoIncrementPK(),
		"{{BOOL}}", d.BooleanType(),
		"{{FLOAT}}", d.FloatType(),
		"{{TRUE}}", d.BooleanLiteral(true),
		"{{FALSE}}", d.BooleanLiteral(false),
	)
	return r.Replace(stmt)
}

// InitSchema はテーブルとインデックスを冪等に作成する。
// プロセス起動時の同時初期化で発生しうる "already exists" エラーは無視し、
// それ以外のDDLエラーは呼び出し元へ返す。既存データは変更しない。
func InitSchema(ctx context.Context, db *DB) error {
	for _, stmt := range schemaStatements {
		rendered := renderDDL(stmt, db.dialect)
		if _, err := db.Exec(ctx, rendered); err != nil {
			if db.dialect.IsAlreadyExists(err) {
				continue
			}
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
