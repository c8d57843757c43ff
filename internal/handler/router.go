package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/yoyakuba/internal/metrics"
	"github.com/hitoshi/yoyakuba/internal/middleware"
	"github.com/hitoshi/yoyakuba/internal/model"
)

// HealthChecker はヘルスチェックで依存先の疎通を確認するインターフェース。
// database.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// メトリクス。Collectorがnilの場合は計測しない。
	Collector *metrics.Collector
	Gatherer  prometheus.Gatherer

	// サービス
	AuthService     AuthServiceInterface
	UserService     UserServiceInterface
	ProviderService ProviderServiceInterface
	BookingService  BookingServiceInterface
	MessageService  MessageServiceInterface

	// 管理者向け
	AdminUserService     AdminUserServiceInterface
	AdminProviderService AdminProviderServiceInterface
	AdminBookingService  AdminBookingServiceInterface

	// ヘルスチェック対象（通常はデータベース）
	Health HealthChecker
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Metrics → Logging → (グループ別: RateLimit / Auth)
//
// 認証エンドポイント（/api/auth/*）はIPキーのブルートフォース対策レート制限のみを通し、
// それ以外の/api/*はBearerトークン認証と一般レート制限を通す。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Collector != nil {
		r.Use(deps.Collector.HTTPMiddleware())
	}
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}

	var collector metrics.BusinessCollector
	if deps.Collector != nil {
		collector = deps.Collector
	}

	authHandler := NewAuthHandler(deps.AuthService, collector)
	userHandler := NewUserHandler(deps.UserService)
	providerHandler := NewProviderHandler(deps.ProviderService)
	bookingHandler := NewBookingHandler(deps.BookingService, collector)
	messageHandler := NewMessageHandler(deps.MessageService)
	adminHandler := NewAdminHandler(deps.AdminUserService, deps.AdminProviderService, deps.AdminBookingService)

	// --- 認証不要のルート ---

	// 認証エンドポイント（ブルートフォース対策のIPキーレート制限を適用）
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.AuthMiddleware())
		}
		r.Route("/api/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/verify-otp", authHandler.VerifyOTP)
			r.Get("/google/login", authHandler.GoogleLogin)
			r.Get("/google/callback", authHandler.GoogleCallback)
		})
	})

	// プロバイダー検索は未ログインでも利用できる（一般レート制限のみ）
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}
		r.Route("/api/providers", func(r chi.Router) {
			r.Get("/", providerHandler.Search)
			r.Get("/specializations", providerHandler.Specializations)
			r.Get("/stats", providerHandler.Stats)
			r.Get("/{id}", providerHandler.GetDetail)
		})
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth(Bearer) → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		r.Get("/api/auth/me", authHandler.Me)

		// 自分のプロフィール
		r.Route("/api/users/me", func(r chi.Router) {
			r.Get("/", userHandler.GetProfile)
			r.Put("/", userHandler.UpdateProfile)
			r.Put("/password", userHandler.ChangePassword)
		})

		// プロバイダー本人のプロフィール管理
		r.Route("/api/providers/profile", func(r chi.Router) {
			r.Use(middleware.RequireProviderRole())
			r.Get("/", providerHandler.GetOwnProfile)
			r.Put("/", providerHandler.UpdateProfile)
		})

		// 予約管理
		r.Route("/api/bookings", func(r chi.Router) {
			r.Post("/", bookingHandler.Create)
			r.Get("/", bookingHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", bookingHandler.Get)
				r.Put("/status", bookingHandler.UpdateStatus)
				r.Post("/review", bookingHandler.CreateReview)
			})
		})

		// メッセージ
		r.Route("/api/messages", func(r chi.Router) {
			r.Post("/", messageHandler.Send)
			r.Get("/", messageHandler.List)
			r.Put("/{id}/read", messageHandler.MarkRead)
		})

		// 管理者向け
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(model.RoleAdmin))
			r.Get("/users", adminHandler.ListUsers)
			r.Put("/users/{id}/active", adminHandler.SetUserActive)
			r.Put("/providers/{id}/verify", adminHandler.SetProviderVerified)
			r.Get("/bookings", adminHandler.ListBookings)
		})
	})

	// 運用エンドポイント
	r.Get("/health", healthHandler(deps.Health))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	return r
}

// healthHandler はヘルスチェックのハンドラーを返す。
// checkerがnilの場合はプロセス生存のみを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
