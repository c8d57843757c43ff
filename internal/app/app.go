// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/yoyakuba/internal/auth"
	"github.com/hitoshi/yoyakuba/internal/booking"
	"github.com/hitoshi/yoyakuba/internal/config"
	"github.com/hitoshi/yoyakuba/internal/database"
	"github.com/hitoshi/yoyakuba/internal/handler"
	"github.com/hitoshi/yoyakuba/internal/logger"
	"github.com/hitoshi/yoyakuba/internal/mail"
	"github.com/hitoshi/yoyakuba/internal/message"
	"github.com/hitoshi/yoyakuba/internal/metrics"
	"github.com/hitoshi/yoyakuba/internal/middleware"
	"github.com/hitoshi/yoyakuba/internal/model"
	"github.com/hitoshi/yoyakuba/internal/provider"
	"github.com/hitoshi/yoyakuba/internal/repository"
	"github.com/hitoshi/yoyakuba/internal/security"
	"github.com/hitoshi/yoyakuba/internal/user"
	"github.com/hitoshi/yoyakuba/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// カレントディレクトリの.envを読み込んだ上で環境変数からConfigを構築し、
// JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w)

	// .envファイルがあれば読み込む。既存の環境変数が優先される。
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandInitDB:
		return runInitDB(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通確認とスキーマ初期化を行う。
// スキーマ初期化は冪等で、既存のテーブルは変更しない。
func openDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("database connection established",
		slog.String("dialect", string(db.Dialect().Kind())),
	)
	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// 期限切れワンタイムパスコードの削除ジョブもバックグラウンドで実行する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// メトリクス。DBのクエリ計測はレコーダ経由で行う。
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	db.SetRecorder(collector)

	// 認証基盤
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenExpiry)

	// リポジトリ
	userRepo := repository.NewUserRepo(db, hasher.Hash)
	providerRepo := repository.NewProviderRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	reviewRepo := repository.NewReviewRepo(db)
	messageRepo := repository.NewMessageRepo(db)
	otpRepo := repository.NewOTPRepo(db)

	// メール送信。SMTP未設定の場合はログ出力で代替する。
	var mailer auth.Mailer
	if cfg.MailEnabled() {
		mailer = mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	} else {
		slog.Info("SMTP is not configured, mail delivery is logged instead")
		mailer = mail.NewLogMailer()
	}

	// Googleログイン。クレデンシャル未設定の場合は無効。
	var oauthProvider auth.OAuthProvider
	if cfg.GoogleOAuthEnabled() {
		oauthProvider = auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.BaseURL + "/api/auth/google/callback",
		}, nil)
	} else {
		slog.Info("Google OAuth is not configured, Google login is disabled")
	}

	// ドメインサービス
	sanitizer := security.NewContentSanitizer()
	authService := auth.NewService(
		userRepo, providerRepo, otpRepo, hasher, tokens, mailer, oauthProvider,
		auth.ServiceConfig{OTPExpiry: cfg.OTPExpiry},
	)
	userService := user.NewService(userRepo, hasher, sanitizer)
	providerService := provider.NewService(providerRepo, userRepo, reviewRepo, sanitizer)
	bookingService := booking.NewService(bookingRepo, providerRepo, userRepo, reviewRepo, sanitizer)
	messageService := message.NewService(messageRepo, bookingRepo, userRepo, sanitizer)

	// 管理者アカウントのブートストラップ
	if err := ensureAdmin(context.Background(), userRepo, cfg); err != nil {
		return fmt.Errorf("failed to bootstrap admin account: %w", err)
	}

	// レート制限
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigFromLimits(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		TokenVerifier:     tokens,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		Collector: collector,
		Gatherer:  registry,

		AuthService:     authService,
		UserService:     userService,
		ProviderService: providerService,
		BookingService:  bookingService,
		MessageService:  messageService,

		AdminUserService:     userService,
		AdminProviderService: providerService,
		AdminBookingService:  bookingService,

		Health: db,
	}

	router := handler.NewRouter(deps)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// バックグラウンドジョブとグレースフルシャットダウン
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleanupJob := cleanup.NewJob(otpRepo, slog.Default(), collector)
	go cleanupJob.Start(ctx, cfg.CleanupInterval)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はクリーンアップワーカーモードで起動する。
// 期限切れワンタイムパスコードの削除ジョブを定期実行する。
// APIサーバーと分離してデプロイする場合に使う。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	otpRepo := repository.NewOTPRepo(db)
	job := cleanup.NewJob(otpRepo, slog.Default(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
	)

	// メインgoroutineで実行（ブロッキング）
	job.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runInitDB はデータベーススキーマを初期化し、管理者アカウントを作成する。
// 既に初期化済みの場合は何もしない。
func runInitDB(cfg *config.Config) error {
	slog.Info("initializing database schema",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	userRepo := repository.NewUserRepo(db, hasher.Hash)
	if err := ensureAdmin(context.Background(), userRepo, cfg); err != nil {
		return fmt.Errorf("failed to bootstrap admin account: %w", err)
	}

	slog.Info("database schema initialized successfully")
	return nil
}

// ensureAdmin はADMIN_EMAILとADMIN_PASSWORDが設定されている場合に
// 管理者アカウントを作成する。既に存在する場合は何もしない。
// adminは自己登録できないため、ここが唯一の作成経路になる。
func ensureAdmin(ctx context.Context, users repository.UserRepository, cfg *config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		slog.Info("admin bootstrap skipped: ADMIN_EMAIL or ADMIN_PASSWORD is not set")
		return nil
	}

	existing, err := users.FindByUsername(ctx, cfg.AdminUsername)
	if err != nil {
		return fmt.Errorf("failed to look up admin user: %w", err)
	}
	if existing != nil {
		return nil
	}

	admin := &model.User{
		Username:   cfg.AdminUsername,
		Email:      cfg.AdminEmail,
		Role:       model.RoleAdmin,
		FullName:   "Administrator",
		IsVerified: true,
		IsActive:   true,
	}
	id, err := users.Create(ctx, admin, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	slog.Info("admin account created",
		slog.Int64("user_id", id),
		slog.String("username", cfg.AdminUsername),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if url == "" {
		return "(embedded sqlite)"
	}
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
