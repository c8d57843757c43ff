package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/yoyakuba/internal/model"
	"github.com/hitoshi/yoyakuba/internal/repository"
)

// Mailer はアカウント関連メールの送信インターフェース。
// 送信失敗は認証フローを止めない（呼び出し側でログに残す）。
type Mailer interface {
	// SendOTP はワンタイムパスコードを通知する。
	SendOTP(ctx context.Context, to, fullName, code string, expiresAt time.Time) error
	// SendWelcome は登録完了を通知する。
	SendWelcome(ctx context.Context, to, fullName string) error
}

// RegisterRequest はユーザー登録の入力。
type RegisterRequest struct {
	Username string
	Email    string
	Password string
	Role     model.Role
	FullName string
	Phone    string
	City     string
	State    string
}

// LoginChallenge はパスワード認証成功後のワンタイムパスコード確認待ち状態を表す。
type LoginChallenge struct {
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthResult は認証完了時に発行されるトークンとユーザー情報。
type AuthResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	OTPExpiry time.Duration
}

// Service は認証に関するビジネスロジックを提供する。
// ログインは2段階: パスワード検証でワンタイムパスコードを発行し、
// コード検証でアクセストークンを発行する。
type Service struct {
	users     repository.UserRepository
	providers repository.ProviderRepository
	otps      repository.OTPRepository
	hasher    *PasswordHasher
	tokens    *TokenManager
	mailer    Mailer
	oauth     OAuthProvider
	config    ServiceConfig
}

// NewService はServiceを生成する。oauthはnilでもよい（Googleログイン無効）。
func NewService(
	users repository.UserRepository,
	providers repository.ProviderRepository,
	otps repository.OTPRepository,
	hasher *PasswordHasher,
	tokens *TokenManager,
	mailer Mailer,
	oauth OAuthProvider,
	config ServiceConfig,
) *Service {
	return &Service{
		users:     users,
		providers: providers,
		otps:      otps,
		hasher:    hasher,
		tokens:    tokens,
		mailer:    mailer,
		oauth:     oauth,
		config:    config,
	}
}

// Register は新規ユーザーを登録する。
// プロバイダー役割の場合は空のプロバイダープロフィールも同時に作成する。
// adminは自己登録できない。
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" || req.FullName == "" {
		return nil, model.NewValidationError("ユーザー名、メールアドレス、パスワード、氏名は必須です。")
	}
	if len(req.Password) < 8 {
		return nil, model.NewValidationError("パスワードは8文字以上で指定してください。")
	}
	if !req.Role.IsValidRegistrationRole() {
		return nil, model.NewInvalidRoleError(string(req.Role))
	}

	// 先に重複チェックを行い分かりやすいエラーを返す。
	// チェックとINSERTの間の競合はユニーク制約で最終的に防がれる。
	if existing, err := s.users.FindByUsername(ctx, req.Username); err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	} else if existing != nil {
		return nil, model.NewDuplicateUserError("ユーザー名")
	}
	if existing, err := s.users.FindByEmail(ctx, req.Email); err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	} else if existing != nil {
		return nil, model.NewDuplicateUserError("メールアドレス")
	}

	user := &model.User{
		Username: req.Username,
		Email:    req.Email,
		Role:     req.Role,
		FullName: req.FullName,
		Phone:    req.Phone,
		City:     req.City,
		State:    req.State,
		IsActive: true,
	}

	userID, err := s.users.Create(ctx, user, req.Password)
	if err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return nil, model.NewDuplicateUserError("ユーザー名またはメールアドレス")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = userID

	if req.Role.IsProviderRole() {
		if _, err := s.providers.Create(ctx, &model.Provider{UserID: userID, IsActive: true}); err != nil {
			return nil, fmt.Errorf("failed to create provider profile: %w", err)
		}
	}

	if err := s.mailer.SendWelcome(ctx, user.Email, user.FullName); err != nil {
		slog.Warn("failed to send welcome mail",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("user registered",
		slog.Int64("user_id", userID),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

// Login はユーザー名（またはメールアドレス）とパスワードを検証し、
// ワンタイムパスコードを発行してメールで通知する。
// 認証の完了にはVerifyOTPの呼び出しが必要。
func (s *Service) Login(ctx context.Context, username, password string) (*LoginChallenge, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		user, err = s.users.FindByEmail(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
	}

	// ユーザーの存在有無を応答時間以外で露出しないため、どちらも同じエラーにする
	if user == nil || !s.hasher.Verify(user.PasswordHash, password) {
		return nil, model.NewInvalidCredentialsError()
	}
	if !user.IsActive {
		return nil, model.NewAccountInactiveError()
	}

	code, err := GenerateOTP()
	if err != nil {
		return nil, fmt.Errorf("failed to generate otp: %w", err)
	}

	expiresAt := time.Now().UTC().Add(s.config.OTPExpiry)
	if _, err := s.otps.Create(ctx, &model.OTP{
		UserID:    user.ID,
		Code:      code,
		ExpiresAt: expiresAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to store otp: %w", err)
	}

	if err := s.mailer.SendOTP(ctx, user.Email, user.FullName, code, expiresAt); err != nil {
		slog.Warn("failed to send otp mail",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("login challenge issued", slog.Int64("user_id", user.ID))
	return &LoginChallenge{UserID: user.ID, ExpiresAt: expiresAt}, nil
}

// VerifyOTP はワンタイムパスコードを検証し、アクセストークンを発行する。
// 検証に成功したコードは使用済みにし、再利用を防ぐ。
func (s *Service) VerifyOTP(ctx context.Context, userID int64, code string) (*AuthResult, error) {
	otp, err := s.otps.FindValid(ctx, userID, code, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to find otp: %w", err)
	}
	if otp == nil {
		return nil, model.NewInvalidOTPError()
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	if !user.IsActive {
		return nil, model.NewAccountInactiveError()
	}

	if err := s.otps.MarkUsed(ctx, otp.ID); err != nil {
		return nil, fmt.Errorf("failed to mark otp used: %w", err)
	}

	// ワンタイムパスコードはメール到達の証明なので、初回検証でメール認証済みにする
	if !user.IsVerified {
		if err := s.users.Update(ctx, user.ID, map[string]any{"is_verified": true}); err != nil {
			return nil, fmt.Errorf("failed to mark user verified: %w", err)
		}
		user.IsVerified = true
	}

	return s.issueToken(user)
}

// GetLoginURL はGoogle OAuthの認証URLを生成する。
func (s *Service) GetLoginURL(state string) (string, error) {
	if s.oauth == nil {
		return "", model.NewValidationError("Googleログインは無効化されています。")
	}
	return s.oauth.GetLoginURL(state), nil
}

// HandleGoogleCallback はGoogle OAuthコールバックを処理する。
// google_idまたはメールアドレスで既存ユーザーを特定し、未登録の場合は
// クライアント役割で自動作成する。IdPがメール所有を確認済みのため、
// ワンタイムパスコードの段階は踏まずに直接トークンを発行する。
func (s *Service) HandleGoogleCallback(ctx context.Context, code string) (*AuthResult, error) {
	if s.oauth == nil {
		return nil, model.NewValidationError("Googleログインは無効化されています。")
	}

	info, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	user, err := s.users.FindByGoogleID(ctx, info.GoogleID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by google id: %w", err)
	}

	if user == nil {
		// 既存ユーザーをメールアドレスで特定してGoogleアカウントを紐付ける
		user, err = s.users.FindByEmail(ctx, info.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to find user by email: %w", err)
		}
		if user != nil {
			if err := s.users.LinkGoogleID(ctx, user.ID, info.GoogleID); err != nil {
				return nil, fmt.Errorf("failed to link google account: %w", err)
			}
		}
	}

	if user == nil {
		// 新規ユーザー: クライアント役割で自動作成。パスワードは未設定扱いにするため
		// ランダム値をハッシュ化して格納する。
		randomPassword, err := GenerateOTP()
		if err != nil {
			return nil, fmt.Errorf("failed to generate placeholder password: %w", err)
		}

		newUser := &model.User{
			Username:   info.Email,
			Email:      info.Email,
			Role:       model.RoleClient,
			FullName:   info.Name,
			IsVerified: true,
			IsActive:   true,
		}
		userID, err := s.users.Create(ctx, newUser, "google-oauth:"+randomPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		if err := s.users.LinkGoogleID(ctx, userID, info.GoogleID); err != nil {
			return nil, fmt.Errorf("failed to link google account: %w", err)
		}
		newUser.ID = userID
		user = newUser

		slog.Info("new user created via google oauth", slog.Int64("user_id", userID))
	}

	if !user.IsActive {
		return nil, model.NewAccountInactiveError()
	}
	return s.issueToken(user)
}

// CurrentUser はトークン検証済みのユーザーIDから現在のユーザーを取得する。
func (s *Service) CurrentUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	if !user.IsActive {
		return nil, model.NewAccountInactiveError()
	}
	return user, nil
}

// VerifyToken はアクセストークンを検証してクレームを返す。
func (s *Service) VerifyToken(tokenString string) (*Claims, error) {
	return s.tokens.Verify(tokenString)
}

func (s *Service) issueToken(user *model.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("access token issued",
		slog.Int64("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}
