// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/yoyakuba/internal/auth"
	"github.com/hitoshi/yoyakuba/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// authUserContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var authUserContextKey = contextKey("auth_user")

// AuthUser は認証済みリクエストの操作主体。
type AuthUser struct {
	ID   int64
	Role model.Role
}

// TokenVerifier はアクセストークンの検証に必要なインターフェース。
// auth.TokenManagerの部分集合として定義する。
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// 認証済みユーザーをリクエストコンテキストに注入するミドルウェアを返す。
// 未認証リクエストには401 Unauthorizedを返す。
func NewAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeUnauthorized(w)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				writeUnauthorized(w)
				return
			}

			userID, err := claims.UserID()
			if err != nil {
				writeUnauthorized(w)
				return
			}

			user := AuthUser{ID: userID, Role: model.Role(claims.Role)}
			next.ServeHTTP(w, r.WithContext(ContextWithAuthUser(r.Context(), user)))
		})
	}
}

// RequireRole は認証済みユーザーの役割を検査するミドルウェアを返す。
// 指定された役割のいずれにも該当しない場合は403 Forbiddenを返す。
// NewAuthMiddlewareの後に配置する。
func RequireRole(roles ...model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := AuthUserFromContext(r.Context())
			if err != nil {
				writeUnauthorized(w)
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			WriteErrorResponse(w, http.StatusForbidden, model.NewAccessDeniedError())
		})
	}
}

// RequireProviderRole はプロバイダー役割のみ許可するミドルウェアを返す。
func RequireProviderRole() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := AuthUserFromContext(r.Context())
			if err != nil {
				writeUnauthorized(w)
				return
			}
			if !user.Role.IsProviderRole() {
				WriteErrorResponse(w, http.StatusForbidden, model.NewAccessDeniedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthUserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func AuthUserFromContext(ctx context.Context) (AuthUser, error) {
	user, ok := ctx.Value(authUserContextKey).(AuthUser)
	if !ok || user.ID == 0 {
		return AuthUser{}, fmt.Errorf("authenticated user not found in context")
	}
	return user, nil
}

// ContextWithAuthUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithAuthUser(ctx context.Context, user AuthUser) context.Context {
	return context.WithValue(ctx, authUserContextKey, user)
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return header[len(prefix):]
}

// writeUnauthorized は401の統一エラーレスポンスを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	})
}
