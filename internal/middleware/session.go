// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/makersgallery/internal/credential"
	"github.com/hitoshi/makersgallery/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var clientContextKey = contextKey("credential_client")

// SessionCookieConfig はセッションCookieの属性。
type SessionCookieConfig struct {
	Secure bool
	Domain string
	MaxAge int // 秒
}

// NewSessionMiddleware はCookieのセッションIDからリクエスト単位の認証クライアントを復元し、
// コンテキストに注入するミドルウェアを返す。Cookieがない、または無効な場合は匿名のクライアントになる。
// クライアントはリクエストの終了時にCloseされる。
func NewSessionMiddleware(backend credential.Backend) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := credential.NewClient(backend)
			defer client.Close()

			if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
				if err := client.Restore(r.Context(), cookie.Value); err != nil {
					slog.Error("failed to restore session",
						slog.String("error", err.Error()),
					)
				}
			}

			if session := client.CurrentSession(); session != nil {
				setLogUserID(r.Context(), session.AccountID)
			}

			ctx := ContextWithClient(r.Context(), client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientFromContext はリクエストコンテキストから認証クライアントを取得する。
// セッションミドルウェアを通過していない場合はnilを返す。
func ClientFromContext(ctx context.Context) *credential.Client {
	client, _ := ctx.Value(clientContextKey).(*credential.Client)
	return client
}

// ContextWithClient はコンテキストに認証クライアントを注入する。
func ContextWithClient(ctx context.Context, client *credential.Client) context.Context {
	return context.WithValue(ctx, clientContextKey, client)
}

// UserIDFromContext はリクエストコンテキストからログイン中のアカウントIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	client := ClientFromContext(ctx)
	if client == nil {
		return "", fmt.Errorf("credential client not found in context")
	}
	session := client.CurrentSession()
	if session == nil {
		return "", fmt.Errorf("no active session")
	}
	return session.AccountID, nil
}

// SetSessionCookie はセッションIDをHttpOnly Cookieに設定する。
func SetSessionCookie(w http.ResponseWriter, session *model.Session, config SessionCookieConfig) {
	maxAge := config.MaxAge
	if remaining := int(time.Until(session.ExpiresAt).Seconds()); remaining < maxAge || maxAge <= 0 {
		maxAge = remaining
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie はセッションCookieを削除する。
func ClearSessionCookie(w http.ResponseWriter, config SessionCookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
