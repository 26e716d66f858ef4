// Package auth はサインアップ、ログイン、ログアウトと認証必須ページの制御を行う。
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/makersgallery/internal/credential"
	"github.com/hitoshi/makersgallery/internal/docstore"
	"github.com/hitoshi/makersgallery/internal/identity"
	"github.com/hitoshi/makersgallery/internal/metrics"
	"github.com/hitoshi/makersgallery/internal/model"
)

// 利用者向けメッセージ
const (
	MsgFillAllFields      = "Please fill in all fields"
	MsgPasswordTooShort   = "Password must be at least 6 characters"
	MsgPasswordMismatch   = "Passwords do not match"
	MsgInvalidAccountType = "Please select a valid account type"
	MsgUsernameTaken      = "Username already exists"
	MsgSignupFailed       = "Signup failed"
	MsgSignupSucceeded    = "Account created successfully! Please login."
	MsgLoginRequired      = "Please enter username and password"
	MsgLoginSucceeded     = "Login successful! Redirecting..."
	MsgAccountNotFound    = "Account not found. Please create an account first."
	MsgIncorrectPassword  = "Incorrect password"
	MsgInvalidUsername    = "Invalid username format. Use only letters, numbers, dashes, and underscores."
	loginFailedPrefix     = "Login failed: "
	minimumPasswordLength = 6
)

// SessionClient はコントローラーが利用するページ単位の認証クライアント。
type SessionClient interface {
	CreateAccount(ctx context.Context, address, secret string) (*model.Account, error)
	SignIn(ctx context.Context, address, secret string) (*model.Session, error)
	SignOut(ctx context.Context) error
	CurrentSession() *model.Session
	ObserveSession(fn credential.SessionObserver) *credential.Subscription
}

// Config は画面遷移の待ち時間の設定。
type Config struct {
	SignupRedirectDelay time.Duration
	LoginRedirectDelay  time.Duration
}

// DefaultConfig は既定の待ち時間を返す。
func DefaultConfig() Config {
	return Config{
		SignupRedirectDelay: 2 * time.Second,
		LoginRedirectDelay:  1500 * time.Millisecond,
	}
}

// SignupInput はサインアップフォームの入力。
type SignupInput struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	UserType        string `json:"userType"`
}

// Controller は1つのページコンテキストの認証フローを制御する。
type Controller struct {
	client    SessionClient
	mapper    *identity.Mapper
	store     docstore.Store
	navigator Navigator
	metrics   metrics.MetricsCollector
	config    Config

	mu   sync.Mutex
	gate *credential.Subscription
}

// NewController はControllerを生成する。navigatorとcollectorはnilでもよい。
func NewController(
	client SessionClient,
	mapper *identity.Mapper,
	store docstore.Store,
	navigator Navigator,
	collector metrics.MetricsCollector,
	config Config,
) *Controller {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Controller{
		client:    client,
		mapper:    mapper,
		store:     store,
		navigator: navigator,
		metrics:   collector,
		config:    config,
	}
}

// Signup はアカウントを作成し、プロフィールとユーザー名予約を保存する。
// 成功してもログイン状態にはしない。
func (c *Controller) Signup(ctx context.Context, in SignupInput) Outcome {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" || in.ConfirmPassword == "" || in.UserType == "" {
		return c.rejectSignup("validation", MsgFillAllFields)
	}

	if err := identity.ValidateHandle(username); err != nil {
		var vErr *identity.ValidationError
		if errors.As(err, &vErr) {
			return c.rejectSignup("validation", vErr.Message)
		}
		return c.rejectSignup("validation", err.Error())
	}
	if len(in.Password) < minimumPasswordLength {
		return c.rejectSignup("validation", MsgPasswordTooShort)
	}
	if in.Password != in.ConfirmPassword {
		return c.rejectSignup("validation", MsgPasswordMismatch)
	}
	role := model.Role(in.UserType)
	if !role.Valid() {
		return c.rejectSignup("validation", MsgInvalidAccountType)
	}

	available, err := c.mapper.CheckHandleAvailable(ctx, username)
	if err != nil {
		slog.Error("signup error",
			slog.String("step", "check_username"),
			slog.String("error", err.Error()),
		)
		return c.rejectSignup("error", MsgSignupFailed)
	}
	if !available {
		return c.rejectSignup("conflict", MsgUsernameTaken)
	}

	address := c.mapper.DeriveAddress(username)
	account, err := c.client.CreateAccount(ctx, address, in.Password)
	if err != nil {
		slog.Error("signup error",
			slog.String("step", "create_account"),
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		var credErr *credential.Error
		if errors.As(err, &credErr) && credErr.Message != "" {
			return c.rejectSignup(resultLabel(credErr.Code), credErr.Message)
		}
		return c.rejectSignup("error", MsgSignupFailed)
	}

	if err := c.persistIdentity(ctx, account.ID, username, role); err != nil {
		slog.Error("signup error",
			slog.String("step", "persist_identity"),
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
		c.metrics.RecordSwallowedError("signup.persist_identity")
		return c.rejectSignup("error", MsgSignupFailed)
	}

	slog.Info("signup completed",
		slog.String("account_id", account.ID),
		slog.String("user_type", string(role)),
	)
	c.metrics.RecordAuthOutcome("signup", "success")

	nav := Navigation{View: ViewLogin, Delay: c.config.SignupRedirectDelay, ResetForm: FormSignup}
	c.navigate(nav)
	return Outcome{Success: true, Message: MsgSignupSucceeded, Next: &nav}
}

// persistIdentity はプロフィールとユーザー名予約を書き込む。
// ストアがBatcherを実装していれば2件を1回でコミットする。
// そうでなければプロフィール、予約の順に書き込み、途中で失敗しても巻き戻さない。
func (c *Controller) persistIdentity(ctx context.Context, uid, username string, role model.Role) error {
	identityFields := docstore.Fields{
		"username":  username,
		"userType":  string(role),
		"createdAt": docstore.ServerTimestamp,
	}
	reservationFields := docstore.Fields{"uid": uid}

	if batcher, ok := c.store.(docstore.Batcher); ok {
		return batcher.Commit(ctx,
			docstore.SetWrite(identity.IdentityPath(uid), identityFields),
			docstore.SetWrite(identity.ReservationPath(username), reservationFields),
		)
	}

	if err := c.store.Set(ctx, identity.IdentityPath(uid), identityFields); err != nil {
		return err
	}
	if err := c.store.Set(ctx, identity.ReservationPath(username), reservationFields); err != nil {
		// 予約なしのアカウントは整合性ジョブが補完する
		slog.Warn("username reservation missing after signup",
			slog.String("account_id", uid),
			slog.String("username", strings.ToLower(username)),
		)
		return err
	}
	return nil
}

// Login はユーザー名とパスワードでサインインする。
func (c *Controller) Login(ctx context.Context, username, password string) Outcome {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return c.rejectLogin("validation", MsgLoginRequired)
	}
	if strings.Contains(username, "@") {
		return c.rejectLogin("validation", identity.MsgLoginHandleIsEmail)
	}

	address := c.mapper.DeriveAddress(username)
	if _, err := c.client.SignIn(ctx, address, password); err != nil {
		code, raw := "", err.Error()
		var credErr *credential.Error
		if errors.As(err, &credErr) {
			code, raw = credErr.Code, credErr.Message
		}
		slog.Error("login error",
			slog.String("address", address),
			slog.String("code", code),
			slog.String("message", raw),
		)

		switch code {
		case credential.CodeUserNotFound:
			return c.rejectLogin(resultLabel(code), MsgAccountNotFound)
		case credential.CodeWrongPassword:
			return c.rejectLogin(resultLabel(code), MsgIncorrectPassword)
		case credential.CodeInvalidEmail:
			return c.rejectLogin(resultLabel(code), MsgInvalidUsername)
		default:
			return c.rejectLogin("error", loginFailedPrefix+raw)
		}
	}

	c.metrics.RecordAuthOutcome("login", "success")

	nav := Navigation{View: ViewProfile, Delay: c.config.LoginRedirectDelay}
	c.navigate(nav)
	return Outcome{Success: true, Message: MsgLoginSucceeded, Next: &nav}
}

// Logout はサインアウトし、ログインページへ遷移する。
// 失敗した場合はログに記録するだけで遷移しない。
func (c *Controller) Logout(ctx context.Context) {
	if err := c.client.SignOut(ctx); err != nil {
		slog.Error("logout error", slog.String("error", err.Error()))
		c.metrics.RecordAuthOutcome("logout", "error")
		return
	}
	c.metrics.RecordAuthOutcome("logout", "success")
	c.navigate(Navigation{View: ViewLogin})
}

// IsLoggedIn はセッションが有効かどうかを返す。
func (c *Controller) IsLoggedIn() bool {
	return c.client.CurrentSession() != nil
}

// GetCurrentUser は現在のユーザーのプロフィールを返す。
// 未ログイン、ドキュメントなし、読み込み失敗のいずれの場合もnilを返す。
func (c *Controller) GetCurrentUser(ctx context.Context) *model.Identity {
	session := c.client.CurrentSession()
	if session == nil {
		return nil
	}

	doc, err := c.store.Get(ctx, identity.IdentityPath(session.AccountID))
	if err != nil {
		slog.Error("failed to get user data",
			slog.String("account_id", session.AccountID),
			slog.String("error", err.Error()),
		)
		c.metrics.RecordSwallowedError("auth.current_user")
		return nil
	}
	if doc == nil {
		return nil
	}

	var ident model.Identity
	if err := doc.DataTo(&ident); err != nil {
		slog.Error("failed to decode user data",
			slog.String("account_id", session.AccountID),
			slog.String("error", err.Error()),
		)
		c.metrics.RecordSwallowedError("auth.current_user")
		return nil
	}
	ident.UID = session.AccountID
	return &ident
}

// RequireAuth はセッション状態を購読し、未ログインになるたびにログインページへ遷移させる。
// 初回の通知も対象。同じコントローラーで複数回呼んでも購読は1つだけ。
func (c *Controller) RequireAuth() *credential.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gate == nil {
		c.gate = c.client.ObserveSession(func(session *model.Session) {
			if session == nil {
				c.navigate(Navigation{View: ViewLogin})
			}
		})
	}
	return c.gate
}

// GoToProfile はログイン中ならプロフィールへ、そうでなければログインページへ遷移させる。
func (c *Controller) GoToProfile() Navigation {
	nav := Navigation{View: ViewLogin}
	if c.IsLoggedIn() {
		nav.View = ViewProfile
	}
	c.navigate(nav)
	return nav
}

func (c *Controller) navigate(nav Navigation) {
	if c.navigator != nil {
		c.navigator.Navigate(nav)
	}
}

func (c *Controller) rejectSignup(result, message string) Outcome {
	c.metrics.RecordAuthOutcome("signup", result)
	return failure(message)
}

func (c *Controller) rejectLogin(result, message string) Outcome {
	c.metrics.RecordAuthOutcome("login", result)
	return failure(message)
}

// resultLabel はバックエンドのエラーコードをメトリクスのラベルに変換する。
func resultLabel(code string) string {
	label := strings.TrimPrefix(code, "auth/")
	return strings.ReplaceAll(label, "-", "_")
}
