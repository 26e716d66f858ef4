package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/makersgallery/internal/auth"
	"github.com/hitoshi/makersgallery/internal/middleware"
	"github.com/hitoshi/makersgallery/internal/model"
)

// AuthHandler はサインアップ、ログイン、ログアウト、プロフィール参照のHTTPハンドラー。
type AuthHandler struct {
	pages  *PageFactory
	cookie middleware.SessionCookieConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(pages *PageFactory, cookie middleware.SessionCookieConfig) *AuthHandler {
	return &AuthHandler{pages: pages, cookie: cookie}
}

// loginRequest はログインフォームの入力。
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// userResponse はログイン中ユーザーのプロフィール。
type userResponse struct {
	UID           string    `json:"uid"`
	Username      string    `json:"username"`
	UserType      string    `json:"userType"`
	UserTypeLabel string    `json:"userTypeLabel"`
	BadgeColor    string    `json:"badgeColor"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Signup はアカウントを作成する。
// POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var in auth.SignupInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeInvalidRequest(w, "malformed JSON body")
		return
	}

	page := h.pages.For(r)
	writeOutcome(w, page.Controller.Signup(r.Context(), in))
}

// Login はログインし、セッションCookieを設定する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeInvalidRequest(w, "malformed JSON body")
		return
	}

	page := h.pages.For(r)
	outcome := page.Controller.Login(r.Context(), in.Username, in.Password)
	if outcome.Success {
		if session := page.Client.CurrentSession(); session != nil {
			middleware.SetSessionCookie(w, session, h.cookie)
			middleware.SetLogUserID(r.Context(), session.AccountID)
		}
	}
	writeOutcome(w, outcome)
}

// Logout はセッションを破棄し、Cookieを削除する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	page := h.pages.For(r)
	page.Controller.Logout(r.Context())

	if page.Client.CurrentSession() != nil {
		slog.Warn("session kept after failed logout")
		middleware.WriteInternalServerError(w)
		return
	}

	middleware.ClearSessionCookie(w, h.cookie)
	middleware.WriteJSON(w, http.StatusOK, outcomeResponse{
		Success: true,
		Next:    toNavigationResponse(page.Navigator.Last()),
	})
}

// Me は現在のログインユーザーのプロフィールを返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	page := h.pages.For(r)
	if !page.Controller.IsLoggedIn() {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	ident := page.Controller.GetCurrentUser(r.Context())
	if ident == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewProfileNotFoundError())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, userResponse{
		UID:           ident.UID,
		Username:      ident.Username,
		UserType:      string(ident.UserType),
		UserTypeLabel: ident.UserType.DisplayName(),
		BadgeColor:    ident.UserType.BadgeColor(),
		CreatedAt:     ident.CreatedAt,
	})
}

// Status はログイン状態を返す。
// GET /auth/status
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	page := h.pages.For(r)
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{
		"loggedIn": page.Controller.IsLoggedIn(),
	})
}

// Profile はログイン状態に応じてプロフィールまたはログインページへリダイレクトする。
// GET /profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	page := h.pages.For(r)
	nav := page.Controller.GoToProfile()
	http.Redirect(w, r, "/"+string(nav.View), http.StatusSeeOther)
}
