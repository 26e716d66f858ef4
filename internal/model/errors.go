package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, favorites, contact, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeLoginRequired   = "LOGIN_REQUIRED"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeMakerNotFound   = "MAKER_NOT_FOUND"
	ErrCodeSaveFailed      = "SAVE_FAILED"
	ErrCodeCSRFFailed      = "CSRF_FAILED"
	ErrCodeProfileNotFound = "PROFILE_NOT_FOUND"
	ErrCodeContactFailed   = "CONTACT_FAILED"
	ErrCodeUnavailable     = "UNAVAILABLE"
)

// NewUnauthorizedError は未ログインエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "You are not logged in.",
		Category: "auth",
		Action:   "Please log in and try again.",
	}
}

// NewLoginRequiredError はお気に入り保存時の未ログインエラーを生成する。
// messageにはユーザーに表示する文言を渡す。
func NewLoginRequiredError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeLoginRequired,
		Message:  message,
		Category: "auth",
		Action:   "Log in, then save the maker again.",
	}
}

// NewInvalidRequestError はリクエストボディの不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Invalid request: %s", reason),
		Category: "validation",
		Action:   "Check the submitted fields and try again.",
	}
}

// NewMakerNotFoundError は制作者未検出エラーを生成する。
func NewMakerNotFoundError(makerID string) *APIError {
	return &APIError{
		Code:     ErrCodeMakerNotFound,
		Message:  fmt.Sprintf("Maker not found: %s", makerID),
		Category: "favorites",
		Action:   "Reload the maker directory and try again.",
	}
}

// NewSaveFailedError はお気に入りの永続化失敗エラーを生成する。
func NewSaveFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeSaveFailed,
		Message:  "The maker could not be saved.",
		Category: "favorites",
		Action:   "Please wait a moment and try again.",
	}
}

// NewCSRFError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFFailed,
		Message:  "CSRF token validation failed.",
		Category: "auth",
		Action:   "Reload the page and try again.",
	}
}

// NewProfileNotFoundError はログイン中のアカウントにプロフィールがない場合のエラーを生成する。
func NewProfileNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  "Your profile could not be loaded.",
		Category: "auth",
		Action:   "Log out and log in again.",
	}
}

// NewContactFailedError は問い合わせの送信失敗エラーを生成する。
// messageには送信先から返された文言を渡す。
func NewContactFailedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeContactFailed,
		Message:  message,
		Category: "contact",
		Action:   "Please try again later.",
	}
}

// NewUnavailableError は依存先が応答しない場合のエラーを生成する。
func NewUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeUnavailable,
		Message:  "The service is temporarily unavailable.",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	}
}
