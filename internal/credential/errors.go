package credential

import "fmt"

// 認証バックエンドのエラーコード。フロントエンドの既存メッセージ対応表と互換の文字列を使う。
const (
	CodeInvalidEmail       = "auth/invalid-email"
	CodeWeakPassword       = "auth/weak-password"
	CodeEmailAlreadyInUse  = "auth/email-already-in-use"
	CodeUserNotFound       = "auth/user-not-found"
	CodeWrongPassword      = "auth/wrong-password"
	CodeInternal           = "auth/internal-error"
	minimumPasswordLength  = 6
	invalidEmailMessage    = "The email address is badly formatted."
	weakPasswordMessage    = "Password should be at least 6 characters."
	emailInUseMessage      = "The email address is already in use by another account."
	userNotFoundMessage    = "There is no user record corresponding to this identifier."
	wrongPasswordMessage   = "The password is invalid or the user does not have a password."
	internalFailureMessage = "An internal error has occurred."
)

// Error は認証バックエンドが返す分類済みエラー。
// Messageは利用者にそのまま表示してよい文言。
type Error struct {
	Code    string
	Message string
	Err     error // 原因（内部エラーの場合のみ）
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Unwrap は原因エラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func internalError(err error) *Error {
	return &Error{Code: CodeInternal, Message: internalFailureMessage, Err: err}
}
