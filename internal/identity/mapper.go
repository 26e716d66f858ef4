// Package identity はユーザー名からログイン用アドレスを導出し、
// ユーザー名の検証と予約状況の確認を行う。
package identity

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf16"

	"github.com/hitoshi/makersgallery/internal/docstore"
)

// ドキュメントストア上のコレクション名
const (
	UsersCollection     = "users"
	UsernamesCollection = "usernames"
)

// ユーザー名検証のメッセージ。MsgLoginHandleIsEmailはログイン画面用。
const (
	MsgHandleRequired     = "Please enter a username"
	MsgHandleIsEmail      = "Please enter a username, not an email address"
	MsgLoginHandleIsEmail = "Please enter your username, not an email address"
	MsgHandleTooShort     = "Username must be at least 3 characters"
	MsgHandleCharset      = "Username can only contain letters, numbers, dashes, and underscores"
)

const minimumHandleLength = 3

var handlePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidationError はユーザー名の検証エラー。Messageは利用者向けの文言。
type ValidationError struct {
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateHandle はユーザー名を検証する。最初に失敗した規則のエラーを返す。
// 順序: 空でない、@を含まない、3文字以上、英数字とダッシュとアンダースコアのみ。
func ValidateHandle(handle string) error {
	switch {
	case handle == "":
		return &ValidationError{Message: MsgHandleRequired}
	case strings.Contains(handle, "@"):
		return &ValidationError{Message: MsgHandleIsEmail}
	case handleLength(handle) < minimumHandleLength:
		return &ValidationError{Message: MsgHandleTooShort}
	case !handlePattern.MatchString(handle):
		return &ValidationError{Message: MsgHandleCharset}
	}
	return nil
}

// handleLength はUTF-16のコードユニット数で長さを数える。
// ブラウザ側の入力検証と同じ境界で文言を選ぶ。
func handleLength(handle string) int {
	return len(utf16.Encode([]rune(handle)))
}

// IdentityPath はプロフィールドキュメントのパスを返す。
func IdentityPath(uid string) string {
	return docstore.Doc(UsersCollection, uid)
}

// ReservationPath はユーザー名予約ドキュメントのパスを返す。大文字小文字は区別しない。
func ReservationPath(handle string) string {
	return docstore.Doc(UsernamesCollection, strings.ToLower(handle))
}

// Mapper はユーザー名とログイン用アドレスの対応を扱う。
type Mapper struct {
	domain string
	store  docstore.Store
}

// NewMapper はMapperを生成する。domainは運用中に変更してはならない。
func NewMapper(domain string, store docstore.Store) *Mapper {
	return &Mapper{domain: domain, store: store}
}

// DeriveAddress はユーザー名からログイン用アドレスを導出する。
// 既存アカウントとの互換のため、小文字化したユーザー名 + "@" + ドメインで固定。
func (m *Mapper) DeriveAddress(handle string) string {
	return strings.ToLower(handle) + "@" + m.domain
}

// Domain はアドレスのドメインを返す。
func (m *Mapper) Domain() string {
	return m.domain
}

// CheckHandleAvailable はユーザー名が未予約かどうかを返す。
func (m *Mapper) CheckHandleAvailable(ctx context.Context, handle string) (bool, error) {
	doc, err := m.store.Get(ctx, ReservationPath(handle))
	if err != nil {
		return false, fmt.Errorf("failed to check username reservation: %w", err)
	}
	return doc == nil, nil
}
