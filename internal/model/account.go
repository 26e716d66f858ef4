package model

import "time"

// Account はクレデンシャルサービスが管理するログインアカウントを表す。
// Addressはハンドルから導出された合成メールアドレス。
type Account struct {
	ID           string
	Address      string
	PasswordHash string
	CreatedAt    time.Time
}

// Session はアカウントのログインセッションを表す。
type Session struct {
	ID        string
	AccountID string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired はセッションが指定時刻の時点で期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
