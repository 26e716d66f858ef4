// Package model はドメインモデルを定義する。
package model

import "time"

// Role はアカウント種別を表す。
type Role string

const (
	// RoleStudent は学生アカウント。
	RoleStudent Role = "student"
	// RoleFaculty は教員アカウント。
	RoleFaculty Role = "faculty"
	// RoleEmployer は採用担当者アカウント。
	RoleEmployer Role = "employer"
	// RoleViewer は閲覧のみのアカウント。
	RoleViewer Role = "viewer"
)

// defaultBadgeColor は未知の種別に使うバッジ色。
const defaultBadgeColor = "#666666"

var roleDisplayNames = map[Role]string{
	RoleStudent:  "Student",
	RoleFaculty:  "Faculty",
	RoleEmployer: "Potential Employer",
	RoleViewer:   "Viewer",
}

var roleBadgeColors = map[Role]string{
	RoleStudent:  "#0070ff",
	RoleFaculty:  "#d60000",
	RoleEmployer: "#008000",
	RoleViewer:   defaultBadgeColor,
}

// Valid は定義済みの種別かどうかを返す。
func (r Role) Valid() bool {
	_, ok := roleDisplayNames[r]
	return ok
}

// DisplayName は画面表示用の種別名を返す。未知の種別はそのまま返す。
func (r Role) DisplayName() string {
	if name, ok := roleDisplayNames[r]; ok {
		return name
	}
	return string(r)
}

// BadgeColor はプロフィール画面のバッジ色を返す。
func (r Role) BadgeColor() string {
	if color, ok := roleBadgeColors[r]; ok {
		return color
	}
	return defaultBadgeColor
}

// Identity は users/{uid} に保存されるプロフィールドキュメントを表す。
// フィールド名は既存アカウントのドキュメントと互換性を保つ。
type Identity struct {
	UID       string    `json:"-"`
	Username  string    `json:"username"`
	UserType  Role      `json:"userType"`
	CreatedAt time.Time `json:"createdAt"`
}

// Reservation は usernames/{小文字ハンドル} に保存されるハンドル予約を表す。
// 一度予約されたハンドルは解放されない。
type Reservation struct {
	UID string `json:"uid"`
}
