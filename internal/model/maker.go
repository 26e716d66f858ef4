package model

import "time"

// Maker はディレクトリに掲載される制作者を表す。
// makers.json のフィールド名をそのまま使う。
type Maker struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Major        string `json:"major,omitempty"`
	Discipline   string `json:"discipline,omitempty"`
	Portfolio    string `json:"portfolio,omitempty"`
	HeadshotLink string `json:"headshotLink,omitempty"`
}

// Favorite は users/{uid}/savedMakers/{id} に保存されたお気に入りを表す。
type Favorite struct {
	Maker
	SavedAt time.Time `json:"savedAt"`
}
