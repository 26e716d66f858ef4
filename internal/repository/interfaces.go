// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/makersgallery/internal/model"
)

// ErrAddressTaken はアドレスが既に登録済みの場合のエラー。
// 事前チェックと作成の間に競合した場合にも返る。
var ErrAddressTaken = errors.New("address already registered")

// AccountRepository はログインアカウントの永続化インターフェース。
type AccountRepository interface {
	// Create はアカウントを作成する。アドレスが重複する場合はErrAddressTakenを返す。
	Create(ctx context.Context, account *model.Account) error

	// FindByAddress はアドレスでアカウントを検索する。見つからない場合はnilを返す。
	FindByAddress(ctx context.Context, address string) (*model.Account, error)

	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
