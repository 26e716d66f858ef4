package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/makersgallery/internal/model"
)

// MemoryAccountRepo はメモリ上のアカウントリポジトリ。
// STORAGE_BACKEND=memory の開発モードとテストで使用する。
type MemoryAccountRepo struct {
	mu        sync.RWMutex
	byID      map[string]*model.Account
	byAddress map[string]string
}

// NewMemoryAccountRepo はMemoryAccountRepoを生成する。
func NewMemoryAccountRepo() *MemoryAccountRepo {
	return &MemoryAccountRepo{
		byID:      make(map[string]*model.Account),
		byAddress: make(map[string]string),
	}
}

// Create はアカウントを作成する。アドレスが重複する場合はErrAddressTakenを返す。
func (r *MemoryAccountRepo) Create(_ context.Context, account *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byAddress[account.Address]; exists {
		return ErrAddressTaken
	}
	stored := *account
	r.byID[account.ID] = &stored
	r.byAddress[account.Address] = account.ID
	return nil
}

// FindByAddress はアドレスでアカウントを検索する。見つからない場合はnilを返す。
func (r *MemoryAccountRepo) FindByAddress(_ context.Context, address string) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byAddress[address]
	if !ok {
		return nil, nil
	}
	found := *r.byID[id]
	return &found, nil
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *MemoryAccountRepo) FindByID(_ context.Context, id string) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	found := *account
	return &found, nil
}

// MemorySessionRepo はメモリ上のセッションリポジトリ。
type MemorySessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
	now      func() time.Time
}

// NewMemorySessionRepo はMemorySessionRepoを生成する。
func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{
		sessions: make(map[string]*model.Session),
		now:      time.Now,
	}
}

// Create はセッションを作成する。
func (r *MemorySessionRepo) Create(_ context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *session
	r.sessions[session.ID] = &stored
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *MemorySessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok || session.Expired(r.now()) {
		return nil, nil
	}
	found := *session
	return &found, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *MemorySessionRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	return nil
}

// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
func (r *MemorySessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var n int64
	for id, session := range r.sessions {
		if session.Expired(now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// compile-time interface check
var (
	_ AccountRepository = (*MemoryAccountRepo)(nil)
	_ SessionRepository = (*MemorySessionRepo)(nil)
)
