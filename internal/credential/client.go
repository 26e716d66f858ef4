package credential

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/makersgallery/internal/model"
)

// Backend はClientが利用する認証バックエンドのインターフェース。
type Backend interface {
	CreateAccount(ctx context.Context, address, secret string) (*model.Account, error)
	SignIn(ctx context.Context, address, secret string) (*model.Session, error)
	SignOut(ctx context.Context, sessionID string) error
	Resume(ctx context.Context, sessionID string) (*model.Session, error)
}

// SessionObserver はセッション状態の通知を受け取る関数。
// 匿名状態ではnilが渡される。
type SessionObserver func(session *model.Session)

// Subscription はObserveSessionで登録した購読。
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Cancel は購読を解除する。複数回呼んでも安全。
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

type observerEntry struct {
	id uint64
	fn SessionObserver
}

// Client は1つのページコンテキスト（HTTPリクエスト）に対応するセッション保持者。
// 現在のセッションと購読者を管理し、状態遷移のたびに購読者へ通知する。
type Client struct {
	backend Backend
	now     func() time.Time

	mu        sync.Mutex
	session   *model.Session
	observers []observerEntry
	nextID    uint64
	closed    bool
}

// NewClient は匿名状態のClientを生成する。
func NewClient(backend Backend) *Client {
	return &Client{
		backend: backend,
		now:     time.Now,
	}
}

// Restore はセッションIDから既存のセッションを再開する。
// 不明または期限切れの場合は匿名状態のまま。
func (c *Client) Restore(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	session, err := c.backend.Resume(ctx, sessionID)
	if err != nil {
		return err
	}
	if session != nil {
		c.transition(session)
	}
	return nil
}

// CreateAccount はアカウントを作成する。現在のセッションは変更しない。
func (c *Client) CreateAccount(ctx context.Context, address, secret string) (*model.Account, error) {
	return c.backend.CreateAccount(ctx, address, secret)
}

// SignIn はサインインし、発行されたセッションを現在のセッションにする。
func (c *Client) SignIn(ctx context.Context, address, secret string) (*model.Session, error) {
	session, err := c.backend.SignIn(ctx, address, secret)
	if err != nil {
		return nil, err
	}
	c.transition(session)
	return session, nil
}

// SignOut は現在のセッションを破棄し、匿名状態にする。
// 匿名状態で呼んだ場合は何もしない。
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return nil
	}
	if err := c.backend.SignOut(ctx, session.ID); err != nil {
		return err
	}
	c.transition(nil)
	return nil
}

// CurrentSession は現在のセッションを返す。匿名状態ではnilを返す。
// 期限切れを検出した場合は匿名状態へ遷移して購読者に通知する。
func (c *Client) CurrentSession() *model.Session {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return nil
	}
	if session.Expired(c.now()) {
		c.transition(nil)
		return nil
	}
	found := *session
	return &found
}

// Refresh はバックエンドに問い合わせ、失効したセッションを検出する。
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return nil
	}
	current, err := c.backend.Resume(ctx, session.ID)
	if err != nil {
		return err
	}
	if current == nil {
		slog.Info("session no longer valid", slog.String("account_id", session.AccountID))
		c.transition(nil)
	}
	return nil
}

// ObserveSession は購読者を登録し、現在の状態で一度だけ即時に通知する。
// Close済みのClientでは通知せず、解除済みの購読を返す。
func (c *Client) ObserveSession(fn SessionObserver) *Subscription {
	current := c.CurrentSession()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sub := &Subscription{}
		sub.Cancel()
		return sub
	}
	c.nextID++
	id := c.nextID
	c.observers = append(c.observers, observerEntry{id: id, fn: fn})
	c.mu.Unlock()

	fn(current)

	return &Subscription{cancel: func() { c.removeObserver(id) }}
}

// Close はすべての購読を解除する。ページコンテキストの破棄時に呼ぶ。
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.observers = nil
}

// Observers は登録中の購読者数を返す。
func (c *Client) Observers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.observers)
}

func (c *Client) removeObserver(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, entry := range c.observers {
		if entry.id == id {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			return
		}
	}
}

// transition は現在のセッションを置き換え、状態が変わった場合に購読者へ通知する。
// 通知はロックの外で登録順に行う。
func (c *Client) transition(session *model.Session) {
	c.mu.Lock()
	changed := !sameSession(c.session, session)
	c.session = session
	observers := make([]SessionObserver, 0, len(c.observers))
	for _, entry := range c.observers {
		observers = append(observers, entry.fn)
	}
	c.mu.Unlock()

	if !changed {
		return
	}

	var snapshot *model.Session
	if session != nil {
		copied := *session
		snapshot = &copied
	}
	for _, fn := range observers {
		fn(snapshot)
	}
}

func sameSession(a, b *model.Session) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}
