// Package favorites はログイン中のユーザーが保存した制作者（お気に入り）を管理する。
// お気に入りは users/{uid}/savedMakers/{makerID} に保存する。
package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/makersgallery/internal/auth"
	"github.com/hitoshi/makersgallery/internal/docstore"
	"github.com/hitoshi/makersgallery/internal/identity"
	"github.com/hitoshi/makersgallery/internal/metrics"
	"github.com/hitoshi/makersgallery/internal/model"
	"golang.org/x/sync/singleflight"
)

// SavedMakersCollection はお気に入りのサブコレクション名。
const SavedMakersCollection = "savedMakers"

// MsgLoginRequired は未ログインで保存しようとした場合のメッセージ。
const MsgLoginRequired = "Please log in to save makers"

// ErrLoginRequired は未ログインで保存しようとした場合のエラー。
var ErrLoginRequired = errors.New(MsgLoginRequired)

// SessionSource は現在のセッションを返す。
type SessionSource interface {
	CurrentSession() *model.Session
}

// ToggleGuard は同一ユーザー・同一制作者へのトグルの同時実行を1回にまとめる。
// リクエストをまたいで共有する。
type ToggleGuard struct {
	group singleflight.Group
}

// NewToggleGuard はToggleGuardを生成する。
func NewToggleGuard() *ToggleGuard {
	return &ToggleGuard{}
}

// Manager はお気に入りの保存、削除、一覧、トグルを提供する。
type Manager struct {
	sessions  SessionSource
	store     docstore.Store
	guard     *ToggleGuard
	navigator auth.Navigator
	metrics   metrics.MetricsCollector
}

// NewManager はManagerを生成する。guardがnilの場合はこのManager専用のものを使う。
func NewManager(
	sessions SessionSource,
	store docstore.Store,
	guard *ToggleGuard,
	navigator auth.Navigator,
	collector metrics.MetricsCollector,
) *Manager {
	if guard == nil {
		guard = NewToggleGuard()
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Manager{
		sessions:  sessions,
		store:     store,
		guard:     guard,
		navigator: navigator,
		metrics:   collector,
	}
}

// FavoritePath はお気に入りドキュメントのパスを返す。
func FavoritePath(uid, makerID string) string {
	return docstore.Doc(identity.UsersCollection, uid, SavedMakersCollection, makerID)
}

// FavoritesCollection はユーザーのお気に入りコレクションのパスを返す。
func FavoritesCollection(uid string) string {
	return docstore.Collection(identity.UsersCollection, uid, SavedMakersCollection)
}

// Save は制作者をお気に入りに保存する。保存済みの場合は上書きする。
// 未ログインの場合はErrLoginRequiredを返し、ログインページへ遷移させる。
func (m *Manager) Save(ctx context.Context, maker model.Maker) error {
	session := m.sessions.CurrentSession()
	if session == nil {
		if m.navigator != nil {
			m.navigator.Navigate(auth.Navigation{View: auth.ViewLogin})
		}
		return ErrLoginRequired
	}
	return m.save(ctx, session.AccountID, maker)
}

func (m *Manager) save(ctx context.Context, uid string, maker model.Maker) error {
	fields, err := makerFields(maker)
	if err != nil {
		return err
	}
	fields["savedAt"] = docstore.ServerTimestamp

	if err := m.store.Set(ctx, FavoritePath(uid, maker.ID), fields); err != nil {
		slog.Error("failed to save maker",
			slog.String("user_id", uid),
			slog.String("maker_id", maker.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to save maker %s: %w", maker.ID, err)
	}
	return nil
}

// Unsave はお気に入りから削除する。未保存の場合も成功とする。
// 未ログインの場合は遷移せずにfalseを返す。
func (m *Manager) Unsave(ctx context.Context, makerID string) bool {
	session := m.sessions.CurrentSession()
	if session == nil {
		return false
	}
	return m.unsave(ctx, session.AccountID, makerID)
}

func (m *Manager) unsave(ctx context.Context, uid, makerID string) bool {
	if err := m.store.Delete(ctx, FavoritePath(uid, makerID)); err != nil {
		slog.Error("failed to remove maker",
			slog.String("user_id", uid),
			slog.String("maker_id", makerID),
			slog.String("error", err.Error()),
		)
		m.metrics.RecordSwallowedError("favorites.unsave")
		return false
	}
	return true
}

// List はお気に入りの一覧を返す。未ログインまたは失敗時は空を返す。
func (m *Manager) List(ctx context.Context) []model.Favorite {
	session := m.sessions.CurrentSession()
	if session == nil {
		return []model.Favorite{}
	}

	docs, err := m.store.List(ctx, FavoritesCollection(session.AccountID))
	if err != nil {
		slog.Error("failed to get saved makers",
			slog.String("user_id", session.AccountID),
			slog.String("error", err.Error()),
		)
		m.metrics.RecordSwallowedError("favorites.list")
		return []model.Favorite{}
	}

	favorites := make([]model.Favorite, 0, len(docs))
	for _, doc := range docs {
		var fav model.Favorite
		if err := doc.DataTo(&fav); err != nil {
			slog.Warn("skipping malformed saved maker",
				slog.String("path", doc.Path),
				slog.String("error", err.Error()),
			)
			m.metrics.RecordSwallowedError("favorites.list")
			continue
		}
		if fav.ID == "" {
			fav.ID = doc.ID
		}
		favorites = append(favorites, fav)
	}
	return favorites
}

// IsSaved は制作者が保存済みかどうかを返す。未ログインまたは失敗時はfalse。
func (m *Manager) IsSaved(ctx context.Context, makerID string) bool {
	session := m.sessions.CurrentSession()
	if session == nil {
		return false
	}
	return m.isSaved(ctx, session.AccountID, makerID)
}

func (m *Manager) isSaved(ctx context.Context, uid, makerID string) bool {
	doc, err := m.store.Get(ctx, FavoritePath(uid, makerID))
	if err != nil {
		slog.Error("failed to check saved maker",
			slog.String("user_id", uid),
			slog.String("maker_id", makerID),
			slog.String("error", err.Error()),
		)
		m.metrics.RecordSwallowedError("favorites.is_saved")
		return false
	}
	return doc != nil
}

// Toggle は保存状態を反転し、新しい状態を返す。
// 同一ユーザー・同一制作者の同時トグルは1回の実行を共有する。
func (m *Manager) Toggle(ctx context.Context, maker model.Maker) (bool, error) {
	session := m.sessions.CurrentSession()
	if session == nil {
		return false, m.Save(ctx, maker)
	}
	uid := session.AccountID

	// 共有される実行は最初の呼び出し元のキャンセルに影響されない
	shareCtx := context.WithoutCancel(ctx)
	v, err, shared := m.guard.group.Do(uid+"/"+maker.ID, func() (interface{}, error) {
		if m.isSaved(shareCtx, uid, maker.ID) {
			m.unsave(shareCtx, uid, maker.ID)
			return false, nil
		}
		if err := m.save(shareCtx, uid, maker); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}
	if shared {
		slog.Debug("toggle shared with in-flight request",
			slog.String("user_id", uid),
			slog.String("maker_id", maker.ID),
		)
	}

	saved := v.(bool)
	m.metrics.RecordFavoriteToggle(saved)
	return saved, nil
}

// makerFields は制作者をドキュメントのフィールドに変換する。
func makerFields(maker model.Maker) (docstore.Fields, error) {
	b, err := json.Marshal(maker)
	if err != nil {
		return nil, fmt.Errorf("failed to encode maker: %w", err)
	}
	fields := docstore.Fields{}
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode maker: %w", err)
	}
	return fields, nil
}
