// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"net/http"

	"github.com/hitoshi/makersgallery/internal/auth"
	"github.com/hitoshi/makersgallery/internal/credential"
	"github.com/hitoshi/makersgallery/internal/docstore"
	"github.com/hitoshi/makersgallery/internal/favorites"
	"github.com/hitoshi/makersgallery/internal/identity"
	"github.com/hitoshi/makersgallery/internal/metrics"
	"github.com/hitoshi/makersgallery/internal/middleware"
)

// PageContext はリクエストごとのコントローラーとお気に入りマネージャーの組。
// 遷移指示はNavigatorに記録され、レスポンスに反映される。
type PageContext struct {
	Client     *credential.Client
	Controller *auth.Controller
	Favorites  *favorites.Manager
	Navigator  *auth.RecordingNavigator
}

// PageFactory はリクエストの認証クライアントからPageContextを組み立てる。
type PageFactory struct {
	backend   credential.Backend
	mapper    *identity.Mapper
	store     docstore.Store
	guard     *favorites.ToggleGuard
	collector metrics.MetricsCollector
	config    auth.Config
}

// NewPageFactory はPageFactoryを生成する。guardは全リクエストで共有する。
func NewPageFactory(
	backend credential.Backend,
	mapper *identity.Mapper,
	store docstore.Store,
	guard *favorites.ToggleGuard,
	collector metrics.MetricsCollector,
	config auth.Config,
) *PageFactory {
	if guard == nil {
		guard = favorites.NewToggleGuard()
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &PageFactory{
		backend:   backend,
		mapper:    mapper,
		store:     store,
		guard:     guard,
		collector: collector,
		config:    config,
	}
}

// For はリクエストのPageContextを返す。
// セッションミドルウェアを通っていない場合は匿名のクライアントを使う。
func (f *PageFactory) For(r *http.Request) *PageContext {
	client := middleware.ClientFromContext(r.Context())
	if client == nil {
		client = credential.NewClient(f.backend)
	}
	nav := &auth.RecordingNavigator{}
	return &PageContext{
		Client:     client,
		Controller: auth.NewController(client, f.mapper, f.store, nav, f.collector, f.config),
		Favorites:  favorites.NewManager(client, f.store, f.guard, nav, f.collector),
		Navigator:  nav,
	}
}
