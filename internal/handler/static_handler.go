package handler

import (
	"net/http"
	"path"
	"strings"

	"github.com/hitoshi/makersgallery/internal/auth"
)

// StaticHandler はWEB_ROOT配下の静的ファイルを配信する。
// 保護ページは未ログインの場合ログインページへリダイレクトする。
type StaticHandler struct {
	files     http.Handler
	pages     *PageFactory
	protected map[string]bool
}

// NewStaticHandler はStaticHandlerを生成する。protectedにはWEB_ROOTからの相対パスを渡す。
func NewStaticHandler(webRoot string, protected []string, pages *PageFactory) *StaticHandler {
	set := make(map[string]bool, len(protected))
	for _, p := range protected {
		set[normalizePage(p)] = true
	}
	return &StaticHandler{
		files:     http.FileServer(http.Dir(webRoot)),
		pages:     pages,
		protected: set,
	}
}

// ServeHTTP はhttp.Handlerインターフェースを実装する。
func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.protected[normalizePage(r.URL.Path)] {
		page := h.pages.For(r)
		gate := page.Controller.RequireAuth()
		defer gate.Cancel()

		if nav := page.Navigator.Last(); nav != nil && nav.View == auth.ViewLogin {
			http.Redirect(w, r, "/"+string(nav.View), http.StatusSeeOther)
			return
		}
	}
	h.files.ServeHTTP(w, r)
}

// normalizePage はURLパスを保護ページの照合用に正規化する。
func normalizePage(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" {
		return "index.html"
	}
	return p
}
