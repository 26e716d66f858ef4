package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/makersgallery/internal/favorites"
	"github.com/hitoshi/makersgallery/internal/maker"
	"github.com/hitoshi/makersgallery/internal/middleware"
	"github.com/hitoshi/makersgallery/internal/model"
)

// FavoritesHandler はお気に入り関連のHTTPハンドラー。
type FavoritesHandler struct {
	pages     *PageFactory
	directory *maker.Directory
}

// NewFavoritesHandler はFavoritesHandlerを生成する。
func NewFavoritesHandler(pages *PageFactory, directory *maker.Directory) *FavoritesHandler {
	return &FavoritesHandler{pages: pages, directory: directory}
}

// favoriteStateResponse は1件のお気に入り状態。
type favoriteStateResponse struct {
	MakerID string `json:"makerId"`
	Saved   bool   `json:"saved"`
}

// List はお気に入りの一覧を返す。未ログインの場合は空の一覧。
// GET /api/favorites
func (h *FavoritesHandler) List(w http.ResponseWriter, r *http.Request) {
	page := h.pages.For(r)
	middleware.WriteJSON(w, http.StatusOK, map[string][]model.Favorite{
		"favorites": page.Favorites.List(r.Context()),
	})
}

// Get は制作者の保存状態を返す。
// GET /api/favorites/{id}
func (h *FavoritesHandler) Get(w http.ResponseWriter, r *http.Request) {
	makerID := chi.URLParam(r, "id")
	page := h.pages.For(r)
	middleware.WriteJSON(w, http.StatusOK, favoriteStateResponse{
		MakerID: makerID,
		Saved:   page.Favorites.IsSaved(r.Context(), makerID),
	})
}

// Save は制作者をお気に入りに保存する。
// PUT /api/favorites/{id}
func (h *FavoritesHandler) Save(w http.ResponseWriter, r *http.Request) {
	m, ok := h.findMaker(w, r)
	if !ok {
		return
	}

	page := h.pages.For(r)
	if err := page.Favorites.Save(r.Context(), m); err != nil {
		h.writeSaveError(w, page, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, favoriteStateResponse{MakerID: m.ID, Saved: true})
}

// Unsave はお気に入りから削除する。
// DELETE /api/favorites/{id}
func (h *FavoritesHandler) Unsave(w http.ResponseWriter, r *http.Request) {
	makerID := chi.URLParam(r, "id")
	page := h.pages.For(r)
	if page.Client.CurrentSession() == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if !page.Favorites.Unsave(r.Context(), makerID) {
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewSaveFailedError())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, favoriteStateResponse{MakerID: makerID, Saved: false})
}

// Toggle は保存状態を反転する。
// POST /api/favorites/{id}/toggle
func (h *FavoritesHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	m, ok := h.findMaker(w, r)
	if !ok {
		return
	}

	page := h.pages.For(r)
	saved, err := page.Favorites.Toggle(r.Context(), m)
	if err != nil {
		h.writeSaveError(w, page, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, favoriteStateResponse{MakerID: m.ID, Saved: saved})
}

func (h *FavoritesHandler) findMaker(w http.ResponseWriter, r *http.Request) (model.Maker, bool) {
	makerID := chi.URLParam(r, "id")
	m, ok := h.directory.Find(makerID)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewMakerNotFoundError(makerID))
		return model.Maker{}, false
	}
	return m, true
}

func (h *FavoritesHandler) writeSaveError(w http.ResponseWriter, page *PageContext, err error) {
	if errors.Is(err, favorites.ErrLoginRequired) {
		writeLoginRequired(w, favorites.MsgLoginRequired, page.Navigator.Last())
		return
	}
	slog.Error("failed to save maker", slog.String("error", err.Error()))
	middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewSaveFailedError())
}
