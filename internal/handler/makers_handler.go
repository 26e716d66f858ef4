package handler

import (
	"net/http"

	"github.com/hitoshi/makersgallery/internal/maker"
	"github.com/hitoshi/makersgallery/internal/middleware"
	"github.com/hitoshi/makersgallery/internal/model"
)

// MakersHandler は制作者ディレクトリのHTTPハンドラー。
type MakersHandler struct {
	directory *maker.Directory
}

// NewMakersHandler はMakersHandlerを生成する。
func NewMakersHandler(directory *maker.Directory) *MakersHandler {
	return &MakersHandler{directory: directory}
}

// List は制作者の一覧を返す。disciplineクエリで絞り込める。
// GET /api/makers
func (h *MakersHandler) List(w http.ResponseWriter, r *http.Request) {
	var makers []model.Maker
	if discipline := r.URL.Query().Get("discipline"); discipline != "" {
		makers = h.directory.ByDiscipline(discipline)
	} else {
		makers = h.directory.List()
	}
	if makers == nil {
		makers = []model.Maker{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string][]model.Maker{"makers": makers})
}
