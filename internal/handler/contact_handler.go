package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/makersgallery/internal/contact"
	"github.com/hitoshi/makersgallery/internal/middleware"
	"github.com/hitoshi/makersgallery/internal/model"
)

// ContactSubmitter は問い合わせフォームの送信先。
type ContactSubmitter interface {
	Submit(ctx context.Context, s contact.Submission) contact.Result
}

// ContactHandler は問い合わせフォームのHTTPハンドラー。
type ContactHandler struct {
	relay ContactSubmitter
}

// NewContactHandler はContactHandlerを生成する。
func NewContactHandler(relay ContactSubmitter) *ContactHandler {
	return &ContactHandler{relay: relay}
}

// Submit はフォームの内容を送信する。
// name, email, bio以外の文字列フィールドもそのまま転送する。access_keyは受け付けない。
// POST /api/contact
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var form map[string]string
	if err := decodeJSON(w, r, &form); err != nil {
		writeInvalidRequest(w, "form fields must be strings")
		return
	}

	s := contact.Submission{
		Name:  form["name"],
		Email: form["email"],
		Bio:   form["bio"],
		Extra: make(map[string]string),
	}
	for k, v := range form {
		switch k {
		case "name", "email", "bio", "access_key":
		default:
			s.Extra[k] = v
		}
	}

	result := h.relay.Submit(r.Context(), s)
	if !result.Success {
		if s.Validate() != nil {
			middleware.WriteJSON(w, http.StatusBadRequest, result)
			return
		}
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewContactFailedError(result.Message))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}
