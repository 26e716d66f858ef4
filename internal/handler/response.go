package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hitoshi/makersgallery/internal/auth"
	"github.com/hitoshi/makersgallery/internal/middleware"
	"github.com/hitoshi/makersgallery/internal/model"
)

// maxRequestBody はJSONリクエストボディの上限（バイト）。
const maxRequestBody = 64 * 1024

// navigationResponse は画面遷移指示のJSON表現。
type navigationResponse struct {
	View      string `json:"view"`
	DelayMs   int64  `json:"delay_ms"`
	ResetForm string `json:"reset_form"`
}

// outcomeResponse は認証フローの結果のJSON表現。
type outcomeResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Next    *navigationResponse `json:"next,omitempty"`
}

func toNavigationResponse(nav *auth.Navigation) *navigationResponse {
	if nav == nil {
		return nil
	}
	return &navigationResponse{
		View:      string(nav.View),
		DelayMs:   nav.Delay.Milliseconds(),
		ResetForm: nav.ResetForm,
	}
}

func toOutcomeResponse(o auth.Outcome) outcomeResponse {
	return outcomeResponse{
		Success: o.Success,
		Message: o.Message,
		Next:    toNavigationResponse(o.Next),
	}
}

// writeOutcome は成功なら200、失敗なら400で結果を書き込む。
func writeOutcome(w http.ResponseWriter, o auth.Outcome) {
	status := http.StatusOK
	if !o.Success {
		status = http.StatusBadRequest
	}
	middleware.WriteJSON(w, status, toOutcomeResponse(o))
}

// loginRequiredResponse はログイン必須エラーに遷移指示を添えたレスポンス。
type loginRequiredResponse struct {
	middleware.ErrorResponseBody
	Next *navigationResponse `json:"next,omitempty"`
}

func writeLoginRequired(w http.ResponseWriter, message string, nav *auth.Navigation) {
	apiErr := model.NewLoginRequiredError(message)
	middleware.WriteJSON(w, http.StatusUnauthorized, loginRequiredResponse{
		ErrorResponseBody: middleware.ErrorResponseBody{
			Code:     apiErr.Code,
			Message:  apiErr.Message,
			Category: apiErr.Category,
			Action:   apiErr.Action,
		},
		Next: toNavigationResponse(nav),
	})
}

// decodeJSON はリクエストボディをvにデコードする。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode request body: %w", err)
	}
	return nil
}

func writeInvalidRequest(w http.ResponseWriter, reason string) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(reason))
}
