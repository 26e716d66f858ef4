// Package contact は問い合わせフォームの内容を外部のフォーム送信サービスへ転送する。
package contact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/hitoshi/makersgallery/internal/metrics"
)

// DefaultEndpoint は既定のフォーム送信サービスのURL。
const DefaultEndpoint = "https://api.web3forms.com/submit"

// 利用者向けメッセージ
const (
	MsgMissingFields    = "Please fill in your name, email, and short bio."
	MsgInvalidEmail     = "Please enter a valid email address."
	MsgSubmitted        = "Thanks! Your message has been sent."
	MsgSubmissionFailed = "Submission failed."
	MsgTransportFailure = "Something went wrong. Please try again later."
)

// maxResponseSize は送信先の応答として読み込む上限。
const maxResponseSize = 64 * 1024

// Submission は問い合わせフォームの入力。Extraにはその他のフォーム項目が入る。
type Submission struct {
	Name  string
	Email string
	Bio   string
	Extra map[string]string
}

// ValidationError は入力検証エラー。Messageは利用者向けの文言。
type ValidationError struct {
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	return e.Message
}

// Validate は名前、メールアドレス、自己紹介の入力を検証する。
func (s Submission) Validate() error {
	if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.Email) == "" || strings.TrimSpace(s.Bio) == "" {
		return &ValidationError{Message: MsgMissingFields}
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(s.Email)); err != nil {
		return &ValidationError{Message: MsgInvalidEmail}
	}
	return nil
}

// payload は送信先へ送るJSONを組み立てる。Extraの同名キーより固定項目を優先する。
func (s Submission) payload(accessKey string) map[string]string {
	body := make(map[string]string, len(s.Extra)+4)
	for k, v := range s.Extra {
		body[k] = v
	}
	body["name"] = strings.TrimSpace(s.Name)
	body["email"] = strings.TrimSpace(s.Email)
	body["bio"] = strings.TrimSpace(s.Bio)
	if accessKey != "" {
		body["access_key"] = accessKey
	}
	return body
}

// Result は送信結果。Messageはそのまま表示できる文言。
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Config はRelayの設定。
type Config struct {
	Endpoint  string
	AccessKey string
}

// Relay は問い合わせをフォーム送信サービスへ転送する。
type Relay struct {
	client  *http.Client
	config  Config
	metrics metrics.MetricsCollector
}

// NewRelay はRelayを生成する。clientには接続先を制限したクライアントを渡す。
func NewRelay(client *http.Client, config Config, collector metrics.MetricsCollector) *Relay {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Relay{client: client, config: config, metrics: collector}
}

// Submit は入力を検証して送信する。送信先が200を返した場合のみ成功とする。
func (r *Relay) Submit(ctx context.Context, s Submission) Result {
	if err := s.Validate(); err != nil {
		r.metrics.RecordContactSubmission("invalid")
		return Result{Success: false, Message: err.Error()}
	}

	start := time.Now()
	status, message, err := r.post(ctx, s.payload(r.config.AccessKey))
	r.metrics.RecordContactLatency(time.Since(start))

	if err != nil {
		slog.Error("contact submission error", slog.String("error", err.Error()))
		r.metrics.RecordContactSubmission("transport_error")
		return Result{Success: false, Message: MsgTransportFailure}
	}

	if status != http.StatusOK {
		slog.Error("contact submission rejected",
			slog.Int("status", status),
			slog.String("message", message),
		)
		r.metrics.RecordContactSubmission("rejected")
		if message == "" {
			message = MsgSubmissionFailed
		}
		return Result{Success: false, Message: message}
	}

	r.metrics.RecordContactSubmission("success")
	return Result{Success: true, Message: MsgSubmitted}
}

// post はJSONを送信し、ステータスと応答のmessageを返す。
// 応答がJSONでない場合のmessageは空文字列。
func (r *Relay) post(ctx context.Context, body map[string]string) (int, string, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return 0, "", fmt.Errorf("failed to encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.Endpoint, bytes.NewReader(encoded))
	if err != nil {
		return 0, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("failed to send submission: %w", err)
	}
	defer resp.Body.Close()

	var decoded struct {
		Message string `json:"message"`
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err == nil {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp.StatusCode, decoded.Message, nil
}
