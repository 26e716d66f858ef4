package security

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は制作者一覧の表示テキストとリンクを無害化する。
type TextSanitizer interface {
	// SanitizeText はすべてのタグを除去し、innerHTMLに代入しても安全なテキストを返す。
	SanitizeText(raw string) string
	// SanitizeLink はhttp/httpsの絶対URL、またはスキームなしの相対パスのみを返す。
	// それ以外は空文字列を返す。
	SanitizeLink(raw string) string
}

type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はbluemondayのstrictポリシーを使うTextSanitizerを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeText はタグを除去して前後の空白を取り除く。&などはエスケープされたまま残る。
func (s *textSanitizer) SanitizeText(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}

// SanitizeLink はjavascript:やdata:などのスキームを拒否する。
func (s *textSanitizer) SanitizeLink(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return ""
		}
		return u.String()
	case "":
		if u.Host != "" || strings.Contains(u.Path, ":") {
			return ""
		}
		return u.String()
	default:
		return ""
	}
}
