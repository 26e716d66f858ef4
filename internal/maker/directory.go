// Package maker はmakers.jsonから読み込んだ制作者一覧を提供する。
package maker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/hitoshi/makersgallery/internal/model"
	"github.com/hitoshi/makersgallery/internal/security"
)

// Directory は読み込み済みの制作者一覧。読み込み後は変更されない。
type Directory struct {
	makers []model.Maker
	byID   map[string]int
}

// Load はJSON配列のファイルを読み込む。
// ファイルが存在しない場合はログを出して空の一覧を返す。
func Load(path string, sanitizer security.TextSanitizer) (*Directory, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("makers file not found, serving empty directory", slog.String("path", path))
		return NewDirectory(nil, sanitizer), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read makers file: %w", err)
	}

	var makers []model.Maker
	if err := json.Unmarshal(data, &makers); err != nil {
		return nil, fmt.Errorf("failed to parse makers file %s: %w", path, err)
	}

	dir := NewDirectory(makers, sanitizer)
	slog.Info("makers loaded", slog.String("path", path), slog.Int("count", len(dir.makers)))
	return dir, nil
}

// NewDirectory はテキストを無害化し、IDのない制作者には名前からIDを割り当てる。
// 名前もIDもない項目は除外する。
func NewDirectory(makers []model.Maker, sanitizer security.TextSanitizer) *Directory {
	d := &Directory{
		makers: make([]model.Maker, 0, len(makers)),
		byID:   make(map[string]int, len(makers)),
	}

	for _, raw := range makers {
		id := Slug(raw.ID)
		if id == "" {
			id = Slug(raw.Name)
		}
		if id == "" {
			slog.Warn("skipping maker without name or id")
			continue
		}

		m := sanitize(raw, sanitizer)
		m.ID = d.uniqueID(id)
		d.byID[m.ID] = len(d.makers)
		d.makers = append(d.makers, m)
	}
	return d
}

// List はすべての制作者をファイル順で返す。
func (d *Directory) List() []model.Maker {
	out := make([]model.Maker, len(d.makers))
	copy(out, d.makers)
	return out
}

// ByDiscipline は分野が一致する制作者を返す。大文字小文字は区別しない。
func (d *Directory) ByDiscipline(discipline string) []model.Maker {
	discipline = strings.TrimSpace(discipline)
	out := []model.Maker{}
	for _, m := range d.makers {
		if strings.EqualFold(strings.TrimSpace(m.Discipline), discipline) {
			out = append(out, m)
		}
	}
	return out
}

// Find はIDで制作者を検索する。
func (d *Directory) Find(id string) (model.Maker, bool) {
	i, ok := d.byID[id]
	if !ok {
		return model.Maker{}, false
	}
	return d.makers[i], true
}

// Len は制作者の件数を返す。
func (d *Directory) Len() int {
	return len(d.makers)
}

func (d *Directory) uniqueID(id string) string {
	if _, taken := d.byID[id]; !taken {
		return id
	}
	for n := 2; ; n++ {
		candidate := id + "-" + strconv.Itoa(n)
		if _, taken := d.byID[candidate]; !taken {
			return candidate
		}
	}
}

func sanitize(m model.Maker, sanitizer security.TextSanitizer) model.Maker {
	if sanitizer == nil {
		return m
	}
	return model.Maker{
		Name:         sanitizer.SanitizeText(m.Name),
		Major:        sanitizer.SanitizeText(m.Major),
		Discipline:   sanitizer.SanitizeText(m.Discipline),
		Portfolio:    sanitizer.SanitizeLink(m.Portfolio),
		HeadshotLink: sanitizer.SanitizeLink(m.HeadshotLink),
	}
}

// Slug は名前をURLとドキュメントパスに使えるIDに変換する。
// 英数字以外は連続するダッシュ1つにまとめる。
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '_':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
