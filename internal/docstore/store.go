// Package docstore はパス指定のJSONドキュメントストアを提供する。
// パスはコレクションとドキュメントIDを交互に並べた形式（users/{uid}/savedMakers/{id}）。
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidPath はドキュメントパスまたはコレクションパスが不正な場合のエラー。
var ErrInvalidPath = errors.New("invalid document path")

// Fields はドキュメントのフィールド集合。JSONとして保存される。
type Fields map[string]any

type serverTimestamp struct{}

// ServerTimestamp は書き込み時にストアの現在時刻（UTC）へ置き換えられる番兵値。
// トップレベルのフィールド値としてのみ解釈される。
var ServerTimestamp = serverTimestamp{}

// Document はストアから読み出したドキュメント。
type Document struct {
	Path       string
	ID         string
	Fields     Fields
	CreateTime time.Time
	UpdateTime time.Time
}

// DataTo はドキュメントのフィールドをJSON経由で構造体にデコードする。
func (d *Document) DataTo(v any) error {
	b, err := json.Marshal(d.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", d.Path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", d.Path, err)
	}
	return nil
}

// Store はドキュメントストアのインターフェース。
type Store interface {
	// Get は指定パスのドキュメントを取得する。存在しない場合はnilを返す。
	Get(ctx context.Context, path string) (*Document, error)
	// Set は指定パスのドキュメントを作成または上書きする。
	Set(ctx context.Context, path string, fields Fields) error
	// Delete は指定パスのドキュメントを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, path string) error
	// List はコレクション直下のドキュメントをID昇順で返す。
	List(ctx context.Context, collection string) ([]*Document, error)
}

// Write はバッチ書き込みの1操作を表す。
type Write struct {
	Path   string
	Fields Fields
	Delete bool
}

// SetWrite はSet操作のWriteを生成する。
func SetWrite(path string, fields Fields) Write {
	return Write{Path: path, Fields: fields}
}

// DeleteWrite はDelete操作のWriteを生成する。
func DeleteWrite(path string) Write {
	return Write{Path: path, Delete: true}
}

// Batcher は複数の書き込みをアトミックに適用できるストアが実装する。
type Batcher interface {
	Commit(ctx context.Context, writes ...Write) error
}

// Doc はセグメントを連結してドキュメントパスを生成する。
func Doc(segments ...string) string {
	return strings.Join(segments, "/")
}

// Collection はセグメントを連結してコレクションパスを生成する。
func Collection(segments ...string) string {
	return strings.Join(segments, "/")
}

// splitDocPath はドキュメントパスをコレクションパスとIDに分割する。
func splitDocPath(path string) (collection, id string, err error) {
	segments := strings.Split(path, "/")
	if len(segments) < 2 || len(segments)%2 != 0 || hasEmpty(segments) {
		return "", "", fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}
	last := len(segments) - 1
	return strings.Join(segments[:last], "/"), segments[last], nil
}

// validateCollection はコレクションパスの形式を検証する。
func validateCollection(path string) error {
	segments := strings.Split(path, "/")
	if len(segments)%2 != 1 || hasEmpty(segments) {
		return fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, path)
	}
	return nil
}

func hasEmpty(segments []string) bool {
	for _, s := range segments {
		if s == "" {
			return true
		}
	}
	return false
}

// encodeFields はServerTimestampを解決してJSONにエンコードする。
func encodeFields(fields Fields, now time.Time) ([]byte, error) {
	resolved := make(Fields, len(fields))
	for k, v := range fields {
		if _, ok := v.(serverTimestamp); ok {
			resolved[k] = now
			continue
		}
		resolved[k] = v
	}
	b, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	return b, nil
}

// decodeFields はJSONからFieldsをデコードする。
func decodeFields(b []byte) (Fields, error) {
	fields := Fields{}
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	return fields, nil
}
