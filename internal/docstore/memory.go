package docstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	data       []byte
	createTime time.Time
	updateTime time.Time
}

// MemoryStore はプロセス内メモリに保持するドキュメントストア。
// 開発用のSTORAGE_BACKEND=memoryとテストで使用する。
// フィールドはJSONとして保持し、PostgresStoreと同じ型変換を行う。
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*memoryEntry
	now         func() time.Time
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*memoryEntry),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Get は指定パスのドキュメントを取得する。存在しない場合はnilを返す。
func (s *MemoryStore) Get(_ context.Context, path string) (*Document, error) {
	collection, id, err := splitDocPath(path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	entry, ok := s.collections[collection][id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return entry.document(path, id)
}

// Set は指定パスのドキュメントを作成または上書きする。
func (s *MemoryStore) Set(ctx context.Context, path string, fields Fields) error {
	return s.Commit(ctx, SetWrite(path, fields))
}

// Delete は指定パスのドキュメントを削除する。
func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	return s.Commit(ctx, DeleteWrite(path))
}

// List はコレクション直下のドキュメントをID昇順で返す。
func (s *MemoryStore) List(_ context.Context, collection string) ([]*Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.collections[collection]
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]*Document, 0, len(ids))
	for _, id := range ids {
		doc, err := entries[id].document(collection+"/"+id, id)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Commit は複数の書き込みをアトミックに適用する。
// いずれかのWriteが不正な場合は何も適用しない。
func (s *MemoryStore) Commit(_ context.Context, writes ...Write) error {
	now := s.now()

	type staged struct {
		collection, id string
		data           []byte
		delete         bool
	}
	stagedWrites := make([]staged, 0, len(writes))
	for _, w := range writes {
		collection, id, err := splitDocPath(w.Path)
		if err != nil {
			return err
		}
		st := staged{collection: collection, id: id, delete: w.Delete}
		if !w.Delete {
			data, err := encodeFields(w.Fields, now)
			if err != nil {
				return err
			}
			st.data = data
		}
		stagedWrites = append(stagedWrites, st)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range stagedWrites {
		entries := s.collections[st.collection]
		if st.delete {
			delete(entries, st.id)
			continue
		}
		if entries == nil {
			entries = make(map[string]*memoryEntry)
			s.collections[st.collection] = entries
		}
		if existing, ok := entries[st.id]; ok {
			existing.data = st.data
			existing.updateTime = now
			continue
		}
		entries[st.id] = &memoryEntry{data: st.data, createTime: now, updateTime: now}
	}
	return nil
}

func (e *memoryEntry) document(path, id string) (*Document, error) {
	fields, err := decodeFields(e.data)
	if err != nil {
		return nil, err
	}
	return &Document{
		Path:       path,
		ID:         id,
		Fields:     fields,
		CreateTime: e.createTime,
		UpdateTime: e.updateTime,
	}, nil
}

// compile-time interface check
var (
	_ Store   = (*MemoryStore)(nil)
	_ Batcher = (*MemoryStore)(nil)
)
