package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// execer は*sql.DBと*sql.Txの共通部分。
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PostgresStore はPostgreSQLのdocumentsテーブルを使用したドキュメントストア。
// フィールドはJSONB列に保存する。
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresStore はPostgresStoreを生成する。
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Get は指定パスのドキュメントを取得する。存在しない場合はnilを返す。
func (s *PostgresStore) Get(ctx context.Context, path string) (*Document, error) {
	collection, id, err := splitDocPath(path)
	if err != nil {
		return nil, err
	}

	var data []byte
	doc := &Document{Path: path, ID: id}
	err = s.db.QueryRowContext(ctx,
		`SELECT fields, create_time, update_time
		 FROM documents
		 WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&data, &doc.CreateTime, &doc.UpdateTime)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", path, err)
	}

	doc.Fields, err = decodeFields(data)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Set は指定パスのドキュメントを作成または上書きする。
func (s *PostgresStore) Set(ctx context.Context, path string, fields Fields) error {
	return s.apply(ctx, s.db, SetWrite(path, fields), s.now())
}

// Delete は指定パスのドキュメントを削除する。
func (s *PostgresStore) Delete(ctx context.Context, path string) error {
	return s.apply(ctx, s.db, DeleteWrite(path), s.now())
}

// List はコレクション直下のドキュメントをID昇順で返す。
func (s *PostgresStore) List(ctx context.Context, collection string) ([]*Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fields, create_time, update_time
		 FROM documents
		 WHERE collection = $1
		 ORDER BY id`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var data []byte
		doc := &Document{}
		if err := rows.Scan(&doc.ID, &data, &doc.CreateTime, &doc.UpdateTime); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.Path = collection + "/" + doc.ID
		if doc.Fields, err = decodeFields(data); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	return docs, nil
}

// Commit は複数の書き込みを同一トランザクションで適用する。
func (s *PostgresStore) Commit(ctx context.Context, writes ...Write) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	for _, w := range writes {
		if err := s.apply(ctx, tx, w, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// apply は1件のWriteを実行する。
func (s *PostgresStore) apply(ctx context.Context, ex execer, w Write, now time.Time) error {
	collection, id, err := splitDocPath(w.Path)
	if err != nil {
		return err
	}

	if w.Delete {
		if _, err := ex.ExecContext(ctx,
			`DELETE FROM documents WHERE collection = $1 AND id = $2`,
			collection, id,
		); err != nil {
			return fmt.Errorf("failed to delete document %s: %w", w.Path, err)
		}
		return nil
	}

	data, err := encodeFields(w.Fields, now)
	if err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx,
		`INSERT INTO documents (collection, id, fields, create_time, update_time)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (collection, id) DO UPDATE SET
		     fields = EXCLUDED.fields,
		     update_time = EXCLUDED.update_time`,
		collection, id, string(data), now,
	); err != nil {
		return fmt.Errorf("failed to set document %s: %w", w.Path, err)
	}
	return nil
}

// compile-time interface check
var (
	_ Store   = (*PostgresStore)(nil)
	_ Batcher = (*PostgresStore)(nil)
)
