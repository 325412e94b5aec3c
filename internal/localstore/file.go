package localstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// envelopeVersion はファイルフォーマットのバージョン。
// 将来のフォーマット変更時にマイグレーション判定へ使用する。
const envelopeVersion = 1

// envelope はファイルに書き出すJSONエンベロープ。
// バージョンフィールドを持つ明示的な封筒形式で保存する。
type envelope struct {
	Version int               `json:"version"`
	Entries map[string][]byte `json:"entries"`
}

// FileStore はJSONファイルに永続化するStore実装。
// 書き込みは一時ファイルへの書き出しとrenameによる原子的置換で行い、
// 途中失敗で既存ファイルが壊れないようにする。
type FileStore struct {
	mu      sync.Mutex
	path    string
	entries map[string][]byte
}

// NewFileStore は指定パスのファイルを読み込んでFileStoreを生成する。
// ファイルが存在しない場合は空の状態から開始する。
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		entries: make(map[string][]byte),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ローカルストアの読み込みに失敗しました: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("ローカルストアの解析に失敗しました: %w", err)
	}
	if env.Entries != nil {
		s.entries = env.Entries
	}

	return s, nil
}

// Get は指定キーの値を返す。
func (s *FileStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Set は指定キーに値を保存し、ファイルへ書き出す。
func (s *FileStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.entries[key] = v
	return s.flushLocked()
}

// Remove は指定キーを削除し、ファイルへ書き出す。
// 存在しないキーの削除は書き出しを行わず成功を返す。
func (s *FileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return nil
	}
	delete(s.entries, key)
	return s.flushLocked()
}

// flushLocked は現在の内容をJSONエンベロープとして原子的に書き出す。
// 呼び出し元でmuを保持していること。
func (s *FileStore) flushLocked() error {
	env := envelope{
		Version: envelopeVersion,
		Entries: s.entries,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("ローカルストアのシリアライズに失敗しました: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".brewlog-local-*")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗しました: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ローカルストアの書き込みに失敗しました: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("一時ファイルのクローズに失敗しました: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ローカルストアの置換に失敗しました: %w", err)
	}

	return nil
}

// compile-time interface check
var _ Store = (*FileStore)(nil)
