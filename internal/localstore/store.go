// Package localstore はデバイスローカルの永続キー/バリューストアを提供する。
// アカウントではなくプロセスにスコープされ、コレクション・ウィッシュリスト・
// お気に入りのオフラインキャッシュに使用される。
package localstore

import "sync"

// Store はローカル永続化の契約を定義する。
type Store interface {
	// Get は指定キーの値を返す。キーが存在しない場合はok=falseを返す。
	Get(key string) (value []byte, ok bool, err error)
	// Set は指定キーに値を保存する。
	Set(key string, value []byte) error
	// Remove は指定キーを削除する。存在しないキーの削除は何もしない。
	Remove(key string) error
}

// MemoryStore はテスト用のインメモリ実装。
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

// Get は指定キーの値を返す。
func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
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

// Set は指定キーに値を保存する。
func (s *MemoryStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.entries[key] = v
	return nil
}

// Remove は指定キーを削除する。
func (s *MemoryStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// compile-time interface check
var _ Store = (*MemoryStore)(nil)
