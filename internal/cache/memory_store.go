package cache

import (
	"sync"
	"time"
)

// NewStore 构建进程内缓存，整站复用一份实例，由启动流程显式注入。
func NewStore() Store {
	return &memoryStore{
		entries: make(map[string]Entry),
	}
}

// memoryStore 用读写锁保护 map 结构本身；条目写入后不再原地修改。
type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	bytes   int64
}

func (s *memoryStore) Get(key string) (Entry, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	return entry, ok
}

func (s *memoryStore) Put(entry Entry) error {
	if entry.Key == "" {
		return ErrInvalidEntry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.entries[entry.Key]; ok {
		s.bytes -= int64(len(prev.Payload))
	}
	s.entries[entry.Key] = entry
	s.bytes += int64(len(entry.Payload))
	return nil
}

func (s *memoryStore) Evict(key string, insertedAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.entries[key]
	if !ok || !current.InsertedAt.Equal(insertedAt) {
		return false
	}
	delete(s.entries, key)
	s.bytes -= int64(len(current.Payload))
	return true
}

func (s *memoryStore) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StoreStats{Entries: len(s.entries), Bytes: s.bytes}
}
