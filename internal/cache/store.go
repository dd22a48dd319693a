package cache

import (
	"errors"
	"time"
)

// Store 负责管理内存中的镜像缓存条目。实现必须支持并发读，写入为 last-writer-wins。
type Store interface {
	// Get 返回 key 对应的条目，不存在时 ok 为 false。
	Get(key string) (Entry, bool)

	// Put 写入或覆盖条目。
	Put(entry Entry) error

	// Evict 仅当当前条目的 InsertedAt 与 insertedAt 相同时删除，返回是否真正删除。
	Evict(key string, insertedAt time.Time) bool

	// Stats 返回条目数量与正文总字节数。
	Stats() StoreStats
}

// Entry 表示一次成功回源后的缓存内容。
type Entry struct {
	Key         string    `json:"key"`
	Payload     []byte    `json:"-"`
	ContentType string    `json:"content_type"`
	InsertedAt  time.Time `json:"inserted_at"`
}

// Age 返回条目在 now 时刻的存活时长。
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.InsertedAt)
}

// FreshAt 判断条目在 now 时刻是否仍处于 TTL 内（边界值视为新鲜）。
func (e Entry) FreshAt(now time.Time, ttl time.Duration) bool {
	return e.Age(now) <= ttl
}

// StoreStats 汇总缓存规模，供诊断接口输出。
type StoreStats struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// ErrInvalidEntry 表示写入的条目缺少 key。
var ErrInvalidEntry = errors.New("cache entry key required")
