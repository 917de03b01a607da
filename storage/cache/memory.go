package cache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e *entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore 进程内缓存。读不加锁，单键写原子，过期在读取时惰性判断并由 Sweep 周期清理
type MemoryStore[V any] struct {
	entries sync.Map // string -> *entry[V]
	now     func() time.Time
}

func NewMemoryStore[V any]() *MemoryStore[V] {
	return &MemoryStore[V]{now: time.Now}
}

// WithClock 替换时钟，测试用
func (m *MemoryStore[V]) WithClock(now func() time.Time) *MemoryStore[V] {
	m.now = now
	return m
}

func (m *MemoryStore[V]) Get(_ context.Context, key string) (V, bool, error) {
	var zero V
	v, ok := m.entries.Load(key)
	if !ok {
		return zero, false, nil
	}
	e := v.(*entry[V])
	if e.expired(m.now()) {
		m.entries.CompareAndDelete(key, e)
		return zero, false, nil
	}
	return e.value, true, nil
}

func (m *MemoryStore[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	e := &entry[V]{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.entries.Store(key, e)
	return nil
}

func (m *MemoryStore[V]) Delete(_ context.Context, key string) error {
	m.entries.Delete(key)
	return nil
}

func (m *MemoryStore[V]) Sweep(_ context.Context) (int, error) {
	now := m.now()
	removed := 0
	m.entries.Range(func(k, v any) bool {
		if v.(*entry[V]).expired(now) && m.entries.CompareAndDelete(k, v) {
			removed++
		}
		return true
	})
	return removed, nil
}

func (m *MemoryStore[V]) Len(_ context.Context) (int, error) {
	now := m.now()
	n := 0
	m.entries.Range(func(_, v any) bool {
		if !v.(*entry[V]).expired(now) {
			n++
		}
		return true
	})
	return n, nil
}

func (m *MemoryStore[V]) Ping(context.Context) error { return nil }
