package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore - RecordStore в памяти процесса.
// Используется в тестах и для сухих прогонов без базы.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore создает пустое хранилище
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func memoryKey(productID string, kind Kind, sortKey string) string {
	return productID + "\x00" + string(kind) + "\x00" + sortKey
}

func (s *MemoryStore) Get(_ context.Context, productID string, kind Kind, sortKey string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[memoryKey(productID, kind, sortKey)]
	if !ok {
		return nil, ErrRecordNotFound
	}
	rec.Payload = append([]byte(nil), rec.Payload...)
	return &rec, nil
}

func (s *MemoryStore) Put(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Payload = append([]byte(nil), rec.Payload...)
	s.records[memoryKey(rec.ProductID, rec.Kind, rec.SortKey)] = rec
	return nil
}

func (s *MemoryStore) PutBatch(ctx context.Context, recs []Record) error {
	for _, rec := range recs {
		if err := s.Put(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, productID string, kind Kind, sortKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, memoryKey(productID, kind, sortKey))
	return nil
}

func (s *MemoryStore) QueryRange(_ context.Context, productID string, kind Kind, from, to string, opts QueryOptions) ([]Record, error) {
	return s.filter(productID, kind, opts, func(key string) bool {
		return key >= from && key <= to
	}), nil
}

func (s *MemoryStore) QueryPrefix(_ context.Context, productID string, kind Kind, prefix string, opts QueryOptions) ([]Record, error) {
	return s.filter(productID, kind, opts, func(key string) bool {
		return strings.HasPrefix(key, prefix)
	}), nil
}

// Len возвращает количество записей данного типа
func (s *MemoryStore) Len(productID string, kind Kind) int {
	return len(s.filter(productID, kind, QueryOptions{}, func(string) bool { return true }))
}

func (s *MemoryStore) filter(productID string, kind Kind, opts QueryOptions, match func(string) bool) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, rec := range s.records {
		if rec.ProductID == productID && rec.Kind == kind && match(rec.SortKey) {
			rec.Payload = append([]byte(nil), rec.Payload...)
			out = append(out, rec)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if opts.Descending {
			return out[i].SortKey > out[j].SortKey
		}
		return out[i].SortKey < out[j].SortKey
	})

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}
