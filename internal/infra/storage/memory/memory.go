// Package memory provides an in-memory RecordStore used by tests and
// local development runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/terrylica/gapless-network-data/internal/core/domain"
)

// Store keeps records in a map keyed by block number.
type Store struct {
	mu      sync.RWMutex
	records map[uint64]*domain.BlockRecord
}

func NewStore() *Store {
	return &Store{records: make(map[uint64]*domain.BlockRecord)}
}

func (s *Store) Upsert(ctx context.Context, records []*domain.BlockRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		copied := *r
		s.records[r.Number] = &copied
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.records)), nil
}

func (s *Store) MinNumber(ctx context.Context) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return 0, false, nil
	}
	first := true
	var minNum uint64
	for n := range s.records {
		if first || n < minNum {
			minNum = n
			first = false
		}
	}
	return minNum, true, nil
}

func (s *Store) MaxNumber(ctx context.Context) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return 0, false, nil
	}
	var maxNum uint64
	for n := range s.records {
		if n > maxNum {
			maxNum = n
		}
	}
	return maxNum, true, nil
}

func (s *Store) Latest(ctx context.Context) (uint64, time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return 0, time.Time{}, false, nil
	}
	var maxNum uint64
	for n := range s.records {
		if n > maxNum {
			maxNum = n
		}
	}
	return maxNum, s.records[maxNum].Timestamp, true, nil
}

func (s *Store) ScanOrdered(ctx context.Context, fn func(number uint64, ts time.Time) error) error {
	s.mu.RLock()
	numbers := make([]uint64, 0, len(s.records))
	for n := range s.records {
		numbers = append(numbers, n)
	}
	s.mu.RUnlock()

	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })

	for _, n := range numbers {
		s.mu.RLock()
		rec := s.records[n]
		s.mu.RUnlock()
		if err := fn(n, rec.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the stored record for a number, or nil. Test helper.
func (s *Store) Get(number uint64) *domain.BlockRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[number]
}
