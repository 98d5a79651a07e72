package memorystore

import (
	"sync"
)

// MemoryOrderLogStore keeps the append-only order log of every copier id.
// Logs are never dropped, so they outlive the session that wrote them.
type MemoryOrderLogStore struct {
	globalMu sync.RWMutex
	data     map[string]*copierOrderLog
}

type copierOrderLog struct {
	mu     sync.Mutex
	orders []OrderRecord
}

func NewOrderLogStore() *MemoryOrderLogStore {
	return &MemoryOrderLogStore{
		data: make(map[string]*copierOrderLog),
	}
}

func (s *MemoryOrderLogStore) Append(copierID string, o OrderRecord) {
	// Fast path: lock per-copier log only
	s.globalMu.RLock()
	log, ok := s.data[copierID]
	s.globalMu.RUnlock()

	if !ok {
		// Need to initialize new copier log (exclusive lock)
		s.globalMu.Lock()
		if log, ok = s.data[copierID]; !ok {
			log = &copierOrderLog{}
			s.data[copierID] = log
		}
		s.globalMu.Unlock()
	}

	// Per-copier locking
	log.mu.Lock()
	log.orders = append(log.orders, o)
	log.mu.Unlock()
}

// Get returns a copy of the copier's log in append order, nil when it has none.
func (s *MemoryOrderLogStore) Get(copierID string) []OrderRecord {
	s.globalMu.RLock()
	log, ok := s.data[copierID]
	s.globalMu.RUnlock()
	if !ok {
		return nil
	}

	log.mu.Lock()
	defer log.mu.Unlock()

	// Copy to avoid race
	cp := make([]OrderRecord, len(log.orders))
	copy(cp, log.orders)
	return cp
}

// CountAll returns the total number of orders stored across all copiers.
func (s *MemoryOrderLogStore) CountAll() int {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	total := 0
	for _, log := range s.data {
		log.mu.Lock()
		total += len(log.orders)
		log.mu.Unlock()
	}
	return total
}
