package memorystore

import "sync"

// MemoryPriceStore holds the latest traded price per pair.
type MemoryPriceStore struct {
	mu     sync.RWMutex
	prices map[string]float64
}

func NewPriceStore() *MemoryPriceStore {
	return &MemoryPriceStore{
		prices: make(map[string]float64),
	}
}

// Set stores price for pair. Non-positive prices are ignored.
func (s *MemoryPriceStore) Set(pair string, price float64) {
	if pair == "" || price <= 0 {
		return
	}
	s.mu.Lock()
	s.prices[pair] = price
	s.mu.Unlock()
}

// SetAll merges prices into the store.
func (s *MemoryPriceStore) SetAll(prices map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for pair, price := range prices {
		if pair != "" && price > 0 {
			s.prices[pair] = price
		}
	}
}

// StartWorker consumes ticks from ch until it is closed.
func (s *MemoryPriceStore) StartWorker(ch <-chan PriceTick) {
	go func() {
		for tick := range ch {
			s.Set(tick.Pair, tick.Price)
		}
	}()
}

// LatestPrice returns the last price of pair and whether one is known.
func (s *MemoryPriceStore) LatestPrice(pair string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[pair]
	return p, ok
}

// Prices returns a snapshot copy of the whole map.
func (s *MemoryPriceStore) Prices() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Copy to avoid race
	out := make(map[string]float64, len(s.prices))
	for k, v := range s.prices {
		out[k] = v
	}
	return out
}

// Count returns the number of pairs with a known price.
func (s *MemoryPriceStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prices)
}
