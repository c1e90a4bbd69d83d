package ids

import (
	"sync"
	"testing"
)

func TestGenerateUniqueUnderConcurrency(t *testing.T) {
	const workers = 8
	const perWorker = 2000

	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, Generate())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Fatalf("got %d unique ids, want %d", len(seen), workers*perWorker)
	}
}

func TestGenerateMonotonicPerCall(t *testing.T) {
	prev := Generate()
	for i := 0; i < 1000; i++ {
		next := Generate()
		if next <= prev {
			t.Fatalf("id %d not greater than previous %d", next, prev)
		}
		prev = next
	}
}

func TestSetNodeIDClampsRange(t *testing.T) {
	SetNodeID(5000) // out of range, falls back
	if got := get().node; got != 1 {
		t.Fatalf("node = %d, want fallback 1", got)
	}
	SetNodeID(42)
	if got := get().node; got != 42 {
		t.Fatalf("node = %d, want 42", got)
	}
	SetNodeID(1)
}

func TestSourceNodeEncoded(t *testing.T) {
	s := NewSource(7)
	id := s.Next()
	if got := (id >> stepBits) & nodeMax; got != 7 {
		t.Fatalf("node part = %d, want 7", got)
	}
}
