package store

import (
	"context"
	"sync"
	"testing"
)

func TestNextSeq_StrictlyIncreasing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var prev uint64
	for i := 0; i < 10; i++ {
		seq, err := s.NextSeq(ctx)
		if err != nil {
			t.Fatalf("NextSeq() failed: %v", err)
		}
		if seq <= prev {
			t.Fatalf("sequence not increasing: got %d after %d", seq, prev)
		}
		prev = seq
	}

	last, err := s.LastSeq(ctx)
	if err != nil {
		t.Fatalf("LastSeq() failed: %v", err)
	}
	if last != prev {
		t.Errorf("LastSeq() = %d, want %d", last, prev)
	}
}

func TestNextSeq_SurvivesReopen(t *testing.T) {
	path := t.TempDir() + "/till.db"
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := s1.NextSeq(ctx); err != nil {
			t.Fatalf("NextSeq() failed: %v", err)
		}
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	seq, err := s2.NextSeq(ctx)
	if err != nil {
		t.Fatalf("NextSeq() after reopen failed: %v", err)
	}
	if seq != 6 {
		t.Errorf("sequence after reopen = %d, want 6", seq)
	}
}

func TestNextSeq_NoDuplicatesUnderConcurrency(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const workers = 8
	const perWorker = 20

	var mu sync.Mutex
	seen := make(map[uint64]bool)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				seq, err := s.NextSeq(ctx)
				if err != nil {
					t.Errorf("NextSeq() failed: %v", err)
					return
				}
				mu.Lock()
				if seen[seq] {
					t.Errorf("duplicate sequence %d", seq)
				}
				seen[seq] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("got %d unique sequences, want %d", len(seen), workers*perWorker)
	}
}
