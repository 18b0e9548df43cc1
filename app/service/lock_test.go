package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func (l *keyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func TestKeyedLockerSerializesSameKey(t *testing.T) {
	locker := newKeyedLocker()

	unlock, err := locker.Lock(context.Background(), "session:a")
	if err != nil {
		t.Fatalf("lock failed: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		second, err := locker.Lock(context.Background(), "session:a")
		if err != nil {
			return
		}
		close(acquired)
		second()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first is held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock was never acquired")
	}
}

func TestKeyedLockerIndependentKeys(t *testing.T) {
	locker := newKeyedLocker()

	unlockA, err := locker.Lock(context.Background(), "a")
	if err != nil {
		t.Fatalf("lock a failed: %v", err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := locker.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("lock b failed: %v", err)
	}
	unlockB()
}

func TestKeyedLockerHonorsContext(t *testing.T) {
	locker := newKeyedLocker()

	unlock, err := locker.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("lock failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	unlock()
	if locker.size() != 0 {
		t.Fatalf("expected no entries after release, got %d", locker.size())
	}
}

func TestKeyedLockerDropsEntries(t *testing.T) {
	locker := newKeyedLocker()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), "shared")
			if err != nil {
				return
			}
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 20 {
		t.Fatalf("expected 20 increments, got %d", counter)
	}
	if locker.size() != 0 {
		t.Fatalf("expected no entries, got %d", locker.size())
	}
}
