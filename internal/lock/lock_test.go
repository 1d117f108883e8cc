package lock

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	var mu sync.Mutex
	counter := 0
	max := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := km.Acquire(ctx, "tenant:1:click:abc")
			if err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			mu.Lock()
			counter++
			if counter > max {
				max = counter
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			counter--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if max != 1 {
		t.Errorf("max concurrent holders = %d, want 1", max)
	}
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	releaseA, err := km.Acquire(ctx, "a")
	if err != nil {
		t.Fatalf("Acquire(a) error = %v", err)
	}
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB, err := km.Acquire(ctx, "b")
		if err == nil {
			releaseB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Acquire on a different key blocked")
	}
}

func TestKeyedMutex_ReleaseIsIdempotent(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	release, err := km.Acquire(ctx, "k")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	release()
	release()

	release2, err := km.Acquire(ctx, "k")
	if err != nil {
		t.Fatalf("reacquire error = %v", err)
	}
	release2()
}

func TestKeyedMutex_CleansUpIdleKeys(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		release, err := km.Acquire(ctx, "ephemeral")
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		release()
	}

	km.mu.Lock()
	n := len(km.locks)
	km.mu.Unlock()
	if n != 0 {
		t.Errorf("idle lock entries = %d, want 0", n)
	}
}
