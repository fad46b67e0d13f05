package buffer

import (
	"sync"
	"testing"
	"time"
)

func TestFIFOOrder(t *testing.T) {
	b := NewBounded[int](8)

	for i := 0; i < 5; i++ {
		if err := b.Write(i); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	for i := 0; i < 5; i++ {
		item, ok := b.Read()
		if !ok {
			t.Fatalf("expected item at position %d", i)
		}
		if item != i {
			t.Errorf("expected %d, got %d", i, item)
		}
	}

	if _, ok := b.Read(); ok {
		t.Error("expected empty buffer")
	}
}

func TestDropNewestPolicy(t *testing.T) {
	var dropped []int
	b := NewBounded(2,
		WithOverflowPolicy[int](DropNewest),
		WithDropCallback(func(item int) { dropped = append(dropped, item) }))

	for i := 0; i < 4; i++ {
		if err := b.Write(i); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if b.Size() != 2 {
		t.Errorf("expected size 2, got %d", b.Size())
	}
	if len(dropped) != 2 || dropped[0] != 2 || dropped[1] != 3 {
		t.Errorf("expected drops [2 3], got %v", dropped)
	}
	if b.Stats().Drops() != 2 {
		t.Errorf("expected 2 recorded drops, got %d", b.Stats().Drops())
	}
}

func TestBlockPolicyUnblocksOnRead(t *testing.T) {
	b := NewBounded[int](1)

	if err := b.Write(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- b.Write(2)
	}()

	select {
	case <-done:
		t.Fatal("write should have blocked on a full buffer")
	case <-time.After(20 * time.Millisecond):
	}

	if item, ok := b.Read(); !ok || item != 1 {
		t.Fatalf("expected 1, got %d (ok=%t)", item, ok)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked write never completed")
	}
}

func TestReadBlockingWakesOnWrite(t *testing.T) {
	b := NewBounded[string](4)

	got := make(chan string, 1)
	go func() {
		item, ok := b.ReadBlocking()
		if ok {
			got <- item
		}
		close(got)
	}()

	time.Sleep(10 * time.Millisecond)
	if err := b.Write("hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case item := <-got:
		if item != "hello" {
			t.Errorf("expected hello, got %q", item)
		}
	case <-time.After(time.Second):
		t.Fatal("blocking read never returned")
	}
}

func TestCloseWakesBlockedReaders(t *testing.T) {
	b := NewBounded[int](4)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := b.ReadBlocking(); ok {
				t.Error("expected closed-buffer read to report not ok")
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	if err := b.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wg.Wait()

	if err := b.Write(1); err == nil {
		t.Error("expected error writing to closed buffer")
	}
	if err := b.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
}
