package engine

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
)

func TestRingBuffer_NormalOperation(t *testing.T) {
	// Size 4 (must be power of 2)
	rb, err := NewRingBuffer(4)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}

	data1 := []byte("msg1")
	data2 := []byte("msg2")

	if err := rb.Push(data1); err != nil {
		t.Errorf("Push failed: %v", err)
	}
	if err := rb.Push(data2); err != nil {
		t.Errorf("Push failed: %v", err)
	}
	if got := rb.Usage(); got != 2 {
		t.Errorf("Usage() = %d, want 2", got)
	}

	out1 := rb.Pop()
	if !bytes.Equal(out1, data1) {
		t.Errorf("Expected %s, got %s", data1, out1)
	}
	out2 := rb.Pop()
	if !bytes.Equal(out2, data2) {
		t.Errorf("Expected %s, got %s", data2, out2)
	}

	if out3 := rb.Pop(); out3 != nil {
		t.Errorf("Expected nil (empty), got %s", out3)
	}
	if got := rb.Usage(); got != 0 {
		t.Errorf("Usage() = %d, want 0", got)
	}
}

func TestRingBuffer_InvalidSize(t *testing.T) {
	for _, size := range []uint64{0, 3, 100} {
		if _, err := NewRingBuffer(size); err != ErrBufferSize {
			t.Errorf("NewRingBuffer(%d) error = %v, want ErrBufferSize", size, err)
		}
	}
}

func TestRingBuffer_FullDrop(t *testing.T) {
	// Small buffer to test overflow easily
	rb, _ := NewRingBuffer(2)

	_ = rb.Push([]byte("1"))
	_ = rb.Push([]byte("2"))

	// Third push should fail (Buffer Full)
	err := rb.Push([]byte("3"))
	if err != ErrBufferFull {
		t.Errorf("Expected ErrBufferFull, got %v", err)
	}

	if dropped := rb.DroppedCount(); dropped != 1 {
		t.Errorf("Expected 1 dropped item, got %d", dropped)
	}

	// Should still read 1 and 2
	if string(rb.Pop()) != "1" {
		t.Error("Order corrupted")
	}
	if string(rb.Pop()) != "2" {
		t.Error("Order corrupted")
	}

	// Space freed by Pop is reusable.
	if err := rb.Push([]byte("4")); err != nil {
		t.Errorf("Push after Pop failed: %v", err)
	}
}

func TestRingBuffer_ReadySignal(t *testing.T) {
	rb, _ := NewRingBuffer(4)

	select {
	case <-rb.Ready():
		t.Fatal("Ready signalled on an empty buffer")
	default:
	}

	_ = rb.Push([]byte("a"))
	_ = rb.Push([]byte("b"))

	select {
	case <-rb.Ready():
	default:
		t.Fatal("Ready not signalled after Push")
	}
	// Pushes coalesce into a single pending signal.
	select {
	case <-rb.Ready():
		t.Fatal("Ready signalled twice")
	default:
	}
}

func TestRingBuffer_ConcurrentPush(t *testing.T) {
	const writers, perWriter = 8, 100
	rb, _ := NewRingBuffer(1024)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if err := rb.Push([]byte(fmt.Sprintf("%d-%d", w, i))); err != nil {
					t.Errorf("Push failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for item := rb.Pop(); item != nil; item = rb.Pop() {
		seen[string(item)] = true
	}
	if len(seen) != writers*perWriter {
		t.Errorf("popped %d distinct items, want %d", len(seen), writers*perWriter)
	}
}
