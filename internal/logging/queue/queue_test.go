package queue

import (
	"sync"
	"testing"
	"time"
)

func TestEnqueueDequeueFIFO(t *testing.T) {
	q := New(0)
	for i := 0; i < 5; i++ {
		if !q.Enqueue([]byte{byte(i)}, i) {
			t.Fatalf("Enqueue(%d) unexpectedly failed", i)
		}
	}
	for i := 0; i < 5; i++ {
		e, ok := q.Dequeue()
		if !ok {
			t.Fatalf("Dequeue() returned empty at i=%d", i)
		}
		if e.Bytes[0] != byte(i) || e.Priority != i {
			t.Errorf("Dequeue() = %+v, want payload/priority %d", e, i)
		}
	}
	if _, ok := q.Dequeue(); ok {
		t.Error("Dequeue() on empty queue should return ok=false")
	}
}

func TestEnqueueBoundedDrops(t *testing.T) {
	q := New(2)
	if !q.Enqueue([]byte("a"), 0) {
		t.Fatal("first enqueue should succeed")
	}
	if !q.Enqueue([]byte("b"), 0) {
		t.Fatal("second enqueue should succeed")
	}
	if q.Enqueue([]byte("c"), 0) {
		t.Fatal("third enqueue should be dropped once at capacity")
	}
	if q.Size() != 2 {
		t.Errorf("Size() = %d, want 2", q.Size())
	}
}

func TestEnqueueCopiesBytes(t *testing.T) {
	q := New(0)
	b := []byte("mutate me")
	q.Enqueue(b, 0)
	b[0] = 'X'

	e, _ := q.Dequeue()
	if string(e.Bytes) != "mutate me" {
		t.Errorf("queue entry was mutated by caller: %q", e.Bytes)
	}
}

func TestWaitNonEmptyOrShutdownWakesOnEnqueue(t *testing.T) {
	q := New(0)
	done := make(chan struct{})

	go func() {
		q.WaitNonEmptyOrShutdown()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Enqueue([]byte("x"), 0)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitNonEmptyOrShutdown did not wake on enqueue")
	}
}

func TestWaitNonEmptyOrShutdownWakesOnShutdown(t *testing.T) {
	q := New(0)
	done := make(chan struct{})

	go func() {
		q.WaitNonEmptyOrShutdown()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Shutdown()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitNonEmptyOrShutdown did not wake on shutdown")
	}
	if !q.ShuttingDown() {
		t.Error("ShuttingDown() should report true after Shutdown")
	}
}

func TestConcurrentProducers(t *testing.T) {
	q := New(0)
	const producers = 20
	const perProducer = 100

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue([]byte{byte(p)}, i)
			}
		}(p)
	}
	wg.Wait()

	if got, want := q.Size(), producers*perProducer; got != want {
		t.Errorf("Size() = %d, want %d", got, want)
	}
}
