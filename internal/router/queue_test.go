package router

import (
	"sync"
	"testing"
)

func TestQueue_PushPop(t *testing.T) {
	q := NewQueue[int](4, 16)

	for i := 0; i < 3; i++ {
		if !q.Push(i) {
			t.Fatalf("Push(%d) returned false", i)
		}
	}
	if q.Len() != 3 {
		t.Errorf("Len() = %d, want 3", q.Len())
	}

	for i := 0; i < 3; i++ {
		v, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop() returned false for item %d", i)
		}
		if v != i {
			t.Errorf("Pop() = %d, want %d", v, i)
		}
	}

	if _, ok := q.Pop(); ok {
		t.Error("Pop() on empty queue returned true")
	}
}

func TestQueue_GrowsWhenFull(t *testing.T) {
	q := NewQueue[int](2, 16)

	for i := 0; i < 5; i++ {
		q.Push(i)
	}

	st := q.Stats()
	if st.Cap != 8 {
		t.Errorf("Cap = %d, want 8", st.Cap)
	}
	if st.Grows != 2 {
		t.Errorf("Grows = %d, want 2", st.Grows)
	}
	if st.Dropped != 0 {
		t.Errorf("Dropped = %d, want 0", st.Dropped)
	}

	got := q.Drain(0)
	for i, v := range got {
		if v != i {
			t.Errorf("got[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestQueue_DropsOldestAtLimit(t *testing.T) {
	q := NewQueue[int](2, 4)

	for i := 0; i < 7; i++ {
		q.Push(i)
	}

	st := q.Stats()
	if st.Cap != 4 {
		t.Errorf("Cap = %d, want 4", st.Cap)
	}
	if st.Dropped != 3 {
		t.Errorf("Dropped = %d, want 3", st.Dropped)
	}

	got := q.Drain(0)
	want := []int{3, 4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("len(Drain) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestQueue_GrowAfterWrap(t *testing.T) {
	q := NewQueue[int](4, 64)

	for i := 0; i < 4; i++ {
		q.Push(i)
	}
	q.Pop()
	q.Pop()
	// head is now 2; these wrap to the front of the ring.
	q.Push(4)
	q.Push(5)
	// full, forces growth of a wrapped ring.
	q.Push(6)

	got := q.Drain(0)
	want := []int{2, 3, 4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("len(Drain) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestQueue_DrainLimit(t *testing.T) {
	q := NewQueue[int](8, 8)
	for i := 0; i < 5; i++ {
		q.Push(i)
	}

	got := q.Drain(3)
	if len(got) != 3 {
		t.Fatalf("len(Drain(3)) = %d, want 3", len(got))
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2", q.Len())
	}
	if q.Drain(0)[0] != 3 {
		t.Error("remaining items out of order")
	}
	if q.Drain(0) != nil {
		t.Error("Drain on empty queue should return nil")
	}
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue[int](4, 4)
	q.Push(1)
	q.Close()

	if q.Push(2) {
		t.Error("Push after Close returned true")
	}
	if v, ok := q.Pop(); !ok || v != 1 {
		t.Errorf("Pop() = %d, %v, want 1, true", v, ok)
	}
}

func TestQueue_ReadySignal(t *testing.T) {
	q := NewQueue[int](4, 4)

	select {
	case <-q.Ready():
		t.Fatal("Ready signalled before any push")
	default:
	}

	q.Push(1)
	q.Push(2)

	select {
	case <-q.Ready():
	default:
		t.Fatal("Ready not signalled after push")
	}

	select {
	case <-q.Ready():
		t.Fatal("Ready should coalesce signals")
	default:
	}
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := NewQueue[int](1, 10000)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				q.Push(i)
			}
		}()
	}
	wg.Wait()

	st := q.Stats()
	if st.Pushed != 2000 {
		t.Errorf("Pushed = %d, want 2000", st.Pushed)
	}
	if st.Len != 2000 {
		t.Errorf("Len = %d, want 2000", st.Len)
	}
}

func TestNewQueue_MinCapacity(t *testing.T) {
	q := NewQueue[int](0, 0)
	if st := q.Stats(); st.Cap != 1 {
		t.Errorf("Cap = %d, want 1", st.Cap)
	}
	q.Push(1)
	q.Push(2)
	if st := q.Stats(); st.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", st.Dropped)
	}
}
