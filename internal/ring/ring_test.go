package ring

import "testing"

func TestBufferFIFOOrder(t *testing.T) {
	b := New[int](4)
	for i := 0; i < 10; i++ {
		b.PushGrow(i)
	}
	for i := 0; i < 10; i++ {
		v, ok := b.Pop()
		if !ok {
			t.Fatalf("expected item %d, got empty", i)
		}
		if v != i {
			t.Fatalf("expected %d, got %d", i, v)
		}
	}
	if _, ok := b.Pop(); ok {
		t.Fatal("expected empty buffer")
	}
}

func TestBufferGrowPreservesOrderAfterWrap(t *testing.T) {
	b := New[int](2)
	b.PushGrow(1)
	b.PushGrow(2)
	if v, _ := b.Pop(); v != 1 {
		t.Fatalf("expected 1, got %d", v)
	}
	b.PushGrow(3)
	b.PushGrow(4)
	b.PushGrow(5)
	want := []int{2, 3, 4, 5}
	for _, w := range want {
		v, ok := b.Pop()
		if !ok || v != w {
			t.Fatalf("expected %d, got %d (ok=%v)", w, v, ok)
		}
	}
}

func TestBufferLenAndCap(t *testing.T) {
	b := New[int](3)
	if b.Cap() != 4 {
		t.Fatalf("expected capacity rounded to 4, got %d", b.Cap())
	}
	b.PushGrow(1)
	b.PushGrow(2)
	if b.Len() != 2 {
		t.Fatalf("expected len 2, got %d", b.Len())
	}
	if b.Empty() {
		t.Fatal("expected non-empty")
	}
}
