package cache

import "testing"

func TestListOrder(t *testing.T) {
	l := NewList[int]()
	n1 := l.PushFront(1)
	l.PushFront(2)
	l.PushFront(3)

	if got, _ := l.Oldest(); got != 1 {
		t.Errorf("Oldest() = %d, want 1", got)
	}

	l.MoveToFront(n1)
	if got, _ := l.Oldest(); got != 2 {
		t.Errorf("Oldest() after MoveToFront = %d, want 2", got)
	}

	var order []int
	l.OldestFirst(func(n *Node[int]) bool {
		order = append(order, n.Key)
		return true
	})
	want := []int{2, 3, 1}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("OldestFirst order = %v, want %v", order, want)
		}
	}

	if k, ok := l.RemoveOldest(); !ok || k != 2 {
		t.Errorf("RemoveOldest() = %d, %v; want 2, true", k, ok)
	}
	if l.Len() != 2 {
		t.Errorf("Len() = %d, want 2", l.Len())
	}
}

func TestListRemoveWhileIterating(t *testing.T) {
	l := NewList[int]()
	nodes := map[int]*Node[int]{}
	for i := 0; i < 5; i++ {
		nodes[i] = l.PushFront(i)
	}
	l.OldestFirst(func(n *Node[int]) bool {
		if n.Key%2 == 0 {
			l.Remove(n)
		}
		return true
	})
	if l.Len() != 2 {
		t.Errorf("Len() = %d, want 2", l.Len())
	}
	if k, _ := l.Oldest(); k != 1 {
		t.Errorf("Oldest() = %d, want 1", k)
	}
}

func TestCacheEvictsByBytes(t *testing.T) {
	c := New[string, int](100)
	var evicted []string
	c.OnEvict(func(k string, _ int) { evicted = append(evicted, k) })

	c.Set("a", 1, 40)
	c.Set("b", 2, 40)
	c.Get("a") // b is now the oldest
	c.Set("c", 3, 40)

	if c.Contains("b") {
		t.Error("b should have been evicted")
	}
	if !c.Contains("a") || !c.Contains("c") {
		t.Error("a and c should be cached")
	}
	if c.Size() != 80 {
		t.Errorf("Size() = %d, want 80", c.Size())
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Errorf("evicted = %v, want [b]", evicted)
	}
	if s := c.Stats(); s.Evictions != 1 || s.Hits != 1 {
		t.Errorf("Stats() = %+v, want 1 eviction and 1 hit", s)
	}
}

func TestCacheOversizedEntry(t *testing.T) {
	c := New[int, int](10)
	c.Set(1, 1, 11)
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0 for oversized entry", c.Len())
	}
}

func TestCacheReplaceAndTrim(t *testing.T) {
	c := New[int, string](0)
	c.Set(1, "x", 10)
	c.Set(1, "y", 20)
	if v, _ := c.Get(1); v != "y" {
		t.Errorf("Get(1) = %q, want y", v)
	}
	if c.Size() != 20 {
		t.Errorf("Size() = %d, want 20", c.Size())
	}
	c.Set(2, "z", 5)
	c.Trim(5)
	if c.Contains(1) {
		t.Error("Trim(5) should evict the oldest entry")
	}
	c.Clear()
	if c.Len() != 0 || c.Size() != 0 {
		t.Errorf("after Clear: Len() = %d, Size() = %d", c.Len(), c.Size())
	}
}
