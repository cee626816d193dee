package structs

import "testing"

func TestVisitedPoolGetIsEmpty(t *testing.T) {
	p := NewVisitedPool()
	m := p.Get()
	if len(m) != 0 {
		t.Errorf("fresh map len = %d, want 0", len(m))
	}
}

func TestVisitedPoolPutClears(t *testing.T) {
	p := NewVisitedPool()
	m := p.Get()
	m[1] = struct{}{}
	m[2] = struct{}{}
	p.Put(m)

	m2 := p.Get()
	if len(m2) != 0 {
		t.Errorf("recycled map len = %d, want 0", len(m2))
	}
}
