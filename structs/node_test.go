package structs

import (
	"reflect"
	"testing"
)

func TestNewNode(t *testing.T) {
	tests := []struct {
		name     string
		id       int
		vector   []float32
		level    int
		maxConn  int
		maxConn0 int
	}{
		{"basic node", 1, []float32{1.0, 2.0, 3.0}, 2, 10, 20},
		{"zero level node", 2, []float32{4.0, 5.0}, 0, 5, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := NewNode(tt.id, tt.vector, map[string]any{"k": "v"}, tt.level, tt.maxConn, tt.maxConn0)

			if node.ID != tt.id {
				t.Errorf("ID = %v, want %v", node.ID, tt.id)
			}
			if !reflect.DeepEqual(node.Vector, tt.vector) {
				t.Errorf("Vector = %v, want %v", node.Vector, tt.vector)
			}
			if node.Level != tt.level {
				t.Errorf("Level = %v, want %v", node.Level, tt.level)
			}
			if node.Metadata["k"] != "v" {
				t.Errorf("Metadata not preserved: got %v", node.Metadata)
			}

			if len(node.Neighbors) != tt.level+1 {
				t.Fatalf("len(Neighbors) = %v, want %v", len(node.Neighbors), tt.level+1)
			}
			for l, neighbors := range node.Neighbors {
				want := tt.maxConn
				if l == 0 {
					want = tt.maxConn0
				}
				if cap(neighbors) != want {
					t.Errorf("cap(Neighbors[%d]) = %v, want %v", l, cap(neighbors), want)
				}
				if len(neighbors) != 0 {
					t.Errorf("len(Neighbors[%d]) = %v, want 0", l, len(neighbors))
				}
			}
		})
	}
}

func TestNewNodeNilMetadata(t *testing.T) {
	node := NewNode(0, []float32{1, 2}, nil, 0, 4, 8)
	if node.Metadata != nil {
		t.Errorf("expected nil metadata to be preserved, got %v", node.Metadata)
	}
}
