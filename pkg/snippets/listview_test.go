package snippets

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

func TestCoerceList(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"nil", nil, nil},
		{"blank", "   ", nil},
		{"single", "price", []string{"price"}},
		{"comma", "a, b,,c ", []string{"a", "b", "c"}},
		{"slice", []string{"x", "y"}, []string{"x", "y"}},
		{"ints", []int{1, 2}, []string{"1", "2"}},
		{"scalar", 7, []string{"7"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, CoerceList(tt.in)); diff != "" {
				t.Errorf("CoerceList(%v) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

// TestListView_Live verifies two views over the same node see each other's
// writes without caching.
func TestListView_Live(t *testing.T) {
	owner := xmltree.New("PointSet")
	a := NewListView(owner, "Input")
	b := NewListView(owner, "Input")

	if a.Len() != 0 {
		t.Fatalf("empty view has %d items", a.Len())
	}
	if owner.Child("Input") != nil {
		t.Fatal("reading must not create the child")
	}

	a.Append("x")
	a.Extend("y", "z")
	if diff := cmp.Diff([]string{"x", "y", "z"}, b.Items()); diff != "" {
		t.Errorf("second view mismatch (-want +got):\n%s", diff)
	}

	b.Remove("y")
	if a.Contains("y") {
		t.Error("removal through one view not seen by the other")
	}

	// Text edited behind the views is picked up on the next read.
	owner.Child("Input").Text = "p, q"
	if got := a.At(1); got != "q" {
		t.Errorf("At(1) = %q, want q", got)
	}
}

func TestListView_Mutations(t *testing.T) {
	owner := xmltree.New("Group")
	v := NewListView(owner, "")
	v.Extend("c", "a", "b")

	v.Insert(0, "first")
	v.Insert(-1, "beforeLast")
	v.Insert(100, "last")
	want := []string{"first", "c", "a", "beforeLast", "b", "last"}
	if diff := cmp.Diff(want, v.Items()); diff != "" {
		t.Fatalf("after inserts (-want +got):\n%s", diff)
	}

	if got, ok := v.Pop(); !ok || got != "last" {
		t.Errorf("Pop() = %q, %v", got, ok)
	}
	v.Delete(0)
	v.Set(0, "C")
	v.Sort()
	if diff := cmp.Diff([]string{"C", "a", "b", "beforeLast"}, v.Items()); diff != "" {
		t.Errorf("after sort (-want +got):\n%s", diff)
	}
	v.Reverse()
	if got := v.Index("C"); got != 3 {
		t.Errorf("Index(C) = %d, want 3", got)
	}
	v.Append("a")
	if got := v.Count("a"); got != 2 {
		t.Errorf("Count(a) = %d, want 2", got)
	}
	if v.Remove("missing") {
		t.Error("Remove of a missing item reported true")
	}

	v.Clear()
	if v.Len() != 0 {
		t.Errorf("Len after Clear = %d", v.Len())
	}
	if _, ok := v.Pop(); ok {
		t.Error("Pop on an empty list reported ok")
	}
	if got, ok := owner.Text.([]string); !ok || got == nil {
		t.Errorf("cleared text = %#v, want empty []string", owner.Text)
	}
}

// TestListView_CopyIsDetached verifies Copy returns a snapshot.
func TestListView_CopyIsDetached(t *testing.T) {
	owner := xmltree.New("Group")
	v := NewListView(owner, "")
	v.Extend("a", "b")
	c := v.Copy()
	c[0] = "changed"
	if v.At(0) != "a" {
		t.Error("mutating the copy changed the node")
	}
}
