package formats

import "testing"

type entry struct {
	key   string
	items []int
}

func fill(acc Accumulator[string, *entry], keys []string) {
	for i, k := range keys {
		e := acc.Join(k, func() *entry { return &entry{key: k} })
		e.items = append(e.items, i)
	}
}

func TestGroupedAccumulator(t *testing.T) {
	acc := NewAccumulator[string, *entry](true)
	if _, ok := acc.(*GroupedAccumulator[string, *entry]); !ok {
		t.Fatalf("expected GroupedAccumulator, got %T", acc)
	}
	fill(acc, []string{"a", "b", "a", "a", "c", "b"})

	got := acc.Values()
	if acc.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", acc.Len())
	}
	want := map[string][]int{"a": {0, 2, 3}, "b": {1, 5}, "c": {4}}
	for _, e := range got {
		if len(e.items) != len(want[e.key]) {
			t.Errorf("%s: items %v, want %v", e.key, e.items, want[e.key])
		}
	}
	if got[0].key != "a" || got[1].key != "b" || got[2].key != "c" {
		t.Error("entries should keep first-seen order")
	}
}

func TestGroupedAccumulator_PushShadowsEarlierEntry(t *testing.T) {
	acc := NewAccumulator[string, *entry](true)
	fill(acc, []string{"a"})
	acc.Push("a", &entry{key: "a"})
	fill(acc, []string{"a"})

	vals := acc.Values()
	if len(vals) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(vals))
	}
	if len(vals[0].items) != 1 || len(vals[1].items) != 1 {
		t.Error("join should target the most recent entry for the key")
	}
}

func TestOrderedAccumulator(t *testing.T) {
	acc := NewAccumulator[string, *entry](false)
	if _, ok := acc.(*OrderedAccumulator[string, *entry]); !ok {
		t.Fatalf("expected OrderedAccumulator, got %T", acc)
	}
	fill(acc, []string{"a", "a", "b", "a", "a", "a"})

	vals := acc.Values()
	wantKeys := []string{"a", "b", "a"}
	wantLens := []int{2, 1, 3}
	if len(vals) != len(wantKeys) {
		t.Fatalf("expected %d entries, got %d", len(wantKeys), len(vals))
	}
	for i := range vals {
		if vals[i].key != wantKeys[i] || len(vals[i].items) != wantLens[i] {
			t.Errorf("entry %d = %s%v, want %s with %d items", i, vals[i].key, vals[i].items, wantKeys[i], wantLens[i])
		}
	}
}
