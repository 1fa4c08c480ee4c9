package preview

import "testing"

func threePages() []Entry {
	return []Entry{
		{ImageRef: "data:image/jpeg;base64,a", Page: 0, OriginalWidth: 1000, OriginalHeight: 1300},
		{ImageRef: "data:image/jpeg;base64,b", Page: 1, OriginalWidth: 1000, OriginalHeight: 1300},
		{ImageRef: "data:image/jpeg;base64,c", Page: 2, OriginalWidth: 800, OriginalHeight: 600},
	}
}

func TestReplaceIsWholesale(t *testing.T) {
	r := NewRegistry()
	r.Replace(threePages())
	if r.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", r.Len())
	}

	r.Replace([]Entry{{ImageRef: "data:image/jpeg;base64,z", Page: 0, OriginalWidth: 500, OriginalHeight: 500}})
	if r.Len() != 1 {
		t.Fatalf("expected full replace to leave 1 entry, got %d", r.Len())
	}
	e, ok := r.Entry(0)
	if !ok || e.OriginalWidth != 500 {
		t.Fatalf("expected the new document's entry, got %+v ok=%v", e, ok)
	}
}

func TestClickRoutesBoundEntry(t *testing.T) {
	r := NewRegistry()
	var got Entry
	var gotX, gotY float64
	r.Bind(func(e Entry, cx, cy, dw, dh float64) {
		got = e
		gotX, gotY = cx, cy
	})
	gen := r.Replace(threePages())

	if !r.Click(gen, 1, 100, 50, 500, 650) {
		t.Fatalf("expected click on entry 1 to fire")
	}
	if got.Page != 1 || gotX != 100 || gotY != 50 {
		t.Fatalf("handler got %+v at (%v,%v)", got, gotX, gotY)
	}
}

func TestStaleGenerationClickIgnored(t *testing.T) {
	r := NewRegistry()
	fired := 0
	r.Bind(func(Entry, float64, float64, float64, float64) { fired++ })
	old := r.Replace(threePages())
	r.Replace(threePages()[:1])

	if r.Click(old, 0, 1, 1, 10, 10) {
		t.Fatalf("expected stale-generation click to be dropped")
	}
	if fired != 0 {
		t.Fatalf("stale click fired the handler %d times", fired)
	}
}

func TestClickOutOfRangeIgnored(t *testing.T) {
	r := NewRegistry()
	r.Bind(func(Entry, float64, float64, float64, float64) { t.Fatalf("handler must not fire") })
	gen := r.Replace(threePages()[:1])
	if r.Click(gen, 5, 1, 1, 10, 10) {
		t.Fatalf("expected out-of-range click to be dropped")
	}
}
