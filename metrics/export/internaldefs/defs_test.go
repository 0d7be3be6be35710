package internaldefs

import (
	"strconv"
	"strings"
	"testing"

	goLearn "github.com/MrEthical07/goLearn"
)

func TestFamiliesCoverEveryCounterOnce(t *testing.T) {
	seen := map[goLearn.MetricID]string{}
	for _, f := range Families {
		if !strings.HasPrefix(f.Name, "golearn_") || !strings.HasSuffix(f.Name, "_total") {
			t.Fatalf("unexpected family name %q", f.Name)
		}
		if f.Label == "" {
			t.Fatalf("family %q has no label", f.Name)
		}
		values := map[string]bool{}
		for _, m := range f.Members {
			if prev, dup := seen[m.ID]; dup {
				t.Fatalf("metric %q exported by both %q and %q", m.ID, prev, f.Name)
			}
			if values[m.Value] {
				t.Fatalf("family %q repeats label value %q", f.Name, m.Value)
			}
			seen[m.ID] = f.Name
			values[m.Value] = true
		}
	}
	for _, def := range HistogramDefs {
		if _, dup := seen[def.ID]; dup {
			t.Fatalf("histogram %q also exported as a counter", def.ID)
		}
		seen[def.ID] = def.Name
	}
	for _, id := range goLearn.MetricIDs() {
		if _, ok := seen[id]; !ok {
			t.Fatalf("metric %q has no exporter definition", id)
		}
	}
}

func TestHistogramBoundsMatchClient(t *testing.T) {
	if len(HistogramBounds) != len(goLearn.HistogramBucketBounds)+1 {
		t.Fatalf("expected %d bounds, got %d", len(goLearn.HistogramBucketBounds)+1, len(HistogramBounds))
	}
	for i, d := range goLearn.HistogramBucketBounds {
		want := strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
		if HistogramBounds[i] != want {
			t.Fatalf("bound %d: expected %q, got %q", i, want, HistogramBounds[i])
		}
	}
	if len(HistogramBoundSuffix) != len(HistogramBounds) {
		t.Fatal("suffixes and bounds must align")
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
