package main

import (
	"strings"
	"testing"
)

const baselineOutput = `goos: linux
goarch: amd64
pkg: github.com/MrEthical07/authcore/store/memory
BenchmarkValidateAccess-8   	  200000	      5000 ns/op	    1200 B/op	      20 allocs/op
BenchmarkValidateAccess-8   	  200000	      5200 ns/op	    1200 B/op	      20 allocs/op
BenchmarkValidateAccess-8   	  200000	      4800 ns/op	    1200 B/op	      20 allocs/op
BenchmarkRefresh-8          	   50000	     20000 ns/op	    4000 B/op	      60 allocs/op
BenchmarkLogin-8            	     100	   9000000 ns/op	 8400000 B/op	     150 allocs/op
BenchmarkUntracked-8        	    1000	      1000 ns/op
PASS
`

func TestParseBenchmarks(t *testing.T) {
	set, err := parseBenchmarks(strings.NewReader(baselineOutput))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := len(set["BenchmarkValidateAccess"]["ns/op"]); got != 3 {
		t.Fatalf("expected 3 samples, got %d", got)
	}
	if _, ok := set["BenchmarkUntracked"]; ok {
		t.Fatal("untracked benchmark must be ignored")
	}
	if got := set["BenchmarkLogin"]["allocs/op"]; len(got) != 1 || got[0] != 150 {
		t.Fatalf("unexpected login allocs: %v", got)
	}
}

func TestCompareWithinThreshold(t *testing.T) {
	base, _ := parseBenchmarks(strings.NewReader(baselineOutput))
	cand, _ := parseBenchmarks(strings.NewReader(baselineOutput))
	rows, failures := compare(base, cand, defaultThreshold)
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}
	if rows[0].Benchmark != "BenchmarkLogin" {
		t.Fatalf("rows must be sorted, first is %s", rows[0].Benchmark)
	}
}

func TestCompareFlagsRegressionAndMissing(t *testing.T) {
	base, _ := parseBenchmarks(strings.NewReader(baselineOutput))
	slow := strings.ReplaceAll(baselineOutput, "20000 ns/op", "40000 ns/op")
	slow = strings.ReplaceAll(slow, "BenchmarkLogin-8", "BenchmarkGone-8")
	cand, _ := parseBenchmarks(strings.NewReader(slow))

	_, failures := compare(base, cand, defaultThreshold)
	joined := strings.Join(failures, "\n")
	if !strings.Contains(joined, "BenchmarkRefresh ns/op regressed") {
		t.Fatalf("expected refresh regression, got %v", failures)
	}
	if !strings.Contains(joined, "missing samples for BenchmarkLogin ns/op") {
		t.Fatalf("expected missing login samples, got %v", failures)
	}
}

func TestZeroAllocBaseline(t *testing.T) {
	base := sampleSet{"BenchmarkValidateAccess": {"ns/op": {10}, "allocs/op": {0}}}
	cand := sampleSet{"BenchmarkValidateAccess": {"ns/op": {10}, "allocs/op": {2}}}
	_, failures := compare(base, cand, defaultThreshold)
	found := false
	for _, f := range failures {
		if strings.Contains(f, "went from 0 to 2") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected zero-alloc regression, got %v", failures)
	}
}

func TestNormalizeBenchmarkName(t *testing.T) {
	cases := map[string]string{
		"BenchmarkRefresh-16":      "BenchmarkRefresh",
		"BenchmarkRefresh":         "BenchmarkRefresh",
		"BenchmarkRefresh-fast":    "BenchmarkRefresh-fast",
		"BenchmarkRefresh-fast-12": "BenchmarkRefresh-fast",
	}
	for in, want := range cases {
		if got := normalizeBenchmarkName(in); got != want {
			t.Fatalf("normalizeBenchmarkName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMedian(t *testing.T) {
	if got := median([]float64{3, 1, 2}); got != 2 {
		t.Fatalf("odd median = %v", got)
	}
	if got := median([]float64{4, 1, 2, 3}); got != 2.5 {
		t.Fatalf("even median = %v", got)
	}
	if got := median(nil); got != 0 {
		t.Fatalf("empty median = %v", got)
	}
}
