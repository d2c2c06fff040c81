package smol_test

import (
	"path/filepath"
	"testing"

	smol "github.com/asah/smol-sub000"
)

func intSchema() smol.Schema {
	return smol.Schema{KeyAttrs: []smol.AttrSpec{{Kind: smol.KindInt32, Width: 4}}}
}

func buildIntsAt(t *testing.T, path string, n int) *smol.Index {
	t.Helper()
	rows := func(yield func(keyValues []any, includeValues []any) bool) {
		for i := 0; i < n; i++ {
			if !yield([]any{int32(i)}, nil) {
				return
			}
		}
	}
	ix, err := smol.Build(path, intSchema(), smol.DefaultTunables(), rows, smol.OpenOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return ix
}

func buildInts(t *testing.T, n int) *smol.Index {
	t.Helper()
	return buildIntsAt(t, filepath.Join(t.TempDir(), "ints.smol"), n)
}

// TestBuildOpenScanUnboundedAbove exercises the real public-API path —
// Build, Open, NewScan — with an unbounded upper bound on an int key. This
// is the scan shape that used to panic in IntComparator when an unbounded
// scan reached its nil upper bound.
func TestBuildOpenScanUnboundedAbove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ints.smol")
	built := buildIntsAt(t, path, 300)
	built.Close()

	schema := intSchema()
	ix, err := smol.Open(path, schema, smol.OpenOptions{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ix.Close()

	s, err := ix.NewScan(smol.ScanKeys{Bounds: []smol.Bound{
		{AttrIndex: 0, Strategy: smol.GE, Value: int32(290)},
	}}, smol.ScanOptions{})
	if err != nil {
		t.Fatalf("NewScan: %v", err)
	}
	defer s.Close()

	var got []int32
	var tup smol.Tuple
	for {
		ok, err := s.Next(&tup)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		vals, err := tup.DecodeKey(schema)
		if err != nil {
			t.Fatalf("DecodeKey: %v", err)
		}
		got = append(got, int32(vals[0].(int64)))
	}

	if len(got) != 10 {
		t.Fatalf("expected 10 rows in [290,300), got %d: %v", len(got), got)
	}
	for i, v := range got {
		if v != int32(290+i) {
			t.Fatalf("row %d: got %d want %d", i, v, 290+i)
		}
	}
}

// TestBuildOpenScanFullyUnbounded covers a scan with no bounds at all —
// both the lower and upper navigator positions resolve through their nil
// branches.
func TestBuildOpenScanFullyUnbounded(t *testing.T) {
	ix := buildInts(t, 137)
	defer ix.Close()

	s, err := ix.NewScan(smol.ScanKeys{}, smol.ScanOptions{})
	if err != nil {
		t.Fatalf("NewScan: %v", err)
	}
	defer s.Close()

	var tup smol.Tuple
	var count int
	for {
		ok, err := s.Next(&tup)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != 137 {
		t.Fatalf("expected 137 rows, got %d", count)
	}
}

// TestBuildOpenScanBackwardUnboundedBelow covers a backward scan with no
// lower bound, exercising FindStartPosition's nil branch from the
// backward-seed path (scan.stepBack).
func TestBuildOpenScanBackwardUnboundedBelow(t *testing.T) {
	ix := buildInts(t, 50)
	defer ix.Close()

	s, err := ix.NewScan(smol.ScanKeys{Bounds: []smol.Bound{
		{AttrIndex: 0, Strategy: smol.LT, Value: int32(5)},
	}}, smol.ScanOptions{Backward: true})
	if err != nil {
		t.Fatalf("NewScan: %v", err)
	}
	defer s.Close()

	schema := intSchema()
	var got []int32
	var tup smol.Tuple
	for {
		ok, err := s.Next(&tup)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		vals, err := tup.DecodeKey(schema)
		if err != nil {
			t.Fatalf("DecodeKey: %v", err)
		}
		got = append(got, int32(vals[0].(int64)))
	}
	want := []int32{4, 3, 2, 1, 0}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}
