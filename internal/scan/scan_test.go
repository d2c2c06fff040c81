package scan

import (
	"bytes"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/asah/smol-sub000/internal/build"
	"github.com/asah/smol-sub000/internal/page"
	"github.com/asah/smol-sub000/internal/pager"
	"github.com/asah/smol-sub000/internal/tree"
)

func k(v int32) []byte {
	b, _ := page.EncodeAttr(page.KindInt32, 4, v)
	return b
}

// intCmp4 mirrors the root package's production IntComparator(4): a nil
// operand means unbounded rather than a zero-width key, so it must never be
// sliced. Tests here wire this instead of raw bytes.Compare so an
// unbounded-above scan exercises the same nil-handling path the real
// smol.Build/Open/NewScan call chain does.
func intCmp4(a, b []byte) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	return bytes.Compare(a[:4], b[:4])
}

// buildIndex writes n ascending int32 keys (0..n-1) using the smallest
// page size, then returns a navigator over the result. A 4 KiB Plain
// leaf holds 1013 int32 keys, so the fixtures below fit in one leaf.
func buildIndex(t *testing.T, n int) (*pager.Pager, *tree.Navigator) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.smol")
	p, err := pager.Create(path, pager.MinPageSize)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { p.Close() })

	var rows []build.Row
	for i := 0; i < n; i++ {
		rows = append(rows, build.Row{Key: k(int32(i))})
	}
	cfg := build.Config{
		KeyWidth:               4,
		PageSize:               pager.MinPageSize,
		RLEUniquenessThreshold: 0, // force Plain leaves
		KeyRLEVersion:          2,
	}
	res, err := build.Build(p, cfg, rows)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	meta := pager.Metapage{NKeyAtts: 1, KeyLen1: 4, RootBlkno: res.RootBlkno, Height: res.Height}
	if err := p.CommitMetapage(meta); err != nil {
		t.Fatalf("CommitMetapage: %v", err)
	}
	got, _ := p.Metapage()
	nav := &tree.Navigator{Pager: p, Meta: got, KeyWidth: 4, Cmp: intCmp4}
	return p, nav
}

func collectForward(t *testing.T, s *Scan) []int32 {
	t.Helper()
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	var out []int32
	for {
		tup, ok, err := s.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		var v int32
		dv, _ := page.DecodeAttr(page.KindInt32, tup.Key)
		v = int32(dv.(int64))
		out = append(out, v)
	}
	return out
}

func TestScanForwardUnbounded(t *testing.T) {
	_, nav := buildIndex(t, 200)
	s := &Scan{Nav: nav, KeyWidth: 4}
	got := collectForward(t, s)
	if len(got) != 200 {
		t.Fatalf("expected 200 rows, got %d", len(got))
	}
	for i, v := range got {
		if v != int32(i) {
			t.Fatalf("row %d: got %d want %d", i, v, i)
		}
	}
}

func TestScanForwardBounded(t *testing.T) {
	_, nav := buildIndex(t, 200)
	s := &Scan{Nav: nav, KeyWidth: 4, Lower: k(50), Upper: k(60), UpperExclusive: true}
	got := collectForward(t, s)
	if len(got) != 10 {
		t.Fatalf("expected 10 rows in [50,60), got %d: %v", len(got), got)
	}
	if got[0] != 50 || got[len(got)-1] != 59 {
		t.Fatalf("unexpected bounds: first=%d last=%d", got[0], got[len(got)-1])
	}
}

func TestScanForwardLowerExclusive(t *testing.T) {
	_, nav := buildIndex(t, 200)
	s := &Scan{Nav: nav, KeyWidth: 4, Lower: k(50), LowerExclusive: true, Upper: k(53)}
	got := collectForward(t, s)
	want := []int32{51, 52, 53}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestScanBackward(t *testing.T) {
	_, nav := buildIndex(t, 200)
	s := &Scan{Nav: nav, KeyWidth: 4, Backward: true, Lower: k(10), Upper: k(20), UpperExclusive: true}
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	var got []int32
	for {
		tup, ok, err := s.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		dv, _ := page.DecodeAttr(page.KindInt32, tup.Key)
		got = append(got, int32(dv.(int64)))
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 rows, got %d: %v", len(got), got)
	}
	for i, v := range got {
		want := int32(19 - i)
		if v != want {
			t.Fatalf("backward order mismatch at %d: got %d want %d (%v)", i, v, want, got)
		}
	}
}

func TestScanBackwardMatchesReversedForward(t *testing.T) {
	_, nav := buildIndex(t, 137)
	fwd := collectForward(t, &Scan{Nav: nav, KeyWidth: 4})

	bwdScan := &Scan{Nav: nav, KeyWidth: 4, Backward: true}
	if err := bwdScan.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer bwdScan.Close()
	var bwd []int32
	for {
		tup, ok, err := bwdScan.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		dv, _ := page.DecodeAttr(page.KindInt32, tup.Key)
		bwd = append(bwd, int32(dv.(int64)))
	}
	if len(bwd) != len(fwd) {
		t.Fatalf("length mismatch: forward %d backward %d", len(fwd), len(bwd))
	}
	for i := range fwd {
		if fwd[i] != bwd[len(bwd)-1-i] {
			t.Fatalf("mismatch at %d: forward %d vs reversed-backward %d", i, fwd[i], bwd[len(bwd)-1-i])
		}
	}
}

func TestScanFilterSkipsNonMatching(t *testing.T) {
	_, nav := buildIndex(t, 50)
	s := &Scan{
		Nav: nav, KeyWidth: 4,
		Filter: func(key []byte) bool {
			dv, _ := page.DecodeAttr(page.KindInt32, key)
			return dv.(int64)%2 == 0
		},
	}
	got := collectForward(t, s)
	for _, v := range got {
		if v%2 != 0 {
			t.Fatalf("filter let through odd value %d", v)
		}
	}
	if len(got) != 25 {
		t.Fatalf("expected 25 even values, got %d", len(got))
	}
}

func TestScanRescanRepositions(t *testing.T) {
	_, nav := buildIndex(t, 100)
	s := &Scan{Nav: nav, KeyWidth: 4, Lower: k(0), Upper: k(5)}
	first := collectForwardNoClose(t, s)
	if len(first) != 6 {
		t.Fatalf("expected 6 rows, got %d", len(first))
	}
	if err := s.Rescan(k(90), k(95), false, false); err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	var second []int32
	for {
		tup, ok, err := s.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		dv, _ := page.DecodeAttr(page.KindInt32, tup.Key)
		second = append(second, int32(dv.(int64)))
	}
	s.Close()
	want := []int32{90, 91, 92, 93, 94, 95}
	if len(second) != len(want) {
		t.Fatalf("got %v want %v", second, want)
	}
}

func collectForwardNoClose(t *testing.T, s *Scan) []int32 {
	t.Helper()
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	var out []int32
	for {
		tup, ok, err := s.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		dv, _ := page.DecodeAttr(page.KindInt32, tup.Key)
		out = append(out, int32(dv.(int64)))
	}
	return out
}

func TestParallelScanCoversEveryRowExactlyOnce(t *testing.T) {
	_, nav := buildIndex(t, 500)
	coord := NewCoordinator(nav)

	const workers = 6
	var mu sync.Mutex
	var all []int32
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := &Scan{Nav: nav, KeyWidth: 4, Coordinator: coord}
			if err := s.Open(); err != nil {
				errs <- err
				return
			}
			defer s.Close()
			var local []int32
			for {
				tup, ok, err := s.Next()
				if err != nil {
					errs <- err
					return
				}
				if !ok {
					break
				}
				dv, _ := page.DecodeAttr(page.KindInt32, tup.Key)
				local = append(local, int32(dv.(int64)))
			}
			mu.Lock()
			all = append(all, local...)
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("worker error: %v", err)
	}

	if len(all) != 500 {
		t.Fatalf("expected 500 total rows across all workers, got %d", len(all))
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	for i, v := range all {
		if v != int32(i) {
			t.Fatalf("multiset mismatch at %d: got %d", i, v)
		}
	}
}
