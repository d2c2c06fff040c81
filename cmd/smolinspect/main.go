// Command smolinspect prints diagnostic information about a built SMOL
// index file: the metapage summary, per-level page counts, a page-by-page
// dump, and a verify subcommand that walks every block checking its CRC
// and the leaves' sibling-link continuity. It does not check item counts
// against their declared format.
package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	smol "github.com/asah/smol-sub000"
	"github.com/asah/smol-sub000/internal/page"
	"github.com/asah/smol-sub000/internal/pager"
)

func main() {
	metaCmd := flag.NewFlagSet("meta", flag.ExitOnError)
	expectBuild := metaCmd.String("expect-build", "", "fail unless the file's BuildID matches this value")
	dumpCmd := flag.NewFlagSet("dump", flag.ExitOnError)
	verifyCmd := flag.NewFlagSet("verify", flag.ExitOnError)
	levelsCmd := flag.NewFlagSet("levels", flag.ExitOnError)

	if len(os.Args) < 3 {
		printUsage()
		os.Exit(1)
	}

	path := os.Args[len(os.Args)-1]

	switch os.Args[1] {
	case "meta":
		metaCmd.Parse(os.Args[2 : len(os.Args)-1])
		runMeta(path, *expectBuild)
	case "dump":
		dumpCmd.Parse(os.Args[2 : len(os.Args)-1])
		runDump(path)
	case "levels":
		levelsCmd.Parse(os.Args[2 : len(os.Args)-1])
		runLevels(path)
	case "verify":
		verifyCmd.Parse(os.Args[2 : len(os.Args)-1])
		runVerify(path)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`smolinspect - SMOL index file diagnostics

Commands:
  meta <file>     Print the metapage summary
  levels <file>   Print per-level page counts
  dump <file>     Print every page's header and a one-line summary
  verify <file>   Walk every block checking CRC and structural invariants

Flags:
  meta -expect-build=<id>   Fail (exit 1) unless the file's BuildID matches <id>

Examples:
  smolinspect meta index.smol
  smolinspect meta -expect-build=... index.smol
  smolinspect verify index.smol`)
}

func openForInspect(path string) *pager.Pager {
	p, err := pager.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "smolinspect: open %s: %v\n", path, err)
		os.Exit(1)
	}
	return p
}

func runMeta(path string, expectBuild string) {
	p := openForInspect(path)
	defer p.Close()

	meta, ok := p.Metapage()
	if !ok {
		fmt.Fprintln(os.Stderr, "smolinspect: no metapage committed")
		os.Exit(1)
	}

	if expectBuild != "" {
		want, err := smol.ParseBuildID(expectBuild)
		if err != nil {
			fmt.Fprintf(os.Stderr, "smolinspect: -expect-build: %v\n", err)
			os.Exit(1)
		}
		if meta.BuildID != want {
			fmt.Fprintf(os.Stderr, "smolinspect: BuildID mismatch: file has %s, expected %s\n", meta.BuildID, want)
			os.Exit(1)
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Version:\t%d\n", meta.Version)
	fmt.Fprintf(w, "BuildID:\t%s\n", meta.BuildID)
	fmt.Fprintf(w, "PageSize:\t%d\n", meta.PageSize)
	fmt.Fprintf(w, "NKeyAtts:\t%d\n", meta.NKeyAtts)
	fmt.Fprintf(w, "KeyLen1 / KeyLen2:\t%d / %d\n", meta.KeyLen1, meta.KeyLen2)
	fmt.Fprintf(w, "IncCount:\t%d\n", meta.IncCount)
	fmt.Fprintf(w, "RootBlkno:\t%d\n", meta.RootBlkno)
	fmt.Fprintf(w, "DirectoryBlkno:\t%d\n", meta.DirectoryBlkno)
	fmt.Fprintf(w, "Height:\t%d\n", meta.Height)
	fmt.Fprintf(w, "CollationOID:\t%d\n", meta.CollationOID)
	fmt.Fprintf(w, "ZoneMapsEnabled:\t%v\n", meta.ZoneMapsEnabled)
	fmt.Fprintf(w, "RLEUniquenessThreshold:\t%.3f\n", meta.RLEUniquenessThreshold)
	fmt.Fprintf(w, "KeyRLEVersion:\t%d\n", meta.KeyRLEVersion)
	fmt.Fprintf(w, "Total pages:\t%d\n", p.PageCount())
	w.Flush()
}

func runLevels(path string) {
	p := openForInspect(path)
	defer p.Close()

	meta, ok := p.Metapage()
	if !ok {
		fmt.Fprintln(os.Stderr, "smolinspect: no metapage committed")
		os.Exit(1)
	}
	if meta.Height == 0 {
		fmt.Println("empty index: no pages")
		return
	}

	keyWidth := int(meta.KeyLen1) + int(meta.KeyLen2)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Level\tKind\tPage count\n")

	level := []pager.PageID{meta.RootBlkno}
	depth := 0
	for {
		kind := "Internal"
		if depth == int(meta.Height)-1 {
			kind = "Leaf"
		}
		fmt.Fprintf(w, "%d\t%s\t%d\n", depth, kind, len(level))
		if kind == "Leaf" {
			break
		}
		var next []pager.PageID
		for _, id := range level {
			buf, err := p.ReadPage(id)
			if err != nil {
				fmt.Fprintf(os.Stderr, "smolinspect: read page %d: %v\n", id, err)
				os.Exit(1)
			}
			content := pager.Payload(buf)
			n := page.InternalNEntries(content)
			for i := 0; i < n; i++ {
				e, err := page.InternalEntryAt(content, i, keyWidth)
				if err != nil {
					fmt.Fprintf(os.Stderr, "smolinspect: internal entry %d of page %d: %v\n", i, id, err)
					os.Exit(1)
				}
				next = append(next, e.Child)
			}
			p.UnpinPage(id)
		}
		level = next
		depth++
	}
	w.Flush()
}

func runDump(path string) {
	p := openForInspect(path)
	defer p.Close()

	meta, _ := p.Metapage()
	keyWidth := int(meta.KeyLen1) + int(meta.KeyLen2)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Block\tType\tCRC\tSummary\n")
	for id := pager.PageID(0); id < p.PageCount(); id++ {
		buf, err := p.ReadPage(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "smolinspect: read page %d: %v\n", id, err)
			os.Exit(1)
		}
		info := pager.InspectPage(buf)
		crc := "ok"
		if !info.CRCOK {
			crc = "FAIL"
		}
		summary := ""
		switch info.Type {
		case pager.PageTypeLeaf:
			content := page.LeafContent(pager.Payload(buf))
			right, left := page.GetLeafLinks(pager.Payload(buf))
			summary = fmt.Sprintf("format=%s nitems=%d runs=%d left=%d right=%d",
				page.LeafFormatOf(content), page.LeafNItems(content), page.RunCount(content), left, right)
		case pager.PageTypeInternal:
			n := page.InternalNEntries(pager.Payload(buf))
			summary = fmt.Sprintf("nentries=%d keyWidth=%d", n, keyWidth)
		case pager.PageTypeMetapage:
			summary = fmt.Sprintf("height=%d root=%d", meta.Height, meta.RootBlkno)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", id, info.Type, crc, summary)
		p.UnpinPage(id)
	}
	w.Flush()
}

func runVerify(path string) {
	p := openForInspect(path)
	defer p.Close()

	if err := pager.VerifyFile(p); err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		os.Exit(1)
	}

	meta, ok := p.Metapage()
	if !ok {
		fmt.Fprintln(os.Stderr, "FAIL: no metapage committed")
		os.Exit(1)
	}
	if meta.Height == 0 {
		fmt.Println("OK: empty index")
		return
	}

	keyWidth := int(meta.KeyLen1) + int(meta.KeyLen2)
	leaves, err := collectLeaves(p, meta, keyWidth)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		os.Exit(1)
	}
	if err := verifySiblingChain(p, leaves); err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK: %d pages, %d leaves, height %d\n", p.PageCount(), len(leaves), meta.Height)
}

// collectLeaves descends once from the root to list every leaf page ID,
// in left-to-right order, for the sibling-chain check below.
func collectLeaves(p *pager.Pager, meta pager.Metapage, keyWidth int) ([]pager.PageID, error) {
	level := []pager.PageID{meta.RootBlkno}
	for depth := 0; depth < int(meta.Height)-1; depth++ {
		var next []pager.PageID
		for _, id := range level {
			buf, err := p.ReadPage(id)
			if err != nil {
				return nil, err
			}
			content := pager.Payload(buf)
			n := page.InternalNEntries(content)
			for i := 0; i < n; i++ {
				e, err := page.InternalEntryAt(content, i, keyWidth)
				if err != nil {
					p.UnpinPage(id)
					return nil, err
				}
				next = append(next, e.Child)
			}
			p.UnpinPage(id)
		}
		level = next
	}
	return level, nil
}

// verifySiblingChain checks that each leaf's rightlink names the next
// leaf in the list and vice versa for leftlink, and that the first/last
// leaf's outward links are InvalidPageID.
func verifySiblingChain(p *pager.Pager, leaves []pager.PageID) error {
	for i, id := range leaves {
		buf, err := p.ReadPage(id)
		if err != nil {
			return err
		}
		right, left := page.GetLeafLinks(pager.Payload(buf))
		p.UnpinPage(id)

		wantRight := pager.InvalidPageID
		if i+1 < len(leaves) {
			wantRight = leaves[i+1]
		}
		if right != wantRight {
			return fmt.Errorf("leaf %d: rightlink %d, want %d", id, right, wantRight)
		}

		wantLeft := pager.InvalidPageID
		if i > 0 {
			wantLeft = leaves[i-1]
		}
		if left != wantLeft {
			return fmt.Errorf("leaf %d: leftlink %d, want %d", id, left, wantLeft)
		}
	}
	return nil
}
