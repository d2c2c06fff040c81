package pager

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger is a small leveled logger gated by the DebugLog tunable, in the
// same spirit as this codebase's existing diagnostic facilities: CRC
// failures, split/level statistics, and parallel-claim contention are
// worth a line when debugging a build or scan, but silent otherwise.
type Logger struct {
	enabled bool
	out     *log.Logger
}

// NewLogger builds a Logger writing to w (os.Stderr if nil). When enabled
// is false, Debugf is a no-op; construction is still cheap so callers can
// build one unconditionally and let the Tunables control it.
func NewLogger(enabled bool, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{enabled: enabled, out: log.New(w, "smol: ", log.LstdFlags|log.Lmicroseconds)}
}

// Debugf logs a formatted line when the logger is enabled.
func (l *Logger) Debugf(format string, args ...any) {
	if l == nil || !l.enabled {
		return
	}
	l.out.Printf(format, args...)
}

// Enabled reports whether debug logging is active.
func (l *Logger) Enabled() bool { return l != nil && l.enabled }

// PageInfo summarizes one page for cmd/smolinspect, independent of the
// internal/page codec's richer in-memory representations.
type PageInfo struct {
	ID     PageID
	Type   PageType
	Flags  uint8
	CRCOK  bool
}

// InspectPage decodes just the physical header of a raw page buffer,
// verifying its CRC. The logical payload is decoded by internal/page,
// which cmd/smolinspect calls directly to avoid a package cycle here.
func InspectPage(buf []byte) PageInfo {
	h := UnmarshalHeader(buf)
	return PageInfo{
		ID:    h.ID,
		Type:  h.Type,
		Flags: h.Flags,
		CRCOK: VerifyPageCRC(buf) == nil,
	}
}

// VerifyFile walks every block in the file checking its CRC, reporting the
// first failure found (or nil if the whole file checks out). This is the
// cheap, payload-agnostic half of `smolinspect verify`; the structural
// half (sibling-link continuity) lives in cmd/smolinspect alongside the
// internal/page decoders it needs. Neither half checks nitems against
// run counts.
func VerifyFile(p *Pager) error {
	size := p.nextID
	for id := PageID(0); id < size; id++ {
		buf, err := p.ReadPage(id)
		if err != nil {
			return fmt.Errorf("pager: verify page %d: %w", id, err)
		}
		ok := VerifyPageCRC(buf) == nil
		p.UnpinPage(id)
		if !ok {
			return fmt.Errorf("pager: page %d fails CRC check", id)
		}
	}
	return nil
}
