// Package pager owns the SMOL page file: a sequence of fixed-size blocks,
// a bounded buffer pool with pin-counted pages, and the metapage that
// anchors a built index. It has no write-ahead log and no free-list — an
// index is written once, sequentially, and never mutated after the
// metapage commit (see DESIGN.md for why those ambient pieces of the
// lineage this package is adapted from were dropped).
package pager

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// ───────────────────────────────────────────────────────────────────────────
// Constants
// ───────────────────────────────────────────────────────────────────────────

const (
	// DefaultPageSize is the default and, in this build, only supported
	// block size for a whole index file. Spec allows it to be
	// self-describing via the metapage, but smol.Build always writes this
	// size and Open reads and CRC-checks block 0 at this size, so a file
	// written with another page size does not reopen.
	DefaultPageSize = 8192

	MinPageSize = 4096
	MaxPageSize = 65536

	// PageHeaderSize is the size of the physical header at the start of
	// every block. The logical payload described by internal/page starts
	// immediately after it.
	//
	//   [0]    PageType   (1 byte)
	//   [1]    Flags      (1 byte) — LEAF/INTERNAL opaque bit for tree pages
	//   [2:4]  Reserved   (2 bytes)
	//   [4:8]  PageID     (4 bytes, uint32 LE)
	//   [8:16] Reserved   (8 bytes)
	//   [16:20] CRC32     (4 bytes, uint32 LE, Castagnoli)
	//   [20:32] Reserved  (12 bytes)
	PageHeaderSize = 32

	InvalidPageID PageID = 0
)

// PageType identifies the kind of payload stored in a block.
type PageType uint8

const (
	PageTypeMetapage PageType = 0x01
	PageTypeInternal PageType = 0x02
	PageTypeLeaf     PageType = 0x03
)

func (pt PageType) String() string {
	switch pt {
	case PageTypeMetapage:
		return "Metapage"
	case PageTypeInternal:
		return "Internal"
	case PageTypeLeaf:
		return "Leaf"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", uint8(pt))
	}
}

// Opaque flags, stored in the physical header's Flags byte, mirroring
// spec.md §6's "page-end opaque area carrying flags ∈ {LEAF, INTERNAL}".
const (
	FlagLeaf     uint8 = 1 << 0
	FlagInternal uint8 = 1 << 1
)

// PageID is a 32-bit block number. Block 0 is always the metapage.
type PageID uint32

// ───────────────────────────────────────────────────────────────────────────
// Physical header
// ───────────────────────────────────────────────────────────────────────────

// PageHeader is the fixed-size header present at the start of every block.
type PageHeader struct {
	Type  PageType
	Flags uint8
	ID    PageID
	CRC   uint32
}

// MarshalHeader writes h into the first PageHeaderSize bytes of buf.
func MarshalHeader(h *PageHeader, buf []byte) {
	if len(buf) < PageHeaderSize {
		panic("pager: buffer too small for PageHeader")
	}
	buf[0] = byte(h.Type)
	buf[1] = h.Flags
	binary.LittleEndian.PutUint16(buf[2:4], 0)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.ID))
	binary.LittleEndian.PutUint64(buf[8:16], 0)
	binary.LittleEndian.PutUint32(buf[16:20], h.CRC)
	for i := 20; i < 32; i++ {
		buf[i] = 0
	}
}

// UnmarshalHeader reads a PageHeader from the first PageHeaderSize bytes of buf.
func UnmarshalHeader(buf []byte) PageHeader {
	return PageHeader{
		Type:  PageType(buf[0]),
		Flags: buf[1],
		ID:    PageID(binary.LittleEndian.Uint32(buf[4:8])),
		CRC:   binary.LittleEndian.Uint32(buf[16:20]),
	}
}

// ───────────────────────────────────────────────────────────────────────────
// CRC helpers
// ───────────────────────────────────────────────────────────────────────────

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// ComputePageCRC computes the CRC32-C of a full block, treating the CRC
// field (bytes 16..20) as zero during computation.
func ComputePageCRC(page []byte) uint32 {
	h := crc32.New(crcTable)
	h.Write(page[:16])
	h.Write([]byte{0, 0, 0, 0})
	h.Write(page[20:])
	return h.Sum32()
}

// SetPageCRC computes and writes the CRC into the page header.
func SetPageCRC(page []byte) {
	binary.LittleEndian.PutUint32(page[16:20], ComputePageCRC(page))
}

// VerifyPageCRC checks the CRC32-C of a block. A mismatch is always a
// Format-violation: SMOL pages are immutable after build, so corruption
// is the only way a stored CRC can fail to match.
func VerifyPageCRC(page []byte) error {
	stored := binary.LittleEndian.Uint32(page[16:20])
	computed := ComputePageCRC(page)
	if stored != computed {
		pid := PageID(binary.LittleEndian.Uint32(page[4:8]))
		return fmt.Errorf("pager: CRC mismatch on page %d: stored=%08x computed=%08x", pid, stored, computed)
	}
	return nil
}

// NewPage allocates a zeroed block buffer of pageSize and writes its header.
func NewPage(pageSize int, pt PageType, id PageID, flags uint8) []byte {
	buf := make([]byte, pageSize)
	h := &PageHeader{Type: pt, ID: id, Flags: flags}
	MarshalHeader(h, buf)
	return buf
}

// Payload returns the portion of buf after the physical header, where the
// internal/page codec's logical layout begins.
func Payload(buf []byte) []byte { return buf[PageHeaderSize:] }
