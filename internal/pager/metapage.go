package pager

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Magic identifies a SMOL page file. Stored in the metapage's first 8 bytes.
const Magic = "SMOLIDX\x00"

// FormatVersion is the current on-disk metapage version. Bumped whenever the
// metapage layout or page codec changes in an incompatible way.
const FormatVersion = 1

// Metapage is the block-0 header anchoring a built index. See spec.md §3
// ("Metapage") and SPEC_FULL.md §3 for the fields this module adds beyond
// the spec's list (PageSize, BuildID, and the frozen RLE tunables).
type Metapage struct {
	Version uint32

	// NKeyAtts is 1 or 2 (single- or two-column key).
	NKeyAtts uint8
	KeyLen1  uint16
	KeyLen2  uint16

	RootBlkno PageID
	Height    uint32

	IncCount uint8
	IncLen   [16]uint16

	CollationOID uint32

	DirectoryBlkno  PageID
	ZoneMapsEnabled bool

	PageSize uint32
	BuildID  uuid.UUID

	// Tunables frozen at build time; a scan decodes pages the way they were
	// actually packed regardless of the opening process's own config.
	RLEUniquenessThreshold float64
	KeyRLEVersion          uint8 // 1 or 2
}

// metapageEncodedSize is conservative; the physical page is always
// PageSize bytes, but we only need this many for the logical payload.
const metapageEncodedSize = 128

// MarshalMetapage encodes meta into the payload region (after the physical
// header) of a page-sized buffer.
func MarshalMetapage(meta *Metapage, payload []byte) error {
	if len(payload) < metapageEncodedSize {
		return fmt.Errorf("pager: metapage payload buffer too small")
	}
	copy(payload[0:8], Magic)
	off := 8
	binary.LittleEndian.PutUint32(payload[off:], meta.Version)
	off += 4
	payload[off] = meta.NKeyAtts
	off++
	binary.LittleEndian.PutUint16(payload[off:], meta.KeyLen1)
	off += 2
	binary.LittleEndian.PutUint16(payload[off:], meta.KeyLen2)
	off += 2
	binary.LittleEndian.PutUint32(payload[off:], uint32(meta.RootBlkno))
	off += 4
	binary.LittleEndian.PutUint32(payload[off:], meta.Height)
	off += 4
	payload[off] = meta.IncCount
	off++
	for i := 0; i < 16; i++ {
		binary.LittleEndian.PutUint16(payload[off:], meta.IncLen[i])
		off += 2
	}
	binary.LittleEndian.PutUint32(payload[off:], meta.CollationOID)
	off += 4
	binary.LittleEndian.PutUint32(payload[off:], uint32(meta.DirectoryBlkno))
	off += 4
	if meta.ZoneMapsEnabled {
		payload[off] = 1
	} else {
		payload[off] = 0
	}
	off++
	binary.LittleEndian.PutUint32(payload[off:], meta.PageSize)
	off += 4
	idBytes, _ := meta.BuildID.MarshalBinary()
	copy(payload[off:off+16], idBytes)
	off += 16
	binary.LittleEndian.PutUint64(payload[off:], math.Float64bits(meta.RLEUniquenessThreshold))
	off += 8
	payload[off] = meta.KeyRLEVersion
	off++
	if off > metapageEncodedSize {
		return fmt.Errorf("pager: metapage layout exceeds reserved size (%d > %d)", off, metapageEncodedSize)
	}
	return nil
}

// UnmarshalMetapage decodes a Metapage from a page payload, validating the
// magic and version. A mismatch is a Format-violation per spec.md §7.
func UnmarshalMetapage(payload []byte) (Metapage, error) {
	var meta Metapage
	if len(payload) < metapageEncodedSize {
		return meta, fmt.Errorf("pager: metapage payload truncated")
	}
	if string(payload[0:8]) != Magic {
		return meta, fmt.Errorf("pager: bad magic %q, not a SMOL index file", payload[0:8])
	}
	off := 8
	meta.Version = binary.LittleEndian.Uint32(payload[off:])
	off += 4
	if meta.Version != FormatVersion {
		return meta, fmt.Errorf("pager: unsupported format version %d (want %d)", meta.Version, FormatVersion)
	}
	meta.NKeyAtts = payload[off]
	off++
	meta.KeyLen1 = binary.LittleEndian.Uint16(payload[off:])
	off += 2
	meta.KeyLen2 = binary.LittleEndian.Uint16(payload[off:])
	off += 2
	meta.RootBlkno = PageID(binary.LittleEndian.Uint32(payload[off:]))
	off += 4
	meta.Height = binary.LittleEndian.Uint32(payload[off:])
	off += 4
	meta.IncCount = payload[off]
	off++
	for i := 0; i < 16; i++ {
		meta.IncLen[i] = binary.LittleEndian.Uint16(payload[off:])
		off += 2
	}
	meta.CollationOID = binary.LittleEndian.Uint32(payload[off:])
	off += 4
	meta.DirectoryBlkno = PageID(binary.LittleEndian.Uint32(payload[off:]))
	off += 4
	meta.ZoneMapsEnabled = payload[off] != 0
	off++
	meta.PageSize = binary.LittleEndian.Uint32(payload[off:])
	off += 4
	_ = meta.BuildID.UnmarshalBinary(payload[off : off+16])
	off += 16
	meta.RLEUniquenessThreshold = math.Float64frombits(binary.LittleEndian.Uint64(payload[off:]))
	off += 8
	meta.KeyRLEVersion = payload[off]
	off++
	return meta, nil
}

// NewBuildID mints a fresh build-session identifier. Purely diagnostic —
// never consulted by comparisons or correctness paths.
func NewBuildID() uuid.UUID { return uuid.New() }
