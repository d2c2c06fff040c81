package smol

import (
	"fmt"

	"github.com/asah/smol-sub000/internal/page"
)

// AttrKind identifies the type of a key or INCLUDE attribute. It is an
// alias of the page codec's own kind enum so the root package and
// internal/page never maintain two copies of the same tag set.
type AttrKind = page.AttrKind

const (
	KindInt8  = page.KindInt8
	KindInt16 = page.KindInt16
	KindInt32 = page.KindInt32
	KindInt64 = page.KindInt64
	KindText  = page.KindText
)

// AttrSpec describes one key or INCLUDE attribute: its type and its
// on-disk byte width (for Text, the length cap).
type AttrSpec struct {
	Kind  AttrKind
	Width int
}

func (a AttrSpec) validate(maxWidth int) error {
	switch a.Kind {
	case KindInt8:
		if a.Width != 1 {
			return fmt.Errorf("%w: int8 attribute must have width 1, got %d", ErrInputInvalid, a.Width)
		}
	case KindInt16:
		if a.Width != 2 {
			return fmt.Errorf("%w: int16 attribute must have width 2, got %d", ErrInputInvalid, a.Width)
		}
	case KindInt32:
		if a.Width != 4 {
			return fmt.Errorf("%w: int32 attribute must have width 4, got %d", ErrInputInvalid, a.Width)
		}
	case KindInt64:
		if a.Width != 8 {
			return fmt.Errorf("%w: int64 attribute must have width 8, got %d", ErrInputInvalid, a.Width)
		}
	case KindText:
		if a.Width != 8 && a.Width != 16 && a.Width != 32 {
			return fmt.Errorf("%w: text attribute cap must be 8, 16, or 32, got %d", ErrInputInvalid, a.Width)
		}
	default:
		return fmt.Errorf("%w: unknown attribute kind %v", ErrInputInvalid, a.Kind)
	}
	if a.Width > maxWidth {
		return fmt.Errorf("%w: attribute width %d exceeds cap %d", ErrInputInvalid, a.Width, maxWidth)
	}
	return nil
}

// MaxKeyWidth is the fixed-width key size cap (spec.md §3: "≤16 bytes").
const MaxKeyWidth = 16

// MaxIncludeColumns is the cap on INCLUDE columns per index (spec.md §3).
const MaxIncludeColumns = 16

// Schema describes the shape of a built index: one or two leading key
// attributes, up to 16 INCLUDE columns, and an optional collation.
type Schema struct {
	KeyAttrs []AttrSpec // length 1 or 2
	Include  []AttrSpec // length 0..16
	// Collation selects the comparator used for the leading key when it
	// is KindText: 0 means C-locale byte comparison; any other value is
	// resolved to a golang.org/x/text/collate.Collator by the caller and
	// passed to Open via OpenOptions (spec.md §3 "collation_oid").
	Collation uint32
}

// KeyWidth returns the total byte width of the (possibly two-column) key.
func (s Schema) KeyWidth() int {
	w := 0
	for _, a := range s.KeyAttrs {
		w += a.Width
	}
	return w
}

// IncludeWidths returns the byte width of each INCLUDE column in order.
func (s Schema) IncludeWidths() []int {
	ws := make([]int, len(s.Include))
	for i, a := range s.Include {
		ws[i] = a.Width
	}
	return ws
}

// Validate checks the schema against spec.md §3's structural invariants:
// 1 or 2 key attributes, total key width ≤ MaxKeyWidth, at most
// MaxIncludeColumns INCLUDE columns, and well-formed attribute widths.
func (s Schema) Validate() error {
	if len(s.KeyAttrs) != 1 && len(s.KeyAttrs) != 2 {
		return fmt.Errorf("%w: schema must have 1 or 2 key attributes, got %d", ErrInputInvalid, len(s.KeyAttrs))
	}
	for _, a := range s.KeyAttrs {
		if err := a.validate(MaxKeyWidth); err != nil {
			return err
		}
	}
	if s.KeyWidth() > MaxKeyWidth {
		return fmt.Errorf("%w: total key width %d exceeds cap %d", ErrInputInvalid, s.KeyWidth(), MaxKeyWidth)
	}
	if len(s.Include) > MaxIncludeColumns {
		return fmt.Errorf("%w: %d INCLUDE columns exceeds cap %d", ErrInputInvalid, len(s.Include), MaxIncludeColumns)
	}
	for _, a := range s.Include {
		if err := a.validate(32); err != nil {
			return err
		}
	}
	return nil
}
