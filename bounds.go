package smol

import (
	"bytes"
	"fmt"

	"github.com/asah/smol-sub000/internal/build"
	"github.com/asah/smol-sub000/internal/page"
)

// encodeRows drains a RowSource into pre-encoded build.Row values, turning
// each typed key/INCLUDE value into its stored byte representation via
// internal/page.EncodeAttr.
func encodeRows(schema Schema, rows RowSource) ([]build.Row, error) {
	var out []build.Row
	var encErr error
	rows(func(keyValues []any, includeValues []any) bool {
		if len(keyValues) != len(schema.KeyAttrs) {
			encErr = fmt.Errorf("%w: row has %d key values, schema has %d", ErrInputInvalid, len(keyValues), len(schema.KeyAttrs))
			return false
		}
		if len(includeValues) != len(schema.Include) {
			encErr = fmt.Errorf("%w: row has %d INCLUDE values, schema has %d", ErrInputInvalid, len(includeValues), len(schema.Include))
			return false
		}
		key := make([]byte, 0, schema.KeyWidth())
		for i, a := range schema.KeyAttrs {
			b, err := page.EncodeAttr(a.Kind, a.Width, keyValues[i])
			if err != nil {
				encErr = fmt.Errorf("%w: key attr %d: %v", ErrInputInvalid, i, err)
				return false
			}
			key = append(key, b...)
		}
		var include [][]byte
		if len(schema.Include) > 0 {
			include = make([][]byte, len(schema.Include))
			for i, a := range schema.Include {
				b, err := page.EncodeAttr(a.Kind, a.Width, includeValues[i])
				if err != nil {
					encErr = fmt.Errorf("%w: include attr %d: %v", ErrInputInvalid, i, err)
					return false
				}
				include[i] = b
			}
		}
		out = append(out, build.Row{Key: key, Include: include})
		return true
	})
	if encErr != nil {
		return nil, encErr
	}
	return out, nil
}

// encodeRangeBounds resolves the leading-key-attribute bound(s) in bounds
// into a [lower, upper) or [lower, upper] byte range, per the rule in
// Bound's doc comment: only attribute 0 bounds define the scanned range.
func (ix *Index) encodeRangeBounds(bounds ScanKeys) (lower []byte, lowerExcl bool, upper []byte, upperExcl bool, err error) {
	return encodeRangeBoundsForSchema(ix.schema, bounds)
}

func encodeRangeBoundsForSchema(schema Schema, bounds ScanKeys) (lower []byte, lowerExcl bool, upper []byte, upperExcl bool, err error) {
	lead := schema.KeyAttrs[0]
	for _, b := range bounds.Bounds {
		if b.AttrIndex != 0 {
			continue
		}
		enc, encErr := page.EncodeAttr(lead.Kind, lead.Width, b.Value)
		if encErr != nil {
			return nil, false, nil, false, fmt.Errorf("%w: bound on attr 0: %v", ErrInputInvalid, encErr)
		}
		switch b.Strategy {
		case GE:
			lower, lowerExcl = enc, false
		case GT:
			lower, lowerExcl = enc, true
		case LE:
			upper, upperExcl = enc, false
		case LT:
			upper, upperExcl = enc, true
		case EQ:
			lower, lowerExcl = enc, false
			upper, upperExcl = enc, false
		default:
			return nil, false, nil, false, fmt.Errorf("%w: unknown bound strategy %v", ErrInputInvalid, b.Strategy)
		}
	}
	return lower, lowerExcl, upper, upperExcl, nil
}

// encodeEqualityFilter builds the second-key-attribute equality filter, if
// bounds carries one, per Bound's doc comment. Any other strategy on
// attribute 1 is silently ignored — the caller is responsible for
// rechecking it, exactly as for bounds on attributes beyond the leading
// and second key column.
func (ix *Index) encodeEqualityFilter(bounds ScanKeys) (scanFilter func([]byte) bool, err error) {
	if len(ix.schema.KeyAttrs) != 2 {
		return nil, nil
	}
	second := ix.schema.KeyAttrs[1]
	leadWidth := ix.schema.KeyAttrs[0].Width
	for _, b := range bounds.Bounds {
		if b.AttrIndex != 1 || b.Strategy != EQ {
			continue
		}
		enc, encErr := page.EncodeAttr(second.Kind, second.Width, b.Value)
		if encErr != nil {
			return nil, fmt.Errorf("%w: bound on attr 1: %v", ErrInputInvalid, encErr)
		}
		return func(key []byte) bool {
			return bytes.Equal(key[leadWidth:leadWidth+second.Width], enc)
		}, nil
	}
	return nil, nil
}
