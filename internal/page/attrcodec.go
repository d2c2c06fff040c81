package page

import (
	"encoding/binary"
	"fmt"
)

// AttrKind identifies the Go-level type an attribute's stored bytes
// decode to. Adapted from the teacher's tagged-value row codec
// (internal/storage/pager/row_codec.go), narrowed to the fixed-width
// kinds SMOL keys and INCLUDE columns support — no nil/bool/float tags,
// since spec.md §6 requires every build-input value to be non-null and
// fixed-width.
type AttrKind uint8

const (
	KindInt8 AttrKind = iota
	KindInt16
	KindInt32
	KindInt64
	KindText
)

func (k AttrKind) String() string {
	switch k {
	case KindInt8:
		return "int8"
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// signFlip XORs the sign bit of the first byte of a big-endian
// two's-complement integer, so that unsigned byte comparison of the
// result equals signed integer comparison (spec.md §9's "fast paths for
// integers"). Applying it twice is its own inverse.
func signFlip(b []byte) {
	b[0] ^= 0x80
}

// EncodeAttr converts a typed Go value into its fixed-width stored
// representation. Integers are encoded big-endian with the sign bit
// flipped, so raw byte comparison (the root package's ByteComparator and
// IntComparator) orders them correctly; text values are zero-padded on the
// right up to width, and must not contain an embedded NUL (spec.md §4.8).
func EncodeAttr(kind AttrKind, width int, v any) ([]byte, error) {
	out := make([]byte, width)
	switch kind {
	case KindInt8:
		i, err := asInt64(v)
		if err != nil {
			return nil, err
		}
		if width != 1 {
			return nil, fmt.Errorf("page: EncodeAttr: int8 width must be 1, got %d", width)
		}
		out[0] = byte(int8(i))
		signFlip(out)
	case KindInt16:
		i, err := asInt64(v)
		if err != nil {
			return nil, err
		}
		if width != 2 {
			return nil, fmt.Errorf("page: EncodeAttr: int16 width must be 2, got %d", width)
		}
		binary.BigEndian.PutUint16(out, uint16(int16(i)))
		signFlip(out)
	case KindInt32:
		i, err := asInt64(v)
		if err != nil {
			return nil, err
		}
		if width != 4 {
			return nil, fmt.Errorf("page: EncodeAttr: int32 width must be 4, got %d", width)
		}
		binary.BigEndian.PutUint32(out, uint32(int32(i)))
		signFlip(out)
	case KindInt64:
		i, err := asInt64(v)
		if err != nil {
			return nil, err
		}
		if width != 8 {
			return nil, fmt.Errorf("page: EncodeAttr: int64 width must be 8, got %d", width)
		}
		binary.BigEndian.PutUint64(out, uint64(i))
		signFlip(out)
	case KindText:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("page: EncodeAttr: text value has type %T, want string", v)
		}
		if len(s) > width {
			return nil, fmt.Errorf("page: EncodeAttr: text value of length %d exceeds cap %d", len(s), width)
		}
		for i := 0; i < len(s); i++ {
			if s[i] == 0 {
				return nil, fmt.Errorf("page: EncodeAttr: text value contains embedded NUL, which breaks zero-padded byte comparison")
			}
		}
		copy(out, s)
	default:
		return nil, fmt.Errorf("page: EncodeAttr: unknown kind %v", kind)
	}
	return out, nil
}

// DecodeAttr is the inverse of EncodeAttr.
func DecodeAttr(kind AttrKind, buf []byte) (any, error) {
	switch kind {
	case KindInt8:
		b := append([]byte(nil), buf...)
		signFlip(b)
		return int64(int8(b[0])), nil
	case KindInt16:
		b := append([]byte(nil), buf...)
		signFlip(b)
		return int64(int16(binary.BigEndian.Uint16(b))), nil
	case KindInt32:
		b := append([]byte(nil), buf...)
		signFlip(b)
		return int64(int32(binary.BigEndian.Uint32(b))), nil
	case KindInt64:
		b := append([]byte(nil), buf...)
		signFlip(b)
		return int64(binary.BigEndian.Uint64(b)), nil
	case KindText:
		n := 0
		for n < len(buf) && buf[n] != 0 {
			n++
		}
		return string(buf[:n]), nil
	default:
		return nil, fmt.Errorf("page: DecodeAttr: unknown kind %v", kind)
	}
}

func asInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	default:
		return 0, fmt.Errorf("page: EncodeAttr: integer value has unsupported type %T", v)
	}
}
